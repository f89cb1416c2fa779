/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package purchase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
	"voucher-wallet-go/internal/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	purchaseReferencePrefix = "VCH-"
	advertisementPrefix     = "AD-"
	transactionTimeLayout   = "20060102150405"
)

// Coordinator runs voucher purchases, redemptions and merchant listing fees.
// Each operation is one unit of work on the ledger.
type Coordinator struct {
	engine       *wallet.Engine
	settings     models.SiteSettings
	newReference func() string
}

type Option func(*Coordinator)

// WithReferenceGenerator overrides how purchase references are generated
func WithReferenceGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newReference = gen }
}

func NewCoordinator(engine *wallet.Engine, settings models.SiteSettings, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine:       engine,
		settings:     settings,
		newReference: NewPurchaseReference,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewPurchaseReference returns a reference like VCH-1A2B3C4D
func NewPurchaseReference() string {
	return purchaseReferencePrefix + shortId()
}

func shortId() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// walletTransactionId correlates a purchase with its wallet debit
func walletTransactionId(walletId string, ts time.Time) string {
	return fmt.Sprintf("WT-%s-%s", walletId, ts.Format(transactionTimeLayout))
}

// Purchase debits the voucher cost from the user's wallet and records the
// purchase. The debit, the stock counter and the purchase record commit or
// roll back together.
func (c *Coordinator) Purchase(ctx context.Context, userId, voucherId string) (*models.PurchaseResult, error) {
	zap.L().Info("Processing voucher purchase", zap.String("user_id", userId), zap.String("voucher_id", voucherId))

	var result *models.PurchaseResult
	var entries []models.WalletHistoryEntry
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		voucher, err := tx.GetVoucherForUpdate(ctx, voucherId)
		if err != nil {
			return err
		}
		if !voucher.Active {
			return fmt.Errorf("voucher %s is inactive: %w", voucherId, store.ErrNotFound)
		}

		exists, err := tx.PurchaseExists(ctx, userId, voucherId)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("voucher %s: %w", voucherId, store.ErrAlreadyPurchased)
		}

		// stock is the redemption cap, outstanding purchases do not consume it
		if voucher.Count > 0 && voucher.RedemptionCount >= voucher.Count {
			return fmt.Errorf("voucher %s redeemed %d of %d: %w", voucherId, voucher.RedemptionCount, voucher.Count, store.ErrOutOfStock)
		}

		userWallet, err := tx.GetWalletByUserForUpdate(ctx, userId)
		if err != nil {
			return err
		}

		cost := c.settings.VoucherCost
		ts := c.engine.Now()
		txnId := walletTransactionId(userWallet.Id, ts)
		reference := c.newReference()

		entry, err := c.engine.Debit(ctx, tx, userWallet, cost, "Voucher Purchase: "+voucher.Title, voucher.Id,
			map[string]string{"transaction_id": txnId, "purchase_reference": reference})
		if err != nil {
			return err
		}

		if err := tx.IncrementVoucherPurchaseCount(ctx, voucher.Id); err != nil {
			return err
		}

		record := &models.VoucherPurchase{
			Id:                   uuid.New().String(),
			UserId:               userId,
			VoucherId:            voucher.Id,
			PurchaseReference:    reference,
			PurchaseCost:         cost,
			Active:               true,
			Status:               models.PurchaseStatusPurchased,
			PurchasedAt:          ts,
			ExpiryDate:           ts.AddDate(0, 0, c.settings.VoucherValidityDays),
			RemainingRedemptions: c.settings.MaxRedemptionsPerPurchase,
			WalletTransactionId:  txnId,
		}
		if err := tx.InsertPurchase(ctx, record); err != nil {
			return err
		}

		entries = append(entries, *entry)
		result = &models.PurchaseResult{
			PurchaseId:        record.Id,
			PurchaseReference: reference,
			Cost:              cost,
			NewBalance:        userWallet.Balance,
			ExpiryDate:        record.ExpiryDate,
			TransactionId:     txnId,
		}
		return nil
	})
	if err != nil {
		logFailure("Voucher purchase failed", err, zap.String("user_id", userId), zap.String("voucher_id", voucherId))
		return nil, err
	}

	c.engine.Publish(ctx, entries...)

	zap.L().Info("Voucher purchased",
		zap.String("user_id", userId),
		zap.String("voucher_id", voucherId),
		zap.String("purchase_reference", result.PurchaseReference),
		zap.String("cost", result.Cost.String()),
		zap.String("new_balance", result.NewBalance.String()))
	return result, nil
}

// Redeem is performed by the merchant who owns the voucher, using the
// purchase reference (or purchase id) presented by the customer.
func (c *Coordinator) Redeem(ctx context.Context, referenceOrId, merchantId string, quantity int, location string) (*models.RedemptionResult, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidInput)
	}

	zap.L().Info("Redeeming voucher",
		zap.String("reference", referenceOrId),
		zap.String("merchant_id", merchantId),
		zap.Int("quantity", quantity))

	var result *models.RedemptionResult
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		purchase, err := tx.GetPurchaseForUpdate(ctx, referenceOrId)
		if err != nil {
			return err
		}

		voucher, err := tx.GetVoucherForUpdate(ctx, purchase.VoucherId)
		if err != nil {
			return err
		}
		if voucher.MerchantId != merchantId {
			return fmt.Errorf("voucher %s: %w", voucher.Id, store.ErrNotOwner)
		}

		switch purchase.Status {
		case models.PurchaseStatusPurchased:
		case models.PurchaseStatusRedeemed:
			return fmt.Errorf("purchase %s: %w", purchase.PurchaseReference, store.ErrAlreadyRedeemed)
		default:
			return fmt.Errorf("purchase %s is %s: %w", purchase.PurchaseReference, purchase.Status, store.ErrWrongStatus)
		}
		if !purchase.Active {
			return fmt.Errorf("purchase %s is inactive: %w", purchase.PurchaseReference, store.ErrWrongStatus)
		}

		ts := c.engine.Now()
		if ts.After(purchase.ExpiryDate) {
			return fmt.Errorf("purchase %s expired at %s: %w", purchase.PurchaseReference,
				purchase.ExpiryDate.Format(time.RFC3339), store.ErrExpired)
		}

		if purchase.RemainingRedemptions <= 0 {
			return fmt.Errorf("purchase %s: %w", purchase.PurchaseReference, store.ErrAlreadyRedeemed)
		}
		if quantity > purchase.RemainingRedemptions {
			return fmt.Errorf("%w: quantity %d exceeds remaining redemptions %d", store.ErrInvalidInput,
				quantity, purchase.RemainingRedemptions)
		}

		purchase.RemainingRedemptions -= quantity
		purchase.RedeemedAt = &ts
		purchase.RedemptionLocation = location
		if purchase.RemainingRedemptions == 0 {
			purchase.Status = models.PurchaseStatusRedeemed
		}
		if err := tx.UpdatePurchaseRedemption(ctx, purchase); err != nil {
			return err
		}
		if err := tx.IncrementVoucherRedemptionCount(ctx, voucher.Id, quantity); err != nil {
			return err
		}

		result = &models.RedemptionResult{
			PurchaseReference:    purchase.PurchaseReference,
			RedeemedAt:           ts,
			RemainingRedemptions: purchase.RemainingRedemptions,
			Status:               purchase.Status,
		}
		return nil
	})
	if err != nil {
		logFailure("Voucher redemption failed", err, zap.String("reference", referenceOrId), zap.String("merchant_id", merchantId))
		return nil, err
	}

	zap.L().Info("Voucher redeemed",
		zap.String("reference", result.PurchaseReference),
		zap.Int("remaining_redemptions", result.RemainingRedemptions),
		zap.String("status", result.Status))
	return result, nil
}

// CreateVoucher charges the merchant the listing cost and creates the voucher.
// A count of zero means unlimited stock.
func (c *Coordinator) CreateVoucher(ctx context.Context, merchantId, title string, isGiftCard bool, count int) (*models.VoucherCreation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", store.ErrInvalidInput)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: count cannot be negative", store.ErrInvalidInput)
	}

	cost := c.settings.VoucherCost
	if isGiftCard {
		cost = c.settings.GiftCardCost
	}

	var result *models.VoucherCreation
	var entries []models.WalletHistoryEntry
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		if err := requireMerchant(ctx, tx, merchantId); err != nil {
			return err
		}

		merchantWallet, err := tx.GetWalletByUserForUpdate(ctx, merchantId)
		if err != nil {
			return err
		}

		ts := c.engine.Now()
		voucher := &models.Voucher{
			Id:         uuid.New().String(),
			MerchantId: merchantId,
			Title:      title,
			IsGiftCard: isGiftCard,
			Count:      count,
			Active:     true,
			CreatedAt:  ts,
			UpdatedAt:  ts,
		}

		entry, err := c.engine.Debit(ctx, tx, merchantWallet, cost, "Voucher Creation: "+title, voucher.Id, nil)
		if err != nil {
			return err
		}
		if err := tx.InsertVoucher(ctx, voucher); err != nil {
			return err
		}

		entries = append(entries, *entry)
		result = &models.VoucherCreation{
			VoucherId: voucher.Id,
			ChargeResult: models.ChargeResult{
				ReferenceId: voucher.Id,
				Cost:        cost,
				NewBalance:  merchantWallet.Balance,
			},
		}
		return nil
	})
	if err != nil {
		logFailure("Voucher creation failed", err, zap.String("merchant_id", merchantId))
		return nil, err
	}

	c.engine.Publish(ctx, entries...)

	zap.L().Info("Voucher created",
		zap.String("merchant_id", merchantId),
		zap.String("voucher_id", result.VoucherId),
		zap.Bool("gift_card", isGiftCard),
		zap.String("cost", cost.String()))
	return result, nil
}

// ChargeAdvertisement charges the merchant the advertisement cost for one of its vouchers
func (c *Coordinator) ChargeAdvertisement(ctx context.Context, merchantId, voucherId string) (*models.ChargeResult, error) {
	var result *models.ChargeResult
	var entries []models.WalletHistoryEntry
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		voucher, err := tx.GetVoucherForUpdate(ctx, voucherId)
		if err != nil {
			return err
		}
		if voucher.MerchantId != merchantId {
			return fmt.Errorf("voucher %s: %w", voucherId, store.ErrNotOwner)
		}

		merchantWallet, err := tx.GetWalletByUserForUpdate(ctx, merchantId)
		if err != nil {
			return err
		}

		reference := advertisementPrefix + voucher.Id
		cost := c.settings.AdvertisementCost
		entry, err := c.engine.Debit(ctx, tx, merchantWallet, cost, "Advertisement: "+voucher.Title, reference, nil)
		if err != nil {
			return err
		}

		entries = append(entries, *entry)
		result = &models.ChargeResult{
			ReferenceId: reference,
			Cost:        cost,
			NewBalance:  merchantWallet.Balance,
		}
		return nil
	})
	if err != nil {
		logFailure("Advertisement charge failed", err, zap.String("merchant_id", merchantId), zap.String("voucher_id", voucherId))
		return nil, err
	}

	c.engine.Publish(ctx, entries...)

	zap.L().Info("Advertisement charged",
		zap.String("merchant_id", merchantId),
		zap.String("voucher_id", voucherId),
		zap.String("cost", result.Cost.String()))
	return result, nil
}

func requireMerchant(ctx context.Context, tx store.Tx, userId string) error {
	user, err := tx.GetUserById(ctx, userId)
	if err != nil {
		return err
	}
	if !user.IsMerchant {
		return fmt.Errorf("user %s: %w", userId, store.ErrNotMerchant)
	}
	return nil
}

// logFailure logs expected outcomes at Info and faults at Error
func logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if store.IsExpected(err) {
		zap.L().Info(msg, fields...)
		return
	}
	zap.L().Error(msg, fields...)
}

