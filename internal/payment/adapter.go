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

package payment

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
	"voucher-wallet-go/internal/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Failure codes recorded on failed payment transactions
const (
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodePaymentNotCaptured = "PAYMENT_NOT_CAPTURED"
	CodeOrderMismatch      = "ORDER_MISMATCH"
)

const (
	DefaultCurrency = "INR"
	RechargeNote    = "Wallet recharge via payment gateway"
	minorUnits      = 100
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Gateway is the payment gateway capability set the adapter consumes.
type Gateway interface {
	CreateOrder(ctx context.Context, req models.GatewayOrderRequest) (*models.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentId string) (*models.GatewayPayment, error)
	// KeyId is the public key handed to the client checkout
	KeyId() string
	// KeySecret is the shared signing secret
	KeySecret() string
}

// Adapter turns verified gateway payments into wallet credits, exactly once per order.
type Adapter struct {
	engine   *wallet.Engine
	gateway  Gateway
	settings models.SiteSettings
}

func NewAdapter(engine *wallet.Engine, gateway Gateway, settings models.SiteSettings) *Adapter {
	return &Adapter{
		engine:   engine,
		gateway:  gateway,
		settings: settings,
	}
}

// CreateFundingIntent opens a gateway order and records it as a pending payment transaction
func (a *Adapter) CreateFundingIntent(ctx context.Context, userId string, amount decimal.Decimal, currency string) (*models.FundingIntent, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	if !currencyPattern.MatchString(currency) {
		return nil, fmt.Errorf("%w: currency %q", store.ErrInvalidInput, currency)
	}
	if err := wallet.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if amount.LessThan(a.settings.MinimumFundingAmount) {
		return nil, fmt.Errorf("%w: minimum funding amount is %s", store.ErrInvalidAmount, a.settings.MinimumFundingAmount.String())
	}

	ledger := a.engine.Store()
	userWallet, err := ledger.GetWalletByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if !userWallet.Active {
		return nil, fmt.Errorf("wallet %s: %w", userWallet.Id, store.ErrWalletInactive)
	}

	points := amount.Mul(a.settings.PointsConversionRate).Round(2)
	ts := a.engine.Now()
	receipt := fmt.Sprintf("wallet_recharge_%s_%d", userId, ts.Unix())
	notes := map[string]string{
		"user_id":       userId,
		"points_to_add": points.String(),
	}

	zap.L().Info("Creating funding intent",
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("currency", currency),
		zap.String("points_to_add", points.String()))

	// No unit of work is open while the gateway is called
	order, err := a.gateway.CreateOrder(ctx, models.GatewayOrderRequest{
		Amount:   amount.Mul(decimal.NewFromInt(minorUnits)).IntPart(),
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		zap.L().Warn("Gateway order creation failed", zap.String("user_id", userId), zap.Error(err))
		return nil, asGatewayError("create order", err)
	}

	payment := &models.PaymentTransaction{
		Id:          uuid.New().String(),
		UserId:      userId,
		WalletId:    userWallet.Id,
		OrderId:     order.Id,
		Amount:      amount,
		PointsToAdd: points,
		Currency:    currency,
		Status:      models.PaymentStatusPending,
		Description: fmt.Sprintf("Wallet recharge of %s points", points.String()),
		Receipt:     receipt,
		Notes:       notes,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	err = ledger.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertPaymentTransaction(ctx, payment)
	})
	if err != nil {
		zap.L().Error("Failed to persist funding intent", zap.String("order_id", order.Id), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Funding intent created",
		zap.String("user_id", userId),
		zap.String("order_id", order.Id),
		zap.String("receipt", receipt))

	return &models.FundingIntent{
		OrderId:     order.Id,
		Amount:      amount,
		Currency:    currency,
		PointsToAdd: points,
		ClientKey:   a.gateway.KeyId(),
	}, nil
}

// verification is the outcome of checking a payment against the gateway
type verification struct {
	code        string
	description string
	err         error
}

// ConfirmPayment credits the points of a pending order once the payment is
// verified. Only a pending transaction can be confirmed; the status check and
// the credit happen in the same unit of work.
func (a *Adapter) ConfirmPayment(ctx context.Context, orderId, paymentId, signature string) (*models.PaymentConfirmation, error) {
	if orderId == "" || paymentId == "" {
		return nil, fmt.Errorf("%w: order id and payment id are required", store.ErrInvalidInput)
	}

	zap.L().Info("Confirming payment",
		zap.String("order_id", orderId),
		zap.String("payment_id", paymentId),
		zap.Bool("signed", signature != ""))

	ledger := a.engine.Store()
	existing, err := ledger.GetPaymentTransaction(ctx, orderId)
	if err != nil {
		return nil, err
	}
	if existing.Status != models.PaymentStatusPending {
		return nil, fmt.Errorf("order %s is %s: %w", orderId, existing.Status, store.ErrAlreadyProcessed)
	}

	failure, err := a.verify(ctx, orderId, paymentId, signature)
	if err != nil {
		return nil, err
	}

	var result *models.PaymentConfirmation
	var entries []models.WalletHistoryEntry
	err = ledger.WithTx(ctx, func(tx store.Tx) error {
		payment, err := tx.GetPaymentTransactionForUpdate(ctx, orderId)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return fmt.Errorf("order %s is %s: %w", orderId, payment.Status, store.ErrAlreadyProcessed)
		}

		payment.PaymentId = paymentId
		payment.Signature = signature

		if failure != nil {
			payment.Status = models.PaymentStatusFailed
			payment.ErrorCode = failure.code
			payment.ErrorDescription = failure.description
			return tx.UpdatePaymentTransaction(ctx, payment)
		}

		payment.Status = models.PaymentStatusSuccess
		if err := tx.UpdatePaymentTransaction(ctx, payment); err != nil {
			return err
		}

		userWallet, err := tx.GetWalletByUserForUpdate(ctx, payment.UserId)
		if err != nil {
			return err
		}
		entry, err := a.engine.Credit(ctx, tx, userWallet, payment.PointsToAdd, RechargeNote, orderId, map[string]string{
			"payment_id": paymentId,
			"amount":     payment.Amount.String(),
			"currency":   payment.Currency,
		})
		if err != nil {
			return err
		}
		entries = append(entries, *entry)

		result = &models.PaymentConfirmation{
			TransactionId: payment.Id,
			OrderId:       orderId,
			PointsAdded:   payment.PointsToAdd,
			NewBalance:    userWallet.Balance,
		}
		return nil
	})
	if err != nil {
		zap.L().Warn("Payment confirmation failed", zap.String("order_id", orderId), zap.Error(err))
		return nil, err
	}

	if failure != nil {
		zap.L().Warn("Payment marked failed",
			zap.String("order_id", orderId),
			zap.String("error_code", failure.code),
			zap.String("error_description", failure.description))
		return nil, failure.err
	}

	a.engine.Publish(ctx, entries...)

	zap.L().Info("Payment confirmed",
		zap.String("order_id", orderId),
		zap.String("points_added", result.PointsAdded.String()),
		zap.String("new_balance", result.NewBalance.String()))
	return result, nil
}

// verify checks the signature and the captured status. A returned error
// means the gateway could not be asked and nothing may be recorded.
func (a *Adapter) verify(ctx context.Context, orderId, paymentId, signature string) (*verification, error) {
	if signature != "" && !VerifySignature(a.gateway.KeySecret(), orderId, paymentId, signature) {
		return &verification{
			code:        CodeInvalidSignature,
			description: "Payment signature verification failed",
			err:         fmt.Errorf("order %s: %w", orderId, store.ErrInvalidSignature),
		}, nil
	}

	payment, err := a.gateway.FetchPayment(ctx, paymentId)
	if err != nil {
		zap.L().Warn("Gateway payment fetch failed", zap.String("payment_id", paymentId), zap.Error(err))
		return nil, asGatewayError("fetch payment", err)
	}

	if payment.OrderId != "" && payment.OrderId != orderId {
		return &verification{
			code:        CodeOrderMismatch,
			description: fmt.Sprintf("Payment belongs to order %s", payment.OrderId),
			err:         fmt.Errorf("%w: payment %s does not belong to order %s", store.ErrInvalidInput, paymentId, orderId),
		}, nil
	}

	if payment.Status != models.GatewayPaymentCaptured {
		return &verification{
			code:        CodePaymentNotCaptured,
			description: fmt.Sprintf("Payment status is %s", payment.Status),
			err:         fmt.Errorf("payment %s is %s: %w", paymentId, payment.Status, store.ErrPaymentNotCaptured),
		}, nil
	}
	return nil, nil
}

// CancelFundingIntent abandons a pending order owned by userId
func (a *Adapter) CancelFundingIntent(ctx context.Context, orderId, userId string) error {
	err := a.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		payment, err := tx.GetPaymentTransactionForUpdate(ctx, orderId)
		if err != nil {
			return err
		}
		if payment.UserId != userId {
			return fmt.Errorf("order %s: %w", orderId, store.ErrNotOwner)
		}
		if payment.Status != models.PaymentStatusPending {
			return fmt.Errorf("order %s is %s: %w", orderId, payment.Status, store.ErrAlreadyProcessed)
		}
		payment.Status = models.PaymentStatusCancelled
		return tx.UpdatePaymentTransaction(ctx, payment)
	})
	if err != nil {
		return err
	}

	zap.L().Info("Funding intent cancelled", zap.String("order_id", orderId), zap.String("user_id", userId))
	return nil
}

func asGatewayError(op string, err error) error {
	if errors.Is(err, store.ErrGateway) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, store.ErrGateway, err)
}
