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

package deals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
	"voucher-wallet-go/internal/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const transactionPrefix = "DT-"

// Coordinator drives the deal negotiation and settles confirmed deals
// as two-wallet transfers. The transfer fee is debited from the source
// and credited to nobody.
type Coordinator struct {
	engine           *wallet.Engine
	settings         models.SiteSettings
	newTransactionId func() string
}

type Option func(*Coordinator)

func WithTransactionIdGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newTransactionId = gen }
}

func NewCoordinator(engine *wallet.Engine, settings models.SiteSettings, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine:           engine,
		settings:         settings,
		newTransactionId: NewTransactionId,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewTransactionId returns a unique transfer transaction id
func NewTransactionId() string {
	return transactionPrefix + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// CreateDeal opens a points pool owned by merchantId. The merchant's balance
// must cover the offer when the deal is created but nothing is debited until
// a confirmation completes.
func (c *Coordinator) CreateDeal(ctx context.Context, merchantId, title string, pointsOffered decimal.Decimal, expiry *time.Time) (*models.Deal, error) {
	if err := wallet.ValidateAmount(pointsOffered); err != nil {
		return nil, fmt.Errorf("%w: points offered %s", store.ErrInvalidInput, pointsOffered.String())
	}
	ts := c.engine.Now()
	if expiry != nil && !expiry.After(ts) {
		return nil, fmt.Errorf("%w: expiry date must be in the future", store.ErrInvalidInput)
	}

	var deal *models.Deal
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		if err := requireMerchant(ctx, tx, merchantId); err != nil {
			return err
		}

		merchantWallet, err := tx.GetWalletByUserForUpdate(ctx, merchantId)
		if err != nil {
			return err
		}
		if merchantWallet.Balance.LessThan(pointsOffered) {
			return fmt.Errorf("deal of %s with balance %s: %w", pointsOffered.String(),
				merchantWallet.Balance.String(), store.ErrInsufficientBalance)
		}

		deal = &models.Deal{
			Id:              uuid.New().String(),
			MerchantId:      merchantId,
			Title:           strings.TrimSpace(title),
			PointsOffered:   pointsOffered,
			PointsUsed:      decimal.Zero,
			PointsRemaining: pointsOffered,
			Status:          models.DealStatusActive,
			ExpiryDate:      expiry,
			CreatedAt:       ts,
			UpdatedAt:       ts,
		}
		return tx.InsertDeal(ctx, deal)
	})
	if err != nil {
		logFailure("Deal creation failed", err, zap.String("merchant_id", merchantId))
		return nil, err
	}

	zap.L().Info("Deal created",
		zap.String("deal_id", deal.Id),
		zap.String("merchant_id", merchantId),
		zap.String("points_offered", pointsOffered.String()))
	return deal, nil
}

// RequestDeal records a merchant's ask against another merchant's deal
func (c *Coordinator) RequestDeal(ctx context.Context, requesterId, dealId string, points decimal.Decimal, message string) (*models.DealRequest, error) {
	if err := wallet.ValidateAmount(points); err != nil {
		return nil, err
	}

	var request *models.DealRequest
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		if err := requireMerchant(ctx, tx, requesterId); err != nil {
			return err
		}

		deal, err := tx.GetDealForUpdate(ctx, dealId)
		if err != nil {
			return err
		}
		if deal.MerchantId == requesterId {
			return fmt.Errorf("deal %s: %w", dealId, store.ErrSelfRequest)
		}
		ts := c.engine.Now()
		if err := requireOpen(deal, ts); err != nil {
			return err
		}

		exists, err := tx.DealRequestExists(ctx, requesterId, dealId)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("deal %s: %w", dealId, store.ErrDuplicateRequest)
		}

		if points.GreaterThan(deal.PointsRemaining) {
			return fmt.Errorf("requested %s of %s remaining: %w", points.String(),
				deal.PointsRemaining.String(), store.ErrExceedsRemaining)
		}

		request = &models.DealRequest{
			Id:                   uuid.New().String(),
			RequestingMerchantId: requesterId,
			DealId:               dealId,
			Status:               models.RequestStatusPending,
			PointsRequested:      points,
			Message:              message,
			CreatedAt:            ts,
			UpdatedAt:            ts,
		}
		return tx.InsertDealRequest(ctx, request)
	})
	if err != nil {
		logFailure("Deal request failed", err, zap.String("deal_id", dealId), zap.String("requester_id", requesterId))
		return nil, err
	}

	zap.L().Info("Deal requested",
		zap.String("request_id", request.Id),
		zap.String("deal_id", dealId),
		zap.String("requester_id", requesterId),
		zap.String("points", points.String()))
	return request, nil
}

// AcceptRequest reserves the requested points on the deal and creates a
// confirmed pairing. No wallet moves until CompleteConfirmation.
func (c *Coordinator) AcceptRequest(ctx context.Context, dealId, requestId, ownerId string) (*models.DealConfirmation, error) {
	var confirmation *models.DealConfirmation
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		request, deal, err := c.lockRequest(ctx, tx, dealId, requestId, ownerId)
		if err != nil {
			return err
		}
		if err := transitionRequest(request, models.RequestStatusAccepted); err != nil {
			return err
		}

		ts := c.engine.Now()
		if err := requireOpen(deal, ts); err != nil {
			return err
		}
		if request.PointsRequested.GreaterThan(deal.PointsRemaining) {
			return fmt.Errorf("requested %s of %s remaining: %w", request.PointsRequested.String(),
				deal.PointsRemaining.String(), store.ErrExceedsRemaining)
		}

		deal.PointsUsed = deal.PointsUsed.Add(request.PointsRequested)
		if err := tx.UpdateDealPoints(ctx, deal); err != nil {
			return err
		}
		if err := tx.UpdateDealRequestStatus(ctx, request.Id, request.Status); err != nil {
			return err
		}

		confirmation = &models.DealConfirmation{
			Id:               uuid.New().String(),
			DealId:           deal.Id,
			DealRequestId:    request.Id,
			Merchant1Id:      deal.MerchantId,
			Merchant2Id:      request.RequestingMerchantId,
			Status:           models.ConfirmationStatusConfirmed,
			PointsExchanged:  request.PointsRequested,
			ConfirmationTime: &ts,
			CreatedAt:        ts,
			UpdatedAt:        ts,
		}
		return tx.InsertConfirmation(ctx, confirmation)
	})
	if err != nil {
		logFailure("Deal request acceptance failed", err, zap.String("request_id", requestId), zap.String("owner_id", ownerId))
		return nil, err
	}

	zap.L().Info("Deal request accepted",
		zap.String("request_id", requestId),
		zap.Stringer("phase", ConfirmationPhase(confirmation.Status)),
		zap.String("confirmation_id", confirmation.Id),
		zap.String("points_reserved", confirmation.PointsExchanged.String()))
	return confirmation, nil
}

// RejectRequest closes a pending request. Nothing was reserved for it.
func (c *Coordinator) RejectRequest(ctx context.Context, dealId, requestId, ownerId string) error {
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		request, _, err := c.lockRequest(ctx, tx, dealId, requestId, ownerId)
		if err != nil {
			return err
		}
		if err := requireNegotiating(request); err != nil {
			return err
		}
		if err := transitionRequest(request, models.RequestStatusRejected); err != nil {
			return err
		}
		return tx.UpdateDealRequestStatus(ctx, request.Id, request.Status)
	})
	if err != nil {
		logFailure("Deal request rejection failed", err, zap.String("request_id", requestId))
		return err
	}

	zap.L().Info("Deal request rejected", zap.String("request_id", requestId), zap.String("owner_id", ownerId))
	return nil
}

// CancelRequest withdraws a pending request on behalf of the merchant who made it
func (c *Coordinator) CancelRequest(ctx context.Context, requestId, requesterId string) error {
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		request, err := tx.GetDealRequestForUpdate(ctx, requestId)
		if err != nil {
			return err
		}
		if request.RequestingMerchantId != requesterId {
			return fmt.Errorf("deal request %s: %w", requestId, store.ErrNotOwner)
		}
		if err := requireNegotiating(request); err != nil {
			return err
		}
		if err := transitionRequest(request, models.RequestStatusCancelled); err != nil {
			return err
		}
		return tx.UpdateDealRequestStatus(ctx, request.Id, request.Status)
	})
	if err != nil {
		logFailure("Deal request cancellation failed", err, zap.String("request_id", requestId))
		return err
	}

	zap.L().Info("Deal request cancelled", zap.String("request_id", requestId), zap.String("requester_id", requesterId))
	return nil
}

// requireNegotiating rejects closing a request whose points are already
// reserved; those are released through CancelConfirmation
func requireNegotiating(r *models.DealRequest) error {
	if phase := RequestPhase(r.Status); phase != PhaseNegotiating {
		return fmt.Errorf("deal request %s is %s (%s): %w", r.Id, r.Status, phase, store.ErrNotPending)
	}
	return nil
}

// lockRequest loads a request together with its deal and checks that
// ownerId owns the deal
func (c *Coordinator) lockRequest(ctx context.Context, tx store.Tx, dealId, requestId, ownerId string) (*models.DealRequest, *models.Deal, error) {
	request, err := tx.GetDealRequestForUpdate(ctx, requestId)
	if err != nil {
		return nil, nil, err
	}
	if request.DealId != dealId {
		return nil, nil, fmt.Errorf("deal request %s on deal %s: %w", requestId, dealId, store.ErrNotFound)
	}
	deal, err := tx.GetDealForUpdate(ctx, dealId)
	if err != nil {
		return nil, nil, err
	}
	if deal.MerchantId != ownerId {
		return nil, nil, fmt.Errorf("deal %s: %w", dealId, store.ErrNotOwner)
	}
	return request, deal, nil
}

// CompleteConfirmation moves the reserved points: the deal owner is debited
// the full amount and the requester is credited the amount less the transfer
// fee. Both legs, the transfer record and the status flips share one unit of
// work. If the transfer cannot be settled, a failed transfer record is kept
// and the confirmation stays confirmed so it can be retried.
func (c *Coordinator) CompleteConfirmation(ctx context.Context, confirmationId, callerId string) (*models.TransferResult, error) {
	var transfer *models.PointsTransfer
	var result *models.TransferResult
	var entries []models.WalletHistoryEntry

	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		confirmation, err := tx.GetConfirmationForUpdate(ctx, confirmationId)
		if err != nil {
			return err
		}
		if !isParty(confirmation, callerId) {
			return fmt.Errorf("deal confirmation %s: %w", confirmationId, store.ErrNotOwner)
		}
		if ConfirmationPhase(confirmation.Status) != PhaseReserved {
			return fmt.Errorf("deal confirmation %s is %s: %w", confirmationId, confirmation.Status, store.ErrNotPending)
		}

		amount := confirmation.PointsExchanged
		fee := c.settings.DealTransferFee
		if fee.IsNegative() || !fee.LessThan(amount) {
			return fmt.Errorf("%w: transfer fee %s must be below amount %s", store.ErrInvalidInput, fee.String(), amount.String())
		}

		ts := c.engine.Now()
		transfer = &models.PointsTransfer{
			Id:             uuid.New().String(),
			ConfirmationId: confirmation.Id,
			FromMerchantId: confirmation.Merchant1Id,
			ToMerchantId:   confirmation.Merchant2Id,
			PointsAmount:   amount,
			TransferFee:    fee,
			NetAmount:      amount.Sub(fee),
			Status:         models.TransferStatusPending,
			TransactionId:  c.newTransactionId(),
			CreatedAt:      ts,
		}
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return err
		}

		wallets, err := tx.GetWalletsForUpdate(ctx, transfer.FromMerchantId, transfer.ToMerchantId)
		if err != nil {
			return err
		}
		source, dest := wallets[transfer.FromMerchantId], wallets[transfer.ToMerchantId]

		meta := map[string]string{
			"transfer_id":     transfer.Id,
			"confirmation_id": confirmation.Id,
			"transfer_fee":    fee.String(),
		}
		debit, err := c.engine.Debit(ctx, tx, source, transfer.PointsAmount,
			"Deal transfer to "+transfer.ToMerchantId, transfer.TransactionId, meta)
		if err != nil {
			return err
		}
		credit, err := c.engine.Credit(ctx, tx, dest, transfer.NetAmount,
			"Deal transfer from "+transfer.FromMerchantId, transfer.TransactionId, meta)
		if err != nil {
			return err
		}

		if err := transitionTransfer(transfer, models.TransferStatusCompleted); err != nil {
			return err
		}
		transfer.TransferTime = &ts
		if err := tx.UpdateTransfer(ctx, transfer); err != nil {
			return err
		}

		if err := transitionConfirmation(confirmation, models.ConfirmationStatusCompleted); err != nil {
			return err
		}
		confirmation.CompletedTime = &ts
		if err := tx.UpdateConfirmation(ctx, confirmation); err != nil {
			return err
		}

		entries = append(entries, *debit, *credit)
		result = &models.TransferResult{
			TransferId:     transfer.Id,
			TransactionId:  transfer.TransactionId,
			PointsAmount:   transfer.PointsAmount,
			TransferFee:    transfer.TransferFee,
			NetAmount:      transfer.NetAmount,
			SourceBalance:  source.Balance,
			DestBalance:    dest.Balance,
			ConfirmationId: confirmation.Id,
		}
		return nil
	})
	if err != nil {
		logFailure("Deal transfer failed", err, zap.String("confirmation_id", confirmationId), zap.String("caller_id", callerId))
		if transfer != nil {
			c.recordFailedTransfer(ctx, transfer, err)
		}
		return nil, err
	}

	c.engine.Publish(ctx, entries...)

	zap.L().Info("Deal transfer completed",
		zap.String("confirmation_id", confirmationId),
		zap.String("transaction_id", result.TransactionId),
		zap.String("from", transfer.FromMerchantId),
		zap.String("to", transfer.ToMerchantId),
		zap.String("points_amount", result.PointsAmount.String()),
		zap.String("transfer_fee", result.TransferFee.String()),
		zap.String("net_amount", result.NetAmount.String()))
	return result, nil
}

// recordFailedTransfer persists the attempt after its unit of work rolled back
func (c *Coordinator) recordFailedTransfer(ctx context.Context, transfer *models.PointsTransfer, cause error) {
	failed := *transfer
	failed.Status = models.TransferStatusPending
	if err := transitionTransfer(&failed, models.TransferStatusFailed); err != nil {
		zap.L().Error("Unexpected transfer state", zap.String("transaction_id", transfer.TransactionId), zap.Error(err))
		return
	}
	failed.Notes = cause.Error()
	failed.TransferTime = nil

	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		confirmation, err := tx.GetConfirmationForUpdate(ctx, failed.ConfirmationId)
		if err != nil {
			return err
		}
		// settled or released meanwhile
		if ConfirmationPhase(confirmation.Status) != PhaseReserved {
			return nil
		}
		return tx.InsertTransfer(ctx, &failed)
	})
	if err != nil {
		zap.L().Error("Failed to record failed transfer",
			zap.String("transaction_id", failed.TransactionId),
			zap.Error(err))
		return
	}

	zap.L().Warn("Deal transfer recorded as failed",
		zap.String("confirmation_id", failed.ConfirmationId),
		zap.String("transaction_id", failed.TransactionId),
		zap.String("reason", failed.Notes))
}

// CancelConfirmation abandons a confirmation that has not been settled and
// gives its reserved points back to the deal
func (c *Coordinator) CancelConfirmation(ctx context.Context, confirmationId, callerId string) (decimal.Decimal, error) {
	var released decimal.Decimal
	err := c.engine.Store().WithTx(ctx, func(tx store.Tx) error {
		confirmation, err := tx.GetConfirmationForUpdate(ctx, confirmationId)
		if err != nil {
			return err
		}
		if !isParty(confirmation, callerId) {
			return fmt.Errorf("deal confirmation %s: %w", confirmationId, store.ErrNotOwner)
		}
		reserved := ConfirmationPhase(confirmation.Status) == PhaseReserved
		if err := transitionConfirmation(confirmation, models.ConfirmationStatusCancelled); err != nil {
			return err
		}
		if !reserved {
			return tx.UpdateConfirmation(ctx, confirmation)
		}

		deal, err := tx.GetDealForUpdate(ctx, confirmation.DealId)
		if err != nil {
			return err
		}
		released = decimal.Min(confirmation.PointsExchanged, deal.PointsUsed)
		deal.PointsUsed = deal.PointsUsed.Sub(released)
		if err := tx.UpdateDealPoints(ctx, deal); err != nil {
			return err
		}
		return tx.UpdateConfirmation(ctx, confirmation)
	})
	if err != nil {
		logFailure("Deal confirmation cancellation failed", err, zap.String("confirmation_id", confirmationId))
		return decimal.Zero, err
	}

	zap.L().Info("Deal confirmation cancelled",
		zap.String("confirmation_id", confirmationId),
		zap.String("caller_id", callerId),
		zap.String("points_released", released.String()))
	return released, nil
}

func isParty(c *models.DealConfirmation, merchantId string) bool {
	return c.Merchant1Id == merchantId || c.Merchant2Id == merchantId
}

func requireOpen(deal *models.Deal, now time.Time) error {
	if deal.Status != models.DealStatusActive {
		return fmt.Errorf("deal %s is %s: %w", deal.Id, deal.Status, store.ErrWrongStatus)
	}
	if deal.IsExpired(now) {
		return fmt.Errorf("deal %s: %w", deal.Id, store.ErrExpired)
	}
	return nil
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

func logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if store.IsExpected(err) {
		zap.L().Info(msg, fields...)
		return
	}
	zap.L().Error(msg, fields...)
}
