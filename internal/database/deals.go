package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"go.uber.org/zap"
)

func scanDeal(row rowScanner) (*models.Deal, error) {
	var d models.Deal
	var offeredStr, usedStr, remainingStr string
	var expiry sql.NullTime
	if err := row.Scan(&d.Id, &d.MerchantId, &d.Title, &offeredStr, &usedStr, &remainingStr, &d.Status,
		&expiry, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if d.PointsOffered, err = parseDecimal("points_offered", offeredStr); err != nil {
		return nil, err
	}
	if d.PointsUsed, err = parseDecimal("points_used", usedStr); err != nil {
		return nil, err
	}
	if d.PointsRemaining, err = parseDecimal("points_remaining", remainingStr); err != nil {
		return nil, err
	}
	d.ExpiryDate = timePtr(expiry)
	return &d, nil
}

func getDeal(ctx context.Context, q querier, dealId string) (*models.Deal, error) {
	deal, err := scanDeal(q.QueryRowContext(ctx, queryGetDeal, dealId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal %s: %w", dealId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return deal, nil
}

func scanDealRequest(row rowScanner) (*models.DealRequest, error) {
	var r models.DealRequest
	var pointsStr string
	if err := row.Scan(&r.Id, &r.RequestingMerchantId, &r.DealId, &r.Status, &pointsStr, &r.Message,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	points, err := parseDecimal("points_requested", pointsStr)
	if err != nil {
		return nil, err
	}
	r.PointsRequested = points
	return &r, nil
}

func getDealRequest(ctx context.Context, q querier, requestId string) (*models.DealRequest, error) {
	request, err := scanDealRequest(q.QueryRowContext(ctx, queryGetDealRequest, requestId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal request %s: %w", requestId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal request: %w", err)
	}
	return request, nil
}

func scanConfirmation(row rowScanner) (*models.DealConfirmation, error) {
	var c models.DealConfirmation
	var pointsStr string
	var confirmed, completed sql.NullTime
	if err := row.Scan(&c.Id, &c.DealId, &c.DealRequestId, &c.Merchant1Id, &c.Merchant2Id, &c.Status,
		&pointsStr, &confirmed, &completed, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	points, err := parseDecimal("points_exchanged", pointsStr)
	if err != nil {
		return nil, err
	}
	c.PointsExchanged = points
	c.ConfirmationTime = timePtr(confirmed)
	c.CompletedTime = timePtr(completed)
	return &c, nil
}

func getConfirmation(ctx context.Context, q querier, confirmationId string) (*models.DealConfirmation, error) {
	confirmation, err := scanConfirmation(q.QueryRowContext(ctx, queryGetConfirmation, confirmationId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal confirmation %s: %w", confirmationId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal confirmation: %w", err)
	}
	return confirmation, nil
}

func scanTransfer(row rowScanner) (*models.PointsTransfer, error) {
	var tr models.PointsTransfer
	var amountStr, feeStr, netStr string
	var transferTime sql.NullTime
	if err := row.Scan(&tr.Id, &tr.ConfirmationId, &tr.FromMerchantId, &tr.ToMerchantId, &amountStr, &feeStr,
		&netStr, &tr.Status, &tr.TransactionId, &tr.Notes, &transferTime, &tr.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if tr.PointsAmount, err = parseDecimal("points_amount", amountStr); err != nil {
		return nil, err
	}
	if tr.TransferFee, err = parseDecimal("transfer_fee", feeStr); err != nil {
		return nil, err
	}
	if tr.NetAmount, err = parseDecimal("net_amount", netStr); err != nil {
		return nil, err
	}
	tr.TransferTime = timePtr(transferTime)
	return &tr, nil
}

func (t *txStore) InsertDeal(ctx context.Context, d *models.Deal) error {
	_, err := t.tx.ExecContext(ctx, queryInsertDeal, d.Id, d.MerchantId, d.Title, d.PointsOffered.String(),
		d.PointsUsed.String(), d.PointsRemaining.String(), d.Status, nullTime(d.ExpiryDate), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deal: %w", err)
	}
	return nil
}

func (t *txStore) GetDealForUpdate(ctx context.Context, dealId string) (*models.Deal, error) {
	return getDeal(ctx, t.tx, dealId)
}

// UpdateDealPoints persists points_used, the derived points_remaining and status
func (t *txStore) UpdateDealPoints(ctx context.Context, d *models.Deal) error {
	d.PointsRemaining = d.PointsOffered.Sub(d.PointsUsed)
	d.UpdatedAt = utcNow()
	return execOne(ctx, t.tx, "deal "+d.Id, queryUpdateDealPoints,
		d.PointsUsed.String(), d.PointsRemaining.String(), d.Status, d.UpdatedAt, d.Id)
}

func (t *txStore) InsertDealRequest(ctx context.Context, r *models.DealRequest) error {
	_, err := t.tx.ExecContext(ctx, queryInsertDealRequest, r.Id, r.RequestingMerchantId, r.DealId, r.Status,
		r.PointsRequested.String(), r.Message, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("deal %s: %w", r.DealId, store.ErrDuplicateRequest)
		}
		return fmt.Errorf("failed to insert deal request: %w", err)
	}
	return nil
}

func (t *txStore) GetDealRequestForUpdate(ctx context.Context, requestId string) (*models.DealRequest, error) {
	return getDealRequest(ctx, t.tx, requestId)
}

func (t *txStore) DealRequestExists(ctx context.Context, requestingMerchantId, dealId string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, queryDealRequestExists, requestingMerchantId, dealId).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existing deal request: %w", err)
	}
	return true, nil
}

func (t *txStore) UpdateDealRequestStatus(ctx context.Context, requestId, status string) error {
	return execOne(ctx, t.tx, "deal request "+requestId, queryUpdateDealRequestStatus, status, utcNow(), requestId)
}

func (t *txStore) InsertConfirmation(ctx context.Context, c *models.DealConfirmation) error {
	_, err := t.tx.ExecContext(ctx, queryInsertConfirmation, c.Id, c.DealId, c.DealRequestId, c.Merchant1Id,
		c.Merchant2Id, c.Status, c.PointsExchanged.String(), nullTime(c.ConfirmationTime), nullTime(c.CompletedTime),
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("confirmation for request %s: %w", c.DealRequestId, store.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert deal confirmation: %w", err)
	}
	return nil
}

func (t *txStore) GetConfirmationForUpdate(ctx context.Context, confirmationId string) (*models.DealConfirmation, error) {
	return getConfirmation(ctx, t.tx, confirmationId)
}

func (t *txStore) UpdateConfirmation(ctx context.Context, c *models.DealConfirmation) error {
	c.UpdatedAt = utcNow()
	return execOne(ctx, t.tx, "deal confirmation "+c.Id, queryUpdateConfirmation,
		c.Status, nullTime(c.ConfirmationTime), nullTime(c.CompletedTime), c.UpdatedAt, c.Id)
}

func (t *txStore) InsertTransfer(ctx context.Context, tr *models.PointsTransfer) error {
	_, err := t.tx.ExecContext(ctx, queryInsertTransfer, tr.Id, tr.ConfirmationId, tr.FromMerchantId,
		tr.ToMerchantId, tr.PointsAmount.String(), tr.TransferFee.String(), tr.NetAmount.String(), tr.Status,
		tr.TransactionId, tr.Notes, nullTime(tr.TransferTime), tr.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transfer %s: %w", tr.TransactionId, store.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert points transfer: %w", err)
	}
	return nil
}

func (t *txStore) UpdateTransfer(ctx context.Context, tr *models.PointsTransfer) error {
	return execOne(ctx, t.tx, "points transfer "+tr.Id, queryUpdateTransfer,
		tr.Status, tr.Notes, nullTime(tr.TransferTime), tr.Id)
}

func (s *Service) GetDeal(ctx context.Context, dealId string) (*models.Deal, error) {
	return getDeal(ctx, s.db, dealId)
}

func (s *Service) GetDealRequest(ctx context.Context, requestId string) (*models.DealRequest, error) {
	return getDealRequest(ctx, s.db, requestId)
}

func (s *Service) GetConfirmation(ctx context.Context, confirmationId string) (*models.DealConfirmation, error) {
	return getConfirmation(ctx, s.db, confirmationId)
}

func (s *Service) ListTransfersForConfirmation(ctx context.Context, confirmationId string) ([]models.PointsTransfer, error) {
	rows, err := s.db.QueryContext(ctx, queryListTransfersForConfirmation, confirmationId)
	if err != nil {
		zap.L().Error("Failed to list transfers", zap.String("confirmation_id", confirmationId), zap.Error(err))
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer closeRows(rows)

	var transfers []models.PointsTransfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, *transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer rows: %w", err)
	}
	return transfers, nil
}
