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

func scanVoucher(row rowScanner) (*models.Voucher, error) {
	var v models.Voucher
	if err := row.Scan(&v.Id, &v.MerchantId, &v.Title, &v.IsGiftCard, &v.Count, &v.PurchaseCount,
		&v.RedemptionCount, &v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func getVoucher(ctx context.Context, q querier, voucherId string) (*models.Voucher, error) {
	voucher, err := scanVoucher(q.QueryRowContext(ctx, queryGetVoucher, voucherId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("voucher %s: %w", voucherId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return voucher, nil
}

func scanPurchase(row rowScanner) (*models.VoucherPurchase, error) {
	var p models.VoucherPurchase
	var costStr string
	var redeemedAt sql.NullTime
	if err := row.Scan(&p.Id, &p.UserId, &p.VoucherId, &p.PurchaseReference, &costStr, &p.Active, &p.Status,
		&p.PurchasedAt, &redeemedAt, &p.RedemptionLocation, &p.ExpiryDate, &p.RemainingRedemptions,
		&p.WalletTransactionId); err != nil {
		return nil, err
	}

	cost, err := parseDecimal("purchase_cost", costStr)
	if err != nil {
		return nil, err
	}
	p.PurchaseCost = cost
	p.RedeemedAt = timePtr(redeemedAt)
	return &p, nil
}

func getPurchase(ctx context.Context, q querier, referenceOrId string) (*models.VoucherPurchase, error) {
	purchase, err := scanPurchase(q.QueryRowContext(ctx, queryGetPurchase, referenceOrId, referenceOrId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase %s: %w", referenceOrId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return purchase, nil
}

func (t *txStore) InsertVoucher(ctx context.Context, v *models.Voucher) error {
	_, err := t.tx.ExecContext(ctx, queryInsertVoucher, v.Id, v.MerchantId, v.Title, v.IsGiftCard, v.Count,
		v.PurchaseCount, v.RedemptionCount, v.Active, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert voucher: %w", err)
	}
	return nil
}

func (t *txStore) GetVoucherForUpdate(ctx context.Context, voucherId string) (*models.Voucher, error) {
	return getVoucher(ctx, t.tx, voucherId)
}

func (t *txStore) IncrementVoucherPurchaseCount(ctx context.Context, voucherId string) error {
	return execOne(ctx, t.tx, "voucher "+voucherId, queryIncrementPurchaseCount, utcNow(), voucherId)
}

func (t *txStore) IncrementVoucherRedemptionCount(ctx context.Context, voucherId string, quantity int) error {
	return execOne(ctx, t.tx, "voucher "+voucherId, queryIncrementRedemptionCount, quantity, utcNow(), voucherId)
}

func (t *txStore) PurchaseExists(ctx context.Context, userId, voucherId string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, queryPurchaseExists, userId, voucherId).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existing purchase: %w", err)
	}
	return true, nil
}

func (t *txStore) InsertPurchase(ctx context.Context, p *models.VoucherPurchase) error {
	_, err := t.tx.ExecContext(ctx, queryInsertPurchase, p.Id, p.UserId, p.VoucherId, p.PurchaseReference,
		p.PurchaseCost.String(), p.Active, p.Status, p.PurchasedAt, nullTime(p.RedeemedAt), p.RedemptionLocation,
		p.ExpiryDate, p.RemainingRedemptions, p.WalletTransactionId)
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Error("Purchase insert violated a unique constraint",
				zap.String("purchase_reference", p.PurchaseReference),
				zap.Error(err))
			return fmt.Errorf("purchase %s: %w", p.PurchaseReference, store.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return nil
}

func (t *txStore) GetPurchaseForUpdate(ctx context.Context, referenceOrId string) (*models.VoucherPurchase, error) {
	return getPurchase(ctx, t.tx, referenceOrId)
}

func (t *txStore) UpdatePurchaseRedemption(ctx context.Context, p *models.VoucherPurchase) error {
	return execOne(ctx, t.tx, "purchase "+p.Id, queryUpdatePurchaseRedemption,
		p.Status, nullTime(p.RedeemedAt), p.RedemptionLocation, p.RemainingRedemptions, p.Id)
}

func (s *Service) GetVoucher(ctx context.Context, voucherId string) (*models.Voucher, error) {
	return getVoucher(ctx, s.db, voucherId)
}

func (s *Service) GetPurchase(ctx context.Context, referenceOrId string) (*models.VoucherPurchase, error) {
	return getPurchase(ctx, s.db, referenceOrId)
}

func (s *Service) ListUserPurchases(ctx context.Context, userId string) ([]models.VoucherPurchase, error) {
	rows, err := s.db.QueryContext(ctx, queryListUserPurchases, userId)
	if err != nil {
		zap.L().Error("Failed to list purchases", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer closeRows(rows)

	var purchases []models.VoucherPurchase
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase rows: %w", err)
	}
	return purchases, nil
}
