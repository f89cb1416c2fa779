package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"go.uber.org/zap"
)

// GetWalletHistory returns history entries newest first
func (s *SubledgerService) GetWalletHistory(ctx context.Context, walletId string, limit, offset int) ([]models.WalletHistoryEntry, error) {
	zap.L().Debug("Getting wallet history",
		zap.String("wallet_id", walletId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetWalletHistory, walletId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get wallet history", zap.String("wallet_id", walletId), zap.Error(err))
		return nil, fmt.Errorf("failed to get wallet history: %w", err)
	}
	defer closeRows(rows)

	var entries []models.WalletHistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during history row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	zap.L().Debug("Retrieved wallet history", zap.String("wallet_id", walletId), zap.Int("count", len(entries)))
	return entries, nil
}

func scanPayment(row rowScanner) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	var amountStr, pointsStr, notesStr string
	if err := row.Scan(&p.Id, &p.UserId, &p.WalletId, &p.OrderId, &p.PaymentId, &p.Signature,
		&amountStr, &pointsStr, &p.Currency, &p.Status, &p.Description, &p.Receipt, &notesStr,
		&p.ErrorCode, &p.ErrorDescription, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.Amount, err = parseDecimal("amount", amountStr); err != nil {
		return nil, err
	}
	if p.PointsToAdd, err = parseDecimal("points_to_add", pointsStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(notesStr), &p.Notes); err != nil {
		return nil, fmt.Errorf("failed to parse notes: %w", err)
	}
	return &p, nil
}

func getPayment(ctx context.Context, q querier, orderId string) (*models.PaymentTransaction, error) {
	payment, err := scanPayment(q.QueryRowContext(ctx, queryGetPaymentByOrder, orderId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment order %s: %w", orderId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return payment, nil
}

func (t *txStore) InsertPaymentTransaction(ctx context.Context, p *models.PaymentTransaction) error {
	notes := p.Notes
	if notes == nil {
		notes = map[string]string{}
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, queryInsertPayment,
		p.Id, p.UserId, p.WalletId, p.OrderId, p.PaymentId, p.Signature,
		p.Amount.String(), p.PointsToAdd.String(), p.Currency, p.Status, p.Description, p.Receipt,
		string(notesJSON), p.ErrorCode, p.ErrorDescription, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment order %s: %w", p.OrderId, store.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}
	return nil
}

func (t *txStore) GetPaymentTransactionForUpdate(ctx context.Context, orderId string) (*models.PaymentTransaction, error) {
	return getPayment(ctx, t.tx, orderId)
}

func (t *txStore) UpdatePaymentTransaction(ctx context.Context, p *models.PaymentTransaction) error {
	p.UpdatedAt = utcNow()
	return execOne(ctx, t.tx, "payment transaction "+p.Id, queryUpdatePayment,
		p.PaymentId, p.Signature, p.Status, p.ErrorCode, p.ErrorDescription, p.UpdatedAt, p.Id)
}

func (s *Service) GetPaymentTransaction(ctx context.Context, orderId string) (*models.PaymentTransaction, error) {
	return getPayment(ctx, s.db, orderId)
}

func (s *Service) ListPaymentTransactions(ctx context.Context, userId string, limit, offset int) ([]models.PaymentTransaction, error) {
	rows, err := s.db.QueryContext(ctx, queryListUserPayments, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to list payment transactions", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer closeRows(rows)

	var payments []models.PaymentTransaction
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}
