package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetWallet returns the wallet owned by a user
func (s *SubledgerService) GetWallet(ctx context.Context, userId string) (*models.Wallet, error) {
	wallet, err := getWalletByUser(ctx, s.db, userId)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Error("Failed to get wallet", zap.String("user_id", userId), zap.Error(err))
		}
		return nil, err
	}

	zap.L().Debug("Retrieved wallet", zap.String("user_id", userId), zap.String("balance", wallet.Balance.String()))
	return wallet, nil
}

// ListWallets returns every wallet, oldest first
func (s *SubledgerService) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, queryListWallets)
	if err != nil {
		zap.L().Error("Failed to list wallets", zap.Error(err))
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *wallet)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during wallet row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}

	zap.L().Debug("Retrieved wallets", zap.Int("count", len(wallets)))
	return wallets, nil
}

// ReconcileWallet verifies that the current balance matches the sum of all history entries
func (s *SubledgerService) ReconcileWallet(ctx context.Context, walletId string) error {
	zap.L().Info("Reconciling wallet", zap.String("wallet_id", walletId))

	// Read balance and history in one snapshot
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin reconciliation: %w", err)
	}
	defer tx.Rollback()

	wallet, err := scanWallet(tx.QueryRowContext(ctx, queryGetWalletById, walletId))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("wallet %s: %w", walletId, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	rows, err := tx.QueryContext(ctx, querySumHistoryAmounts, walletId)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from history: %w", err)
	}
	defer closeRows(rows)

	calculatedBalance := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return fmt.Errorf("failed to scan history amount: %w", err)
		}
		amount, err := parseDecimal("amount", amountStr)
		if err != nil {
			return err
		}
		calculatedBalance = calculatedBalance.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating history rows: %w", err)
	}

	// Check if balances match (exact decimal comparison)
	if !wallet.Balance.Equal(calculatedBalance) {
		zap.L().Error("Wallet reconciliation failed",
			zap.String("wallet_id", walletId),
			zap.String("current_balance", wallet.Balance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", wallet.Balance.Sub(calculatedBalance).String()))
		return fmt.Errorf("%w: current=%s, calculated=%s", store.ErrBalanceMismatch,
			wallet.Balance.String(), calculatedBalance.String())
	}

	zap.L().Info("Wallet reconciliation successful",
		zap.String("wallet_id", walletId),
		zap.String("balance", wallet.Balance.String()))
	return nil
}

// Subledger convenience methods

func (s *Service) GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error) {
	return s.subledger.GetWallet(ctx, userId)
}

func (s *Service) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	return s.subledger.ListWallets(ctx)
}

func (s *Service) GetWalletHistory(ctx context.Context, walletId string, limit, offset int) ([]models.WalletHistoryEntry, error) {
	return s.subledger.GetWalletHistory(ctx, walletId, limit, offset)
}

func (s *Service) ReconcileWallet(ctx context.Context, walletId string) error {
	return s.subledger.ReconcileWallet(ctx, walletId)
}
