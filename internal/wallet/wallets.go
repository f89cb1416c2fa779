package wallet

import (
	"context"
	"errors"
	"fmt"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	OpeningBalanceNote = "Opening balance"
	recentEntries      = 5
	defaultHistorySize = 20
	maxHistorySize     = 100
)

// ProvisionWallet creates the wallet of an existing user. A positive opening
// balance is booked as a credit so the history sums to the balance from the
// first row.
func (e *Engine) ProvisionWallet(ctx context.Context, userId string, openingBalance decimal.Decimal) (*models.Wallet, error) {
	if openingBalance.IsNegative() || !openingBalance.Equal(openingBalance.Round(pointsScale)) {
		return nil, fmt.Errorf("%w: opening balance %s", store.ErrInvalidAmount, openingBalance.String())
	}

	zap.L().Info("Provisioning wallet",
		zap.String("user_id", userId),
		zap.String("opening_balance", openingBalance.String()))

	var wallet *models.Wallet
	var entries []models.WalletHistoryEntry
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUserById(ctx, userId); err != nil {
			return err
		}

		if _, err := tx.GetWalletByUserForUpdate(ctx, userId); err == nil {
			return fmt.Errorf("user %s: %w", userId, store.ErrWalletExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		ts := e.now()
		wallet = &models.Wallet{
			Id:        uuid.New().String(),
			UserId:    userId,
			Balance:   decimal.Zero,
			Active:    true,
			Version:   1,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if err := tx.InsertWallet(ctx, wallet); err != nil {
			return err
		}

		if openingBalance.IsZero() {
			return nil
		}
		entry, err := e.Credit(ctx, tx, wallet, openingBalance, OpeningBalanceNote, wallet.Id, nil)
		if err != nil {
			return err
		}
		entries = append(entries, *entry)
		return nil
	})
	if err != nil {
		zap.L().Warn("Wallet provisioning failed", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}

	e.Publish(ctx, entries...)

	zap.L().Info("Wallet provisioned",
		zap.String("user_id", userId),
		zap.String("wallet_id", wallet.Id),
		zap.String("balance", wallet.Balance.String()))
	return wallet, nil
}

// SetActive freezes or unfreezes a wallet. Inactive wallets reject credits and debits.
func (e *Engine) SetActive(ctx context.Context, userId string, active bool) error {
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		wallet, err := tx.GetWalletByUserForUpdate(ctx, userId)
		if err != nil {
			return err
		}
		return tx.SetWalletActive(ctx, wallet.Id, active)
	})
	if err != nil {
		return err
	}

	zap.L().Info("Wallet status changed", zap.String("user_id", userId), zap.Bool("active", active))
	return nil
}

// Summary returns the balance and the most recent history entries
func (e *Engine) Summary(ctx context.Context, userId string) (*models.WalletSummary, error) {
	wallet, err := e.store.GetWalletByUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	recent, err := e.store.GetWalletHistory(ctx, wallet.Id, recentEntries, 0)
	if err != nil {
		return nil, err
	}

	return &models.WalletSummary{
		WalletId:      wallet.Id,
		UserId:        wallet.UserId,
		Balance:       wallet.Balance,
		Active:        wallet.Active,
		RecentEntries: recent,
	}, nil
}

// History returns a page of history entries, newest first. A limit outside
// 1..100 falls back to 20.
func (e *Engine) History(ctx context.Context, userId string, limit, offset int) ([]models.WalletHistoryEntry, error) {
	if limit <= 0 || limit > maxHistorySize {
		limit = defaultHistorySize
	}
	if offset < 0 {
		offset = 0
	}

	wallet, err := e.store.GetWalletByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	return e.store.GetWalletHistory(ctx, wallet.Id, limit, offset)
}

// Reconcile checks that the user's balance equals the sum of its history
func (e *Engine) Reconcile(ctx context.Context, userId string) error {
	wallet, err := e.store.GetWalletByUser(ctx, userId)
	if err != nil {
		return err
	}
	return e.store.ReconcileWallet(ctx, wallet.Id)
}
