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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Journal account types
const (
	accountTypeWallet   = "wallet"
	accountTypePlatform = "platform"
	platformAccountId   = "points"
)

// SubledgerService owns the wallet tables: balances (hot data) and the
// append-only history (cold data).
type SubledgerService struct {
	db *sql.DB
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db: db,
	}
}

func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Wallets Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
		balance TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Wallet History Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS wallet_history (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		transaction_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference_note TEXT NOT NULL DEFAULT '',
		reference_id TEXT NOT NULL DEFAULT '',
		meta TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_history_wallet ON wallet_history(wallet_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_wallet_history_reference ON wallet_history(reference_id);

	-- Double-entry journal mirroring every history row
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		history_id TEXT NOT NULL REFERENCES wallet_history(id),
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_history_id ON journal_entries(history_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var wallet models.Wallet
	var balanceStr string
	if err := row.Scan(&wallet.Id, &wallet.UserId, &balanceStr, &wallet.Active, &wallet.Version,
		&wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
		return nil, err
	}

	balance, err := parseDecimal("balance", balanceStr)
	if err != nil {
		return nil, err
	}
	wallet.Balance = balance
	return &wallet, nil
}

func scanHistoryEntry(row rowScanner) (*models.WalletHistoryEntry, error) {
	var entry models.WalletHistoryEntry
	var amountStr, beforeStr, afterStr, metaStr string
	if err := row.Scan(&entry.Id, &entry.WalletId, &entry.TransactionType, &amountStr, &beforeStr, &afterStr,
		&entry.Note, &entry.ReferenceId, &metaStr, &entry.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if entry.Amount, err = parseDecimal("amount", amountStr); err != nil {
		return nil, err
	}
	if entry.BalanceBefore, err = parseDecimal("balance_before", beforeStr); err != nil {
		return nil, err
	}
	if entry.BalanceAfter, err = parseDecimal("balance_after", afterStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaStr), &entry.Meta); err != nil {
		return nil, fmt.Errorf("failed to parse meta: %w", err)
	}
	return &entry, nil
}

func getWalletByUser(ctx context.Context, q querier, userId string) (*models.Wallet, error) {
	wallet, err := scanWallet(q.QueryRowContext(ctx, queryGetWalletByUser, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet for user %s: %w", userId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// txStore implements store.Tx on top of one *sql.Tx
type txStore struct {
	tx *sql.Tx
}

var _ store.Tx = (*txStore)(nil)

func (t *txStore) GetWalletByUserForUpdate(ctx context.Context, userId string) (*models.Wallet, error) {
	return getWalletByUser(ctx, t.tx, userId)
}

func (t *txStore) GetWalletsForUpdate(ctx context.Context, userIds ...string) (map[string]*models.Wallet, error) {
	// Resolve ids first, then lock in ascending wallet id order
	byUser := make(map[string]*models.Wallet, len(userIds))
	for _, userId := range userIds {
		if _, seen := byUser[userId]; seen {
			continue
		}
		wallet, err := getWalletByUser(ctx, t.tx, userId)
		if err != nil {
			return nil, err
		}
		byUser[userId] = wallet
	}

	ordered := make([]*models.Wallet, 0, len(byUser))
	for _, wallet := range byUser {
		ordered = append(ordered, wallet)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Id < ordered[j].Id })

	locked := make(map[string]*models.Wallet, len(ordered))
	for _, wallet := range ordered {
		fresh, err := scanWallet(t.tx.QueryRowContext(ctx, queryGetWalletById, wallet.Id))
		if err != nil {
			return nil, fmt.Errorf("failed to lock wallet %s: %w", wallet.Id, err)
		}
		locked[fresh.UserId] = fresh
	}
	return locked, nil
}

func (t *txStore) InsertWallet(ctx context.Context, wallet *models.Wallet) error {
	_, err := t.tx.ExecContext(ctx, queryInsertWallet, wallet.Id, wallet.UserId, wallet.Balance.String(),
		wallet.Active, wallet.Version, wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", wallet.UserId, store.ErrWalletExists)
		}
		return fmt.Errorf("failed to insert wallet: %w", err)
	}
	return nil
}

// UpdateWalletBalance writes a new balance with optimistic locking on version
func (t *txStore) UpdateWalletBalance(ctx context.Context, walletId string, balance decimal.Decimal, version int64) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateWalletBalance, balance.String(), utcNow(), walletId, version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}
	return nil
}

func (t *txStore) SetWalletActive(ctx context.Context, walletId string, active bool) error {
	return execOne(ctx, t.tx, "wallet "+walletId, querySetWalletActive, active, utcNow(), walletId)
}

func (t *txStore) AppendHistory(ctx context.Context, entry *models.WalletHistoryEntry) error {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode meta: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, queryInsertHistory,
		entry.Id, entry.WalletId, entry.TransactionType,
		entry.Amount.String(), entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		entry.Note, entry.ReferenceId, string(metaJSON), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	if err := t.addJournalEntries(ctx, entry); err != nil {
		return fmt.Errorf("failed to add journal entries: %w", err)
	}
	return nil
}

// addJournalEntries books the history row against the platform points account
func (t *txStore) addJournalEntries(ctx context.Context, entry *models.WalletHistoryEntry) error {
	amount := entry.Amount.Abs().String()

	walletDebit, walletCredit := "0", amount
	if entry.Amount.IsNegative() {
		walletDebit, walletCredit = amount, "0"
	}

	lines := []struct {
		accountType, accountId, debit, credit string
	}{
		{accountTypeWallet, entry.WalletId, walletDebit, walletCredit},
		{accountTypePlatform, platformAccountId, walletCredit, walletDebit},
	}

	for _, line := range lines {
		_, err := t.tx.ExecContext(ctx, queryInsertJournalEntry, uuid.New().String(), entry.Id,
			line.accountType, line.accountId, line.debit, line.credit, entry.CreatedAt)
		if err != nil {
			return err
		}
	}

	zap.L().Debug("Journal entries created",
		zap.String("history_id", entry.Id),
		zap.String("wallet_id", entry.WalletId),
		zap.String("amount", entry.Amount.String()))
	return nil
}

func (t *txStore) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return getUserById(ctx, t.tx, userId)
}
