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
	"errors"
	"fmt"
	"time"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

// querier is the subset shared by *sql.DB and *sql.Tx so the read helpers
// serve both the read side and a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if cfg.BusyTimeout <= 0 {
		return nil, fmt.Errorf("busy timeout must be positive, got %v", cfg.BusyTimeout)
	}

	// _txlock=immediate takes the write lock at BEGIN, so every unit of work
	// holds its rows locked until commit or rollback.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	subledger := NewSubledgerService(db)
	service := &Service{db: db, subledger: subledger}

	// Wallets and history first, the domain tables reference them
	if err := subledger.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize subledger schema: %w", err)
	}

	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// WithTx runs fn inside one database transaction
func (s *Service) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			zap.L().Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) initSchema() error {
	schema := `
	-- Create users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		is_merchant BOOLEAN NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- Funding attempts keyed by the gateway order id
	CREATE TABLE IF NOT EXISTS payment_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		order_id TEXT NOT NULL UNIQUE,
		payment_id TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		points_to_add TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		description TEXT NOT NULL DEFAULT '',
		receipt TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '{}',
		error_code TEXT NOT NULL DEFAULT '',
		error_description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_transactions_user ON payment_transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_payment_transactions_status ON payment_transactions(status);

	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		is_gift_card BOOLEAN NOT NULL DEFAULT 0,
		count INTEGER NOT NULL DEFAULT 0,
		purchase_count INTEGER NOT NULL DEFAULT 0,
		redemption_count INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vouchers_merchant ON vouchers(merchant_id);

	CREATE TABLE IF NOT EXISTS voucher_purchases (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		voucher_id TEXT NOT NULL REFERENCES vouchers(id),
		purchase_reference TEXT NOT NULL UNIQUE,
		purchase_cost TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		purchase_status TEXT NOT NULL DEFAULT 'purchased',
		purchased_at TIMESTAMP NOT NULL,
		redeemed_at TIMESTAMP,
		redemption_location TEXT NOT NULL DEFAULT '',
		expiry_date TIMESTAMP NOT NULL,
		remaining_redemptions INTEGER NOT NULL DEFAULT 1,
		wallet_transaction_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_voucher_purchases_user ON voucher_purchases(user_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_voucher_purchases_active_pair
		ON voucher_purchases(user_id, voucher_id) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS deals (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL DEFAULT '',
		points_offered TEXT NOT NULL,
		points_used TEXT NOT NULL DEFAULT '0',
		points_remaining TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		expiry_date TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deals_merchant ON deals(merchant_id);

	CREATE TABLE IF NOT EXISTS deal_requests (
		id TEXT PRIMARY KEY,
		requesting_merchant_id TEXT NOT NULL REFERENCES users(id),
		deal_id TEXT NOT NULL REFERENCES deals(id),
		status TEXT NOT NULL DEFAULT 'pending',
		points_requested TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(requesting_merchant_id, deal_id)
	);

	CREATE TABLE IF NOT EXISTS deal_confirmations (
		id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL REFERENCES deals(id),
		deal_request_id TEXT NOT NULL UNIQUE REFERENCES deal_requests(id),
		merchant1_id TEXT NOT NULL REFERENCES users(id),
		merchant2_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'pending',
		points_exchanged TEXT NOT NULL,
		confirmation_time TIMESTAMP,
		completed_time TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS points_transfers (
		id TEXT PRIMARY KEY,
		confirmation_id TEXT NOT NULL REFERENCES deal_confirmations(id),
		from_merchant_id TEXT NOT NULL REFERENCES users(id),
		to_merchant_id TEXT NOT NULL REFERENCES users(id),
		points_amount TEXT NOT NULL,
		transfer_fee TEXT NOT NULL DEFAULT '0',
		net_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		transaction_id TEXT NOT NULL UNIQUE,
		notes TEXT NOT NULL DEFAULT '',
		transfer_time TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_points_transfers_confirmation ON points_transfers(confirmation_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func parseDecimal(column, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s '%s': %w", column, value, err)
	}
	return d, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// isUniqueViolation reports whether err is a SQLite unique or primary key violation
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

// execOne runs a single-row write and maps zero affected rows to store.ErrNotFound
func execOne(ctx context.Context, q querier, what, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
