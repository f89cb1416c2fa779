// Package testutil opens throwaway SQLite ledgers for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voucher-wallet-go/internal/database"
	"voucher-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// NewLedger opens a file-backed ledger in a temp dir and closes it when the test ends.
// File-backed so concurrent units of work share one database.
func NewLedger(t *testing.T) *database.Service {
	t.Helper()

	cfg := models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     time.Second,
		BusyTimeout:     10 * time.Second,
	}

	svc, err := database.NewService(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

// CreateUser inserts a user with the given id
func CreateUser(t *testing.T, svc *database.Service, userId string, merchant bool) *models.User {
	t.Helper()

	user, err := svc.CreateUser(context.Background(), userId, "User "+userId, userId+"@example.com", merchant)
	require.NoError(t, err)
	return user
}

// Points parses a decimal literal
func Points(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// RequireBalance asserts the wallet balance of a user
func RequireBalance(t *testing.T, svc *database.Service, userId, want string) {
	t.Helper()

	wallet, err := svc.GetWalletByUser(context.Background(), userId)
	require.NoError(t, err)
	require.True(t, wallet.Balance.Equal(Points(want)),
		"balance of %s: want %s, got %s", userId, want, wallet.Balance.String())
}

// RequireReconciled asserts balance == sum(history) for a user
func RequireReconciled(t *testing.T, svc *database.Service, userId string) {
	t.Helper()

	wallet, err := svc.GetWalletByUser(context.Background(), userId)
	require.NoError(t, err)
	require.NoError(t, svc.ReconcileWallet(context.Background(), wallet.Id))
}
