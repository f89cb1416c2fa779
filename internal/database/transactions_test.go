package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestWithTx_RollbackOnError(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	wallet := createTestWallet(t, service, "user1")

	boom := errors.New("boom")
	err := service.WithTx(ctx, func(tx store.Tx) error {
		if err := applyEntry(ctx, tx, wallet, decimal.NewFromInt(100)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	stored, err := service.GetWalletByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("GetWalletByUser failed: %v", err)
	}
	if !stored.Balance.IsZero() {
		t.Errorf("Expected balance 0 after rollback, got %s", stored.Balance.String())
	}

	history, err := service.GetWalletHistory(ctx, wallet.Id, 10, 0)
	if err != nil {
		t.Fatalf("GetWalletHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no history after rollback, got %d entries", len(history))
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	wallet := createTestWallet(t, service, "user1")

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("Expected panic to propagate")
			}
		}()
		_ = service.WithTx(ctx, func(tx store.Tx) error {
			if err := applyEntry(ctx, tx, wallet, decimal.NewFromInt(100)); err != nil {
				return err
			}
			panic("crash between legs")
		})
	}()

	stored, err := service.GetWalletByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("GetWalletByUser failed: %v", err)
	}
	if !stored.Balance.IsZero() {
		t.Errorf("Expected balance 0 after panic, got %s", stored.Balance.String())
	}
}

func TestGetWalletHistory_Pagination(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	wallet := createTestWallet(t, service, "user1")

	err := service.WithTx(ctx, func(tx store.Tx) error {
		for i := 1; i <= 5; i++ {
			if err := applyEntry(ctx, tx, wallet, decimal.NewFromInt(int64(i))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to apply entries: %v", err)
	}

	page, err := service.GetWalletHistory(ctx, wallet.Id, 2, 0)
	if err != nil {
		t.Fatalf("GetWalletHistory failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(page))
	}
	// Newest first
	if !page[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected newest entry amount 5, got %s", page[0].Amount.String())
	}
	if !page[0].BalanceAfter.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected balance_after 15, got %s", page[0].BalanceAfter.String())
	}

	rest, err := service.GetWalletHistory(ctx, wallet.Id, 10, 2)
	if err != nil {
		t.Fatalf("GetWalletHistory failed: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("Expected 3 remaining entries, got %d", len(rest))
	}
}

func TestAppendHistory_MetaRoundTrip(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	wallet := createTestWallet(t, service, "user1")

	entry := &models.WalletHistoryEntry{
		Id:              uuid.New().String(),
		WalletId:        wallet.Id,
		TransactionType: models.EntryTypeCredit,
		Amount:          decimal.RequireFromString("12.34"),
		BalanceBefore:   decimal.Zero,
		BalanceAfter:    decimal.RequireFromString("12.34"),
		Note:            "Wallet recharge",
		ReferenceId:     "order_1",
		Meta:            map[string]string{"payment_id": "pay_1"},
		CreatedAt:       time.Now().UTC(),
	}
	err := service.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateWalletBalance(ctx, wallet.Id, entry.BalanceAfter, wallet.Version); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, entry)
	})
	if err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	history, err := service.GetWalletHistory(ctx, wallet.Id, 10, 0)
	if err != nil {
		t.Fatalf("GetWalletHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(history))
	}
	got := history[0]
	if got.ReferenceId != "order_1" || got.Note != "Wallet recharge" {
		t.Errorf("Unexpected reference fields: %q %q", got.ReferenceId, got.Note)
	}
	if got.Meta["payment_id"] != "pay_1" {
		t.Errorf("Expected meta payment_id pay_1, got %v", got.Meta)
	}

	var journalLines int
	if err := service.db.QueryRow("SELECT COUNT(*) FROM journal_entries WHERE history_id = ?", entry.Id).Scan(&journalLines); err != nil {
		t.Fatalf("Failed to count journal entries: %v", err)
	}
	if journalLines != 2 {
		t.Errorf("Expected 2 journal lines, got %d", journalLines)
	}
}

func TestPaymentTransaction_DuplicateOrder(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	wallet := createTestWallet(t, service, "user1")

	newPayment := func() *models.PaymentTransaction {
		ts := time.Now().UTC()
		return &models.PaymentTransaction{
			Id:          uuid.New().String(),
			UserId:      "user1",
			WalletId:    wallet.Id,
			OrderId:     "order_dup",
			Amount:      decimal.NewFromInt(5),
			PointsToAdd: decimal.NewFromInt(50),
			Currency:    "INR",
			Status:      models.PaymentStatusPending,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
	}

	insert := func(p *models.PaymentTransaction) error {
		return service.WithTx(ctx, func(tx store.Tx) error {
			return tx.InsertPaymentTransaction(ctx, p)
		})
	}

	if err := insert(newPayment()); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := insert(newPayment()); !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	stored, err := service.GetPaymentTransaction(ctx, "order_dup")
	if err != nil {
		t.Fatalf("GetPaymentTransaction failed: %v", err)
	}
	if stored.Status != models.PaymentStatusPending || !stored.PointsToAdd.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Unexpected stored payment: %+v", stored)
	}
}

func TestDealRequest_UniquePair(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestWallet(t, service, "owner")
	createTestWallet(t, service, "requester")

	ts := time.Now().UTC()
	deal := &models.Deal{
		Id: uuid.New().String(), MerchantId: "owner", PointsOffered: decimal.NewFromInt(100),
		PointsUsed: decimal.Zero, PointsRemaining: decimal.NewFromInt(100),
		Status: models.DealStatusActive, CreatedAt: ts, UpdatedAt: ts,
	}
	newRequest := func() *models.DealRequest {
		return &models.DealRequest{
			Id: uuid.New().String(), RequestingMerchantId: "requester", DealId: deal.Id,
			Status: models.RequestStatusPending, PointsRequested: decimal.NewFromInt(10),
			CreatedAt: ts, UpdatedAt: ts,
		}
	}

	err := service.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertDeal(ctx, deal); err != nil {
			return err
		}
		return tx.InsertDealRequest(ctx, newRequest())
	})
	if err != nil {
		t.Fatalf("Failed to insert deal and request: %v", err)
	}

	err = service.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertDealRequest(ctx, newRequest())
	})
	if !errors.Is(err, store.ErrDuplicateRequest) {
		t.Fatalf("Expected ErrDuplicateRequest, got %v", err)
	}
}
