package formance

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"voucher-wallet-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestPointsAsset(t *testing.T) {
	if got := pointsAsset(); got != "PTS/2" {
		t.Errorf("pointsAsset() = %q, want PTS/2", got)
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		points string
		want   string
	}{
		{"10", "1000"},
		{"0.01", "1"},
		{"1234.56", "123456"},
	}
	for _, tt := range tests {
		if got := toMinorUnits(decimal.RequireFromString(tt.points)); got != tt.want {
			t.Errorf("toMinorUnits(%s) = %s, want %s", tt.points, got, tt.want)
		}
	}

	if got := fromMinorUnits(big.NewInt(123456)); !got.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("fromMinorUnits(123456) = %s", got)
	}
	if !fromMinorUnits(nil).IsZero() {
		t.Error("nil should be zero")
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		"PTS/2": {Input: big.NewInt(5000), Output: big.NewInt(1500)},
	}
	if got := volumeBalance(vols, "PTS/2"); got.Cmp(big.NewInt(3500)) != 0 {
		t.Errorf("volumeBalance = %s, want 3500", got)
	}
	if volumeBalance(vols, "USD/2") != nil {
		t.Error("missing asset should be nil")
	}
}

func TestBuildPostTransaction(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	credit := &models.WalletHistoryEntry{
		Id:              "entry-1",
		WalletId:        "wallet-1",
		TransactionType: models.EntryTypeCredit,
		Amount:          decimal.RequireFromString("50"),
		BalanceAfter:    decimal.RequireFromString("1050"),
		ReferenceId:     "order_1",
		CreatedAt:       created,
	}

	postTx, err := buildPostTransaction(credit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *postTx.Reference != "entry-1" {
		t.Errorf("reference = %s", *postTx.Reference)
	}
	if !strings.Contains(postTx.Script.Plain, "@world") {
		t.Error("credit should draw from @world")
	}
	if postTx.Script.Vars["amount"] != "5000" || postTx.Script.Vars["wallet_id"] != "wallet-1" {
		t.Errorf("unexpected vars %v", postTx.Script.Vars)
	}
	if postTx.Timestamp == nil || !postTx.Timestamp.Equal(created) {
		t.Error("timestamp should be the entry creation time")
	}

	debit := *credit
	debit.Id = "entry-2"
	debit.TransactionType = models.EntryTypeDebit
	debit.Amount = decimal.RequireFromString("-10.5")

	postTx, err = buildPostTransaction(&debit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(postTx.Script.Plain, "@platform:spent") {
		t.Error("debit should go to @platform:spent")
	}
	if postTx.Script.Vars["amount"] != "1050" {
		t.Errorf("debit amount = %s, want 1050", postTx.Script.Vars["amount"])
	}

	debit.TransactionType = "refund"
	if _, err := buildPostTransaction(&debit); err == nil {
		t.Error("unknown entry type should fail")
	}
}

func TestIsConflictError(t *testing.T) {
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isConflictError(errors.New("boom")) {
		t.Error("plain error should not be a conflict error")
	}

	conflict := &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumConflict}
	if !isConflictError(fmt.Errorf("post: %w", conflict)) {
		t.Error("wrapped conflict should be detected")
	}
	if isNotFoundError(conflict) {
		t.Error("conflict is not a not-found error")
	}
}
