package wallet

import (
	"context"
	"fmt"
	"time"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Points carry at most two decimal places.
const pointsScale = 2

// EntrySink receives history entries after the unit of work that wrote them
// has committed. Implementations must not fail the caller.
type EntrySink interface {
	Publish(ctx context.Context, entries []models.WalletHistoryEntry)
}

// Engine is the sole mutator of wallet balances.
type Engine struct {
	store store.LedgerStore
	sink  EntrySink
	now   func() time.Time
}

type Option func(*Engine)

// WithSink mirrors committed history entries to sink
func WithSink(sink EntrySink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(ledger store.LedgerStore, opts ...Option) *Engine {
	e := &Engine{
		store: ledger,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the ledger store the engine writes to
func (e *Engine) Store() store.LedgerStore {
	return e.store
}

// Now returns the engine's current time
func (e *Engine) Now() time.Time {
	return e.now()
}

// ValidateAmount requires a positive amount with at most two decimal places
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be positive, got %s", store.ErrInvalidAmount, amount.String())
	}
	if !amount.Equal(amount.Round(pointsScale)) {
		return fmt.Errorf("%w: more than %d decimal places in %s", store.ErrInvalidAmount, pointsScale, amount.String())
	}
	return nil
}

// Credit increases the wallet balance by amount inside tx and appends a
// credit history entry. There is no upper bound.
func (e *Engine) Credit(ctx context.Context, tx store.Tx, wallet *models.Wallet, amount decimal.Decimal,
	note, refId string, meta map[string]string) (*models.WalletHistoryEntry, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return e.apply(ctx, tx, wallet, models.EntryTypeCredit, amount, note, refId, meta)
}

// Debit decreases the wallet balance by amount inside tx and appends a debit
// history entry. It fails with store.ErrInsufficientBalance, leaving the
// wallet untouched, when the balance cannot cover amount.
func (e *Engine) Debit(ctx context.Context, tx store.Tx, wallet *models.Wallet, amount decimal.Decimal,
	note, refId string, meta map[string]string) (*models.WalletHistoryEntry, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(amount) {
		zap.L().Info("Debit rejected for insufficient balance",
			zap.String("wallet_id", wallet.Id),
			zap.String("balance", wallet.Balance.String()),
			zap.String("amount", amount.String()),
			zap.String("reference_id", refId))
		return nil, fmt.Errorf("debit wallet %s: %w", wallet.Id, store.ErrInsufficientBalance)
	}
	return e.apply(ctx, tx, wallet, models.EntryTypeDebit, amount.Neg(), note, refId, meta)
}

func (e *Engine) apply(ctx context.Context, tx store.Tx, wallet *models.Wallet, entryType string,
	signed decimal.Decimal, note, refId string, meta map[string]string) (*models.WalletHistoryEntry, error) {
	if !wallet.Active {
		return nil, fmt.Errorf("wallet %s: %w", wallet.Id, store.ErrWalletInactive)
	}

	before := wallet.Balance
	after := before.Add(signed)

	if err := tx.UpdateWalletBalance(ctx, wallet.Id, after, wallet.Version); err != nil {
		return nil, err
	}

	entry := &models.WalletHistoryEntry{
		Id:              uuid.New().String(),
		WalletId:        wallet.Id,
		TransactionType: entryType,
		Amount:          signed,
		BalanceBefore:   before,
		BalanceAfter:    after,
		Note:            note,
		ReferenceId:     refId,
		Meta:            withOperationMeta(ctx, meta),
		CreatedAt:       e.now(),
	}
	if err := tx.AppendHistory(ctx, entry); err != nil {
		return nil, err
	}

	wallet.Balance = after
	wallet.Version++

	zap.L().Debug("Wallet balance changed",
		zap.String("wallet_id", wallet.Id),
		zap.String("type", entryType),
		zap.String("amount", signed.String()),
		zap.String("old_balance", before.String()),
		zap.String("new_balance", after.String()),
		zap.String("reference_id", refId))

	return entry, nil
}

// Publish hands committed entries to the sink, if one is configured
func (e *Engine) Publish(ctx context.Context, entries ...models.WalletHistoryEntry) {
	if e.sink == nil || len(entries) == 0 {
		return
	}
	e.sink.Publish(ctx, entries)
}

func withOperationMeta(ctx context.Context, meta map[string]string) map[string]string {
	oc := models.GetOperationContext(ctx)
	if oc == nil {
		return meta
	}
	merged := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		merged[k] = v
	}
	if oc.RequestId != "" {
		merged["request_id"] = oc.RequestId
	}
	if oc.Source != "" {
		merged["source"] = oc.Source
	}
	return merged
}
