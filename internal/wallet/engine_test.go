package wallet

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"voucher-wallet-go/internal/database"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
	"voucher-wallet-go/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []models.WalletHistoryEntry
}

func (r *recordingSink) Publish(_ context.Context, entries []models.WalletHistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *database.Service) {
	t.Helper()
	ledger := testutil.NewLedger(t)
	return NewEngine(ledger, opts...), ledger
}

// provision creates a user and its wallet with the given opening balance
func provision(t *testing.T, engine *Engine, ledger *database.Service, userId, opening string) *models.Wallet {
	t.Helper()
	testutil.CreateUser(t, ledger, userId, false)
	wallet, err := engine.ProvisionWallet(context.Background(), userId, testutil.Points(opening))
	require.NoError(t, err)
	return wallet
}

// credit runs a single credit in its own unit of work
func credit(ctx context.Context, engine *Engine, userId string, amount decimal.Decimal) error {
	return engine.Store().WithTx(ctx, func(tx store.Tx) error {
		wallet, err := tx.GetWalletByUserForUpdate(ctx, userId)
		if err != nil {
			return err
		}
		_, err = engine.Credit(ctx, tx, wallet, amount, "test credit", "", nil)
		return err
	})
}

// debit runs a single debit in its own unit of work
func debit(ctx context.Context, engine *Engine, userId string, amount decimal.Decimal) error {
	return engine.Store().WithTx(ctx, func(tx store.Tx) error {
		wallet, err := tx.GetWalletByUserForUpdate(ctx, userId)
		if err != nil {
			return err
		}
		_, err = engine.Debit(ctx, tx, wallet, amount, "test debit", "", nil)
		return err
	})
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(testutil.Points("0.01")))
	assert.NoError(t, ValidateAmount(testutil.Points("1000000")))
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), store.ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(testutil.Points("-5")), store.ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(testutil.Points("1.005")), store.ErrInvalidAmount)
}

func TestProvisionWallet(t *testing.T) {
	sink := &recordingSink{}
	engine, ledger := newTestEngine(t, WithSink(sink))
	ctx := context.Background()

	wallet := provision(t, engine, ledger, "user1", "1000.00")
	assert.True(t, wallet.Balance.Equal(testutil.Points("1000")))

	history, err := ledger.GetWalletHistory(ctx, wallet.Id, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, OpeningBalanceNote, history[0].Note)
	assert.Equal(t, models.EntryTypeCredit, history[0].TransactionType)
	assert.NoError(t, ledger.ReconcileWallet(ctx, wallet.Id))
	assert.Equal(t, 1, sink.count())

	_, err = engine.ProvisionWallet(ctx, "user1", testutil.Points("1000.00"))
	assert.ErrorIs(t, err, store.ErrWalletExists)

	_, err = engine.ProvisionWallet(ctx, "ghost", decimal.Zero)
	assert.ErrorIs(t, err, store.ErrNotFound)

	testutil.CreateUser(t, ledger, "user2", false)
	_, err = engine.ProvisionWallet(ctx, "user2", testutil.Points("-1"))
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestProvisionWallet_ZeroOpening(t *testing.T) {
	engine, ledger := newTestEngine(t)
	wallet := provision(t, engine, ledger, "user1", "0")

	history, err := ledger.GetWalletHistory(context.Background(), wallet.Id, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	testutil.RequireReconciled(t, ledger, "user1")
}

func TestDebit_InsufficientBalance(t *testing.T) {
	engine, ledger := newTestEngine(t)
	ctx := context.Background()
	provision(t, engine, ledger, "user1", "10.00")

	err := debit(ctx, engine, "user1", testutil.Points("10.01"))
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)
	testutil.RequireBalance(t, ledger, "user1", "10.00")

	require.NoError(t, debit(ctx, engine, "user1", testutil.Points("10.00")))
	testutil.RequireBalance(t, ledger, "user1", "0")
	testutil.RequireReconciled(t, ledger, "user1")
}

func TestCreditDebit_InactiveWallet(t *testing.T) {
	engine, ledger := newTestEngine(t)
	ctx := context.Background()
	provision(t, engine, ledger, "user1", "100")

	require.NoError(t, engine.SetActive(ctx, "user1", false))
	assert.ErrorIs(t, credit(ctx, engine, "user1", testutil.Points("1")), store.ErrWalletInactive)
	assert.ErrorIs(t, debit(ctx, engine, "user1", testutil.Points("1")), store.ErrWalletInactive)

	require.NoError(t, engine.SetActive(ctx, "user1", true))
	assert.NoError(t, credit(ctx, engine, "user1", testutil.Points("1")))
	testutil.RequireBalance(t, ledger, "user1", "101")
}

func TestConservation_RandomSequence(t *testing.T) {
	engine, ledger := newTestEngine(t)
	ctx := context.Background()
	provision(t, engine, ledger, "user1", "1000.00")

	rng := rand.New(rand.NewSource(42))
	expected := testutil.Points("1000.00")

	for i := 0; i < 200; i++ {
		amount := decimal.New(int64(rng.Intn(50000)+1), -2)
		if rng.Intn(2) == 0 {
			require.NoError(t, credit(ctx, engine, "user1", amount))
			expected = expected.Add(amount)
		} else {
			err := debit(ctx, engine, "user1", amount)
			if expected.LessThan(amount) {
				require.ErrorIs(t, err, store.ErrInsufficientBalance)
			} else {
				require.NoError(t, err)
				expected = expected.Sub(amount)
			}
		}

		testutil.RequireBalance(t, ledger, "user1", expected.String())
		testutil.RequireReconciled(t, ledger, "user1")
	}
}

func TestOperationContextMeta(t *testing.T) {
	engine, ledger := newTestEngine(t)
	wallet := provision(t, engine, ledger, "user1", "0")

	ctx := models.WithOperationContext(context.Background(), &models.OperationContext{RequestId: "req-1", Source: "api"})
	err := engine.Store().WithTx(ctx, func(tx store.Tx) error {
		w, err := tx.GetWalletByUserForUpdate(ctx, "user1")
		if err != nil {
			return err
		}
		_, err = engine.Credit(ctx, tx, w, testutil.Points("5"), "note", "ref", map[string]string{"k": "v"})
		return err
	})
	require.NoError(t, err)

	history, err := ledger.GetWalletHistory(context.Background(), wallet.Id, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, map[string]string{"k": "v", "request_id": "req-1", "source": "api"}, history[0].Meta)
}

func TestConcurrentDebits_NeverNegative(t *testing.T) {
	engine, ledger := newTestEngine(t)
	ctx := context.Background()
	provision(t, engine, ledger, "user1", "100")

	var mu sync.Mutex
	succeeded := 0

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			err := debit(ctx, engine, "user1", testutil.Points("10"))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return nil
			}
			if store.KindOf(err) == store.KindInsufficientBalance {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 10, succeeded)
	testutil.RequireBalance(t, ledger, "user1", "0")
	testutil.RequireReconciled(t, ledger, "user1")
}

func TestSummaryAndHistory(t *testing.T) {
	engine, ledger := newTestEngine(t)
	ctx := context.Background()
	provision(t, engine, ledger, "user1", "1000")

	for i := 0; i < 7; i++ {
		require.NoError(t, debit(ctx, engine, "user1", testutil.Points("1")))
	}

	summary, err := engine.Summary(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, summary.Balance.Equal(testutil.Points("993")))
	assert.Len(t, summary.RecentEntries, 5)

	all, err := engine.History(ctx, "user1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 8)

	page, err := engine.History(ctx, "user1", 3, 6)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	assert.NoError(t, engine.Reconcile(ctx, "user1"))

	_, err = engine.Summary(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
