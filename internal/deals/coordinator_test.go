package deals

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"voucher-wallet-go/internal/database"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
	"voucher-wallet-go/internal/testutil"
	"voucher-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	coordinator *Coordinator
	engine      *wallet.Engine
	ledger      *database.Service
	now         time.Time
}

func setup(t *testing.T, settings models.SiteSettings, balances map[string]string) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{now: epoch}
	f.ledger = testutil.NewLedger(t)
	f.engine = wallet.NewEngine(f.ledger, wallet.WithClock(func() time.Time { return f.now }))
	f.coordinator = NewCoordinator(f.engine, settings)

	for userId, opening := range balances {
		testutil.CreateUser(t, f.ledger, userId, true)
		_, err := f.engine.ProvisionWallet(ctx, userId, testutil.Points(opening))
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) spend(t *testing.T, userId, amount string) {
	t.Helper()
	ctx := context.Background()
	err := f.ledger.WithTx(ctx, func(tx store.Tx) error {
		w, err := tx.GetWalletByUserForUpdate(ctx, userId)
		if err != nil {
			return err
		}
		_, err = f.engine.Debit(ctx, tx, w, testutil.Points(amount), "spend", "", nil)
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) requireDealBookkeeping(t *testing.T, dealId string) *models.Deal {
	t.Helper()
	deal, err := f.ledger.GetDeal(context.Background(), dealId)
	require.NoError(t, err)
	require.True(t, deal.PointsRemaining.Equal(deal.PointsOffered.Sub(deal.PointsUsed)),
		"remaining %s != offered %s - used %s", deal.PointsRemaining, deal.PointsOffered, deal.PointsUsed)
	require.False(t, deal.PointsUsed.GreaterThan(deal.PointsOffered))
	require.False(t, deal.PointsUsed.IsNegative())
	return deal
}

// openConfirmation runs create, request and accept
func (f *fixture) openConfirmation(t *testing.T, owner, requester, offered, requested string) (*models.Deal, *models.DealConfirmation) {
	t.Helper()
	ctx := context.Background()

	deal, err := f.coordinator.CreateDeal(ctx, owner, "Points swap", testutil.Points(offered), nil)
	require.NoError(t, err)
	request, err := f.coordinator.RequestDeal(ctx, requester, deal.Id, testutil.Points(requested), "")
	require.NoError(t, err)
	confirmation, err := f.coordinator.AcceptRequest(ctx, deal.Id, request.Id, owner)
	require.NoError(t, err)
	return deal, confirmation
}

func TestDealLifecycle(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "500"})
	ctx := context.Background()

	deal, err := f.coordinator.CreateDeal(ctx, "merchantA", "Spring swap", testutil.Points("100"), nil)
	require.NoError(t, err)
	assert.True(t, deal.PointsRemaining.Equal(testutil.Points("100")))

	request, err := f.coordinator.RequestDeal(ctx, "merchantB", deal.Id, testutil.Points("40"), "hello")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)

	confirmation, err := f.coordinator.AcceptRequest(ctx, deal.Id, request.Id, "merchantA")
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationStatusConfirmed, confirmation.Status)
	assert.Equal(t, PhaseReserved, ConfirmationPhase(confirmation.Status))

	reserved := f.requireDealBookkeeping(t, deal.Id)
	assert.True(t, reserved.PointsUsed.Equal(testutil.Points("40")))
	assert.True(t, reserved.PointsRemaining.Equal(testutil.Points("60")))
	testutil.RequireBalance(t, f.ledger, "merchantA", "1000")

	result, err := f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "merchantA")
	require.NoError(t, err)
	assert.True(t, result.SourceBalance.Equal(testutil.Points("960")))
	assert.True(t, result.DestBalance.Equal(testutil.Points("540")))

	testutil.RequireBalance(t, f.ledger, "merchantA", "960")
	testutil.RequireBalance(t, f.ledger, "merchantB", "540")
	testutil.RequireReconciled(t, f.ledger, "merchantA")
	testutil.RequireReconciled(t, f.ledger, "merchantB")

	stored, err := f.ledger.GetConfirmation(ctx, confirmation.Id)
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedTime)

	transfers, err := f.ledger.ListTransfersForConfirmation(ctx, confirmation.Id)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, models.TransferStatusCompleted, transfers[0].Status)
	assert.Equal(t, result.TransactionId, transfers[0].TransactionId)

	storedRequest, err := f.ledger.GetDealRequest(ctx, request.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, storedRequest.Status)

	_, err = f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "merchantB")
	assert.ErrorIs(t, err, store.ErrNotPending)
	testutil.RequireBalance(t, f.ledger, "merchantA", "960")
}

func TestCompleteConfirmation_FeeIsBurned(t *testing.T) {
	settings := models.DefaultSiteSettings()
	settings.DealTransferFee = testutil.Points("2.5")
	f := setup(t, settings, map[string]string{"merchantA": "1000", "merchantB": "500"})

	_, confirmation := f.openConfirmation(t, "merchantA", "merchantB", "100", "40")

	result, err := f.coordinator.CompleteConfirmation(context.Background(), confirmation.Id, "merchantB")
	require.NoError(t, err)
	assert.True(t, result.NetAmount.Equal(testutil.Points("37.5")))

	testutil.RequireBalance(t, f.ledger, "merchantA", "960")
	testutil.RequireBalance(t, f.ledger, "merchantB", "537.5")
}

func TestCompleteConfirmation_InsufficientBalance(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "500"})
	ctx := context.Background()

	_, confirmation := f.openConfirmation(t, "merchantA", "merchantB", "100", "40")
	f.spend(t, "merchantA", "980")

	_, err := f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "merchantA")
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	testutil.RequireBalance(t, f.ledger, "merchantA", "20")
	testutil.RequireBalance(t, f.ledger, "merchantB", "500")

	stored, err := f.ledger.GetConfirmation(ctx, confirmation.Id)
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationStatusConfirmed, stored.Status)

	transfers, err := f.ledger.ListTransfersForConfirmation(ctx, confirmation.Id)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, models.TransferStatusFailed, transfers[0].Status)
	assert.NotEmpty(t, transfers[0].Notes)
}

func TestCompleteConfirmation_CreditFailureRollsBackDebit(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "500"})
	ctx := context.Background()

	_, confirmation := f.openConfirmation(t, "merchantA", "merchantB", "100", "40")
	require.NoError(t, f.engine.SetActive(ctx, "merchantB", false))

	_, err := f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "merchantA")
	assert.ErrorIs(t, err, store.ErrWalletInactive)

	testutil.RequireBalance(t, f.ledger, "merchantA", "1000")
	testutil.RequireBalance(t, f.ledger, "merchantB", "500")
	testutil.RequireReconciled(t, f.ledger, "merchantA")

	transfers, err := f.ledger.ListTransfersForConfirmation(ctx, confirmation.Id)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, models.TransferStatusFailed, transfers[0].Status)

	// The confirmation stays retryable
	require.NoError(t, f.engine.SetActive(ctx, "merchantB", true))
	_, err = f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "merchantB")
	require.NoError(t, err)

	testutil.RequireBalance(t, f.ledger, "merchantA", "960")
	testutil.RequireBalance(t, f.ledger, "merchantB", "540")

	transfers, err = f.ledger.ListTransfersForConfirmation(ctx, confirmation.Id)
	require.NoError(t, err)
	assert.Len(t, transfers, 2)
}

func TestCompleteConfirmation_Guards(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "500", "merchantC": "500"})
	ctx := context.Background()

	_, confirmation := f.openConfirmation(t, "merchantA", "merchantB", "100", "40")

	_, err := f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "merchantC")
	assert.ErrorIs(t, err, store.ErrNotOwner)

	_, err = f.coordinator.CompleteConfirmation(ctx, "missing", "merchantA")
	assert.ErrorIs(t, err, store.ErrNotFound)

	transfers, err := f.ledger.ListTransfersForConfirmation(ctx, confirmation.Id)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestCreateDeal_Validation(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "100"})
	ctx := context.Background()

	_, err := f.coordinator.CreateDeal(ctx, "merchantA", "", decimal.Zero, nil)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	past := epoch.Add(-time.Hour)
	_, err = f.coordinator.CreateDeal(ctx, "merchantA", "", testutil.Points("10"), &past)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.coordinator.CreateDeal(ctx, "merchantA", "", testutil.Points("100.01"), nil)
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	testutil.CreateUser(t, f.ledger, "shopper", false)
	_, err = f.coordinator.CreateDeal(ctx, "shopper", "", testutil.Points("10"), nil)
	assert.ErrorIs(t, err, store.ErrNotMerchant)

	deal, err := f.coordinator.CreateDeal(ctx, "merchantA", "", testutil.Points("100"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.DealStatusActive, deal.Status)
	testutil.RequireBalance(t, f.ledger, "merchantA", "100")
}

func TestRequestDeal_Guards(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "500"})
	ctx := context.Background()

	expiry := epoch.Add(time.Hour)
	deal, err := f.coordinator.CreateDeal(ctx, "merchantA", "", testutil.Points("100"), &expiry)
	require.NoError(t, err)

	_, err = f.coordinator.RequestDeal(ctx, "merchantA", deal.Id, testutil.Points("10"), "")
	assert.ErrorIs(t, err, store.ErrSelfRequest)

	_, err = f.coordinator.RequestDeal(ctx, "merchantB", deal.Id, testutil.Points("100.5"), "")
	assert.ErrorIs(t, err, store.ErrExceedsRemaining)

	_, err = f.coordinator.RequestDeal(ctx, "merchantB", "missing", testutil.Points("10"), "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.coordinator.RequestDeal(ctx, "merchantB", deal.Id, testutil.Points("10"), "")
	require.NoError(t, err)

	_, err = f.coordinator.RequestDeal(ctx, "merchantB", deal.Id, testutil.Points("5"), "")
	assert.ErrorIs(t, err, store.ErrDuplicateRequest)

	f.now = epoch.Add(2 * time.Hour)
	testutil.CreateUser(t, f.ledger, "merchantC", true)
	_, err = f.coordinator.RequestDeal(ctx, "merchantC", deal.Id, testutil.Points("5"), "")
	assert.ErrorIs(t, err, store.ErrExpired)
}

func TestRequestTransitions(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "500", "merchantC": "500"})
	ctx := context.Background()

	deal, err := f.coordinator.CreateDeal(ctx, "merchantA", "", testutil.Points("100"), nil)
	require.NoError(t, err)
	fromB, err := f.coordinator.RequestDeal(ctx, "merchantB", deal.Id, testutil.Points("10"), "")
	require.NoError(t, err)
	fromC, err := f.coordinator.RequestDeal(ctx, "merchantC", deal.Id, testutil.Points("10"), "")
	require.NoError(t, err)

	_, err = f.coordinator.AcceptRequest(ctx, deal.Id, fromB.Id, "merchantB")
	assert.ErrorIs(t, err, store.ErrNotOwner)

	require.NoError(t, f.coordinator.RejectRequest(ctx, deal.Id, fromB.Id, "merchantA"))
	_, err = f.coordinator.AcceptRequest(ctx, deal.Id, fromB.Id, "merchantA")
	assert.ErrorIs(t, err, store.ErrNotPending)
	assert.ErrorIs(t, f.coordinator.CancelRequest(ctx, fromB.Id, "merchantB"), store.ErrNotPending)

	assert.ErrorIs(t, f.coordinator.CancelRequest(ctx, fromC.Id, "merchantB"), store.ErrNotOwner)
	require.NoError(t, f.coordinator.CancelRequest(ctx, fromC.Id, "merchantC"))
	assert.ErrorIs(t, f.coordinator.RejectRequest(ctx, deal.Id, fromC.Id, "merchantA"), store.ErrNotPending)

	stored := f.requireDealBookkeeping(t, deal.Id)
	assert.True(t, stored.PointsUsed.IsZero())
}

func TestCancelConfirmation_ReleasesReservation(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "500", "merchantC": "500"})
	ctx := context.Background()

	deal, confirmation := f.openConfirmation(t, "merchantA", "merchantB", "100", "40")

	// an accepted request holds a reservation and only closes through its confirmation
	err := f.coordinator.RejectRequest(ctx, deal.Id, confirmation.DealRequestId, "merchantA")
	assert.ErrorIs(t, err, store.ErrNotPending)
	assert.ErrorContains(t, err, "reserved")
	err = f.coordinator.CancelRequest(ctx, confirmation.DealRequestId, "merchantB")
	assert.ErrorIs(t, err, store.ErrNotPending)
	stored := f.requireDealBookkeeping(t, deal.Id)
	assert.True(t, stored.PointsUsed.Equal(testutil.Points("40")))

	_, err = f.coordinator.CancelConfirmation(ctx, confirmation.Id, "merchantC")
	assert.ErrorIs(t, err, store.ErrNotOwner)

	released, err := f.coordinator.CancelConfirmation(ctx, confirmation.Id, "merchantB")
	require.NoError(t, err)
	assert.True(t, released.Equal(testutil.Points("40")))

	stored = f.requireDealBookkeeping(t, deal.Id)
	assert.True(t, stored.PointsRemaining.Equal(testutil.Points("100")))

	_, err = f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "merchantA")
	assert.ErrorIs(t, err, store.ErrNotPending)
	_, err = f.coordinator.CancelConfirmation(ctx, confirmation.Id, "merchantA")
	assert.ErrorIs(t, err, store.ErrNotPending)

	testutil.RequireBalance(t, f.ledger, "merchantA", "1000")
}

func TestDealBookkeeping_RandomSequence(t *testing.T) {
	balances := map[string]string{"owner": "10000"}
	requesters := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("merchant%d", i)
		balances[id] = "100"
		requesters = append(requesters, id)
	}
	f := setup(t, models.DefaultSiteSettings(), balances)
	ctx := context.Background()

	deal, err := f.coordinator.CreateDeal(ctx, "owner", "", testutil.Points("500"), nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	completed := decimal.Zero
	for _, requester := range requesters {
		current := f.requireDealBookkeeping(t, deal.Id)
		if !current.PointsRemaining.IsPositive() {
			break
		}

		limit := current.PointsRemaining.IntPart()
		if limit > 120 {
			limit = 120
		}
		points := decimal.NewFromInt(rng.Int63n(limit) + 1)

		request, err := f.coordinator.RequestDeal(ctx, requester, deal.Id, points, "")
		require.NoError(t, err)
		f.requireDealBookkeeping(t, deal.Id)

		if rng.Intn(4) == 0 {
			require.NoError(t, f.coordinator.RejectRequest(ctx, deal.Id, request.Id, "owner"))
			continue
		}

		confirmation, err := f.coordinator.AcceptRequest(ctx, deal.Id, request.Id, "owner")
		require.NoError(t, err)
		f.requireDealBookkeeping(t, deal.Id)

		switch rng.Intn(3) {
		case 0:
			_, err = f.coordinator.CancelConfirmation(ctx, confirmation.Id, requester)
			require.NoError(t, err)
		default:
			_, err = f.coordinator.CompleteConfirmation(ctx, confirmation.Id, "owner")
			require.NoError(t, err)
			completed = completed.Add(points)
		}
		f.requireDealBookkeeping(t, deal.Id)
	}

	testutil.RequireBalance(t, f.ledger, "owner", decimal.NewFromInt(10000).Sub(completed).String())
	testutil.RequireReconciled(t, f.ledger, "owner")
}

func TestCompleteConfirmation_OppositeDirections(t *testing.T) {
	f := setup(t, models.DefaultSiteSettings(), map[string]string{"merchantA": "1000", "merchantB": "1000"})
	ctx := context.Background()

	_, aToB := f.openConfirmation(t, "merchantA", "merchantB", "100", "40")
	_, bToA := f.openConfirmation(t, "merchantB", "merchantA", "100", "30")

	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := f.coordinator.CompleteConfirmation(ctx, aToB.Id, "merchantB")
			if err != nil && !isStateConflict(err) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			_, err := f.coordinator.CompleteConfirmation(ctx, bToA.Id, "merchantA")
			if err != nil && !isStateConflict(err) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	testutil.RequireBalance(t, f.ledger, "merchantA", "990")
	testutil.RequireBalance(t, f.ledger, "merchantB", "1010")
	testutil.RequireReconciled(t, f.ledger, "merchantA")
	testutil.RequireReconciled(t, f.ledger, "merchantB")
}

func isStateConflict(err error) bool {
	return store.KindOf(err) == store.KindStateConflict
}
