package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"voucher-wallet-go/internal/database"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
	"voucher-wallet-go/internal/testutil"
	"voucher-wallet-go/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testSecret = "shh"

type fakeGateway struct {
	mu       sync.Mutex
	orders   int
	payments map[string]*models.GatewayPayment
	orderErr error
	fetchErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*models.GatewayPayment{}}
}

func (f *fakeGateway) CreateOrder(_ context.Context, req models.GatewayOrderRequest) (*models.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders++
	return &models.GatewayOrder{
		Id:       fmt.Sprintf("order_%d", f.orders),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (f *fakeGateway) FetchPayment(_ context.Context, paymentId string) (*models.GatewayPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.payments[paymentId]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return p, nil
}

func (f *fakeGateway) KeyId() string     { return "key_test" }
func (f *fakeGateway) KeySecret() string { return testSecret }

func (f *fakeGateway) pay(paymentId, orderId, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[paymentId] = &models.GatewayPayment{Id: paymentId, OrderId: orderId, Status: status}
}

func setupAdapter(t *testing.T) (*Adapter, *fakeGateway, *database.Service) {
	t.Helper()
	ledger := testutil.NewLedger(t)
	engine := wallet.NewEngine(ledger)
	gateway := newFakeGateway()

	testutil.CreateUser(t, ledger, "user1", false)
	_, err := engine.ProvisionWallet(context.Background(), "user1", testutil.Points("1000.00"))
	require.NoError(t, err)

	return NewAdapter(engine, gateway, models.DefaultSiteSettings()), gateway, ledger
}

func TestSignature(t *testing.T) {
	sig := Sign(testSecret, "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature(testSecret, "order_1", "pay_1", sig))
	assert.False(t, VerifySignature(testSecret, "order_1", "pay_2", sig))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig))
}

func TestCreateFundingIntent(t *testing.T) {
	adapter, _, ledger := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("50"), "")
	require.NoError(t, err)
	assert.Equal(t, "order_1", intent.OrderId)
	assert.Equal(t, DefaultCurrency, intent.Currency)
	assert.Equal(t, "key_test", intent.ClientKey)
	assert.True(t, intent.PointsToAdd.Equal(testutil.Points("500")))

	stored, err := ledger.GetPaymentTransaction(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Contains(t, stored.Receipt, "wallet_recharge_user1_")
}

func TestCreateFundingIntent_Validation(t *testing.T) {
	adapter, gateway, _ := setupAdapter(t)
	ctx := context.Background()

	_, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("0.50"), "INR")
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = adapter.CreateFundingIntent(ctx, "user1", testutil.Points("10"), "rupees")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = adapter.CreateFundingIntent(ctx, "ghost", testutil.Points("10"), "INR")
	assert.ErrorIs(t, err, store.ErrNotFound)

	gateway.orderErr = errors.New("connection reset")
	_, err = adapter.CreateFundingIntent(ctx, "user1", testutil.Points("10"), "INR")
	assert.ErrorIs(t, err, store.ErrGateway)
	assert.Equal(t, 0, gateway.orders)
}

func TestConfirmPayment_CreditsOnce(t *testing.T) {
	adapter, gateway, ledger := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("5"), "INR")
	require.NoError(t, err)
	gateway.pay("pay_1", intent.OrderId, models.GatewayPaymentCaptured)
	sig := Sign(testSecret, intent.OrderId, "pay_1")

	confirmation, err := adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", sig)
	require.NoError(t, err)
	assert.True(t, confirmation.PointsAdded.Equal(testutil.Points("50")))
	assert.True(t, confirmation.NewBalance.Equal(testutil.Points("1050")))

	_, err = adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", sig)
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)

	testutil.RequireBalance(t, ledger, "user1", "1050")
	testutil.RequireReconciled(t, ledger, "user1")

	wallet, err := ledger.GetWalletByUser(ctx, "user1")
	require.NoError(t, err)
	history, err := ledger.GetWalletHistory(ctx, wallet.Id, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, intent.OrderId, history[0].ReferenceId)
	assert.Equal(t, "pay_1", history[0].Meta["payment_id"])
}

func TestConfirmPayment_Concurrent(t *testing.T) {
	adapter, gateway, ledger := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("5"), "INR")
	require.NoError(t, err)
	gateway.pay("pay_1", intent.OrderId, models.GatewayPaymentCaptured)

	var mu sync.Mutex
	var succeeded, rejected int

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrAlreadyProcessed):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, rejected)
	testutil.RequireBalance(t, ledger, "user1", "1050")
}

func TestConfirmPayment_InvalidSignature(t *testing.T) {
	adapter, gateway, ledger := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("5"), "INR")
	require.NoError(t, err)
	gateway.pay("pay_1", intent.OrderId, models.GatewayPaymentCaptured)

	_, err = adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", "forged")
	assert.ErrorIs(t, err, store.ErrInvalidSignature)

	stored, err := ledger.GetPaymentTransaction(ctx, intent.OrderId)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Equal(t, CodeInvalidSignature, stored.ErrorCode)
	testutil.RequireBalance(t, ledger, "user1", "1000")

	// A failed transaction is terminal
	_, err = adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", Sign(testSecret, intent.OrderId, "pay_1"))
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
}

func TestConfirmPayment_NotCaptured(t *testing.T) {
	adapter, gateway, ledger := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("5"), "INR")
	require.NoError(t, err)
	gateway.pay("pay_1", intent.OrderId, models.GatewayPaymentAuthorized)

	_, err = adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", "")
	assert.ErrorIs(t, err, store.ErrPaymentNotCaptured)

	stored, err := ledger.GetPaymentTransaction(ctx, intent.OrderId)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Equal(t, CodePaymentNotCaptured, stored.ErrorCode)
	testutil.RequireBalance(t, ledger, "user1", "1000")
}

func TestConfirmPayment_OrderMismatch(t *testing.T) {
	adapter, gateway, _ := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("5"), "INR")
	require.NoError(t, err)
	gateway.pay("pay_1", "order_other", models.GatewayPaymentCaptured)

	_, err = adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", "")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestConfirmPayment_GatewayErrorLeavesPending(t *testing.T) {
	adapter, gateway, ledger := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("5"), "INR")
	require.NoError(t, err)
	gateway.fetchErr = errors.New("timeout")

	_, err = adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", "")
	assert.ErrorIs(t, err, store.ErrGateway)
	assert.True(t, store.IsRetryable(err))

	stored, err := ledger.GetPaymentTransaction(ctx, intent.OrderId)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	testutil.RequireBalance(t, ledger, "user1", "1000")
}

func TestConfirmPayment_UnknownOrder(t *testing.T) {
	adapter, _, _ := setupAdapter(t)

	_, err := adapter.ConfirmPayment(context.Background(), "order_missing", "pay_1", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelFundingIntent(t *testing.T) {
	adapter, gateway, ledger := setupAdapter(t)
	ctx := context.Background()

	intent, err := adapter.CreateFundingIntent(ctx, "user1", testutil.Points("5"), "INR")
	require.NoError(t, err)

	assert.ErrorIs(t, adapter.CancelFundingIntent(ctx, intent.OrderId, "someone"), store.ErrNotOwner)
	require.NoError(t, adapter.CancelFundingIntent(ctx, intent.OrderId, "user1"))

	stored, err := ledger.GetPaymentTransaction(ctx, intent.OrderId)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, stored.Status)

	gateway.pay("pay_1", intent.OrderId, models.GatewayPaymentCaptured)
	_, err = adapter.ConfirmPayment(ctx, intent.OrderId, "pay_1", "")
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)
	assert.ErrorIs(t, adapter.CancelFundingIntent(ctx, intent.OrderId, "user1"), store.ErrAlreadyProcessed)
}
