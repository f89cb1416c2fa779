package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(models.GatewayConfig{
		BaseURL:   server.URL,
		KeyId:     "key_test",
		KeySecret: "secret_test",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(models.GatewayConfig{})
	assert.Error(t, err)

	_, err = NewService(models.GatewayConfig{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestCreateOrder(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_test", user)
		assert.Equal(t, "secret_test", pass)

		var req models.GatewayOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(5000), req.Amount)
		assert.Equal(t, "INR", req.Currency)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.GatewayOrder{
			Id: "order_abc", Entity: "order", Amount: req.Amount, Currency: req.Currency,
			Receipt: req.Receipt, Status: "created",
		})
	})

	order, err := svc.CreateOrder(context.Background(), models.GatewayOrderRequest{
		Amount: 5000, Currency: "INR", Receipt: "wallet_recharge_u1_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.Id)
	assert.Equal(t, "wallet_recharge_u1_1", order.Receipt)
	assert.Equal(t, "key_test", svc.KeyId())
	assert.Equal(t, "secret_test", svc.KeySecret())
}

func TestFetchPayment(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/pay_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.GatewayPayment{
			Id: "pay_1", OrderId: "order_abc", Status: models.GatewayPaymentCaptured, Captured: true,
		})
	})

	payment, err := svc.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", payment.OrderId)
	assert.Equal(t, models.GatewayPaymentCaptured, payment.Status)
}

func TestGatewayErrors(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
	})

	_, err := svc.FetchPayment(context.Background(), "pay_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrGateway)
	assert.Contains(t, err.Error(), "BAD_REQUEST_ERROR")
}

func TestGatewayUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc, err := NewService(models.GatewayConfig{BaseURL: url, KeyId: "k", KeySecret: "s", Timeout: time.Second})
	require.NoError(t, err)

	_, err = svc.CreateOrder(context.Background(), models.GatewayOrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, store.ErrGateway)
}
