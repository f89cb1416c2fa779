package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/payment"
	"voucher-wallet-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const maxErrorBody = 4096

var _ payment.Gateway = (*Service)(nil)

// Service is a REST client for an orders/payments card gateway
// (POST /v1/orders, GET /v1/payments/{id}) using HTTP basic auth.
type Service struct {
	client    http.Client
	baseURL   string
	keyId     string
	keySecret string
}

// errorResponse is the gateway's error envelope
type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewService(cfg models.GatewayConfig) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if cfg.KeyId == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("gateway key id and secret are required")
	}

	httpClient, err := createCustomHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &Service{
		client:    httpClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyId:     cfg.KeyId,
		keySecret: cfg.KeySecret,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (s *Service) KeyId() string {
	return s.keyId
}

func (s *Service) KeySecret() string {
	return s.keySecret
}

// CreateOrder opens an order for the given amount in minor units
func (s *Service) CreateOrder(ctx context.Context, req models.GatewayOrderRequest) (*models.GatewayOrder, error) {
	var order models.GatewayOrder
	if err := s.do(ctx, http.MethodPost, "/v1/orders", req, &order); err != nil {
		return nil, fmt.Errorf("unable to create order: %w", err)
	}

	zap.L().Info("Gateway order created",
		zap.String("order_id", order.Id),
		zap.Int64("amount", order.Amount),
		zap.String("currency", order.Currency),
		zap.String("receipt", order.Receipt))
	return &order, nil
}

// FetchPayment returns the current state of a payment
func (s *Service) FetchPayment(ctx context.Context, paymentId string) (*models.GatewayPayment, error) {
	var payment models.GatewayPayment
	if err := s.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentId), nil, &payment); err != nil {
		return nil, fmt.Errorf("unable to fetch payment %s: %w", paymentId, err)
	}

	zap.L().Debug("Gateway payment fetched",
		zap.String("payment_id", payment.Id),
		zap.String("order_id", payment.OrderId),
		zap.String("status", payment.Status))
	return &payment, nil
}

func (s *Service) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("unable to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	req.SetBasicAuth(s.keyId, s.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var gwErr errorResponse
		if json.Unmarshal(raw, &gwErr) == nil && gwErr.Error.Code != "" {
			return fmt.Errorf("%w: status %d: %s: %s", store.ErrGateway, resp.StatusCode,
				gwErr.Error.Code, gwErr.Error.Description)
		}
		return fmt.Errorf("%w: status %d", store.ErrGateway, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: unable to decode response: %v", store.ErrGateway, err)
	}
	return nil
}
