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

package api

import (
	"context"
	"errors"
	"fmt"

	"voucher-wallet-go/internal/deals"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/payment"
	"voucher-wallet-go/internal/purchase"
	"voucher-wallet-go/internal/store"
	"voucher-wallet-go/internal/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const SourceAPI = "api"

// LedgerService is the operation-level entry point over the wallet ledger.
// Callers get sentinel errors from internal/store for expected failures and
// store.ErrInternal for anything else.
type LedgerService struct {
	store          store.LedgerStore
	engine         *wallet.Engine
	payments       *payment.Adapter
	purchases      *purchase.Coordinator
	deals          *deals.Coordinator
	openingBalance decimal.Decimal
}

func NewLedgerService(engine *wallet.Engine, payments *payment.Adapter, purchases *purchase.Coordinator,
	dealCoordinator *deals.Coordinator, openingBalance decimal.Decimal) *LedgerService {
	return &LedgerService{
		store:          engine.Store(),
		engine:         engine,
		payments:       payments,
		purchases:      purchases,
		deals:          dealCoordinator,
		openingBalance: openingBalance,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.store.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// operation attaches an operation context unless the caller already did
func operation(ctx context.Context) context.Context {
	if oc := models.GetOperationContext(ctx); oc != nil {
		return ctx
	}
	return models.WithOperationContext(ctx, &models.OperationContext{
		RequestId: uuid.New().String(),
		Source:    SourceAPI,
	})
}

func requestId(ctx context.Context) string {
	if oc := models.GetOperationContext(ctx); oc != nil {
		return oc.RequestId
	}
	return ""
}

// finish logs err and decides what the caller may see
func finish(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	kind := store.KindOf(err)
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("request_id", requestId(ctx)),
		zap.String("kind", string(kind)),
		zap.Bool("retryable", store.IsRetryable(err)),
		zap.Error(err),
	}

	if kind != store.KindInternal {
		zap.L().Info("Operation rejected", fields...)
		return err
	}

	zap.L().Error("Operation failed", fields...)
	if errors.Is(err, store.ErrBalanceMismatch) {
		return store.ErrBalanceMismatch
	}
	return store.ErrInternal
}
