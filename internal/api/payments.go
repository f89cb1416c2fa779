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
	"fmt"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
)

var errFundingDisabled = fmt.Errorf("%w: wallet funding is not configured", store.ErrGateway)

// CreateFundingIntent opens a gateway order for a wallet top-up
func (s *LedgerService) CreateFundingIntent(ctx context.Context, req FundingIntentRequest) (*models.FundingIntent, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "create_funding_intent", err)
	}
	if s.payments == nil {
		return nil, finish(ctx, "create_funding_intent", errFundingDisabled)
	}

	intent, err := s.payments.CreateFundingIntent(ctx, req.UserId, parsePoints(req.Amount), req.Currency)
	if err != nil {
		return nil, finish(ctx, "create_funding_intent", err)
	}
	return intent, nil
}

// ConfirmPayment credits the wallet once the gateway reports the payment captured.
// An empty signature skips signature verification (server-to-server webhooks).
func (s *LedgerService) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*models.PaymentConfirmation, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "confirm_payment", err)
	}
	if s.payments == nil {
		return nil, finish(ctx, "confirm_payment", errFundingDisabled)
	}

	confirmation, err := s.payments.ConfirmPayment(ctx, req.OrderId, req.PaymentId, req.Signature)
	if err != nil {
		return nil, finish(ctx, "confirm_payment", err)
	}
	return confirmation, nil
}

func (s *LedgerService) CancelFundingIntent(ctx context.Context, req CancelFundingIntentRequest) error {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return finish(ctx, "cancel_funding_intent", err)
	}
	if s.payments == nil {
		return finish(ctx, "cancel_funding_intent", errFundingDisabled)
	}
	return finish(ctx, "cancel_funding_intent", s.payments.CancelFundingIntent(ctx, req.OrderId, req.UserId))
}

func (s *LedgerService) ListPayments(ctx context.Context, userId string, limit, offset int) ([]models.PaymentTransaction, error) {
	ctx = operation(ctx)
	if err := validateRequest(HistoryRequest{UserId: userId, Limit: limit, Offset: offset}); err != nil {
		return nil, finish(ctx, "list_payments", err)
	}
	if limit == 0 {
		limit = 20
	}

	payments, err := s.store.ListPaymentTransactions(ctx, userId, limit, offset)
	if err != nil {
		return nil, finish(ctx, "list_payments", err)
	}
	return payments, nil
}
