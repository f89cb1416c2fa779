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

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"go.uber.org/zap"
)

// RegisterUser creates a user and provisions its wallet with the configured opening balance.
// The user insert and the wallet are separate units. A user left without a wallet by an
// earlier failed call gets it on retry; a user that already has one is ErrUserExists.
func (s *LedgerService) RegisterUser(ctx context.Context, req RegisterUserRequest) (*models.User, *models.Wallet, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, nil, finish(ctx, "register_user", err)
	}

	user, err := s.store.CreateUser(ctx, req.UserId, req.Name, req.Email, req.IsMerchant)
	if errors.Is(err, store.ErrDuplicateKey) {
		user, err = s.walletlessUser(ctx, req.UserId)
	}
	if err != nil {
		return nil, nil, finish(ctx, "register_user", err)
	}

	userWallet, err := s.engine.ProvisionWallet(ctx, user.Id, s.openingBalance)
	if err != nil {
		return user, nil, finish(ctx, "register_user", err)
	}

	zap.L().Info("User registered",
		zap.String("user_id", user.Id),
		zap.Bool("merchant", user.IsMerchant),
		zap.String("wallet_id", userWallet.Id))
	return user, userWallet, nil
}

// walletlessUser returns the stored user when it has no wallet yet, ErrUserExists otherwise
func (s *LedgerService) walletlessUser(ctx context.Context, userId string) (*models.User, error) {
	exists := fmt.Errorf("%s: %w", userId, store.ErrUserExists)

	user, err := s.store.GetUserById(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		// the duplicate was another key, e.g. the email
		return nil, exists
	}
	if err != nil {
		return nil, err
	}

	_, err = s.store.GetWalletByUser(ctx, userId)
	switch {
	case err == nil:
		return nil, exists
	case errors.Is(err, store.ErrNotFound):
		zap.L().Warn("Resuming registration of user without wallet", zap.String("user_id", userId))
		return user, nil
	default:
		return nil, err
	}
}

func (s *LedgerService) ProvisionWallet(ctx context.Context, req ProvisionWalletRequest) (*models.Wallet, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "provision_wallet", err)
	}

	userWallet, err := s.engine.ProvisionWallet(ctx, req.UserId, parsePoints(req.OpeningBalance))
	if err != nil {
		return nil, finish(ctx, "provision_wallet", err)
	}
	return userWallet, nil
}

func (s *LedgerService) GetWalletSummary(ctx context.Context, userId string) (*models.WalletSummary, error) {
	ctx = operation(ctx)
	if err := validateRequest(HistoryRequest{UserId: userId}); err != nil {
		return nil, finish(ctx, "wallet_summary", err)
	}

	summary, err := s.engine.Summary(ctx, userId)
	if err != nil {
		return nil, finish(ctx, "wallet_summary", err)
	}
	return summary, nil
}

// GetWalletHistory returns history newest first. A zero limit means the default page size.
func (s *LedgerService) GetWalletHistory(ctx context.Context, req HistoryRequest) ([]models.WalletHistoryEntry, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "wallet_history", err)
	}

	entries, err := s.engine.History(ctx, req.UserId, req.Limit, req.Offset)
	if err != nil {
		return nil, finish(ctx, "wallet_history", err)
	}
	return entries, nil
}

// ReconcileWallet verifies that the wallet balance equals the sum of its history
func (s *LedgerService) ReconcileWallet(ctx context.Context, userId string) error {
	ctx = operation(ctx)
	if err := validateRequest(HistoryRequest{UserId: userId}); err != nil {
		return finish(ctx, "reconcile_wallet", err)
	}
	return finish(ctx, "reconcile_wallet", s.engine.Reconcile(ctx, userId))
}

func (s *LedgerService) SetWalletActive(ctx context.Context, userId string, active bool) error {
	ctx = operation(ctx)
	if err := validateRequest(HistoryRequest{UserId: userId}); err != nil {
		return finish(ctx, "set_wallet_active", err)
	}
	return finish(ctx, "set_wallet_active", s.engine.SetActive(ctx, userId, active))
}
