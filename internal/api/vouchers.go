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

	"voucher-wallet-go/internal/models"
)

func (s *LedgerService) PurchaseVoucher(ctx context.Context, req PurchaseVoucherRequest) (*models.PurchaseResult, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "purchase_voucher", err)
	}

	result, err := s.purchases.Purchase(ctx, req.UserId, req.VoucherId)
	if err != nil {
		return nil, finish(ctx, "purchase_voucher", err)
	}
	return result, nil
}

// RedeemVoucher is called by the merchant with the reference the customer presents
func (s *LedgerService) RedeemVoucher(ctx context.Context, req RedeemVoucherRequest) (*models.RedemptionResult, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "redeem_voucher", err)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := s.purchases.Redeem(ctx, req.Reference, req.MerchantId, req.Quantity, req.Location)
	if err != nil {
		return nil, finish(ctx, "redeem_voucher", err)
	}
	return result, nil
}

func (s *LedgerService) CreateVoucher(ctx context.Context, req CreateVoucherRequest) (*models.VoucherCreation, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "create_voucher", err)
	}

	result, err := s.purchases.CreateVoucher(ctx, req.MerchantId, req.Title, req.IsGiftCard, req.Count)
	if err != nil {
		return nil, finish(ctx, "create_voucher", err)
	}
	return result, nil
}

func (s *LedgerService) ChargeAdvertisement(ctx context.Context, req ChargeAdvertisementRequest) (*models.ChargeResult, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "charge_advertisement", err)
	}

	result, err := s.purchases.ChargeAdvertisement(ctx, req.MerchantId, req.VoucherId)
	if err != nil {
		return nil, finish(ctx, "charge_advertisement", err)
	}
	return result, nil
}

func (s *LedgerService) ListPurchases(ctx context.Context, userId string) ([]models.VoucherPurchase, error) {
	ctx = operation(ctx)
	if err := validateRequest(HistoryRequest{UserId: userId}); err != nil {
		return nil, finish(ctx, "list_purchases", err)
	}

	purchases, err := s.store.ListUserPurchases(ctx, userId)
	if err != nil {
		return nil, finish(ctx, "list_purchases", err)
	}
	return purchases, nil
}
