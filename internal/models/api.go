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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletSummary is a balance together with its most recent history entries
type WalletSummary struct {
	WalletId      string               `json:"wallet_id"`
	UserId        string               `json:"user_id"`
	Balance       decimal.Decimal      `json:"balance"`
	Active        bool                 `json:"active"`
	RecentEntries []WalletHistoryEntry `json:"recent_entries"`
}

// FundingIntent is returned to the client to drive the gateway checkout
type FundingIntent struct {
	OrderId     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PointsToAdd decimal.Decimal `json:"points_to_add"`
	ClientKey   string          `json:"client_key"`
}

// PaymentConfirmation is the result of a successful payment confirmation
type PaymentConfirmation struct {
	TransactionId string          `json:"transaction_id"`
	OrderId       string          `json:"order_id"`
	PointsAdded   decimal.Decimal `json:"points_added"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// PurchaseResult is the result of a voucher purchase
type PurchaseResult struct {
	PurchaseId        string          `json:"purchase_id"`
	PurchaseReference string          `json:"purchase_reference"`
	Cost              decimal.Decimal `json:"cost"`
	NewBalance        decimal.Decimal `json:"new_balance"`
	ExpiryDate        time.Time       `json:"expiry_date"`
	TransactionId     string          `json:"transaction_id"`
}

// RedemptionResult is the result of a merchant redeeming a purchase
type RedemptionResult struct {
	PurchaseReference    string    `json:"purchase_reference"`
	RedeemedAt           time.Time `json:"redeemed_at"`
	RemainingRedemptions int       `json:"remaining_redemptions"`
	Status               string    `json:"status"`
}

// ChargeResult is the result of a merchant listing fee (voucher creation, advertisement)
type ChargeResult struct {
	ReferenceId string          `json:"reference_id"`
	Cost        decimal.Decimal `json:"cost"`
	NewBalance  decimal.Decimal `json:"new_balance"`
}

// VoucherCreation is the result of creating a voucher
type VoucherCreation struct {
	VoucherId string `json:"voucher_id"`
	ChargeResult
}

// TransferResult is the result of completing a deal confirmation
type TransferResult struct {
	TransferId     string          `json:"transfer_id"`
	TransactionId  string          `json:"transaction_id"`
	PointsAmount   decimal.Decimal `json:"points_amount"`
	TransferFee    decimal.Decimal `json:"transfer_fee"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	SourceBalance  decimal.Decimal `json:"source_balance"`
	DestBalance    decimal.Decimal `json:"destination_balance"`
	ConfirmationId string          `json:"confirmation_id"`
}
