package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a platform user. Merchants are users with IsMerchant set.
type User struct {
	Id         string    `db:"id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	IsMerchant bool      `db:"is_merchant"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Wallet is the current points balance of one user (hot data)
type Wallet struct {
	Id        string          `db:"id"`
	UserId    string          `db:"user_id"`
	Balance   decimal.Decimal `db:"balance"`
	Active    bool            `db:"active"`
	Version   int64           `db:"version"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// History entry types
const (
	EntryTypeCredit = "credit"
	EntryTypeDebit  = "debit"
)

// WalletHistoryEntry is one immutable balance change (cold data).
// Amount is signed: positive for credits, negative for debits.
type WalletHistoryEntry struct {
	Id              string            `db:"id"`
	WalletId        string            `db:"wallet_id"`
	TransactionType string            `db:"transaction_type"`
	Amount          decimal.Decimal   `db:"amount"`
	BalanceBefore   decimal.Decimal   `db:"balance_before"`
	BalanceAfter    decimal.Decimal   `db:"balance_after"`
	Note            string            `db:"reference_note"`
	ReferenceId     string            `db:"reference_id"`
	Meta            map[string]string `db:"meta"`
	CreatedAt       time.Time         `db:"created_at"`
}

// Payment transaction statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// PaymentTransaction is one gateway funding attempt keyed by the gateway order id
type PaymentTransaction struct {
	Id               string            `db:"id"`
	UserId           string            `db:"user_id"`
	WalletId         string            `db:"wallet_id"`
	OrderId          string            `db:"order_id"`
	PaymentId        string            `db:"payment_id"`
	Signature        string            `db:"signature"`
	Amount           decimal.Decimal   `db:"amount"`
	PointsToAdd      decimal.Decimal   `db:"points_to_add"`
	Currency         string            `db:"currency"`
	Status           string            `db:"status"`
	Description      string            `db:"description"`
	Receipt          string            `db:"receipt"`
	Notes            map[string]string `db:"notes"`
	ErrorCode        string            `db:"error_code"`
	ErrorDescription string            `db:"error_description"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
}

// Voucher is the stock-bearing part of a merchant voucher. Count caps
// redemptions across all purchases; zero means unlimited.
type Voucher struct {
	Id              string    `db:"id"`
	MerchantId      string    `db:"merchant_id"`
	Title           string    `db:"title"`
	IsGiftCard      bool      `db:"is_gift_card"`
	Count           int       `db:"count"`
	PurchaseCount   int       `db:"purchase_count"`
	RedemptionCount int       `db:"redemption_count"`
	Active          bool      `db:"active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Purchase statuses
const (
	PurchaseStatusPurchased = "purchased"
	PurchaseStatusRedeemed  = "redeemed"
	PurchaseStatusExpired   = "expired"
	PurchaseStatusCancelled = "cancelled"
	PurchaseStatusRefunded  = "refunded"
)

// VoucherPurchase is one user's claim on one voucher
type VoucherPurchase struct {
	Id                   string          `db:"id"`
	UserId               string          `db:"user_id"`
	VoucherId            string          `db:"voucher_id"`
	PurchaseReference    string          `db:"purchase_reference"`
	PurchaseCost         decimal.Decimal `db:"purchase_cost"`
	Active               bool            `db:"active"`
	Status               string          `db:"purchase_status"`
	PurchasedAt          time.Time       `db:"purchased_at"`
	RedeemedAt           *time.Time      `db:"redeemed_at"`
	RedemptionLocation   string          `db:"redemption_location"`
	ExpiryDate           time.Time       `db:"expiry_date"`
	RemainingRedemptions int             `db:"remaining_redemptions"`
	WalletTransactionId  string          `db:"wallet_transaction_id"`
}

// Deal statuses
const (
	DealStatusActive    = "active"
	DealStatusInactive  = "inactive"
	DealStatusExpired   = "expired"
	DealStatusCompleted = "completed"
	DealStatusCancelled = "cancelled"
)

// Deal is a merchant's advertised pool of points.
// PointsRemaining is always PointsOffered - PointsUsed.
type Deal struct {
	Id              string          `db:"id"`
	MerchantId      string          `db:"merchant_id"`
	Title           string          `db:"title"`
	PointsOffered   decimal.Decimal `db:"points_offered"`
	PointsUsed      decimal.Decimal `db:"points_used"`
	PointsRemaining decimal.Decimal `db:"points_remaining"`
	Status          string          `db:"status"`
	ExpiryDate      *time.Time      `db:"expiry_date"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// IsExpired reports whether the deal has an expiry date in the past
func (d *Deal) IsExpired(now time.Time) bool {
	return d.ExpiryDate != nil && now.After(*d.ExpiryDate)
}

// Deal request statuses
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusRejected  = "rejected"
	RequestStatusCancelled = "cancelled"
)

// DealRequest is one merchant's ask against another merchant's deal
type DealRequest struct {
	Id                   string          `db:"id"`
	RequestingMerchantId string          `db:"requesting_merchant_id"`
	DealId               string          `db:"deal_id"`
	Status               string          `db:"status"`
	PointsRequested      decimal.Decimal `db:"points_requested"`
	Message              string          `db:"message"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// Confirmation statuses
const (
	ConfirmationStatusPending   = "pending"
	ConfirmationStatusConfirmed = "confirmed"
	ConfirmationStatusCancelled = "cancelled"
	ConfirmationStatusCompleted = "completed"
)

// DealConfirmation pairs the deal owner (Merchant1, the points source) with
// the requester (Merchant2, the destination).
type DealConfirmation struct {
	Id               string          `db:"id"`
	DealId           string          `db:"deal_id"`
	DealRequestId    string          `db:"deal_request_id"`
	Merchant1Id      string          `db:"merchant1_id"`
	Merchant2Id      string          `db:"merchant2_id"`
	Status           string          `db:"status"`
	PointsExchanged  decimal.Decimal `db:"points_exchanged"`
	ConfirmationTime *time.Time      `db:"confirmation_time"`
	CompletedTime    *time.Time      `db:"completed_time"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// Transfer statuses
const (
	TransferStatusPending   = "pending"
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
	TransferStatusCancelled = "cancelled"
)

// PointsTransfer is the two-wallet movement that completes a confirmation.
// NetAmount is PointsAmount - TransferFee; the fee is not credited anywhere.
type PointsTransfer struct {
	Id             string          `db:"id"`
	ConfirmationId string          `db:"confirmation_id"`
	FromMerchantId string          `db:"from_merchant_id"`
	ToMerchantId   string          `db:"to_merchant_id"`
	PointsAmount   decimal.Decimal `db:"points_amount"`
	TransferFee    decimal.Decimal `db:"transfer_fee"`
	NetAmount      decimal.Decimal `db:"net_amount"`
	Status         string          `db:"status"`
	TransactionId  string          `db:"transaction_id"`
	Notes          string          `db:"notes"`
	TransferTime   *time.Time      `db:"transfer_time"`
	CreatedAt      time.Time       `db:"created_at"`
}
