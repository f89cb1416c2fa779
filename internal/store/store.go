package store

import (
	"context"

	"voucher-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// Tx is one unit of work against the ledger. Every read made through a Tx
// observes the rows as locked by that unit of work; every write commits or
// rolls back together with the others.
type Tx interface {
	// --- Users ---
	GetUserById(ctx context.Context, userId string) (*models.User, error)

	// --- Wallets (hot data) ---
	GetWalletByUserForUpdate(ctx context.Context, userId string) (*models.Wallet, error)
	// GetWalletsForUpdate locks the wallets of all given users in ascending wallet id order.
	GetWalletsForUpdate(ctx context.Context, userIds ...string) (map[string]*models.Wallet, error)
	InsertWallet(ctx context.Context, wallet *models.Wallet) error
	UpdateWalletBalance(ctx context.Context, walletId string, balance decimal.Decimal, version int64) error
	SetWalletActive(ctx context.Context, walletId string, active bool) error

	// --- History (cold data, insert only) ---
	AppendHistory(ctx context.Context, entry *models.WalletHistoryEntry) error

	// --- Payment transactions ---
	InsertPaymentTransaction(ctx context.Context, payment *models.PaymentTransaction) error
	GetPaymentTransactionForUpdate(ctx context.Context, orderId string) (*models.PaymentTransaction, error)
	UpdatePaymentTransaction(ctx context.Context, payment *models.PaymentTransaction) error

	// --- Vouchers and purchases ---
	InsertVoucher(ctx context.Context, voucher *models.Voucher) error
	GetVoucherForUpdate(ctx context.Context, voucherId string) (*models.Voucher, error)
	IncrementVoucherPurchaseCount(ctx context.Context, voucherId string) error
	IncrementVoucherRedemptionCount(ctx context.Context, voucherId string, quantity int) error
	PurchaseExists(ctx context.Context, userId, voucherId string) (bool, error)
	InsertPurchase(ctx context.Context, purchase *models.VoucherPurchase) error
	// GetPurchaseForUpdate resolves either a purchase reference or a purchase id.
	GetPurchaseForUpdate(ctx context.Context, referenceOrId string) (*models.VoucherPurchase, error)
	UpdatePurchaseRedemption(ctx context.Context, purchase *models.VoucherPurchase) error

	// --- Deals ---
	InsertDeal(ctx context.Context, deal *models.Deal) error
	GetDealForUpdate(ctx context.Context, dealId string) (*models.Deal, error)
	UpdateDealPoints(ctx context.Context, deal *models.Deal) error
	InsertDealRequest(ctx context.Context, request *models.DealRequest) error
	GetDealRequestForUpdate(ctx context.Context, requestId string) (*models.DealRequest, error)
	DealRequestExists(ctx context.Context, requestingMerchantId, dealId string) (bool, error)
	UpdateDealRequestStatus(ctx context.Context, requestId, status string) error
	InsertConfirmation(ctx context.Context, confirmation *models.DealConfirmation) error
	GetConfirmationForUpdate(ctx context.Context, confirmationId string) (*models.DealConfirmation, error)
	UpdateConfirmation(ctx context.Context, confirmation *models.DealConfirmation) error
	InsertTransfer(ctx context.Context, transfer *models.PointsTransfer) error
	UpdateTransfer(ctx context.Context, transfer *models.PointsTransfer) error
}

// LedgerStore defines the contract that every backend must satisfy.
type LedgerStore interface {
	// WithTx runs fn in one database transaction. It commits when fn returns
	// nil and rolls back when fn returns an error or panics.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email string, isMerchant bool) (*models.User, error)

	// --- Wallets ---
	GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error)
	ListWallets(ctx context.Context) ([]models.Wallet, error)
	GetWalletHistory(ctx context.Context, walletId string, limit, offset int) ([]models.WalletHistoryEntry, error)
	ReconcileWallet(ctx context.Context, walletId string) error

	// --- Payments ---
	GetPaymentTransaction(ctx context.Context, orderId string) (*models.PaymentTransaction, error)
	ListPaymentTransactions(ctx context.Context, userId string, limit, offset int) ([]models.PaymentTransaction, error)

	// --- Vouchers ---
	GetVoucher(ctx context.Context, voucherId string) (*models.Voucher, error)
	GetPurchase(ctx context.Context, referenceOrId string) (*models.VoucherPurchase, error)
	ListUserPurchases(ctx context.Context, userId string) ([]models.VoucherPurchase, error)

	// --- Deals ---
	GetDeal(ctx context.Context, dealId string) (*models.Deal, error)
	GetDealRequest(ctx context.Context, requestId string) (*models.DealRequest, error)
	GetConfirmation(ctx context.Context, confirmationId string) (*models.DealConfirmation, error)
	ListTransfersForConfirmation(ctx context.Context, confirmationId string) ([]models.PointsTransfer, error)

	// --- Lifecycle ---
	Close()
}
