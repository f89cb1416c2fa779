package store

import "errors"

// Sentinel errors shared across all packages.
var (
	// validation
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrSelfRequest      = errors.New("cannot request own deal")
	ErrExceedsRemaining = errors.New("requested points exceed deal remaining points")
	ErrNotMerchant      = errors.New("user is not a merchant")

	// state conflict
	ErrUserExists             = errors.New("user already exists")
	ErrWalletExists           = errors.New("wallet already exists")
	ErrWalletInactive         = errors.New("wallet is inactive")
	ErrAlreadyPurchased       = errors.New("voucher already purchased")
	ErrOutOfStock             = errors.New("voucher out of stock")
	ErrAlreadyRedeemed        = errors.New("voucher already redeemed")
	ErrExpired                = errors.New("expired")
	ErrWrongStatus            = errors.New("wrong status for operation")
	ErrNotPending             = errors.New("not pending")
	ErrDuplicateRequest       = errors.New("deal already requested")
	ErrAlreadyProcessed       = errors.New("payment already processed")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrNotFound = errors.New("not found")
	ErrNotOwner = errors.New("not owner")

	// external
	ErrGateway            = errors.New("payment gateway error")
	ErrPaymentNotCaptured = errors.New("payment not captured")

	// internal
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrBalanceMismatch = errors.New("balance mismatch")
	ErrInternal        = errors.New("internal error")
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindStateConflict       Kind = "state_conflict"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindNotFound            Kind = "not_found"
	KindExternal            Kind = "external"
	KindInternal            Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidInput, KindValidation},
	{ErrInvalidSignature, KindValidation},
	{ErrSelfRequest, KindValidation},
	{ErrExceedsRemaining, KindValidation},
	{ErrNotMerchant, KindValidation},
	{ErrUserExists, KindStateConflict},
	{ErrWalletExists, KindStateConflict},
	{ErrWalletInactive, KindStateConflict},
	{ErrAlreadyPurchased, KindStateConflict},
	{ErrOutOfStock, KindStateConflict},
	{ErrAlreadyRedeemed, KindStateConflict},
	{ErrExpired, KindStateConflict},
	{ErrWrongStatus, KindStateConflict},
	{ErrNotPending, KindStateConflict},
	{ErrDuplicateRequest, KindStateConflict},
	{ErrAlreadyProcessed, KindStateConflict},
	{ErrConcurrentModification, KindStateConflict},
	{ErrInsufficientBalance, KindInsufficientBalance},
	{ErrNotFound, KindNotFound},
	{ErrNotOwner, KindNotFound},
	{ErrGateway, KindExternal},
	{ErrPaymentNotCaptured, KindExternal},
}

// KindOf returns the Kind of the first known sentinel wrapped by err.
// Unknown errors are internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsExpected reports whether err is a business outcome rather than a fault.
func IsExpected(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGateway) || errors.Is(err, ErrConcurrentModification)
}
