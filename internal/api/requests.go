package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"voucher-wallet-go/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("points", validatePoints); err != nil {
		panic(err)
	}
}

// validatePoints accepts a non-negative decimal with at most two places.
// Combine with required or a positive check where zero is not allowed.
func validatePoints(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.Equal(d.Round(2))
}

type RegisterUserRequest struct {
	UserId     string `json:"user_id" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,min=2,max=128"`
	Email      string `json:"email" validate:"required,email"`
	IsMerchant bool   `json:"is_merchant"`
}

type ProvisionWalletRequest struct {
	UserId string `json:"user_id" validate:"required"`
	// OpeningBalance defaults to zero
	OpeningBalance string `json:"opening_balance" validate:"omitempty,points"`
}

type HistoryRequest struct {
	UserId string `json:"user_id" validate:"required"`
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
	Offset int    `json:"offset" validate:"gte=0"`
}

type FundingIntentRequest struct {
	UserId   string `json:"user_id" validate:"required"`
	Amount   string `json:"amount" validate:"required,points"`
	Currency string `json:"currency" validate:"omitempty,iso4217"`
}

type ConfirmPaymentRequest struct {
	OrderId   string `json:"order_id" validate:"required"`
	PaymentId string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"omitempty,hexadecimal,len=64"`
}

type CancelFundingIntentRequest struct {
	OrderId string `json:"order_id" validate:"required"`
	UserId  string `json:"user_id" validate:"required"`
}

type PurchaseVoucherRequest struct {
	UserId    string `json:"user_id" validate:"required"`
	VoucherId string `json:"voucher_id" validate:"required"`
}

type RedeemVoucherRequest struct {
	Reference  string `json:"reference" validate:"required"`
	MerchantId string `json:"merchant_id" validate:"required"`
	// Quantity defaults to one
	Quantity int    `json:"quantity" validate:"gte=0,lte=1000"`
	Location string `json:"location" validate:"max=255"`
}

type CreateVoucherRequest struct {
	MerchantId string `json:"merchant_id" validate:"required"`
	Title      string `json:"title" validate:"required,max=255"`
	IsGiftCard bool   `json:"is_gift_card"`
	Count      int    `json:"count" validate:"gte=0"`
}

type ChargeAdvertisementRequest struct {
	MerchantId string `json:"merchant_id" validate:"required"`
	VoucherId  string `json:"voucher_id" validate:"required"`
}

type CreateDealRequest struct {
	MerchantId    string `json:"merchant_id" validate:"required"`
	Title         string `json:"title" validate:"max=255"`
	PointsOffered string `json:"points_offered" validate:"required,points"`
	// ExpiresInDays of zero means the deal does not expire
	ExpiresInDays int `json:"expires_in_days" validate:"gte=0,lte=3650"`
}

type RequestDealRequest struct {
	RequesterId     string `json:"requester_id" validate:"required"`
	DealId          string `json:"deal_id" validate:"required"`
	PointsRequested string `json:"points_requested" validate:"required,points"`
	Message         string `json:"message" validate:"max=1000"`
}

type DealDecisionRequest struct {
	DealId    string `json:"deal_id" validate:"required"`
	RequestId string `json:"request_id" validate:"required"`
	OwnerId   string `json:"owner_id" validate:"required"`
}

type CancelDealRequestRequest struct {
	RequestId   string `json:"request_id" validate:"required"`
	RequesterId string `json:"requester_id" validate:"required"`
}

type ConfirmationRequest struct {
	ConfirmationId string `json:"confirmation_id" validate:"required"`
	CallerId       string `json:"caller_id" validate:"required"`
}

// validateRequest checks req against its tags and reports every failing
// field as a single store.ErrInvalidInput
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		messages = append(messages, fieldMessage(fieldError))
	}
	sort.Strings(messages)
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "points":
		return fmt.Sprintf("%s must be a non-negative amount with at most 2 decimal places", field)
	case "iso4217":
		return fmt.Sprintf("%s must be an ISO 4217 currency code", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// parsePoints reads a value that already passed the points tag
func parsePoints(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(value)
}
