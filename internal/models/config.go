package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig
	Wallet       WalletConfig
	Gateway      GatewayConfig
	Formance     FormanceConfig
	SettingsFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// WalletConfig holds wallet provisioning settings
type WalletConfig struct {
	OpeningBalance decimal.Decimal
}

// GatewayConfig holds payment gateway credentials
type GatewayConfig struct {
	BaseURL   string
	KeyId     string
	KeySecret string
	Timeout   time.Duration
}

// FormanceConfig holds the optional Formance mirror settings.
// The mirror is disabled when StackURL is empty.
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// SiteSettings are the typed cost parameters injected into the coordinators
type SiteSettings struct {
	VoucherCost               decimal.Decimal
	GiftCardCost              decimal.Decimal
	AdvertisementCost         decimal.Decimal
	PointsConversionRate      decimal.Decimal
	MinimumFundingAmount      decimal.Decimal
	DealTransferFee           decimal.Decimal
	VoucherValidityDays       int
	MaxRedemptionsPerPurchase int
}

// DefaultSiteSettings returns the settings used when no settings file is present
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		VoucherCost:               decimal.NewFromInt(10),
		GiftCardCost:              decimal.NewFromInt(10),
		AdvertisementCost:         decimal.NewFromInt(10),
		PointsConversionRate:      decimal.NewFromInt(10),
		MinimumFundingAmount:      decimal.NewFromInt(1),
		DealTransferFee:           decimal.Zero,
		VoucherValidityDays:       30,
		MaxRedemptionsPerPurchase: 1,
	}
}
