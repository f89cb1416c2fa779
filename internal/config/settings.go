package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"voucher-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// settingsFile mirrors the YAML layout. Absent keys stay nil and keep their default.
type settingsFile struct {
	VoucherCost               *string `yaml:"voucher_cost"`
	GiftCardCost              *string `yaml:"gift_card_cost"`
	AdvertisementCost         *string `yaml:"advertisement_cost"`
	PointsConversionRate      *string `yaml:"points_conversion_rate"`
	MinimumFundingAmount      *string `yaml:"minimum_funding_amount"`
	DealTransferFee           *string `yaml:"deal_transfer_fee"`
	VoucherValidityDays       *int    `yaml:"voucher_validity_days"`
	MaxRedemptionsPerPurchase *int    `yaml:"max_redemptions_per_purchase"`
}

type decimalRange struct {
	min, max     decimal.Decimal
	minExclusive bool
}

func (r decimalRange) contains(v decimal.Decimal) bool {
	if r.minExclusive && !v.GreaterThan(r.min) {
		return false
	}
	if v.LessThan(r.min) {
		return false
	}
	return !v.GreaterThan(r.max)
}

var (
	costRange = decimalRange{min: decimal.Zero, max: decimal.NewFromInt(1_000_000), minExclusive: true}
	rateRange = decimalRange{min: decimal.Zero, max: decimal.NewFromInt(10_000), minExclusive: true}
	feeRange  = decimalRange{min: decimal.Zero, max: decimal.NewFromInt(1_000_000)}
)

// LoadSettings reads site settings from a YAML file. A missing file yields
// the defaults. A value that does not parse or is out of range is logged and
// replaced by its default.
func LoadSettings(settingsPath string) (models.SiteSettings, error) {
	settings := models.DefaultSiteSettings()
	if settingsPath == "" {
		return settings, nil
	}

	if !filepath.IsAbs(settingsPath) {
		wd, err := os.Getwd()
		if err != nil {
			return settings, fmt.Errorf("failed to get working directory: %w", err)
		}
		settingsPath = filepath.Join(wd, settingsPath)
	}

	data, err := os.ReadFile(settingsPath)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Info("No settings file, using defaults", zap.String("path", settingsPath))
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("unable to read %s: %w", settingsPath, err)
	}

	var file settingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return settings, fmt.Errorf("unable to parse %s: %w", settingsPath, err)
	}

	applyDecimal("voucher_cost", file.VoucherCost, costRange, &settings.VoucherCost)
	applyDecimal("gift_card_cost", file.GiftCardCost, costRange, &settings.GiftCardCost)
	applyDecimal("advertisement_cost", file.AdvertisementCost, costRange, &settings.AdvertisementCost)
	applyDecimal("points_conversion_rate", file.PointsConversionRate, rateRange, &settings.PointsConversionRate)
	applyDecimal("minimum_funding_amount", file.MinimumFundingAmount, costRange, &settings.MinimumFundingAmount)
	applyDecimal("deal_transfer_fee", file.DealTransferFee, feeRange, &settings.DealTransferFee)
	applyInt("voucher_validity_days", file.VoucherValidityDays, 1, 3650, &settings.VoucherValidityDays)
	applyInt("max_redemptions_per_purchase", file.MaxRedemptionsPerPurchase, 1, 1000, &settings.MaxRedemptionsPerPurchase)

	zap.L().Info("Site settings loaded",
		zap.String("path", settingsPath),
		zap.String("voucher_cost", settings.VoucherCost.String()),
		zap.String("gift_card_cost", settings.GiftCardCost.String()),
		zap.String("advertisement_cost", settings.AdvertisementCost.String()),
		zap.String("points_conversion_rate", settings.PointsConversionRate.String()),
		zap.String("deal_transfer_fee", settings.DealTransferFee.String()))
	return settings, nil
}

func applyDecimal(key string, raw *string, r decimalRange, target *decimal.Decimal) {
	if raw == nil {
		return
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil || !r.contains(value) {
		zap.L().Warn("Invalid setting, using default",
			zap.String("key", key),
			zap.String("value", *raw),
			zap.String("default", target.String()))
		return
	}
	*target = value
}

func applyInt(key string, raw *int, lo, hi int, target *int) {
	if raw == nil {
		return
	}
	if *raw < lo || *raw > hi {
		zap.L().Warn("Invalid setting, using default",
			zap.String("key", key),
			zap.Int("value", *raw),
			zap.Int("default", *target))
		return
	}
	*target = *raw
}
