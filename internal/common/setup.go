package common

import (
	"context"
	"log"
	"strings"

	"voucher-wallet-go/internal/api"
	"voucher-wallet-go/internal/config"
	"voucher-wallet-go/internal/database"
	"voucher-wallet-go/internal/deals"
	"voucher-wallet-go/internal/formance"
	"voucher-wallet-go/internal/gateway"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/payment"
	"voucher-wallet-go/internal/purchase"
	"voucher-wallet-go/internal/wallet"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// A missing .env is fine, the environment can come from the shell or a container
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService     *database.Service
	Engine        *wallet.Engine
	Mirror        *formance.Service
	Settings      models.SiteSettings
	LedgerService *api.LedgerService

	openingBalance decimal.Decimal
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the ledger, the coordinators and the api facade.
// The Formance mirror and the payment gateway are optional and only wired when configured.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	var opts []wallet.Option
	var mirror *formance.Service
	if cfg.Formance.StackURL != "" {
		zap.L().Info("Connecting Formance mirror", zap.String("stack_url", cfg.Formance.StackURL))
		mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		opts = append(opts, wallet.WithSink(mirror))
	} else {
		zap.L().Info("Formance mirror disabled")
	}

	engine := wallet.NewEngine(dbService, opts...)

	var payments *payment.Adapter
	if cfg.Gateway.KeyId != "" {
		gatewayService, err := gateway.NewService(cfg.Gateway)
		if err != nil {
			closeAll(dbService, mirror)
			return nil, err
		}
		payments = payment.NewAdapter(engine, gatewayService, settings)
	} else {
		zap.L().Warn("Payment gateway not configured, wallet funding is disabled")
	}

	ledgerService := api.NewLedgerService(engine, payments,
		purchase.NewCoordinator(engine, settings),
		deals.NewCoordinator(engine, settings),
		cfg.Wallet.OpeningBalance)

	zap.L().Info("Services initialized",
		zap.String("database", cfg.Database.Path),
		zap.Bool("mirror", mirror != nil),
		zap.Bool("payments", payments != nil))

	return &Services{
		DbService:     dbService,
		Engine:        engine,
		Mirror:        mirror,
		Settings:      settings,
		LedgerService: ledgerService,

		openingBalance: cfg.Wallet.OpeningBalance,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// OpeningBalance is the configured balance for new wallets, formatted for api requests
func (cs *Services) OpeningBalance() string {
	return cs.openingBalance.String()
}

func (cs *Services) Close() {
	closeAll(cs.DbService, cs.Mirror)
}

func closeAll(dbService *database.Service, mirror *formance.Service) {
	if mirror != nil {
		mirror.Close()
	}
	if dbService != nil {
		dbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
