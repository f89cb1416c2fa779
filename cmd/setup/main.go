package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"voucher-wallet-go/internal/api"
	"voucher-wallet-go/internal/common"
	"voucher-wallet-go/internal/config"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type seedStats struct {
	usersCreated    int
	usersExisting   int
	walletsCreated  int
	vouchersCreated int
	failures        []string
}

// ensureUser creates the seed user, or returns the stored one when the email is already registered
func ensureUser(ctx context.Context, services *common.Services, seed common.SeedUser, stats *seedStats) (*models.User, error) {
	existing, err := services.DbService.GetUserByEmail(ctx, seed.Email)
	if err == nil {
		zap.L().Info("User already exists",
			zap.String("id", existing.Id),
			zap.String("email", existing.Email))
		stats.usersExisting++
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	userId := seed.Id
	if userId == "" {
		userId = uuid.New().String()
	}

	user, userWallet, err := services.LedgerService.RegisterUser(ctx, api.RegisterUserRequest{
		UserId:     userId,
		Name:       seed.Name,
		Email:      seed.Email,
		IsMerchant: seed.Merchant,
	})
	if err != nil {
		return nil, err
	}

	stats.usersCreated++
	stats.walletsCreated++
	zap.L().Info("Seeded user",
		zap.String("id", user.Id),
		zap.Bool("merchant", user.IsMerchant),
		zap.String("balance", userWallet.Balance.String()))
	return user, nil
}

// ensureWallet provisions a wallet for users created before their wallet existed
func ensureWallet(ctx context.Context, services *common.Services, user *models.User, stats *seedStats) error {
	_, err := services.LedgerService.ProvisionWallet(ctx, api.ProvisionWalletRequest{
		UserId:         user.Id,
		OpeningBalance: services.OpeningBalance(),
	})
	switch {
	case err == nil:
		stats.walletsCreated++
		return nil
	case errors.Is(err, store.ErrWalletExists):
		return nil
	default:
		return err
	}
}

func seedVouchers(ctx context.Context, services *common.Services, user *models.User, vouchers []common.SeedVoucher, stats *seedStats) {
	for _, voucher := range vouchers {
		created, err := services.LedgerService.CreateVoucher(ctx, api.CreateVoucherRequest{
			MerchantId: user.Id,
			Title:      voucher.Title,
			IsGiftCard: voucher.IsGiftCard,
			Count:      voucher.Count,
		})
		if err != nil {
			zap.L().Error("Failed to create voucher",
				zap.String("merchant_id", user.Id),
				zap.String("title", voucher.Title),
				zap.Error(err))
			stats.failures = append(stats.failures, fmt.Sprintf("%s/%s", user.Email, voucher.Title))
			continue
		}

		fmt.Printf("✓ %s: voucher %q (%s), charged %s\n",
			user.Email, voucher.Title, created.VoucherId, common.FormatPoints(created.Cost))
		stats.vouchersCreated++
	}
}

func runSeed(ctx context.Context, services *common.Services, seedFile string, withVouchers bool) seedStats {
	zap.L().Info("Loading seed configuration", zap.String("file", seedFile))
	seedUsers, err := common.LoadSeedConfig(seedFile)
	if err != nil {
		zap.L().Fatal("Failed to load seed config", zap.Error(err))
	}
	zap.L().Info("Seed configuration loaded", zap.Int("users", len(seedUsers)))

	stats := seedStats{}
	for _, seed := range seedUsers {
		user, err := ensureUser(ctx, services, seed, &stats)
		if err != nil {
			zap.L().Error("Failed to seed user", zap.String("email", seed.Email), zap.Error(err))
			stats.failures = append(stats.failures, seed.Email)
			continue
		}

		if err := ensureWallet(ctx, services, user, &stats); err != nil {
			zap.L().Error("Failed to provision wallet", zap.String("user_id", user.Id), zap.Error(err))
			stats.failures = append(stats.failures, seed.Email+"/wallet")
			continue
		}

		if withVouchers && len(seed.Vouchers) > 0 {
			seedVouchers(ctx, services, user, seed.Vouchers, &stats)
		}
	}
	return stats
}

// provisionMissingWallets gives every registered user without a wallet one
func provisionMissingWallets(ctx context.Context, services *common.Services) seedStats {
	users, err := services.DbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read users from database", zap.Error(err))
	}

	stats := seedStats{}
	for i := range users {
		if err := ensureWallet(ctx, services, &users[i], &stats); err != nil {
			zap.L().Error("Failed to provision wallet", zap.String("user_id", users[i].Id), zap.Error(err))
			stats.failures = append(stats.failures, users[i].Email)
		}
	}
	return stats
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	seedFlag := flag.String("seed", "seed.yaml", "Seed file with users, merchants and their vouchers")
	initFlag := flag.Bool("init", false, "Seed users from the seed file (otherwise only provision missing wallets)")
	vouchersFlag := flag.Bool("vouchers", true, "Create the merchant vouchers listed in the seed file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var stats seedStats
	if *initFlag {
		stats = runSeed(ctx, services, *seedFlag, *vouchersFlag)
	} else {
		stats = provisionMissingWallets(ctx, services)
	}

	common.PrintHeader("SETUP SUMMARY", common.DefaultWidth)
	fmt.Printf("Users created:     %d\n", stats.usersCreated)
	fmt.Printf("Users existing:    %d\n", stats.usersExisting)
	fmt.Printf("Wallets created:   %d\n", stats.walletsCreated)
	fmt.Printf("Vouchers created:  %d\n", stats.vouchersCreated)
	if len(stats.failures) > 0 {
		fmt.Printf("Failures:          %s\n", strings.Join(stats.failures, ", "))
	}
	common.PrintSeparator("=", common.DefaultWidth)

	if len(stats.failures) > 0 {
		zap.L().Warn("Setup completed with some failures", zap.Strings("failures", stats.failures))
		return
	}
	zap.L().Info("Setup completed successfully",
		zap.Int("users_created", stats.usersCreated),
		zap.Int("wallets_created", stats.walletsCreated),
		zap.Int("vouchers_created", stats.vouchersCreated))
}
