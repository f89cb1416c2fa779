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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sync"

	"voucher-wallet-go/internal/common"
	"voucher-wallet-go/internal/config"
	"voucher-wallet-go/internal/database"
	"voucher-wallet-go/internal/formance"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reconcileConcurrency = 8

type balanceStats struct {
	totalUsers        int
	usersWithWallets  int
	inactiveWallets   int
	reconcileFailures []string
	mirrorMismatches  []string
}

type walletReport struct {
	user   common.UserInfo
	wallet *models.Wallet
	recent []models.WalletHistoryEntry
	// set when -reconcile or -mirror ran
	reconcileErr  error
	mirrorBalance *string
}

func formatReference(refId string) string {
	if refId == "" {
		return "none"
	}
	if len(refId) > 12 {
		return refId[:12] + "..."
	}
	return refId
}

func printEntry(entry models.WalletHistoryEntry, isLast bool) {
	fmt.Printf("%s %-7s %12s -> %12s  %-30s (ref: %s, %s)\n",
		common.BoxDetailPrefix(isLast),
		entry.TransactionType,
		entry.Amount.StringFixed(2),
		entry.BalanceAfter.StringFixed(2),
		entry.Note,
		formatReference(entry.ReferenceId),
		entry.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printReport(report walletReport) {
	role := "customer"
	if report.user.Merchant {
		role = "merchant"
	}

	fmt.Printf("\n┌─ User: %s (%s) [%s]\n", report.user.Name, report.user.Email, role)
	fmt.Printf("│  ID: %s\n", report.user.Id)
	if report.wallet == nil {
		fmt.Printf("└  no wallet\n")
		return
	}

	status := "active"
	if !report.wallet.Active {
		status = "inactive"
	}
	fmt.Printf("│  Wallet: %s (%s, v%d)\n", report.wallet.Id, status, report.wallet.Version)
	fmt.Printf("│  Balance: %s\n", common.FormatPoints(report.wallet.Balance))
	if report.mirrorBalance != nil {
		fmt.Printf("│  Mirror:  %s\n", *report.mirrorBalance)
	}
	if report.reconcileErr != nil {
		fmt.Printf("│  Reconcile: FAILED (%v)\n", report.reconcileErr)
	}
	common.PrintBoxSeparator(78)

	for i, entry := range report.recent {
		printEntry(entry, i == len(report.recent)-1)
	}
}

func loadReports(ctx context.Context, users []common.UserInfo, dbService *database.Service, recent int) ([]walletReport, error) {
	reports := make([]walletReport, 0, len(users))
	for _, user := range users {
		report := walletReport{user: user}

		userWallet, err := dbService.GetWalletByUser(ctx, user.Id)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("failed to get wallet for %s: %w", user.Id, err)
		default:
			report.wallet = userWallet
			report.recent, err = dbService.GetWalletHistory(ctx, userWallet.Id, recent, 0)
			if err != nil {
				return nil, fmt.Errorf("failed to get history for %s: %w", user.Id, err)
			}
		}

		reports = append(reports, report)
	}
	return reports, nil
}

// verifyWallets reconciles every wallet and, when a mirror is given, compares
// the mirrored balance. Each wallet is checked independently.
func verifyWallets(ctx context.Context, reports []walletReport, dbService *database.Service, mirror *formance.Service, reconcile bool, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	var mu sync.Mutex
	for i := range reports {
		report := &reports[i]
		if report.wallet == nil {
			continue
		}

		g.Go(func() error {
			if reconcile {
				err := dbService.ReconcileWallet(gctx, report.wallet.Id)
				if err != nil && !errors.Is(err, store.ErrBalanceMismatch) {
					return fmt.Errorf("reconcile wallet %s: %w", report.wallet.Id, err)
				}
				mu.Lock()
				report.reconcileErr = err
				mu.Unlock()
			}

			if mirror != nil {
				balance, err := mirror.GetWalletBalance(gctx, report.wallet.Id)
				if err != nil {
					logger.Warn("Failed to read mirror balance",
						zap.String("wallet_id", report.wallet.Id),
						zap.Error(err))
					return nil
				}
				formatted := common.FormatPoints(balance)
				mu.Lock()
				report.mirrorBalance = &formatted
				mu.Unlock()
			}
			return nil
		})
	}

	return g.Wait()
}

func summarize(reports []walletReport) balanceStats {
	stats := balanceStats{}
	for _, report := range reports {
		stats.totalUsers++
		if report.wallet == nil {
			continue
		}
		stats.usersWithWallets++
		if !report.wallet.Active {
			stats.inactiveWallets++
		}
		if report.reconcileErr != nil {
			stats.reconcileFailures = append(stats.reconcileFailures, report.wallet.Id)
		}
		if report.mirrorBalance != nil && *report.mirrorBalance != common.FormatPoints(report.wallet.Balance) {
			stats.mirrorMismatches = append(stats.mirrorMismatches, report.wallet.Id)
		}
	}
	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	merchantsFlag := flag.Bool("merchants", false, "Only report merchant wallets")
	recentFlag := flag.Int("recent", 5, "Number of recent history entries to show per wallet")
	reconcileFlag := flag.Bool("reconcile", false, "Verify balance == sum(history) for every wallet")
	mirrorFlag := flag.Bool("mirror", false, "Compare balances against the Formance mirror")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var mirror *formance.Service
	if *mirrorFlag {
		if cfg.Formance.StackURL == "" {
			logger.Fatal("FORMANCE_STACK_URL must be set to compare against the mirror")
		}
		mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to Formance", zap.Error(err))
		}
		defer mirror.Close()
	}

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, *merchantsFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	reports, err := loadReports(ctx, users, dbService, *recentFlag)
	if err != nil {
		logger.Fatal("Failed to load wallets", zap.Error(err))
	}

	if *reconcileFlag || mirror != nil {
		if err := verifyWallets(ctx, reports, dbService, mirror, *reconcileFlag, logger); err != nil {
			logger.Fatal("Failed to verify wallets", zap.Error(err))
		}
	}

	common.PrintHeader("WALLET BALANCE REPORT", common.DefaultWidth)
	for _, report := range reports {
		printReport(report)
	}

	stats := summarize(reports)
	summary := fmt.Sprintf("SUMMARY: %d wallets (%d inactive) across %d users queried",
		stats.usersWithWallets, stats.inactiveWallets, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d reconcile failures", len(stats.reconcileFailures))
	}
	if mirror != nil {
		summary += fmt.Sprintf(", %d mirror mismatches", len(stats.mirrorMismatches))
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("wallets", stats.usersWithWallets),
		zap.Strings("reconcile_failures", stats.reconcileFailures),
		zap.Strings("mirror_mismatches", stats.mirrorMismatches))

	if len(stats.reconcileFailures) > 0 {
		logger.Fatal("Wallet reconciliation failed", zap.Int("wallets", len(stats.reconcileFailures)))
	}
}
