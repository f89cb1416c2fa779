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

	"voucher-wallet-go/internal/api"
	"voucher-wallet-go/internal/common"
	"voucher-wallet-go/internal/config"
	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func printUser(user *models.User, userWallet *models.Wallet) {
	role := "customer"
	if user.IsMerchant {
		role = "merchant"
	}

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:       %s\n", user.Id)
	fmt.Printf("Name:     %s\n", user.Name)
	fmt.Printf("Email:    %s\n", user.Email)
	fmt.Printf("Role:     %s\n", role)
	common.PrintSeparator("-", common.DefaultWidth)
	fmt.Printf("Wallet:   %s\n", userWallet.Id)
	fmt.Printf("Balance:  %s\n", common.FormatPoints(userWallet.Balance))
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	idFlag := flag.String("id", "", "User id (optional, generated when empty)")
	merchantFlag := flag.Bool("merchant", false, "Register the user as a merchant")
	flag.Parse()

	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --name and --email")
	}

	userId := *idFlag
	if userId == "" {
		userId = uuid.New().String()
	}

	zap.L().Info("Starting user creation process",
		zap.String("id", userId),
		zap.String("name", *nameFlag),
		zap.String("email", *emailFlag),
		zap.Bool("merchant", *merchantFlag))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, userWallet, err := services.LedgerService.RegisterUser(ctx, api.RegisterUserRequest{
		UserId:     userId,
		Name:       *nameFlag,
		Email:      *emailFlag,
		IsMerchant: *merchantFlag,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserExists):
			zap.L().Fatal("User already exists", zap.String("id", userId), zap.String("email", *emailFlag))
		case errors.Is(err, store.ErrInvalidInput):
			zap.L().Fatal("Invalid user details", zap.Error(err))
		default:
			zap.L().Fatal("Failed to create user", zap.Error(err))
		}
	}

	printUser(user, userWallet)
	zap.L().Info("User and wallet created successfully",
		zap.String("id", user.Id),
		zap.String("wallet_id", userWallet.Id))
}
