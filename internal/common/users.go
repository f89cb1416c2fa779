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

package common

import (
	"context"
	"fmt"

	"voucher-wallet-go/internal/store"

	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id       string
	Name     string
	Email    string
	Merchant bool
}

// InitializeUsers retrieves users based on optional filters.
// If emailFilter is provided, returns a single user with that email.
// merchantsOnly drops regular users from the result.
func InitializeUsers(ctx context.Context, dbService store.LedgerStore, emailFilter string, merchantsOnly bool, logger *zap.Logger) ([]UserInfo, error) {
	var users []UserInfo

	if emailFilter != "" {
		logger.Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := dbService.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		if !merchantsOnly || user.IsMerchant {
			users = append(users, UserInfo{
				Id:       user.Id,
				Name:     user.Name,
				Email:    user.Email,
				Merchant: user.IsMerchant,
			})
		}
	} else {
		allUsers, err := dbService.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range allUsers {
			if merchantsOnly && !u.IsMerchant {
				continue
			}
			users = append(users, UserInfo{
				Id:       u.Id,
				Name:     u.Name,
				Email:    u.Email,
				Merchant: u.IsMerchant,
			})
		}
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)), zap.Bool("merchants_only", merchantsOnly))
	return users, nil
}
