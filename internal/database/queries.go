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

package database

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, is_merchant, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email, is_merchant) VALUES (?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, is_merchant, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, is_merchant, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Wallet queries
	walletColumns = `id, user_id, balance, active, version, created_at, updated_at`

	queryGetWalletByUser = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ?`

	queryListWallets = `
		SELECT ` + walletColumns + `
		FROM wallets
		ORDER BY created_at, id`

	queryInsertWallet = `
		INSERT INTO wallets (id, user_id, balance, active, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryUpdateWalletBalance = `
		UPDATE wallets
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	querySetWalletActive = `
		UPDATE wallets SET active = ?, updated_at = ? WHERE id = ?`

	// History queries
	historyColumns = `id, wallet_id, transaction_type, amount, balance_before, balance_after,
		reference_note, reference_id, meta, created_at`

	queryInsertHistory = `
		INSERT INTO wallet_history (id, wallet_id, transaction_type, amount, balance_before, balance_after,
			reference_note, reference_id, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWalletHistory = `
		SELECT ` + historyColumns + `
		FROM wallet_history
		WHERE wallet_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	querySumHistoryAmounts = `
		SELECT amount FROM wallet_history WHERE wallet_id = ?`

	queryGetWalletById = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, history_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	// Payment queries
	paymentColumns = `id, user_id, wallet_id, order_id, payment_id, signature, amount, points_to_add,
		currency, status, description, receipt, notes, error_code, error_description, created_at, updated_at`

	queryInsertPayment = `
		INSERT INTO payment_transactions (id, user_id, wallet_id, order_id, payment_id, signature, amount,
			points_to_add, currency, status, description, receipt, notes, error_code, error_description,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetPaymentByOrder = `
		SELECT ` + paymentColumns + `
		FROM payment_transactions
		WHERE order_id = ?`

	queryListUserPayments = `
		SELECT ` + paymentColumns + `
		FROM payment_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryUpdatePayment = `
		UPDATE payment_transactions
		SET payment_id = ?, signature = ?, status = ?, error_code = ?, error_description = ?, updated_at = ?
		WHERE id = ?`

	// Voucher queries
	voucherColumns = `id, merchant_id, title, is_gift_card, count, purchase_count, redemption_count,
		active, created_at, updated_at`

	queryInsertVoucher = `
		INSERT INTO vouchers (id, merchant_id, title, is_gift_card, count, purchase_count, redemption_count,
			active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetVoucher = `
		SELECT ` + voucherColumns + `
		FROM vouchers
		WHERE id = ?`

	queryIncrementPurchaseCount = `
		UPDATE vouchers SET purchase_count = purchase_count + 1, updated_at = ? WHERE id = ?`

	queryIncrementRedemptionCount = `
		UPDATE vouchers SET redemption_count = redemption_count + ?, updated_at = ? WHERE id = ?`

	// Purchase queries
	purchaseColumns = `id, user_id, voucher_id, purchase_reference, purchase_cost, active, purchase_status,
		purchased_at, redeemed_at, redemption_location, expiry_date, remaining_redemptions, wallet_transaction_id`

	queryPurchaseExists = `
		SELECT 1 FROM voucher_purchases WHERE user_id = ? AND voucher_id = ? AND active = 1 LIMIT 1`

	queryInsertPurchase = `
		INSERT INTO voucher_purchases (id, user_id, voucher_id, purchase_reference, purchase_cost, active,
			purchase_status, purchased_at, redeemed_at, redemption_location, expiry_date, remaining_redemptions,
			wallet_transaction_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetPurchase = `
		SELECT ` + purchaseColumns + `
		FROM voucher_purchases
		WHERE purchase_reference = ? OR id = ?`

	queryListUserPurchases = `
		SELECT ` + purchaseColumns + `
		FROM voucher_purchases
		WHERE user_id = ?
		ORDER BY purchased_at DESC, rowid DESC`

	queryUpdatePurchaseRedemption = `
		UPDATE voucher_purchases
		SET purchase_status = ?, redeemed_at = ?, redemption_location = ?, remaining_redemptions = ?
		WHERE id = ?`

	// Deal queries
	dealColumns = `id, merchant_id, title, points_offered, points_used, points_remaining, status,
		expiry_date, created_at, updated_at`

	queryInsertDeal = `
		INSERT INTO deals (id, merchant_id, title, points_offered, points_used, points_remaining, status,
			expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetDeal = `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE id = ?`

	queryUpdateDealPoints = `
		UPDATE deals
		SET points_used = ?, points_remaining = ?, status = ?, updated_at = ?
		WHERE id = ?`

	requestColumns = `id, requesting_merchant_id, deal_id, status, points_requested, message, created_at, updated_at`

	queryInsertDealRequest = `
		INSERT INTO deal_requests (id, requesting_merchant_id, deal_id, status, points_requested, message,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetDealRequest = `
		SELECT ` + requestColumns + `
		FROM deal_requests
		WHERE id = ?`

	queryDealRequestExists = `
		SELECT 1 FROM deal_requests WHERE requesting_merchant_id = ? AND deal_id = ? LIMIT 1`

	queryUpdateDealRequestStatus = `
		UPDATE deal_requests SET status = ?, updated_at = ? WHERE id = ?`

	confirmationColumns = `id, deal_id, deal_request_id, merchant1_id, merchant2_id, status, points_exchanged,
		confirmation_time, completed_time, created_at, updated_at`

	queryInsertConfirmation = `
		INSERT INTO deal_confirmations (id, deal_id, deal_request_id, merchant1_id, merchant2_id, status,
			points_exchanged, confirmation_time, completed_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetConfirmation = `
		SELECT ` + confirmationColumns + `
		FROM deal_confirmations
		WHERE id = ?`

	queryUpdateConfirmation = `
		UPDATE deal_confirmations
		SET status = ?, confirmation_time = ?, completed_time = ?, updated_at = ?
		WHERE id = ?`

	transferColumns = `id, confirmation_id, from_merchant_id, to_merchant_id, points_amount, transfer_fee,
		net_amount, status, transaction_id, notes, transfer_time, created_at`

	queryInsertTransfer = `
		INSERT INTO points_transfers (id, confirmation_id, from_merchant_id, to_merchant_id, points_amount,
			transfer_fee, net_amount, status, transaction_id, notes, transfer_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateTransfer = `
		UPDATE points_transfers
		SET status = ?, notes = ?, transfer_time = ?
		WHERE id = ?`

	queryListTransfersForConfirmation = `
		SELECT ` + transferColumns + `
		FROM points_transfers
		WHERE confirmation_id = ?
		ORDER BY created_at, rowid`
)
