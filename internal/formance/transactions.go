package formance

import (
	"context"
	"fmt"

	"voucher-wallet-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Credits come from @world. Debits go to @platform:spent, which is where
// purchase costs, listing fees and burned transfer fees end up. Overdraft is
// unbounded on the wallet side because entries may arrive out of order.

const numscriptCredit = `vars {
  asset $asset
  number $amount
  account $wallet_id
  string $entry_type
  string $reference_id
  string $note
  string $balance_after
}

send [$asset $amount] (
  source = @world
  destination = @wallets:$wallet_id
)

set_tx_meta("entry_type", $entry_type)
set_tx_meta("reference_id", $reference_id)
set_tx_meta("note", $note)
set_tx_meta("balance_after", $balance_after)
`

const numscriptDebit = `vars {
  asset $asset
  number $amount
  account $wallet_id
  string $entry_type
  string $reference_id
  string $note
  string $balance_after
}

send [$asset $amount] (
  source = @wallets:$wallet_id allowing unbounded overdraft
  destination = @platform:spent
)

set_tx_meta("entry_type", $entry_type)
set_tx_meta("reference_id", $reference_id)
set_tx_meta("note", $note)
set_tx_meta("balance_after", $balance_after)
`

// Publish posts each committed history entry as one Formance transaction.
// The entry id is the transaction reference, so re-publishing is harmless.
// Failures are logged and never surface to the caller.
func (s *Service) Publish(ctx context.Context, entries []models.WalletHistoryEntry) {
	for i := range entries {
		if err := s.PostEntry(ctx, &entries[i]); err != nil {
			zap.L().Error("Failed to mirror wallet entry",
				zap.String("entry_id", entries[i].Id),
				zap.String("wallet_id", entries[i].WalletId),
				zap.Error(err))
		}
	}
}

// PostEntry mirrors a single history entry
func (s *Service) PostEntry(ctx context.Context, entry *models.WalletHistoryEntry) error {
	postTx, err := buildPostTransaction(entry)
	if err != nil {
		return err
	}

	_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Wallet entry already mirrored", zap.String("entry_id", entry.Id))
			return nil
		}
		return fmt.Errorf("error posting wallet entry: %w", err)
	}

	zap.L().Debug("Wallet entry mirrored to Formance",
		zap.String("entry_id", entry.Id),
		zap.String("wallet_id", entry.WalletId),
		zap.String("type", entry.TransactionType),
		zap.String("amount", entry.Amount.String()))
	return nil
}

func buildPostTransaction(entry *models.WalletHistoryEntry) (shared.V2PostTransaction, error) {
	script := numscriptCredit
	switch entry.TransactionType {
	case models.EntryTypeCredit:
	case models.EntryTypeDebit:
		script = numscriptDebit
	default:
		return shared.V2PostTransaction{}, fmt.Errorf("unknown entry type %q", entry.TransactionType)
	}

	amount := toMinorUnits(entry.Amount.Abs())
	if amount == "0" {
		return shared.V2PostTransaction{}, fmt.Errorf("entry %s has no amount", entry.Id)
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(entry.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars: map[string]string{
				"asset":         pointsAsset(),
				"amount":        amount,
				"wallet_id":     entry.WalletId,
				"entry_type":    entry.TransactionType,
				"reference_id":  entry.ReferenceId,
				"note":          entry.Note,
				"balance_after": entry.BalanceAfter.String(),
			},
		},
	}
	if !entry.CreatedAt.IsZero() {
		ts := entry.CreatedAt
		postTx.Timestamp = &ts
	}
	return postTx, nil
}

// toMinorUnits renders points as an integer count of hundredths
func toMinorUnits(points decimal.Decimal) string {
	return points.Shift(pointsPrecision).BigInt().String()
}

func strPtr(s string) *string {
	return &s
}
