package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Rebuild folds entries in sequence order and returns the final balance.
// It fails when a sequence is skipped, a debit overdraws the running balance
// or a stored balance_after disagrees with the fold.
func Rebuild(entries []models.WalletTransaction) (int64, error) {
	var balance int64
	for i, entry := range entries {
		if entry.Sequence != int64(i+1) {
			return balance, fmt.Errorf("sequence gap at %d: found %d", i+1, entry.Sequence)
		}
		if entry.Amount <= 0 {
			return balance, fmt.Errorf("entry %d has non-positive amount %d", entry.Sequence, entry.Amount)
		}
		if entry.Type == enums.WalletTransactionDebit && entry.Amount > balance {
			return balance, fmt.Errorf("entry %d overdraws balance %d by %d", entry.Sequence, balance, entry.Amount-balance)
		}
		balance += entry.Signed()
		if entry.BalanceAfter != balance {
			return balance, fmt.Errorf("entry %d records balance %d, fold gives %d", entry.Sequence, entry.BalanceAfter, balance)
		}
	}
	return balance, nil
}

// AuditResult compares the folded ledger with the running balances stored on
// each entry.
type AuditResult struct {
	UserID  uuid.UUID `json:"user_id"`
	Entries int       `json:"entries"`
	Balance int64     `json:"balance"`
	Valid   bool      `json:"valid"`
	Problem string    `json:"problem,omitempty"`
}

// Audit rebuilds userID's balance from scratch.
func (l *ledger) Audit(ctx context.Context, userID uuid.UUID) (*AuditResult, error) {
	entries, err := l.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet ledger")
	}
	balance, rebuildErr := Rebuild(entries)
	out := &AuditResult{UserID: userID, Entries: len(entries), Balance: balance, Valid: rebuildErr == nil}
	if rebuildErr != nil {
		out.Problem = rebuildErr.Error()
		if l.logg != nil {
			l.logg.Error(l.logg.WithUserID(ctx, userID.String()), "wallet ledger audit failed", rebuildErr)
		}
	}
	return out, nil
}
