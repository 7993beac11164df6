// Package wallet implements the per-user stored-value ledger. The balance is
// always the fold of the entries; nothing stores it separately.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Entry is a credit or debit request.
type Entry struct {
	UserID      uuid.UUID
	Amount      int64
	Description string
	OrderID     *uuid.UUID
	Actor       *outbox.ActorRef
}

func (e Entry) validate() error {
	if e.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if e.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(e.Description) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	return nil
}

// History is one page of ledger entries, newest first.
type History struct {
	Balance      int64                      `json:"balance"`
	Transactions []models.WalletTransaction `json:"transactions"`
	NextCursor   string                     `json:"next_cursor,omitempty"`
}

// Ledger is the wallet surface used by payments, orders and the API.
type Ledger interface {
	Credit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error)
	Debit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error)
	Balance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*History, error)
	Audit(ctx context.Context, userID uuid.UUID) (*AuditResult, error)
}

type ledger struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

// NewLedger wires the wallet ledger.
func NewLedger(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &ledger{repo: repo, tx: tx, outbox: emitter, logg: logg}, nil
}

// Credit appends a credit. With a nil tx it runs in its own transaction.
func (l *ledger) Credit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	return l.append(ctx, tx, enums.WalletTransactionCredit, entry)
}

// Debit appends a debit, failing with InsufficientFunds when the balance is
// short. With a nil tx it runs in its own transaction.
func (l *ledger) Debit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	return l.append(ctx, tx, enums.WalletTransactionDebit, entry)
}

func (l *ledger) append(ctx context.Context, tx *gorm.DB, kind enums.WalletTransactionType, entry Entry) (*models.WalletTransaction, error) {
	if err := entry.validate(); err != nil {
		return nil, err
	}
	if tx == nil {
		var out *models.WalletTransaction
		err := l.tx.WithTx(ctx, func(inner *gorm.DB) error {
			var err error
			out, err = l.appendTx(ctx, inner, kind, entry)
			return err
		})
		return out, err
	}
	return l.appendTx(ctx, tx, kind, entry)
}

func (l *ledger) appendTx(ctx context.Context, tx *gorm.DB, kind enums.WalletTransactionType, entry Entry) (*models.WalletTransaction, error) {
	repo := l.repo.WithTx(tx)

	balance, err := repo.SignedSum(ctx, entry.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read wallet balance")
	}
	next := balance + entry.Amount
	if kind == enums.WalletTransactionDebit {
		if entry.Amount > balance {
			return nil, InsufficientFunds(balance, entry.Amount)
		}
		next = balance - entry.Amount
	}

	seq, err := repo.LastSequence(ctx, entry.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read wallet sequence")
	}

	row := &models.WalletTransaction{
		UserID:       entry.UserID,
		Sequence:     seq + 1,
		Type:         kind,
		Amount:       entry.Amount,
		Description:  strings.TrimSpace(entry.Description),
		BalanceAfter: next,
		OrderID:      entry.OrderID,
	}
	if err := repo.Insert(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "wallet was updated concurrently, please retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append wallet entry")
	}

	eventType := enums.EventWalletCredited
	if kind == enums.WalletTransactionDebit {
		eventType = enums.EventWalletDebited
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWallet,
		AggregateID:   entry.UserID,
		Actor:         entry.Actor,
		Data: payloads.WalletTransactionEvent{
			TransactionID: row.ID,
			UserID:        row.UserID,
			Type:          row.Type,
			Amount:        row.Amount,
			BalanceAfter:  row.BalanceAfter,
			OrderID:       row.OrderID,
			Description:   row.Description,
		},
	}
	if err := l.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit wallet event")
	}

	if l.logg != nil {
		logCtx := l.logg.WithFields(l.logg.WithUserID(ctx, entry.UserID.String()), map[string]any{
			"wallet_type":   string(kind),
			"amount":        entry.Amount,
			"balance_after": next,
			"sequence":      row.Sequence,
		})
		l.logg.Info(logCtx, "wallet entry appended")
	}
	return row, nil
}

// InsufficientFunds builds the error returned when a debit exceeds balance.
func InsufficientFunds(balance, required int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").WithDetails(map[string]any{
		"balance":   balance,
		"required":  required,
		"shortfall": required - balance,
	})
}

// Balance folds the ledger. tx may be nil.
func (l *ledger) Balance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	sum, err := l.repo.WithTx(tx).SignedSum(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read wallet balance")
	}
	return sum, nil
}

func (l *ledger) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*History, error) {
	before, err := pagination.ParseSequenceCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := l.repo.ListPage(ctx, userID, before, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet transactions")
	}
	balance, err := l.Balance(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	page, next := pagination.Trim(rows, limit, func(tx models.WalletTransaction) string {
		return pagination.EncodeSequenceCursor(tx.Sequence)
	})
	return &History{Balance: balance, Transactions: page, NextCursor: next}, nil
}
