package wallet

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func newTestLedger(t *testing.T) (Ledger, *db.Client) {
	t.Helper()
	client := dbtest.Client(t)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	l, err := NewLedger(NewRepository(client.DB()), client, emitter, nil)
	require.NoError(t, err)
	return l, client
}

func TestCreditThenDebit(t *testing.T) {
	l, client := newTestLedger(t)
	user := uuid.New()
	ctx := context.Background()

	_, err := l.Credit(ctx, nil, Entry{UserID: user, Amount: 1000, Description: "refund"})
	require.NoError(t, err)
	debit, err := l.Debit(ctx, nil, Entry{UserID: user, Amount: 300, Description: "order"})
	require.NoError(t, err)
	require.Equal(t, int64(2), debit.Sequence)
	require.Equal(t, int64(700), debit.BalanceAfter)

	balance, err := l.Balance(ctx, nil, user)
	require.NoError(t, err)
	require.Equal(t, int64(700), balance)

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("aggregate_id = ?", user).Count(&events).Error)
	require.Equal(t, int64(2), events)
}

func TestDebitBeyondBalanceLeavesLedgerUnchanged(t *testing.T) {
	l, _ := newTestLedger(t)
	user := uuid.New()
	ctx := context.Background()

	_, err := l.Credit(ctx, nil, Entry{UserID: user, Amount: 500, Description: "top up"})
	require.NoError(t, err)

	_, err = l.Debit(ctx, nil, Entry{UserID: user, Amount: 800, Description: "order"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, int64(300), details["shortfall"])

	balance, err := l.Balance(ctx, nil, user)
	require.NoError(t, err)
	require.Equal(t, int64(500), balance)

	audit, err := l.Audit(ctx, user)
	require.NoError(t, err)
	require.True(t, audit.Valid)
	require.Equal(t, 1, audit.Entries)
}

func TestEntryValidation(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Credit(ctx, nil, Entry{UserID: uuid.New(), Amount: 0, Description: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = l.Credit(ctx, nil, Entry{UserID: uuid.New(), Amount: 10, Description: " "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = l.Debit(ctx, nil, Entry{Amount: 10, Description: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDebitRollsBackWithCallerTransaction(t *testing.T) {
	l, client := newTestLedger(t)
	user := uuid.New()
	ctx := context.Background()
	dbtest.SeedWalletCredit(t, client.DB(), user, 900)

	boom := pkgerrors.New(pkgerrors.CodeInternal, "order insert failed")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := l.Debit(ctx, tx, Entry{UserID: user, Amount: 400, Description: "order"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := l.Balance(ctx, nil, user)
	require.NoError(t, err)
	require.Equal(t, int64(900), balance)
}

type staleSequenceRepo struct {
	Repository
}

func (r staleSequenceRepo) WithTx(tx *gorm.DB) Repository {
	return staleSequenceRepo{Repository: r.Repository.WithTx(tx)}
}

func (r staleSequenceRepo) LastSequence(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func TestConcurrentWriterCollisionIsConflict(t *testing.T) {
	client := dbtest.Client(t)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	l, err := NewLedger(staleSequenceRepo{NewRepository(client.DB())}, client, emitter, nil)
	require.NoError(t, err)

	user := uuid.New()
	dbtest.SeedWalletCredit(t, client.DB(), user, 100)

	_, err = l.Credit(context.Background(), nil, Entry{UserID: user, Amount: 50, Description: "refund"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestHistoryPagesNewestFirst(t *testing.T) {
	l, _ := newTestLedger(t)
	user := uuid.New()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := l.Credit(ctx, nil, Entry{UserID: user, Amount: int64(i * 10), Description: "credit"})
		require.NoError(t, err)
	}

	page, err := l.History(ctx, user, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, int64(150), page.Balance)
	require.Len(t, page.Transactions, 2)
	require.Equal(t, int64(5), page.Transactions[0].Sequence)
	require.NotEmpty(t, page.NextCursor)

	next, err := l.History(ctx, user, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Equal(t, int64(3), next.Transactions[0].Sequence)

	last, err := l.History(ctx, user, pagination.Params{Limit: 2, Cursor: next.NextCursor})
	require.NoError(t, err)
	require.Len(t, last.Transactions, 1)
	require.Empty(t, last.NextCursor)
}

func TestRandomLedgerFoldMatchesBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	user := uuid.New()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var expected int64
	for i := 0; i < 40; i++ {
		amount := int64(rng.Intn(500) + 1)
		if rng.Intn(2) == 0 {
			_, err := l.Credit(ctx, nil, Entry{UserID: user, Amount: amount, Description: "credit"})
			require.NoError(t, err)
			expected += amount
			continue
		}
		_, err := l.Debit(ctx, nil, Entry{UserID: user, Amount: amount, Description: "debit"})
		if amount > expected {
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
			continue
		}
		require.NoError(t, err)
		expected -= amount
	}

	balance, err := l.Balance(ctx, nil, user)
	require.NoError(t, err)
	require.Equal(t, expected, balance)
	require.GreaterOrEqual(t, balance, int64(0))

	audit, err := l.Audit(ctx, user)
	require.NoError(t, err)
	require.True(t, audit.Valid, audit.Problem)
	require.Equal(t, expected, audit.Balance)
}

func TestRebuildDetectsCorruption(t *testing.T) {
	entries := []models.WalletTransaction{
		{Sequence: 1, Type: enums.WalletTransactionCredit, Amount: 100, BalanceAfter: 100},
		{Sequence: 2, Type: enums.WalletTransactionDebit, Amount: 40, BalanceAfter: 60},
	}
	balance, err := Rebuild(entries)
	require.NoError(t, err)
	require.Equal(t, int64(60), balance)

	overdraw := append([]models.WalletTransaction{}, entries...)
	overdraw = append(overdraw, models.WalletTransaction{Sequence: 3, Type: enums.WalletTransactionDebit, Amount: 61, BalanceAfter: -1})
	_, err = Rebuild(overdraw)
	require.ErrorContains(t, err, "overdraws")

	gap := []models.WalletTransaction{entries[0], {Sequence: 3, Type: enums.WalletTransactionCredit, Amount: 1, BalanceAfter: 101}}
	_, err = Rebuild(gap)
	require.ErrorContains(t, err, "sequence gap")

	drift := []models.WalletTransaction{{Sequence: 1, Type: enums.WalletTransactionCredit, Amount: 100, BalanceAfter: 90}}
	_, err = Rebuild(drift)
	require.ErrorContains(t, err, "fold gives")

	empty, err := Rebuild(nil)
	require.NoError(t, err)
	require.Zero(t, empty)
}
