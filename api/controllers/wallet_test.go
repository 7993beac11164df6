package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/wallet"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubLedger struct {
	balance int64
	history *wallet.History
	audit   *wallet.AuditResult
	err     error
	entry   wallet.Entry
	calls   int
}

func (s *stubLedger) Credit(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error) {
	s.calls++
	s.entry = entry
	if s.err != nil {
		return nil, s.err
	}
	return &models.WalletTransaction{
		ID:           uuid.New(),
		UserID:       entry.UserID,
		Sequence:     1,
		Type:         enums.WalletTransactionCredit,
		Amount:       entry.Amount,
		Description:  entry.Description,
		BalanceAfter: entry.Amount,
	}, nil
}

func (s *stubLedger) Debit(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error) {
	return nil, nil
}

func (s *stubLedger) Balance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	s.calls++
	return s.balance, s.err
}

func (s *stubLedger) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*wallet.History, error) {
	s.calls++
	return s.history, s.err
}

func (s *stubLedger) Audit(ctx context.Context, userID uuid.UUID) (*wallet.AuditResult, error) {
	s.calls++
	return s.audit, s.err
}

func TestWalletBalance(t *testing.T) {
	ledger := &stubLedger{balance: 750}
	rec := serve(WalletBalance(ledger, nil), testRequest{method: http.MethodGet, path: "/api/v1/wallet", userID: uuid.New()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body walletBalanceResponse
	decodeData(t, rec, &body)
	if body.Balance != 750 {
		t.Fatalf("expected balance 750 got %d", body.Balance)
	}
}

func TestWalletTransactions(t *testing.T) {
	ledger := &stubLedger{history: &wallet.History{
		Balance: 300,
		Transactions: []models.WalletTransaction{
			{ID: uuid.New(), Sequence: 2, Type: enums.WalletTransactionDebit, Amount: 200, BalanceAfter: 300},
			{ID: uuid.New(), Sequence: 1, Type: enums.WalletTransactionCredit, Amount: 500, BalanceAfter: 500},
		},
	}}
	rec := serve(WalletTransactions(ledger, nil), testRequest{method: http.MethodGet, path: "/api/v1/wallet/transactions", userID: uuid.New()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body walletHistoryResponse
	decodeData(t, rec, &body)
	if body.Balance != 300 || len(body.Transactions) != 2 || body.Transactions[0].Sequence != 2 {
		t.Fatalf("unexpected history %+v", body)
	}
}

func TestAdminWalletCreditRecordsActor(t *testing.T) {
	adminID, customerID := uuid.New(), uuid.New()
	ledger := &stubLedger{}
	rec := serve(AdminWalletCredit(ledger, nil), testRequest{
		method: http.MethodPost,
		path:   "/api/admin/v1/wallets/" + customerID.String() + "/credit",
		body:   `{"amount":250,"description":"goodwill credit"}`,
		userID: adminID,
		role:   enums.UserRoleAdmin,
		params: map[string]string{"userId": customerID.String()},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if ledger.entry.UserID != customerID || ledger.entry.Amount != 250 {
		t.Fatalf("unexpected entry %+v", ledger.entry)
	}
	if ledger.entry.Actor == nil || ledger.entry.Actor.UserID != adminID || ledger.entry.Actor.Role != string(enums.UserRoleAdmin) {
		t.Fatalf("expected admin actor on entry, got %+v", ledger.entry.Actor)
	}
}

func TestAdminWalletCreditRejectsNonPositiveAmount(t *testing.T) {
	customerID := uuid.New()
	ledger := &stubLedger{}
	rec := serve(AdminWalletCredit(ledger, nil), testRequest{
		method: http.MethodPost,
		path:   "/api/admin/v1/wallets/" + customerID.String() + "/credit",
		body:   `{"amount":-5,"description":"oops"}`,
		userID: uuid.New(),
		role:   enums.UserRoleAdmin,
		params: map[string]string{"userId": customerID.String()},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if ledger.calls != 0 {
		t.Fatalf("ledger should not be called")
	}
}

func TestAdminWalletAudit(t *testing.T) {
	customerID := uuid.New()
	ledger := &stubLedger{audit: &wallet.AuditResult{UserID: customerID, Entries: 3, Balance: 100, Valid: true}}
	rec := serve(AdminWalletAudit(ledger, nil), testRequest{
		method: http.MethodGet,
		path:   "/api/admin/v1/wallets/" + customerID.String() + "/audit",
		userID: uuid.New(),
		role:   enums.UserRoleAdmin,
		params: map[string]string{"userId": customerID.String()},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body wallet.AuditResult
	decodeData(t, rec, &body)
	if !body.Valid || body.Entries != 3 {
		t.Fatalf("unexpected audit %+v", body)
	}
}
