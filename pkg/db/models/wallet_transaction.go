package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// WalletTransaction is an append-only wallet ledger entry. Sequence is
// per-user and unique, so concurrent writers computing the same next entry
// collide on insert.
type WalletTransaction struct {
	ID           uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;uniqueIndex:wallet_transactions_user_sequence_key,priority:1"`
	Sequence     int64                       `gorm:"column:sequence;not null;uniqueIndex:wallet_transactions_user_sequence_key,priority:2"`
	Type         enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	Amount       int64                       `gorm:"column:amount;not null"`
	Description  string                      `gorm:"column:description;not null"`
	BalanceAfter int64                       `gorm:"column:balance_after;not null"`
	OrderID      *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

// Signed returns the amount with the sign of its direction.
func (t WalletTransaction) Signed() int64 {
	if t.Type == enums.WalletTransactionDebit {
		return -t.Amount
	}
	return t.Amount
}
