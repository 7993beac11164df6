package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists the append-only wallet ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LastSequence(ctx context.Context, userID uuid.UUID) (int64, error)
	Insert(ctx context.Context, txn *models.WalletTransaction) error
	SignedSum(ctx context.Context, userID uuid.UUID) (int64, error)
	ListPage(ctx context.Context, userID uuid.UUID, beforeSequence int64, limit int) ([]models.WalletTransaction, error)
	ListAll(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LastSequence(ctx context.Context, userID uuid.UUID) (int64, error) {
	var last models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sequence DESC").
		Limit(1).
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Sequence, nil
}

func (r *repository) Insert(ctx context.Context, txn *models.WalletTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) SignedSum(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN -amount ELSE amount END), 0)", enums.WalletTransactionDebit).
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// ListPage returns up to limit entries, newest first, with sequence below
// beforeSequence when it is positive.
func (r *repository) ListPage(ctx context.Context, userID uuid.UUID, beforeSequence int64, limit int) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if beforeSequence > 0 {
		query = query.Where("sequence < ?", beforeSequence)
	}
	var rows []models.WalletTransaction
	if err := query.Order("sequence DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAll(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
