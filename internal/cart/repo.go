package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Upsert(ctx context.Context, item *models.CartItem) error
	Delete(ctx context.Context, userID, productID uuid.UUID, size string) (bool, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) error
	Deduct(ctx context.Context, userID, productID uuid.UUID, size string, quantity int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert writes the line, replacing the quantity of an existing
// (user, product, size) row.
func (r *repository) Upsert(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "selected_size"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *repository) Delete(ctx context.Context, userID, productID uuid.UUID, size string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND selected_size = ?", userID, productID, size).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}

// Deduct lowers a line by quantity and drops it once nothing is left.
func (r *repository) Deduct(ctx context.Context, userID, productID uuid.UUID, size string, quantity int) error {
	line := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND selected_size = ?", userID, productID, size)
	if err := line.Session(&gorm.Session{}).
		Where("quantity <= ?", quantity).
		Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return line.Session(&gorm.Session{}).
		Model(&models.CartItem{}).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", quantity),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}
