package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads products and offers and moves stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListedCategories(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	ActiveOffers(ctx context.Context, productIDs, categoryIDs []uuid.UUID) ([]models.Offer, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, size string, qty int) (bool, error)
	DecrementStockClamped(ctx context.Context, productID uuid.UUID, size string, qty int) error
	IncrementStock(ctx context.Context, productID uuid.UUID, size string, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Stock").
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) ListedCategories(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var cats []models.Category
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&cats).Error; err != nil {
		return nil, err
	}
	for _, cat := range cats {
		out[cat.ID] = cat.IsListed
	}
	return out, nil
}

// ActiveOffers returns flagged-active offers for the given targets. Validity
// windows are checked by the caller against its own clock.
func (r *repository) ActiveOffers(ctx context.Context, productIDs, categoryIDs []uuid.UUID) ([]models.Offer, error) {
	if len(productIDs) == 0 && len(categoryIDs) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	switch {
	case len(productIDs) > 0 && len(categoryIDs) > 0:
		query = query.Where("(product_id IN ? OR category_id IN ?)", productIDs, categoryIDs)
	case len(productIDs) > 0:
		query = query.Where("product_id IN ?", productIDs)
	default:
		query = query.Where("category_id IN ?", categoryIDs)
	}
	var offers []models.Offer
	if err := query.Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

// DecrementStock takes qty units only when that many are on hand. It reports
// false when the guard rejected the update.
func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, size string, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductStock{}).
		Where("product_id = ? AND size = ? AND quantity >= ?", productID, size, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementStockClamped takes up to qty units and never drops below zero.
func (r *repository) DecrementStockClamped(ctx context.Context, productID uuid.UUID, size string, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductStock{}).
		Where("product_id = ? AND size = ?", productID, size).
		Update("quantity", gorm.Expr("CASE WHEN quantity >= ? THEN quantity - ? ELSE 0 END", qty, qty)).Error
}

func (r *repository) IncrementStock(ctx context.Context, productID uuid.UUID, size string, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductStock{}).
		Where("product_id = ? AND size = ?", productID, size).
		Update("quantity", gorm.Expr("quantity + ?", qty)).Error
}
