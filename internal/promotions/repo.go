package promotions

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists coupons and their redemption counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListActive(ctx context.Context) ([]models.Coupon, error)
	IncrementUsage(ctx context.Context, code string, guarded bool) (bool, error)
	DecrementUsage(ctx context.Context, code string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("minimum_purchase ASC").
		Order("code ASC").
		Find(&coupons).Error
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

// IncrementUsage bumps used_count. When guarded, exhausted coupons are left
// untouched and false is returned.
func (r *repository) IncrementUsage(ctx context.Context, code string, guarded bool) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Coupon{}).Where("code = ?", code)
	if guarded {
		query = query.Where("max_uses = 0 OR used_count < max_uses")
	}
	res := query.Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DecrementUsage(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("code = ? AND used_count > 0", code).
		Update("used_count", gorm.Expr("used_count - 1")).Error
}
