package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Coupon is a cart-wide discount code. For percentage coupons DiscountAmount
// is the percent; for fixed coupons it is a currency amount.
type Coupon struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string             `gorm:"column:code;not null;uniqueIndex"`
	Description     string             `gorm:"column:description"`
	DiscountType    enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountAmount  decimal.Decimal    `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	MinimumPurchase int64              `gorm:"column:minimum_purchase;not null;default:0"`
	MaxDiscount     *int64             `gorm:"column:max_discount"`
	ValidFrom       time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil      time.Time          `gorm:"column:valid_until;not null"`
	MaxUses         int                `gorm:"column:max_uses;not null;default:0"`
	UsedCount       int                `gorm:"column:used_count;not null;default:0"`
	IsActive        bool               `gorm:"column:is_active;not null"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
