package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Offer is a time-bounded percentage discount on a product or a category.
type Offer struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string           `gorm:"column:name;not null"`
	Scope         enums.OfferScope `gorm:"column:scope;type:text;not null"`
	ProductID     *uuid.UUID       `gorm:"column:product_id;type:uuid;index"`
	CategoryID    *uuid.UUID       `gorm:"column:category_id;type:uuid;index"`
	DiscountValue decimal.Decimal  `gorm:"column:discount_value;type:numeric(5,2);not null"`
	ValidFrom     time.Time        `gorm:"column:valid_from;not null"`
	ValidUntil    time.Time        `gorm:"column:valid_until;not null"`
	IsActive      bool             `gorm:"column:is_active;not null"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
