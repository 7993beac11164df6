package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the read model the checkout needs from the catalog.
type Product struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID   uuid.UUID      `gorm:"column:category_id;type:uuid;not null;index"`
	Name         string         `gorm:"column:name;not null"`
	Price        int64          `gorm:"column:price;not null"`
	MRP          int64          `gorm:"column:mrp;not null;default:0"`
	MaxPerPerson int            `gorm:"column:max_per_person;not null;default:0"`
	IsListed     bool           `gorm:"column:is_listed;not null"`
	Stock        []ProductStock `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductStock is the on-hand quantity for one size of a product.
type ProductStock struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Size      string    `gorm:"column:size;primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Category groups products and can carry a category-wide offer.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	IsListed  bool      `gorm:"column:is_listed;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
