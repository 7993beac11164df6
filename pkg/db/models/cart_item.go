package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem persists one cart line. Price and stock are read from the catalog
// when the cart is loaded, never trusted from here.
type CartItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:cart_items_user_product_size_key,priority:1"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:cart_items_user_product_size_key,priority:2"`
	SelectedSize string    `gorm:"column:selected_size;not null;uniqueIndex:cart_items_user_product_size_key,priority:3"`
	Quantity     int       `gorm:"column:quantity;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
