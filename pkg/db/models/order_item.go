package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderItem is a priced snapshot of one cart line.
type OrderItem struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	ProductName        string                 `gorm:"column:product_name;not null"`
	SelectedSize       string                 `gorm:"column:selected_size;not null"`
	Quantity           int                    `gorm:"column:quantity;not null"`
	Price              int64                  `gorm:"column:price;not null"`
	OriginalPrice      int64                  `gorm:"column:original_price;not null"`
	OfferID            *uuid.UUID             `gorm:"column:offer_id;type:uuid"`
	Status             enums.OrderItemStatus  `gorm:"column:status;type:text;not null;default:'active'"`
	CancellationReason *string                `gorm:"column:cancellation_reason"`
	RefundStatus       enums.ItemRefundStatus `gorm:"column:refund_status;type:text;not null;default:'none'"`
	RefundAmount       int64                  `gorm:"column:refund_amount;not null;default:0"`
	CancelledAt        *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal returns price × quantity.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}
