package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the immutable priced record produced by one checkout. Amounts are
// whole currency units.
type Order struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber           string                `gorm:"column:order_number;not null;uniqueIndex"`
	UserID                uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID             uuid.UUID             `gorm:"column:address_id;type:uuid;not null"`
	ShippingAddress       types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	PaymentMethod         enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus         enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status                enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency              enums.Currency        `gorm:"column:currency;type:text;not null;default:'INR'"`
	SubtotalAmount        int64                 `gorm:"column:subtotal_amount;not null"`
	DiscountAmount        int64                 `gorm:"column:discount_amount;not null;default:0"`
	ShippingCharge        int64                 `gorm:"column:shipping_charge;not null;default:0"`
	TotalAmount           int64                 `gorm:"column:total_amount;not null"`
	CouponCode            *string               `gorm:"column:coupon_code"`
	RefundedAmount        int64                 `gorm:"column:refunded_amount;not null;default:0"`
	RefundStatus          enums.RefundStatus    `gorm:"column:refund_status;type:text;not null;default:'none'"`
	Committed             bool                  `gorm:"column:committed;not null;default:false"`
	CancellationReason    *string               `gorm:"column:cancellation_reason"`
	ReturnReason          *string               `gorm:"column:return_reason"`
	ReturnRejectionReason *string               `gorm:"column:return_rejection_reason"`
	GatewayPaymentID      *string               `gorm:"column:gateway_payment_id"`
	PaidAt                *time.Time            `gorm:"column:paid_at"`
	ShippedAt             *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt           *time.Time            `gorm:"column:delivered_at"`
	CancelledAt           *time.Time            `gorm:"column:cancelled_at"`
	ReturnRequestedAt     *time.Time            `gorm:"column:return_requested_at"`
	ReturnedAt            *time.Time            `gorm:"column:returned_at"`
	Items                 []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
