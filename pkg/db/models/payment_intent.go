package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// PaymentIntent records one gateway payment attempt. OrderID is set once the
// attempt is reconciled, or up front when retrying a failed order.
type PaymentIntent struct {
	ID               uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID          *uuid.UUID                 `gorm:"column:order_id;type:uuid"`
	Provider         string                     `gorm:"column:provider;not null"`
	GatewayOrderID   string                     `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	GatewayPaymentID *string                    `gorm:"column:gateway_payment_id"`
	Amount           int64                      `gorm:"column:amount;not null"`
	Currency         enums.Currency             `gorm:"column:currency;type:text;not null;default:'INR'"`
	Outcome          enums.PaymentIntentOutcome `gorm:"column:outcome;type:text;not null;default:'created'"`
	Checkout         *types.CheckoutSnapshot    `gorm:"column:checkout;type:jsonb;serializer:json"`
	FailureReason    *string                    `gorm:"column:failure_reason"`
	ResolvedAt       *time.Time                 `gorm:"column:resolved_at"`
	CreatedAt        time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
