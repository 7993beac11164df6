package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent announces a newly persisted order, whatever its payment state.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalAmount   int64               `json:"total_amount"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
}

// OrderStatusChangedEvent is emitted for every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Reason      string            `json:"reason,omitempty"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// OrderItemCancelledEvent records a single cancelled line.
type OrderItemCancelledEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	OrderItemID  uuid.UUID `json:"order_item_id"`
	UserID       uuid.UUID `json:"user_id"`
	RefundAmount int64     `json:"refund_amount"`
	Reason       string    `json:"reason"`
}

// OrderReturnEvent covers both the request and the admin's decision.
type OrderReturnEvent struct {
	OrderID         uuid.UUID             `json:"order_id"`
	UserID          uuid.UUID             `json:"user_id"`
	Reason          string                `json:"reason,omitempty"`
	Decision        *enums.ReturnDecision `json:"decision,omitempty"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	RefundAmount    int64                 `json:"refund_amount,omitempty"`
}

// PaymentReconciledEvent is emitted when a gateway attempt reaches a terminal outcome.
type PaymentReconciledEvent struct {
	OrderID          uuid.UUID                  `json:"order_id"`
	PaymentIntentID  uuid.UUID                  `json:"payment_intent_id"`
	GatewayOrderID   string                     `json:"gateway_order_id"`
	GatewayPaymentID string                     `json:"gateway_payment_id,omitempty"`
	Outcome          enums.PaymentIntentOutcome `json:"outcome"`
	PaymentStatus    enums.PaymentStatus        `json:"payment_status"`
	Amount           int64                      `json:"amount"`
}

// PaymentRetriedEvent signals a new gateway attempt for a failed order.
type PaymentRetriedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentIntentID uuid.UUID `json:"payment_intent_id"`
	GatewayOrderID  string    `json:"gateway_order_id"`
	Amount          int64     `json:"amount"`
}

// WalletTransactionEvent mirrors a wallet ledger entry.
type WalletTransactionEvent struct {
	TransactionID uuid.UUID                   `json:"transaction_id"`
	UserID        uuid.UUID                   `json:"user_id"`
	Type          enums.WalletTransactionType `json:"type"`
	Amount        int64                       `json:"amount"`
	BalanceAfter  int64                       `json:"balance_after"`
	OrderID       *uuid.UUID                  `json:"order_id,omitempty"`
	Description   string                      `json:"description"`
}
