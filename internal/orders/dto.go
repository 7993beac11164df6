package orders

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Actor is whoever asks for a lifecycle change.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsAdmin reports whether the actor may act on any user's order.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

func (a Actor) ref() *outbox.ActorRef {
	if a.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}

// SystemActor is used for transitions driven by reconciliation and jobs.
var SystemActor = Actor{}

// Draft is everything needed to persist a new order.
type Draft struct {
	// ID is optional; set it when something must reference the order before
	// it exists.
	ID               uuid.UUID
	UserID           uuid.UUID
	Method           enums.PaymentMethod
	PaymentStatus    enums.PaymentStatus
	Checkout         types.CheckoutSnapshot
	Currency         enums.Currency
	GatewayPaymentID *string
	// StrictStock fails creation when stock or coupon uses ran out. Gateway
	// reconciliation turns it off because the money has already moved.
	StrictStock bool
}

// ListFilter narrows order listings.
type ListFilter struct {
	UserID        *uuid.UUID
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

// OrderList is a page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ReturnResolution is an admin's ruling on a return request.
type ReturnResolution struct {
	Decision        enums.ReturnDecision
	RejectionReason string
}

func trimmed(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
