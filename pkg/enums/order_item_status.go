package enums

import "slices"

// OrderItemStatus tracks whether a line of an order is still being fulfilled.
type OrderItemStatus string

const (
	OrderItemStatusActive    OrderItemStatus = "active"
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusActive,
	OrderItemStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	return slices.Contains(validOrderItemStatuses, s)
}

// ParseOrderItemStatus converts raw input into a OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	return parse(validOrderItemStatuses, "order item status", value)
}
