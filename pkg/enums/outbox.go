package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateWallet        OutboxAggregateType = "wallet"
	AggregatePaymentIntent OutboxAggregateType = "payment_intent"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateWallet,
	AggregatePaymentIntent,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderStatusChanged   OutboxEventType = "order_status_changed"
	EventOrderItemCancelled   OutboxEventType = "order_item_cancelled"
	EventOrderReturnRequested OutboxEventType = "order_return_requested"
	EventOrderReturnResolved  OutboxEventType = "order_return_resolved"
	EventPaymentReconciled    OutboxEventType = "payment_reconciled"
	EventPaymentRetried       OutboxEventType = "payment_retried"
	EventWalletCredited       OutboxEventType = "wallet_credited"
	EventWalletDebited        OutboxEventType = "wallet_debited"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderItemCancelled,
	EventOrderReturnRequested,
	EventOrderReturnResolved,
	EventPaymentReconciled,
	EventPaymentRetried,
	EventWalletCredited,
	EventWalletDebited,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, "event type", value)
}
