package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type: the aggregate it belongs to, its
// topic and the payload type it decodes into.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row the publisher must dead-letter instead of
// retrying.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewEventRegistry routes order and payment events to the orders topic and
// wallet events to the wallet topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.WalletTopic == "":
		return nil, errors.New("wallet topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range descriptors(cfg.OrdersTopic, cfg.WalletTopic) {
		if err := reg.register(desc); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func descriptors(ordersTopic, walletTopic string) []EventDescriptor {
	order := func(t enums.OutboxEventType, factory func() any) EventDescriptor {
		return EventDescriptor{EventType: t, AggregateType: enums.AggregateOrder, Topic: ordersTopic, PayloadFactory: factory}
	}
	payment := func(t enums.OutboxEventType, factory func() any) EventDescriptor {
		return EventDescriptor{EventType: t, AggregateType: enums.AggregatePaymentIntent, Topic: ordersTopic, PayloadFactory: factory}
	}
	wallet := func(t enums.OutboxEventType) EventDescriptor {
		return EventDescriptor{EventType: t, AggregateType: enums.AggregateWallet, Topic: walletTopic, PayloadFactory: newPayload[payloads.WalletTransactionEvent]}
	}
	return []EventDescriptor{
		order(enums.EventOrderCreated, newPayload[payloads.OrderCreatedEvent]),
		order(enums.EventOrderStatusChanged, newPayload[payloads.OrderStatusChangedEvent]),
		order(enums.EventOrderItemCancelled, newPayload[payloads.OrderItemCancelledEvent]),
		order(enums.EventOrderReturnRequested, newPayload[payloads.OrderReturnEvent]),
		order(enums.EventOrderReturnResolved, newPayload[payloads.OrderReturnEvent]),
		payment(enums.EventPaymentReconciled, newPayload[payloads.PaymentReconciledEvent]),
		payment(enums.EventPaymentRetried, newPayload[payloads.PaymentRetriedEvent]),
		wallet(enums.EventWalletCredited),
		wallet(enums.EventWalletDebited),
	}
}

func newPayload[T any]() any { return new(T) }

func (r *EventRegistry) register(desc EventDescriptor) error {
	if desc.PayloadFactory == nil {
		return fmt.Errorf("%s has no payload factory", desc.EventType)
	}
	if _, dup := r.entries[desc.EventType]; dup {
		return fmt.Errorf("%s registered twice", desc.EventType)
	}
	r.entries[desc.EventType] = desc
	return nil
}

// Topics lists the distinct topics events can be routed to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; !ok {
			seen[desc.Topic] = struct{}{}
			topics = append(topics, desc.Topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s expects aggregate %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
