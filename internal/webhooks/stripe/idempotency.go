package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	claimTTL      = 5 * time.Minute
	markerPending = "pending"
	markerDone    = "done"
)

// Claim is the outcome of IdempotencyGuard.Begin.
type Claim int

const (
	// ClaimAcquired means this delivery owns the event and must call
	// Complete or Release.
	ClaimAcquired Claim = iota
	// ClaimDuplicate means the event was already processed.
	ClaimDuplicate
	// ClaimInFlight means another delivery of the event is being processed.
	ClaimInFlight
)

type guardStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookKey(provider, eventID string) string
}

// IdempotencyGuard marks webhook events in two phases: a short-lived pending
// claim while the event is handled, then a done marker kept for ttl.
type IdempotencyGuard struct {
	store    guardStore
	ttl      time.Duration
	provider string
}

func NewIdempotencyGuard(store guardStore, ttl time.Duration, provider string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	case provider == "":
		return nil, errors.New("provider is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, provider: provider}, nil
}

func (g *IdempotencyGuard) Begin(ctx context.Context, eventID string) (Claim, error) {
	if eventID == "" {
		return 0, errors.New("event id is required")
	}
	key := g.store.WebhookKey(g.provider, eventID)
	acquired, err := g.store.SetNX(ctx, key, markerPending, claimTTL)
	if err != nil {
		return 0, fmt.Errorf("claim webhook event: %w", err)
	}
	if acquired {
		return ClaimAcquired, nil
	}

	marker, err := g.store.Get(ctx, key)
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, fmt.Errorf("read webhook marker: %w", err)
	}
	switch marker {
	case markerDone:
		return ClaimDuplicate, nil
	case "":
		// The pending claim expired between SetNX and Get.
		return g.Begin(ctx, eventID)
	default:
		return ClaimInFlight, nil
	}
}

func (g *IdempotencyGuard) Complete(ctx context.Context, eventID string) error {
	if err := g.store.Set(ctx, g.store.WebhookKey(g.provider, eventID), markerDone, g.ttl); err != nil {
		return fmt.Errorf("mark webhook event done: %w", err)
	}
	return nil
}

// Release drops a pending claim so the gateway's next delivery is processed.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	return g.store.Del(ctx, g.store.WebhookKey(g.provider, eventID))
}
