package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/api/responses"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// maxStripePayload matches the limit Stripe documents for event bodies.
const maxStripePayload = 64 << 10

const stripeSignatureHeader = "Stripe-Signature"

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	Begin(ctx context.Context, eventID string) (stripewebhook.Claim, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type stripeHandler struct {
	svc    StripeWebhookService
	client stripeClient
	guard  stripeWebhookGuard
	logg   *logger.Logger
}

// StripeWebhook verifies Stripe's signature and forwards payment intent events
// for reconciliation. A redelivery of a processed event is acknowledged
// without work; one that overlaps an in-flight delivery gets 409 so Stripe
// retries it later.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	h := &stripeHandler{svc: svc, client: client, guard: guard, logg: logg}
	return h.serve
}

func (h *stripeHandler) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.svc == nil || h.client == nil || h.guard == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
		return
	}

	event, err := h.verify(w, r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	if h.logg != nil {
		ctx = h.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "event_type": string(event.Type)})
	}

	claim, err := h.guard.Begin(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	switch claim {
	case stripewebhook.ClaimDuplicate:
		h.debug(ctx, "stripe event already processed")
		responses.WriteSuccess(w, nil)
		return
	case stripewebhook.ClaimInFlight:
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "event is being processed"))
		return
	}

	if err := h.process(ctx, &event); err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, nil)
}

// verify reads the capped body and checks the signature. Events signed for a
// different API version are accepted; the handler only reads intent fields
// that are stable across versions.
func (h *stripeHandler) verify(w http.ResponseWriter, r *http.Request) (stripe.Event, error) {
	sig := r.Header.Get(stripeSignatureHeader)
	if sig == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStripePayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "payload too large")
		}
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sig, h.client.SigningSecret(), webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature")
	}
	return event, nil
}

// process runs the event under the claim taken by Begin: success marks it done,
// failure releases it so Stripe's retry is handled.
func (h *stripeHandler) process(ctx context.Context, event *stripe.Event) error {
	detached := context.WithoutCancel(ctx)
	if err := h.svc.HandleEvent(ctx, event); err != nil {
		if relErr := h.guard.Release(detached, event.ID); relErr != nil && h.logg != nil {
			h.logg.Error(ctx, "release stripe event claim", relErr)
		}
		return err
	}
	if err := h.guard.Complete(detached, event.ID); err != nil && h.logg != nil {
		h.logg.Error(ctx, "mark stripe event processed", err)
	}
	if h.logg != nil {
		h.logg.Info(ctx, "stripe event processed")
	}
	return nil
}

func (h *stripeHandler) debug(ctx context.Context, msg string) {
	if h.logg != nil {
		h.logg.Debug(ctx, msg)
	}
}
