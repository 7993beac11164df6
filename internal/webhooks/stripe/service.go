// Package stripewebhook turns Stripe PaymentIntent events into gateway
// reconciliations.
package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type reconciler interface {
	ReconcileWebhook(ctx context.Context, gatewayOrderID, gatewayPaymentID string, succeeded bool) (*gatewaypay.Result, error)
}

type ServiceParams struct {
	Reconciler reconciler
	Logger     *logger.Logger
}

type Service struct {
	reconciler reconciler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent reconciles PaymentIntent outcomes. Other event types are
// acknowledged and ignored, as are intents this service never opened.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var succeeded bool
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		succeeded = true
	case stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
		succeeded = false
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	result, err := s.reconciler.ReconcileWebhook(ctx, intent.ID, paymentID(&intent, succeeded), succeeded)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.log(ctx, intent.ID, event.ID, "stripe event for unknown payment intent ignored")
			return nil
		}
		return err
	}
	if result != nil && result.Order != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
		logCtx = s.logg.WithField(logCtx, "outcome", string(result.Outcome))
		s.logg.Info(s.logg.WithGatewayOrderID(logCtx, intent.ID), "stripe payment reconciled")
	}
	return nil
}

// paymentID prefers the charge id so it matches what the dashboard shows.
func paymentID(intent *stripe.PaymentIntent, succeeded bool) string {
	if !succeeded {
		return ""
	}
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		return intent.LatestCharge.ID
	}
	return intent.ID
}

func (s *Service) log(ctx context.Context, intentID, eventID, msg string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithGatewayOrderID(ctx, intentID)
	s.logg.Warn(s.logg.WithField(ctx, "stripe_event_id", eventID), msg)
}
