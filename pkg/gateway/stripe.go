package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// intentAPI is the slice of the Stripe client the gateway calls.
type intentAPI interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// Stripe maps gateway orders onto PaymentIntents. Verification re-reads the
// intent instead of trusting a client signature.
type Stripe struct {
	api intentAPI
}

func NewStripe(client *pkgstripe.Client) (*Stripe, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Stripe{api: client}, nil
}

func (s *Stripe) Provider() string { return config.GatewayProviderStripe }

func (s *Stripe) KeyID() string { return "" }

func (s *Stripe) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway amount must be positive")
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(MinorUnits(amount)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if receipt != "" {
		params.AddMetadata("receipt", receipt)
	}
	intent, err := s.api.CreateIntent(ctx, params)
	if err != nil {
		return nil, stripeError(err, "create payment intent")
	}
	return &Order{
		ID:           intent.ID,
		Amount:       amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (s *Stripe) Verify(ctx context.Context, v Verification) (bool, error) {
	if v.OrderID == "" {
		return false, nil
	}
	intent, err := s.api.RetrieveIntent(ctx, v.OrderID)
	if err != nil {
		return false, stripeError(err, "fetch payment intent")
	}
	return intent.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func stripeError(err error, message string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode > 0 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429 {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	}
	return transient(err, message)
}
