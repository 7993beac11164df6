package stripe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

// keyPrefixes lists the secret and restricted key prefixes each env accepts.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client owns a keyed Stripe API client and the webhook signing secret.
type Client struct {
	api   *stripe.Client
	creds credentials
}

type credentials struct {
	env    string
	apiKey string
	secret string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	creds, err := resolveCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"stripe_env": creds.env,
			"key_kind":   creds.apiKey[:2],
		})
		logg.Info(ctx, "stripe client ready")
	}
	return &Client{api: stripe.NewClient(creds.apiKey), creds: creds}, nil
}

// resolveCredentials trims the configured values and checks the key belongs
// to the selected environment. A blank environment means test.
func resolveCredentials(cfg config.StripeConfig) (credentials, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return credentials{}, err
	}
	creds := credentials{
		env:    env,
		apiKey: strings.TrimSpace(cfg.APIKey),
		secret: strings.TrimSpace(cfg.Secret),
	}
	switch {
	case creds.apiKey == "":
		return credentials{}, errAPIKeyRequired
	case creds.secret == "":
		return credentials{}, errSecretRequired
	case !slices.ContainsFunc(keyPrefixes[env], func(p string) bool { return strings.HasPrefix(creds.apiKey, p) }):
		return credentials{}, fmt.Errorf("stripe environment %q needs a key starting with %s", env, strings.Join(keyPrefixes[env], " or "))
	}
	return creds, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.ToLower(strings.TrimSpace(raw))
	if env == "" {
		return testEnv, nil
	}
	if _, ok := keyPrefixes[env]; !ok {
		return "", errInvalidStripeEnv
	}
	return env, nil
}

func (c *Client) CreateIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	return c.api.V1PaymentIntents.Create(ctx, params)
}

// RetrieveIntent re-reads a PaymentIntent by id.
func (c *Client) RetrieveIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	return c.api.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.creds.env
}

// SigningSecret is the whsec_ value webhook payloads are verified against.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.creds.secret
}
