package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNewClientKeyMustMatchEnv(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.StripeConfig
		ok   bool
	}{
		{"live key in test", config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec", Env: "test"}, false},
		{"test key in live", config.StripeConfig{APIKey: "rk_test_123", Secret: "whsec", Env: "live"}, false},
		{"bare prefix", config.StripeConfig{APIKey: "sk_test", Secret: "whsec"}, false},
		{"restricted live key", config.StripeConfig{APIKey: "rk_live_abc", Secret: "whsec", Env: "LIVE"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tc.cfg, nil)
			if (err == nil) != tc.ok {
				t.Fatalf("ok=%v err=%v", tc.ok, err)
			}
		})
	}
}

func TestNewClientRequiresSigningSecret(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_123", Secret: "  "}, nil)
	if !errors.Is(err, errSecretRequired) {
		t.Fatalf("expected errSecretRequired, got %v", err)
	}
}

func TestNewClientDefaultsToTestEnv(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "rk_test_123",
		Secret: " whsec_abc ",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Environment() != "test" {
		t.Fatalf("expected test env, got %q", client.Environment())
	}
	if client.SigningSecret() != "whsec_abc" {
		t.Fatalf("expected trimmed secret, got %q", client.SigningSecret())
	}
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	if c.Environment() != "" || c.SigningSecret() != "" {
		t.Fatal("nil client should report empty settings")
	}
	if _, err := normalizeEnv("staging"); !errors.Is(err, errInvalidStripeEnv) {
		t.Fatalf("expected env error, got %v", err)
	}
}

func TestResolveCredentialsTrimsKey(t *testing.T) {
	creds, err := resolveCredentials(config.StripeConfig{APIKey: "  sk_live_9 ", Secret: "whsec", Env: " Live "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.env != "live" || creds.apiKey != "sk_live_9" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if _, err := resolveCredentials(config.StripeConfig{Secret: "whsec"}); !errors.Is(err, errAPIKeyRequired) {
		t.Fatalf("expected errAPIKeyRequired, got %v", err)
	}
}
