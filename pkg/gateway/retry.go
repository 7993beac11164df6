package gateway

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Retrying retries transient CreateOrder and Verify failures with exponential
// backoff. Non-transient errors return immediately.
type Retrying struct {
	next       Client
	maxRetries uint64
	base       time.Duration
	logg       *logger.Logger
}

// WithRetry wraps next using the configured retry budget.
func WithRetry(next Client, cfg config.GatewayConfig, logg *logger.Logger) *Retrying {
	base := cfg.RetryBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return &Retrying{next: next, maxRetries: cfg.MaxRetries, base: base, logg: logg}
}

func (r *Retrying) Provider() string { return r.next.Provider() }

func (r *Retrying) KeyID() string { return r.next.KeyID() }

func (r *Retrying) backoff() retry.Backoff {
	return retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.base))
}

func (r *Retrying) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	var order *Order
	attempt := 0
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		out, err := r.next.CreateOrder(ctx, amount, currency, receipt)
		if err != nil {
			if IsTransient(err) {
				r.warn(ctx, "gateway create order failed, retrying", attempt, err)
				return retry.RetryableError(err)
			}
			return err
		}
		order = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Retrying) Verify(ctx context.Context, v Verification) (bool, error) {
	var ok bool
	attempt := 0
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		out, err := r.next.Verify(ctx, v)
		if err != nil {
			if IsTransient(err) {
				r.warn(ctx, "gateway verify failed, retrying", attempt, err)
				return retry.RetryableError(err)
			}
			return err
		}
		ok = out
		return nil
	})
	return ok, err
}

func (r *Retrying) warn(ctx context.Context, msg string, attempt int, err error) {
	if r.logg == nil {
		return
	}
	ctx = r.logg.WithFields(ctx, map[string]any{"provider": r.next.Provider(), "attempt": attempt})
	r.logg.Warn(ctx, msg+": "+err.Error())
}

// New picks the configured provider and wraps it with retries.
func New(cfg config.GatewayConfig, stripeClient *pkgstripe.Client, logg *logger.Logger) (Client, error) {
	var base Client
	switch cfg.NormalizedProvider() {
	case config.GatewayProviderStripe:
		s, err := NewStripe(stripeClient)
		if err != nil {
			return nil, err
		}
		base = s
	default:
		rz, err := NewRazorpay(cfg, nil)
		if err != nil {
			return nil, err
		}
		base = rz
	}
	return WithRetry(base, cfg, logg), nil
}
