package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultPaymentWindow = 30 * time.Minute
	intentBatchSize      = 100
	maxIntentBatches     = 20
)

// PaymentIntentTTLJobParams configure the abandoned-payment sweep.
type PaymentIntentTTLJobParams struct {
	Logger  *logger.Logger
	Expirer staleIntentExpirer
	// Window is how long a gateway attempt may stay open before it expires.
	Window    time.Duration
	BatchSize int
}

type staleIntentExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// NewPaymentIntentTTLJob builds the job that resolves gateway attempts the
// user never finished as expired.
func NewPaymentIntentTTLJob(params PaymentIntentTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("payment intent expirer required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultPaymentWindow
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = intentBatchSize
	}
	return &paymentIntentTTLJob{
		logg:    params.Logger,
		expirer: params.Expirer,
		window:  window,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type paymentIntentTTLJob struct {
	logg    *logger.Logger
	expirer staleIntentExpirer
	window  time.Duration
	batch   int
	now     func() time.Time
}

func (j *paymentIntentTTLJob) Name() string { return "payment_intent_ttl" }

// Run drains stale attempts batch by batch. A short batch means the backlog
// is empty; the batch cap bounds a single run.
func (j *paymentIntentTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	total := 0
	for range maxIntentBatches {
		expired, err := j.expirer.ExpireStale(ctx, cutoff, j.batch)
		total += expired
		if err != nil {
			return fmt.Errorf("expire stale payment intents: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": total,
	})
	j.logg.Info(logCtx, "payment intent expiration complete")
	return nil
}
