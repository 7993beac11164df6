package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeExpirer struct {
	results []int
	err     error
	cutoffs []time.Time
	limits  []int
}

func (f *fakeExpirer) ExpireStale(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.results) == 0 {
		return 0, nil
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, nil
}

func newPaymentIntentJob(t *testing.T, expirer *fakeExpirer, window time.Duration, batch int) *paymentIntentTTLJob {
	t.Helper()
	jobIface, err := NewPaymentIntentTTLJob(PaymentIntentTTLJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Expirer:   expirer,
		Window:    window,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("NewPaymentIntentTTLJob: %v", err)
	}
	return jobIface.(*paymentIntentTTLJob)
}

func TestPaymentIntentTTLJobUsesPaymentWindowCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{results: []int{3}}
	job := newPaymentIntentJob(t, expirer, 15*time.Minute, 10)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.cutoffs) != 1 {
		t.Fatalf("expected one batch, got %d", len(expirer.cutoffs))
	}
	if want := now.Add(-15 * time.Minute); !expirer.cutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, expirer.cutoffs[0])
	}
	if expirer.limits[0] != 10 {
		t.Fatalf("expected batch size 10, got %d", expirer.limits[0])
	}
}

func TestPaymentIntentTTLJobDrainsFullBatches(t *testing.T) {
	expirer := &fakeExpirer{results: []int{2, 2, 1}}
	job := newPaymentIntentJob(t, expirer, 0, 2)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.cutoffs) != 3 {
		t.Fatalf("expected three batches, got %d", len(expirer.cutoffs))
	}
}

func TestPaymentIntentTTLJobStopsAtBatchCap(t *testing.T) {
	results := make([]int, maxIntentBatches+5)
	for i := range results {
		results[i] = 1
	}
	expirer := &fakeExpirer{results: results}
	job := newPaymentIntentJob(t, expirer, 0, 1)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.cutoffs) != maxIntentBatches {
		t.Fatalf("expected %d batches, got %d", maxIntentBatches, len(expirer.cutoffs))
	}
}

func TestPaymentIntentTTLJobPropagatesError(t *testing.T) {
	job := newPaymentIntentJob(t, &fakeExpirer{err: errors.New("db down")}, 0, 0)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
