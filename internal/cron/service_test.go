package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	deny     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.deny || f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

func newCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestTickRunsEveryJobEvenAfterFailure(t *testing.T) {
	failing := &namedJob{name: "payment_intent_ttl", err: errors.New("db down")}
	healthy := &namedJob{name: "outbox_retention"}
	lock := &fakeLock{}
	svc := newCronService(t, lock, failing, healthy)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if failing.runs != 1 || healthy.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", failing.runs, healthy.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released after tick")
	}
}

func TestTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &namedJob{name: "payment_intent_ttl"}
	svc := newCronService(t, &fakeLock{deny: true}, job)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs without the lock")
	}
}

func TestTickHonoursJobCadence(t *testing.T) {
	everyTick := &namedJob{name: "payment_intent_ttl"}
	hourly := periodicJob{&namedJob{name: "outbox_retention", every: time.Hour}}
	svc := newCronService(t, &fakeLock{}, everyTick, hourly)

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := svc.tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		now = now.Add(time.Minute)
	}
	if everyTick.runs != 3 {
		t.Fatalf("expected 3 runs, got %d", everyTick.runs)
	}
	if hourly.runs != 1 {
		t.Fatalf("expected hourly job to run once, got %d", hourly.runs)
	}

	now = now.Add(time.Hour)
	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if hourly.runs != 2 {
		t.Fatalf("expected hourly job to run again after an hour, got %d", hourly.runs)
	}
}

func TestNewServiceRequiresRegistry(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Lock:   &fakeLock{},
	})
	if err == nil {
		t.Fatalf("expected error without registry")
	}
}
