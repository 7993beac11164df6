package cron

import (
	"context"
	"testing"
	"time"
)

type fakeLockStore struct {
	holder   string
	released []string
}

func (f *fakeLockStore) AcquireLock(_ context.Context, _ string, token string, _ time.Duration) (bool, error) {
	if f.holder != "" {
		return false, nil
	}
	f.holder = token
	return true, nil
}

func (f *fakeLockStore) ReleaseLock(_ context.Context, _ string, token string) error {
	f.released = append(f.released, token)
	if f.holder == token {
		f.holder = ""
	}
	return nil
}

func TestRedisLockSingleOwner(t *testing.T) {
	store := &fakeLockStore{}
	first, err := NewRedisLock(store, "cron:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "cron:test", time.Minute)

	ctx := context.Background()
	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, got %v %v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second acquire to fail while held")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without ownership: %v", err)
	}
	if len(store.released) != 0 {
		t.Fatal("non-owner must not release")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "x", 0); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewRedisLock(&fakeLockStore{}, "", 0); err == nil {
		t.Fatal("expected error for empty name")
	}
	lock, err := NewRedisLock(&fakeLockStore{}, "x", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", lock.ttl)
	}
}

func TestRedisLockRejectsReentrantAcquire(t *testing.T) {
	store := &fakeLockStore{}
	lock, _ := NewRedisLock(store, "cron:test", time.Minute)
	ctx := context.Background()
	if ok, err := lock.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected acquire, got %v %v", ok, err)
	}
	if _, err := lock.Acquire(ctx); err == nil {
		t.Fatal("expected error on re-entrant acquire")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(store.released) != 1 || store.holder != "" {
		t.Fatalf("expected exactly one release, got %v", store.released)
	}
}

func TestLockKeyDefaultsToLocal(t *testing.T) {
	if got := LockKey(""); got != "cron-worker:local" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := LockKey("prod"); got != "cron-worker:prod" {
		t.Fatalf("unexpected key %q", got)
	}
}
