package userlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestLocalSerializesSameUser(t *testing.T) {
	locker := NewLocal(time.Second)
	user := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), user)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected exclusive section, saw %d concurrent holders", maxInside)
	}
}

func TestLocalDifferentUsersDoNotBlock(t *testing.T) {
	locker := NewLocal(50 * time.Millisecond)
	releaseA, err := locker.Lock(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer releaseA()

	releaseB, err := locker.Lock(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("lock b should not wait: %v", err)
	}
	releaseB()
}

func TestLocalTimesOutWithConflict(t *testing.T) {
	locker := NewLocal(20 * time.Millisecond)
	user := uuid.New()
	release, err := locker.Lock(context.Background(), user)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release()

	_, err = locker.Lock(context.Background(), user)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	locker := NewLocal(20 * time.Millisecond)
	user := uuid.New()
	release, _ := locker.Lock(context.Background(), user)
	release()
	release()

	again, err := locker.Lock(context.Background(), user)
	if err != nil {
		t.Fatalf("expected lock after release: %v", err)
	}
	again()
}

type memoryLockStore struct {
	mu    sync.Mutex
	owner map[string]string
}

func (m *memoryLockStore) AcquireLock(_ context.Context, name, token string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.owner[name]; held {
		return false, nil
	}
	m.owner[name] = token
	return true, nil
}

func (m *memoryLockStore) ReleaseLock(_ context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner[name] == token {
		delete(m.owner, name)
	}
	return nil
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	store := &memoryLockStore{owner: map[string]string{}}
	locker := &redisLocker{store: store, ttl: time.Second, wait: time.Second}
	user := uuid.New()

	release, err := locker.Lock(context.Background(), user)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	go func() {
		time.Sleep(40 * time.Millisecond)
		release()
	}()

	second, err := locker.Lock(context.Background(), user)
	if err != nil {
		t.Fatalf("second lock should succeed after release: %v", err)
	}
	second()
	if len(store.owner) != 0 {
		t.Fatalf("expected lock to be released, got %v", store.owner)
	}
}
