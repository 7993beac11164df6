// Package userlock serializes payment-affecting operations per user.
package userlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Locker hands out an exclusive per-user section. release must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, userID uuid.UUID) (release func(), err error)
}

const pollInterval = 25 * time.Millisecond

func busy() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "another payment is in progress for this account")
}

// New returns a Redis-backed locker when store is set, otherwise an
// in-process one.
func New(store redis.Locker, cfg config.CheckoutConfig, logg *logger.Logger) Locker {
	if store == nil {
		return NewLocal(cfg.UserLockWait)
	}
	return &redisLocker{store: store, ttl: cfg.UserLockTTL, wait: cfg.UserLockWait, logg: logg}
}

type redisLocker struct {
	store redis.Locker
	ttl   time.Duration
	wait  time.Duration
	logg  *logger.Logger
}

func (l *redisLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	name := "user:" + userID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.store.AcquireLock(ctx, name, token, l.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire user lock")
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, busy()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release must outlive a cancelled request context
			if err := l.store.ReleaseLock(context.WithoutCancel(ctx), name, token); err != nil && l.logg != nil {
				l.logg.Warn(l.logg.WithUserID(ctx, userID.String()), "release user lock: "+err.Error())
			}
		})
	}, nil
}

// Local is a keyed mutex for single-process deployments and tests.
type Local struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
	wait  time.Duration
}

func NewLocal(wait time.Duration) *Local {
	return &Local{slots: make(map[uuid.UUID]chan struct{}), wait: wait}
}

func (l *Local) slot(userID uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[userID] = ch
	}
	return ch
}

func (l *Local) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	ch := l.slot(userID)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, busy()
	}

	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}
