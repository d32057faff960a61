package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned when another run holds the lock.
var ErrLockHeld = errors.New("lock: already held")

// lockStore is the subset of Cache the run lock uses.
type lockStore interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
}

// RunLock keeps evaluation runs from overlapping. With Redis it spans every
// worker; without it only this process is covered.
type RunLock struct {
	store lockStore
	ttl   time.Duration

	mu    sync.Mutex
	local map[string]string
}

// NewRunLock creates a new RunLock. A nil cache gives a process-local lock.
func NewRunLock(cache *Cache, ttl time.Duration) *RunLock {
	var store lockStore
	if cache != nil {
		store = cache
	}
	return newRunLock(store, ttl)
}

func newRunLock(store lockStore, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RunLock{store: store, ttl: ttl, local: make(map[string]string)}
}

// Acquire takes the named lock and returns a release func.
// Returns ErrLockHeld if someone else has it.
func (l *RunLock) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	token := uuid.NewString()
	key := LockKey(name)

	if l.store == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, held := l.local[key]; held {
			return nil, ErrLockHeld
		}
		l.local[key] = token
		return func(context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.local[key] == token {
				delete(l.local, key)
			}
			return nil
		}, nil
	}

	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		_, err := l.store.CompareAndDelete(ctx, key, token)
		return err
	}, nil
}
