package lock

import (
	"context"
	"sync"
	"time"
)

// ReleaseFunc gives a held lock back. Calling it more than once is harmless.
type ReleaseFunc func()

// Locker grants short-lived named locks.
type Locker interface {
	// TryLock returns ok=false without error when the key is held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error)
}

// Local is an in-process Locker for single-replica deployments and tests.
type Local struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time)}
}

func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, false, nil
	}
	exp := now.Add(ttl)
	l.held[key] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key].Equal(exp) {
				delete(l.held, key)
			}
		})
	}, true, nil
}
