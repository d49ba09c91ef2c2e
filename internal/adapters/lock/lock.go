// Package lock keeps detection runs from overlapping, inside one process or
// across processes sharing a redis.
package lock

import (
	"context"
	"sync"
)

// Release frees an acquired lock.
type Release func(ctx context.Context) error

// Locker hands out a single exclusive lease.
type Locker interface {
	// TryAcquire takes the lock without waiting. It returns ErrLocked when
	// the lock is held elsewhere.
	TryAcquire(ctx context.Context) (Release, error)
}

// Local is an in-process Locker.
type Local struct {
	mu sync.Mutex
}

// NewLocal returns an unlocked in-process Locker.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryAcquire(ctx context.Context) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
