package localstore

import (
	"context"
	"time"
)

// MemoryLock is an in-process lock with a bounded wait.
type MemoryLock struct {
	sem chan struct{}
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{sem: make(chan struct{}, 1)}
}

// Acquire waits up to wait for the lock. It returns false without error when
// the lock stays held.
func (l *MemoryLock) Acquire(ctx context.Context, wait time.Duration) (bool, error) {
	select {
	case l.sem <- struct{}{}:
		return true, nil
	default:
	}
	if wait <= 0 {
		return false, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case l.sem <- struct{}{}:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Release frees the lock. Releasing an unheld lock is a no-op.
func (l *MemoryLock) Release(_ context.Context) error {
	select {
	case <-l.sem:
	default:
	}
	return nil
}
