// Package lock serializes deployments. Patching one target from many
// chains, or from many agents sharing that target, must happen one
// deployment at a time; everything before the deploy stage runs
// freely in parallel.
package lock

import (
	"context"
	"sync"
)

// DeployLock guards the deployment critical section.
type DeployLock interface {
	// Acquire blocks until the lock is held or the context ends.
	// The returned release function must be called exactly once.
	Acquire(ctx context.Context) (release func(), err error)
}

// MutexLock serializes deployments within a single process.
type MutexLock struct {
	mu sync.Mutex
}

// NewMutexLock creates an in-process deployment lock.
func NewMutexLock() *MutexLock {
	return &MutexLock{}
}

func (l *MutexLock) Acquire(ctx context.Context) (func(), error) {
	// Honor cancellation while waiting for the holder.
	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return l.mu.Unlock, nil
	case <-ctx.Done():
		// The goroutine will still take the mutex; hand it back as
		// soon as it does.
		go func() {
			<-acquired
			l.mu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

var _ DeployLock = (*MutexLock)(nil)
