package lock

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestMutexLock_Serializes(t *testing.T) {
	l := NewMutexLock()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max holders = %d, want 1", maxSeen)
	}
}

func TestMutexLock_AcquireCancelled(t *testing.T) {
	l := NewMutexLock()

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx); err == nil {
		t.Fatal("expected context error while lock is held")
	}

	release()

	// The lock must be acquirable again after the cancelled waiter.
	release2, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release2()
}

func TestFileLease_AcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.lease")
	l := NewFileLease(path)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	rec, err := l.read()
	if err != nil {
		t.Fatalf("read lease: %v", err)
	}
	if rec.HolderIdentity != l.holder {
		t.Errorf("holder = %q, want %q", rec.HolderIdentity, l.holder)
	}

	release()

	if _, err := l.read(); err == nil {
		t.Error("lease file should be removed after release")
	}
}

func TestFileLease_BlocksSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.lease")

	first := NewFileLease(path)
	release, err := first.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	second := NewFileLease(path)
	second.holder = "other-agent-1"
	second.RetryInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := second.Acquire(ctx); err == nil {
		t.Fatal("second holder acquired a live lease")
	}
}

func TestFileLease_TakesOverExpiredLease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.lease")

	stale := NewFileLease(path)
	stale.holder = "crashed-agent-1"
	stale.LeaseDuration = time.Millisecond
	release, err := stale.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	_ = release // crashed holder never releases

	time.Sleep(5 * time.Millisecond)

	next := NewFileLease(path)
	next.RetryInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release2, err := next.Acquire(ctx)
	if err != nil {
		t.Fatalf("takeover failed: %v", err)
	}
	defer release2()

	rec, err := next.read()
	if err != nil {
		t.Fatalf("read lease: %v", err)
	}
	if rec.HolderIdentity != next.holder {
		t.Errorf("holder = %q, want %q", rec.HolderIdentity, next.holder)
	}
}
