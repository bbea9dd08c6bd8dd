package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vulnflow/vulnflow/pkg/errors"
)

const (
	// DefaultLeaseDuration is how long a held lease stays valid
	// without renewal before other agents may take it over.
	DefaultLeaseDuration = 60 * time.Second

	// DefaultRetryInterval is how often a waiting agent re-checks the
	// lease file.
	DefaultRetryInterval = 500 * time.Millisecond
)

// lease is the on-disk lease record.
type lease struct {
	HolderIdentity string    `json:"holder_identity"`
	AcquiredAt     time.Time `json:"acquired_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// FileLease implements DeployLock with a lease file on storage shared
// by every agent that deploys to the same target. A crashed holder's
// lease expires and is taken over instead of deadlocking the cluster.
type FileLease struct {
	// Path of the lease file.
	Path string

	// LeaseDuration is how long an acquired lease stays valid.
	// Default 60s.
	LeaseDuration time.Duration

	// RetryInterval is the poll interval while waiting.
	// Default 500ms.
	RetryInterval time.Duration

	holder string
}

// NewFileLease creates a lease-file deployment lock. The holder
// identity is hostname plus PID.
func NewFileLease(path string) *FileLease {
	hostname, _ := os.Hostname()
	return &FileLease{
		Path:   path,
		holder: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
}

func (l *FileLease) Acquire(ctx context.Context) (func(), error) {
	const op = "lock.FileLease.Acquire"

	duration := l.LeaseDuration
	if duration == 0 {
		duration = DefaultLeaseDuration
	}
	retry := l.RetryInterval
	if retry == 0 {
		retry = DefaultRetryInterval
	}

	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		ok, err := l.tryAcquire(duration)
		if err != nil {
			return nil, errors.E(errors.KindInternal, op, "lease file", err)
		}
		if ok {
			return func() { l.release() }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// tryAcquire attempts to create the lease file, taking over an
// expired one.
func (l *FileLease) tryAcquire(duration time.Duration) (bool, error) {
	now := time.Now()
	rec := lease{
		HolderIdentity: l.holder,
		AcquiredAt:     now,
		ExpiresAt:      now.Add(duration),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(l.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = os.Remove(l.Path)
			if werr != nil {
				return false, werr
			}
			return false, cerr
		}
		return true, nil
	}
	if !os.IsExist(err) {
		return false, err
	}

	// Held by someone; take over only if the lease expired.
	current, err := l.read()
	if err != nil {
		// A concurrent release between OpenFile and read; retry.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if now.Before(current.ExpiresAt) {
		return false, nil
	}

	if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return false, nil
}

func (l *FileLease) read() (*lease, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, err
	}
	var rec lease
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// release removes the lease file if this agent still holds it.
func (l *FileLease) release() {
	current, err := l.read()
	if err != nil || current.HolderIdentity != l.holder {
		return
	}
	_ = os.Remove(l.Path)
}

var _ DeployLock = (*FileLease)(nil)
