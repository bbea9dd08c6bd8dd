// Package learning implements the self-learning store: the outcome
// history keyed by pattern signature that lets the pipeline reuse
// patch templates when a vulnerability shape recurs.
//
// Record is an upsert. A repeat signature increments times_seen and
// folds the new resolution time into a running mean; entries are
// never deleted. Updates to the same signature are serialized so the
// running mean stays correct under concurrent chains; different
// signatures update independently.
package learning

import (
	"context"
	"sync"
	"time"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
)

// Store is the learning store contract consumed by the orchestrator.
type Store interface {
	// Lookup returns the entry for the signature, or nil if the
	// signature has never been recorded.
	Lookup(ctx context.Context, signature string) (*model.LearningEntry, error)

	// Record upserts the outcome for a signature and returns the
	// entry state after the update.
	Record(ctx context.Context, category model.Category, signature string, resolutionSeconds float64, templateRef string) (*model.LearningEntry, error)

	// Close releases store resources.
	Close() error
}

// runningMean folds a new sample into a mean over n prior samples.
func runningMean(mean float64, n int, sample float64) float64 {
	return (mean*float64(n) + sample) / float64(n+1)
}

// signatureLocks hands out one mutex per signature so that writers to
// the same signature serialize while unrelated signatures proceed.
type signatureLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSignatureLocks() *signatureLocks {
	return &signatureLocks{locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex for a signature, creating it on first use.
// Lock entries are never removed; the signature space is the set of
// distinct vulnerability shapes, which stays small.
func (s *signatureLocks) lockFor(signature string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[signature]
	if !ok {
		l = &sync.Mutex{}
		s.locks[signature] = l
	}
	return l
}

// =============================================================================
// In-Memory Store
// =============================================================================

// MemoryStore is a non-durable Store for tests and single-run use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.LearningEntry
	sigs    *signatureLocks
	closed  bool
}

// NewMemoryStore creates an empty in-memory learning store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]model.LearningEntry),
		sigs:    newSignatureLocks(),
	}
}

// Lookup returns the entry for the signature, or nil when absent.
func (s *MemoryStore) Lookup(ctx context.Context, signature string) (*model.LearningEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.ErrStoreClosed
	}
	entry, ok := s.entries[signature]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Record upserts the outcome for a signature.
func (s *MemoryStore) Record(ctx context.Context, category model.Category, signature string, resolutionSeconds float64, templateRef string) (*model.LearningEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if signature == "" {
		return nil, errors.E(errors.KindInvalidInput, "learning.Record", "empty signature")
	}

	lock := s.sigs.lockFor(signature)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.ErrStoreClosed
	}

	now := time.Now()
	entry, ok := s.entries[signature]
	if !ok {
		entry = model.LearningEntry{
			Category:              category,
			PatternSignature:      signature,
			ResolutionTimeSeconds: resolutionSeconds,
			PatchTemplateRef:      templateRef,
			TimesSeen:             1,
			FirstSeenAt:           now,
			UpdatedAt:             now,
		}
	} else {
		entry.ResolutionTimeSeconds = runningMean(entry.ResolutionTimeSeconds, entry.TimesSeen, resolutionSeconds)
		entry.TimesSeen++
		if templateRef != "" {
			entry.PatchTemplateRef = templateRef
		}
		entry.UpdatedAt = now
	}
	s.entries[signature] = entry

	return &entry, nil
}

// Len returns the number of distinct signatures recorded.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
