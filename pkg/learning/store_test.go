package learning

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vulnflow/vulnflow/pkg/model"
)

// Both store implementations must satisfy the same contract.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "learning.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	memory := NewMemoryStore()
	t.Cleanup(func() { memory.Close() })

	return map[string]Store{
		"memory": memory,
		"sqlite": sqlite,
	}
}

func TestStore_LookupAbsent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			entry, err := store.Lookup(context.Background(), "never-recorded")
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if entry != nil {
				t.Errorf("Lookup of unknown signature should return nil, got %+v", entry)
			}
		})
	}
}

func TestStore_RunningMean(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sig := "sig-running-mean"

			times := []float64{10, 20, 30}
			for i, rt := range times {
				entry, err := store.Record(ctx, model.CategorySQLInjection, sig, rt, "tmpl-1")
				if err != nil {
					t.Fatalf("Record #%d: %v", i+1, err)
				}
				if entry.TimesSeen != i+1 {
					t.Errorf("after record #%d: TimesSeen = %d, want %d", i+1, entry.TimesSeen, i+1)
				}
			}

			entry, err := store.Lookup(ctx, sig)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if entry == nil {
				t.Fatal("Lookup returned nil after records")
			}
			if entry.TimesSeen != 3 {
				t.Errorf("TimesSeen = %d, want 3", entry.TimesSeen)
			}
			if math.Abs(entry.ResolutionTimeSeconds-20) > 1e-9 {
				t.Errorf("ResolutionTimeSeconds = %v, want 20 (running mean of 10, 20, 30)", entry.ResolutionTimeSeconds)
			}
			if entry.Category != model.CategorySQLInjection {
				t.Errorf("Category = %v, want SQL_INJECTION", entry.Category)
			}
			if entry.PatchTemplateRef != "tmpl-1" {
				t.Errorf("PatchTemplateRef = %q, want tmpl-1", entry.PatchTemplateRef)
			}
		})
	}
}

func TestStore_UpsertNotDuplicate(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				if _, err := store.Record(ctx, model.CategoryXSS, "sig-upsert", 5, ""); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}

			entry, err := store.Lookup(ctx, "sig-upsert")
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if entry.TimesSeen != 5 {
				t.Errorf("TimesSeen = %d, want 5 (one entry per signature, updated not duplicated)", entry.TimesSeen)
			}
		})
	}
}

func TestStore_TemplateRefPreserved(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sig := "sig-template"

			if _, err := store.Record(ctx, model.CategoryMissingAuth, sig, 10, "tmpl-keep"); err != nil {
				t.Fatalf("Record: %v", err)
			}
			// A later record without a template must not erase the known one.
			entry, err := store.Record(ctx, model.CategoryMissingAuth, sig, 20, "")
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
			if entry.PatchTemplateRef != "tmpl-keep" {
				t.Errorf("PatchTemplateRef = %q, want tmpl-keep", entry.PatchTemplateRef)
			}
		})
	}
}

func TestStore_ConcurrentSameSignature(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 20

			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := store.Record(ctx, model.CategoryPathTraversal, "sig-race", 30, ""); err != nil {
						t.Errorf("Record: %v", err)
					}
				}()
			}
			wg.Wait()

			entry, err := store.Lookup(ctx, "sig-race")
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if entry.TimesSeen != writers {
				t.Errorf("TimesSeen = %d, want %d (no lost updates)", entry.TimesSeen, writers)
			}
			if math.Abs(entry.ResolutionTimeSeconds-30) > 1e-9 {
				t.Errorf("ResolutionTimeSeconds = %v, want 30", entry.ResolutionTimeSeconds)
			}
		})
	}
}

func TestStore_ConcurrentDistinctSignatures(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 16

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					sig := fmt.Sprintf("sig-%d", i)
					if _, err := store.Record(ctx, model.CategoryXSS, sig, float64(i), ""); err != nil {
						t.Errorf("Record(%s): %v", sig, err)
					}
				}(i)
			}
			wg.Wait()

			for i := 0; i < n; i++ {
				entry, err := store.Lookup(ctx, fmt.Sprintf("sig-%d", i))
				if err != nil {
					t.Fatalf("Lookup: %v", err)
				}
				if entry == nil || entry.TimesSeen != 1 {
					t.Errorf("sig-%d: entry = %+v, want times_seen 1", i, entry)
				}
			}
		})
	}
}

func TestStore_EmptySignatureRejected(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Record(context.Background(), model.CategoryXSS, "", 1, ""); err == nil {
				t.Error("Record with empty signature should fail")
			}
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learning.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if _, err := store.Record(ctx, model.CategoryHardcodedCredential, "sig-durable", 42, "tmpl-d"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entry, err := reopened.Lookup(ctx, "sig-durable")
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if entry == nil {
		t.Fatal("entry should survive restart")
	}
	if entry.TimesSeen != 1 || entry.ResolutionTimeSeconds != 42 || entry.PatchTemplateRef != "tmpl-d" {
		t.Errorf("reopened entry = %+v", entry)
	}
}

func TestSQLiteStore_ByCategory(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "learning.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := store.Record(ctx, model.CategoryXSS, "sig-a", 10, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Record(ctx, model.CategoryXSS, "sig-b", 10, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Record(ctx, model.CategorySQLInjection, "sig-c", 10, ""); err != nil {
		t.Fatal(err)
	}

	entries, err := store.ByCategory(ctx, model.CategoryXSS)
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ByCategory returned %d entries, want 2", len(entries))
	}
	// Most seen first
	if entries[0].PatternSignature != "sig-a" {
		t.Errorf("first entry = %s, want sig-a", entries[0].PatternSignature)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	store.Close()

	if _, err := store.Record(context.Background(), model.CategoryXSS, "sig", 1, ""); err == nil {
		t.Error("Record on closed store should fail")
	}
	if _, err := store.Lookup(context.Background(), "sig"); err == nil {
		t.Error("Lookup on closed store should fail")
	}
}
