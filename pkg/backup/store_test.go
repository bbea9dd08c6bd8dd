package backup

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/vulnflow/vulnflow/pkg/errors"
)

func TestStore_TakeAndRestore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	files := map[string][]byte{
		"app/db.go":      []byte("package app\n\nfunc query() {}\n"),
		"app/handler.go": []byte("package app\n\nfunc handle() {}\n"),
	}

	ref, err := store.Take(ctx, "patch-1", files)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if ref == "" {
		t.Fatal("empty snapshot ref")
	}
	if !store.Exists(ref) {
		t.Error("snapshot should exist after Take")
	}

	snap, err := store.Restore(ctx, ref)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if snap.Ref != ref || snap.PatchID != "patch-1" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Files) != 2 {
		t.Fatalf("restored %d files, want 2", len(snap.Files))
	}
	if !bytes.Equal(snap.Files["app/db.go"], files["app/db.go"]) {
		t.Error("restored content differs from original")
	}
}

func TestStore_UniqueRefs(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		ref, err := store.Take(ctx, "patch-1", nil)
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		if seen[ref] {
			t.Fatalf("duplicate ref %s", ref)
		}
		seen[ref] = true
	}
}

func TestStore_RestoreUnknownRef(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.Restore(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.IsNotFoundError(err) {
		t.Errorf("err = %v, want not-found", err)
	}
}

func TestStore_MalformedRefRejected(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for _, ref := range []string{"", "../../etc/passwd", "not-a-uuid", "a/b"} {
		if _, err := store.Restore(context.Background(), ref); err == nil {
			t.Errorf("Restore(%q) should fail", ref)
		}
		if store.Exists(ref) {
			t.Errorf("Exists(%q) should be false", ref)
		}
	}
}

func TestStore_RequiresPatchID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Take(context.Background(), "", nil); err == nil {
		t.Error("Take without a patch ID should fail")
	}
}

func TestStore_Prune(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	ref, err := store.Take(ctx, "patch-1", nil)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	// Nothing is old enough yet.
	removed, err := store.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 0 || !store.Exists(ref) {
		t.Errorf("fresh snapshot was pruned (removed=%d)", removed)
	}

	// Everything is older than a zero max age.
	removed, err = store.Prune(ctx, -time.Second)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 || store.Exists(ref) {
		t.Errorf("snapshot should be pruned (removed=%d)", removed)
	}
}

func TestCompressor_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("SELECT * FROM users WHERE id = ?\n"), 200)

	for _, algorithm := range []Algorithm{AlgorithmZSTD, AlgorithmGzip, AlgorithmNone} {
		t.Run(string(algorithm), func(t *testing.T) {
			c := NewCompressor(algorithm, LevelDefault)

			compressed, err := c.Compress(payload)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if algorithm != AlgorithmNone && len(compressed) >= len(payload) {
				t.Errorf("repetitive payload did not shrink: %d -> %d", len(payload), len(compressed))
			}

			restored, err := c.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(restored, payload) {
				t.Error("round trip lost data")
			}
		})
	}
}

func TestCompressor_UnsupportedAlgorithm(t *testing.T) {
	c := NewCompressor(Algorithm("lz4"), LevelDefault)
	if _, err := c.Compress([]byte("x")); err == nil {
		t.Error("unsupported algorithm should fail")
	}
}
