// Package backup persists pre-deployment snapshots of the files a patch
// touches. Deployment takes a snapshot first and rolls back from it if
// the deployment fails, so a snapshot ref doubles as a rollback ref.
package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vulnflow/vulnflow/pkg/errors"
)

// Snapshot is the pre-deployment state of the files a patch touches.
type Snapshot struct {
	// Unique snapshot reference (UUID), used as backup_ref and rollback_ref
	Ref string `json:"ref"`

	// Patch this snapshot was taken for
	PatchID string `json:"patch_id"`

	// File contents keyed by repository-relative path
	Files map[string][]byte `json:"files"`

	// When the snapshot was taken
	TakenAt time.Time `json:"taken_at"`
}

// Store writes snapshots to a directory, one compressed file per ref.
type Store struct {
	dir        string
	compressor *Compressor
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.E(errors.KindInvalidInput, "backup.NewStore", "directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.E(errors.KindInternal, "backup.NewStore", "create snapshot directory", err)
	}
	return &Store{
		dir:        dir,
		compressor: NewCompressor(AlgorithmZSTD, LevelDefault),
	}, nil
}

// Take snapshots the given files for a patch and returns the snapshot ref.
func (s *Store) Take(ctx context.Context, patchID string, files map[string][]byte) (string, error) {
	const op = "backup.Take"

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if patchID == "" {
		return "", errors.E(errors.KindInvalidInput, op, "patch ID is required")
	}

	snap := Snapshot{
		Ref:     uuid.NewString(),
		PatchID: patchID,
		Files:   files,
		TakenAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return "", errors.E(errors.KindInternal, op, "encode snapshot", err)
	}
	compressed, err := s.compressor.Compress(raw)
	if err != nil {
		return "", errors.E(errors.KindInternal, op, "compress snapshot", err)
	}

	// Write to a temp file first so a crash never leaves a truncated
	// snapshot behind a valid-looking ref.
	path := s.path(snap.Ref)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return "", errors.E(errors.KindInternal, op, "write snapshot", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errors.E(errors.KindInternal, op, "finalize snapshot", err)
	}

	return snap.Ref, nil
}

// Restore loads the snapshot for the given ref.
func (s *Store) Restore(ctx context.Context, ref string) (*Snapshot, error) {
	const op = "backup.Restore"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validRef(ref) {
		return nil, errors.E(errors.KindInvalidInput, op, "malformed snapshot ref: "+ref)
	}

	compressed, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.KindNotFound, op, "snapshot not found: "+ref)
		}
		return nil, errors.E(errors.KindInternal, op, "read snapshot", err)
	}

	raw, err := s.compressor.Decompress(compressed)
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "decompress snapshot", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.E(errors.KindInternal, op, "decode snapshot", err)
	}
	return &snap, nil
}

// Exists reports whether a snapshot with the given ref is on disk.
func (s *Store) Exists(ref string) bool {
	if !validRef(ref) {
		return false
	}
	_, err := os.Stat(s.path(ref))
	return err == nil
}

// Prune removes snapshots older than maxAge and returns how many were
// deleted. Refs still needed for rollback should be pruned only after
// their run has been reported.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	const op = "backup.Prune"

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, errors.E(errors.KindInternal, op, "read snapshot directory", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

const snapshotExt = ".snap.zst"

func (s *Store) path(ref string) string {
	return filepath.Join(s.dir, ref+snapshotExt)
}

// validRef rejects refs that are not plain UUIDs so a ref can never
// escape the snapshot directory.
func validRef(ref string) bool {
	if ref == "" || strings.ContainsAny(ref, "/\\.") {
		return false
	}
	_, err := uuid.Parse(ref)
	return err == nil
}
