package learning

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vulnflow/vulnflow/pkg/model"
)

// SQLiteStore is the durable learning store. Entries survive process
// restarts; the database file is the on-disk representation of the
// (category, pattern_signature) -> LearningEntry mapping.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	sigs *signatureLocks
}

// NewSQLiteStore opens (or creates) a learning store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure SQLite for better performance
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{
		db:   db,
		sigs: newSignatureLocks(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

// initSchema creates the learning table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learning_entries (
		pattern_signature TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		resolution_time_seconds REAL NOT NULL,
		patch_template_ref TEXT,
		times_seen INTEGER NOT NULL DEFAULT 1,
		first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_learning_category ON learning_entries(category);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Lookup returns the entry for the signature, or nil when absent.
func (s *SQLiteStore) Lookup(ctx context.Context, signature string) (*model.LearningEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry model.LearningEntry
	var templateRef sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT pattern_signature, category, resolution_time_seconds,
			patch_template_ref, times_seen, first_seen_at, updated_at
		FROM learning_entries WHERE pattern_signature = ?
	`, signature).Scan(
		&entry.PatternSignature, &entry.Category, &entry.ResolutionTimeSeconds,
		&templateRef, &entry.TimesSeen, &entry.FirstSeenAt, &entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if templateRef.Valid {
		entry.PatchTemplateRef = templateRef.String
	}

	return &entry, nil
}

// Record upserts the outcome for a signature. The running mean is
// computed inside the upsert statement, and writers to the same
// signature additionally serialize on a per-signature lock so the
// read-back below observes their own update.
func (s *SQLiteStore) Record(ctx context.Context, category model.Category, signature string, resolutionSeconds float64, templateRef string) (*model.LearningEntry, error) {
	if signature == "" {
		return nil, fmt.Errorf("record: empty signature")
	}

	lock := s.sigs.lockFor(signature)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_entries (
			pattern_signature, category, resolution_time_seconds,
			patch_template_ref, times_seen, first_seen_at, updated_at
		) VALUES (?, ?, ?, NULLIF(?, ''), 1, ?, ?)
		ON CONFLICT(pattern_signature) DO UPDATE SET
			resolution_time_seconds =
				(resolution_time_seconds * times_seen + excluded.resolution_time_seconds)
				/ (times_seen + 1),
			times_seen = times_seen + 1,
			patch_template_ref = COALESCE(excluded.patch_template_ref, patch_template_ref),
			updated_at = excluded.updated_at
	`, signature, category.String(), resolutionSeconds, templateRef, now, now)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	return s.Lookup(ctx, signature)
}

// Count returns the number of distinct signatures recorded.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM learning_entries`).Scan(&n)
	return n, err
}

// ByCategory returns all entries for a category, most seen first.
func (s *SQLiteStore) ByCategory(ctx context.Context, category model.Category) ([]model.LearningEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern_signature, category, resolution_time_seconds,
			patch_template_ref, times_seen, first_seen_at, updated_at
		FROM learning_entries
		WHERE category = ?
		ORDER BY times_seen DESC
	`, category.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LearningEntry
	for rows.Next() {
		var entry model.LearningEntry
		var templateRef sql.NullString

		if err := rows.Scan(
			&entry.PatternSignature, &entry.Category, &entry.ResolutionTimeSeconds,
			&templateRef, &entry.TimesSeen, &entry.FirstSeenAt, &entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if templateRef.Valid {
			entry.PatchTemplateRef = templateRef.String
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
