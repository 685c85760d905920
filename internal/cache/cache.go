// Package cache provides the persistent sync-state cache backing the
// out-of-sync filter.
//
// The cache maps (folder, path) to a category with a cache timestamp.
// Reads are TTL-aware: an entry older than the TTL is treated as absent,
// with no background sweeper required. Writes use clear-then-insert
// semantics inside a single transaction so a shrunk result set cannot
// leave stale entries behind and readers never observe a partial clear.
//
// The database runs in embedded SQLite mode with WAL for concurrent
// reads during writes.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grahamwalsh/syncdeck/internal/category"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DefaultTTL is how long a cached categorization stays visible to readers.
const DefaultTTL = 30 * time.Second

// ErrStorage marks any failure of the underlying store.
//
// Callers must treat it as "no cached data" and degrade to the unfiltered
// view, never as fatal:
//
//	if errors.Is(err, cache.ErrStorage) {
//	    // render unfiltered
//	}
var ErrStorage = errors.New("cache storage failure")

// Config holds cache configuration.
type Config struct {
	// TTL overrides the default entry time-to-live. Zero means DefaultTTL.
	TTL time.Duration
}

// Store is the persistent sync-state cache.
//
// All methods are safe for concurrent use; the clear-then-insert upsert
// runs as a single transaction so readers see either the old or the new
// categorization, never a torn state.
type Store struct {
	conn *sql.DB
	path string
	ttl  time.Duration

	// now is the clock used for stamping and TTL checks. Tests replace it.
	now func() time.Time
}

// Open creates or opens the cache database at the specified path.
//
// The database is opened in embedded mode with WAL enabled. The schema is
// created if missing and migrated additively otherwise. The caller must
// Close the store when done.
func Open(path string) (*Store, error) {
	return OpenWithConfig(path, nil)
}

// OpenWithConfig opens the cache with custom configuration.
func OpenWithConfig(path string, config *Config) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create cache directory: %v", ErrStorage, err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorage, err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrStorage, err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	if config != nil && config.TTL > 0 {
		s.ttl = config.TTL
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrStorage, pragma, err)
		}
	}

	return s, nil
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("%w: close database: %v", ErrStorage, err)
	}

	s.conn = nil
	return nil
}

// TTL returns the entry time-to-live in effect for this store.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// InitSchema creates the cache schema if it doesn't exist and applies
// additive migrations. Idempotent, safe to call on every startup.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_state (
		folder_id TEXT NOT NULL,
		path TEXT NOT NULL,
		category TEXT,
		cached_at INTEGER,
		PRIMARY KEY (folder_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_sync_state_folder
	    ON sync_state(folder_id);
	CREATE INDEX IF NOT EXISTS idx_sync_state_category
	    ON sync_state(folder_id, category);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: initialize schema: %v", ErrStorage, err)
	}

	return s.migrate(ctx)
}

// additiveColumns lists columns added after the original schema shipped.
// Migrations are additive only: new nullable columns, never destructive
// rewrites, so existing rows survive upgrades in place.
var additiveColumns = []struct {
	name string
	ddl  string
}{
	// cached_at arrived with TTL-aware reads; pre-TTL databases stored
	// category presence only.
	{"cached_at", "ALTER TABLE sync_state ADD COLUMN cached_at INTEGER"},
}

// migrate adds any missing nullable columns to sync_state.
func (s *Store) migrate(ctx context.Context) error {
	rows, err := s.conn.QueryContext(ctx, "PRAGMA table_info(sync_state)")
	if err != nil {
		return fmt.Errorf("%w: inspect schema: %v", ErrStorage, err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			isPK    int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &isPK); err != nil {
			return fmt.Errorf("%w: scan schema row: %v", ErrStorage, err)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate schema rows: %v", ErrStorage, err)
	}

	for _, col := range additiveColumns {
		if have[col.name] {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("%w: add column %s: %v", ErrStorage, col.name, err)
		}
	}

	return nil
}

// UpsertCategories replaces the categorization for folderID with entries.
//
// All existing rows for the folder are cleared first, then the new mapping
// is inserted, every row stamped with the current time. The clear and the
// inserts run in one transaction, so readers observe either the previous
// categorization or the new one. Calling twice with the same mapping
// leaves observable state unchanged.
func (s *Store) UpsertCategories(ctx context.Context, folderID string, entries map[string]category.Category) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin upsert: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_state WHERE folder_id = ?`, folderID); err != nil {
		return fmt.Errorf("%w: clear folder %s: %v", ErrStorage, folderID, err)
	}

	stamp := s.now().Unix()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_state (folder_id, path, category, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(folder_id, path) DO UPDATE SET
			category = excluded.category,
			cached_at = excluded.cached_at
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrStorage, err)
	}
	defer stmt.Close()

	for path, cat := range entries {
		if path == "" || cat == category.None {
			continue
		}
		if _, err := stmt.ExecContext(ctx, folderID, path, string(cat), stamp); err != nil {
			return fmt.Errorf("%w: insert %s/%s: %v", ErrStorage, folderID, path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit upsert: %v", ErrStorage, err)
	}

	return nil
}

// QueryByCategory returns the set of live paths in folderID whose category
// satisfies match.
//
// Entries whose cached_at is outside the TTL window are excluded silently;
// lazy expiration, no error. A nil match selects every out-of-sync entry.
func (s *Store) QueryByCategory(ctx context.Context, folderID string, match func(category.Category) bool) (map[string]bool, error) {
	cutoff := s.now().Add(-s.ttl).Unix()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT path, category
		FROM sync_state
		WHERE folder_id = ?
		  AND category IS NOT NULL
		  AND cached_at IS NOT NULL
		  AND cached_at > ?
	`, folderID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: query categories for %s: %v", ErrStorage, folderID, err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var path, cat string
		if err := rows.Scan(&path, &cat); err != nil {
			return nil, fmt.Errorf("%w: scan category row: %v", ErrStorage, err)
		}
		if match == nil || match(category.Category(cat)) {
			paths[path] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate category rows: %v", ErrStorage, err)
	}

	return paths, nil
}

// Breakdown returns per-category counts of live entries for folderID.
//
// Every out-of-sync category is present in the result, zero-valued when
// nothing live matches. TTL filtering is identical to QueryByCategory.
func (s *Store) Breakdown(ctx context.Context, folderID string) (map[category.Category]int, error) {
	cutoff := s.now().Add(-s.ttl).Unix()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM sync_state
		WHERE folder_id = ?
		  AND category IS NOT NULL
		  AND cached_at IS NOT NULL
		  AND cached_at > ?
		GROUP BY category
	`, folderID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: breakdown for %s: %v", ErrStorage, folderID, err)
	}
	defer rows.Close()

	counts := make(map[category.Category]int, len(category.OutOfSync))
	for _, c := range category.OutOfSync {
		counts[c] = 0
	}

	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("%w: scan breakdown row: %v", ErrStorage, err)
		}
		counts[category.Category(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate breakdown rows: %v", ErrStorage, err)
	}

	return counts, nil
}

// Invalidate clears the categorization for folderID.
//
// Rows are kept but their category and cached_at become NULL, so the
// folder reads as "no data" until the next upsert. Idempotent.
func (s *Store) Invalidate(ctx context.Context, folderID string) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE sync_state
		SET category = NULL, cached_at = NULL
		WHERE folder_id = ?
	`, folderID)
	if err != nil {
		return fmt.Errorf("%w: invalidate %s: %v", ErrStorage, folderID, err)
	}
	return nil
}
