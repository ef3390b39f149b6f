// Package embedcache persists derived tag sets keyed by file path and
// validated by content hash, so unchanged files never hit the tag model
// twice.
package embedcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tag_cache (
	path         TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	tags         TEXT NOT NULL DEFAULT '[]',
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Entry is one cached (hash, tags) pair.
type Entry struct {
	ContentHash string
	Tags        []string
}

// Cache is a SQLite-backed tag cache. The database lives in its own
// directory; deleting that directory forces recomputation for every file.
type Cache struct {
	conn *sql.DB
}

// Open creates dir if needed and opens (or creates) the cache database
// inside it.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("embedcache: create dir: %w", err)
	}
	dsn := filepath.Join(dir, "tags.db")
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("embedcache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("embedcache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("embedcache: apply schema: %w", err)
	}
	return &Cache{conn: conn}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.conn.Close()
}

// Lookup returns the cached entry for path, if any. Callers must compare
// Entry.ContentHash against the file's current hash before trusting Tags.
func (c *Cache) Lookup(path string) (Entry, bool, error) {
	var e Entry
	var tagsJSON string
	err := c.conn.QueryRow(
		`SELECT content_hash, tags FROM tag_cache WHERE path = ?`, path,
	).Scan(&e.ContentHash, &tagsJSON)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("embedcache: lookup %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		// Corrupt row: treat as a miss so it gets recomputed and replaced.
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Store inserts or replaces the entry for path.
func (c *Cache) Store(path, contentHash string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	_, err := c.conn.Exec(`
		INSERT INTO tag_cache (path, content_hash, tags, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			tags         = excluded.tags,
			updated_at   = excluded.updated_at
	`, path, contentHash, string(tagsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("embedcache: store %s: %w", path, err)
	}
	return nil
}

// Remove deletes the entry for path. Removing an absent entry is not an
// error, so cache eviction can run in lockstep with index deletes.
func (c *Cache) Remove(path string) error {
	if _, err := c.conn.Exec(`DELETE FROM tag_cache WHERE path = ?`, path); err != nil {
		return fmt.Errorf("embedcache: remove %s: %w", path, err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.conn.QueryRow(`SELECT count(*) FROM tag_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("embedcache: count: %w", err)
	}
	return n, nil
}
