package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkerring/sift/internal/apperr"
)

// FileRow is one persisted file record.
type FileRow struct {
	Path        string
	Title       string
	Tags        []string
	MTime       time.Time
	ContentHash string
	UpdatedAt   time.Time
}

// FileMeta is the subset of a record the synchronizer needs for skip
// decisions.
type FileMeta struct {
	MTime       time.Time
	ContentHash string
}

// SearchResult is one ranked search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
	Tags    []string
}

// UpsertFile inserts or replaces a file record and its FTS entry within a
// single transaction; the commit is per file so one failure never poisons
// other files.
func (db *DB) UpsertFile(row FileRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if row.Tags == nil {
		row.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(row.Tags)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO files (path, title, tags, body, mtime_ns, content_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title        = excluded.title,
			tags         = excluded.tags,
			body         = excluded.body,
			mtime_ns     = excluded.mtime_ns,
			content_hash = excluded.content_hash,
			updated_at   = excluded.updated_at
	`, row.Path, row.Title, string(tagsJSON), body, row.MTime.UnixNano(), row.ContentHash, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	if err := ftsUpsert(tx, row.Path, row.Title, body, row.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFile removes a file record and its FTS entry. Deleting an absent
// path is not an error.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM files WHERE path = ?`, path)

	return tx.Commit()
}

// TouchMTime updates only the stored modification time, for files whose
// content hash proved unchanged despite a newer mtime.
func (db *DB) TouchMTime(path string, mtime time.Time) error {
	_, err := db.conn.Exec(`UPDATE files SET mtime_ns = ? WHERE path = ?`, mtime.UnixNano(), path)
	if err != nil {
		return fmt.Errorf("index: touch mtime: %w", err)
	}
	return nil
}

// GetMeta returns the skip-decision metadata for one path.
func (db *DB) GetMeta(path string) (FileMeta, bool, error) {
	var mtimeNS int64
	var hash string
	err := db.conn.QueryRow(`SELECT mtime_ns, content_hash FROM files WHERE path = ?`, path).
		Scan(&mtimeNS, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return FileMeta{}, false, nil
	}
	if err != nil {
		return FileMeta{}, false, fmt.Errorf("index: get meta: %w", err)
	}
	return FileMeta{MTime: time.Unix(0, mtimeNS), ContentHash: hash}, true, nil
}

// AllMeta returns skip-decision metadata for every indexed path.
func (db *DB) AllMeta() (map[string]FileMeta, error) {
	rows, err := db.conn.Query(`SELECT path, mtime_ns, content_hash FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all meta: %w", err)
	}
	defer rows.Close()

	out := make(map[string]FileMeta)
	for rows.Next() {
		var p, hash string
		var mtimeNS int64
		if err := rows.Scan(&p, &mtimeNS, &hash); err != nil {
			return nil, err
		}
		out[p] = FileMeta{MTime: time.Unix(0, mtimeNS), ContentHash: hash}
	}
	return out, rows.Err()
}

// GetFile returns the full record for one path.
func (db *DB) GetFile(path string) (*FileRow, error) {
	var row FileRow
	var tagsJSON string
	var mtimeNS int64
	err := db.conn.QueryRow(
		`SELECT path, title, tags, mtime_ns, content_hash, updated_at FROM files WHERE path = ?`, path,
	).Scan(&row.Path, &row.Title, &tagsJSON, &mtimeNS, &row.ContentHash, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get file %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get file %s: %w", path, err)
	}
	row.MTime = time.Unix(0, mtimeNS)
	_ = json.Unmarshal([]byte(tagsJSON), &row.Tags)
	return &row, nil
}

// ListFiles returns records ordered by path with pagination and an
// optional tag filter, plus the total count for the filter.
func (db *DB) ListFiles(limit, offset int, tag string) ([]FileRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if tag != "" {
		// Tags are stored as a JSON array of strings.
		where = ` WHERE tags LIKE ?`
		args = append(args, `%"`+tag+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM files`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count files: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.conn.Query(
		`SELECT path, title, tags, mtime_ns, content_hash, updated_at FROM files`+where+
			` ORDER BY path LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list files: %w", err)
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var r FileRow
		var tagsJSON string
		var mtimeNS int64
		if err := rows.Scan(&r.Path, &r.Title, &tagsJSON, &mtimeNS, &r.ContentHash, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		r.MTime = time.Unix(0, mtimeNS)
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Count returns the number of indexed files.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
