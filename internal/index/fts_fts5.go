//go:build sqlite_fts5

package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO files_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path)
}

// ftsQuote rewrites free text into an FTS5 query of quoted string
// literals so punctuation in user input (hyphens, colons) cannot be
// parsed as match syntax.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// Search performs an FTS5 full-text match across title, body, and tags
// and returns ranked results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	match := ftsQuote(query)
	if match == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT fts.path,
		       fts.title,
		       snippet(files_fts, 2, '<b>', '</b>', '...', 64),
		       f.tags
		FROM files_fts fts
		JOIN files f ON f.path = fts.path
		WHERE files_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var tagsJSON string
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet, &tagsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, rows.Err()
}
