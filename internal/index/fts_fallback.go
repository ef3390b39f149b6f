//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search uses a LIKE fallback over the files table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	// Title, body, and tags already live in the files table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based union search over title, body, and tags
// (fallback when FTS5 is not compiled in). Each query term must match at
// least one field.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	var conds []string
	var args []any
	for _, t := range terms {
		like := "%" + t + "%"
		conds = append(conds, `(title LIKE ? OR body LIKE ? OR tags LIKE ?)`)
		args = append(args, like, like, like)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT path, title, substr(body, 1, 200), tags
		FROM files
		WHERE `+strings.Join(conds, " AND ")+`
		LIMIT ?
	`, args...)
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
