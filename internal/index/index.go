package index

import "time"

// FileIndex defines the interface for persisted index operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type FileIndex interface {
	UpsertFile(row FileRow, body string) error
	DeleteFile(path string) error
	TouchMTime(path string, mtime time.Time) error
	GetMeta(path string) (FileMeta, bool, error)
	AllMeta() (map[string]FileMeta, error)
	GetFile(path string) (*FileRow, error)
	ListFiles(limit, offset int, tag string) ([]FileRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Count() (int, error)
	Close() error
}

// Verify *DB satisfies FileIndex at compile time.
var _ FileIndex = (*DB)(nil)
