// Package storage defines the watched-root file-system abstraction.
package storage

import "time"

// FileMeta is lightweight metadata for one watched file. Listing returns
// metadata only; file bodies are read separately and only when needed.
type FileMeta struct {
	// Path is the canonical absolute path of the file.
	Path    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for read-only access to the watched tree.
type Provider interface {
	// Root returns the canonical absolute path of the watched root.
	Root() string
	// List walks the root and returns metadata for every supported file.
	// It never reads file contents.
	List() ([]FileMeta, error)
	// Read returns the raw bytes of the file at the given absolute path,
	// which must lie under the root.
	Read(path string) ([]byte, error)
	// Stat returns metadata for one file under the root.
	Stat(path string) (FileMeta, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Supported reports whether path has one of the watched extensions.
	Supported(path string) bool
}
