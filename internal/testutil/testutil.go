// Package testutil provides shared test helpers for setting up watched
// trees and index databases.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/mkerring/sift/internal/index"
	"github.com/mkerring/sift/internal/storage"
)

// Logger returns a JSON logger that only surfaces errors, keeping test
// output quiet.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestIndex creates a temporary index database that is automatically
// cleaned up.
func TestIndex(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestTree creates a temporary watched root accepting Markdown and plain
// text files.
func TestTree(t *testing.T) (string, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir(), []string{".md", ".txt"})
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}
