package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // canonical absolute path of the watched root
	exts map[string]struct{}
}

// NewFS creates a provider rooted at root, restricted to the given file
// extensions (e.g. ".md", ".txt"). The root directory must already exist.
func NewFS(root string, extensions []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &FS{root: abs, exts: exts}, nil
}

// Root returns the canonical absolute watched root.
func (f *FS) Root() string { return f.root }

// Supported reports whether path carries one of the watched extensions.
func (f *FS) Supported(path string) bool {
	_, ok := f.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// contained resolves path to an absolute path and rejects anything that
// escapes the root (directory traversal).
func (f *FS) contained(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(f.root, path)
	}
	abs = filepath.Clean(abs)
	if abs != f.root && !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes watched root: %s", path)
	}
	return abs, nil
}

// List walks the root and returns metadata for every supported regular
// file. Bodies are never read: the synchronizer decides per file whether
// a read is needed at all.
func (f *FS) List() ([]FileMeta, error) {
	var out []FileMeta
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !f.Supported(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, FileMeta{Path: p, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a file under the root.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.contained(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Stat returns metadata for one file under the root.
func (f *FS) Stat(path string) (FileMeta, error) {
	abs, err := f.contained(path)
	if err != nil {
		return FileMeta{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileMeta{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return FileMeta{Path: abs, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Exists reports whether a regular file exists at path under the root.
func (f *FS) Exists(path string) bool {
	abs, err := f.contained(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}
