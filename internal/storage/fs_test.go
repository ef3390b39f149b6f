package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func testFS(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	// TempDir may live behind a symlink on some platforms.
	resolved, err := filepath.EvalSymlinks(root)
	if err == nil {
		root = resolved
	}
	f, err := NewFS(root, []string{".md", "txt"})
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return f, root
}

func TestList_MetadataOnly(t *testing.T) {
	f, root := testFS(t)
	_ = os.MkdirAll(filepath.Join(root, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(root, "a.md"), []byte("# A"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("body"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "skip.bin"), []byte{0x00}, 0o644)

	metas, err := f.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(metas), metas)
	}
	for _, m := range metas {
		if !filepath.IsAbs(m.Path) {
			t.Errorf("path %q is not absolute", m.Path)
		}
		if m.ModTime.IsZero() {
			t.Errorf("missing mtime for %q", m.Path)
		}
	}
}

func TestSupported_ExtensionNormalisation(t *testing.T) {
	f, _ := testFS(t)
	cases := map[string]bool{
		"/x/a.md":  true,
		"/x/a.MD":  true,
		"/x/a.txt": true, // configured without leading dot
		"/x/a.pdf": false,
		"/x/a":     false,
	}
	for p, want := range cases {
		if got := f.Supported(p); got != want {
			t.Errorf("Supported(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestRead_RejectsTraversal(t *testing.T) {
	f, root := testFS(t)
	_ = os.WriteFile(filepath.Join(root, "a.md"), []byte("ok"), 0o644)

	if _, err := f.Read("../outside.md"); err == nil {
		t.Error("expected traversal rejection")
	}
	if _, err := f.Read(filepath.Join(root, "a.md")); err != nil {
		t.Errorf("absolute in-root read failed: %v", err)
	}
	if _, err := f.Read("a.md"); err != nil {
		t.Errorf("relative in-root read failed: %v", err)
	}
}

func TestExistsAndStat(t *testing.T) {
	f, root := testFS(t)
	p := filepath.Join(root, "a.md")
	_ = os.WriteFile(p, []byte("hello"), 0o644)

	if !f.Exists(p) {
		t.Error("Exists = false for existing file")
	}
	if f.Exists(filepath.Join(root, "gone.md")) {
		t.Error("Exists = true for missing file")
	}

	m, err := f.Stat(p)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if m.Size != 5 {
		t.Errorf("Size = %d, want 5", m.Size)
	}
}
