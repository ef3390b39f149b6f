package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkerring/sift/internal/index"
	"github.com/mkerring/sift/internal/query"
	"github.com/mkerring/sift/internal/testutil"
)

func testServer(t *testing.T) (*Server, *index.DB, string) {
	t.Helper()

	root, store := testutil.TestTree(t)
	db := testutil.TestIndex(t)
	svc := query.NewService(db, testutil.Logger())
	status := func() map[string]any {
		n, _ := db.Count()
		return map[string]any{"pipeline": "live", "indexed_files": n}
	}

	return New(store, db, svc, status), db, root
}

func seedRow(t *testing.T, db *index.DB, path, title, body string, tags []string) {
	t.Helper()
	now := time.Now()
	err := db.UpsertFile(index.FileRow{
		Path: path, Title: title, Tags: tags,
		MTime: now, ContentHash: "h-" + title, UpdatedAt: now,
	}, body)
	if err != nil {
		t.Fatal(err)
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper; call the handler
	// functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_files":
		result, err = srv.searchFiles(ctx, req)
	case "read_file":
		result, err = srv.readFile(ctx, req)
	case "list_files":
		result, err = srv.listFiles(ctx, req)
	case "index_status":
		result, err = srv.indexStatus(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchFiles(t *testing.T) {
	srv, db, _ := testServer(t)
	seedRow(t, db, "/v/go.md", "Go notes", "Concurrency patterns in Go.", []string{"lang"})
	seedRow(t, db, "/v/zig.md", "Zig notes", "Comptime tricks.", []string{"lang"})

	r := callTool(t, srv, "search_files", map[string]interface{}{"query": "concurrency"})
	text := resultText(r)
	if !strings.Contains(text, "/v/go.md") {
		t.Errorf("search result missing hit: %q", text)
	}
	if strings.Contains(text, "/v/zig.md") {
		t.Errorf("search matched unrelated file: %q", text)
	}
}

func TestReadFile(t *testing.T) {
	srv, _, root := testServer(t)
	abs := filepath.Join(root, "note.md")
	if err := os.WriteFile(abs, []byte("# Note\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Absolute path.
	r := callTool(t, srv, "read_file", map[string]interface{}{"path": abs})
	if got := resultText(r); got != "# Note\nbody" {
		t.Errorf("read result = %q", got)
	}

	// Root-relative path.
	r = callTool(t, srv, "read_file", map[string]interface{}{"path": "note.md"})
	if got := resultText(r); got != "# Note\nbody" {
		t.Errorf("relative read result = %q", got)
	}
}

func TestReadFileMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_file", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
}

func TestListFiles(t *testing.T) {
	srv, db, _ := testServer(t)
	seedRow(t, db, "/v/a.md", "A", "alpha", []string{"x"})
	seedRow(t, db, "/v/b.md", "B", "beta", []string{"y"})

	r := callTool(t, srv, "list_files", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "/v/a.md") || !strings.Contains(text, "/v/b.md") {
		t.Errorf("list missing entries: %q", text)
	}

	r = callTool(t, srv, "list_files", map[string]interface{}{"tag": "x"})
	text = resultText(r)
	if !strings.Contains(text, "/v/a.md") || strings.Contains(text, "/v/b.md") {
		t.Errorf("tag filter failed: %q", text)
	}
}

func TestIndexStatus(t *testing.T) {
	srv, db, _ := testServer(t)
	seedRow(t, db, "/v/a.md", "A", "alpha", nil)

	r := callTool(t, srv, "index_status", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, `"indexed_files": 1`) {
		t.Errorf("status = %q", text)
	}
}
