// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the search index to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkerring/sift/internal/index"
	"github.com/mkerring/sift/internal/query"
	"github.com/mkerring/sift/internal/storage"
)

// StatusFunc produces the current index health snapshot.
type StatusFunc func() map[string]any

// Server wraps the MCP server with the sift tool set. All tools are
// read-only: the index is maintained by the synchronizer, never by
// MCP clients.
type Server struct {
	mcp    *server.MCPServer
	store  storage.Provider
	db     index.FileIndex
	svc    *query.Service
	status StatusFunc
}

// New creates a new MCP server with all tools registered.
func New(store storage.Provider, db index.FileIndex, svc *query.Service, status StatusFunc) *Server {
	s := &Server{store: store, db: db, svc: svc, status: status}

	s.mcp = server.NewMCPServer(
		"sift",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Full-text search through indexed file titles, bodies and tags. "+
			"Supports inline filters: tag:<name>, type:<ext>, limit:<n>."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the raw content of a file inside the watched tree."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file, absolute or relative to the watched root")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List indexed files, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by (empty for all)")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report pipeline state and index counters."),
	), s.indexStatus)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Search(ctx, q, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.store.Root(), path)
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := ""
	if v, err := req.RequireString("tag"); err == nil {
		tag = v
	}

	rows, _, err := s.db.ListFiles(0, 0, tag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no files indexed"), nil
	}

	var lines []string
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s\t%s\t[%s]", r.Path, r.Title, strings.Join(r.Tags, ", ")))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) indexStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.status(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
