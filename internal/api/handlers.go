package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkerring/sift/internal/apperr"
	"github.com/mkerring/sift/internal/index"
	"github.com/mkerring/sift/internal/query"
	"github.com/mkerring/sift/internal/storage"
)

// Status is a snapshot of index health reported by GET /api/status.
type Status struct {
	Pipeline     string `json:"pipeline"`
	IndexedFiles int    `json:"indexed_files"`
	Tracked      int    `json:"tracked"`
	Processing   int    `json:"processing"`
	CachedTags   int    `json:"cached_tags"`
}

// StatusFunc produces the current Status snapshot.
type StatusFunc func() Status

// fileDetail is the GET /api/files/{path} response shape. Content is
// only populated on single-file fetches.
type fileDetail struct {
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	MTime       time.Time `json:"mtime"`
	ContentHash string    `json:"content_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
	Content     string    `json:"content,omitempty"`
}

func toDetail(row *index.FileRow) fileDetail {
	tags := row.Tags
	if tags == nil {
		tags = []string{}
	}
	return fileDetail{
		Path:        row.Path,
		Title:       row.Title,
		Tags:        tags,
		MTime:       row.MTime,
		ContentHash: row.ContentHash,
		UpdatedAt:   row.UpdatedAt,
	}
}

// Handler holds API route handlers.
type Handler struct {
	svc    *query.Service
	db     index.FileIndex
	store  storage.Provider
	status StatusFunc
}

// NewHandler creates a new Handler.
func NewHandler(svc *query.Service, db index.FileIndex, store storage.Provider, status StatusFunc) *Handler {
	return &Handler{svc: svc, db: db, store: store, status: status}
}

// filePath extracts the file path from the URL (everything after /api/files/).
// Supports encoded slashes from generated clients (e.g. notes%2Fa.md).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	res, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListFiles handles GET /api/files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	tag := q.Get("tag")

	rows, total, err := h.db.ListFiles(limit, offset, tag)
	if err != nil {
		slog.Error("list files failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]fileDetail, 0, len(rows))
	for i := range rows {
		items = append(items, toDetail(&rows[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files": items,
		"total": total,
	})
}

// GetFile handles GET /api/files/*.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	row, err := h.db.GetFile(path)
	// The index stores absolute paths; the route tail drops the leading
	// slash, so retry with it restored.
	if errors.Is(err, apperr.ErrNotFound) && !strings.HasPrefix(path, "/") {
		row, err = h.db.GetFile("/" + path)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get file failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	detail := toDetail(row)
	// Raw content comes from the watched tree, not the index; the provider
	// rejects paths outside the root.
	if data, readErr := h.store.Read(row.Path); readErr == nil {
		detail.Content = string(data)
	}
	writeJSON(w, http.StatusOK, detail)
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}
