package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkerring/sift/internal/index"
	"github.com/mkerring/sift/internal/query"
	"github.com/mkerring/sift/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// status is polled on every GET /status; sseHandler, if non-nil, is
// mounted at GET /events inside the auth group.
func NewRouter(svc *query.Service, db index.FileIndex, store storage.Provider, status StatusFunc, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, db, store, status)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search.
	r.Get("/search", h.Search)

	// Indexed files.
	r.Get("/files", h.ListFiles)
	r.Get("/files/*", h.GetFile)

	// Index health.
	r.Get("/status", h.Status)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
