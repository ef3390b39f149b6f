// Package query serves interactive searches against the persisted index.
// It is strictly read-only: it never touches the registry or the tag
// cache and may run concurrently with the writer side.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mkerring/sift/internal/index"
)

const defaultLimit = 20

// Hit is one ranked search result.
type Hit struct {
	Path    string   `json:"path"`
	Title   string   `json:"title"`
	Snippet string   `json:"snippet"`
	Tags    []string `json:"tags"`
}

// Result carries the hits plus the query as understood by the service.
type Result struct {
	Query   string `json:"query"`
	Refined string `json:"refined"`
	Hits    []Hit  `json:"hits"`
}

// Service runs refined searches against the index.
type Service struct {
	db     index.FileIndex
	logger *slog.Logger
}

// NewService creates a query service.
func NewService(db index.FileIndex, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Search refines raw and issues a multi-field search. Refinement never
// blocks a search: an empty refinement falls back to the raw text.
func (s *Service) Search(ctx context.Context, raw string, limit int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("query: empty query")
	}

	refined, filters := Refine(raw)
	if refined == "" {
		refined = raw
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if filters.Limit > 0 && filters.Limit < limit {
		limit = filters.Limit
	}

	// Over-fetch when post-filters apply so the cap is met after filtering.
	fetch := limit
	if len(filters.Tags) > 0 || len(filters.Types) > 0 {
		fetch = limit * 4
	}

	results, err := s.db.Search(refined, fetch)
	if err != nil {
		return nil, fmt.Errorf("query: search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if !matches(r, filters) {
			continue
		}
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		hits = append(hits, Hit{Path: r.Path, Title: r.Title, Snippet: r.Snippet, Tags: tags})
		if len(hits) == limit {
			break
		}
	}

	s.logger.Debug("query: searched",
		slog.String("raw", raw),
		slog.String("refined", refined),
		slog.Int("hits", len(hits)))
	return &Result{Query: raw, Refined: refined, Hits: hits}, nil
}

func matches(r index.SearchResult, f Filters) bool {
	if len(f.Types) > 0 {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(r.Path)), ".")
		found := false
		for _, t := range f.Types {
			if t == ext {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, want := range f.Tags {
		found := false
		for _, have := range r.Tags {
			if strings.EqualFold(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
