// Package syncer keeps the persisted index converged with the watched
// directory tree. It has two entry points, the initial scan and live
// event processing, both funneled through the file registry so the scan
// goroutine and the watch goroutine never double-process a path.
package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mkerring/sift/internal/checksum"
	"github.com/mkerring/sift/internal/embedcache"
	"github.com/mkerring/sift/internal/extract"
	"github.com/mkerring/sift/internal/index"
	"github.com/mkerring/sift/internal/registry"
	"github.com/mkerring/sift/internal/storage"
	"github.com/mkerring/sift/internal/tagger"
)

// EventCallback is called after a committed index mutation.
// kind is one of "indexed", "updated", "deleted".
type EventCallback func(kind, path string)

// Syncer drives extraction, tag derivation, caching, and index commits
// for individual files.
type Syncer struct {
	db     index.FileIndex
	cache  *embedcache.Cache
	reg    *registry.Registry
	store  storage.Provider
	tagger tagger.Tagger
	logger *slog.Logger
	cb     EventCallback
}

// New creates a Syncer. cb may be nil.
func New(db index.FileIndex, cache *embedcache.Cache, reg *registry.Registry,
	store storage.Provider, tg tagger.Tagger, logger *slog.Logger, cb EventCallback) *Syncer {
	return &Syncer{db: db, cache: cache, reg: reg, store: store, tagger: tg, logger: logger, cb: cb}
}

// Scan walks the watched root and brings the index up to date:
//   - files whose stored mtime matches the on-disk mtime are skipped
//     without reading them, so a restart over an unchanged tree is
//     near-instant
//   - new or changed files are extracted, tagged, and upserted
//   - records whose files no longer exist are removed, together with
//     their cache entries
//
// Scan blocks until the whole tree has been visited. Errors on a single
// file never abort the scan.
func (s *Syncer) Scan(ctx context.Context) error {
	metas, err := s.store.List()
	if err != nil {
		return err
	}
	persisted, err := s.db.AllMeta()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if err := ctx.Err(); err != nil {
			return err
		}
		if rec, ok := persisted[m.Path]; ok && rec.MTime.UnixNano() == m.ModTime.UnixNano() {
			continue
		}
		if !s.reg.TryStartProcessing(m.Path, "scan") {
			s.logger.Debug("sync: busy, skipped", slog.String("path", m.Path))
			continue
		}
		outcome := s.indexOne(ctx, m.Path)
		s.reg.FinishProcessing(m.Path, outcome)
	}

	// Orphan pass: drop records for files gone from disk.
	for p := range persisted {
		if _, ok := disk[p]; ok {
			continue
		}
		if !s.reg.TryStartProcessing(p, "orphan") {
			continue
		}
		outcome := s.removeOne(p)
		s.reg.FinishProcessing(p, outcome)
	}

	s.logger.Info("sync: scan complete", slog.Int("files", len(metas)))
	return nil
}

// ProcessEvent handles one classified live event through the registry.
// A registry denial drops the event: whoever holds the path will leave
// the index at least as fresh, or a later event will be observed.
func (s *Syncer) ProcessEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindCreate, KindModifyData:
		if !s.reg.TryStartProcessing(ev.Path, ev.Kind.String()) {
			s.logger.Debug("event: busy, dropped", slog.String("path", ev.Path))
			return
		}
		outcome := s.indexOne(ctx, ev.Path)
		s.reg.FinishProcessing(ev.Path, outcome)

	case KindRemove:
		if !s.reg.TryStartProcessing(ev.Path, ev.Kind.String()) {
			s.logger.Debug("event: busy, dropped", slog.String("path", ev.Path))
			return
		}
		outcome := s.removeOne(ev.Path)
		s.reg.FinishProcessing(ev.Path, outcome)
	}
}

// indexOne runs the full per-file pipeline: read, hash, cache-or-derive
// tags, upsert, commit. The caller must hold the registry entry.
func (s *Syncer) indexOne(ctx context.Context, path string) registry.Outcome {
	meta, err := s.store.Stat(path)
	if err != nil {
		// The file vanished between the decision and processing.
		return s.removeOne(path)
	}
	data, err := s.store.Read(path)
	if err != nil {
		s.logger.Warn("index: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return registry.OutcomeFailed
	}

	hash := checksum.Sum(data)
	rec, existed, _ := s.db.GetMeta(path)
	if existed && rec.ContentHash == hash {
		// Content unchanged despite a newer mtime; remember the mtime so
		// the next scan skips the read as well.
		if err := s.db.TouchMTime(path, meta.ModTime); err != nil {
			s.logger.Warn("index: touch failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return registry.OutcomeIndexed
	}

	doc, err := extract.Parse(path, data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			s.logger.Debug("index: unsupported, skipped", slog.String("path", path))
		} else {
			s.logger.Warn("index: extract failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return registry.OutcomeFailed
	}

	tags := s.tagsFor(ctx, path, hash, doc.Text)

	row := index.FileRow{
		Path:        path,
		Title:       doc.Title,
		Tags:        tags,
		MTime:       meta.ModTime,
		ContentHash: hash,
	}
	if err := s.commitUpsert(row, doc.Text); err != nil {
		s.logger.Warn("index: commit failed", slog.String("path", path), slog.String("error", err.Error()))
		return registry.OutcomeFailed
	}

	kind := "updated"
	if !existed {
		kind = "indexed"
	}
	s.logger.Debug("index: committed", slog.String("path", path), slog.String("op", kind))
	if s.cb != nil {
		s.cb(kind, path)
	}
	return registry.OutcomeIndexed
}

// tagsFor returns cached tags when the content hash still matches,
// otherwise derives fresh tags and updates the cache. A model failure
// degrades to an empty tag set; the file is still indexed, but the
// fallback is never cached so the next reprocess retries the model.
func (s *Syncer) tagsFor(ctx context.Context, path, hash, text string) []string {
	if e, hit, err := s.cache.Lookup(path); err == nil && hit && e.ContentHash == hash {
		return e.Tags
	}

	tags, err := s.tagger.DeriveTags(ctx, text)
	if err != nil {
		s.logger.Warn("tagger: derive failed, indexing without tags",
			slog.String("path", path), slog.String("error", err.Error()))
		return []string{}
	}
	if err := s.cache.Store(path, hash, tags); err != nil {
		s.logger.Warn("cache: store failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return tags
}

// removeOne deletes the record and cache entry for path. The caller must
// hold the registry entry.
func (s *Syncer) removeOne(path string) registry.Outcome {
	_, existed, _ := s.db.GetMeta(path)

	if err := s.commitDelete(path); err != nil {
		s.logger.Warn("index: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		return registry.OutcomeFailed
	}
	if err := s.cache.Remove(path); err != nil {
		s.logger.Warn("cache: remove failed", slog.String("path", path), slog.String("error", err.Error()))
	}

	if existed {
		s.logger.Debug("index: removed", slog.String("path", path))
		if s.cb != nil {
			s.cb("deleted", path)
		}
	}
	return registry.OutcomeRemoved
}

// commitUpsert commits one record, retrying a failed commit once before
// surfacing the error for this file.
func (s *Syncer) commitUpsert(row index.FileRow, body string) error {
	if err := s.db.UpsertFile(row, body); err != nil {
		s.logger.Debug("index: retrying commit", slog.String("path", row.Path), slog.String("error", err.Error()))
		return s.db.UpsertFile(row, body)
	}
	return nil
}

func (s *Syncer) commitDelete(path string) error {
	if err := s.db.DeleteFile(path); err != nil {
		s.logger.Debug("index: retrying delete", slog.String("path", path), slog.String("error", err.Error()))
		return s.db.DeleteFile(path)
	}
	return nil
}
