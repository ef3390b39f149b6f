package syncer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkerring/sift/internal/storage"
)

// PipelineState is the event pipeline's lifecycle phase.
type PipelineState int

const (
	// StateBuffering: the initial scan has not finished; every raw event
	// is appended to the pending queue verbatim and never dropped.
	StateBuffering PipelineState = iota
	// StateDraining: the scan is done and the buffer is being replayed
	// in arrival order.
	StateDraining
	// StateLive: steady state, events are processed as they arrive.
	StateLive
)

func (st PipelineState) String() string {
	switch st {
	case StateBuffering:
		return "buffering"
	case StateDraining:
		return "draining"
	default:
		return "live"
	}
}

type rawEvent struct {
	path       string
	op         fsnotify.Op
	observedAt time.Time
}

// Pipeline owns the fsnotify watcher and feeds classified events into
// the Syncer. It is started before the initial scan so no change can
// slip through the gap between scanning and watching; events arriving
// during the scan are buffered and replayed once the scan signals
// completion.
type Pipeline struct {
	sync   *Syncer
	store  storage.Provider
	logger *slog.Logger

	mu      sync.Mutex
	state   PipelineState
	pending []rawEvent

	scanDone chan struct{}
	scanOnce sync.Once
	started  chan struct{}
}

// NewPipeline creates a pipeline in the Buffering state.
func NewPipeline(s *Syncer, store storage.Provider, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sync:     s,
		store:    store,
		logger:   logger,
		state:    StateBuffering,
		scanDone: make(chan struct{}),
		started:  make(chan struct{}),
	}
}

// Started is closed once the watcher covers the whole tree. The initial
// scan must wait for it so the watch-first guarantee holds.
func (p *Pipeline) Started() <-chan struct{} { return p.started }

// ScanComplete signals that the initial scan finished. The buffered
// events are then drained exactly once, after which the pipeline goes
// live. Safe to call multiple times.
func (p *Pipeline) ScanComplete() {
	p.scanOnce.Do(func() { close(p.scanDone) })
}

// State returns the current pipeline phase.
func (p *Pipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PendingLen returns the number of buffered events.
func (p *Pipeline) PendingLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Run watches the root and processes events until ctx is cancelled.
// New directories created at runtime are added to the watch list
// recursively.
func (p *Pipeline) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, p.store.Root()); err != nil {
		return err
	}
	close(p.started)
	p.logger.Info("pipeline: watching", slog.String("root", p.store.Root()))

	scanDone := p.scanDone
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline: stopped")
			return nil

		case <-scanDone:
			scanDone = nil // one-shot
			p.drain(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			raw := rawEvent{path: ev.Name, op: ev.Op, observedAt: time.Now()}

			// Watch additions cannot wait for the drain: a directory
			// created during the scan window must be covered immediately
			// or events inside it would be silently missed.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						p.logger.Warn("pipeline: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						p.logger.Debug("pipeline: watching new dir", slog.String("path", ev.Name))
					}
				}
			}

			p.accept(ctx, raw)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("pipeline: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// accept buffers the event while the scan is running, otherwise
// processes it immediately.
func (p *Pipeline) accept(ctx context.Context, raw rawEvent) {
	p.mu.Lock()
	if p.state == StateBuffering {
		p.pending = append(p.pending, raw)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.process(ctx, raw)
}

// drain replays the buffered events in arrival order, then switches to
// live processing.
func (p *Pipeline) drain(ctx context.Context) {
	p.mu.Lock()
	p.state = StateDraining
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, raw := range pending {
		if ctx.Err() != nil {
			return
		}
		p.process(ctx, raw)
	}

	p.mu.Lock()
	p.state = StateLive
	p.mu.Unlock()
	p.logger.Info("pipeline: live", slog.Int("replayed", len(pending)))
}

// process classifies one raw event and dispatches it through the Syncer.
func (p *Pipeline) process(ctx context.Context, raw rawEvent) {
	// Directory creations: index any supported files already inside
	// (they may predate the watch, e.g. a directory moved into the tree).
	if info, err := os.Stat(raw.path); err == nil && info.IsDir() {
		if raw.op&fsnotify.Create != 0 {
			p.indexDirContents(ctx, raw.path)
		}
		return
	}

	kind := classify(raw.op)
	if kind == KindOther {
		return
	}
	// Modify-classified and ambiguous events whose target no longer
	// exists on disk are really deletions.
	if kind != KindRemove && !p.store.Exists(raw.path) {
		kind = KindRemove
	}
	if kind == KindModifyMetadata {
		return
	}
	if !p.store.Supported(raw.path) {
		return
	}

	p.sync.ProcessEvent(ctx, Event{Path: raw.path, Kind: kind, ObservedAt: raw.observedAt})
}

// indexDirContents submits a create event for every supported file under
// dir.
func (p *Pipeline) indexDirContents(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !p.store.Supported(path) {
			return nil
		}
		p.sync.ProcessEvent(ctx, Event{Path: path, Kind: KindCreate, ObservedAt: time.Now()})
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
