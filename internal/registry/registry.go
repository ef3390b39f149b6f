// Package registry coordinates the scan loop and the watch loop so that
// at most one of them processes a given file at a time.
//
// Every (re)index or delete of a file, whether triggered by the initial
// scan or by a live file-system event, must first acquire the path via
// TryStartProcessing and release it via FinishProcessing. A denial is not
// an error: whoever currently holds the path will leave the index in a
// state that reflects the file system at least as recently as the denied
// caller would have.
package registry

import (
	"sync"
	"time"
)

// State is the lifecycle state of a tracked path.
type State int

const (
	// StateIdle means the path is known but nobody is working on it.
	StateIdle State = iota
	// StateProcessing means one actor currently owns the path.
	StateProcessing
	// StateIndexed means the last processing attempt committed successfully.
	StateIndexed
)

// Outcome describes how a processing attempt ended.
type Outcome int

const (
	// OutcomeIndexed marks the path as successfully (re)indexed.
	OutcomeIndexed Outcome = iota
	// OutcomeFailed resets the path to idle so a later attempt can retry.
	OutcomeFailed
	// OutcomeRemoved drops the path from the registry entirely.
	OutcomeRemoved
)

type entry struct {
	state State
	kind  string
	since time.Time
}

// Registry is a thread-safe per-path processing arena.
//
// All transitions happen under a single mutex as atomic check-and-set
// operations; sections are short and contention is low (two actors).
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// TryStartProcessing attempts to acquire path for processing. kind is a
// short label describing what triggered the attempt ("scan", "create",
// "modify", "remove") and is kept for introspection only.
//
// Returns false when another actor already holds the path; the caller
// must skip the file without treating the denial as an error.
func (r *Registry) TryStartProcessing(path, kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok {
		r.entries[path] = &entry{state: StateProcessing, kind: kind, since: time.Now()}
		return true
	}
	if e.state == StateProcessing {
		return false
	}
	e.state = StateProcessing
	e.kind = kind
	e.since = time.Now()
	return true
}

// FinishProcessing releases path after a processing attempt. It is a
// no-op for paths that are not currently processing, so callers may
// defer it unconditionally.
func (r *Registry) FinishProcessing(path string, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok || e.state != StateProcessing {
		return
	}
	switch outcome {
	case OutcomeIndexed:
		e.state = StateIndexed
	case OutcomeFailed:
		e.state = StateIdle
	case OutcomeRemoved:
		delete(r.entries, path)
		return
	}
	e.since = time.Now()
}

// StateOf reports the current state of path and whether it is tracked.
func (r *Registry) StateOf(path string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[path]
	if !ok {
		return StateIdle, false
	}
	return e.state, true
}

// Stats returns the number of tracked paths and how many are currently
// being processed.
func (r *Registry) Stats() (tracked, processing int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.state == StateProcessing {
			processing++
		}
	}
	return len(r.entries), processing
}
