package syncer

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind classifies a raw file-system notification. Only Create,
// ModifyData, and Remove are actionable; the rest are discarded.
type EventKind int

const (
	KindOther EventKind = iota
	KindCreate
	KindModifyData
	KindModifyMetadata
	KindRemove
)

// String returns the registry label for the kind.
func (k EventKind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindModifyData:
		return "modify"
	case KindModifyMetadata:
		return "metadata"
	case KindRemove:
		return "remove"
	default:
		return "other"
	}
}

// Event is a classified file-system change ready for processing.
type Event struct {
	Path       string
	Kind       EventKind
	ObservedAt time.Time
}

// classify maps an fsnotify op bitmask onto an EventKind. Rename is
// reported on the old path only, so it behaves as a removal; the new
// path arrives as an independent Create.
func classify(op fsnotify.Op) EventKind {
	switch {
	case op&fsnotify.Create != 0:
		return KindCreate
	case op&fsnotify.Write != 0:
		return KindModifyData
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return KindRemove
	case op&fsnotify.Chmod != 0:
		return KindModifyMetadata
	default:
		return KindOther
	}
}
