package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startPipeline(t *testing.T, e *env) *Pipeline {
	t.Helper()
	p := NewPipeline(e.sync, e.store, e.sync.logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = p.Run(ctx) }()

	select {
	case <-p.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never started watching")
	}
	return p
}

func TestPipeline_BuffersUntilScanComplete(t *testing.T) {
	e := newEnv(t)
	p := startPipeline(t, e)

	abs := e.write(t, "buffered.md", "# Buffered")

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return p.PendingLen() > 0
	}, "event was not buffered during the scan window")

	if _, ok, _ := e.db.GetMeta(abs); ok {
		t.Fatal("file indexed before scan completion")
	}
	if p.State() != StateBuffering {
		t.Fatalf("state = %v, want buffering", p.State())
	}

	p.ScanComplete()

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok, _ := e.db.GetMeta(abs)
		return ok
	}, "buffered event not replayed after scan completion")
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return p.State() == StateLive
	}, "pipeline did not go live after drain")
}

func TestPipeline_RapidModifies_SingleDerive(t *testing.T) {
	e := newEnv(t)
	p := startPipeline(t, e)

	abs := filepath.Join(e.root, "hot.md")
	// Five rapid writes within the buffering window.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(abs, []byte("# Hot\n\nfinal content"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return p.PendingLen() >= 1
	}, "no events buffered")

	p.ScanComplete()

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok, _ := e.db.GetMeta(abs)
		return ok && p.State() == StateLive
	}, "file not indexed after drain")

	if got := e.tag.callCount(); got != 1 {
		t.Errorf("tagger calls = %d, want 1 (replays collapse on hash)", got)
	}
	if n, _ := e.db.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestPipeline_LiveCreateModifyRemove(t *testing.T) {
	e := newEnv(t)
	p := startPipeline(t, e)
	p.ScanComplete()
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return p.State() == StateLive
	}, "pipeline not live")

	abs := e.write(t, "live.md", "# Live")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok, _ := e.db.GetMeta(abs)
		return ok
	}, "live create not indexed")

	_ = os.Remove(abs)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok, _ := e.db.GetMeta(abs)
		return !ok
	}, "live remove not applied")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, ok, _ := e.cache.Lookup(abs)
		return !ok
	}, "cache entry survived removal")
}

func TestPipeline_UnsupportedExtensionIgnored(t *testing.T) {
	e := newEnv(t)
	p := startPipeline(t, e)
	p.ScanComplete()
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return p.State() == StateLive
	}, "pipeline not live")

	abs := filepath.Join(e.root, "image.png")
	_ = os.WriteFile(abs, []byte("not really a png"), 0o644)

	time.Sleep(300 * time.Millisecond)
	if _, ok, _ := e.db.GetMeta(abs); ok {
		t.Error("unsupported file was indexed")
	}
}

func TestPipeline_NewDirContentsIndexed(t *testing.T) {
	e := newEnv(t)
	p := startPipeline(t, e)
	p.ScanComplete()
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return p.State() == StateLive
	}, "pipeline not live")

	sub := filepath.Join(e.root, "newdir")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to cover the new directory.
	time.Sleep(100 * time.Millisecond)
	abs := filepath.Join(sub, "deep.md")
	_ = os.WriteFile(abs, []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok, _ := e.db.GetMeta(abs)
		return ok
	}, "file in new directory not indexed")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		op   fsnotify.Op
		want EventKind
	}{
		{fsnotify.Create, KindCreate},
		{fsnotify.Write, KindModifyData},
		{fsnotify.Remove, KindRemove},
		{fsnotify.Rename, KindRemove},
		{fsnotify.Chmod, KindModifyMetadata},
		{fsnotify.Create | fsnotify.Write, KindCreate},
		{0, KindOther},
	}
	for _, c := range cases {
		if got := classify(c.op); got != c.want {
			t.Errorf("classify(%v) = %v, want %v", c.op, got, c.want)
		}
	}
}
