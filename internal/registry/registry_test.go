package registry

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryStartProcessing_NewPath(t *testing.T) {
	r := New()
	if !r.TryStartProcessing("/docs/a.md", "scan") {
		t.Fatal("first acquisition should succeed")
	}
	st, ok := r.StateOf("/docs/a.md")
	if !ok || st != StateProcessing {
		t.Errorf("state = %v, tracked = %v, want Processing", st, ok)
	}
}

func TestTryStartProcessing_DeniedWhileProcessing(t *testing.T) {
	r := New()
	if !r.TryStartProcessing("/docs/a.md", "scan") {
		t.Fatal("first acquisition should succeed")
	}
	if r.TryStartProcessing("/docs/a.md", "modify") {
		t.Error("second acquisition should be denied while processing")
	}
}

func TestFinishProcessing_Outcomes(t *testing.T) {
	r := New()

	r.TryStartProcessing("/a", "scan")
	r.FinishProcessing("/a", OutcomeIndexed)
	if st, _ := r.StateOf("/a"); st != StateIndexed {
		t.Errorf("after Indexed: state = %v, want Indexed", st)
	}

	r.TryStartProcessing("/a", "modify")
	r.FinishProcessing("/a", OutcomeFailed)
	if st, _ := r.StateOf("/a"); st != StateIdle {
		t.Errorf("after Failed: state = %v, want Idle", st)
	}

	r.TryStartProcessing("/a", "remove")
	r.FinishProcessing("/a", OutcomeRemoved)
	if _, ok := r.StateOf("/a"); ok {
		t.Error("after Removed: entry should be gone")
	}
}

func TestFinishProcessing_NoopWhenNotProcessing(t *testing.T) {
	r := New()
	r.FinishProcessing("/never-seen", OutcomeIndexed)
	if _, ok := r.StateOf("/never-seen"); ok {
		t.Error("finish on unknown path must not create an entry")
	}
}

func TestReacquireAfterFinish(t *testing.T) {
	r := New()
	r.TryStartProcessing("/a", "scan")
	r.FinishProcessing("/a", OutcomeIndexed)
	if !r.TryStartProcessing("/a", "modify") {
		t.Error("indexed path should be acquirable again")
	}
}

// Concurrent acquisitions for the same path must grant exactly one winner
// per generation.
func TestTryStartProcessing_ConcurrentSingleWinner(t *testing.T) {
	r := New()
	const goroutines = 32

	var granted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.TryStartProcessing("/contended", "modify") {
				granted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := granted.Load(); got != 1 {
		t.Errorf("granted = %d, want exactly 1", got)
	}
}

func TestStats(t *testing.T) {
	r := New()
	r.TryStartProcessing("/a", "scan")
	r.TryStartProcessing("/b", "scan")
	r.FinishProcessing("/b", OutcomeIndexed)

	tracked, processing := r.Stats()
	if tracked != 2 || processing != 1 {
		t.Errorf("Stats() = (%d, %d), want (2, 1)", tracked, processing)
	}
}
