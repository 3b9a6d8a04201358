package conversation

import (
	"sync"
	"testing"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("hello"))
	b := Fingerprint([]byte("hello"))
	c := Fingerprint([]byte("hellp"))

	if a != b {
		t.Error("same bytes should fingerprint the same")
	}
	if a == c {
		t.Error("different bytes should fingerprint differently")
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a))
	}
}

func TestGuard(t *testing.T) {
	var g Guard

	if _, ok := g.acquireAudio("a"); !ok {
		t.Fatal("first clip should be admitted")
	}
	if reason, ok := g.acquireAudio("b"); ok || reason != SkipBusy {
		t.Errorf("expected busy, got %v %v", reason, ok)
	}
	if g.acquire() {
		t.Error("text should be rejected while processing")
	}

	g.release()
	if reason, ok := g.acquireAudio("a"); ok || reason != SkipDuplicate {
		t.Errorf("expected duplicate, got %v %v", reason, ok)
	}
	if g.last != "a" {
		t.Errorf("unexpected fingerprint %q", g.last)
	}

	g.reset()
	if _, ok := g.acquireAudio("a"); !ok {
		t.Error("clip should be admitted after reset")
	}
	g.release()

	if !g.acquire() {
		t.Error("text should be admitted when idle")
	}
	if !g.Processing() {
		t.Error("expected processing")
	}
	g.release()
}

func TestGuardAtomicAdmission(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.acquireAudio("same"); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("expected exactly one admission, got %d", admitted)
	}
}
