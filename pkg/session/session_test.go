package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/pkg/conversation"
	"github.com/teslashibe/go-voicechat/pkg/inference"
	"github.com/teslashibe/go-voicechat/pkg/stt"
	"github.com/teslashibe/go-voicechat/pkg/tts"
)

func mockFactory(id string) (*conversation.Orchestrator, error) {
	return conversation.New(
		stt.NewMock("hello"),
		inference.NewReplyMock("hi there"),
		tts.NewMock(),
		conversation.WithLogger(log.Discard()),
	)
}

func newTestManager(opts ...Option) *Manager {
	return NewManager(mockFactory, append([]Option{WithLogger(log.Discard())}, opts...)...)
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager()

	s, err := m.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Delete(s.ID)

	if s.ID == "" {
		t.Fatal("expected session ID")
	}
	if s.Orchestrator == nil || s.Hub == nil {
		t.Fatal("expected orchestrator and hub")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 session, got %d", m.Count())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newTestManager()

	a, _ := m.Create()
	b, _ := m.Create()
	defer m.Delete(a.ID)
	defer m.Delete(b.ID)

	if a.ID == b.ID {
		t.Fatal("expected distinct IDs")
	}
	if _, err := a.Orchestrator.SubmitText(context.Background(), "only in a"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if a.Orchestrator.Transcript().Len() != 2 {
		t.Errorf("expected 2 turns in a, got %d", a.Orchestrator.Transcript().Len())
	}
	if b.Orchestrator.Transcript().Len() != 0 {
		t.Errorf("expected empty transcript in b, got %d", b.Orchestrator.Transcript().Len())
	}
}

func TestGetUnknown(t *testing.T) {
	m := newTestManager()
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteStopsHub(t *testing.T) {
	m := newTestManager()
	s, _ := m.Create()

	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	select {
	case <-s.Hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFactoryError(t *testing.T) {
	boom := errors.New("boom")
	m := NewManager(func(string) (*conversation.Orchestrator, error) {
		return nil, boom
	}, WithLogger(log.Discard()))

	if _, err := m.Create(); !errors.Is(err, boom) {
		t.Errorf("expected factory error, got %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected no sessions, got %d", m.Count())
	}
}

func TestMaxSessions(t *testing.T) {
	m := newTestManager(WithMaxSessions(1))

	s, err := m.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Delete(s.ID)

	if _, err := m.Create(); !errors.Is(err, ErrLimitReached) {
		t.Errorf("expected ErrLimitReached, got %v", err)
	}
}

func TestMaxSessionsConcurrentCreate(t *testing.T) {
	const callers = 8

	var entered sync.WaitGroup
	entered.Add(callers)
	release := make(chan struct{})
	m := NewManager(func(id string) (*conversation.Orchestrator, error) {
		entered.Done()
		<-release
		return mockFactory(id)
	}, WithLogger(log.Discard()), WithMaxSessions(2))

	var created, limited atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Create()
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, ErrLimitReached):
				limited.Add(1)
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}

	entered.Wait()
	close(release)
	wg.Wait()

	if created.Load() != 2 || limited.Load() != callers-2 {
		t.Errorf("expected 2 created and %d limited, got %d and %d", callers-2, created.Load(), limited.Load())
	}
	if m.Count() != 2 {
		t.Errorf("expected 2 sessions, got %d", m.Count())
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	m := newTestManager(WithIdleTimeout(time.Minute))
	now := time.Now()
	m.now = func() time.Time { return now }

	stale, _ := m.Create()
	fresh, _ := m.Create()
	defer m.Delete(fresh.ID)

	now = now.Add(45 * time.Second)
	m.Get(fresh.ID)
	now = now.Add(30 * time.Second)

	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if _, err := m.Get(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected stale session to be gone, got %v", err)
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("expected fresh session to survive: %v", err)
	}

	select {
	case <-stale.Hub.Done():
	case <-time.After(time.Second):
		t.Fatal("stale hub did not stop")
	}
}

func TestSweepDisabled(t *testing.T) {
	m := newTestManager(WithIdleTimeout(0))
	s, _ := m.Create()
	defer m.Delete(s.ID)

	m.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if n := m.Sweep(); n != 0 {
		t.Errorf("expected no expiry, got %d", n)
	}
}

func TestRunClosesSessionsOnCancel(t *testing.T) {
	m := newTestManager(WithSweepInterval(10 * time.Millisecond))
	s, _ := m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	if m.Count() != 0 {
		t.Errorf("expected all sessions closed, got %d", m.Count())
	}
	select {
	case <-s.Hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}
