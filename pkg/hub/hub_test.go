package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voicechat/internal/log"
)

type fakeConn struct {
	mu       sync.Mutex
	closed   chan struct{}
	once     sync.Once
	writes   chan []byte
	lastType int

	// gate, when set, holds every data write until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{}), writes: make(chan []byte, 16)}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.CloseMessage || messageType == websocket.PingMessage {
		return nil
	}
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	f.lastType = messageType
	f.mu.Unlock()
	f.writes <- data
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHubPublishesToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("session-1", log.Discard())
	go h.Run(ctx)

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, c := range conns {
		client := NewClient(h, c)
		go client.Run()
	}
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.Publish(EventTurn, map[string]string{"text": "hello"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for i, c := range conns {
		select {
		case data := <-c.writes:
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("client %d: decode: %v", i, err)
			}
			if ev.Type != EventTurn || ev.SessionID != "session-1" {
				t.Errorf("client %d: unexpected event %+v", i, ev)
			}
			c.mu.Lock()
			lastType := c.lastType
			c.mu.Unlock()
			if lastType != websocket.TextMessage {
				t.Errorf("client %d: expected text frame", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client %d: no message", i)
		}
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("s", log.Discard())
	go h.Run(ctx)

	c := newFakeConn()
	client := NewClient(h, c)
	go client.Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	c.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestClientRunWaitsForWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("s", log.Discard())
	go h.Run(ctx)

	c := newFakeConn()
	c.gate = make(chan struct{})
	c.entered = make(chan struct{}, 1)

	runDone := make(chan struct{})
	go func() {
		NewClient(h, c).Run()
		close(runDone)
	}()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Publish(EventStatus, "busy")
	select {
	case <-c.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("write never started")
	}

	// The reader exits while the writer is still mid-write.
	c.Close()
	select {
	case <-runDone:
		t.Fatal("Run returned while the writer still held the connection")
	case <-time.After(50 * time.Millisecond):
	}

	close(c.gate)
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the writer finished")
	}
}

func TestHubShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("s", log.Discard())
	go h.Run(ctx)

	c := newFakeConn()
	go NewClient(h, c).Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("client connection not closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Error("expected hub stopped with no clients")
	}
	if NewClient(h, newFakeConn()) != nil {
		t.Error("registering with a stopped hub should return nil")
	}
}
