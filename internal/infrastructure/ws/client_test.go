package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hearthside/gametable/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	writes int
	pings  int
	closed bool
}

func (f *fakeConn) WriteJSON(any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {}
}

func (f *fakeConn) Ping(time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) snapshot() (int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes, f.pings, f.closed
}

func TestWritePumpSendsKeepalivePings(t *testing.T) {
	fc := &fakeConn{}
	cl := &Client{
		conn:      fc,
		Message:   make(chan *Envelope, 4),
		pingEvery: 2 * time.Millisecond,
		ConnID:    uuid.NewString(),
		Who:       domain.Participant{UserID: "bob"},
	}

	done := make(chan struct{})
	go func() {
		cl.WritePump()
		close(done)
	}()

	cl.Message <- NewError("camp-1", "hello")

	deadline := time.Now().Add(2 * time.Second)
	for {
		writes, pings, _ := fc.snapshot()
		if writes >= 1 && pings >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("writes = %d, pings = %d, want at least one of each", writes, pings)
		}
		time.Sleep(time.Millisecond)
	}

	close(cl.Message)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop after channel close")
	}
	if _, _, closed := fc.snapshot(); !closed {
		t.Error("connection should be closed when the pump exits")
	}
}
