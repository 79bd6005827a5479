package realtime

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeConn records frames and can be told to fail sends.
type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	fail   bool
	closed bool
}

func (c *fakeConn) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) recorded() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHub_RoomIsolation(t *testing.T) {
	t.Parallel()
	hub := NewHub(zerolog.Nop())

	a, b := &fakeConn{}, &fakeConn{}
	hub.Subscribe("room-a", a)
	hub.Subscribe("room-b", b)

	hub.Broadcast("room-a", ViewerCountFrame(1))

	if len(a.recorded()) != 1 {
		t.Fatalf("room-a subscriber expected 1 frame, got %d", len(a.recorded()))
	}
	if len(b.recorded()) != 0 {
		t.Fatalf("cross-room leakage: room-b got %d frames", len(b.recorded()))
	}
}

func TestHub_BroadcastOrderPerRoom(t *testing.T) {
	t.Parallel()
	hub := NewHub(zerolog.Nop())

	c := &fakeConn{}
	hub.Subscribe("room-a", c)

	for i := 0; i < 20; i++ {
		hub.Broadcast("room-a", Frame{Type: "chat_message", TS: int64(i)})
	}

	frames := c.recorded()
	if len(frames) != 20 {
		t.Fatalf("expected 20 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.TS != int64(i) {
			t.Fatalf("frame %d out of order: ts %d", i, f.TS)
		}
	}
}

func TestHub_PrunesFailedSends(t *testing.T) {
	t.Parallel()
	hub := NewHub(zerolog.Nop())

	healthy := &fakeConn{}
	dead := &fakeConn{fail: true}
	hub.Subscribe("room-a", healthy)
	hub.Subscribe("room-a", dead)

	hub.Broadcast("room-a", ViewerCountFrame(2))

	if len(healthy.recorded()) != 1 {
		t.Fatal("failed peer must not abort delivery to the rest of the room")
	}
	if !dead.isClosed() {
		t.Fatal("dead connection should be closed after pruning")
	}
	if got := hub.Subscribers("room-a"); got != 1 {
		t.Fatalf("expected 1 subscriber after pruning, got %d", got)
	}

	// Pruned connections stay gone.
	hub.Broadcast("room-a", ViewerCountFrame(1))
	if len(dead.recorded()) != 0 {
		t.Fatal("pruned connection still receiving")
	}
}

func TestHub_UnsubscribeDiscardsEmptyRoom(t *testing.T) {
	t.Parallel()
	hub := NewHub(zerolog.Nop())

	c := &fakeConn{}
	hub.Subscribe("room-a", c)
	hub.Unsubscribe("room-a", c)

	if got := hub.Subscribers("room-a"); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
	// Broadcasting into a discarded room is a no-op, not a panic.
	hub.Broadcast("room-a", ViewerCountFrame(0))
}

func TestHub_SubscribeRacingLastUnsubscribe(t *testing.T) {
	t.Parallel()
	hub := NewHub(zerolog.Nop())

	// A fresh subscriber arriving while the room's last member leaves must
	// land in the live room, never an orphaned set discarded by the leave.
	for i := 0; i < 2000; i++ {
		leaving := &fakeConn{}
		hub.Subscribe("room-a", leaving)

		arriving := &fakeConn{}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Unsubscribe("room-a", leaving)
		}()
		go func() {
			defer wg.Done()
			hub.Subscribe("room-a", arriving)
		}()
		wg.Wait()

		if got := hub.Subscribers("room-a"); got != 1 {
			t.Fatalf("iteration %d: expected 1 subscriber, got %d", i, got)
		}
		hub.Broadcast("room-a", ViewerCountFrame(1))
		if len(arriving.recorded()) != 1 {
			t.Fatalf("iteration %d: new subscriber stranded, got %d frames", i, len(arriving.recorded()))
		}
		hub.Unsubscribe("room-a", arriving)
	}
}

func TestHub_ConcurrentSubscribeBroadcast(t *testing.T) {
	t.Parallel()
	hub := NewHub(zerolog.Nop())

	const workers = 32
	var wg sync.WaitGroup
	conns := make([]*fakeConn, workers)
	for i := 0; i < workers; i++ {
		conns[i] = &fakeConn{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("room-%d", i%4)
			hub.Subscribe(room, conns[i])
			hub.Broadcast(room, ViewerCountFrame(i))
			hub.Unsubscribe(room, conns[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		if got := hub.Subscribers(fmt.Sprintf("room-%d", i)); got != 0 {
			t.Fatalf("room-%d: expected 0 subscribers, got %d", i, got)
		}
	}
}
