package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/metrics"
)

// Conn is a transport handle the hub can fan out to. Send must not block
// indefinitely: a slow or dead peer returns an error and is pruned.
type Conn interface {
	Send(f Frame) error
	Close()
}

// room owns the fan-out set for one event. One lock per room; unrelated
// events never serialize against each other.
type room struct {
	mu   sync.Mutex
	subs map[Conn]struct{}
}

// Hub owns the per-room connection sets and fans frames out to them.
// Frames broadcast to the same room are delivered in invocation order;
// cross-room order is unspecified.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

// Subscribe adds a connection to the room's fan-out set, creating the room
// lazily. The room lock is taken before the hub lock is released: a
// concurrent Unsubscribe of the room's last member would otherwise discard
// the room between the two locks and strand this connection on an orphaned
// set that Broadcast can no longer resolve.
func (h *Hub) Subscribe(roomID string, c Conn) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{subs: make(map[Conn]struct{})}
		h.rooms[roomID] = r
	}
	r.mu.Lock()
	h.mu.Unlock()

	r.subs[c] = struct{}{}
	r.mu.Unlock()
}

// Unsubscribe removes a connection. The room is discarded once its last
// connection is gone.
func (h *Hub) Unsubscribe(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.subs, c)
	empty := len(r.subs) == 0
	r.mu.Unlock()

	if empty {
		delete(h.rooms, roomID)
	}
}

// Broadcast delivers the frame to every subscriber of the room, and only
// that room. Connections whose send fails are collected during iteration and
// pruned afterwards, never mid-loop.
func (h *Hub) Broadcast(roomID string, f Frame) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	var dead []Conn
	for c := range r.subs {
		if err := c.Send(f); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(r.subs, c)
	}
	r.mu.Unlock()

	metrics.BroadcastsTotal.WithLabelValues(f.Type).Inc()
	for _, c := range dead {
		metrics.ConnectionsPruned.Inc()
		h.logger.Debug().Str("room_id", roomID).Msg("pruned dead connection during broadcast")
		c.Close()
	}
}

// Subscribers returns the current fan-out set size for a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
