package presence

import (
	"sync"
	"time"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/clock"
)

// Entry is one admitted connection's presence in a room. Presence is keyed by
// connection id, not participant id: the same person watching from two tabs
// holds two entries.
type Entry struct {
	ParticipantID string
	JoinedAt      time.Time
}

// Tracker maintains the presence set per room. The session gateway calls
// Join/Leave exactly once per connection.
type Tracker struct {
	clock clock.Clock

	mu    sync.RWMutex
	rooms map[string]map[string]Entry // roomID -> connectionID -> entry
}

// NewTracker creates an empty tracker.
func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		clock: clk,
		rooms: make(map[string]map[string]Entry),
	}
}

// Join registers a presence entry and returns the new count.
func (t *Tracker) Join(roomID, connectionID, participantID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.rooms[roomID]
	if entries == nil {
		entries = make(map[string]Entry)
		t.rooms[roomID] = entries
	}
	entries[connectionID] = Entry{ParticipantID: participantID, JoinedAt: t.clock.Now().UTC()}
	return len(entries)
}

// Leave removes the entry and returns the post-leave count, clamped at zero.
// An emptied room's presence set is discarded, not retained.
func (t *Tracker) Leave(roomID, connectionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, ok := t.rooms[roomID]
	if !ok {
		return 0
	}
	delete(entries, connectionID)
	if len(entries) == 0 {
		delete(t.rooms, roomID)
		return 0
	}
	return len(entries)
}

// Entry returns a connection's presence entry, if present.
func (t *Tracker) Entry(roomID, connectionID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.rooms[roomID][connectionID]
	return e, ok
}

// Count returns the number of admitted connections in the room.
func (t *Tracker) Count(roomID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[roomID])
}

// ActiveRooms lists rooms with at least one presence entry.
func (t *Tracker) ActiveRooms() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rooms := make([]string, 0, len(t.rooms))
	for id := range t.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}
