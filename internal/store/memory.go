package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

// Memory is the default process-wide store: tickets in maps, chat history in
// a capacity-bounded ring per room. It is an explicit object with a Reset
// hook rather than module-level state so tests get a clean instance.
type Memory struct {
	mu         sync.RWMutex
	tickets    map[string]map[string]*models.Ticket // eventID -> ticketID -> ticket
	history    map[string][]*models.ChatMessage     // roomID -> ring, ascending
	historyCap int
}

// NewMemory creates a store whose per-room history holds at most historyCap
// messages.
func NewMemory(historyCap int) *Memory {
	if historyCap <= 0 {
		historyCap = 500
	}
	m := &Memory{historyCap: historyCap}
	m.Reset()
	return m
}

// Reset discards all stored state.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets = make(map[string]map[string]*models.Ticket)
	m.history = make(map[string][]*models.ChatMessage)
}

func (m *Memory) PutTicket(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.tickets[t.EventID]
	if byID == nil {
		byID = make(map[string]*models.Ticket)
		m.tickets[t.EventID] = byID
	}
	cp := *t
	byID[t.ID] = &cp
	return nil
}

func (m *Memory) GetTicket(_ context.Context, eventID, ticketID string) (*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tickets[eventID][ticketID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) CountOutstanding(_ context.Context, eventID string, now time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, t := range m.tickets[eventID] {
		if !now.After(t.AdmitUntil) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) MarkRedeemed(_ context.Context, eventID, ticketID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[eventID][ticketID]
	if !ok {
		return fmt.Errorf("%w: ticket %q", models.ErrNotFound, ticketID)
	}
	if t.RedeemedAt == nil {
		at := at
		t.RedeemedAt = &at
	}
	return nil
}

func (m *Memory) Append(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *msg
	ring := append(m.history[msg.RoomID], &cp)
	if len(ring) > m.historyCap {
		// Evict oldest; copy so the backing array does not grow unbounded.
		ring = append(ring[:0:0], ring[len(ring)-m.historyCap:]...)
	}
	m.history[msg.RoomID] = ring
	return nil
}

func (m *Memory) Recent(_ context.Context, roomID string, limit int, includeDeleted bool) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ring := m.history[roomID]
	out := make([]models.ChatMessage, 0, limit)
	// Walk backwards so the limit applies to the newest messages, then
	// reverse into ascending order.
	for i := len(ring) - 1; i >= 0 && len(out) < limit; i-- {
		if ring[i].Deleted && !includeDeleted {
			continue
		}
		out = append(out, *ring[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, roomID, messageID string) (*models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, msg := range m.history[roomID] {
		if msg.ID == messageID {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) MarkDeleted(_ context.Context, roomID, messageID, moderatorID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.history[roomID] {
		if msg.ID == messageID {
			msg.Deleted = true
			msg.DeletedBy = moderatorID
			msg.DeleteReason = reason
			msg.DeletedAtUnix = at.UnixMilli()
			return nil
		}
	}
	return fmt.Errorf("%w: message %q", models.ErrNotFound, messageID)
}
