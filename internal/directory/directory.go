package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

// Directory is the read-only view of the external event store. The core
// resolves events through it and never mutates event metadata.
type Directory interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
}

// Memory is an in-process Directory, seeded at startup. It stands in for
// the external CRUD service in development and tests.
type Memory struct {
	mu     sync.RWMutex
	events map[string]models.Event
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{events: make(map[string]models.Event)}
}

// Put inserts or replaces an event.
func (d *Memory) Put(ev models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[ev.ID] = ev
}

// GetEvent returns the event or models.ErrNotFound.
func (d *Memory) GetEvent(_ context.Context, eventID string) (*models.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ev, ok := d.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %q", models.ErrNotFound, eventID)
	}
	return &ev, nil
}

// LoadFile seeds the directory from a JSON file containing an array of events.
func (d *Memory) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var events []models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return 0, fmt.Errorf("parse events file: %w", err)
	}

	for _, ev := range events {
		if ev.ID == "" || !ev.StartsAt.Before(ev.EndsAt) {
			return 0, fmt.Errorf("%w: event %q needs an id and starts_at < ends_at", models.ErrInvalidInput, ev.ID)
		}
		d.Put(ev)
	}
	return len(events), nil
}
