package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/presence"
)

// ViewerSync periodically rebroadcasts the true presence count to every
// active room, so clients whose state drifted (missed frames, reconnects)
// eventually converge. The count is read from the tracker at emission time,
// never cached.
type ViewerSync struct {
	hub      *Hub
	tracker  *presence.Tracker
	interval time.Duration
	logger   zerolog.Logger
}

// NewViewerSync creates the drift-correction loop.
func NewViewerSync(hub *Hub, tracker *presence.Tracker, interval time.Duration, logger zerolog.Logger) *ViewerSync {
	return &ViewerSync{
		hub:      hub,
		tracker:  tracker,
		interval: interval,
		logger:   logger.With().Str("component", "viewer_sync").Logger(),
	}
}

// Run blocks until the context is cancelled.
func (v *ViewerSync) Run(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.SyncOnce()
		}
	}
}

// SyncOnce emits one round of viewer-count corrections.
func (v *ViewerSync) SyncOnce() {
	for _, roomID := range v.tracker.ActiveRooms() {
		v.hub.Broadcast(roomID, ViewerCountFrame(v.tracker.Count(roomID)))
	}
}
