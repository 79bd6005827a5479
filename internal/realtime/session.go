package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/chat"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/clock"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/directory"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/metrics"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/presence"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/ticket"
)

// State is a session's position in the admission state machine.
type State int32

const (
	StateConnecting State = iota
	StateAdmitted
	StateActive
	StateClosed
)

// Gateway is the connection-admission state machine. It resolves the target
// room, gates entry on the event's access mode, and wires admitted
// connections to the presence tracker and the hub.
type Gateway struct {
	directory directory.Directory
	ledger    *ticket.Ledger
	tracker   *presence.Tracker
	hub       *Hub
	pipeline  *chat.Pipeline
	clock     clock.Clock
	logger    zerolog.Logger
}

// NewGateway creates a session gateway.
func NewGateway(dir directory.Directory, ledger *ticket.Ledger, tracker *presence.Tracker, hub *Hub, pipeline *chat.Pipeline, clk clock.Clock, logger zerolog.Logger) *Gateway {
	return &Gateway{
		directory: dir,
		ledger:    ledger,
		tracker:   tracker,
		hub:       hub,
		pipeline:  pipeline,
		clock:     clk,
		logger:    logger.With().Str("component", "session_gateway").Logger(),
	}
}

// Session is one connection's state machine instance. A new physical
// connection always gets a fresh Session; a closed one never resurrects.
type Session struct {
	ID          string
	RoomID      string
	Participant *models.Identity

	gateway   *Gateway
	conn      Conn
	state     atomic.Int32
	closeOnce sync.Once
}

// State returns the session's current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Admit runs a new connection through Connecting and Admitted. On success
// the session is Active: presence registered, subscribed to the room, and
// the room (including the caller) told the new viewer count. On failure the
// connection receives a final error frame and is Closed without ever
// touching presence.
func (g *Gateway) Admit(ctx context.Context, eventID string, ident *models.Identity, ticketID string, conn Conn) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		RoomID:  eventID,
		gateway: g,
		conn:    conn,
	}

	ev, err := g.directory.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.reject("not_found", "unknown event", "event_not_found", models.ErrNotFound)
		}
		conn.Close()
		s.state.Store(int32(StateClosed))
		return nil, err
	}

	s.state.Store(int32(StateAdmitted))

	if ev.AccessMode == models.AccessTicketRequired {
		if ticketID == "" {
			return nil, s.reject("admission_denied", "ticket required", "no_ticket", models.ErrAdmissionDenied)
		}
		v, err := g.ledger.Validate(ctx, eventID, ticketID)
		if err != nil {
			conn.Close()
			s.state.Store(int32(StateClosed))
			return nil, err
		}
		if !v.Valid {
			return nil, s.reject("admission_denied", v.Reason, "ticket_invalid", models.ErrAdmissionDenied)
		}
	}

	if ident == nil {
		ident = &models.Identity{
			ID:           "guest-" + s.ID[:8],
			DisplayName:  "Guest",
			Capabilities: []models.Capability{models.CapViewer},
		}
	}
	s.Participant = ident

	g.hub.Subscribe(s.RoomID, conn)
	count := g.tracker.Join(s.RoomID, s.ID, ident.ID)
	s.state.Store(int32(StateActive))
	metrics.ActiveConnections.Inc()

	// The new subscriber receives this too; it doubles as the initial
	// presence snapshot.
	g.hub.Broadcast(s.RoomID, ViewerCountFrame(count))

	g.logger.Info().
		Str("room_id", s.RoomID).
		Str("session_id", s.ID).
		Str("participant_id", ident.ID).
		Int("viewers", count).
		Msg("connection admitted")

	return s, nil
}

// reject sends a final error frame, closes the transport, and parks the
// session in Closed.
func (s *Session) reject(code, message, reason string, sentinel error) error {
	metrics.AdmissionsDenied.WithLabelValues(reason).Inc()
	_ = s.conn.Send(ErrorFrame(code, message))
	s.conn.Close()
	s.state.Store(int32(StateClosed))
	return fmt.Errorf("%w: %s", sentinel, message)
}

// HandleFrame processes one inbound frame while Active. Heartbeats are
// answered directly; chat frames go through the pipeline; anything
// malformed or unknown is dropped with a log line, never fatal.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	if s.State() != StateActive {
		return
	}

	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.gateway.logger.Debug().Str("session_id", s.ID).Err(err).Msg("dropping malformed frame")
		return
	}

	switch f.Type {
	case frameTypePing:
		_ = s.conn.Send(PongFrame(s.gateway.clock.Now().UnixMilli()))

	case frameTypeChatMessage:
		displayName := f.DisplayName
		if displayName == "" {
			displayName = s.Participant.DisplayName
		}
		_, err := s.gateway.pipeline.Post(ctx, s.RoomID, s.Participant.ID, displayName, f.Text)
		if err != nil {
			// Validation failures go back to this caller only.
			_ = s.conn.Send(ErrorFrame(chatErrorCode(err), err.Error()))
			return
		}
		metrics.MessagesPosted.Inc()

	default:
		s.gateway.logger.Debug().Str("session_id", s.ID).Str("type", f.Type).Msg("dropping unknown frame type")
	}
}

// Close runs the Active → Closed cleanup exactly once, no matter how many
// times or from how many goroutines it is triggered.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		wasActive := s.State() == StateActive
		s.state.Store(int32(StateClosed))

		if wasActive {
			g := s.gateway
			g.hub.Unsubscribe(s.RoomID, s.conn)
			count := g.tracker.Leave(s.RoomID, s.ID)
			g.hub.Broadcast(s.RoomID, ViewerCountFrame(count))
			metrics.ActiveConnections.Dec()

			g.logger.Info().
				Str("room_id", s.RoomID).
				Str("session_id", s.ID).
				Str("reason", reason).
				Int("viewers", count).
				Msg("connection closed")
		}
		s.conn.Close()
	})
}

func chatErrorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, chat.ErrMessageTooLong):
		return "message_too_long"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal_error"
	}
}
