package chat

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/clock"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/store"
)

// Post rejections, both members of the models.ErrInvalidInput family.
var (
	ErrEmptyMessage   = fmt.Errorf("%w: empty message", models.ErrInvalidInput)
	ErrMessageTooLong = fmt.Errorf("%w: message too long", models.ErrInvalidInput)
)

// BroadcastFunc hands an accepted message to the room broadcaster. Wired at
// startup; the pipeline has no direct dependency on the realtime layer.
type BroadcastFunc func(roomID string, msg models.ChatMessage)

// Pipeline validates, timestamps, persists, and moderates chat messages.
type Pipeline struct {
	history   store.HistoryStore
	clock     clock.Clock
	logger    zerolog.Logger
	broadcast BroadcastFunc

	maxLen       int
	historyLimit int

	// One lock per room so a busy event cannot stall chat in another.
	// Locks are refcounted and dropped from the map once idle, so rooms
	// that empty out do not accumulate forever. The entropy source has its
	// own lock and is always taken inside a room lock, never the other
	// way around.
	roomMu sync.Mutex
	rooms  map[string]*roomLock

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxLength overrides the maximum accepted message length in characters.
func WithMaxLength(n int) Option {
	return func(p *Pipeline) { p.maxLen = n }
}

// WithHistoryLimit overrides the maximum window a history read may request.
func WithHistoryLimit(n int) Option {
	return func(p *Pipeline) { p.historyLimit = n }
}

// NewPipeline creates a chat pipeline over the given history store.
func NewPipeline(history store.HistoryStore, clk clock.Clock, broadcast BroadcastFunc, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		history:      history,
		clock:        clk,
		broadcast:    broadcast,
		logger:       logger.With().Str("component", "chat_pipeline").Logger(),
		maxLen:       400,
		historyLimit: 200,
		rooms:        make(map[string]*roomLock),
		entropy:      ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func (p *Pipeline) lockRoom(roomID string) *roomLock {
	p.roomMu.Lock()
	l, ok := p.rooms[roomID]
	if !ok {
		l = &roomLock{}
		p.rooms[roomID] = l
	}
	l.refs++
	p.roomMu.Unlock()

	l.mu.Lock()
	return l
}

func (p *Pipeline) unlockRoom(roomID string, l *roomLock) {
	l.mu.Unlock()

	p.roomMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(p.rooms, roomID)
	}
	p.roomMu.Unlock()
}

func (p *Pipeline) lockedRooms() int {
	p.roomMu.Lock()
	defer p.roomMu.Unlock()
	return len(p.rooms)
}

// nextID assigns a time-ordered ULID. Called under the room lock, so ids
// within a room are strictly increasing.
func (p *Pipeline) nextID(ms uint64) string {
	p.entropyMu.Lock()
	defer p.entropyMu.Unlock()
	return ulid.MustNew(ms, p.entropy).String()
}

// Post validates and stores a message, then hands it to the broadcaster.
// Oversized input is rejected, never truncated.
func (p *Pipeline) Post(ctx context.Context, roomID, authorID, displayName, text string) (*models.ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(trimmed)) > p.maxLen {
		return nil, fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, p.maxLen)
	}

	l := p.lockRoom(roomID)
	defer p.unlockRoom(roomID, l)

	now := p.clock.Now()
	msg := models.ChatMessage{
		ID:          p.nextID(ulid.Timestamp(now)),
		RoomID:      roomID,
		AuthorID:    authorID,
		DisplayName: displayName,
		Text:        trimmed,
		Timestamp:   now.UnixMilli(),
	}

	if err := p.history.Append(ctx, &msg); err != nil {
		return nil, err
	}

	// Broadcast under the room lock so delivery order matches history order.
	if p.broadcast != nil {
		p.broadcast(roomID, msg)
	}

	return &msg, nil
}

// History returns up to limit messages in ascending time order. Moderators
// see soft-deleted messages with their deletion metadata; everyone else sees
// neither the messages nor the metadata.
func (p *Pipeline) History(ctx context.Context, roomID string, limit int, caller *models.Identity) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > p.historyLimit {
		limit = p.historyLimit
	}

	asModerator := caller.Has(models.CapModerator)
	msgs, err := p.history.Recent(ctx, roomID, limit, asModerator)
	if err != nil {
		return nil, err
	}
	if !asModerator {
		for i := range msgs {
			msgs[i] = msgs[i].Redacted()
		}
	}
	return msgs, nil
}

// ActionDelete is the only moderation action the pipeline applies itself.
// Mute and ban are accepted at the transport boundary and forwarded to the
// external enforcement hook.
const ActionDelete = "delete"

// Moderate soft-deletes a message in place. Ids and timestamps of the
// surrounding history never shift.
func (p *Pipeline) Moderate(ctx context.Context, roomID, messageID, action string, moderator *models.Identity, reason string) error {
	if !moderator.Has(models.CapModerator) {
		return fmt.Errorf("%w: moderation requires moderator or admin capability", models.ErrForbidden)
	}
	if action != ActionDelete {
		return fmt.Errorf("%w: unsupported moderation action %q", models.ErrInvalidInput, action)
	}

	l := p.lockRoom(roomID)
	defer p.unlockRoom(roomID, l)

	if err := p.history.MarkDeleted(ctx, roomID, messageID, moderator.ID, reason, p.clock.Now()); err != nil {
		return err
	}

	p.logger.Info().
		Str("room_id", roomID).
		Str("message_id", messageID).
		Str("moderator_id", moderator.ID).
		Msg("message deleted")
	return nil
}
