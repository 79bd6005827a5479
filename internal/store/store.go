package store

import (
	"context"
	"time"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

// TicketStore is the key-value abstraction the ticket ledger persists into.
type TicketStore interface {
	PutTicket(ctx context.Context, t *models.Ticket) error
	// GetTicket returns nil, nil when the ticket does not exist.
	GetTicket(ctx context.Context, eventID, ticketID string) (*models.Ticket, error)
	// CountOutstanding counts tickets for the event whose admission window
	// has not yet closed at the given instant.
	CountOutstanding(ctx context.Context, eventID string, now time.Time) (int, error)
	// MarkRedeemed records the one-time redeemed mark. Idempotent.
	MarkRedeemed(ctx context.Context, eventID, ticketID string, at time.Time) error
}

// HistoryStore is the bounded per-room chat history. Implementations keep at
// most their configured capacity of messages per room, evicting oldest first,
// and preserve creation order.
type HistoryStore interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	// Recent returns up to limit messages in ascending time order. When
	// includeDeleted is false, soft-deleted messages are excluded and the
	// limit applies to the surviving messages.
	Recent(ctx context.Context, roomID string, limit int, includeDeleted bool) ([]models.ChatMessage, error)
	// Get returns nil, nil when the message is not in the room's history.
	Get(ctx context.Context, roomID, messageID string) (*models.ChatMessage, error)
	// MarkDeleted soft-deletes a message in place, retaining it for audit.
	MarkDeleted(ctx context.Context, roomID, messageID, moderatorID, reason string, at time.Time) error
}
