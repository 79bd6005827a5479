package ticket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/clock"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/directory"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/store"
)

// DefaultAdmissionWindow is the issuance-anchored admission window length.
const DefaultAdmissionWindow = 24 * time.Hour

// Ledger issues and validates tickets against an event's access policy and
// capacity. Issuing consumes capacity; validating never does.
type Ledger struct {
	directory directory.Directory
	tickets   store.TicketStore
	clock     clock.Clock
	logger    zerolog.Logger
}

// NewLedger creates a ticket ledger.
func NewLedger(dir directory.Directory, tickets store.TicketStore, clk clock.Clock, logger zerolog.Logger) *Ledger {
	return &Ledger{
		directory: dir,
		tickets:   tickets,
		clock:     clk,
		logger:    logger.With().Str("component", "ticket_ledger").Logger(),
	}
}

// IssueInput describes a ticket purchase.
type IssueInput struct {
	HolderID     string // empty for guest purchases
	Type         string
	PriceCents   int64
	Transferable bool
}

// Issued is a freshly issued ticket plus its validation code. The code is
// returned exactly once; only its bcrypt hash is stored.
type Issued struct {
	models.Ticket
	ValidationCode string `json:"validation_code"`
}

// Issue creates a ticket for the event, consuming one unit of capacity.
func (l *Ledger) Issue(ctx context.Context, eventID string, in IssueInput) (*Issued, error) {
	ev, err := l.directory.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	if !ev.SalesOpen(now) {
		return nil, fmt.Errorf("%w: sales closed for event %q", models.ErrInvalidInput, eventID)
	}

	outstanding, err := l.tickets.CountOutstanding(ctx, eventID, now)
	if err != nil {
		return nil, err
	}
	if outstanding >= ev.Capacity {
		return nil, fmt.Errorf("%w: event %q is sold out", models.ErrCapacityExceeded, eventID)
	}

	code, err := newValidationCode()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	admitFrom, admitUntil := admissionWindow(ev, now)
	t := models.Ticket{
		ID:           uuid.NewString(),
		EventID:      eventID,
		HolderID:     in.HolderID,
		Type:         in.Type,
		PriceCents:   in.PriceCents,
		AdmitFrom:    admitFrom,
		AdmitUntil:   admitUntil,
		Transferable: in.Transferable,
		CodeHash:     string(hash),
		IssuedAt:     now,
	}
	if t.Type == "" {
		t.Type = "standard"
	}

	if err := l.tickets.PutTicket(ctx, &t); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("event_id", eventID).
		Str("ticket_id", t.ID).
		Int("outstanding", outstanding+1).
		Msg("ticket issued")

	return &Issued{Ticket: t, ValidationCode: code}, nil
}

// Validation is the result of a ticket check. Invalid tickets are a normal
// outcome, not an error.
type Validation struct {
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Ticket *models.Ticket `json:"ticket,omitempty"`
}

// Validate checks a ticket for admission to the event. It has no side effect
// on the ticket record and is safe to call repeatedly.
func (l *Ledger) Validate(ctx context.Context, eventID, ticketID string) (*Validation, error) {
	t, err := l.tickets.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return &Validation{Valid: false, Reason: "ticket not found for event"}, nil
	}

	now := l.clock.Now()
	if !t.AdmitsAt(now) {
		return &Validation{Valid: false, Reason: "outside admission window", Ticket: t}, nil
	}
	return &Validation{Valid: true, Ticket: t}, nil
}

// Redeem verifies the validation code and applies the one-time redeemed mark.
// Redeeming twice is a no-op; the mark never moves.
func (l *Ledger) Redeem(ctx context.Context, eventID, ticketID, code string) (*models.Ticket, error) {
	t, err := l.tickets.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: ticket %q", models.ErrNotFound, ticketID)
	}
	if bcrypt.CompareHashAndPassword([]byte(t.CodeHash), []byte(code)) != nil {
		return nil, fmt.Errorf("%w: validation code mismatch", models.ErrForbidden)
	}

	if err := l.tickets.MarkRedeemed(ctx, eventID, ticketID, l.clock.Now()); err != nil {
		return nil, err
	}
	return l.tickets.GetTicket(ctx, eventID, ticketID)
}

// admissionWindow applies the event's admission policy: issuance-anchored
// 24h by default, or the event's own schedule window.
func admissionWindow(ev *models.Event, issuedAt time.Time) (from, until time.Time) {
	if ev.Policy() == models.AdmitFromEvent {
		return ev.StartsAt, ev.EndsAt
	}
	return issuedAt, issuedAt.Add(DefaultAdmissionWindow)
}

func newValidationCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
