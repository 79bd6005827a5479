package models

import "time"

// Ticket grants admission to one event within its admission window.
// Immutable after issuance except for the one-time redeemed mark.
type Ticket struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	HolderID     string     `json:"holder_id,omitempty"` // empty for guest purchases
	Type         string     `json:"type"`
	PriceCents   int64      `json:"price_cents"`
	AdmitFrom    time.Time  `json:"admit_from"`
	AdmitUntil   time.Time  `json:"admit_until"`
	Transferable bool       `json:"transferable"`
	CodeHash     string     `json:"-"` // bcrypt hash of the validation code
	IssuedAt     time.Time  `json:"issued_at"`
	RedeemedAt   *time.Time `json:"redeemed_at,omitempty"`
}

// AdmitsAt reports whether the ticket admits its holder at the given instant.
func (t *Ticket) AdmitsAt(now time.Time) bool {
	return !now.Before(t.AdmitFrom) && !now.After(t.AdmitUntil)
}
