package models

import "time"

// AccessMode controls how a connection is admitted to an event's room.
type AccessMode string

const (
	AccessPublicFree     AccessMode = "public_free"
	AccessTicketRequired AccessMode = "ticket_required"
)

// AdmissionPolicy selects how a ticket's admission window is anchored.
type AdmissionPolicy string

const (
	// AdmitFromIssuance anchors the 24h admission window at issuance time.
	AdmitFromIssuance AdmissionPolicy = "issuance"
	// AdmitFromEvent uses the event's schedule window as the admission window.
	AdmitFromEvent AdmissionPolicy = "event"
)

// Event is the metadata the core reads from the event directory.
// The core never mutates events; CRUD lives in an external collaborator.
type Event struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	StartsAt        time.Time       `json:"starts_at"`
	EndsAt          time.Time       `json:"ends_at"`
	AccessMode      AccessMode      `json:"access_mode"`
	Capacity        int             `json:"capacity"`
	Visibility      string          `json:"visibility,omitempty"`
	AdmissionPolicy AdmissionPolicy `json:"admission_policy,omitempty"`
}

// Policy returns the event's admission policy, defaulting to issuance-anchored.
func (e *Event) Policy() AdmissionPolicy {
	if e.AdmissionPolicy == AdmitFromEvent {
		return AdmitFromEvent
	}
	return AdmitFromIssuance
}

// SalesOpen reports whether tickets may still be issued for the event.
func (e *Event) SalesOpen(now time.Time) bool {
	return now.Before(e.EndsAt)
}
