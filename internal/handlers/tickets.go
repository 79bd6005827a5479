package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/metrics"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/ticket"
)

// IssueTicketRequest represents a ticket purchase request.
type IssueTicketRequest struct {
	HolderID     string `json:"holder_id,omitempty"`
	Type         string `json:"type,omitempty"`
	PriceCents   int64  `json:"price_cents,omitempty"`
	Transferable bool   `json:"transferable,omitempty"`
}

// IssueTicket handles ticket issuance for an event.
func (h *Handler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	var req IssueTicketRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Error(w, http.StatusBadRequest, "invalid_request_body", "invalid JSON body")
			return
		}
	}

	issued, err := h.ledger.Issue(r.Context(), eventID, ticket.IssueInput{
		HolderID:     req.HolderID,
		Type:         req.Type,
		PriceCents:   req.PriceCents,
		Transferable: req.Transferable,
	})
	if err != nil {
		h.DomainError(w, err)
		return
	}

	metrics.TicketsIssued.Inc()
	h.JSON(w, http.StatusCreated, issued)
}

// ValidateTicket handles ticket validation. It is idempotent: validation
// never mutates the ticket record.
func (h *Handler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	ticketID := chi.URLParam(r, "ticketID")

	v, err := h.ledger.Validate(r.Context(), eventID, ticketID)
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, v)
}

// RedeemTicketRequest carries the validation code returned at issuance.
type RedeemTicketRequest struct {
	Code string `json:"code"`
}

// RedeemTicket verifies the validation code and applies the one-time
// redeemed mark.
func (h *Handler) RedeemTicket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	ticketID := chi.URLParam(r, "ticketID")

	var req RedeemTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid_request_body", "invalid JSON body")
		return
	}
	if req.Code == "" {
		h.Error(w, http.StatusBadRequest, "missing_required_field", "code is required")
		return
	}

	t, err := h.ledger.Redeem(r.Context(), eventID, ticketID, req.Code)
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, t)
}
