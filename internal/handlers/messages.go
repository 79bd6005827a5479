package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/api/middleware"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/chat"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/metrics"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

// MessagesResponse is the chat history read response.
type MessagesResponse struct {
	EventID  string               `json:"event_id"`
	Messages []models.ChatMessage `json:"messages"`
}

// GetMessages returns the most recent chat messages for an event, in
// ascending time order. Moderators see soft-deleted messages with their
// deletion metadata; other callers never do.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	if _, err := h.directory.GetEvent(r.Context(), eventID); err != nil {
		h.DomainError(w, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	caller := middleware.GetIdentity(r.Context())
	msgs, err := h.pipeline.History(r.Context(), eventID, limit, caller)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MessagesResponse{EventID: eventID, Messages: msgs})
}

// ModerateRequest is a moderation call against one message.
type ModerateRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// ModerateMessage applies a moderation action. delete_message soft-deletes
// in place; mute and ban are acknowledged and left to the external
// enforcement hook.
func (h *Handler) ModerateMessage(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "messageID")

	moderator := middleware.GetIdentity(r.Context())
	if moderator == nil {
		h.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req ModerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid_request_body", "invalid JSON body")
		return
	}

	switch req.Action {
	case "delete_message":
		err := h.pipeline.Moderate(r.Context(), eventID, messageID, chat.ActionDelete, moderator, req.Reason)
		if err != nil {
			h.DomainError(w, err)
			return
		}
		metrics.MessagesModerated.Inc()
		h.JSON(w, http.StatusOK, map[string]string{"status": "deleted", "message_id": messageID})

	case "mute_user", "ban_user":
		// Accepted at the boundary; session termination and future-admission
		// enforcement live outside the core.
		if !moderator.Has(models.CapModerator) {
			h.Error(w, http.StatusForbidden, "forbidden", "moderation requires moderator or admin capability")
			return
		}
		h.logger.Info().
			Str("event_id", eventID).
			Str("action", req.Action).
			Str("moderator_id", moderator.ID).
			Msg("moderation action forwarded to enforcement hook")
		h.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "action": req.Action})

	default:
		h.Error(w, http.StatusUnprocessableEntity, "invalid_input", "unsupported moderation action")
	}
}
