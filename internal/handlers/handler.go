package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/chat"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/directory"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/realtime"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/store"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/ticket"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	directory directory.Directory
	ledger    *ticket.Ledger
	pipeline  *chat.Pipeline
	gateway   *realtime.Gateway
	redis     *store.RedisHistory // nil when running on the in-memory store
	logger    zerolog.Logger
}

// NewHandler creates a new Handler wired to the core components.
func NewHandler(dir directory.Directory, ledger *ticket.Ledger, pipeline *chat.Pipeline, gateway *realtime.Gateway, redis *store.RedisHistory, logger zerolog.Logger) *Handler {
	return &Handler{
		directory: dir,
		ledger:    ledger,
		pipeline:  pipeline,
		gateway:   gateway,
		redis:     redis,
		logger:    logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, code, message string) {
	h.JSON(w, status, map[string]string{"error": message, "code": code})
}

// DomainError maps the core error taxonomy onto HTTP responses.
func (h *Handler) DomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		h.Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrForbidden):
		h.Error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, chat.ErrMessageTooLong):
		h.Error(w, http.StatusUnprocessableEntity, "message_too_long", err.Error())
	case errors.Is(err, models.ErrInvalidInput):
		h.Error(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	case errors.Is(err, models.ErrCapacityExceeded):
		h.Error(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, models.ErrAdmissionDenied):
		h.Error(w, http.StatusForbidden, "admission_denied", err.Error())
	default:
		h.logger.Error().Err(err).Msg("unhandled error")
		h.Error(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
