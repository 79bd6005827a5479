package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/api/middleware"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleSocket upgrades the connection and runs it through the session
// gateway. Ticketed events read the ticket id from the "ticket" query
// parameter; identity comes from the optional bearer token.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	ident := middleware.GetIdentity(r.Context())
	ticketID := r.URL.Query().Get("ticket")

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConn(sock)
	session, err := h.gateway.Admit(r.Context(), eventID, ident, ticketID, conn)
	if err != nil {
		// The gateway already sent a final error frame and closed the
		// transport.
		return
	}
	defer session.Close("transport disconnect")

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return
		}
		session.HandleFrame(r.Context(), raw)
	}
}
