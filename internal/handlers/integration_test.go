package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/api"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/chat"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/clock"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/directory"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/handlers"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/identity"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/presence"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/realtime"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/store"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/ticket"
)

type app struct {
	server   *httptest.Server
	tracker  *presence.Tracker
	pipeline *chat.Pipeline
}

func newApp(t *testing.T) *app {
	t.Helper()
	now := time.Now().UTC()

	dir := directory.NewMemory()
	dir.Put(models.Event{
		ID:         "demo",
		Title:      "Demo Theatre",
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(24 * time.Hour),
		AccessMode: models.AccessPublicFree,
		Capacity:   5000,
	})
	dir.Put(models.Event{
		ID:         "fd-theatre-0001",
		Title:      "Ticketed Theatre",
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(24 * time.Hour),
		AccessMode: models.AccessTicketRequired,
		Capacity:   500,
	})
	dir.Put(models.Event{
		ID:         "tiny",
		Title:      "Tiny Venue",
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(24 * time.Hour),
		AccessMode: models.AccessTicketRequired,
		Capacity:   1,
	})

	clk := clock.NewSystem()
	mem := store.NewMemory(500)
	hub := realtime.NewHub(zerolog.Nop())
	tracker := presence.NewTracker(clk)
	pipeline := chat.NewPipeline(mem, clk, func(roomID string, msg models.ChatMessage) {
		hub.Broadcast(roomID, realtime.ChatMessageFrame(msg))
	}, zerolog.Nop())
	ledger := ticket.NewLedger(dir, mem, clk, zerolog.Nop())
	gateway := realtime.NewGateway(dir, ledger, tracker, hub, pipeline, clk, zerolog.Nop())

	resolver := &identity.Static{Identities: map[string]*models.Identity{
		"mod-token": {
			ID:           "mod-1",
			DisplayName:  "Moderator",
			Capabilities: []models.Capability{models.CapModerator},
		},
		"viewer-token": {
			ID:           "viewer-1",
			DisplayName:  "Viewer",
			Capabilities: []models.Capability{models.CapViewer},
		},
	}}

	h := handlers.NewHandler(dir, ledger, pipeline, gateway, nil, zerolog.Nop())
	router := api.NewRouter(zerolog.Nop(), api.Deps{Handler: h, Resolver: resolver})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &app{server: srv, tracker: tracker, pipeline: pipeline}
}

func (a *app) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp, decoded
}

func jsonString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	return s
}

func TestTicketLifecycle(t *testing.T) {
	a := newApp(t)

	resp, body := a.request(t, http.MethodPost, "/events/demo/tickets", "", handlers.IssueTicketRequest{HolderID: "alice", Type: "vip"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue: expected 201, got %d", resp.StatusCode)
	}
	ticketID := jsonString(t, body["id"])
	code := jsonString(t, body["validation_code"])
	if ticketID == "" || code == "" {
		t.Fatalf("expected id and validation_code, got %v", body)
	}

	t.Run("validate is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp, body := a.request(t, http.MethodPost, "/events/demo/tickets/"+ticketID+"/validate", "", nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("validate: expected 200, got %d", resp.StatusCode)
			}
			if string(body["valid"]) != "true" {
				t.Fatalf("expected valid, got %v", body)
			}
		}
	})

	t.Run("validate unknown ticket", func(t *testing.T) {
		_, body := a.request(t, http.MethodPost, "/events/demo/tickets/missing/validate", "", nil)
		if string(body["valid"]) != "false" {
			t.Fatalf("expected invalid, got %v", body)
		}
	})

	t.Run("redeem with code", func(t *testing.T) {
		resp, body := a.request(t, http.MethodPost, "/events/demo/tickets/"+ticketID+"/redeem", "", handlers.RedeemTicketRequest{Code: code})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("redeem: expected 200, got %d (%v)", resp.StatusCode, body)
		}

		resp, _ = a.request(t, http.MethodPost, "/events/demo/tickets/"+ticketID+"/redeem", "", handlers.RedeemTicketRequest{Code: "wrong"})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("wrong code: expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		// Same surface as history reads: unknown events are 404 everywhere.
		resp, body := a.request(t, http.MethodPost, "/events/ghost/tickets", "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		if jsonString(t, body["code"]) != "not_found" {
			t.Fatalf("unexpected code %v", body)
		}
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		resp, _ := a.request(t, http.MethodPost, "/events/tiny/tickets", "", nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("first ticket at capacity should succeed, got %d", resp.StatusCode)
		}
		resp, body := a.request(t, http.MethodPost, "/events/tiny/tickets", "", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
		if jsonString(t, body["code"]) != "capacity_exceeded" {
			t.Fatalf("unexpected code %v", body)
		}
	})
}

func TestHistoryAndModeration(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		msg, err := a.pipeline.Post(ctx, "demo", "u1", "User", fmt.Sprintf("msg %d", i))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	t.Run("moderation requires capability", func(t *testing.T) {
		resp, _ := a.request(t, http.MethodPost, "/events/demo/messages/"+ids[1]+"/moderate", "", handlers.ModerateRequest{Action: "delete_message"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("anonymous: expected 401, got %d", resp.StatusCode)
		}
		resp, _ = a.request(t, http.MethodPost, "/events/demo/messages/"+ids[1]+"/moderate", "viewer-token", handlers.ModerateRequest{Action: "delete_message"})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("viewer: expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("delete then read back", func(t *testing.T) {
		resp, _ := a.request(t, http.MethodPost, "/events/demo/messages/"+ids[1]+"/moderate", "mod-token", handlers.ModerateRequest{Action: "delete_message", Reason: "spam"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("moderate: expected 200, got %d", resp.StatusCode)
		}

		_, body := a.request(t, http.MethodGet, "/events/demo/messages", "", nil)
		var visible []models.ChatMessage
		if err := json.Unmarshal(body["messages"], &visible); err != nil {
			t.Fatalf("unmarshal messages: %v", err)
		}
		if len(visible) != 2 {
			t.Fatalf("expected deleted message hidden, got %d", len(visible))
		}
		for _, m := range visible {
			if m.ID == ids[1] || m.Deleted {
				t.Fatalf("deleted message leaked: %+v", m)
			}
		}

		_, body = a.request(t, http.MethodGet, "/events/demo/messages", "mod-token", nil)
		var audit []models.ChatMessage
		if err := json.Unmarshal(body["messages"], &audit); err != nil {
			t.Fatalf("unmarshal messages: %v", err)
		}
		if len(audit) != 3 {
			t.Fatalf("moderator should see all, got %d", len(audit))
		}
		if !audit[1].Deleted || audit[1].DeletedBy != "mod-1" || audit[1].DeleteReason != "spam" {
			t.Fatalf("missing deletion metadata: %+v", audit[1])
		}
	})

	t.Run("moderating a missing message", func(t *testing.T) {
		resp, _ := a.request(t, http.MethodPost, "/events/demo/messages/missing/moderate", "mod-token", handlers.ModerateRequest{Action: "delete_message"})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("mute is accepted, not applied", func(t *testing.T) {
		resp, _ := a.request(t, http.MethodPost, "/events/demo/messages/"+ids[0]+"/moderate", "mod-token", handlers.ModerateRequest{Action: "mute_user"})
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
	})

	t.Run("history for unknown event", func(t *testing.T) {
		resp, _ := a.request(t, http.MethodGet, "/events/ghost/messages", "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})
}

type wsFrame struct {
	Type    string          `json:"type"`
	TS      int64           `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func dialRoom(t *testing.T, a *app, eventID, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws/events/" + eventID + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	return f
}

func readCount(t *testing.T, f wsFrame) int {
	t.Helper()
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("unmarshal viewer_count: %v", err)
	}
	return payload.Count
}

func TestRealtimeDemoScenario(t *testing.T) {
	a := newApp(t)

	connA := dialRoom(t, a, "demo", "")
	if f := readFrame(t, connA); f.Type != "viewer_count" || readCount(t, f) != 1 {
		t.Fatalf("expected viewer_count 1, got %+v", f)
	}

	// Heartbeats bypass the chat pipeline.
	connA.WriteJSON(map[string]string{"type": "ping"})
	if f := readFrame(t, connA); f.Type != "pong" || f.TS == 0 {
		t.Fatalf("expected pong, got %+v", f)
	}

	connB := dialRoom(t, a, "demo", "")
	if f := readFrame(t, connB); f.Type != "viewer_count" || readCount(t, f) != 2 {
		t.Fatalf("expected viewer_count 2 for B, got %+v", f)
	}
	if f := readFrame(t, connA); f.Type != "viewer_count" || readCount(t, f) != 2 {
		t.Fatalf("expected viewer_count 2 for A, got %+v", f)
	}

	connA.WriteJSON(map[string]string{"type": "chat_message", "text": "hello", "displayName": "Zeno"})
	for name, conn := range map[string]*websocket.Conn{"A": connA, "B": connB} {
		f := readFrame(t, conn)
		if f.Type != "chat_message" {
			t.Fatalf("%s: expected chat_message, got %+v", name, f)
		}
		var msg models.ChatMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			t.Fatalf("%s: unmarshal payload: %v", name, err)
		}
		if msg.Text != "hello" || msg.DisplayName != "Zeno" {
			t.Fatalf("%s: unexpected message %+v", name, msg)
		}
	}

	// Closing A drives the count back down and tells B.
	connA.Close()
	if f := readFrame(t, connB); f.Type != "viewer_count" || readCount(t, f) != 1 {
		t.Fatalf("expected viewer_count 1 after A left, got %+v", f)
	}
}

func TestRealtimeTicketRequired(t *testing.T) {
	a := newApp(t)

	t.Run("denied without ticket", func(t *testing.T) {
		conn := dialRoom(t, a, "fd-theatre-0001", "")
		f := readFrame(t, conn)
		if f.Type != "error" {
			t.Fatalf("expected error frame, got %+v", f)
		}
		var payload map[string]string
		json.Unmarshal(f.Payload, &payload)
		if payload["code"] != "admission_denied" {
			t.Fatalf("expected admission_denied, got %v", payload)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Fatal("expected server to close the connection")
		}
		if got := a.tracker.Count("fd-theatre-0001"); got != 0 {
			t.Fatalf("denied connection in presence: %d", got)
		}
	})

	t.Run("admitted with ticket", func(t *testing.T) {
		resp, body := a.request(t, http.MethodPost, "/events/fd-theatre-0001/tickets", "", nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("issue: expected 201, got %d", resp.StatusCode)
		}
		ticketID := jsonString(t, body["id"])

		conn := dialRoom(t, a, "fd-theatre-0001", "?ticket="+ticketID)
		if f := readFrame(t, conn); f.Type != "viewer_count" || readCount(t, f) != 1 {
			t.Fatalf("expected viewer_count 1, got %+v", f)
		}
	})
}

func TestHealthAndRoot(t *testing.T) {
	a := newApp(t)

	resp, body := a.request(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if jsonString(t, body["status"]) != "healthy" {
		t.Fatalf("expected healthy, got %v", body)
	}

	resp, _ = a.request(t, http.MethodGet, "/", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("root: expected 200, got %d", resp.StatusCode)
	}
}
