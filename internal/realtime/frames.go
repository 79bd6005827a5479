package realtime

import "github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"

// Frame is the server-to-client wire envelope.
type Frame struct {
	Type    string      `json:"type"`
	TS      int64       `json:"ts,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// inboundFrame is the client-to-server envelope. Unknown or malformed frames
// are dropped without terminating the connection.
type inboundFrame struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

const (
	frameTypePing        = "ping"
	frameTypePong        = "pong"
	frameTypeChatMessage = "chat_message"
	frameTypeViewerCount = "viewer_count"
	frameTypeError       = "error"
)

// PongFrame answers a heartbeat.
func PongFrame(ts int64) Frame {
	return Frame{Type: frameTypePong, TS: ts}
}

// ChatMessageFrame wraps an accepted chat message for fan-out.
func ChatMessageFrame(msg models.ChatMessage) Frame {
	return Frame{Type: frameTypeChatMessage, Payload: msg}
}

// ViewerCountFrame carries the room's current presence count.
func ViewerCountFrame(count int) Frame {
	return Frame{Type: frameTypeViewerCount, Payload: map[string]int{"count": count}}
}

// ErrorFrame reports a per-connection failure (rejected admission, invalid
// chat input) without touching the rest of the room.
func ErrorFrame(code, message string) Frame {
	return Frame{Type: frameTypeError, Payload: map[string]string{"code": code, "error": message}}
}
