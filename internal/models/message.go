package models

// ChatMessage is one entry in a room's history.
// Mutated only by moderation (soft delete); never reordered or removed.
type ChatMessage struct {
	ID          string `json:"id"` // ULID, time-ordered
	RoomID      string `json:"room_id"`
	AuthorID    string `json:"author_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"ts"` // Unix ms

	Deleted       bool   `json:"deleted,omitempty"`
	DeletedBy     string `json:"deleted_by,omitempty"`
	DeleteReason  string `json:"delete_reason,omitempty"`
	DeletedAtUnix int64  `json:"deleted_at,omitempty"` // Unix ms
}

// Redacted returns a copy stripped of moderation metadata, for non-moderator
// consumers. Deleted messages are filtered out before this is relevant, but
// the metadata is scrubbed regardless.
func (m ChatMessage) Redacted() ChatMessage {
	m.Deleted = false
	m.DeletedBy = ""
	m.DeleteReason = ""
	m.DeletedAtUnix = 0
	return m
}
