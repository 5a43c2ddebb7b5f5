package domain

import "time"

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatSource is a citation attached to an assistant reply.
type ChatSource struct {
	ProcessID   string    `json:"process_id,omitempty"`
	ProcessName string    `json:"process_name"`
	ChunkType   ChunkType `json:"chunk_type"`
	Similarity  float64   `json:"similarity"`
}

// ChatMessage is a persisted chat turn.
type ChatMessage struct {
	ID             string
	ConversationID string
	UserID         string
	Role           ChatRole
	Content        string
	Sources        []ChatSource
	CreatedAt      time.Time
}
