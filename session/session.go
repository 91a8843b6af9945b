package session

import (
	"time"
)

// ChatID is the caller-supplied unique identifier of a chat session.
type ChatID string

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Session represents a chat session. History lives in Message rows; the
// version is bumped on every successful append and serves as the optimistic
// concurrency token.
type Session struct {
	ID           ChatID    `json:"id" db:"id"`
	Instructions string    `json:"instructions" db:"instructions"`
	Version      int64     `json:"version" db:"version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Message is a single history entry. History is append-only and ordered;
// CreatedAt is non-decreasing within a session.
type Message struct {
	ID        int64     `json:"id,omitempty" db:"id"`
	ChatID    ChatID    `json:"chat_id" db:"chat_id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SessionWithMessages combines a session with its full history.
type SessionWithMessages struct {
	Session  Session   `json:"session"`
	Messages []Message `json:"messages"`
}

// New creates a fresh session at version zero.
func New(id ChatID, instructions string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		Instructions: instructions,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewMessage builds a history entry stamped with the given instant.
func NewMessage(id ChatID, role, content string, at time.Time) Message {
	return Message{
		ChatID:    id,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
}
