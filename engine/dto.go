package engine

import "time"

// StateSnapshot is the read-only view of a chat returned by QueryState. The
// JSON shape matches what existing clients of the assistant state endpoint
// expect (camelCase, exists flag, recentMessages).
type StateSnapshot struct {
	ID             string        `json:"id"`
	Exists         bool          `json:"exists"`
	Instructions   string        `json:"instructions"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastUpdatedAt  time.Time     `json:"lastUpdatedAt"`
	TotalMessages  int           `json:"totalMessages"`
	Version        int64         `json:"version"`
	RecentMessages []MessageView `json:"recentMessages"`
}

// MessageView is a single history entry in a snapshot.
type MessageView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
