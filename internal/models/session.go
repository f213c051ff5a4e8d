package models

import (
	"time"

	"github.com/google/uuid"
)

// Session status values.
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// Session represents a conference session that clients can join.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	HostID       string     `json:"host_id"`
	Status       string     `json:"status"`
	IsPrivate    bool       `json:"is_private"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	LastActiveAt time.Time  `json:"last_active_at"`
	EventCount   int64      `json:"event_count"`
}

// IsActive reports whether the session can still be joined.
func (s *Session) IsActive() bool {
	return s.Status == SessionActive
}
