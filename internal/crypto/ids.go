package crypto

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewConnectionID generates a time-ordered UUID v7 string for a connection.
func NewConnectionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewEventID generates a ULID for a relayed event or transcript entry.
func NewEventID() string {
	return ulid.Make().String()
}
