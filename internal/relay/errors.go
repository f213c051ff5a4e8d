package relay

import "errors"

var (
	// ErrInvalidRoom is returned by Join when the target session does not
	// exist or is no longer active. Reported to the joining client; the
	// client must re-issue the join itself.
	ErrInvalidRoom = errors.New("session does not exist or is not active")

	// ErrDeliveryTimeout marks a single recipient that could not accept an
	// event within the delivery bound. Isolated per recipient; never
	// surfaced to the sender.
	ErrDeliveryTimeout = errors.New("delivery timed out")

	// ErrUnknownConnection is returned by operations referencing a
	// connection that was already removed. Callers generally treat it as a
	// no-op.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrNotMember is returned when a connection publishes to a room it has
	// not joined.
	ErrNotMember = errors.New("connection is not a member of the room")
)
