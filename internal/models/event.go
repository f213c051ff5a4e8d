package models

import "github.com/goccy/go-json"

// Event types relayed between session members. The relay forwards payloads
// verbatim; it never interprets caption or chat content.
const (
	EventCaptionUpdate = "caption-update"
	EventChatMessage   = "chat-message"
	EventTyping        = "typing"
	EventSummaryUpdate = "summary-update"
)

// RelayedEventTypes lists every event type the router accepts for fan-out.
var RelayedEventTypes = map[string]bool{
	EventCaptionUpdate: true,
	EventChatMessage:   true,
	EventTyping:        true,
	EventSummaryUpdate: true,
}

// Sender identifies the originator of an event as bound at handshake time.
type Sender struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// Event is a single relayed event. Events are transient: the relay assigns
// the ID and timestamp at arrival and never persists them itself.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Sender    Sender          `json:"sender"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts"` // Unix ms, assigned at arrival

	// Origin is the instance that first accepted the event. Used by the
	// cross-instance bridge to suppress re-delivery loops; omitted on the
	// client wire.
	Origin string `json:"origin,omitempty"`
}
