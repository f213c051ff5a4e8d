package ws

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

const (
	// MaxPayloadSize bounds a single event payload.
	MaxPayloadSize = 8 * 1024

	// Inbound control frames.
	FrameJoinSession  = "join-session"
	FrameLeaveSession = "leave-session"

	// Outbound control frames.
	FrameJoined = "joined"
	FrameLeft   = "left"
	FrameError  = "error"
)

// Error codes sent to clients.
const (
	CodeInvalidRoom     = "invalid_room"
	CodeNotAMember      = "not_a_member"
	CodeBadPayload      = "bad_payload"
	CodeUnsupportedType = "unsupported_type"
	CodeForbidden       = "forbidden"
	CodeRateLimited     = "rate_limited"
)

var errPayloadNotObject = errors.New("payload must be a JSON object")

// Envelope is the frame format on the client wire. Control frames use the
// typed fields; relayed events carry their payload opaque.
type Envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Key       string          `json:"key,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ErrorFrame is sent to a client when its frame was rejected.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckFrame acknowledges a join or leave.
type AckFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// ParseEnvelope decodes and validates an inbound frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("frame missing type")
	}
	return &env, nil
}

// ValidatePayload checks that a relayed event's payload is a bounded JSON
// object.
func ValidatePayload(payload json.RawMessage) error {
	if len(payload) == 0 {
		return errors.New("payload required")
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload exceeds %d bytes", MaxPayloadSize)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return errPayloadNotObject
	}
	return nil
}

// IsRelayedType reports whether the frame type is one of the event types the
// router fans out.
func IsRelayedType(frameType string) bool {
	return models.RelayedEventTypes[frameType]
}

func errorFrame(code, message string) []byte {
	data, _ := json.Marshal(ErrorFrame{Type: FrameError, Code: code, Message: message})
	return data
}

func ackFrame(frameType, sessionID string) []byte {
	data, _ := json.Marshal(AckFrame{Type: frameType, SessionID: sessionID})
	return data
}
