// Package relay implements the session-scoped real-time event relay: a
// connection registry, a room manager keyed by session ID, and an event
// router that fans inbound events out to the other members of a room.
//
// The relay never persists events and makes no delivery guarantee beyond
// best-effort with FIFO order per sender-room pair; a recipient that cannot
// accept a frame within the delivery bound is disconnected.
package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Relay.
type Options struct {
	Logger zerolog.Logger

	// InstanceID identifies this process on the cross-instance bridge.
	InstanceID string

	// DeliveryTimeout bounds each per-recipient delivery attempt.
	DeliveryTimeout time.Duration
}

// Relay composes the registry, room manager and router into one injectable
// service object with a shared lifecycle.
type Relay struct {
	Registry *Registry
	Rooms    *Rooms
	Router   *Router

	logger zerolog.Logger
}

// New builds a relay authorizing joins against the given session gate.
func New(gate SessionGate, opts Options) *Relay {
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}

	registry := NewRegistry(opts.Logger)
	rooms := NewRooms(gate, opts.Logger)
	router := NewRouter(registry, rooms, opts.InstanceID, opts.DeliveryTimeout, opts.Logger)

	s := &Relay{
		Registry: registry,
		Rooms:    rooms,
		Router:   router,
		logger:   opts.Logger,
	}
	router.evict = s.Disconnect
	return s
}

// Connect registers a transport connection under the given identity.
func (s *Relay) Connect(conn Conn, identity Identity) *Connection {
	return s.Registry.Register(conn, identity)
}

// Disconnect removes a connection from its room and the registry, then closes
// the transport. Idempotent. The room pruning runs before the registry
// removal so a room never holds a connection the registry no longer knows.
func (s *Relay) Disconnect(connID string) {
	s.Rooms.Drop(connID)
	if c := s.Registry.Deregister(connID); c != nil {
		c.conn.Close()
	}
}

// Join adds a registered connection to a session room.
func (s *Relay) Join(ctx context.Context, sessionID, connID string) error {
	if _, ok := s.Registry.Lookup(connID); !ok {
		return ErrUnknownConnection
	}
	return s.Rooms.Join(ctx, sessionID, connID)
}

// Leave removes a connection from a session room. No-op for non-members.
func (s *Relay) Leave(sessionID, connID string) {
	s.Rooms.Leave(sessionID, connID)
}

// CloseRoom evicts all members of a room, returning their connection IDs.
// The connections stay registered; clients may join another session.
func (s *Relay) CloseRoom(sessionID string) []string {
	return s.Rooms.Destroy(sessionID)
}
