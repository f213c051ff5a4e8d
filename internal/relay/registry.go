package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/crypto"
	"github.com/YashSaini213/virtual-conference-translator/internal/metrics"
)

// Conn is the outbound side of a transport connection. Implementations must
// be safe for concurrent use.
type Conn interface {
	// TryDeliver enqueues payload without waiting and reports whether the
	// connection accepted it.
	TryDeliver(payload []byte) bool

	// Deliver enqueues payload, waiting until the connection accepts it or
	// ctx is done.
	Deliver(ctx context.Context, payload []byte) error

	// Close tears down the underlying transport.
	Close()
}

// Identity is the authenticated principal bound to a connection at handshake
// time. The relay trusts these values without re-verifying them.
type Identity struct {
	UserID string
	Name   string
	Role   string
}

// Connection is a live registered transport connection.
type Connection struct {
	ID        string
	Identity  Identity
	CreatedAt time.Time

	conn Conn
}

// Transport returns the outbound side of the connection.
func (c *Connection) Transport() Conn { return c.conn }

// Registry tracks live connections and the identity bound to each. It owns a
// Connection from Register until Deregister.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	logger zerolog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds a connection and assigns it a fresh identifier. It always
// succeeds.
func (r *Registry) Register(conn Conn, identity Identity) *Connection {
	c := &Connection{
		ID:        crypto.NewConnectionID(),
		Identity:  identity,
		CreatedAt: time.Now().UTC(),
		conn:      conn,
	}

	r.mu.Lock()
	r.conns[c.ID] = c
	total := len(r.conns)
	r.mu.Unlock()

	metrics.ConnectionsOpen.Set(float64(total))
	r.logger.Debug().
		Str("conn_id", c.ID).
		Str("user_id", identity.UserID).
		Int("total", total).
		Msg("connection registered")

	return c
}

// Deregister removes a connection. Idempotent: deregistering an unknown or
// already-removed connection returns nil.
func (r *Registry) Deregister(connID string) *Connection {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	metrics.ConnectionsOpen.Set(float64(total))
	r.logger.Debug().
		Str("conn_id", connID).
		Int("total", total).
		Msg("connection deregistered")

	return c
}

// Lookup returns the connection with the given identifier.
func (r *Registry) Lookup(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
