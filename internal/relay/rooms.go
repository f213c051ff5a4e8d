package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/metrics"
)

// SessionGate authorizes room joins against the persistence collaborator.
type SessionGate interface {
	SessionIsActive(ctx context.Context, sessionID string) (bool, error)
}

// room holds one session's member set. Mutations are serialized by the
// room's own lock so operations on different rooms do not block each other.
type room struct {
	mu      sync.Mutex
	members map[string]struct{}
	// dead marks a room that was destroyed after its last member left.
	// A joiner that raced the destruction re-resolves the room.
	dead bool
}

// Rooms maps session identifiers to member connection sets. A connection
// belongs to at most one room at a time; joining a second room replaces the
// first membership.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	byConn map[string]string // connID -> current roomID

	gate   SessionGate
	logger zerolog.Logger
}

// NewRooms creates an empty room manager backed by the given session gate.
func NewRooms(gate SessionGate, logger zerolog.Logger) *Rooms {
	return &Rooms{
		rooms:  make(map[string]*room),
		byConn: make(map[string]string),
		gate:   gate,
		logger: logger.With().Str("component", "rooms").Logger(),
	}
}

// Join adds a connection to a room, creating the room if absent. It returns
// ErrInvalidRoom when the session gate rejects the session. Joining a room
// the connection is already in is a no-op; joining a different room replaces
// the previous membership.
func (rm *Rooms) Join(ctx context.Context, sessionID, connID string) error {
	active, err := rm.gate.SessionIsActive(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session gate: %w", err)
	}
	if !active {
		return ErrInvalidRoom
	}

	for {
		rm.mu.Lock()
		prevID, hadPrev := rm.byConn[connID]
		var prevRoom *room
		if hadPrev && prevID != sessionID {
			prevRoom = rm.rooms[prevID]
		}
		r, ok := rm.rooms[sessionID]
		if !ok {
			r = &room{members: make(map[string]struct{})}
			rm.rooms[sessionID] = r
		}
		rm.byConn[connID] = sessionID
		rm.mu.Unlock()

		if prevRoom != nil {
			rm.removeMember(prevID, prevRoom, connID)
		}

		r.mu.Lock()
		if r.dead {
			// Lost a race with empty-room destruction; resolve again.
			r.mu.Unlock()
			continue
		}
		r.members[connID] = struct{}{}
		size := len(r.members)
		r.mu.Unlock()

		metrics.RoomsOpen.Set(float64(rm.Count()))
		rm.logger.Debug().
			Str("session_id", sessionID).
			Str("conn_id", connID).
			Int("members", size).
			Msg("joined room")
		return nil
	}
}

// Leave removes a connection from a room. No-op when the connection is not a
// member. An emptied room is destroyed.
func (rm *Rooms) Leave(sessionID, connID string) {
	rm.mu.Lock()
	if cur, ok := rm.byConn[connID]; ok && cur == sessionID {
		delete(rm.byConn, connID)
	}
	r := rm.rooms[sessionID]
	rm.mu.Unlock()

	if r == nil {
		return
	}
	rm.removeMember(sessionID, r, connID)
}

// Drop removes a connection from whatever room it is in. Called on
// deregistration; the membership removal happens before the registry entry
// goes away so a room never references a missing connection.
func (rm *Rooms) Drop(connID string) {
	rm.mu.Lock()
	sessionID, ok := rm.byConn[connID]
	if ok {
		delete(rm.byConn, connID)
	}
	var r *room
	if ok {
		r = rm.rooms[sessionID]
	}
	rm.mu.Unlock()

	if !ok || r == nil {
		return
	}
	rm.removeMember(sessionID, r, connID)
}

// Destroy evicts every member of a room and removes it. Used when a session
// ends while clients are still joined; the connections themselves stay
// registered. Returns the evicted member IDs.
func (rm *Rooms) Destroy(sessionID string) []string {
	rm.mu.Lock()
	r := rm.rooms[sessionID]
	if r == nil {
		rm.mu.Unlock()
		return nil
	}
	r.mu.Lock()
	evicted := make([]string, 0, len(r.members))
	for id := range r.members {
		evicted = append(evicted, id)
		delete(rm.byConn, id)
	}
	r.members = make(map[string]struct{})
	r.dead = true
	delete(rm.rooms, sessionID)
	r.mu.Unlock()
	rm.mu.Unlock()

	metrics.RoomsOpen.Set(float64(rm.Count()))
	rm.logger.Info().
		Str("session_id", sessionID).
		Int("evicted", len(evicted)).
		Msg("room destroyed")
	return evicted
}

// MembersOf returns a snapshot of the room's member connection IDs. Unknown
// rooms yield an empty result, not an error.
func (rm *Rooms) MembersOf(sessionID string) []string {
	rm.mu.RLock()
	r := rm.rooms[sessionID]
	rm.mu.RUnlock()

	if r == nil {
		return nil
	}

	r.mu.Lock()
	members := make([]string, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	r.mu.Unlock()
	return members
}

// RoomOf returns the room a connection currently belongs to.
func (rm *Rooms) RoomOf(connID string) (string, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	sessionID, ok := rm.byConn[connID]
	return sessionID, ok
}

// Count returns the number of rooms with at least one member.
func (rm *Rooms) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// removeMember deletes connID from r and destroys the room once empty.
func (rm *Rooms) removeMember(sessionID string, r *room, connID string) {
	r.mu.Lock()
	if _, ok := r.members[connID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, connID)
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		// Re-check under both locks: a concurrent join may have revived
		// the room between the unlock above and here.
		rm.mu.Lock()
		if cur := rm.rooms[sessionID]; cur == r {
			r.mu.Lock()
			if len(r.members) == 0 {
				r.dead = true
				delete(rm.rooms, sessionID)
			}
			r.mu.Unlock()
		}
		rm.mu.Unlock()
	}

	metrics.RoomsOpen.Set(float64(rm.Count()))
	rm.logger.Debug().
		Str("session_id", sessionID).
		Str("conn_id", connID).
		Msg("left room")
}
