package relay

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/crypto"
	"github.com/YashSaini213/virtual-conference-translator/internal/metrics"
	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// EventBridge publishes locally accepted events to other instances.
type EventBridge interface {
	PublishEvent(ctx context.Context, ev *models.Event) error
}

// Router validates inbound events and fans them out to the other members of
// the event's room.
type Router struct {
	registry *Registry
	rooms    *Rooms
	logger   zerolog.Logger

	instance string
	timeout  time.Duration
	bridge   EventBridge

	// backlog holds frames parked behind a stalled delivery, per recipient.
	// While a recipient has a backlog every new frame for it is appended
	// there, so per-recipient order survives a momentary stall.
	mu      sync.Mutex
	backlog map[string][][]byte

	// evict disconnects a recipient that could not accept a delivery
	// within the bound.
	evict func(connID string)
}

// NewRouter wires a router over the given registry and rooms.
func NewRouter(registry *Registry, rooms *Rooms, instance string, timeout time.Duration, logger zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		rooms:    rooms,
		instance: instance,
		timeout:  timeout,
		backlog:  make(map[string][][]byte),
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// SetBridge attaches a cross-instance event bridge. Local events are mirrored
// to it best-effort after local fan-out.
func (rt *Router) SetBridge(b EventBridge) { rt.bridge = b }

// Publish stamps the event and delivers it to every member of its room except
// the sender. Delivery is best-effort: a recipient failing or timing out is
// logged and disconnected without aborting delivery to the others, and
// nothing is retried. The returned count covers recipients that accepted the
// event immediately; stalled recipients complete (or are evicted) off the
// fan-out path so they never delay the rest of the room, and frames published
// while a recipient is stalled queue behind the stalled frame in order.
//
// senderConnID must be the publishing connection for client-originated
// events, and empty for events originated by the server or received over the
// bridge. Client events require current membership of the target room.
func (rt *Router) Publish(ctx context.Context, ev *models.Event, senderConnID string) (int, error) {
	if ev.ID == "" {
		ev.ID = crypto.NewEventID()
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	local := ev.Origin == "" || ev.Origin == rt.instance
	if ev.Origin == "" {
		ev.Origin = rt.instance
	}

	if senderConnID != "" {
		if _, ok := rt.registry.Lookup(senderConnID); !ok {
			return 0, ErrUnknownConnection
		}
		if roomID, ok := rt.rooms.RoomOf(senderConnID); !ok || roomID != ev.SessionID {
			return 0, ErrNotMember
		}
	}

	// The clients never see the routing origin.
	wire := *ev
	wire.Origin = ""
	payload, err := json.Marshal(&wire)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	delivered := 0
	for _, id := range rt.rooms.MembersOf(ev.SessionID) {
		if id == senderConnID {
			continue
		}
		c, ok := rt.registry.Lookup(id)
		if !ok {
			continue
		}
		if rt.enqueue(c, payload) {
			delivered++
		}
	}
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	metrics.EventsRelayed.WithLabelValues(ev.Type).Inc()

	if local && rt.bridge != nil {
		if err := rt.bridge.PublishEvent(ctx, ev); err != nil {
			rt.logger.Warn().Err(err).
				Str("event_id", ev.ID).
				Str("session_id", ev.SessionID).
				Msg("bridge publish failed")
		} else {
			metrics.BridgeEventsOut.Inc()
		}
	}

	return delivered, nil
}

// enqueue hands one frame to a recipient without blocking the fan-out.
// Reports whether the recipient accepted it immediately. A recipient with a
// backlog gets the frame appended there; its drainer delivers in order.
func (rt *Router) enqueue(c *Connection, payload []byte) bool {
	rt.mu.Lock()
	if q, ok := rt.backlog[c.ID]; ok {
		rt.backlog[c.ID] = append(q, payload)
		rt.mu.Unlock()
		return false
	}
	rt.mu.Unlock()

	if c.conn.TryDeliver(payload) {
		return true
	}

	// Slow consumer: park the frame and drain off the fan-out path so the
	// rest of the room is not delayed. Another publisher may have started a
	// backlog in the meantime; append behind it.
	rt.mu.Lock()
	if q, ok := rt.backlog[c.ID]; ok {
		rt.backlog[c.ID] = append(q, payload)
		rt.mu.Unlock()
		return false
	}
	rt.backlog[c.ID] = [][]byte{payload}
	rt.mu.Unlock()
	go rt.drainBacklog(c)
	return false
}

// drainBacklog delivers a recipient's parked frames in order, each attempt
// bounded by the delivery timeout. One timeout evicts the recipient and drops
// whatever is still parked.
func (rt *Router) drainBacklog(c *Connection) {
	for {
		rt.mu.Lock()
		q := rt.backlog[c.ID]
		if len(q) == 0 {
			delete(rt.backlog, c.ID)
			rt.mu.Unlock()
			return
		}
		payload := q[0]
		rt.backlog[c.ID] = q[1:]
		rt.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), rt.timeout)
		err := c.conn.Deliver(ctx, payload)
		cancel()
		if err == nil {
			continue
		}

		rt.mu.Lock()
		dropped := len(rt.backlog[c.ID]) + 1
		delete(rt.backlog, c.ID)
		rt.mu.Unlock()

		metrics.EventsDropped.WithLabelValues("timeout").Add(float64(dropped))
		rt.logger.Warn().
			Str("conn_id", c.ID).
			Str("user_id", c.Identity.UserID).
			Dur("timeout", rt.timeout).
			Msg("recipient stalled, disconnecting")
		if rt.evict != nil {
			rt.evict(c.ID)
		}
		return
	}
}
