package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/YashSaini213/virtual-conference-translator/internal/auth"
	"github.com/YashSaini213/virtual-conference-translator/internal/crypto"
	"github.com/YashSaini213/virtual-conference-translator/internal/metrics"
	"github.com/YashSaini213/virtual-conference-translator/internal/models"
	"github.com/YashSaini213/virtual-conference-translator/internal/relay"
	"github.com/YashSaini213/virtual-conference-translator/internal/store"
)

const (
	// RoleHost marks the session host in token claims.
	RoleHost = "host"

	storeTimeout   = 5 * time.Second
	replayCaptions = 50
)

// Handler upgrades WebSocket connections and dispatches their frames to the
// relay.
type Handler struct {
	relay    *relay.Relay
	ds       store.DataStore
	redis    *store.RedisStore
	verifier *auth.Verifier
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler. redis may be nil; the caption
// replay cache is then skipped.
func NewHandler(rl *relay.Relay, ds store.DataStore, redis *store.RedisStore, verifier *auth.Verifier, allowedOrigins []string, logger zerolog.Logger) *Handler {
	h := &Handler{
		relay:    rl,
		ds:       ds,
		redis:    redis,
		verifier: verifier,
		logger:   logger.With().Str("component", "ws").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}

// ServeHTTP authenticates the request, upgrades it and binds the connection
// into the registry.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifier.Validate(auth.TokenFromRequest(r))
	if err != nil {
		h.logger.Debug().Err(err).Msg("handshake rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := newClient(ws, h, h.logger.With().Str("user_id", claims.UserID()).Logger())
	c.conn = h.relay.Connect(c, relay.Identity{
		UserID: claims.UserID(),
		Name:   claims.Name,
		Role:   claims.Role,
	})
	c.logger = c.logger.With().Str("conn_id", c.conn.ID).Logger()

	go c.writePump()
	go c.readPump()
}

// handleFrame dispatches one inbound frame. It runs on the connection's read
// goroutine, so frames from one sender are handled in arrival order.
func (h *Handler) handleFrame(c *client, data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		c.sendControl(errorFrame(CodeBadPayload, err.Error()))
		return
	}

	switch env.Type {
	case FrameJoinSession:
		h.handleJoin(c, env)
	case FrameLeaveSession:
		h.handleLeave(c)
	default:
		if IsRelayedType(env.Type) {
			h.handleEvent(c, env)
			return
		}
		c.sendControl(errorFrame(CodeUnsupportedType, "unsupported frame type: "+env.Type))
	}
}

func (h *Handler) handleJoin(c *client, env *Envelope) {
	if env.SessionID == "" {
		c.sendControl(errorFrame(CodeBadPayload, "sessionId required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if ok, err := h.checkJoinKey(ctx, env.SessionID, env.Key); err != nil {
		c.sendControl(errorFrame(CodeInvalidRoom, "session is not joinable"))
		return
	} else if !ok {
		metrics.JoinsRejected.WithLabelValues("bad_key").Inc()
		c.sendControl(errorFrame(CodeForbidden, "invalid session key"))
		return
	}

	if err := h.relay.Join(ctx, env.SessionID, c.conn.ID); err != nil {
		if errors.Is(err, relay.ErrInvalidRoom) {
			metrics.JoinsRejected.WithLabelValues("invalid_room").Inc()
			c.sendControl(errorFrame(CodeInvalidRoom, "session is not joinable"))
			return
		}
		c.logger.Error().Err(err).Str("session_id", env.SessionID).Msg("join failed")
		c.sendControl(errorFrame(CodeInvalidRoom, "session is not joinable"))
		return
	}

	c.sendControl(ackFrame(FrameJoined, env.SessionID))
	h.replayRecentCaptions(ctx, c, env.SessionID)
}

// checkJoinKey verifies the join key for private sessions. Public sessions
// accept any key.
func (h *Handler) checkJoinKey(ctx context.Context, sessionID, key string) (bool, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		// Let the relay's gate reject it as an invalid room.
		return true, nil
	}
	hash, err := h.ds.GetSessionKeyHash(ctx, id)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil, nil
}

// replayRecentCaptions sends the cached caption tail to a fresh joiner so it
// can render context immediately.
func (h *Handler) replayRecentCaptions(ctx context.Context, c *client, sessionID string) {
	if h.redis == nil {
		return
	}
	entries, err := h.redis.RecentCaptions(ctx, sessionID, replayCaptions)
	if err != nil {
		c.logger.Debug().Err(err).Msg("caption replay unavailable")
		return
	}
	// Oldest first so the client appends in order
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		payload, err := json.Marshal(map[string]any{
			"text":      e.Text,
			"lang":      e.Lang,
			"speakerId": e.SpeakerID,
			"speaker":   e.Speaker,
		})
		if err != nil {
			continue
		}
		frame, err := json.Marshal(models.Event{
			ID:        e.ID,
			Type:      models.EventCaptionUpdate,
			SessionID: sessionID,
			Sender:    models.Sender{UserID: e.SpeakerID, Name: e.Speaker},
			Payload:   payload,
			Timestamp: e.Timestamp,
		})
		if err != nil {
			continue
		}
		c.sendControl(frame)
	}
}

func (h *Handler) handleLeave(c *client) {
	sessionID, ok := h.relay.Rooms.RoomOf(c.conn.ID)
	if !ok {
		return
	}
	h.relay.Leave(sessionID, c.conn.ID)
	c.sendControl(ackFrame(FrameLeft, sessionID))
}

func (h *Handler) handleEvent(c *client, env *Envelope) {
	if err := ValidatePayload(env.Payload); err != nil {
		c.sendControl(errorFrame(CodeBadPayload, err.Error()))
		return
	}

	if env.Type == models.EventSummaryUpdate && c.conn.Identity.Role != RoleHost {
		c.sendControl(errorFrame(CodeForbidden, "summary updates are host-only"))
		return
	}

	sessionID, ok := h.relay.Rooms.RoomOf(c.conn.ID)
	if !ok {
		c.sendControl(errorFrame(CodeNotAMember, "join a session first"))
		return
	}

	ev := &models.Event{
		Type:      env.Type,
		SessionID: sessionID,
		Sender:    models.Sender{UserID: c.conn.Identity.UserID, Name: c.conn.Identity.Name},
		Payload:   env.Payload,
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if _, err := h.relay.Router.Publish(ctx, ev, c.conn.ID); err != nil {
		switch {
		case errors.Is(err, relay.ErrNotMember):
			c.sendControl(errorFrame(CodeNotAMember, "not a member of this session"))
		case errors.Is(err, relay.ErrUnknownConnection):
			// Connection raced its own disconnect; nothing to tell it.
		default:
			c.logger.Error().Err(err).Msg("publish failed")
		}
		return
	}

	if env.Type == models.EventCaptionUpdate {
		h.persistCaption(ctx, c, ev)
	}
	if env.Type == models.EventCaptionUpdate || env.Type == models.EventChatMessage {
		h.touchSession(ctx, sessionID)
	}
}

// persistCaption writes a relayed caption to the transcript and the replay
// cache. Persistence is best-effort; a store failure never blocks the relay.
func (h *Handler) persistCaption(ctx context.Context, c *client, ev *models.Event) {
	var body struct {
		Text string `json:"text"`
		Lang string `json:"lang"`
	}
	if err := json.Unmarshal(ev.Payload, &body); err != nil || body.Text == "" {
		return
	}

	entry := &models.TranscriptEntry{
		ID:        ev.ID,
		SessionID: ev.SessionID,
		SpeakerID: ev.Sender.UserID,
		Speaker:   ev.Sender.Name,
		Text:      body.Text,
		Lang:      body.Lang,
		Timestamp: ev.Timestamp,
	}
	if entry.ID == "" {
		entry.ID = crypto.NewEventID()
	}

	start := time.Now()
	if err := h.ds.AddTranscriptEntry(ctx, entry); err != nil {
		c.logger.Error().Err(err).Msg("transcript write failed")
	}
	metrics.StoreLatency.Observe(time.Since(start).Seconds())

	if h.redis != nil {
		if err := h.redis.CacheCaption(ctx, entry); err != nil {
			c.logger.Debug().Err(err).Msg("caption cache write failed")
		}
	}
}

func (h *Handler) touchSession(ctx context.Context, sessionID string) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return
	}
	if err := h.ds.IncrementEventCount(ctx, id); err != nil {
		h.logger.Debug().Err(err).Msg("event count update failed")
	}
}
