package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/relay"
)

const (
	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read next pong message
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Max inbound message size
	maxMessageSize = 64 * 1024

	// Outbound buffer slots per connection
	sendBufferSize = 64
)

// client owns one WebSocket connection. Its sendQueue side implements
// relay.Conn so the router can fan out to it; its pump side reads inbound
// frames and hands them to the session handler.
type client struct {
	ws      *websocket.Conn
	send    chan []byte
	logger  zerolog.Logger
	conn    *relay.Connection
	handler *Handler

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(ws *websocket.Conn, h *Handler, logger zerolog.Logger) *client {
	return &client{
		ws:      ws,
		send:    make(chan []byte, sendBufferSize),
		logger:  logger,
		handler: h,
		closed:  make(chan struct{}),
	}
}

// TryDeliver enqueues a frame without blocking. A full buffer rejects the
// frame.
func (c *client) TryDeliver(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Deliver enqueues a frame, waiting until the buffer drains or ctx expires.
func (c *client) Deliver(ctx context.Context, payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return relay.ErrUnknownConnection
	case <-ctx.Done():
		return relay.ErrDeliveryTimeout
	}
}

// Close tears down the connection. Safe to call more than once.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}

// readPump pumps frames from the WebSocket to the handler. It runs on the
// connection's goroutine and exits when the peer goes away.
func (c *client) readPump() {
	defer func() {
		c.handler.relay.Disconnect(c.conn.ID)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		c.handler.handleFrame(c, message)
	}
}

// writePump drains the send buffer to the WebSocket and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-c.closed:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendControl enqueues a control frame, dropping it if the buffer is full.
// Control frames are advisory; a client too backed up to take one is about
// to be evicted anyway.
func (c *client) sendControl(frame []byte) {
	c.TryDeliver(frame)
}
