package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// fakeConn records delivered frames. A stalled conn rejects fast delivery and
// blocks the bounded attempt until its deadline.
type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	stalled bool
	closed  bool
}

func (c *fakeConn) TryDeliver(p []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stalled {
		return false
	}
	c.frames = append(c.frames, p)
	return true
}

func (c *fakeConn) Deliver(ctx context.Context, p []byte) error {
	c.mu.Lock()
	stalled := c.stalled
	c.mu.Unlock()
	if stalled {
		<-ctx.Done()
		return ErrDeliveryTimeout
	}
	c.mu.Lock()
	c.frames = append(c.frames, p)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeGate authorizes joins against a fixed set of active sessions.
type fakeGate struct {
	mu     sync.Mutex
	active map[string]bool
	err    error
}

func newFakeGate(sessions ...string) *fakeGate {
	g := &fakeGate{active: make(map[string]bool)}
	for _, s := range sessions {
		g.active[s] = true
	}
	return g
}

func (g *fakeGate) SessionIsActive(_ context.Context, sessionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	return g.active[sessionID], nil
}

func (g *fakeGate) end(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active[sessionID] = false
}

func newTestRelay(gate SessionGate, timeout time.Duration) *Relay {
	return New(gate, Options{
		Logger:          zerolog.Nop(),
		InstanceID:      "test-instance",
		DeliveryTimeout: timeout,
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
