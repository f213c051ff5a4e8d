package relay

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/metrics"
	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

const bridgeChannelPrefix = "relay:session:"

// RedisBridge mirrors relayed events across instances through Redis pub/sub,
// so members of the same session connected to different processes still see
// each other's events. Events carry the originating instance ID; an instance
// never re-delivers its own publications.
type RedisBridge struct {
	rdb      *redis.Client
	instance string
	logger   zerolog.Logger
}

// NewRedisBridge creates a bridge for this instance.
func NewRedisBridge(rdb *redis.Client, instance string, logger zerolog.Logger) *RedisBridge {
	return &RedisBridge{
		rdb:      rdb,
		instance: instance,
		logger:   logger.With().Str("component", "bridge").Logger(),
	}
}

// PublishEvent mirrors a locally accepted event to the session's channel.
func (b *RedisBridge) PublishEvent(ctx context.Context, ev *models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, bridgeChannelPrefix+ev.SessionID, payload).Err()
}

// Run subscribes to every session channel and injects events from other
// instances into the local router. Blocks until ctx is canceled or the
// subscription closes.
func (b *RedisBridge) Run(ctx context.Context, router *Router) error {
	pubsub := b.rdb.PSubscribe(ctx, bridgeChannelPrefix+"*")
	defer pubsub.Close()

	// Wait for subscription confirmation before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	b.logger.Info().Str("pattern", bridgeChannelPrefix+"*").Msg("bridge subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Info().Msg("bridge channel closed")
				return nil
			}

			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Error().Err(err).Str("channel", msg.Channel).Msg("bad bridge event")
				continue
			}
			if ev.Origin == b.instance {
				continue
			}

			metrics.BridgeEventsIn.Inc()
			if _, err := router.Publish(ctx, &ev, ""); err != nil {
				b.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("bridge event rejected")
			}
		}
	}
}
