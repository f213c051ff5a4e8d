package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

const (
	captionTTL      = 24 * time.Hour
	captionCacheMax = 200
)

// RedisStore handles Redis operations: the recent-caption replay cache, rate
// limit counters and the pub/sub client used by the cross-instance bridge.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for pub/sub consumers.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// captionsKey returns the key for a session's recent-caption sorted set.
func captionsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:captions", sessionID)
}

// rateLimitKey returns the key for a client's rate limit counter.
func rateLimitKey(clientID string) string {
	return fmt.Sprintf("ratelimit:%s", clientID)
}

// CacheCaption stores a caption in the session's replay cache so late
// joiners can catch up without hitting the database.
func (s *RedisStore) CacheCaption(ctx context.Context, entry *models.TranscriptEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := captionsKey(entry.SessionID)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(entry.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	// Trim to the newest entries and refresh the TTL
	s.client.ZRemRangeByRank(ctx, key, 0, -(captionCacheMax + 1))
	s.client.Expire(ctx, key, captionTTL)

	return nil
}

// RecentCaptions retrieves the most recent cached captions, newest first.
func (s *RedisStore) RecentCaptions(ctx context.Context, sessionID string, limit int) ([]models.TranscriptEntry, error) {
	if limit <= 0 || limit > captionCacheMax {
		limit = captionCacheMax
	}

	key := captionsKey(sessionID)
	results, err := s.client.ZRevRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.TranscriptEntry, 0, len(results))
	for _, data := range results {
		var entry models.TranscriptEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// DropCaptions removes a session's replay cache. Called when a session ends.
func (s *RedisStore) DropCaptions(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, captionsKey(sessionID)).Err()
}

// IncrementRateLimit bumps a fixed-window counter and returns the new count.
// The window TTL is set on first increment.
func (s *RedisStore) IncrementRateLimit(ctx context.Context, clientID string, window time.Duration) (int64, error) {
	key := rateLimitKey(clientID)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
