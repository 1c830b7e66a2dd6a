package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerCache is the Redis-backed pause marker store. It satisfies
// timebudget.MarkerStore, so a paused attempt survives server restarts
// and a client reload sees the same accumulated pause credit.
type MarkerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMarkerCache creates a new pause marker cache
func NewMarkerCache(client *redis.Client) *MarkerCache {
	return &MarkerCache{
		client: client,
		ttl:    7 * 24 * time.Hour,
	}
}

// Key helpers
func (c *MarkerCache) startKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:pauseStart", attemptID)
}

func (c *MarkerCache) pausedKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:pausedSeconds", attemptID)
}

func (c *MarkerCache) PauseStart(ctx context.Context, attemptID string) (time.Time, bool, error) {
	data, err := c.client.Get(ctx, c.startKey(attemptID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, data)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (c *MarkerCache) SetPauseStart(ctx context.Context, attemptID string, at time.Time) error {
	return c.client.Set(ctx, c.startKey(attemptID), at.Format(time.RFC3339Nano), c.ttl).Err()
}

func (c *MarkerCache) ClearPauseStart(ctx context.Context, attemptID string) error {
	return c.client.Del(ctx, c.startKey(attemptID)).Err()
}

func (c *MarkerCache) PausedSeconds(ctx context.Context, attemptID string) (int, error) {
	data, err := c.client.Get(ctx, c.pausedKey(attemptID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(data)
}

func (c *MarkerCache) SetPausedSeconds(ctx context.Context, attemptID string, seconds int) error {
	return c.client.Set(ctx, c.pausedKey(attemptID), strconv.Itoa(seconds), c.ttl).Err()
}

func (c *MarkerCache) ClearPausedSeconds(ctx context.Context, attemptID string) error {
	return c.client.Del(ctx, c.pausedKey(attemptID)).Err()
}
