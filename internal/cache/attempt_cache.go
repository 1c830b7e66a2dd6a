package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"proctorly/internal/model"
)

// AttemptCache holds the live view of in-progress attempts so the monitor
// dashboard reads hot state from Redis instead of hitting Mongo per poll.
type AttemptCache interface {
	SetLive(ctx context.Context, attempt *model.Attempt) error
	GetLive(ctx context.Context, attemptID string) (*model.Attempt, error)
	Delete(ctx context.Context, attemptID string) error

	// Counter fields pushed periodically by the candidate client
	SetCounters(ctx context.Context, attemptID string, tabSwitches, offPageSeconds int) error
	GetCounters(ctx context.Context, attemptID string) (tabSwitches, offPageSeconds int, err error)
}

type attemptCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAttemptCache creates a new attempt cache
func NewAttemptCache(client *redis.Client) AttemptCache {
	return &attemptCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

// Key helpers
func (c *attemptCache) liveKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:live", attemptID)
}

func (c *attemptCache) countersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:counters", attemptID)
}

func (c *attemptCache) SetLive(ctx context.Context, attempt *model.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.liveKey(attempt.ID), data, c.ttl).Err()
}

func (c *attemptCache) GetLive(ctx context.Context, attemptID string) (*model.Attempt, error) {
	data, err := c.client.Get(ctx, c.liveKey(attemptID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var attempt model.Attempt
	if err := json.Unmarshal([]byte(data), &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (c *attemptCache) Delete(ctx context.Context, attemptID string) error {
	return c.client.Del(ctx, c.liveKey(attemptID), c.countersKey(attemptID)).Err()
}

func (c *attemptCache) SetCounters(ctx context.Context, attemptID string, tabSwitches, offPageSeconds int) error {
	key := c.countersKey(attemptID)
	if err := c.client.HSet(ctx, key,
		"tabSwitches", tabSwitches,
		"offPageSeconds", offPageSeconds,
	).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, c.ttl).Err()
}

func (c *attemptCache) GetCounters(ctx context.Context, attemptID string) (int, int, error) {
	vals, err := c.client.HGetAll(ctx, c.countersKey(attemptID)).Result()
	if err != nil {
		return 0, 0, err
	}
	var tabSwitches, offPage int
	fmt.Sscan(vals["tabSwitches"], &tabSwitches)
	fmt.Sscan(vals["offPageSeconds"], &offPage)
	return tabSwitches, offPage, nil
}
