package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"proctorly/internal/model"
)

// TestCache caches test configurations. Tests are immutable once attempts
// begin, so a short TTL only bounds staleness of pre-start edits.
type TestCache interface {
	Set(ctx context.Context, test *model.Test) error
	Get(ctx context.Context, id string) (*model.Test, error)
	Delete(ctx context.Context, id string) error
}

type testCache struct {
	client *redis.Client
}

func NewTestCache(client *redis.Client) TestCache {
	return &testCache{
		client: client,
	}
}

func (c *testCache) Set(ctx context.Context, test *model.Test) error {
	data, err := json.Marshal(test)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "test:"+test.ID, data, 10*time.Minute).Err()
}

func (c *testCache) Get(ctx context.Context, id string) (*model.Test, error) {
	data, err := c.client.Get(ctx, "test:"+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var test model.Test
	if err := json.Unmarshal([]byte(data), &test); err != nil {
		return nil, err
	}
	return &test, nil
}

func (c *testCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, "test:"+id).Err()
}
