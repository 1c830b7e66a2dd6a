package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RiskCache handles Redis ZSET operations for the per-test risk ranking,
// so the monitor dashboard can list the riskiest attempts first.
type RiskCache interface {
	UpdateScore(ctx context.Context, testID, attemptID string, score float64) error
	GetTop(ctx context.Context, testID string, limit int) ([]RiskEntry, error)
	GetRank(ctx context.Context, testID, attemptID string) (int64, error)
	Remove(ctx context.Context, testID, attemptID string) error
}

// RiskEntry is a single ranked attempt
type RiskEntry struct {
	AttemptID string  `json:"attemptId"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
}

type riskCache struct {
	client *redis.Client
}

// NewRiskCache creates a new risk ranking cache
func NewRiskCache(client *redis.Client) RiskCache {
	return &riskCache{
		client: client,
	}
}

func (c *riskCache) key(testID string) string {
	return fmt.Sprintf("test:%s:risk", testID)
}

func (c *riskCache) UpdateScore(ctx context.Context, testID, attemptID string, score float64) error {
	return c.client.ZAdd(ctx, c.key(testID), redis.Z{
		Score:  score,
		Member: attemptID,
	}).Err()
}

func (c *riskCache) GetTop(ctx context.Context, testID string, limit int) ([]RiskEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(testID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]RiskEntry, len(results))
	for i, z := range results {
		entries[i] = RiskEntry{
			AttemptID: z.Member.(string),
			Score:     z.Score,
			Rank:      i + 1,
		}
	}
	return entries, nil
}

func (c *riskCache) GetRank(ctx context.Context, testID, attemptID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(testID), attemptID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}

func (c *riskCache) Remove(ctx context.Context, testID, attemptID string) error {
	return c.client.ZRem(ctx, c.key(testID), attemptID).Err()
}
