package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"customerIntel/domain"
)

// BenchmarkCache stores LTV benchmarks as JSON under the caller's key.
type BenchmarkCache struct {
	client *redis.Client
}

func NewBenchmarkCache(client *redis.Client) *BenchmarkCache {
	return &BenchmarkCache{
		client: client,
	}
}

func (c *BenchmarkCache) GetBenchmarks(ctx context.Context, key string) (domain.LtvBenchmarks, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LtvBenchmarks{}, false, nil
		}
		return domain.LtvBenchmarks{}, false, fmt.Errorf("failed to get benchmarks from Redis: %w", err)
	}

	var b domain.LtvBenchmarks
	if err := json.Unmarshal(val, &b); err != nil {
		return domain.LtvBenchmarks{}, false, fmt.Errorf("failed to unmarshal benchmarks: %w", err)
	}

	return b, true, nil
}

func (c *BenchmarkCache) SetBenchmarks(ctx context.Context, key string, b domain.LtvBenchmarks, ttl time.Duration) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal benchmarks: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store benchmarks in Redis: %w", err)
	}

	return nil
}

// Invalidate drops cached benchmarks so the next read recomputes them.
func (c *BenchmarkCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate benchmarks: %w", err)
	}

	return nil
}
