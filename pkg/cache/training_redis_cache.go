package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a namespaced JSON cache on Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a cache whose keys are prefixed with prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// GetMultiJSON fetches many keys in one round trip. Missing keys are absent from the result.
func (c *RedisCache) GetMultiJSON(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}

	values, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		if s, ok := values[i].(string); ok {
			result[k] = []byte(s)
		}
	}
	return result, nil
}

// SetMultiJSON stores many values through a pipeline.
func (c *RedisCache) SetMultiJSON(ctx context.Context, items map[string]any, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for k, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.Set(ctx, c.key(k), data, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
