package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache-aside helper. Callers pass a pre-built key and TTL,
// keeping cache keys visible at each call site.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetJSON fetches key and unmarshals it into dest. Reports whether the key
// was present. A corrupt cache entry is treated as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		slog.Debug("Cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache key %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		slog.Warn("Discarding corrupt cache entry", "key", key, "error", err)
		return false, nil
	}

	slog.Debug("Cache hit", "key", key)
	return true, nil
}

// SetJSON marshals value and stores it at key with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for key %q: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %q: %w", key, err)
	}
	return nil
}
