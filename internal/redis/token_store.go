package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKey = "twitch:access_token"

// TokenStore persists the app access token in Redis so it survives process
// restarts and is shared between replicas.
type TokenStore struct {
	rdb *redis.Client
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// Get returns the cached token value and its remaining TTL.
// A missing or non-expiring key is reported as a miss with ttl <= 0.
func (s *TokenStore) Get(ctx context.Context) (string, time.Duration, error) {
	value, err := s.rdb.Get(ctx, tokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to get cached token: %w", err)
	}

	ttl, err := s.rdb.TTL(ctx, tokenKey).Result()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get token TTL: %w", err)
	}
	if ttl <= 0 {
		return "", 0, nil
	}

	return value, ttl, nil
}

// Set stores the token value with the given TTL.
func (s *TokenStore) Set(ctx context.Context, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, tokenKey, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}
