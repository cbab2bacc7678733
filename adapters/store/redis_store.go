package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/siwf/ports"
	"github.com/redis/go-redis/v9"
)

// RedisKeyCache is a Redis implementation of the KeyCache interface.
// Instances sharing a Redis fetch the key set once per TTL between them.
type RedisKeyCache struct {
	client *redis.Client
	key    string
}

// NewRedisKeyCache creates a new Redis key cache. The issuer is part of the
// key so deployments trusting different issuers can share one Redis.
func NewRedisKeyCache(client *redis.Client, issuer string) ports.KeyCache {
	return &RedisKeyCache{
		client: client,
		key:    "siwf:jwks:" + issuer,
	}
}

// Get reads the cached document
func (s *RedisKeyCache) Get(ctx context.Context) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key cache: %w", err)
	}

	return val, true, nil
}

// Set stores the document with expiration
func (s *RedisKeyCache) Set(ctx context.Context, doc []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key, doc, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write key cache: %w", err)
	}

	return nil
}
