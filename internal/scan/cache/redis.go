// Package cache memoizes sensitivity matrices of finished scans in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"luftscan/internal/sensitivity"
	"luftscan/pkg/domain"
	"luftscan/pkg/platform/sentinel"
)

const (
	keyPrefix  = "luftscan:sensitivity:"
	defaultTTL = time.Hour
)

// RedisCache is a Redis-backed scan.SensitivityCache. Rows of a finished
// scan never change, so entries only expire to bound memory.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

type Option func(*RedisCache)

// WithTTL sets the entry lifetime. Zero keeps entries until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) { c.ttl = ttl }
}

func NewRedis(client redis.Cmdable, opts ...Option) *RedisCache {
	c := &RedisCache{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Key is the Redis key holding one matrix.
func Key(id domain.ScanID, method sensitivity.Method) string {
	return keyPrefix + id.String() + ":" + string(method)
}

// Get returns the cached matrix or sentinel.ErrNotFound.
func (c *RedisCache) Get(ctx context.Context, id domain.ScanID, method sensitivity.Method) (*sensitivity.Matrix, error) {
	data, err := c.client.Get(ctx, Key(id, method)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sensitivity: %w: %w", sentinel.ErrUnavailable, err)
	}
	var m sensitivity.Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode sensitivity: %w", err)
	}
	return &m, nil
}

// Set stores m under (id, method).
func (c *RedisCache) Set(ctx context.Context, id domain.ScanID, method sensitivity.Method, m *sensitivity.Matrix) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode sensitivity: %w", err)
	}
	if err := c.client.Set(ctx, Key(id, method), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set sensitivity: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
