//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"luftscan/internal/platform/config"
	"luftscan/internal/platform/redis"
)

// RedisContainer is a throwaway Redis reached through the same client
// constructor the server uses.
type RedisContainer struct {
	Container testcontainers.Container
	Client    *redis.Client
}

// NewRedisContainer starts redis:7-alpine and connects to it.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	url, err := c.ConnectionString(ctx)
	if err == nil {
		var client *redis.Client
		client, err = redis.New(ctx, config.Redis{URL: url, PoolSize: 4})
		if err == nil {
			// Ryuk reaps the container when the test binary exits.
			return &RedisContainer{Container: c, Client: client}
		}
	}
	_ = c.Terminate(ctx)
	t.Fatalf("connect redis: %v", err)
	return nil
}

// FlushAll empties every database so suites start from a clean cache.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
