package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luftscan/internal/platform/config"
)

func TestNewDisabled(t *testing.T) {
	c, err := New(context.Background(), config.Redis{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewBadURL(t *testing.T) {
	_, err := New(context.Background(), config.Redis{URL: "://nope"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestOptions(t *testing.T) {
	opts, err := Options(config.Redis{
		URL:          "redis://:secret@cache:6380/2",
		PoolSize:     20,
		MinIdleConns: 4,
		ReadTimeout:  2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)

	defaults, err := Options(config.Redis{URL: "redis://cache:6379"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", defaults.Addr)
	assert.Zero(t, defaults.MinIdleConns)
}
