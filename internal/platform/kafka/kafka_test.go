package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luftscan/internal/platform/config"
)

func TestNewDisabled(t *testing.T) {
	c, err := New(config.Kafka{Topic: "rows"})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewDoesNotDial(t *testing.T) {
	c, err := New(config.Kafka{Brokers: []string{"127.0.0.1:1"}, Topic: "rows"})
	require.NoError(t, err)
	require.NotNil(t, c)
	c.Close()
}
