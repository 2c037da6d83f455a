package cache

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"luftscan/internal/sensitivity"
	"luftscan/pkg/domain"
)

func TestKey(t *testing.T) {
	id := domain.ScanID(uuid.MustParse("6f1c1d62-3a7e-4b8e-9a43-2f1f0e6c9b10"))
	assert.Equal(t, "luftscan:sensitivity:6f1c1d62-3a7e-4b8e-9a43-2f1f0e6c9b10:spearman", Key(id, sensitivity.Spearman))
}

func TestNewRedisDefaultsTTL(t *testing.T) {
	c := NewRedis(nil)
	assert.Equal(t, defaultTTL, c.ttl)
	assert.Zero(t, NewRedis(nil, WithTTL(0)).ttl)
}
