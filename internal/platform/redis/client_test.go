package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/platform/config"
)

func TestNewRejectsBadConfig(t *testing.T) {
	t.Run("empty url", func(t *testing.T) {
		c, err := New(context.Background(), config.RedisConfig{})
		require.Error(t, err)
		assert.Nil(t, c)
	})

	t.Run("unparseable url", func(t *testing.T) {
		_, err := New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse url")
	})
}
