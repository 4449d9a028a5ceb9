package infra

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarika-mitra/nagarika_mitra/internal/config"
)

func TestNewRedisClientAppliesPoolSettings(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{RedisURL: "redis://" + mr.Addr() + "/0", RedisPoolSize: 4, ConnectTimeout: time.Second}

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 4, client.Options().PoolSize)
	assert.Equal(t, time.Second, client.Options().DialTimeout)
}

func TestBackendsRequireURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.Config{ConnectTimeout: time.Second})
	assert.ErrorContains(t, err, "REDIS_URL")

	_, err = NewPostgresPool(context.Background(), config.Config{ConnectTimeout: time.Second})
	assert.ErrorContains(t, err, "DATABASE_URL")
}
