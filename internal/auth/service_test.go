package auth

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarika-mitra/nagarika_mitra/internal/config"
)

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", SessionTTL: time.Hour}
}

func TestEstablishAndCurrent(t *testing.T) {
	svc := NewService(testConfig(), NewMemoryUserRepository(), NewMemorySessionRegistry(nil))
	ctx := context.Background()

	sess, err := svc.Establish(ctx, "+919812345678")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)

	p, err := svc.Current(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.AuthUserID, p.AuthUserID)
	assert.Equal(t, "+919812345678", p.Phone)

	again, err := svc.Establish(ctx, "+919812345678")
	require.NoError(t, err)
	assert.Equal(t, sess.AuthUserID, again.AuthUserID, "same phone maps to the same auth user")
	assert.NotEqual(t, sess.SessionID, again.SessionID)
}

func TestCurrentRejectsEmptyAndForgedTokens(t *testing.T) {
	svc := NewService(testConfig(), NewMemoryUserRepository(), NewMemorySessionRegistry(nil))
	ctx := context.Background()

	_, err := svc.Current(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)

	other := NewService(config.Config{JWTSecret: "other", SessionTTL: time.Hour}, NewMemoryUserRepository(), NewMemorySessionRegistry(nil))
	sess, err := other.Establish(ctx, "+919812345678")
	require.NoError(t, err)

	_, err = svc.Current(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCurrentExpiredToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewService(testConfig(), NewMemoryUserRepository(), NewMemorySessionRegistry(clock)).WithClock(clock)
	ctx := context.Background()

	sess, err := svc.Establish(ctx, "+919812345678")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.Current(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestInvalidateRevokesSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewService(testConfig(), NewMemoryUserRepository(), NewRedisSessionRegistry(client))
	ctx := context.Background()

	sess, err := svc.Establish(ctx, "+917012345678")
	require.NoError(t, err)
	assert.True(t, mr.Exists(sessionKeyPrefix+sess.SessionID))

	require.NoError(t, svc.Invalidate(ctx, sess.Token))
	_, err = svc.Current(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	assert.NoError(t, svc.Invalidate(ctx, "garbage"), "invalid tokens are already invalid")
}

func TestRedisRegistryHonoursTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	reg := NewRedisSessionRegistry(client)
	ctx := context.Background()

	require.NoError(t, reg.Put(ctx, Principal{AuthUserID: "u1", SessionID: "s1", Phone: "+919812345678"}, time.Minute))
	p, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.AuthUserID)

	mr.FastForward(2 * time.Minute)
	_, err = reg.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
