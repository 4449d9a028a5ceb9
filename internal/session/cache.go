package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed cache keys, scoped per bearer token.
const (
	IdentityKey = "nagarika_user"
	RosterKey   = "nagarika_employee"
)

const cachePrefix = "nagarika:cache:"

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the token-scoped key/value store that outlives a single request.
type Cache interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope string, keys ...string) error
}

// Scope derives the cache scope for a bearer token so raw tokens never appear in keys.
func Scope(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// RedisCache stores entries in Redis with a TTL matching the session lifetime.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(scope, key string) string {
	return cachePrefix + scope + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, scope, key string) ([]byte, error) {
	v, err := c.client.Get(ctx, redisKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return v, err
}

func (c *RedisCache) Set(ctx context.Context, scope, key string, value []byte) error {
	return c.client.Set(ctx, redisKey(scope, key), value, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = redisKey(scope, k)
	}
	return c.client.Del(ctx, full...).Err()
}

// MemoryCache is the development Cache. Entries never expire on their own;
// they are removed on logout or when the backend session is gone.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, scope, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[redisKey(scope, key)]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *MemoryCache) Set(_ context.Context, scope, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[redisKey(scope, key)] = append([]byte(nil), value...)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, scope string, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, redisKey(scope, k))
	}
	return nil
}
