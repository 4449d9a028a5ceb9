package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:v1:"

// SessionRegistry tracks live session ids so tokens can be revoked before expiry.
type SessionRegistry interface {
	Put(ctx context.Context, p Principal, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (Principal, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisSessionRegistry keeps sessions in Redis with a TTL.
type RedisSessionRegistry struct {
	client *redis.Client
}

func NewRedisSessionRegistry(client *redis.Client) *RedisSessionRegistry {
	return &RedisSessionRegistry{client: client}
}

func (r *RedisSessionRegistry) Put(ctx context.Context, p Principal, ttl time.Duration) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKeyPrefix+p.SessionID, payload, ttl).Err()
}

func (r *RedisSessionRegistry) Get(ctx context.Context, sessionID string) (Principal, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Principal{}, ErrSessionNotFound
	}
	if err != nil {
		return Principal{}, err
	}
	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (r *RedisSessionRegistry) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

type memoryEntry struct {
	principal Principal
	expiresAt time.Time
}

// MemorySessionRegistry is the in-process registry used in development.
type MemorySessionRegistry struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]memoryEntry
}

func NewMemorySessionRegistry(now func() time.Time) *MemorySessionRegistry {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionRegistry{now: now, sessions: make(map[string]memoryEntry)}
}

func (r *MemorySessionRegistry) Put(_ context.Context, p Principal, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[p.SessionID] = memoryEntry{principal: p, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *MemorySessionRegistry) Get(_ context.Context, sessionID string) (Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return Principal{}, ErrSessionNotFound
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.sessions, sessionID)
		return Principal{}, ErrSessionNotFound
	}
	return e.principal, nil
}

func (r *MemorySessionRegistry) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
