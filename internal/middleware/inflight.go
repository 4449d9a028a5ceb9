package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/session"
)

const inFlightPrefix = "inflight:v1:"

var errBusy = errors.New("a previous submission is still being processed")

// Guard reserves a key for the duration of one request.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisGuard reserves keys with SETNX so the guard holds across instances.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, inFlightPrefix+key, "1", ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, inFlightPrefix+key).Err()
}

// MemoryGuard is the single-process Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.held[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.held, key)
	g.mu.Unlock()
	return nil
}

// InFlight rejects a request with 409 busy while an earlier request from the
// same session to the same route is still running. The ttl bounds how long a
// crashed request can hold the key.
func InFlight(guard Guard, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := c.IP()
		if token := BearerToken(c); token != "" {
			subject = session.Scope(token)
		}
		key := subject + ":" + c.Method() + ":" + c.Route().Path

		ok, err := guard.Acquire(c.UserContext(), key, ttl)
		if err != nil {
			logger.Error("in-flight guard unavailable", slog.Any("error", err))
			return apierr.Internal(c)
		}
		if !ok {
			return apierr.Write(c, http.StatusConflict, apierr.KindBusy, errBusy)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := guard.Release(ctx, key); err != nil {
				logger.Warn("in-flight release failed", slog.Any("error", err))
			}
		}()
		return c.Next()
	}
}
