package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/phone"
)

const otpRateLimitPrefix = "rl:otp:"

var errTooManyCodes = errors.New("too many codes requested, try again later")

// OTPRateLimit limits code dispatches per phone number, or per client IP when
// the body carries no usable number. It fails open on cache errors.
func OTPRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 3
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		subject := c.IP()
		if normalized, err := phone.Normalize(strings.TrimSpace(req.Phone)); err == nil {
			subject = normalized
		}

		ctx := c.UserContext()
		key := otpRateLimitPrefix + subject
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("otp rate limit unavailable", slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			if ttl, err := cache.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Seconds())))
			}
			return apierr.Write(c, http.StatusTooManyRequests, apierr.KindCooldownActive, errTooManyCodes)
		}
		return c.Next()
	}
}
