package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/session"
)

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter used by websocket clients.
func BearerToken(c *fiber.Ctx) string {
	authz := c.Get(fiber.HeaderAuthorization)
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return strings.TrimSpace(c.Query("token"))
}

// SessionAuth restores the session store for the request's bearer token and
// leaves it in c.Locals. Restore failures are recorded on the store; the
// gates below decide what they mean for a route.
func SessionAuth(manager *session.Manager, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := manager.Open(BearerToken(c))
		if err := s.Restore(c.UserContext()); err != nil {
			logger.Warn("session restore failed", slog.String("state", s.State().String()), slog.Any("error", err))
		}
		c.Locals(session.LocalsKey, s)
		return c.Next()
	}
}

// RequireSession admits requests holding a backend session, with or without a
// completed profile.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := session.FromCtx(c)
		if s == nil {
			return apierr.Unauthorized(c, "sign in required")
		}
		switch s.State() {
		case session.AwaitingProfile, session.Authenticated:
			return c.Next()
		case session.Error:
			return restoreFailed(c, s.Err())
		default:
			return apierr.Unauthorized(c, "sign in required")
		}
	}
}

// RequireRole admits only authenticated sessions whose identity has one of roles.
func RequireRole(roles ...identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := session.FromCtx(c)
		if s == nil {
			return apierr.Unauthorized(c, "sign in required")
		}
		switch s.State() {
		case session.Authenticated:
		case session.AwaitingProfile:
			return apierr.Forbidden(c, "complete your profile first")
		case session.Error:
			return restoreFailed(c, s.Err())
		default:
			return apierr.Unauthorized(c, "sign in required")
		}
		id, _ := s.Identity()
		if !slices.Contains(roles, id.Role()) {
			return apierr.Forbidden(c, "not permitted for "+string(id.Role()))
		}
		return c.Next()
	}
}

func restoreFailed(c *fiber.Ctx, err error) error {
	if errors.Is(err, session.ErrLoadTimeout) {
		return apierr.Write(c, http.StatusServiceUnavailable, apierr.KindLoadTimeout, err)
	}
	return apierr.Write(c, http.StatusServiceUnavailable, apierr.KindInternal, errors.New("session unavailable"))
}
