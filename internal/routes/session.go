package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/middleware"
	"github.com/nagarika-mitra/nagarika_mitra/internal/profile"
	"github.com/nagarika-mitra/nagarika_mitra/internal/session"
)

// RegisterSessionRoutes exposes the restored session. GET /session answers for
// anonymous callers too so clients can learn they are signed out.
func RegisterSessionRoutes(r fiber.Router, h *session.Handler) {
	r.Get("/session", h.Current)
	r.Post("/session/logout", h.Logout)
}

// RegisterProfileRoutes wires profile completion for sessions awaiting a profile.
func RegisterProfileRoutes(r fiber.Router, h *profile.Handler, inFlight fiber.Handler) {
	group := r.Group("/profile", middleware.RequireSession())
	group.Post("/citizen", inFlight, h.Citizen)
	group.Post("/official", inFlight, h.Official)
}
