package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/otp"
)

// RegisterOTPRoutes wires phone verification. Only ticket creation dispatches
// to a new number and is rate limited; resends are gated by the cooldown.
func RegisterOTPRoutes(r fiber.Router, h *otp.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth/otp")
	if rateLimiter != nil {
		group.Post("/", rateLimiter, h.Start)
	} else {
		group.Post("/", h.Start)
	}
	group.Get("/:ticket", h.Status)
	group.Post("/:ticket/resend", h.Resend)
	group.Post("/:ticket/verify", h.Verify)
	group.Delete("/:ticket", h.Cancel)
}
