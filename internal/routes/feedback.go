package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/feedback"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/messages"
	"github.com/nagarika-mitra/nagarika_mitra/internal/middleware"
)

// RegisterFeedbackRoutes wires citizen feedback.
func RegisterFeedbackRoutes(r fiber.Router, h *feedback.Handler, idempotent fiber.Handler) {
	group := r.Group("/feedback", middleware.RequireRole(identity.RoleCitizen))
	group.Post("/", idempotent, h.Submit)
	group.Get("/mine", h.Mine)
	group.Get("/nearby", h.Nearby)
}

// RegisterOfficialRoutes wires the official dashboard and broadcasts.
func RegisterOfficialRoutes(r fiber.Router, fh *feedback.Handler, mh *messages.Handler, idempotent fiber.Handler) {
	group := r.Group("/official", middleware.RequireRole(identity.RoleOfficial))
	group.Get("/feedback", fh.District)
	group.Get("/summary", fh.Summary)
	group.Post("/messages", idempotent, mh.Broadcast)
}

// RegisterMessageRoutes wires the citizen inbox.
func RegisterMessageRoutes(r fiber.Router, h *messages.Handler) {
	r.Get("/messages", middleware.RequireRole(identity.RoleCitizen), h.Inbox)
}
