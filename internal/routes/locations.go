package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
)

func RegisterLocationRoutes(r fiber.Router, h *location.Handler) {
	group := r.Group("/locations")
	group.Get("/districts", h.Districts)
	group.Get("/mandals", h.Mandals)
	group.Get("/villages", h.Villages)
}
