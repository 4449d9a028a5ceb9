package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints. Location data
// that is still loading does not fail the probe; a failed load does.
func RegisterHealthRoutes(app *fiber.App, d Deps, locations *location.Source) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := "ok"
		redisStatus := "ok"
		if d.DB == nil {
			dbStatus = "memory"
		}
		if d.Cache == nil {
			redisStatus = "memory"
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = err.Error()
			}
		}
		if d.Cache != nil {
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		}
		locStatus, locErr := locations.Status()
		locDetail := string(locStatus)
		if locErr != nil {
			locDetail = locErr.Error()
		}

		status := http.StatusOK
		if !healthy(dbStatus) || !healthy(redisStatus) || locStatus == location.StatusFailed {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status": fiber.Map{
				"postgres":  dbStatus,
				"redis":     redisStatus,
				"locations": locDetail,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func healthy(s string) bool {
	return s == "ok" || s == "memory"
}
