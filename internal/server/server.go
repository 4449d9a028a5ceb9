package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/config"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
	"github.com/nagarika-mitra/nagarika_mitra/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	runtime *routes.Runtime
	logger  *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	runtime, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Metrics: metrics.New()})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, runtime: runtime, logger: logger}, nil
}

// errorHandler renders errors that escaped the handlers, such as unknown
// routes or recovered panics, in the API error envelope.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			kind := apierr.KindBadRequest
			switch fe.Code {
			case fiber.StatusNotFound:
				kind = apierr.KindNotFound
			case fiber.StatusUnauthorized:
				kind = apierr.KindUnauthorized
			case fiber.StatusForbidden:
				kind = apierr.KindForbidden
			}
			if fe.Code >= fiber.StatusInternalServerError {
				kind = apierr.KindInternal
			}
			return apierr.Write(c, fe.Code, kind, fe)
		}
		logger.Error("unhandled request error", slog.String("path", c.Path()), slog.Any("error", err))
		return apierr.Internal(c)
	}
}

// Listen starts background work and then the HTTP server.
func (s *Server) Listen(ctx context.Context) error {
	if err := s.runtime.Start(ctx); err != nil {
		return err
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and background work.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.runtime.Stop()
	return err
}

// App exposes the Fiber application for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}
