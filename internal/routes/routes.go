package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nagarika-mitra/nagarika_mitra/internal/auth"
	"github.com/nagarika-mitra/nagarika_mitra/internal/config"
	"github.com/nagarika-mitra/nagarika_mitra/internal/feedback"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
	"github.com/nagarika-mitra/nagarika_mitra/internal/messages"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
	"github.com/nagarika-mitra/nagarika_mitra/internal/middleware"
	"github.com/nagarika-mitra/nagarika_mitra/internal/notification"
	"github.com/nagarika-mitra/nagarika_mitra/internal/otp"
	"github.com/nagarika-mitra/nagarika_mitra/internal/otp/sms"
	"github.com/nagarika-mitra/nagarika_mitra/internal/profile"
	"github.com/nagarika-mitra/nagarika_mitra/internal/roster"
	"github.com/nagarika-mitra/nagarika_mitra/internal/session"
)

const inFlightTTL = 30 * time.Second

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development; in-memory implementations seeded with sample
// data take their place.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// SMS overrides the client selected from configuration.
	SMS sms.Client
}

// Runtime holds the background work started alongside the HTTP server.
type Runtime struct {
	tickets *otp.Registry
	bridge  *notification.RedisBridge
	cancel  context.CancelFunc
}

// Start launches the ticket sweep and, when Redis is configured, the change
// feed relay.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.tickets.Start(); err != nil {
		return fmt.Errorf("start ticket sweep: %w", err)
	}
	if r.bridge == nil {
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)
	if err := r.bridge.Start(ctx); err != nil {
		r.cancel()
		r.tickets.Stop()
		return fmt.Errorf("start change feed relay: %w", err)
	}
	return nil
}

// Stop halts background work.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.tickets.Stop()
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Backends
	var (
		authUsers  auth.UserRepository
		citizens   identity.Repository
		rosterRepo roster.Repository
		locRepo    location.Repository
		fbRepo     feedback.Repository
		msgRepo    messages.Repository
	)
	if d.DB != nil {
		authUsers = auth.NewPostgresUserRepository(d.DB)
		citizens = identity.NewPostgresRepository(d.DB)
		rosterRepo = roster.NewPostgresRepository(d.DB)
		locRepo = location.NewPostgresRepository(d.DB)
		fbRepo = feedback.NewPostgresRepository(d.DB)
		msgRepo = messages.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("DATABASE_URL not set, using in-memory repositories with sample data")
		authUsers = auth.NewMemoryUserRepository()
		citizens = identity.NewMemoryRepository()
		rosterRepo = roster.NewMemoryRepository(roster.DevEntries()...)
		locRepo = location.NewMemoryRepository(location.DevTriples()...)
		fbRepo = feedback.NewMemoryRepository()
		msgRepo = messages.NewMemoryRepository()
	}

	var (
		sessions  auth.SessionRegistry
		codes     otp.CodeStore
		cache     session.Cache
		guard     middleware.Guard
		hub       = notification.NewHub(d.Logger)
		publisher notification.Publisher
		bridge    *notification.RedisBridge
	)
	if d.Cache != nil {
		sessions = auth.NewRedisSessionRegistry(d.Cache)
		codes = otp.NewRedisCodeStore(d.Cache)
		cache = session.NewRedisCache(d.Cache, d.Cfg.SessionTTL)
		guard = middleware.NewRedisGuard(d.Cache)
		bridge = notification.NewRedisBridge(d.Cache, hub, d.Logger)
		publisher = bridge
	} else {
		d.Logger.Warn("REDIS_URL not set, using in-process sessions, codes and change feed")
		sessions = auth.NewMemorySessionRegistry(time.Now)
		codes = otp.NewMemoryCodeStore(time.Now)
		cache = session.NewMemoryCache()
		guard = middleware.NewMemoryGuard()
		publisher = hub
	}
	publisher = notification.NewLoggedPublisher(publisher, d.Logger)

	smsClient := d.SMS
	switch {
	case smsClient != nil:
	case d.Cfg.OTPDevMode || (d.Cfg.IsDev() && d.Cfg.SMSAPIKey == ""):
		d.Logger.Warn("OTP codes are logged, not sent")
		smsClient = sms.NewLogClient(d.Logger)
	default:
		smsClient = sms.NewHTTPClient(d.Cfg.SMSAPIKey, d.Cfg.SMSBaseURL, d.Cfg.SMSSender)
	}

	// Services
	authSvc := auth.NewService(d.Cfg, authUsers, sessions)
	provider := otp.NewCodeProvider(codes, smsClient, authSvc, d.Cfg.OTPCodeTTL, d.Cfg.OTPMaxAttempts, d.Logger)
	tickets := otp.NewRegistry(func() *otp.Machine {
		return otp.NewMachine(provider, provider, otp.WithCooldown(d.Cfg.OTPCooldown))
	}, d.Cfg.OTPTicketTTL, d.Logger)
	manager := session.NewManager(authSvc, citizens, cache, d.Cfg.RestoreTimeout, d.Logger, d.Metrics)
	locations := location.NewSource(locRepo, d.Cfg.LocationLoadTimeout, d.Logger)
	profileSvc := profile.NewService(locations, roster.NewService(rosterRepo), d.Metrics, d.Logger)
	feedbackSvc := feedback.NewService(fbRepo, locations, publisher, d.Metrics, d.Logger)
	messageSvc := messages.NewService(msgRepo, locations, publisher, d.Metrics, d.Logger)

	// Ops
	RegisterHealthRoutes(app, d, locations)
	app.Get("/metrics", d.Metrics.Handler())

	sessionAuth := middleware.SessionAuth(manager, d.Logger)
	RegisterRealtimeRoutes(app, hub, sessionAuth, d.Logger)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID := middleware.RequestIDFrom(c)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterOTPRoutes(api, otp.NewHandler(tickets, manager, d.Metrics, d.Logger),
		middleware.OTPRateLimit(d.Cache, d.Cfg.OTPSendLimitPerMinute, d.Logger))
	RegisterLocationRoutes(api, location.NewHandler(locations))

	// Session-bound routes
	idempotent := func(c *fiber.Ctx) error { return c.Next() }
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	inFlight := middleware.InFlight(guard, inFlightTTL, d.Logger)

	authed := api.Group("", sessionAuth)
	RegisterSessionRoutes(authed, session.NewHandler(d.Logger))
	RegisterProfileRoutes(authed, profile.NewHandler(profileSvc, d.Logger), inFlight)
	feedbackHandler := feedback.NewHandler(feedbackSvc, d.Logger)
	messageHandler := messages.NewHandler(messageSvc, d.Logger)
	RegisterFeedbackRoutes(authed, feedbackHandler, idempotent)
	RegisterOfficialRoutes(authed, feedbackHandler, messageHandler, idempotent)
	RegisterMessageRoutes(authed, messageHandler)

	return &Runtime{tickets: tickets, bridge: bridge}, nil
}
