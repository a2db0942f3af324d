package bootstrap

import (
	"strings"
	"time"

	"github.com/goccy/go-json"

	"training_server/adapter/in/http"
	"training_server/config"
	"training_server/infra/middleware"
	"training_server/pkg/logger"
	"training_server/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := newApp(cfg)
	registerRoutes(app, cfg, deps)

	return app, cleanup, nil
}

func newApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
		ServerHeader:          "",
	})

	// Order matters.
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		allowOrigins = "*"
		allowCredentials = false
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Accept-Language,Authorization,X-Request-ID," + middleware.HeaderUserAssertion,
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	return app
}

func registerRoutes(app *fiber.App, cfg *config.Config, deps *Dependencies) {
	http.NewHealthHandler(deps.SQLDB, deps.Redis).WithLatency(deps.Latency).Register(app)

	limiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.RateLimitPerMinute, time.Minute)

	api := app.Group("/api/v1",
		middleware.JWTAuth(cfg.JWTSecret, cfg.JWTAudience),
		middleware.RateLimit(limiter),
		middleware.RequireJSON(),
	)
	http.NewEventHandler(deps.SyncService).Register(api)
	http.NewReminderHandler(deps.ReminderService).Register(api)

	logger.Info("Routes registered: /health, /ready, /metrics, /api/v1/events, /api/v1/reminders")
}
