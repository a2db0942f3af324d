package bootstrap

import (
	"context"
	"time"

	"training_server/adapter/out/exchange"
	"training_server/adapter/out/identity"
	"training_server/adapter/out/localization"
	"training_server/adapter/out/messaging"
	"training_server/adapter/out/persistence"
	"training_server/adapter/out/provider"
	"training_server/adapter/out/search"
	"training_server/adapter/out/telemetry"
	"training_server/config"
	"training_server/core/port/out"
	"training_server/core/service/calendar"
	"training_server/core/service/reminder"
	"training_server/infra/database"
	"training_server/pkg/apperr"
	"training_server/pkg/cache"
	"training_server/pkg/logger"
	"training_server/pkg/metrics"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const (
	schemaTimeout = 30 * time.Second
	latencyWindow = 1000
)

type Dependencies struct {
	Config *config.Config
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	// Identity
	Tokens    *identity.TokenProvider
	Directory *identity.GraphDirectory
	Profiles  out.UserProfileResolver

	// Calendar backends
	GraphCalendar *provider.GraphCalendarAdapter
	Exchange      *exchange.Client

	// Support
	SyncLog   out.SyncLogRepository
	Search    *search.Adapter
	Producer  *messaging.RedisProducer
	Localizer *localization.Catalog
	Telemetry *telemetry.LogSink
	Latency   *metrics.LatencyRegistry

	// Services
	SyncService     *calendar.SyncService
	ReminderService *reminder.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Redis backs the reminder stream, rate limits and the profile cache.
	if cfg.RedisURL == "" {
		return nil, nil, apperr.ConfigError("REDIS_URL is required")
	}
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		return fail(apperr.ConfigError("redis connection failed").WithDetail("cause", err.Error()))
	}
	deps.Redis = rdb
	cleanups = append(cleanups, func() { _ = rdb.Close() })
	logger.Info("Redis connected")

	// Postgres is optional; without it the sync log is not kept.
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return fail(apperr.ConfigError("database connection failed").WithDetail("cause", err.Error()))
		}
		cleanups = append(cleanups, func() { _ = db.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		err = database.EnsureSchema(ctx, db, persistence.SyncLogSchema)
		cancel()
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = db
		deps.SyncLog = persistence.NewSyncLogAdapter(db)
		logger.Info("Database connected, sync log enabled")
	} else {
		logger.Warn("DATABASE_URL not set, sync log disabled")
	}

	// Identity
	tokens, err := identity.NewTokenProvider(identity.EntraConfig{
		TenantID:     cfg.TenantID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.GraphScopes,
	})
	if err != nil {
		return fail(err)
	}
	deps.Tokens = tokens

	directory, err := identity.NewGraphDirectory(tokens.AppCredential(), cfg.GraphScopes)
	if err != nil {
		return fail(err)
	}
	deps.Directory = directory
	deps.Profiles = identity.NewCachedProfileResolver(
		directory,
		cache.NewRedisCache(rdb, "training:profile"),
		cfg.ProfileCacheTTL,
	)

	// Backends
	deps.GraphCalendar = provider.NewGraphCalendarAdapter(provider.GraphCalendarConfig{
		BaseURL: cfg.GraphBaseURL,
		BetaURL: cfg.GraphBetaURL,
	})
	deps.Exchange = exchange.NewClient(exchange.Config{
		URL:           cfg.EWSURL,
		Username:      cfg.EWSUsername,
		Password:      cfg.EWSPassword,
		AuthMode:      cfg.EWSAuthMode,
		ServerVersion: cfg.EWSServerVersion,
	})
	if cfg.EWSURL == "" {
		logger.Warn("EWS_URL not set, on-premises organizers will fail")
	}

	// Support
	deps.Localizer = localization.NewCatalog(cfg.DefaultLocale)
	deps.Latency = metrics.NewLatencyRegistry(latencyWindow)
	deps.Telemetry = telemetry.NewLogSink(logger.Default()).WithLatency(deps.Latency)
	deps.Search = search.NewAdapter(search.Config{
		Endpoint:   cfg.SearchEndpoint,
		Index:      cfg.SearchIndex,
		APIKey:     cfg.SearchAPIKey,
		APIVersion: cfg.SearchAPIVersion,
	})
	deps.Producer = messaging.NewRedisProducer(rdb)

	// Services
	syncDeps := calendar.Dependencies{
		Directory:     directory,
		Profiles:      deps.Profiles,
		Tokens:        tokens,
		Cloud:         deps.GraphCalendar,
		OnPrem:        deps.Exchange,
		Localizer:     deps.Localizer,
		SyncLog:       deps.SyncLog,
		Telemetry:     deps.Telemetry,
		DefaultLocale: cfg.DefaultLocale,
	}
	deps.SyncService = calendar.NewSyncService(syncDeps)
	deps.ReminderService = reminder.NewService(deps.Search, deps.Producer, cfg.SearchPageSize)

	return deps, cleanup, nil
}
