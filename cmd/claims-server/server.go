package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/karlkimuhu/ginga-claims-ai/internal/config"
	"github.com/karlkimuhu/ginga-claims-ai/internal/domain/claim"
	"github.com/karlkimuhu/ginga-claims-ai/internal/domain/reference"
	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/auth"
	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/db"
	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/events"
	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/metrics"
	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/middleware"
	"github.com/karlkimuhu/ginga-claims-ai/migrations"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := cfg.ZerologLevel(); err == nil {
		logger = logger.Level(lvl)
	}
	return logger
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: every request is authenticated as admin; do not use in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	e := newEcho(cfg, app, logger)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// app holds the wired service and every resource that must be released on
// shutdown.
type app struct {
	svc     *claim.Service
	store   db.Pinger
	pool    *pgxpool.Pool
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	repo, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	refs, err := a.openRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.svc = claim.NewService(repo, refs, claim.NewAdjudicator(cfg.ClaimGlobalLimit), cfg.ClaimMaxAmount, logger)

	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.closers = append(a.closers, producer.Close)
		a.svc.SetEventPublisher(producer)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing claim events")
	} else {
		a.svc.SetEventPublisher(events.Discard{})
	}

	ok = true
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (claim.Repository, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := migratePostgres(ctx, pool, cfg.DBSchema, logger); err != nil {
			return nil, err
		}
		repo := claim.NewClaimRepoPG(pool)
		a.store = repo
		logger.Info().Str("schema", cfg.DBSchema).Msg("connected to postgres")
		return repo, nil

	default:
		sqlDB, err := db.OpenSQLite(ctx, cfg.ClaimsDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		repo, err := sqliteRepo(ctx, sqlDB)
		if err != nil {
			return nil, err
		}
		a.store = repo
		logger.Info().Str("path", cfg.ClaimsDB).Msg("opened sqlite claim store")
		return repo, nil
	}
}

// migratePostgres applies pending embedded migrations so serve works
// without a separate migrate up.
func migratePostgres(ctx context.Context, pool *pgxpool.Pool, schema string, logger zerolog.Logger) error {
	count, err := db.NewMigrator(pool, migrations.Postgres()).Up(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate schema %s: %w", schema, err)
	}
	if count > 0 {
		logger.Info().Int("applied", count).Str("schema", schema).Msg("applied migrations")
	}
	return nil
}

func sqliteRepo(ctx context.Context, sqlDB *sql.DB) (*claim.SQLiteRepository, error) {
	repo := claim.NewClaimRepoSQLite(sqlDB)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (a *app) openRegistry(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (reference.Registry, error) {
	if cfg.ReferenceSource == config.ReferenceRedis {
		rdb, err := reference.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		logger.Info().Msg("using redis reference registry")
		return reference.NewRedisRegistry(rdb, reference.DefaultRedisPrefix), nil
	}

	data := reference.DefaultData()
	if cfg.ReferenceDataFile != "" {
		var err error
		if data, err = reference.LoadFile(cfg.ReferenceDataFile); err != nil {
			return nil, err
		}
	}
	reg, err := reference.NewStaticRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("build reference registry: %w", err)
	}
	members, procedures, providers := reg.Counts()
	logger.Info().
		Int("members", members).
		Int("procedures", procedures).
		Int("providers", providers).
		Msg("loaded static reference registry")
	return reg, nil
}

func newEcho(cfg *config.Config, a *app, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, claim.IdempotencyKeyHeader},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Keyed by user id, so it runs after auth.
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Infrastructure endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.store, cfg.StorageDriver, a.pool, logger))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Claims API, served at the root and under /api/v1
	h := claim.NewHandler(a.svc)
	h.RegisterRoutes(e.Group(""))
	h.RegisterRoutes(e.Group("/api/v1"))

	return e
}
