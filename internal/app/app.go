package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/s8l-xyz/shortlinker/codegen"
	"github.com/s8l-xyz/shortlinker/internal/cache"
	"github.com/s8l-xyz/shortlinker/internal/config"
	"github.com/s8l-xyz/shortlinker/internal/metadata"
	"github.com/s8l-xyz/shortlinker/internal/migrations"
	"github.com/s8l-xyz/shortlinker/internal/server"
	"github.com/s8l-xyz/shortlinker/internal/shortener"
	"github.com/s8l-xyz/shortlinker/internal/webhook"
	"github.com/s8l-xyz/shortlinker/internal/worker"
)

// App holds the application dependencies and configuration.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DBPool *pgxpool.Pool
	Cache  *cache.Cache
	Pool   *worker.Pool
	Server *server.Server
}

// New initializes and returns a new App instance with all dependencies
// wired up. Every collaborator is constructed once here and injected;
// nothing below this layer reaches for process-wide state.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"service_domain", cfg.Shortener.ServiceDomain,
	)

	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Apply schema migrations through a database/sql handle over the pool.
	sqlDB := stdlib.OpenDBFromPool(dbPool)
	if err := migrations.Up(sqlDB, logger); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Optional resolve cache.
	var resolveCache *cache.Cache
	var serviceCache shortener.ResolveCache
	if cfg.Redis.Addr != "" {
		resolveCache, err = cache.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.CacheTTL, logger)
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		serviceCache = resolveCache
		logger.Info("resolve cache enabled", "addr", cfg.Redis.Addr)
	}

	repo := shortener.NewRepository(dbPool, nil)
	fetcher := metadata.NewFetcher(&metadata.FetcherConfig{
		Timeout:      cfg.Metadata.FetchTimeout,
		MaxBodyBytes: cfg.Metadata.MaxBodyBytes,
		UserAgent:    cfg.Metadata.UserAgent,
	})
	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		ServiceDomain: cfg.Shortener.ServiceDomain,
		CodeGenerator: codegen.NewURLSafe(),
		TitleFetcher:  fetcher,
		Cache:         serviceCache,
		Logger:        logger,
		CodeLength:    cfg.Shortener.CodeLength,
		MaxAttempts:   cfg.Shortener.MaxAttempts,
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	// Webhook transport with its async worker pool.
	var pool *worker.Pool
	var webhookHandler http.HandlerFunc
	if cfg.Webhook.Enabled {
		pool = worker.NewPool(worker.Config{
			Workers:     cfg.Webhook.Workers,
			QueueSize:   cfg.Webhook.QueueSize,
			TaskTimeout: cfg.Webhook.TaskTimeout,
			Logger:      logger,
		})
		pool.Start(ctx)

		wh := webhook.NewHandler(webhook.HandlerConfig{
			ChannelSecret:   cfg.Webhook.ChannelSecret,
			SignatureHeader: cfg.Webhook.SignatureHeader,
			BaseURL:         cfg.Server.BaseURL,
			Service:         svc,
			Replier:         webhook.NewReplyClient(cfg.Webhook.ReplyURL, cfg.Webhook.ChannelToken, cfg.Webhook.ReplyTimeout),
			Pool:            pool,
			Logger:          logger,
		})
		webhookHandler = wh.Handle
		logger.Info("webhook transport enabled", "workers", cfg.Webhook.Workers)
	}

	srv := server.New(cfg, logger, handler, webhookHandler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return &App{
		Config: cfg,
		Logger: logger,
		DBPool: dbPool,
		Cache:  resolveCache,
		Pool:   pool,
		Server: srv,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application: drain the worker pool
// first so in-flight replies finish, then release connections.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.Pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Logger.Warn("worker pool drain incomplete", "error", err.Error())
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("failed to close redis connection", "error", err.Error())
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
