package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/harvest/internal"
	"github.com/dukerupert/harvest/internal/cache"
	"github.com/dukerupert/harvest/internal/cookie"
	"github.com/dukerupert/harvest/internal/handler/storefront"
	"github.com/dukerupert/harvest/internal/middleware"
	"github.com/dukerupert/harvest/internal/postgres"
	"github.com/dukerupert/harvest/internal/router"
	"github.com/dukerupert/harvest/internal/routes"
	"github.com/dukerupert/harvest/internal/service"
	"github.com/dukerupert/harvest/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry error tracking
	flushSentry, err := telemetry.InitSentry(cfg.Sentry, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Cart read cache (optional)
	var cartCache cache.CartCache = cache.Nop{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		redisCache := cache.NewRedisCache(client, cfg.CartCacheTTL)
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		cartCache = redisCache
		logger.Info("Cart cache enabled", "ttl", cfg.CartCacheTTL)
	}

	// Metrics registry shared by HTTP and cart collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := telemetry.NewCartMetrics(registry, "harvest")
	metrics := middleware.NewMetrics("harvest", registry)

	// Initialize stores and services
	inventory := postgres.NewInventoryStore(pool, cfg.SessionTTL)
	carts := postgres.NewCartRepository(pool, cfg.SessionTTL)

	cartService := service.NewCartService(inventory, carts, cartCache, cartMetrics, logger)
	catalogService := service.NewCatalogService(postgres.NewCatalogStore(pool))
	userService := service.NewUserService(postgres.NewUserStore(pool), cartCache, cfg.SessionTTL)

	// Initialize handlers
	cookies := cookie.NewConfig(cfg.CookieDomain, cfg.IsProduction(), cfg.SessionTTL)

	storefrontDeps := routes.StorefrontDeps{
		CatalogHandler: storefront.NewCatalogHandler(catalogService),
		CartHandler:    storefront.NewCartHandler(cartService, cookies),
		AuthHandler:    storefront.NewAuthHandler(userService, cookies),
		AuthRateLimit:  middleware.RateLimit(middleware.AuthRateLimiterConfig()),
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		router.Recovery(logger),
		telemetry.SentryMiddleware,
		middleware.RequestID,
		middleware.WithClientIP(),
		metrics.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsProduction())),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.WithUser(userService),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Handle(http.MethodGet, "/metrics", metrics.Handler())

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	routes.RegisterStorefrontRoutes(r, storefrontDeps)

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
