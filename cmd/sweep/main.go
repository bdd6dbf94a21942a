// Command sweep releases the stock held by expired sessions and deletes them.
// It runs once and exits; schedule it with cron.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/harvest/internal"
	"github.com/dukerupert/harvest/internal/cache"
	"github.com/dukerupert/harvest/internal/postgres"
	"github.com/dukerupert/harvest/internal/service"
	"github.com/dukerupert/harvest/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel).With("command", "sweep")

	flushSentry, err := telemetry.InitSentry(cfg.Sentry, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Swept carts must also leave the cache, or readers would see released items
	var cartCache cache.CartCache = cache.Nop{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		cartCache = cache.NewRedisCache(client, cfg.CartCacheTTL)
	}

	carts := service.NewCartService(
		postgres.NewInventoryStore(pool, cfg.SessionTTL),
		postgres.NewCartRepository(pool, cfg.SessionTTL),
		cartCache,
		nil,
		logger,
	)
	sweeper := service.NewSessionSweeper(postgres.NewSessionStore(pool), carts, nil, logger)

	result, err := sweeper.Sweep(ctx, time.Now())
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"deleted": result.Deleted})
		return fmt.Errorf("sweep failed after %d sessions: %w", result.Deleted, err)
	}
	if result.Failed > 0 {
		logger.Warn("some expired carts could not be released", "failed", result.Failed)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
