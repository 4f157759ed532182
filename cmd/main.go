// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/auth"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/config"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/database"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/handler"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/logging"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/repository"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/service"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/throttle"
)

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

type stores struct {
	events  repository.EventStore
	invites repository.InviteStore
	members repository.MembershipStore
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ────────────────────────────────────────────────────────
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 2. Throttle ───────────────────────────────────────────────────────
	limiter, closeLimiter, err := openThrottle(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithRetry(cfg.Allocator.MaxAttempts, cfg.Allocator.RetryBackoff),
	}
	alloc := service.NewSeatAllocator(st.events, st.invites, st.members, opts...)
	eventSvc := service.NewEventService(st.events, st.invites, st.members, opts...)

	window := cfg.Throttle.Window
	if cfg.Throttle.Backend == "off" {
		window = 0
	}
	eventHandler := handler.NewEventHandler(eventSvc, alloc, limiter, handler.Options{
		ThrottleWindow: window,
		TxTimeout:      cfg.Allocator.TxTimeout,
	}, logger)
	tokens := auth.NewManager(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Issuer)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewRouter(eventHandler, tokens, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, func(), error) {
	if cfg.Store.Backend == "memory" {
		logger.Warn("using in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore()
		return stores{events: mem.Events(), invites: mem.Invites(), members: mem.Memberships()}, func() {}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database.Postgres, logger)
	if err != nil {
		return stores{}, nil, fmt.Errorf("database: %w", err)
	}
	if cfg.Database.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return stores{}, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema migrated")
	}
	return postgresStores(pool), pool.Close, nil
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		events:  repository.NewEventRepository(pool),
		invites: repository.NewInviteRepository(pool),
		members: repository.NewMembershipRepository(pool),
	}
}

func openThrottle(ctx context.Context, cfg *config.Config, logger *zap.Logger) (throttle.Store, func(), error) {
	switch cfg.Throttle.Backend {
	case "off":
		return throttle.Noop{}, func() {}, nil
	case "memory":
		return throttle.NewMemoryStore(), func() {}, nil
	}

	rc := cfg.Database.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr(),
		Password: rc.Password,
		DB:       rc.DB,
		PoolSize: rc.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", rc.Addr()))
	return throttle.NewRedisStore(client), func() { _ = client.Close() }, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
