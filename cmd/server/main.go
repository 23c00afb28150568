// Package main is the entrypoint for the Prospector API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prospecthq/prospector/internal/ai"
	"github.com/prospecthq/prospector/internal/api"
	"github.com/prospecthq/prospector/internal/api/handler"
	mw "github.com/prospecthq/prospector/internal/api/middleware"
	"github.com/prospecthq/prospector/internal/api/response"
	"github.com/prospecthq/prospector/internal/archive"
	"github.com/prospecthq/prospector/internal/cache"
	"github.com/prospecthq/prospector/internal/config"
	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/internal/pipeline"
	"github.com/prospecthq/prospector/internal/search"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := archive.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := archive.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI generator and search client
	generator, err := ai.NewGenerator(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI generator: %w", err)
	}
	slog.Info("AI generator initialized", "provider", generator.Name())

	searchClient := search.NewHTTPClient(
		cfg.Search.BaseURL,
		cfg.Search.APIKey,
		cfg.Search.Timeout,
		cfg.Search.MaxResults,
		cfg.Search.ExtractTop,
	)

	// 6. Create job store and pipeline service
	jobs := jobstore.New(cfg.Jobs.TTL, cfg.Jobs.SweepInterval)
	jobs.StartSweeper()
	defer jobs.Close()

	pgStore := archive.NewPostgresStore(pool)
	runner := pipeline.NewRunner(generator, searchClient, cfg.Pipeline)
	svc := pipeline.NewService(jobs, runner, generator, redisCache, pgStore, cfg.Pipeline.TotalSteps)

	// 7. Build router with dependencies
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache, jobs),
		SubmitHandler: handler.NewSubmitHandler(svc),
		StatusHandler: handler.NewStatusHandler(svc),
		StreamHandler: handler.NewStreamHandler(svc, cfg.Stream),
		CancelHandler: handler.NewCancelHandler(svc),
		ListProfiles:  handler.NewListProfilesHandler(pgStore),
		GetProfile:    handler.NewGetProfileHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: the stream endpoint holds connections open for
		// up to the configured session cap.
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity and reports the number
// of live jobs.
func healthHandler(s archive.Store, c cache.Cache, jobs *jobstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
			"jobs":     jobs.Len(),
		})
	}
}
