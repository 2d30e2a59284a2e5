package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agenda-assistant/cmd/mainconfig"
	"github.com/wolfman30/agenda-assistant/internal/api/router"
	"github.com/wolfman30/agenda-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agenda-assistant/internal/config"
	httpmiddleware "github.com/wolfman30/agenda-assistant/internal/http/middleware"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agenda-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// app owns every process-level resource behind the HTTP handler.
type app struct {
	Handler http.Handler

	redis   *redis.Client
	pool    *pgxpool.Pool
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires config into a ready router. Background sweepers run until ctx
// is done.
func newApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	metricsHandler, registry := setupMetrics()

	a.redis = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if a.redis != nil {
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
	}
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if pool != nil {
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
	}

	stores := bootstrap.BuildStores(a.redis, a.pool, bootstrap.StoreOptions{
		StateTTL:      cfg.StateTTL,
		UserConfigTTL: cfg.UserConfigTTL,
		LockTimeout:   cfg.LockTimeout,
	})
	stores.RunSweepers(ctx)

	var awsCfg *aws.Config
	if bootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	llmClient, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder, err := bootstrap.BuildEmbedder(ctx, cfg, awsCfg)
	if err != nil {
		logger.Warn("embeddings unavailable; using keyword retrieval", "error", err)
		embedder = nil
	}
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	assistant, err := bootstrap.BuildAssistant(ctx, cfg, bootstrap.AssistantDeps{
		Stores:   stores,
		LLM:      llmClient,
		Embedder: embedder,
		AWS:      awsCfg,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	// Pending transcript writes finish before Redis and Postgres close.
	a.closers = append(a.closers, assistant.Engine.Wait)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunEvictor(ctx, time.Minute, 10*time.Minute)

	a.Handler = router.New(&router.Config{
		Logger:             logger,
		Dialogue:           assistant.Handler,
		MetricsHandler:     metricsHandler,
		HealthChecks:       a.healthChecks(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		JWTSecret:          cfg.JWTSecret,
		RateLimiter:        limiter,
	})
	return a, nil
}

func (a *app) healthChecks() map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping
	}
	return checks
}

// setupMetrics builds a private registry carrying the process collectors and
// returns the handler serving it.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), registry
}
