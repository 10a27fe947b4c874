// Package main is the entry point for the content review service: the HTTP
// control API, the stability monitor, and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/truecontent/content-review-service/internal/agent"
	"github.com/truecontent/content-review-service/internal/config"
	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/monitor"
	"github.com/truecontent/content-review-service/internal/observability"
	"github.com/truecontent/content-review-service/internal/pipeline"
	"github.com/truecontent/content-review-service/internal/repository"
	httpserver "github.com/truecontent/content-review-service/internal/server/http"
)

const metricsNamespace = "content_review"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("content-review-service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(metricsNamespace)
	}

	// Connect both stores: the crawler-owned upstream store (read-only) and
	// the content store this service writes to.
	upstreamDB, err := database.New(ctx, "upstream", &cfg.Upstream, logger)
	if err != nil {
		return fmt.Errorf("connect to upstream database: %w", err)
	}
	defer upstreamDB.Close()

	contentDB, err := database.New(ctx, "content", &cfg.Content, logger)
	if err != nil {
		return fmt.Errorf("connect to content database: %w", err)
	}
	defer contentDB.Close()
	logger.Info().Msg("database connections established")

	// Run migrations on the content store if configured. The upstream store
	// is never migrated from here.
	if cfg.Content.MigrationAutoRun {
		migrator, err := database.NewMigrator(contentDB, cfg.Content.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Pool watchdogs for both stores.
	var wg sync.WaitGroup
	for _, spec := range []struct {
		db  *database.DB
		cfg *config.DatabaseConfig
	}{
		{upstreamDB, &cfg.Upstream},
		{contentDB, &cfg.Content},
	} {
		watchdog := database.NewWatchdog(spec.db, spec.cfg.WatchdogInterval, spec.cfg.AcquiredHighWater, logger, metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			watchdog.Run(ctx)
		}()
	}

	// Repositories.
	upstreamRepo := repository.NewPgUpstreamRepository(upstreamDB)
	prepareRepo := repository.NewPgPrepareRepository(contentDB)
	reviewedRepo := repository.NewPgReviewedRepository(contentDB)

	// Agent gateway clients.
	agentClient := agent.NewClient(agent.ClientConfig{
		BaseURL:   cfg.Agent.BaseURL,
		APIKey:    cfg.Agent.APIKey,
		Timeout:   cfg.Agent.Timeout,
		RateLimit: cfg.Agent.RateLimit,
		Burst:     cfg.Agent.Burst,
	}, logger, metrics)
	similarityClient := agent.NewSimilarityClient(agentClient, cfg.Agent.SimilarityAppID)
	reviewClient := agent.NewReviewClient(agentClient, cfg.Agent.ReviewAppID)

	// Pipeline.
	retryCfg := database.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
	}
	dedupStage := pipeline.NewDedupStage(upstreamRepo, prepareRepo, similarityClient, pipeline.DedupStageConfig{
		PageSize: cfg.Dedup.PageSize,
		Retry:    retryCfg,
	}, logger, metrics)
	reviewStage := pipeline.NewReviewStage(upstreamRepo, prepareRepo, reviewedRepo, reviewClient, pipeline.ReviewStageConfig{
		Retry: retryCfg,
	}, logger, metrics)
	runner := pipeline.NewRunner(dedupStage, reviewStage, upstreamRepo, contentDB, logger, metrics)

	// Stability monitor.
	mon := monitor.New(upstreamRepo, runner, monitor.Config{
		TickInterval: cfg.Monitor.TickInterval,
		QuietPeriod:  cfg.Monitor.QuietPeriod,
		Countdown:    cfg.Monitor.Countdown,
	}, logger, metrics)

	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()

	if cfg.Monitor.AutoStart {
		if err := mon.Start(ctx, 0, false); err != nil {
			return fmt.Errorf("auto-start monitor: %w", err)
		}
		logger.Info().Msg("monitor auto-started")
	}

	// HTTP control API.
	httpCfg := httpserver.Config{
		Address:             cfg.Server.HTTPAddress(),
		ReadTimeout:         cfg.Server.ReadTimeout,
		WriteTimeout:        cfg.Server.WriteTimeout,
		IdleTimeout:         2 * time.Minute,
		HeartbeatStaleAfter: cfg.Monitor.HeartbeatStaleAfter,
	}
	httpSrv := httpserver.NewServer(
		httpCfg,
		runner,
		mon,
		upstreamRepo,
		prepareRepo,
		reviewedRepo,
		[]httpserver.HealthChecker{upstreamDB, contentDB},
		logger,
	)

	// Prometheus metrics on a separate port.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: 30 * time.Second,
		}
	}

	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("content-review-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down content-review-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Monitor and watchdogs stop with the signal context.
	stop()
	wg.Wait()

	logger.Info().Msg("content-review-service shutdown complete")
	return nil
}
