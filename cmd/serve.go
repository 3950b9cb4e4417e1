package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/api"
	"github.com/roomsage/onboarder/internal/clock/system"
	"github.com/roomsage/onboarder/internal/config"
	"github.com/roomsage/onboarder/internal/crawler"
	"github.com/roomsage/onboarder/internal/extractor"
	"github.com/roomsage/onboarder/internal/fetch"
	"github.com/roomsage/onboarder/internal/id/uuid"
	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/node"
	"github.com/roomsage/onboarder/internal/onboarding"
	"github.com/roomsage/onboarder/internal/progress"
	"github.com/roomsage/onboarder/internal/progress/sinks"
	"github.com/roomsage/onboarder/internal/scheduler"
	"github.com/roomsage/onboarder/internal/storage/memory"
	"github.com/roomsage/onboarder/internal/storage/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the onboarding HTTP service",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is harmless at exit

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	fetcher, err := fetch.NewCollyFetcher(cfg.Crawler, logger)
	if err != nil {
		return fmt.Errorf("build fetcher: %w", err)
	}
	detector := fetch.NewHeuristicDetector(cfg.Headless.MinHTMLBytes, cfg.Headless.SPAKeywords)

	var renderer onboarding.Renderer
	if cfg.Headless.Enabled {
		chromeRenderer, err := fetch.NewChromedpRenderer(cfg.Headless, cfg.Crawler.UserAgent, logger)
		if err != nil {
			return fmt.Errorf("build renderer: %w", err)
		}
		defer func() {
			if err := chromeRenderer.Close(); err != nil {
				logger.Warn("close renderer", zap.Error(err))
			}
		}()
		renderer = chromeRenderer
	}
	client := fetch.NewClient(fetcher, detector, renderer, logger)

	builder := crawler.NewBuilder(client, logger)
	extract, err := extractor.NewAnthropicExtractor(cfg.Extractor, logger)
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}

	schedule := onboarding.RetrySchedule{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	clk := system.New()
	runner := node.NewRunner(builder, extract, schedule, nil, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("build metrics sink: %w", err)
	}
	recorder := progress.NewRecorder(store, clk, logger, sinks.NewLogSink(logger), promSink)

	sched := scheduler.New(store, runner, recorder, clk, uuid.New(), scheduler.Config{
		MaxJobs:   cfg.Scheduler.MaxConcurrentJobs,
		MaxNodes:  cfg.Scheduler.MaxConcurrentNodes,
		QueueSize: cfg.Scheduler.QueueCapacity,
	}, logger)
	sched.Start(ctx)
	defer sched.Close()

	server := api.NewServer(sched, registry, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// buildStore selects the job store backend from configuration.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (onboarding.JobStore, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{DSN: cfg.Storage.PostgresDSN})
		if err != nil {
			return nil, nil, fmt.Errorf("build postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		logger.Info("using postgres job store")
		return store, store.Close, nil
	default:
		logger.Info("using in-memory job store")
		return memory.NewStore(), func() {}, nil
	}
}
