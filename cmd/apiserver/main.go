// API server entry point for StoryLink-Intelligence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/StoryLink-Intelligence/internal/config"
	"github.com/turtacn/StoryLink-Intelligence/internal/engine"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/registry"
	httpserver "github.com/turtacn/StoryLink-Intelligence/internal/interfaces/http"
	"github.com/turtacn/StoryLink-Intelligence/internal/interfaces/http/handlers"
)

// Version is injected at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (env-only when empty)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintln(os.Stderr, "apiserver:", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.SetDefault(logger)
	logger.Info("starting StoryLink-Intelligence API server",
		logging.String("version", Version),
		logging.Int("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	var collector prometheus.MetricsCollector
	metrics := prometheus.NewNopDetectionMetrics()
	if cfg.Metrics.Enabled {
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		metrics = prometheus.NewDetectionMetrics(collector)
	}

	// Entity registry: Postgres, with an optional Redis-backed shared cache.
	pool, err := registry.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	checkers := []handlers.HealthChecker{&postgresHealth{pool: pool}}

	var cacheOpts []registry.SnapshotCacheOption
	if cfg.Redis.Enabled {
		rdb, err := registry.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		cacheOpts = append(cacheOpts, registry.WithSharedStore(registry.NewRedisSnapshotStore(rdb, cfg.Redis, logger)))
		checkers = append(checkers, &redisHealth{client: rdb})
	}
	snapshots := registry.NewSnapshotCache(
		registry.NewPostgresRegistry(pool, logger),
		cfg.Detection.SnapshotTTL,
		logger, metrics, cacheOpts...,
	)

	// Analysis events
	events := kafka.NewNopPublisher()
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("init kafka producer: %w", err)
		}
		defer producer.Close()
		events = kafka.NewEventPublisher(producer, logger, metrics)
	}

	// Detection engine
	engOpts := []engine.Option{
		engine.WithLogger(logger.Named("engine")),
		engine.WithMetrics(metrics),
	}
	if cfg.AI.Enabled {
		adapter, err := engine.NewHTTPAdapter(cfg.AI, logger)
		if err != nil {
			return fmt.Errorf("init AI adapter: %w", err)
		}
		engOpts = append(engOpts, engine.WithAIAdapter(adapter))
	}
	eng, err := engine.New(engine.FromAppConfig(cfg.Detection), snapshots, engOpts...)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	// Debounced real-time scans publish their results as events; there is
	// no HTTP response to carry them.
	deliver := func(result *engine.DetectionResult) {
		events.PublishAnalysisCompleted(context.Background(), kafka.AnalysisCompletedPayload{
			ProjectID:   result.ProjectID,
			DocumentID:  result.DocumentID,
			Generation:  result.Generation,
			Trigger:     engine.TriggerRealTime,
			Mentions:    len(result.EntityMentions),
			Suggestions: len(result.NewEntitySuggestions),
			Warnings:    len(result.ConsistencyWarnings),
			Degraded:    result.Degraded,
			DurationMS:  result.ProcessingTimeMS,
			CompletedAt: result.AnalyzedAt,
		})
	}
	var scheduler *engine.Scheduler
	if cfg.Detection.EnableRealTimeDetection {
		scheduler, err = engine.NewScheduler(cfg.Detection.DebounceInterval, eng.Analyze, deliver, logger, metrics)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		AnalyzeHandler:  handlers.NewAnalyzeHandler(eng, scheduler, events, logger),
		RegistryHandler: handlers.NewRegistryHandler(snapshots, events, logger),
		HealthHandler:   handlers.NewHealthHandler(Version, checkers...),
		Logger:          logger,
		Metrics:         metrics,
		Collector:       collector,
		Mode:            cfg.Server.Mode,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown", logging.Err(err))
	}
	logger.Info("stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
