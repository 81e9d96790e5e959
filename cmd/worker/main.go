package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tensai-22/penal-sub001/internal/backend"
	"github.com/tensai-22/penal-sub001/internal/cache"
	"github.com/tensai-22/penal-sub001/internal/cases"
	"github.com/tensai-22/penal-sub001/internal/config"
	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/metrics"
	"github.com/tensai-22/penal-sub001/internal/queue"
	"github.com/tensai-22/penal-sub001/internal/telemetry"
	"github.com/tensai-22/penal-sub001/internal/urgency"
	"github.com/tensai-22/penal-sub001/internal/workers"
)

const serviceName = "casedesk-worker"

var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	metricsAddr := flag.String("metrics-addr", ":9090", "Address for the /metrics endpoint; empty disables it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(serviceName, debugMode, false)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("invalid_urgency_timezone", zap.Error(err))
	}
	strategy, err := cfg.SortStrategy()
	if err != nil {
		zapLogger.Fatal("invalid_urgency_sort_strategy", zap.Error(err))
	}
	slots, err := workers.ParseClockTimes(cfg.SweepTimes)
	if err != nil {
		zapLogger.Fatal("invalid_sweep_times", zap.Error(err))
	}

	zapLogger.Info("starting_worker",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.Strings("sweep_times", cfg.SweepTimes),
		zap.String("urgency_timezone", loc.String()),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	m := metrics.New()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	jobQueue, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, 10, 2*time.Second, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	backendClient, err := backend.NewClient(cfg.BackendURL,
		backend.WithAPIKey(cfg.BackendAPIKey),
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithRetryMax(cfg.BackendRetries),
		backend.WithUserAgent(serviceName+"/"+version),
		backend.WithLogger(zapLogger),
		backend.WithObserver(m),
	)
	if err != nil {
		zapLogger.Fatal("failed_to_create_backend_client", zap.Error(err))
	}

	evaluator := urgency.New(urgency.WithLocation(loc), urgency.WithStrategy(strategy))
	caseService := cases.NewService(backendClient, cache.New(redisClient, cfg.CaseCacheTTL, zapLogger), evaluator, m, zapLogger)
	sweeper := workers.NewSweeper(caseService, database.NewSweepRunRepository(db), jobQueue, evaluator, m, zapLogger)
	scheduler := workers.NewScheduler(jobQueue, workers.NewRedisSlotClaimer(redisClient), slots, loc, zapLogger)
	dlqGC := queue.NewGarbageCollector(jobQueue, time.Hour, cfg.DLQRetention, zapLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workers.Consume(gctx, jobQueue, cfg.RabbitMQPrefetch, sweeper, zapLogger)
	})
	g.Go(func() error { return scheduler.Start(gctx) })
	g.Go(func() error { return dlqGC.Start(gctx) })

	var metricsSrv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("metrics_server_failed", zap.Error(err))
			}
		}()
	}

	zapLogger.Info("worker_started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zapLogger.Info("shutdown_signal_received")
	case <-gctx.Done():
	}

	cancel()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
	}

	zapLogger.Info("worker_stopped")
}
