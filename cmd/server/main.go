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

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/api"
	"github.com/tensai-22/penal-sub001/internal/backend"
	"github.com/tensai-22/penal-sub001/internal/cache"
	"github.com/tensai-22/penal-sub001/internal/cases"
	"github.com/tensai-22/penal-sub001/internal/config"
	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/handlers"
	"github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/metrics"
	"github.com/tensai-22/penal-sub001/internal/middleware"
	"github.com/tensai-22/penal-sub001/internal/queue"
	"github.com/tensai-22/penal-sub001/internal/telemetry"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

const serviceName = "casedesk-api"

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=..."
var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

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

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("backend_url", logger.RedactURL(cfg.BackendURL)),
		zap.String("urgency_timezone", loc.String()),
		zap.String("sort_strategy", string(strategy)),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingEnabled := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracingEnabled = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
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
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

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

	evaluator := urgency.New(
		urgency.WithLocation(loc),
		urgency.WithStrategy(strategy),
	)
	caseService := cases.NewService(backendClient, cache.New(redisClient, cfg.CaseCacheTTL, zapLogger), evaluator, m, zapLogger)

	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)
	sweepRunRepo := database.NewSweepRunRepository(db)

	healthChecker := handlers.NewHealthChecker(zapLogger,
		handlers.HealthCheck{Name: "database", Check: db.PingContext},
		handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		handlers.HealthCheck{Name: "queue", Check: jobQueue.HealthCheck},
		handlers.HealthCheck{Name: "backend", Check: backendClient.Ping},
	)
	openAPIHandler, err := handlers.NewOpenAPIHandler(api.OpenAPI)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_spec", zap.Error(err))
	}
	caseHandler := handlers.NewCaseHandler(caseService, zapLogger)
	urgencyHandler := handlers.NewUrgencyHandler(evaluator, m)
	sweepHandler := handlers.NewSweepHandler(jobQueue, sweepRunRepo, zapLogger)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order: the first one registered is outermost.
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, time.Minute)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(zapLogger, m))

	rateLimitReloader, err := middleware.NewRateLimitReloader(redisClient, ratelimitConfigRepo, cfg.RateLimit, zapLogger, time.Minute)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_reloader", zap.Error(err))
	}

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", handlers.VersionHandler(handlers.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware())
	caseHandler.RegisterRoutes(apiRouter.PathPrefix("/cases").Subrouter())
	urgencyHandler.RegisterRoutes(apiRouter.PathPrefix("/urgency").Subrouter())
	sweepHandler.RegisterRoutes(apiRouter.PathPrefix("/sweeps").Subrouter())

	// Preflight requests; the CORS middleware has already written the headers.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   45 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
