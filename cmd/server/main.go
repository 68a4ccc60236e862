package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/config"
	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/entity"
	"github.com/benvon/todo-reset/internal/frontend"
	"github.com/benvon/todo-reset/internal/handlers"
	"github.com/benvon/todo-reset/internal/homeassistant"
	"github.com/benvon/todo-reset/internal/integration"
	"github.com/benvon/todo-reset/internal/logger"
	"github.com/benvon/todo-reset/internal/middleware"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/queue"
	"github.com/benvon/todo-reset/internal/reset"
	"github.com/benvon/todo-reset/internal/scheduler"
	"github.com/benvon/todo-reset/internal/services/apitoken"
	"github.com/benvon/todo-reset/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "todo-reset-api"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("home_assistant_url", cfg.HomeAssistantURL),
		zap.String("reset_timezone", cfg.ResetTimezone),
		zap.Bool("queue_enabled", cfg.QueueEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	var authority *apitoken.Authority
	if cfg.APISigningKey == "" {
		zapLogger.Warn("api_auth_disabled_no_signing_key")
	} else if authority, err = apitoken.New(cfg.APISigningKey, cfg.APITokenIssuer, nil); err != nil {
		zapLogger.Fatal("invalid_api_signing_key", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("invalid_reset_timezone", zap.Error(err))
	}

	// OpenTelemetry
	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else if tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint); err != nil {
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

	// Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Redis holds the status entities and rate limit counters. It is required
	// when a worker shares the status; a single process can fall back to memory.
	var redisClient *redis.Client
	var statusStore entity.StatusStore
	redisClient, err = entity.DialRedis(context.Background(), cfg.RedisURL)
	switch {
	case err == nil:
		statusStore = entity.NewRedisStore(redisClient)
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	case cfg.QueueEnabled():
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	default:
		redisClient = nil
		statusStore = entity.NewMemoryStore()
		zapLogger.Warn("redis_unavailable_using_memory_status_store", zap.Error(err))
	}

	// Home Assistant
	haClient := homeassistant.NewRESTClient(cfg.HomeAssistantURL, cfg.HomeAssistantToken, cfg.HomeAssistantTimeout)
	checkCtx, checkCancel := context.WithTimeout(context.Background(), cfg.HomeAssistantTimeout)
	if err := haClient.CheckAPI(checkCtx); err != nil {
		zapLogger.Warn("home_assistant_unreachable", zap.Error(err))
	} else {
		zapLogger.Info("connected_to_home_assistant")
	}
	checkCancel()

	clk := clock.Real()
	registry := integration.NewRegistry()

	// Dispatch resets to the worker over RabbitMQ when configured, otherwise run them in process.
	var jobQueue queue.JobQueue
	var dispatcher integration.Dispatcher
	var inline *integration.InlineDispatcher
	if cfg.QueueEnabled() {
		jobQueue = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		dispatcher = integration.NewQueueDispatcher(jobQueue, clk, zapLogger)
	} else {
		inline = integration.NewInlineDispatcher(registry, zapLogger)
		dispatcher = inline
	}

	entryRepo := database.NewEntryRepository(db)
	resourceRepo := database.NewResourceRepository(db)
	registrar := frontend.NewRegistrar(resourceRepo, clk, zapLogger)
	sched := scheduler.New(clk, loc, zapLogger)

	manager := integration.NewManager(integration.Options{
		Repository: entryRepo,
		Registry:   registry,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		Frontend:   registrar,
		EntityDeps: entity.Deps{
			Store:       statusStore,
			Resetter:    reset.New(haClient, zapLogger),
			Checker:     haClient,
			Publisher:   entity.NewHostPublisher(haClient),
			Clock:       clk,
			SettleDelay: cfg.ResetSettleDelay,
			ResetLease:  cfg.ResetLease,
			Logger:      zapLogger,
		},
		Logger: zapLogger,
	})

	if _, err := manager.LoadAll(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_load_entries", zap.Error(err))
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if cfg.StatusRefreshInterval > 0 {
		go manager.RunRefreshLoop(bgCtx, cfg.StatusRefreshInterval)
	}

	// Handlers
	entryHandler := handlers.NewEntryHandler(manager, zapLogger)
	checks := map[string]handlers.CheckFunc{
		"database":       db.PingContext,
		"home_assistant": haClient.CheckAPI,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if jobQueue != nil {
		checks["rabbitmq"] = jobQueue.HealthCheck
	}
	healthChecker := handlers.NewHealthChecker(checks)

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("invalid_rate_limit", zap.String("rate", cfg.RateLimit), zap.Error(err))
	}

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order: the first registered is outermost.
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", handlers.VersionHandler(version)).Methods("GET")
	handlers.NewOpenAPIHandler().RegisterRoutes(r)
	r.PathPrefix(models.URLBase + "/").Handler(frontend.Handler()).Methods("GET", "HEAD")

	// API v1 routes (protected)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	if authority != nil {
		apiRouter.Use(middleware.Auth(authority, zapLogger))
	}
	apiRouter.Use(rateLimitMW)
	entryHandler.RegisterRoutes(apiRouter.PathPrefix("/entries").Subrouter())
	entryHandler.RegisterServiceRoutes(apiRouter.PathPrefix("/services").Subrouter())

	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()
	manager.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	if inline != nil {
		inline.Wait()
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff to ride out broker startup.
func connectRabbitMQ(url string, zapLogger *zap.Logger) queue.JobQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}
