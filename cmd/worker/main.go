package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/config"
	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/entity"
	"github.com/benvon/todo-reset/internal/homeassistant"
	"github.com/benvon/todo-reset/internal/logger"
	"github.com/benvon/todo-reset/internal/queue"
	"github.com/benvon/todo-reset/internal/reset"
	"github.com/benvon/todo-reset/internal/telemetry"
	"github.com/benvon/todo-reset/internal/workers"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("home_assistant_url", cfg.HomeAssistantURL),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	if !cfg.QueueEnabled() {
		zapLogger.Fatal("rabbitmq_url_not_configured")
	}

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "todo-reset-worker", cfg.OTELEndpoint)
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

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// The worker writes status entities the API process reads, so Redis is required.
	redisClient, err := entity.DialRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	haClient := homeassistant.NewRESTClient(cfg.HomeAssistantURL, cfg.HomeAssistantToken, cfg.HomeAssistantTimeout)

	worker := workers.NewResetWorker(
		database.NewEntryRepository(db),
		entity.Deps{
			Store:       entity.NewRedisStore(redisClient),
			Resetter:    reset.New(haClient, zapLogger),
			Checker:     haClient,
			Publisher:   entity.NewHostPublisher(haClient),
			Clock:       clock.Real(),
			SettleDelay: cfg.ResetSettleDelay,
			ResetLease:  cfg.ResetLease,
			Logger:      zapLogger,
		},
		jobQueue,
		zapLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zapLogger.Info("worker_shutdown_signal_received")
		cancel()
	}()

	zapLogger.Info("worker_started")
	if err := worker.Run(ctx, cfg.RabbitMQPrefetch); err != nil {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		return
	}

	// Give pending settle timers a moment to move entities back to active.
	time.Sleep(cfg.ResetSettleDelay)
	zapLogger.Info("worker_stopped")
}
