package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/morningai/morningai/internal/cache"
	"github.com/morningai/morningai/internal/config"
	"github.com/morningai/morningai/internal/database"
	"github.com/morningai/morningai/internal/decisions"
	"github.com/morningai/morningai/internal/logger"
	"github.com/morningai/morningai/internal/tasks"
	"github.com/morningai/morningai/internal/tokens"
	"github.com/morningai/morningai/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init("worker", cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting Morning AI Asynq worker")

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close(db)

	var blacklistCache tokens.Cache
	redisClient, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis cache unavailable - blacklist cleanup only touches the database")
	} else {
		defer redisClient.Close()
		blacklistCache = tokens.NewRedisCache(redisClient)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client (for the scheduler's cleanup tasks)
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	decisionSvc := decisions.NewService(db, nil, log)
	blacklistSvc := tokens.NewService(db, blacklistCache, log)

	// Initialize Asynq server
	asynqServer := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10, // Number of concurrent workers
			Queues: map[string]int{
				"critical": 6,
				"default":  3, // auto-approvals
				"low":      1, // blacklist cleanup
			},
			// Logging
			Logger: &asynqLogger{log: log},
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeDecisionAutoApprove, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleDecisionAutoApprove(ctx, t, decisionSvc, log)
	})
	mux.HandleFunc(tasks.TypeBlacklistCleanup, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleBlacklistCleanup(ctx, t, blacklistSvc, log)
	})

	// Periodic jobs: hourly blacklist cleanup and the overdue decision sweep
	scheduler := workers.NewScheduler(tasks.NewScheduler(asynqClient), decisionSvc, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	scheduler.Stop()
	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger is a wrapper to make zerolog compatible with Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
