package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"

	"github.com/morningai/morningai/internal/config"
	"github.com/morningai/morningai/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init("asynqmon", cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	h := asynqmon.New(asynqmon.Options{
		RootPath: cfg.Monitor.RootPath,
		RedisConnOpt: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	})
	defer h.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Monitor.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("port", cfg.Monitor.Port).
		Str("redis", cfg.Redis.Address).
		Str("root_path", cfg.Monitor.RootPath).
		Msg("Starting Asynqmon")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Asynqmon stopped")
	}
}
