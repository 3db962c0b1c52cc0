// Package main runs the StoneLedger API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/headstone-world/stoneledger/internal/api"
	"github.com/headstone-world/stoneledger/internal/config"
	"github.com/headstone-world/stoneledger/internal/database"
	"github.com/headstone-world/stoneledger/internal/eventlog"
	"github.com/headstone-world/stoneledger/internal/jobstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	store, err := jobstore.Open(cfg.UploadsDir)
	if err != nil {
		log.Fatalf("open job store: %v", err)
	}

	var events eventlog.Recorder = eventlog.Noop{}
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		events = eventlog.NewRepository(pool)
	}

	var queueClient *asynq.Client
	if cfg.MailEnabled() || cfg.ArchiveEnabled() {
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
	}

	srv := api.New(cfg, store, queueClient, events)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
