// Package main runs the StoneLedger queue worker: notification email and
// offsite archival.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/headstone-world/stoneledger/internal/archive"
	"github.com/headstone-world/stoneledger/internal/config"
	"github.com/headstone-world/stoneledger/internal/mailer"
	"github.com/headstone-world/stoneledger/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	mail := mailer.New(cfg)

	var archiver *archive.Archiver
	if cfg.ArchiveEnabled() {
		archiver, err = archive.New(cfg)
		if err != nil {
			log.Fatalf("init archive: %v", err)
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			log.Fatalf("ensure bucket: %v", err)
		}
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
	})
	processor := worker.NewProcessor(mail, archiver, cfg.UploadsDir)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
