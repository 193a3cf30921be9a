package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/sin3107/matching-sub001/internal/config"
	"github.com/sin3107/matching-sub001/internal/database"
	"github.com/sin3107/matching-sub001/internal/logger"
	"github.com/sin3107/matching-sub001/internal/notify"
	"github.com/sin3107/matching-sub001/internal/repository"
	"github.com/sin3107/matching-sub001/internal/services"
)

// The worker process consumes the push-notification queue and runs the daily
// retention sweep enqueued by the scheduler.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = zlog.Sync()
	}()

	if cfg.DBUrl == "" {
		zlog.Fatal("DB_URL is required")
	}
	db, err := database.Connect(context.Background(), cfg.DBUrl)
	if err != nil {
		zlog.Fatal("Failed to connect to database: " + err.Error())
	}
	defer db.Close()

	if err := database.PingRedis(context.Background(), cfg.RedisURL); err != nil {
		zlog.Fatal("Failed to reach redis: " + err.Error())
	}

	blobStorage, err := services.NewMinIOBlobStorage(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucket,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		zlog.Fatal("Failed to init blob storage: " + err.Error())
	}

	retentionService := services.NewRetentionService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		repository.NewUserRepository(db),
		blobStorage,
		services.NewConversationLocks(),
		cfg.RetentionPeriod,
		zlog,
	)

	srv, err := notify.NewServer(cfg.RedisURL)
	if err != nil {
		zlog.Fatal("Failed to build worker server: " + err.Error())
	}

	mux := asynq.NewServeMux()
	notify.RegisterHandlers(mux, &notify.LogSender{Log: zlog}, retentionService, zlog)

	scheduler, err := notify.NewSweepScheduler(cfg.RedisURL, cfg.SweepSchedule)
	if err != nil {
		zlog.Fatal("Failed to build sweep scheduler: " + err.Error())
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			zlog.Fatal("Scheduler failed: " + err.Error())
		}
	}()

	zlog.Info("Worker starting")
	if err := srv.Run(mux); err != nil {
		zlog.Fatal("Worker failed: " + err.Error())
	}
}
