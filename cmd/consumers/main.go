package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatkeeper/cmd/consumers/jobs"
	"seatkeeper/internal/config"
	"seatkeeper/internal/consumers"
	"seatkeeper/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger.InitWithFile(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log := logger.Get()
	log.Info("Starting reservation executor service...", "queue_driver", cfg.QueueDriver)

	// Override queue client ID for executors
	cfg.Queue.ClientID = "seatkeeper-executor"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	audit := jobs.NewCapacityAuditJob(consumerService.Repositories().Events, consumerService.Recorder(), cfg.AuditInterval)
	audit.Start(ctx)

	log.Info("Reservation executor service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down reservation executor service...")
	audit.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Reservation executor service stopped")
}
