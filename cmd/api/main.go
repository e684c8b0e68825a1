package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatkeeper/internal/api"
	"seatkeeper/internal/config"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/validation"
)

func main() {
	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		validation.RunValidation()
		return
	}

	// Загружаем конфигурацию
	cfg := config.Load()
	logger.InitWithFile(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log := logger.Get()

	if cfg.PprofEnabled {
		go func() {
			log.Info("Starting pprof server", "port", cfg.PprofPort)
			if err := http.ListenAndServe("localhost:"+cfg.PprofPort, nil); err != nil {
				log.Error("pprof server failed", "error", err)
			}
		}()
	}

	// Создаем и настраиваем сервер
	server, err := api.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	// Создаем HTTP сервер
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.GetRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Info("Starting server", "port", cfg.Port, "queue_driver", cfg.QueueDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ждем сигнал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown с таймаутом
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// SSE streams never finish on their own
	server.CloseStreams()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Закрываем соединения
	if err := server.Cleanup(); err != nil {
		log.Error("Error during cleanup", "error", err)
	}

	log.Info("Server stopped")
}
