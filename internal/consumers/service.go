package consumers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"seatkeeper/internal/config"
	"seatkeeper/internal/database"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/metrics"
	"seatkeeper/internal/repository"
	"seatkeeper/internal/rpc"
	"seatkeeper/internal/service"
)

// ConsumerService is the reservation executor: it drains the reserve queue and
// runs each request as a row-locked transaction.
type ConsumerService struct {
	db       *database.DB
	bus      messaging.Bus
	repos    *repository.Repositories
	recorder *metrics.Recorder
	handlers *Handlers
	server   *rpc.Server
	metrics  *http.Server
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	// Connect to the queue
	bus, err := messaging.New(cfg.Queue)
	if err != nil {
		db.Close()
		return nil, err
	}

	cs := newConsumerService(db, bus, metrics.NewRecorder(), cfg.RPC, database.RetryPolicy{
		MaxAttempts: cfg.ReserveMaxRetries,
		Backoff:     cfg.ReserveRetryBackoff,
	})

	if cfg.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", cs.recorder.Handler())
		cs.metrics = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return cs, nil
}

func newConsumerService(db *database.DB, bus messaging.Bus, recorder *metrics.Recorder, rpcCfg rpc.Config, retry database.RetryPolicy) *ConsumerService {
	repos := repository.NewRepositories(db)
	reservations := service.NewReservationService(repos.Bookings, recorder)
	handlers := NewHandlers(reservations, retry)

	return &ConsumerService{
		db:       db,
		bus:      bus,
		repos:    repos,
		recorder: recorder,
		handlers: handlers,
		server:   rpc.NewServer(bus, rpcCfg, handlers.HandleReserve),
	}
}

// Repositories exposes the executor's stores to background jobs.
func (cs *ConsumerService) Repositories() *repository.Repositories {
	return cs.repos
}

// Recorder exposes the executor's telemetry to background jobs.
func (cs *ConsumerService) Recorder() *metrics.Recorder {
	return cs.recorder
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting reservation executors...")

	if err := cs.server.Start(); err != nil {
		return err
	}

	if cs.metrics != nil {
		go func() {
			slog.Info("Metrics server starting", "addr", cs.metrics.Addr)
			if err := cs.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	slog.Info("Reservation executors started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if err := cs.server.Stop(); err != nil {
		slog.Error("Error stopping reservation executor", "error", err)
	}

	if cs.metrics != nil {
		if err := cs.metrics.Shutdown(ctx); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
		}
	}

	if cs.bus != nil {
		if err := cs.bus.Close(); err != nil {
			slog.Error("Error closing queue connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
