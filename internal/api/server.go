package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"seatkeeper/internal/cache"
	"seatkeeper/internal/config"
	"seatkeeper/internal/consumers"
	"seatkeeper/internal/database"
	"seatkeeper/internal/handlers"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/metrics"
	"seatkeeper/internal/middleware"
	"seatkeeper/internal/models"
	"seatkeeper/internal/repository"
	"seatkeeper/internal/rpc"
	"seatkeeper/internal/search"
	"seatkeeper/internal/service"

	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	bus      messaging.Bus
	client   *rpc.Client
	executor *rpc.Server
	recorder *metrics.Recorder
	valkey   *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
	cancel   context.CancelFunc
}

// reserveFunc adapts an executor handler to service.Reserver.
type reserveFunc func(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error)

func (f reserveFunc) Reserve(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
	return f(ctx, req)
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) (*Server, error) {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	// Подключаемся к базе данных
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Запускаем миграции
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &Server{
		config:   cfg,
		db:       db,
		recorder: metrics.NewRecorder(),
		repos:    repository.NewRepositories(db),
	}

	reserver, err := s.setupReserver()
	if err != nil {
		s.Cleanup()
		return nil, err
	}

	// Кеш снимков участников и поиск подключаются опционально
	var attendeeOpts []service.AttendeeOption
	attendeeOpts = append(attendeeOpts, service.WithSubscriberBuffer(cfg.SubscriberBuffer))
	if cfg.Cache.Enabled {
		valkey, err := cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			slog.Warn("Valkey unavailable, attendee snapshots stay local", "error", err)
		} else {
			s.valkey = valkey
			attendeeOpts = append(attendeeOpts, service.WithSnapshotStore(valkey))
		}
	}

	var index service.SearchIndex
	if cfg.Elasticsearch.Enabled {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, booking search disabled", "error", err)
		} else {
			index = es
		}
	}

	attendees := service.NewAttendeeService(s.repos.Bookings, attendeeOpts...)
	s.services = service.NewServices(s.repos, s.recorder, reserver, attendees, index)

	// Первый снимок до приема подключений
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if err := attendees.Refresh(ctx); err != nil {
		slog.Error("Initial attendee refresh failed", "error", err)
	}
	go attendees.Run(ctx)

	s.router = gin.New()
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS())

	// Настраиваем роуты
	s.setupRoutes()

	return s, nil
}

// setupReserver picks the reservation path. A nil reserver means the transaction
// runs in process without the queue.
func (s *Server) setupReserver() (service.Reserver, error) {
	cfg := s.config
	retry := database.RetryPolicy{MaxAttempts: cfg.ReserveMaxRetries, Backoff: cfg.ReserveRetryBackoff}

	if cfg.QueueDriver == config.QueueDriverDirect {
		slog.Info("Reservations run in process")
		local := consumers.NewHandlers(service.NewReservationService(s.repos.Bookings, s.recorder), retry)
		return reserveFunc(local.HandleReserve), nil
	}

	bus, err := messaging.New(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}
	s.bus = bus

	if cfg.EmbeddedExecutor {
		executor := consumers.NewHandlers(service.NewReservationService(s.repos.Bookings, s.recorder), retry)
		s.executor = rpc.NewServer(bus, cfg.RPC, executor.HandleReserve)
		if err := s.executor.Start(); err != nil {
			return nil, err
		}
	}

	client, err := rpc.NewClient(bus, cfg.RPC, s.recorder)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, s.db, s.config.SSEHeartbeat)

	api := s.router.Group("/api")
	{
		// Events endpoints
		events := api.Group("/events")
		{
			events.POST("", h.CreateEvent)
			events.GET("", h.ListEvents)
			events.GET("/:id", h.GetEvent)
		}

		// Bookings endpoints
		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.ReserveSeat)
			bookings.POST("/reserve", h.ReserveSeat)
			bookings.GET("", h.ListBookings)
			bookings.GET("/attendees", h.GetAttendees)
			bookings.GET("/attendees/stream", h.StreamAttendees)
			bookings.GET("/search", h.SearchBookings)
			bookings.GET("/event/:eventId", h.ListEventBookings)
			bookings.GET("/:id", h.GetBooking)
			bookings.DELETE("/:id", h.DeleteBooking)
		}
	}

	// Health check и метрики
	s.router.GET("/health", h.Health)
	s.router.GET("/metrics", gin.WrapH(s.recorder.Handler()))
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// CloseStreams ends open attendee streams so the HTTP server can drain.
func (s *Server) CloseStreams() {
	if s.services != nil && s.services.Attendees != nil {
		s.services.Attendees.Close()
	}
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.CloseStreams()

	if s.executor != nil {
		if err := s.executor.Stop(); err != nil {
			slog.Error("Error stopping embedded executor", "error", err)
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			slog.Error("Error closing RPC client", "error", err)
		}
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			slog.Error("Error closing queue connection", "error", err)
		}
	}
	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	var errs []error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
