package service

import (
	"context"
	"sync"
	"time"

	"seatkeeper/internal/broadcast"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
)

type AttendeeRepository interface {
	ListAttendees(ctx context.Context) ([]models.EventAttendees, error)
}

// SnapshotStore shares attendee snapshots between instances.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot models.AttendeeSnapshot) error
	LoadSnapshot(ctx context.Context) (*models.AttendeeSnapshot, error)
	PublishSnapshot(ctx context.Context, msg models.SnapshotMessage) error
	SubscribeSnapshots(ctx context.Context, handle func(models.SnapshotMessage)) error
}

// AttendeeService keeps the grouped attendee view and pushes every recomputation to
// its subscribers. A subscriber first receives the latest snapshot, then each refresh.
type AttendeeService struct {
	repo   AttendeeRepository
	store  SnapshotStore
	hub    *broadcast.Hub[models.AttendeeSnapshot]
	origin string

	refreshMu sync.Mutex
	trigger   chan struct{}
	now       func() time.Time
}

type AttendeeOption func(*AttendeeService)

// WithSnapshotStore enables the cross-instance snapshot relay.
func WithSnapshotStore(store SnapshotStore) AttendeeOption {
	return func(s *AttendeeService) {
		s.store = store
	}
}

// WithSubscriberBuffer sets how many snapshots a slow subscriber may fall behind.
func WithSubscriberBuffer(n int) AttendeeOption {
	return func(s *AttendeeService) {
		s.hub = broadcast.NewHub[models.AttendeeSnapshot](n)
	}
}

func NewAttendeeService(repo AttendeeRepository, opts ...AttendeeOption) *AttendeeService {
	s := &AttendeeService{
		repo:    repo,
		hub:     broadcast.NewHub[models.AttendeeSnapshot](broadcast.DefaultBuffer),
		origin:  logger.NewRequestID(),
		trigger: make(chan struct{}, 1),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot reads the full attendee grouping from the store.
func (s *AttendeeService) Snapshot(ctx context.Context) (models.AttendeeSnapshot, error) {
	events, err := s.repo.ListAttendees(ctx)
	if err != nil {
		return models.AttendeeSnapshot{}, err
	}
	if events == nil {
		events = []models.EventAttendees{}
	}
	return models.AttendeeSnapshot{GeneratedAt: s.now().UTC(), Events: events}, nil
}

// Refresh recomputes the snapshot and publishes it. Calls are serialized so
// subscribers see snapshots in the order they were read.
func (s *AttendeeService) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.hub.Publish(snapshot)

	if s.store != nil {
		log := logger.WithContext(ctx)
		if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
			log.Warn("Failed to cache attendee snapshot", "error", err)
		}
		msg := models.SnapshotMessage{Origin: s.origin, Snapshot: snapshot}
		if err := s.store.PublishSnapshot(ctx, msg); err != nil {
			log.Warn("Failed to relay attendee snapshot", "error", err)
		}
	}

	return nil
}

// Notify asks Run for a refresh. Pending requests coalesce into one.
func (s *AttendeeService) Notify() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// OnOutcome refreshes after every successful reservation, new or already existing.
func (s *AttendeeService) OnOutcome(_ context.Context, _ models.ReservationOutcome) {
	s.Notify()
}

func (s *AttendeeService) OnDelete(_ context.Context, _ models.Booking) {
	s.Notify()
}

// Run serves refresh requests and, with a snapshot store, relays snapshots taken by
// other instances. It returns when ctx is done.
func (s *AttendeeService) Run(ctx context.Context) {
	if s.store != nil {
		go func() {
			if err := s.store.SubscribeSnapshots(ctx, s.relay); err != nil && ctx.Err() == nil {
				logger.Get().Error("Attendee snapshot relay stopped", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Get().Error("Failed to refresh attendee snapshot", "error", err)
			}
		}
	}
}

// relay publishes a foreign snapshot when it is newer than the local one.
func (s *AttendeeService) relay(msg models.SnapshotMessage) {
	if msg.Origin == s.origin {
		return
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if latest, ok := s.hub.Latest(); ok && !msg.Snapshot.GeneratedAt.After(latest.GeneratedAt) {
		return
	}
	s.hub.Publish(msg.Snapshot)
}

func (s *AttendeeService) Subscribe() *broadcast.Subscription[models.AttendeeSnapshot] {
	return s.hub.Subscribe()
}

// Current returns the latest published snapshot, falling back to the shared cache
// and finally to the store.
func (s *AttendeeService) Current(ctx context.Context) (models.AttendeeSnapshot, error) {
	if latest, ok := s.hub.Latest(); ok {
		return latest, nil
	}
	if s.store != nil {
		cached, err := s.store.LoadSnapshot(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("Failed to load cached attendee snapshot", "error", err)
		} else if cached != nil {
			return *cached, nil
		}
	}
	return s.Snapshot(ctx)
}

// Close ends every subscription.
func (s *AttendeeService) Close() {
	s.hub.Close()
}
