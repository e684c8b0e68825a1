package service

import (
	"context"
	"sync"
	"time"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
)

// fakeStore is an in-memory capacity store. WithTx holds a single lock for the whole
// transaction, which stands in for the event row lock, and rolls back on error.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events   map[int64]*models.Event
	bookings []models.Booking
	nextID   int64

	failOn       string
	forceCreated *bool
	calls        int
}

func newFakeStore(events ...models.Event) *fakeStore {
	s := &fakeStore{events: make(map[int64]*models.Event)}
	for i := range events {
		e := events[i]
		s.events[e.ID] = &e
	}
	return s
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	f.calls++
	savedEvents := make(map[int64]models.Event, len(f.events))
	for id, e := range f.events {
		savedEvents[id] = *e
	}
	savedBookings := append([]models.Booking(nil), f.bookings...)
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		for id, e := range savedEvents {
			e := e
			f.events[id] = &e
		}
		f.bookings = savedBookings
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) GetEventForUpdate(_ context.Context, eventID int64) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "get" {
		return nil, context.DeadlineExceeded
	}
	e, ok := f.events[eventID]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) FindBooking(_ context.Context, eventID int64, requesterID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(eventID, requesterID), nil
}

func (f *fakeStore) find(eventID int64, requesterID string) *models.Booking {
	for i := range f.bookings {
		if f.bookings[i].EventID == eventID && f.bookings[i].RequesterID == requesterID {
			b := f.bookings[i]
			return &b
		}
	}
	return nil
}

func (f *fakeStore) CreateBooking(_ context.Context, eventID int64, requesterID string) (*models.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "create" {
		return nil, false, context.DeadlineExceeded
	}
	if f.forceCreated != nil && !*f.forceCreated {
		// Simulates losing the unique constraint race to a committed concurrent insert.
		f.nextID++
		b := models.Booking{ID: f.nextID, EventID: eventID, RequesterID: requesterID, CreatedAt: time.Now()}
		return &b, false, nil
	}
	if existing := f.find(eventID, requesterID); existing != nil {
		return existing, false, nil
	}
	f.nextID++
	b := models.Booking{ID: f.nextID, EventID: eventID, RequesterID: requesterID, CreatedAt: time.Now()}
	f.bookings = append(f.bookings, b)
	return &b, true, nil
}

func (f *fakeStore) IncrementBookedSeats(_ context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return apperrors.ErrEventNotFound
	}
	e.BookedSeats++
	return nil
}

func (f *fakeStore) ListAttendees(_ context.Context) ([]models.EventAttendees, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "list" {
		return nil, context.DeadlineExceeded
	}

	var groups []models.EventAttendees
	for id := int64(1); id <= int64(len(f.events))+10; id++ {
		e, ok := f.events[id]
		if !ok {
			continue
		}
		var group *models.EventAttendees
		for _, b := range f.bookings {
			if b.EventID != id {
				continue
			}
			if group == nil {
				groups = append(groups, models.EventAttendees{EventID: id, EventName: e.Name})
				group = &groups[len(groups)-1]
			}
			group.Attendees = append(group.Attendees, models.BookingAttendee{RequesterID: b.RequesterID, BookedAt: b.CreatedAt})
		}
	}
	return groups, nil
}

func (f *fakeStore) bookedSeats(eventID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].BookedSeats
}

func (f *fakeStore) bookingCount(eventID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.EventID == eventID {
			n++
		}
	}
	return n
}

func (f *fakeStore) txCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTelemetry struct {
	mu         sync.Mutex
	requests   int
	errors     map[string]int
	latencies  int
	saturation []float64
}

func newFakeTelemetry() *fakeTelemetry {
	return &fakeTelemetry{errors: make(map[string]int)}
}

func (t *fakeTelemetry) RecordRequest(int64, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests++
}

func (t *fakeTelemetry) RecordError(_ int64, _ string, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors[kind]++
}

func (t *fakeTelemetry) ObserveLatency(int64, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latencies++
}

func (t *fakeTelemetry) RecordSaturation(_ int64, ratio float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saturation = append(t.saturation, ratio)
}
