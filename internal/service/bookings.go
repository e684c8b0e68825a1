package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
)

// ErrSearchDisabled is returned by Search when no booking index is configured.
var ErrSearchDisabled = errors.New("booking search is disabled")

// Reserver runs a reservation, over the queue or in process.
type Reserver interface {
	Reserve(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error)
}

// BookingObserver is told about committed reservations and admin deletes.
// Implementations must not block.
type BookingObserver interface {
	OnOutcome(ctx context.Context, outcome models.ReservationOutcome)
	OnDelete(ctx context.Context, booking models.Booking)
}

type BookingRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.Booking, error)
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	ListByEvent(ctx context.Context, eventID int64) ([]models.Booking, error)
	Delete(ctx context.Context, id int64) (*models.Booking, error)
}

type BookingIndex interface {
	SearchByRequester(ctx context.Context, requesterID string, page, pageSize int) (*models.SearchBookingsResponse, error)
}

// BookingService is the synchronous entry point used by the HTTP layer.
type BookingService struct {
	reserver  Reserver
	repo      BookingRepository
	index     BookingIndex
	observers []BookingObserver
}

func NewBookingService(reserver Reserver, repo BookingRepository, index BookingIndex, observers ...BookingObserver) *BookingService {
	return &BookingService{
		reserver:  reserver,
		repo:      repo,
		index:     index,
		observers: observers,
	}
}

// Reserve validates the request, hands it to the reserver and notifies observers of
// a successful outcome. Observer failures never reach the caller.
func (s *BookingService) Reserve(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
	if err := req.Validate(); err != nil {
		return models.ReservationOutcome{}, apperrors.Malformed(err)
	}

	outcome, err := s.reserver.Reserve(ctx, req)
	if err != nil {
		return models.ReservationOutcome{}, err
	}

	for _, o := range s.observers {
		o.OnOutcome(ctx, outcome)
	}
	return outcome, nil
}

func (s *BookingService) List(ctx context.Context, page, pageSize int) ([]models.Booking, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	bookings, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (s *BookingService) ListByEvent(ctx context.Context, eventID int64) ([]models.Booking, error) {
	bookings, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event bookings: %w", err)
	}
	return bookings, nil
}

// Delete removes a booking. The event's booked seat counter is not decremented.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	booking, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrBookingNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	logger.WithContext(ctx).Info("Booking deleted",
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"requester_id", booking.RequesterID)

	for _, o := range s.observers {
		o.OnDelete(ctx, *booking)
	}
	return nil
}

func (s *BookingService) Search(ctx context.Context, requesterID string, page, pageSize int) (*models.SearchBookingsResponse, error) {
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.index.SearchByRequester(ctx, requesterID, page, pageSize)
}

// BookingIndexer mirrors committed bookings into the search index.
type BookingIndexer interface {
	IndexBooking(ctx context.Context, doc models.BookingDocument) error
	DeleteBooking(ctx context.Context, bookingID int64) error
}

// SearchObserver indexes outcomes in the background.
type SearchObserver struct {
	index   BookingIndexer
	timeout time.Duration
}

func NewSearchObserver(index BookingIndexer) *SearchObserver {
	return &SearchObserver{index: index, timeout: 5 * time.Second}
}

func (o *SearchObserver) OnOutcome(ctx context.Context, outcome models.ReservationOutcome) {
	if !outcome.WasCreated {
		return
	}
	o.async(ctx, "index", outcome.BookingID, func(ctx context.Context) error {
		return o.index.IndexBooking(ctx, models.NewBookingDocument(outcome))
	})
}

func (o *SearchObserver) OnDelete(ctx context.Context, booking models.Booking) {
	o.async(ctx, "delete", booking.ID, func(ctx context.Context) error {
		return o.index.DeleteBooking(ctx, booking.ID)
	})
}

func (o *SearchObserver) async(ctx context.Context, op string, bookingID int64, fn func(ctx context.Context) error) {
	log := logger.WithContext(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	go func() {
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn("Booking search index update failed", "op", op, "booking_id", bookingID, "error", err)
		}
	}()
}
