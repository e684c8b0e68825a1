package service

import (
	"context"
	"errors"
	"time"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
)

// ReservationRepository is the store surface the reservation transaction needs.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetEventForUpdate(ctx context.Context, eventID int64) (*models.Event, error)
	FindBooking(ctx context.Context, eventID int64, requesterID string) (*models.Booking, error)
	CreateBooking(ctx context.Context, eventID int64, requesterID string) (*models.Booking, bool, error)
	IncrementBookedSeats(ctx context.Context, eventID int64) error
}

// Telemetry receives one signal set per reservation attempt.
type Telemetry interface {
	RecordRequest(eventID int64, requesterID string)
	RecordError(eventID int64, requesterID, kind string)
	ObserveLatency(eventID int64, d time.Duration)
	RecordSaturation(eventID int64, ratio float64)
}

type ReservationService struct {
	repo      ReservationRepository
	telemetry Telemetry
	now       func() time.Time
}

func NewReservationService(repo ReservationRepository, telemetry Telemetry) *ReservationService {
	return &ReservationService{
		repo:      repo,
		telemetry: telemetry,
		now:       time.Now,
	}
}

// Reserve books one seat for the requester, or returns the booking they already hold.
// Capacity is checked and consumed under the event row lock, so concurrent calls for
// the same event are serialized by the store.
func (s *ReservationService) Reserve(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
	req.Normalize()
	s.telemetry.RecordRequest(req.EventID, req.RequesterID)

	if err := req.Validate(); err != nil {
		s.telemetry.RecordError(req.EventID, req.RequesterID, string(apperrors.KindMalformedRequest))
		return models.ReservationOutcome{}, apperrors.Malformed(err)
	}

	var outcome models.ReservationOutcome
	start := s.now()

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEventForUpdate(txCtx, req.EventID)
		if err != nil {
			return err
		}

		existing, err := s.repo.FindBooking(txCtx, req.EventID, req.RequesterID)
		if err != nil {
			return err
		}
		if existing != nil {
			// Already booked: report current capacity, even when the event is full.
			outcome = outcomeFor(event, existing, event.BookedSeats, false)
			return nil
		}

		if event.BookedSeats+1 > event.TotalSeats {
			return apperrors.ErrNoSeatsAvailable
		}

		booking, created, err := s.repo.CreateBooking(txCtx, req.EventID, req.RequesterID)
		if err != nil {
			return err
		}
		if !created {
			outcome = outcomeFor(event, booking, event.BookedSeats, false)
			return nil
		}

		if err := s.repo.IncrementBookedSeats(txCtx, req.EventID); err != nil {
			return err
		}

		outcome = outcomeFor(event, booking, event.BookedSeats+1, true)
		return nil
	})

	s.telemetry.ObserveLatency(req.EventID, s.now().Sub(start))

	if err != nil {
		err = classify(err)
		s.telemetry.RecordError(req.EventID, req.RequesterID, string(apperrors.KindOf(err)))

		log := logger.WithContext(ctx)
		if apperrors.IsDomain(err) {
			log.Debug("Reservation rejected", "event_id", req.EventID, "requester_id", req.RequesterID, "error", err)
		} else {
			log.Error("Reservation failed", "event_id", req.EventID, "requester_id", req.RequesterID, "error", err)
		}
		return models.ReservationOutcome{}, err
	}

	s.telemetry.RecordSaturation(req.EventID, outcome.Saturation())
	logger.WithContext(ctx).Info("Reservation completed",
		"event_id", outcome.EventID,
		"requester_id", outcome.RequesterID,
		"booking_id", outcome.BookingID,
		"was_created", outcome.WasCreated,
		"seats_remaining", outcome.SeatsRemaining)

	return outcome, nil
}

func outcomeFor(event *models.Event, booking *models.Booking, bookedSeats int, created bool) models.ReservationOutcome {
	return models.ReservationOutcome{
		BookingID:      booking.ID,
		EventID:        event.ID,
		RequesterID:    booking.RequesterID,
		TotalSeats:     event.TotalSeats,
		SeatsRemaining: event.TotalSeats - bookedSeats,
		WasCreated:     created,
		BookedAt:       booking.CreatedAt,
	}
}

// classify keeps typed reservation errors and wraps everything else as a storage failure.
func classify(err error) error {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return err
	}
	return apperrors.StorageFailure(err)
}
