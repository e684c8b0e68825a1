package consumers

import (
	"context"

	"seatkeeper/internal/database"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
)

// Reserver runs one reservation transaction.
type Reserver interface {
	Reserve(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error)
}

type Handlers struct {
	reservations Reserver
	retry        database.RetryPolicy
}

func NewHandlers(reservations Reserver, retry database.RetryPolicy) *Handlers {
	return &Handlers{
		reservations: reservations,
		retry:        retry,
	}
}

// HandleReserve executes a queued reservation. Transient storage failures re-run the
// whole transaction; the row lock makes a repeated attempt safe.
func (h *Handlers) HandleReserve(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
	var outcome models.ReservationOutcome
	attempts := 0

	err := h.retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		outcome, err = h.reservations.Reserve(ctx, req)
		return err
	})
	if err != nil {
		return models.ReservationOutcome{}, err
	}

	if attempts > 1 {
		logger.WithContext(ctx).Info("Reservation succeeded after retry",
			"event_id", outcome.EventID, "attempts", attempts)
	}
	return outcome, nil
}
