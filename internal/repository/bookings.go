package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"seatkeeper/internal/database"
	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

// GetEventForUpdate locks the event row until the surrounding transaction ends.
func (r *BookingRepository) GetEventForUpdate(ctx context.Context, eventID int64) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, name, description, event_date, venue, total_seats, booked_seats, created_at, updated_at
		FROM events
		WHERE id = $1
		FOR UPDATE`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, eventID).Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.EventDate,
		&event.Venue,
		&event.TotalSeats,
		&event.BookedSeats,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	return event, nil
}

// FindBooking returns nil when the requester holds no booking for the event.
func (r *BookingRepository) FindBooking(ctx context.Context, eventID int64, requesterID string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		SELECT id, event_id, requester_id, created_at
		FROM bookings
		WHERE event_id = $1 AND requester_id = $2`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, eventID, requesterID).Scan(
		&booking.ID,
		&booking.EventID,
		&booking.RequesterID,
		&booking.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// CreateBooking inserts the booking unless the (event, requester) pair already exists,
// in which case the existing row is returned with created=false.
func (r *BookingRepository) CreateBooking(ctx context.Context, eventID int64, requesterID string) (*models.Booking, bool, error) {
	booking := &models.Booking{EventID: eventID, RequesterID: requesterID}
	query := `
		INSERT INTO bookings (event_id, requester_id)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT uq_bookings_event_requester DO NOTHING
		RETURNING id, created_at`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, eventID, requesterID).Scan(&booking.ID, &booking.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		existing, findErr := r.FindBooking(ctx, eventID, requesterID)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing == nil {
			return nil, false, fmt.Errorf("booking conflict for event %d but no row visible", eventID)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return booking, true, nil
}

func (r *BookingRepository) IncrementBookedSeats(ctx context.Context, eventID int64) error {
	query := `
		UPDATE events
		SET booked_seats = booked_seats + 1, updated_at = NOW()
		WHERE id = $1`

	res, err := conn(ctx, r.db).ExecContext(ctx, query, eventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

// ListAttendees groups every booking by event, in event id then booking order.
// Events without bookings are not listed.
func (r *BookingRepository) ListAttendees(ctx context.Context) ([]models.EventAttendees, error) {
	query := `
		SELECT e.id, e.name, b.requester_id, b.created_at
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		ORDER BY e.id, b.created_at, b.id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []models.EventAttendees{}
	for rows.Next() {
		var (
			eventID   int64
			eventName string
			attendee  models.BookingAttendee
		)
		if err := rows.Scan(&eventID, &eventName, &attendee.RequesterID, &attendee.BookedAt); err != nil {
			return nil, err
		}

		if n := len(groups); n == 0 || groups[n-1].EventID != eventID {
			groups = append(groups, models.EventAttendees{EventID: eventID, EventName: eventName})
		}
		last := &groups[len(groups)-1]
		last.Attendees = append(last.Attendees, attendee)
	}

	return groups, rows.Err()
}

func (r *BookingRepository) List(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	query := `
		SELECT b.id, b.event_id, b.requester_id, b.created_at, e.name
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $1 OFFSET $2`

	return r.queryBookings(ctx, query, limit, offset)
}

func (r *BookingRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.Booking, error) {
	query := `
		SELECT b.id, b.event_id, b.requester_id, b.created_at, e.name
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.event_id = $1
		ORDER BY b.created_at, b.id`

	return r.queryBookings(ctx, query, eventID)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		SELECT b.id, b.event_id, b.requester_id, b.created_at, e.name
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.id = $1`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.EventID,
		&booking.RequesterID,
		&booking.CreatedAt,
		&booking.EventName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// Delete removes the booking row only. The event's booked_seats counter is left as is.
func (r *BookingRepository) Delete(ctx context.Context, id int64) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		DELETE FROM bookings
		WHERE id = $1
		RETURNING id, event_id, requester_id, created_at`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.EventID,
		&booking.RequesterID,
		&booking.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	return booking, nil
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		var booking models.Booking
		if err := rows.Scan(
			&booking.ID,
			&booking.EventID,
			&booking.RequesterID,
			&booking.CreatedAt,
			&booking.EventName,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}
