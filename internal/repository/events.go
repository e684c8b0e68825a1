package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"seatkeeper/internal/database"
	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (name, description, event_date, venue, total_seats)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, booked_seats, created_at, updated_at`

	return conn(ctx, r.db).QueryRowContext(ctx, query,
		event.Name,
		event.Description,
		event.EventDate,
		event.Venue,
		event.TotalSeats,
	).Scan(&event.ID, &event.BookedSeats, &event.CreatedAt, &event.UpdatedAt)
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, name, description, event_date, venue, total_seats, booked_seats, created_at, updated_at
		FROM events
		WHERE id = $1`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
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

// List returns events whose name contains query (case-insensitive), paginated when
// page and pageSize are positive.
func (r *EventRepository) List(ctx context.Context, query string, page, pageSize int) ([]models.Event, error) {
	var args []interface{}
	argIndex := 1

	sqlQuery := `
		SELECT id, name, description, event_date, venue, total_seats, booked_seats, created_at, updated_at
		FROM events
		WHERE 1=1`

	if q := strings.TrimSpace(query); q != "" {
		sqlQuery += fmt.Sprintf(" AND name ILIKE $%d", argIndex)
		args = append(args, "%"+escapeLike(q)+"%")
		argIndex++
	}

	sqlQuery += " ORDER BY id ASC"

	if page > 0 && pageSize > 0 {
		offset := (page - 1) * pageSize
		sqlQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, pageSize, offset)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
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
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CapacityDrift lists events whose booked_seats counter differs from their booking rows.
func (r *EventRepository) CapacityDrift(ctx context.Context) ([]models.CapacityDrift, error) {
	query := `
		SELECT e.id, e.name, e.total_seats, e.booked_seats, COUNT(b.id)
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		GROUP BY e.id
		HAVING e.booked_seats <> COUNT(b.id)
		ORDER BY e.id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drifts := []models.CapacityDrift{}
	for rows.Next() {
		var d models.CapacityDrift
		if err := rows.Scan(&d.EventID, &d.EventName, &d.TotalSeats, &d.BookedSeats, &d.BookingCount); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}

	return drifts, rows.Err()
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
