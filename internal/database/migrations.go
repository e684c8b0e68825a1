package database

import (
	"context"
	"fmt"
	"log/slog"
)

// migrationLockID serializes bootstrap when the API and executors start together.
const migrationLockID int64 = 7311940021

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, migrationLockID)

	migrations := []string{
		createEventsTable,
		createBookingsTable,
		createBookingsEventCreatedIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := conn.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// booked_seats has no upper-bound CHECK: the reservation transaction is the only
// place that enforces booked_seats <= total_seats.
const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id SERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    event_date TIMESTAMP NOT NULL DEFAULT NOW(),
    venue VARCHAR(255) NOT NULL DEFAULT '',
    total_seats INTEGER NOT NULL,
    booked_seats INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (total_seats > 0),
    CHECK (booked_seats >= 0)
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id SERIAL PRIMARY KEY,
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    requester_id VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_bookings_event_requester UNIQUE (event_id, requester_id)
);`

const createBookingsEventCreatedIndex = `
CREATE INDEX IF NOT EXISTS bookings_event_created_idx
ON bookings (event_id, created_at, id);`
