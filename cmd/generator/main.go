package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"seatkeeper/internal/config"
	"seatkeeper/internal/database"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
	"seatkeeper/internal/repository"
)

var (
	clearExisting = flag.Bool("clear", false, "Delete existing events and bookings before seeding")
	count         = flag.Int("count", 10, "Number of events to create")
	minSeats      = flag.Int("min-seats", 10, "Minimum capacity per event")
	maxSeats      = flag.Int("max-seats", 500, "Maximum capacity per event")
	seed          = flag.Int64("seed", 0, "Random seed (0 = time based)")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var venues = []string{"Main Hall", "Studio A", "Open Air Stage", "Conference Room 2", "Rooftop"}

var kinds = []string{"Jazz night", "Tech meetup", "Chess open", "Film screening", "Poetry slam", "Workshop"}

// EventGenerator seeds capacity-bearing events for local load tests.
type EventGenerator struct {
	db     *database.DB
	events *repository.EventRepository
	rnd    *rand.Rand
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting event generator...", "count", *count)

	if *minSeats < 1 || *maxSeats < *minSeats {
		slog.Error("Invalid seat range", "min_seats", *minSeats, "max_seats", *maxSeats)
		os.Exit(1)
	}

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(s))

	if *dryRun {
		for _, ev := range plan(rnd, *count, *minSeats, *maxSeats) {
			fmt.Printf("%-32s %-20s seats=%d date=%s\n", ev.Name, ev.Venue, ev.TotalSeats, ev.EventDate.Format(time.RFC3339))
		}
		return
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	generator := &EventGenerator{db: db, events: repository.NewEventRepository(db), rnd: rnd}

	ctx := context.Background()
	if *clearExisting {
		if err := generator.clear(ctx); err != nil {
			slog.Error("Failed to clear existing events", "error", err)
			os.Exit(1)
		}
	}

	if err := generator.Generate(ctx, *count, *minSeats, *maxSeats); err != nil {
		slog.Error("Failed to generate events", "error", err)
		os.Exit(1)
	}

	slog.Info("Event generation completed successfully!")
}

// Generate inserts count events with random capacities.
func (g *EventGenerator) Generate(ctx context.Context, count, minSeats, maxSeats int) error {
	for _, ev := range plan(g.rnd, count, minSeats, maxSeats) {
		ev := ev
		if err := g.events.Create(ctx, &ev); err != nil {
			return fmt.Errorf("failed to create event %q: %w", ev.Name, err)
		}
		slog.Info("Created event", "event_id", ev.ID, "name", ev.Name, "total_seats", ev.TotalSeats)
	}
	return nil
}

func (g *EventGenerator) clear(ctx context.Context) error {
	slog.Warn("Clearing existing events and bookings")
	_, err := g.db.ExecContext(ctx, `TRUNCATE bookings, events RESTART IDENTITY CASCADE`)
	return err
}

func plan(rnd *rand.Rand, count, minSeats, maxSeats int) []models.Event {
	base := time.Now().UTC().Truncate(time.Hour)
	events := make([]models.Event, 0, count)
	for i := 0; i < count; i++ {
		kind := kinds[rnd.Intn(len(kinds))]
		events = append(events, models.Event{
			Name:        fmt.Sprintf("%s #%d", kind, i+1),
			Description: "Generated for load testing",
			Venue:       venues[rnd.Intn(len(venues))],
			EventDate:   base.Add(time.Duration(rnd.Intn(90*24)) * time.Hour),
			TotalSeats:  minSeats + rnd.Intn(maxSeats-minSeats+1),
		})
	}
	return events
}
