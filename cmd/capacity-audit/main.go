package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"seatkeeper/internal/config"
	"seatkeeper/internal/database"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
	"seatkeeper/internal/repository"
)

// capacity-audit compares each event's booked_seats counter with its booking rows.
// It reports only; counters are never rewritten.
func main() {
	var (
		asJSON bool
		strict bool
	)
	flag.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	flag.BoolVar(&strict, "strict", false, "Exit with status 2 when drift is found")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	drifts, err := repository.NewEventRepository(db).CapacityDrift(ctx)
	if err != nil {
		logger.Fatal("Capacity audit failed", "error", err)
	}

	if err := report(os.Stdout, drifts, asJSON); err != nil {
		logger.Fatal("Failed to write report", "error", err)
	}

	slog.Info("Capacity audit completed", "drifting_events", len(drifts))
	if strict && len(drifts) > 0 {
		db.Close()
		os.Exit(2)
	}
}

func report(w io.Writer, drifts []models.CapacityDrift, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if drifts == nil {
			drifts = []models.CapacityDrift{}
		}
		return enc.Encode(drifts)
	}

	if len(drifts) == 0 {
		_, err := fmt.Fprintln(w, "no drift: every counter matches its bookings")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tNAME\tTOTAL\tBOOKED\tROWS\tDRIFT")
	for _, d := range drifts {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\n", d.EventID, d.EventName, d.TotalSeats, d.BookedSeats, d.BookingCount, d.Drift())
	}
	return tw.Flush()
}
