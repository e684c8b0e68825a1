package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"seatkeeper/internal/models"
)

const DefaultAuditInterval = 5 * time.Minute

// DriftSource lists events whose booked_seats counter disagrees with their bookings.
type DriftSource interface {
	CapacityDrift(ctx context.Context) ([]models.CapacityDrift, error)
}

// DriftGauge publishes the latest audit result.
type DriftGauge interface {
	SetCapacityDrift(drift map[int64]int)
}

// CapacityAuditJob periodically reports counter drift. Deleting a booking leaves the
// counter untouched, so drift is expected after deletions; the job only reports it.
type CapacityAuditJob struct {
	source   DriftSource
	gauge    DriftGauge
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	once     sync.Once
}

// NewCapacityAuditJob creates a new capacity audit job
func NewCapacityAuditJob(source DriftSource, gauge DriftGauge, interval time.Duration) *CapacityAuditJob {
	if interval <= 0 {
		interval = DefaultAuditInterval
	}
	return &CapacityAuditJob{
		source:   source,
		gauge:    gauge,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs an audit immediately and then on every tick.
func (j *CapacityAuditJob) Start(ctx context.Context) {
	slog.Info("Starting capacity audit job", "check_interval", j.interval)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		j.Audit(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.Audit(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Capacity audit job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *CapacityAuditJob) Stop() {
	j.once.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

// Audit runs one check and returns the drifting events.
func (j *CapacityAuditJob) Audit(ctx context.Context) []models.CapacityDrift {
	drifts, err := j.source.CapacityDrift(ctx)
	if err != nil {
		slog.Error("Failed to audit event capacity", "error", err)
		return nil
	}

	gauge := make(map[int64]int, len(drifts))
	for _, d := range drifts {
		gauge[d.EventID] = d.Drift()
		slog.Warn("Event counter drift detected",
			"event_id", d.EventID,
			"event_name", d.EventName,
			"booked_seats", d.BookedSeats,
			"booking_count", d.BookingCount,
			"drift", d.Drift())
	}
	if j.gauge != nil {
		j.gauge.SetCapacityDrift(gauge)
	}

	if len(drifts) == 0 {
		slog.Debug("No capacity drift found")
	}
	return drifts
}
