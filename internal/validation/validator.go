package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
)

// InvariantValidator - проверяет инварианты бронирования на работающем API
type InvariantValidator struct {
	baseURL     string
	client      *http.Client
	capacity    int
	contenders  int
	attendeeTTL time.Duration
}

// NewInvariantValidator создает новый валидатор
func NewInvariantValidator(baseURL string) *InvariantValidator {
	return &InvariantValidator{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 15 * time.Second},
		capacity:    5,
		contenders:  40,
		attendeeTTL: 5 * time.Second,
	}
}

// WithLoad sets the event capacity and the number of concurrent requesters.
func (v *InvariantValidator) WithLoad(capacity, contenders int) *InvariantValidator {
	if capacity < 1 {
		capacity = 1
	}
	if contenders <= capacity {
		contenders = capacity + 1
	}
	v.capacity = capacity
	v.contenders = contenders
	return v
}

// ValidateAll runs every check against a fresh event.
func (v *InvariantValidator) ValidateAll(ctx context.Context) error {
	log := logger.Get()
	log.Info("Начинаю проверку инвариантов бронирования...", "base_url", v.baseURL)

	event, err := v.createEvent(ctx, v.capacity)
	if err != nil {
		return fmt.Errorf("event setup failed: %w", err)
	}

	winners, err := v.validateCapacity(ctx, event)
	if err != nil {
		return fmt.Errorf("capacity validation failed: %w", err)
	}

	if err := v.validateIdempotency(ctx, event, winners[0]); err != nil {
		return fmt.Errorf("idempotency validation failed: %w", err)
	}

	if err := v.validateDuplicateRace(ctx); err != nil {
		return fmt.Errorf("duplicate race validation failed: %w", err)
	}

	if err := v.validateUnknownEvent(ctx); err != nil {
		return fmt.Errorf("unknown event validation failed: %w", err)
	}

	if err := v.validateAttendees(ctx, event, winners); err != nil {
		return fmt.Errorf("attendee validation failed: %w", err)
	}

	log.Info("✅ Все инварианты соблюдены", "event_id", event.ID)
	return nil
}

func (v *InvariantValidator) createEvent(ctx context.Context, seats int) (*models.Event, error) {
	var event models.Event
	status, err := v.do(ctx, http.MethodPost, "/api/events", models.CreateEventRequest{
		Name:       "validation-" + uuid.NewString()[:8],
		TotalSeats: seats,
	}, &event)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("POST /api/events: expected 201, got %d", status)
	}
	return &event, nil
}

// validateCapacity fires more distinct requesters than seats at once: exactly
// capacity of them win, everyone else is told the event is full.
func (v *InvariantValidator) validateCapacity(ctx context.Context, event *models.Event) ([]string, error) {
	type result struct {
		requester string
		status    int
		outcome   models.ReservationOutcome
		err       error
	}

	results := make([]result, v.contenders)
	var wg sync.WaitGroup
	for i := 0; i < v.contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := result{requester: "validator-" + strconv.Itoa(i)}
			r.status, r.outcome, r.err = v.reserve(ctx, event.ID, r.requester)
			results[i] = r
		}(i)
	}
	wg.Wait()

	var winners []string
	rejected := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			return nil, r.err
		case r.status == http.StatusOK && r.outcome.WasCreated:
			winners = append(winners, r.requester)
		case r.status == http.StatusConflict:
			rejected++
		default:
			return nil, fmt.Errorf("requester %s: unexpected status %d", r.requester, r.status)
		}
	}

	if len(winners) != v.capacity {
		return nil, fmt.Errorf("expected %d bookings, got %d", v.capacity, len(winners))
	}
	if rejected != v.contenders-v.capacity {
		return nil, fmt.Errorf("expected %d rejections, got %d", v.contenders-v.capacity, rejected)
	}

	var bookings []models.Booking
	if _, err := v.do(ctx, http.MethodGet, fmt.Sprintf("/api/bookings/event/%d", event.ID), nil, &bookings); err != nil {
		return nil, err
	}
	if len(bookings) != v.capacity {
		return nil, fmt.Errorf("expected %d booking rows, got %d", v.capacity, len(bookings))
	}

	slog.Info("✅ Capacity invariant holds", "winners", len(winners), "rejected", rejected)
	return winners, nil
}

// validateIdempotency repeats a winning request on the now full event.
func (v *InvariantValidator) validateIdempotency(ctx context.Context, event *models.Event, requester string) error {
	status, outcome, err := v.reserve(ctx, event.ID, requester)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("repeat reservation: expected 200 on a full event, got %d", status)
	}
	if outcome.WasCreated {
		return fmt.Errorf("repeat reservation created a second booking")
	}
	if outcome.SeatsRemaining != 0 {
		return fmt.Errorf("expected 0 seats remaining, got %d", outcome.SeatsRemaining)
	}

	slog.Info("✅ Already-booked requester is exempt from the capacity check")
	return nil
}

// validateDuplicateRace sends the same requester many times at once.
func (v *InvariantValidator) validateDuplicateRace(ctx context.Context) error {
	event, err := v.createEvent(ctx, 3)
	if err != nil {
		return err
	}

	const attempts = 10
	var mu sync.Mutex
	created, bookingIDs := 0, map[int64]bool{}
	var firstErr error

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, outcome, err := v.reserve(ctx, event.ID, "duplicate")
			mu.Lock()
			defer mu.Unlock()
			if err == nil && status != http.StatusOK {
				err = fmt.Errorf("unexpected status %d", status)
			}
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if outcome.WasCreated {
				created++
			}
			bookingIDs[outcome.BookingID] = true
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if created != 1 || len(bookingIDs) != 1 {
		return fmt.Errorf("expected one booking, got created=%d ids=%d", created, len(bookingIDs))
	}

	slog.Info("✅ Duplicate requests resolve to one booking")
	return nil
}

func (v *InvariantValidator) validateUnknownEvent(ctx context.Context) error {
	var body models.ErrorResponse
	status, err := v.do(ctx, http.MethodPost, "/api/bookings/reserve",
		models.ReserveRequest{EventID: math.MaxInt32, RequesterID: "ghost"}, &body)
	if err != nil {
		return err
	}
	if status != http.StatusNotFound || body.Error != string(apperrors.KindEventNotFound) {
		return fmt.Errorf("expected 404 %s, got %d %s", apperrors.KindEventNotFound, status, body.Error)
	}
	return nil
}

// validateAttendees waits for the attendee view to list every winner of the event.
func (v *InvariantValidator) validateAttendees(ctx context.Context, event *models.Event, winners []string) error {
	deadline := time.Now().Add(v.attendeeTTL)
	for {
		var groups []models.EventAttendees
		if _, err := v.do(ctx, http.MethodGet, "/api/bookings/attendees", nil, &groups); err != nil {
			return err
		}
		for _, g := range groups {
			if g.EventID == event.ID && len(g.Attendees) == len(winners) {
				slog.Info("✅ Attendee view is consistent", "attendees", len(g.Attendees))
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("attendee view never listed %d attendees for event %d", len(winners), event.ID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (v *InvariantValidator) reserve(ctx context.Context, eventID int64, requester string) (int, models.ReservationOutcome, error) {
	var outcome models.ReservationOutcome
	status, err := v.do(ctx, http.MethodPost, "/api/bookings/reserve",
		models.ReserveRequest{EventID: eventID, RequesterID: requester}, &outcome)
	if status != http.StatusOK {
		outcome = models.ReservationOutcome{}
	}
	return status, outcome, err
}

// do sends a JSON request and decodes a 2xx body, or an error body, into out.
func (v *InvariantValidator) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode < 400 {
			return resp.StatusCode, fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// RunValidation запускает проверку на API из VALIDATE_URL (по умолчанию localhost:8081)
func RunValidation() {
	baseURL := os.Getenv("VALIDATE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := NewInvariantValidator(baseURL).ValidateAll(ctx); err != nil {
		logger.Fatal("❌ Валидация не пройдена", "error", err)
	}
}
