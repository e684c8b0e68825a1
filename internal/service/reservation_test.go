package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
)

func reserve(t *testing.T, svc *ReservationService, eventID int64, requester string) (models.ReservationOutcome, error) {
	t.Helper()
	return svc.Reserve(context.Background(), models.ReserveRequest{EventID: eventID, RequesterID: requester})
}

func TestReserveCreatesBookings(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, Name: "Concert", TotalSeats: 10})
	telemetry := newFakeTelemetry()
	svc := NewReservationService(store, telemetry)

	var last models.ReservationOutcome
	for i := 0; i < 3; i++ {
		out, err := reserve(t, svc, 1, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		assert.True(t, out.WasCreated)
		last = out
	}

	assert.Equal(t, 10, last.TotalSeats)
	assert.Equal(t, 7, last.SeatsRemaining)
	assert.InDelta(t, 0.3, last.Saturation(), 1e-9)
	assert.Equal(t, 3, store.bookedSeats(1))

	assert.Equal(t, 3, telemetry.requests)
	assert.Equal(t, 3, telemetry.latencies)
	assert.Len(t, telemetry.saturation, 3)
	assert.Empty(t, telemetry.errors)
}

func TestReserveIsIdempotentPerRequester(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, TotalSeats: 5})
	svc := NewReservationService(store, newFakeTelemetry())

	first, err := reserve(t, svc, 1, "alice")
	require.NoError(t, err)
	second, err := reserve(t, svc, 1, "  alice ")
	require.NoError(t, err)

	assert.True(t, first.WasCreated)
	assert.False(t, second.WasCreated)
	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, 4, second.SeatsRemaining)
	assert.Equal(t, 1, store.bookedSeats(1))
	assert.Equal(t, 1, store.bookingCount(1))
}

func TestReserveAlreadyBookedSucceedsWhenFull(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, TotalSeats: 1})
	telemetry := newFakeTelemetry()
	svc := NewReservationService(store, telemetry)

	_, err := reserve(t, svc, 1, "alice")
	require.NoError(t, err)

	out, err := reserve(t, svc, 1, "alice")
	require.NoError(t, err)
	assert.False(t, out.WasCreated)
	assert.Equal(t, 0, out.SeatsRemaining)
	assert.Equal(t, []float64{1, 1}, telemetry.saturation)
}

func TestReserveRejectsWhenFull(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, TotalSeats: 1})
	telemetry := newFakeTelemetry()
	svc := NewReservationService(store, telemetry)

	_, err := reserve(t, svc, 1, "alice")
	require.NoError(t, err)

	_, err = reserve(t, svc, 1, "bob")
	assert.ErrorIs(t, err, apperrors.ErrNoSeatsAvailable)
	assert.Equal(t, 1, store.bookedSeats(1))
	assert.Equal(t, 1, store.bookingCount(1))
	assert.Equal(t, 1, telemetry.errors[string(apperrors.KindNoSeatsAvailable)])
}

func TestReserveUnknownEvent(t *testing.T) {
	svc := NewReservationService(newFakeStore(), newFakeTelemetry())

	_, err := reserve(t, svc, 42, "alice")
	assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
	assert.Equal(t, 404, apperrors.StatusCode(err))
}

func TestReserveMalformedNeverTouchesStore(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, TotalSeats: 1})
	telemetry := newFakeTelemetry()
	svc := NewReservationService(store, telemetry)

	for _, req := range []models.ReserveRequest{
		{EventID: 0, RequesterID: "alice"},
		{EventID: 1, RequesterID: "   "},
		{EventID: -3, RequesterID: ""},
	} {
		_, err := svc.Reserve(context.Background(), req)
		assert.ErrorIs(t, err, apperrors.ErrMalformedRequest)
	}

	assert.Equal(t, 0, store.txCalls())
	assert.Equal(t, 3, telemetry.errors[string(apperrors.KindMalformedRequest)])
}

func TestReserveConflictOnInsertReturnsExisting(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, TotalSeats: 3})
	notCreated := false
	store.forceCreated = &notCreated
	svc := NewReservationService(store, newFakeTelemetry())

	out, err := reserve(t, svc, 1, "alice")
	require.NoError(t, err)
	assert.False(t, out.WasCreated)
	assert.Equal(t, 3, out.SeatsRemaining)
	assert.Equal(t, 0, store.bookedSeats(1))
}

func TestReserveWrapsStorageFailures(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, TotalSeats: 3})
	store.failOn = "create"
	telemetry := newFakeTelemetry()
	svc := NewReservationService(store, telemetry)

	_, err := reserve(t, svc, 1, "alice")
	assert.ErrorIs(t, err, apperrors.ErrStorageFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, store.bookedSeats(1))
	assert.Equal(t, 1, telemetry.errors[string(apperrors.KindStorageFailure)])
}

func TestReserveConcurrentRequestersNeverOversell(t *testing.T) {
	const capacity, requesters = 10, 50
	store := newFakeStore(models.Event{ID: 1, TotalSeats: capacity})
	svc := NewReservationService(store, newFakeTelemetry())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.Reserve(context.Background(), models.ReserveRequest{EventID: 1, RequesterID: fmt.Sprintf("r-%d", i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && out.WasCreated:
				created++
			case apperrors.KindOf(err) == apperrors.KindNoSeatsAvailable:
				rejected++
			default:
				t.Errorf("unexpected result: %+v %v", out, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, created)
	assert.Equal(t, requesters-capacity, rejected)
	assert.Equal(t, capacity, store.bookedSeats(1))
	assert.Equal(t, capacity, store.bookingCount(1))
}

func TestReserveConcurrentDuplicatesCreateOnce(t *testing.T) {
	store := newFakeStore(models.Event{ID: 1, TotalSeats: 5})
	svc := NewReservationService(store, newFakeTelemetry())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		bookings = map[int64]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Reserve(context.Background(), models.ReserveRequest{EventID: 1, RequesterID: "same"})
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if out.WasCreated {
				created++
			}
			bookings[out.BookingID] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, bookings, 1)
	assert.Equal(t, 1, store.bookedSeats(1))
}
