package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/models"
)

type countingTimeouts struct{ n atomic.Int64 }

func (c *countingTimeouts) RecordRPCTimeout() { c.n.Add(1) }

func setup(t *testing.T, busCfg messaging.Config, timeout time.Duration, reserve ReserveFunc) (*Client, *countingTimeouts, *messaging.MemoryBus) {
	t.Helper()
	bus := messaging.NewMemoryBus(busCfg)
	t.Cleanup(func() { bus.Close() })

	cfg := DefaultConfig()
	cfg.Timeout = timeout

	server := NewServer(bus, cfg, reserve)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Stop() })

	timeouts := &countingTimeouts{}
	client, err := NewClient(bus, cfg, timeouts)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, timeouts, bus
}

func echo(_ context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
	return models.ReservationOutcome{
		BookingID:      req.EventID * 100,
		EventID:        req.EventID,
		RequesterID:    req.RequesterID,
		TotalSeats:     10,
		SeatsRemaining: 9,
		WasCreated:     true,
	}, nil
}

func TestRoundTrip(t *testing.T) {
	client, _, bus := setup(t, messaging.Config{}, time.Second, echo)

	out, err := client.Reserve(context.Background(), models.ReserveRequest{EventID: 4, RequesterID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(400), out.BookingID)
	assert.Equal(t, "alice", out.RequesterID)
	assert.True(t, out.WasCreated)
	assert.Equal(t, 0, client.InFlight())

	assert.Eventually(t, func() bool { return bus.Acks() >= 2 }, time.Second, 10*time.Millisecond)
}

func TestConcurrentCallsAreCorrelated(t *testing.T) {
	client, _, _ := setup(t, messaging.Config{}, 2*time.Second, echo)

	var wg sync.WaitGroup
	for i := 1; i <= 25; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			out, err := client.Reserve(context.Background(), models.ReserveRequest{EventID: id, RequesterID: fmt.Sprintf("r-%d", id)})
			if assert.NoError(t, err) {
				assert.Equal(t, id, out.EventID)
				assert.Equal(t, fmt.Sprintf("r-%d", id), out.RequesterID)
			}
		}(int64(i))
	}
	wg.Wait()
}

func TestDomainErrorsCrossTheWireTyped(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		status int
	}{
		{"event not found", apperrors.ErrEventNotFound, apperrors.ErrEventNotFound, 404},
		{"no seats", apperrors.ErrNoSeatsAvailable, apperrors.ErrNoSeatsAvailable, 409},
		{"malformed", apperrors.Malformed(errors.New("eventID failed on the 'min' rule")), apperrors.ErrMalformedRequest, 400},
		{"storage", apperrors.StorageFailure(errors.New("pq: relation does not exist")), apperrors.ErrInternal, 500},
		{"unknown", errors.New("boom"), apperrors.ErrInternal, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := setup(t, messaging.Config{}, time.Second, func(context.Context, models.ReserveRequest) (models.ReservationOutcome, error) {
				return models.ReservationOutcome{}, tt.err
			})

			_, err := client.Reserve(context.Background(), models.ReserveRequest{EventID: 1, RequesterID: "a"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.status, apperrors.StatusCode(err))
			assert.NotContains(t, err.Error(), "pq:")
		})
	}
}

func TestTimeoutAndLateReplyIsDropped(t *testing.T) {
	release := make(chan struct{})
	executed := make(chan struct{})
	var once sync.Once
	client, timeouts, _ := setup(t, messaging.Config{}, 50*time.Millisecond, func(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
		<-release
		defer once.Do(func() { close(executed) })
		return echo(ctx, req)
	})

	_, err := client.Reserve(context.Background(), models.ReserveRequest{EventID: 1, RequesterID: "slow"})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 504, apperrors.StatusCode(err))
	assert.Equal(t, int64(1), timeouts.n.Load())
	assert.Equal(t, 0, client.InFlight())

	close(release)
	<-executed

	// The late reply must not disturb the next call.
	out, err := client.Reserve(context.Background(), models.ReserveRequest{EventID: 2, RequesterID: "fast"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.EventID)
}

func TestContextDeadlineIsTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	client, timeouts, _ := setup(t, messaging.Config{}, time.Minute, func(context.Context, models.ReserveRequest) (models.ReservationOutcome, error) {
		<-block
		return models.ReservationOutcome{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.Reserve(ctx, models.ReserveRequest{EventID: 1, RequesterID: "a"})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, int64(1), timeouts.n.Load())
}

func TestCancellationReturnsContextError(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	client, timeouts, _ := setup(t, messaging.Config{}, time.Minute, func(context.Context, models.ReserveRequest) (models.ReservationOutcome, error) {
		<-block
		return models.ReservationOutcome{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p, err := client.Send(ctx, models.ReserveRequest{EventID: 1, RequesterID: "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.CorrelationID())
	cancel()

	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), timeouts.n.Load())
}

func TestDuplicateDeliveryYieldsOneAnswer(t *testing.T) {
	var calls atomic.Int64
	client, _, _ := setup(t, messaging.Config{DuplicateDelivery: true}, time.Second, func(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
		n := calls.Add(1)
		out, _ := echo(ctx, req)
		out.WasCreated = n == 1
		return out, nil
	})

	out, err := client.Reserve(context.Background(), models.ReserveRequest{EventID: 3, RequesterID: "dup"})
	require.NoError(t, err)
	assert.Equal(t, int64(300), out.BookingID)

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, client.InFlight())
}

func TestUndecodableRequestIsAcked(t *testing.T) {
	_, _, bus := setup(t, messaging.Config{}, time.Second, echo)

	require.NoError(t, bus.Publish(models.SubjectReserve, []byte("{not json")))
	assert.Eventually(t, func() bool { return bus.Acks() == 1 }, time.Second, 10*time.Millisecond)
}

func TestReplySubjectIsStablePerInstance(t *testing.T) {
	bus := messaging.NewMemoryBus(messaging.Config{})
	t.Cleanup(func() { bus.Close() })

	cfg := DefaultConfig()
	cfg.InstanceID = "API-1.pod/7"

	first, err := NewClient(bus, cfg, &countingTimeouts{})
	require.NoError(t, err)
	first.Close()

	second, err := NewClient(bus, cfg, &countingTimeouts{})
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	assert.Equal(t, models.SubjectReserveReply+".api-1-pod-7", first.ReplySubject())
	assert.Equal(t, first.ReplySubject(), second.ReplySubject())

	cfg.InstanceID = " "
	anonymous, err := NewClient(bus, cfg, &countingTimeouts{})
	require.NoError(t, err)
	t.Cleanup(func() { anonymous.Close() })
	assert.Len(t, strings.TrimPrefix(anonymous.ReplySubject(), models.SubjectReserveReply+"."), 36)
}
