package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatkeeper/internal/models"
)

// newTestClient connects to TEST_VALKEY_ADDR and skips when it is unreachable.
func newTestClient(t *testing.T) *ValkeyClient {
	t.Helper()
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("skipping Valkey integration tests: %v", err)
	}

	v := newValkeyClient(rdb, Config{
		SnapshotKey: "test:attendees:" + t.Name(),
		Channel:     "test:attendees:" + t.Name(),
		SnapshotTTL: time.Minute,
	})
	t.Cleanup(func() {
		rdb.Del(context.Background(), v.snapshotKey)
		v.Close()
	})
	return v
}

func TestNewValkeyClientDefaults(t *testing.T) {
	v := newValkeyClient(redis.NewClient(&redis.Options{}), Config{})
	defer v.Close()
	assert.Equal(t, "attendees:snapshot", v.snapshotKey)
	assert.Equal(t, models.ChannelAttendeeSnapshot, v.channel)
}

func TestSnapshotRoundTrip(t *testing.T) {
	v := newTestClient(t)
	ctx := context.Background()

	missing, err := v.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, missing)

	snap := models.AttendeeSnapshot{
		GeneratedAt: time.Now().UTC().Truncate(time.Millisecond),
		Events:      []models.EventAttendees{{EventID: 1, EventName: "Concert"}},
	}
	require.NoError(t, v.SaveSnapshot(ctx, snap))

	got, err := v.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, snap.GeneratedAt.Equal(got.GeneratedAt))
	assert.Equal(t, "Concert", got.Events[0].EventName)
}

func TestSnapshotRelay(t *testing.T) {
	v := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan models.SnapshotMessage, 1)
	go v.SubscribeSnapshots(ctx, func(m models.SnapshotMessage) { received <- m })

	msg := models.SnapshotMessage{Origin: "other"}
	require.Eventually(t, func() bool {
		if err := v.PublishSnapshot(ctx, msg); err != nil {
			return false
		}
		select {
		case got := <-received:
			return got.Origin == "other"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
