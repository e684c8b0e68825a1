package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"seatkeeper/internal/models"
)

type Config struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	SnapshotKey string
	Channel     string
	SnapshotTTL time.Duration
}

// ValkeyClient stores the latest attendee snapshot and relays new ones between
// API instances over pub/sub.
type ValkeyClient struct {
	client      *redis.Client
	snapshotKey string
	channel     string
	ttl         time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	slog.Info("Connected to Valkey", "addr", cfg.Addr, "channel", cfg.Channel)
	return newValkeyClient(rdb, cfg), nil
}

func newValkeyClient(rdb *redis.Client, cfg Config) *ValkeyClient {
	v := &ValkeyClient{
		client:      rdb,
		snapshotKey: cfg.SnapshotKey,
		channel:     cfg.Channel,
		ttl:         cfg.SnapshotTTL,
	}
	if v.snapshotKey == "" {
		v.snapshotKey = "attendees:snapshot"
	}
	if v.channel == "" {
		v.channel = models.ChannelAttendeeSnapshot
	}
	return v
}

func (v *ValkeyClient) SaveSnapshot(ctx context.Context, snapshot models.AttendeeSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := v.client.Set(ctx, v.snapshotKey, payload, v.ttl).Err(); err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil when no snapshot is cached.
func (v *ValkeyClient) LoadSnapshot(ctx context.Context) (*models.AttendeeSnapshot, error) {
	payload, err := v.client.Get(ctx, v.snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var snapshot models.AttendeeSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("invalid snapshot in cache: %w", err)
	}
	return &snapshot, nil
}

func (v *ValkeyClient) PublishSnapshot(ctx context.Context, msg models.SnapshotMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot message: %w", err)
	}
	if err := v.client.Publish(ctx, v.channel, payload).Err(); err != nil {
		return fmt.Errorf("cache publish error: %w", err)
	}
	return nil
}

// SubscribeSnapshots calls handle for every relayed snapshot until ctx is done.
func (v *ValkeyClient) SubscribeSnapshots(ctx context.Context, handle func(models.SnapshotMessage)) error {
	pubsub := v.client.Subscribe(ctx, v.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", v.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg models.SnapshotMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				slog.Warn("Ignoring malformed snapshot message", "error", err)
				continue
			}
			handle(msg)
		}
	}
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
