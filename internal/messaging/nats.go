package messaging

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

type NATSClient struct {
	conn        stan.Conn
	ackWait     time.Duration
	maxInflight int
}

func NewNATSClient(cfg Config) (*NATSClient, error) {
	// Generate unique client ID to avoid conflicts
	uniqueClientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, uniqueClientID,
		stan.NatsURL(cfg.URL),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			slog.Error("NATS Streaming connection lost", "error", reason)
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS Streaming: %w", err)
	}

	slog.Info("Connected to NATS Streaming",
		"url", cfg.URL, "cluster", cfg.ClusterID, "client", uniqueClientID)

	ackWait := cfg.AckWait
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}
	maxInflight := cfg.MaxInflight
	if maxInflight <= 0 {
		maxInflight = 1
	}

	return &NATSClient{conn: conn, ackWait: ackWait, maxInflight: maxInflight}, nil
}

func (nc *NATSClient) Publish(subject string, data interface{}) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	slog.Debug("Published message", "subject", subject)
	return nil
}

// Subscribe opens a non-durable, auto-acked subscription starting at new messages.
// Used for per-instance reply subjects; a restarted instance reuses its channel.
func (nc *NATSClient) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub, err := nc.conn.Subscribe(subject, func(m *stan.Msg) {
		handler(natsMessage{msg: m})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	slog.Info("Subscribed to subject", "subject", subject)
	return sub, nil
}

// QueueSubscribe opens a durable queue subscription with manual acks. Messages not
// acked within AckWait are redelivered to another member.
func (nc *NATSClient) QueueSubscribe(subject, queue string, handler Handler) (Subscription, error) {
	sub, err := nc.conn.QueueSubscribe(subject, queue, func(m *stan.Msg) {
		handler(natsMessage{msg: m, manual: true})
	},
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(nc.ackWait),
		stan.MaxInflight(nc.maxInflight))
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to subject %s: %w", subject, err)
	}

	slog.Info("Subscribed to subject", "subject", subject, "queue", queue,
		"ack_wait", nc.ackWait, "max_inflight", nc.maxInflight)
	return sub, nil
}

func (nc *NATSClient) Close() error {
	if nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}

type natsMessage struct {
	msg    *stan.Msg
	manual bool
}

func (m natsMessage) Subject() string { return m.msg.Subject }
func (m natsMessage) Data() []byte    { return m.msg.Data }

func (m natsMessage) Ack() error {
	if !m.manual {
		return nil
	}
	return m.msg.Ack()
}
