package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
)

const defaultKafkaRedeliverDelay = 30 * time.Second

// KafkaBus maps subjects to topics and queue groups to consumer groups.
// Ack commits the message offset for the group. A message left unacked is handed
// to the handler again after the redeliver delay before the next one is fetched.
type KafkaBus struct {
	brokers        []string
	writer         *kafka.Writer
	redeliverDelay time.Duration

	mu      sync.Mutex
	readers []*kafkaSubscription
	closed  bool
}

func NewKafkaBus(cfg Config) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka driver requires at least one broker")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           5 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
	}

	delay := cfg.AckWait
	if delay <= 0 {
		delay = defaultKafkaRedeliverDelay
	}

	slog.Info("Kafka bus configured", "brokers", cfg.Brokers, "redeliver_delay", delay)
	return &KafkaBus{brokers: cfg.Brokers, writer: writer, redeliverDelay: delay}, nil
}

func (kb *KafkaBus) Publish(subject string, data interface{}) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = kb.writer.WriteMessages(ctx, kafka.Message{Topic: subject, Value: payload})
	if err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", subject, err)
	}

	slog.Debug("Published message", "topic", subject)
	return nil
}

// Subscribe joins a private consumer group so this subscriber sees every message
// published from now on. Deliveries are acked once the handler returns.
func (kb *KafkaBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	autoAck := func(m Message) {
		handler(m)
		if err := m.Ack(); err != nil {
			slog.Error("Kafka commit failed", "topic", subject, "error", err)
		}
	}
	return kb.subscribe(subject, subject+"-"+uuid.New().String(), kafka.LastOffset, autoAck)
}

func (kb *KafkaBus) QueueSubscribe(subject, queue string, handler Handler) (Subscription, error) {
	return kb.subscribe(subject, queue, kafka.FirstOffset, handler)
}

func (kb *KafkaBus) subscribe(topic, group string, startOffset int64, handler Handler) (Subscription, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return nil, ErrClosed
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kb.brokers,
		Topic:       topic,
		GroupID:     group,
		StartOffset: startOffset,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sub := &kafkaSubscription{reader: reader, cancel: cancel, done: make(chan struct{})}
	kb.readers = append(kb.readers, sub)

	go func() {
		defer close(sub.done)
		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Kafka fetch failed", "topic", topic, "group", group, "error", err)
				time.Sleep(time.Second)
				continue
			}
			deliver(ctx, msg, reader.CommitMessages, handler, kb.redeliverDelay)
		}
	}()

	slog.Info("Subscribed to topic", "topic", topic, "group", group)
	return sub, nil
}

func (kb *KafkaBus) Close() error {
	kb.mu.Lock()
	readers := kb.readers
	kb.readers = nil
	kb.closed = true
	kb.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := kb.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type kafkaSubscription struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *kafkaSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.err = s.reader.Close()
	})
	return s.err
}

// deliver hands msg to handler until it is acked or ctx ends. Committing a later
// offset would also commit this one, so nothing is fetched past an unacked message.
func deliver(ctx context.Context, msg kafka.Message, commit commitFunc, handler Handler, delay time.Duration) {
	for attempt := 1; ; attempt++ {
		m := &kafkaMessage{msg: msg, commit: commit}
		handler(m)
		if m.acked.Load() {
			return
		}

		slog.Warn("Kafka message not acknowledged, redelivering",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

type commitFunc func(ctx context.Context, msgs ...kafka.Message) error

type kafkaMessage struct {
	msg    kafka.Message
	commit commitFunc
	acked  atomic.Bool
}

func (m *kafkaMessage) Subject() string { return m.msg.Topic }
func (m *kafkaMessage) Data() []byte    { return m.msg.Value }

func (m *kafkaMessage) Ack() error {
	if m.acked.Load() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.commit(ctx, m.msg); err != nil {
		return err
	}
	m.acked.Store(true)
	return nil
}
