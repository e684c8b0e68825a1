package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrClosed = errors.New("messaging: bus closed")

// Message is one delivery. Ack marks it processed; unacked queue deliveries may be
// redelivered by durable drivers.
type Message interface {
	Subject() string
	Data() []byte
	Ack() error
}

type Handler func(Message)

type Subscription interface {
	Unsubscribe() error
}

// Bus is the transport behind the reservation RPC.
type Bus interface {
	// Publish JSON-encodes data unless it is already a []byte.
	Publish(subject string, data interface{}) error
	// Subscribe delivers every message on subject to handler.
	Subscribe(subject string, handler Handler) (Subscription, error)
	// QueueSubscribe delivers each message to one member of the queue group and
	// expects the handler to Ack it.
	QueueSubscribe(subject, queue string, handler Handler) (Subscription, error)
	Close() error
}

const (
	DriverNATS   = "nats"
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

type Config struct {
	Driver string

	// NATS Streaming
	URL       string
	ClusterID string
	ClientID  string

	// Kafka
	Brokers []string

	AckWait     time.Duration
	MaxInflight int

	// DuplicateDelivery makes the memory driver deliver every queue message twice.
	DuplicateDelivery bool
}

// New connects the configured driver.
func New(cfg Config) (Bus, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverNATS, "":
		return NewNATSClient(cfg)
	case DriverKafka:
		return NewKafkaBus(cfg)
	case DriverMemory:
		return NewMemoryBus(cfg), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}

func encode(data interface{}) ([]byte, error) {
	if b, ok := data.([]byte); ok {
		return b, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return payload, nil
}
