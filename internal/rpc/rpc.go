// Package rpc carries reservation requests over a message bus and correlates the
// replies back to the waiting caller.
package rpc

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"seatkeeper/internal/models"
)

type Config struct {
	RequestSubject string
	QueueGroup     string
	ReplyPrefix    string

	// InstanceID names this instance's reply subject. Keep it stable across restarts:
	// NATS Streaming creates a channel per subject and caps the channel count.
	// Empty means a fresh id per client.
	InstanceID string
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestSubject: models.SubjectReserve,
		QueueGroup:     models.QueueGroupExecutors,
		ReplyPrefix:    models.SubjectReserveReply,
		Timeout:        5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RequestSubject == "" {
		c.RequestSubject = def.RequestSubject
	}
	if c.QueueGroup == "" {
		c.QueueGroup = def.QueueGroup
	}
	if c.ReplyPrefix == "" {
		c.ReplyPrefix = def.ReplyPrefix
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// replySubject is <prefix>.<instance>, with the instance reduced to characters
// valid in a channel name.
func (c Config) replySubject() string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(c.InstanceID))
	if strings.Trim(id, "-") == "" {
		id = uuid.New().String()
	}
	return c.ReplyPrefix + "." + id
}
