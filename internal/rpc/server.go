package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/models"
)

// ReserveFunc executes one reservation. It must be idempotent per (event, requester):
// the bus may deliver a request more than once.
type ReserveFunc func(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error)

// Server consumes reservation requests as one member of a queue group.
type Server struct {
	bus     messaging.Bus
	cfg     Config
	reserve ReserveFunc
	sub     messaging.Subscription
}

func NewServer(bus messaging.Bus, cfg Config, reserve ReserveFunc) *Server {
	return &Server{bus: bus, cfg: cfg.withDefaults(), reserve: reserve}
}

func (s *Server) Start() error {
	sub, err := s.bus.QueueSubscribe(s.cfg.RequestSubject, s.cfg.QueueGroup, s.handle)
	if err != nil {
		return fmt.Errorf("failed to start reservation executor: %w", err)
	}
	s.sub = sub
	logger.Get().Info("Reservation executor listening",
		"subject", s.cfg.RequestSubject, "queue", s.cfg.QueueGroup)
	return nil
}

func (s *Server) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

// handle acks only after the reply is published. An unacked request is redelivered
// by the NATS Streaming and Kafka drivers after their ack wait; the memory driver
// drops it.
func (s *Server) handle(m messaging.Message) {
	var env models.ReserveEnvelope
	if err := json.Unmarshal(m.Data(), &env); err != nil {
		logger.Get().Error("Discarding undecodable reservation request", "error", err)
		_ = m.Ack()
		return
	}

	ctx := logger.ContextWithRequestID(context.Background(), env.CorrelationID)
	log := logger.WithContext(ctx)

	if env.ReplyTo == "" {
		log.Error("Discarding reservation request without reply subject")
		_ = m.Ack()
		return
	}

	reply := models.ReserveReply{CorrelationID: env.CorrelationID}
	outcome, err := s.reserve(ctx, env.Request)
	if err != nil {
		reply.Error = apperrors.ToRPC(err)
	} else {
		reply.Outcome = &outcome
	}
	reply.RepliedAt = time.Now().UTC()

	if err := s.bus.Publish(env.ReplyTo, reply); err != nil {
		log.Error("Failed to publish reservation reply, leaving request unacked",
			"reply_to", env.ReplyTo, "error", err)
		return
	}

	if err := m.Ack(); err != nil {
		log.Warn("Failed to ack reservation request", "error", err)
	}
}
