package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/models"
)

type TimeoutRecorder interface {
	RecordRPCTimeout()
}

// Client sends reservation requests and waits for correlated replies on a reply
// subject private to this instance.
type Client struct {
	bus          messaging.Bus
	cfg          Config
	replySubject string
	timeouts     TimeoutRecorder
	sub          messaging.Subscription

	mu      sync.Mutex
	pending map[string]chan models.ReserveReply
}

func NewClient(bus messaging.Bus, cfg Config, timeouts TimeoutRecorder) (*Client, error) {
	cfg = cfg.withDefaults()
	c := &Client{
		bus:          bus,
		cfg:          cfg,
		replySubject: cfg.replySubject(),
		timeouts:     timeouts,
		pending:      make(map[string]chan models.ReserveReply),
	}

	sub, err := bus.Subscribe(c.replySubject, c.handleReply)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply subject: %w", err)
	}
	c.sub = sub

	logger.Get().Info("Reservation RPC client ready",
		"request_subject", cfg.RequestSubject,
		"reply_subject", c.replySubject,
		"timeout", cfg.Timeout)
	return c, nil
}

func (c *Client) ReplySubject() string {
	return c.replySubject
}

// Pending is an in-flight request.
type Pending struct {
	client        *Client
	correlationID string
	replies       chan models.ReserveReply
	deadline      time.Time
}

func (p *Pending) CorrelationID() string {
	return p.correlationID
}

// Send publishes the request and returns immediately. The timeout runs from here.
func (c *Client) Send(ctx context.Context, req models.ReserveRequest) (*Pending, error) {
	p := &Pending{
		client:        c,
		correlationID: uuid.New().String(),
		replies:       make(chan models.ReserveReply, 1),
		deadline:      time.Now().Add(c.cfg.Timeout),
	}

	c.mu.Lock()
	c.pending[p.correlationID] = p.replies
	c.mu.Unlock()

	env := models.ReserveEnvelope{
		CorrelationID: p.correlationID,
		ReplyTo:       c.replySubject,
		Request:       req,
		SentAt:        time.Now().UTC(),
	}
	if err := c.bus.Publish(c.cfg.RequestSubject, env); err != nil {
		c.forget(p.correlationID)
		logger.WithContext(ctx).Error("Failed to publish reservation request",
			"correlation_id", p.correlationID, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	logger.WithContext(ctx).Debug("Reservation request sent",
		"correlation_id", p.correlationID, "event_id", req.EventID)
	return p, nil
}

// Wait blocks until the reply arrives, the timeout elapses or ctx ends. A timeout
// does not cancel the remote transaction; it may still commit.
func (p *Pending) Wait(ctx context.Context) (models.ReservationOutcome, error) {
	defer p.client.forget(p.correlationID)

	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case reply := <-p.replies:
		if reply.Error != nil {
			return models.ReservationOutcome{}, apperrors.FromRPC(reply.Error)
		}
		if reply.Outcome == nil {
			return models.ReservationOutcome{}, apperrors.ErrInternal
		}
		return *reply.Outcome, nil

	case <-timer.C:
		return models.ReservationOutcome{}, p.timedOut(ctx, nil)

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.ReservationOutcome{}, p.timedOut(ctx, ctx.Err())
		}
		return models.ReservationOutcome{}, ctx.Err()
	}
}

func (p *Pending) timedOut(ctx context.Context, cause error) error {
	if p.client.timeouts != nil {
		p.client.timeouts.RecordRPCTimeout()
	}
	logger.WithContext(ctx).Warn("Reservation reply timed out",
		"correlation_id", p.correlationID, "timeout", p.client.cfg.Timeout)
	if cause != nil {
		return apperrors.Wrap(apperrors.ErrTimeout, cause)
	}
	return apperrors.ErrTimeout
}

// Reserve is Send followed by Wait.
func (c *Client) Reserve(ctx context.Context, req models.ReserveRequest) (models.ReservationOutcome, error) {
	p, err := c.Send(ctx, req)
	if err != nil {
		return models.ReservationOutcome{}, err
	}
	return p.Wait(ctx)
}

// InFlight reports the number of requests still waiting for a reply.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) Close() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Unsubscribe()
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) handleReply(m messaging.Message) {
	defer m.Ack()

	var reply models.ReserveReply
	if err := json.Unmarshal(m.Data(), &reply); err != nil {
		logger.Get().Error("Failed to decode reservation reply", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[reply.CorrelationID]
	delete(c.pending, reply.CorrelationID)
	c.mu.Unlock()

	if !ok {
		logger.Get().Warn("Dropping late or unknown reservation reply",
			"correlation_id", reply.CorrelationID)
		return
	}

	select {
	case ch <- reply:
	default:
	}
}
