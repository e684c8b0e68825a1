package models

import (
	"time"

	apperrors "seatkeeper/internal/errors"
)

// Queue subjects
const (
	SubjectReserve          = "booking.reserve"
	SubjectReserveReply     = "booking.reserve.reply"
	QueueGroupExecutors     = "booking-executors"
	ChannelAttendeeSnapshot = "attendees.snapshot"
)

// ReserveEnvelope is the request message published on the reserve subject
type ReserveEnvelope struct {
	CorrelationID string         `json:"correlationId"`
	ReplyTo       string         `json:"replyTo"`
	Request       ReserveRequest `json:"request"`
	SentAt        time.Time      `json:"sentAt"`
}

// ReserveReply carries either an outcome or a structured error back to the initiator
type ReserveReply struct {
	CorrelationID string              `json:"correlationId"`
	Outcome       *ReservationOutcome `json:"outcome,omitempty"`
	Error         *apperrors.RPCError `json:"error,omitempty"`
	RepliedAt     time.Time           `json:"repliedAt"`
}

// SnapshotMessage is relayed between API instances over the cache pub/sub channel
type SnapshotMessage struct {
	Origin   string           `json:"origin"`
	Snapshot AttendeeSnapshot `json:"snapshot"`
}
