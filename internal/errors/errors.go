package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind tags an error so it survives serialization across the reservation queue.
type Kind string

const (
	KindEventNotFound    Kind = "EVENT_NOT_FOUND"
	KindNoSeatsAvailable Kind = "NO_SEATS_AVAILABLE"
	KindTimeout          Kind = "TIMEOUT"
	KindStorageFailure   Kind = "STORAGE_FAILURE"
	KindMalformedRequest Kind = "MALFORMED_REQUEST"
	KindBookingNotFound  Kind = "BOOKING_NOT_FOUND"
	KindInternal         Kind = "INTERNAL"
)

// Error is the typed error returned by the reservation engine.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so wrapped and rebuilt errors compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrEventNotFound    = &Error{Kind: KindEventNotFound, StatusCode: http.StatusNotFound, Message: "Event not found"}
	ErrNoSeatsAvailable = &Error{Kind: KindNoSeatsAvailable, StatusCode: http.StatusConflict, Message: "No seats available for the selected event"}
	ErrTimeout          = &Error{Kind: KindTimeout, StatusCode: http.StatusGatewayTimeout, Message: "Reservation timed out, outcome unknown"}
	ErrStorageFailure   = &Error{Kind: KindStorageFailure, StatusCode: http.StatusInternalServerError, Message: "Storage failure"}
	ErrMalformedRequest = &Error{Kind: KindMalformedRequest, StatusCode: http.StatusBadRequest, Message: "Malformed reservation request"}
	ErrBookingNotFound  = &Error{Kind: KindBookingNotFound, StatusCode: http.StatusNotFound, Message: "Booking not found"}
	ErrInternal         = &Error{Kind: KindInternal, StatusCode: http.StatusInternalServerError, Message: "Unable to reserve a seat"}
)

// Wrap attaches a cause to a copy of the sentinel.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{
		Kind:       sentinel.Kind,
		StatusCode: sentinel.StatusCode,
		Message:    sentinel.Message,
		Err:        cause,
	}
}

// StorageFailure wraps a lower-level store error.
func StorageFailure(cause error) *Error {
	return Wrap(ErrStorageFailure, cause)
}

// Malformed wraps a validation error.
func Malformed(cause error) *Error {
	return Wrap(ErrMalformedRequest, cause)
}

// IsDomain reports whether err is a terminal, non-retryable reservation outcome.
func IsDomain(err error) bool {
	return stderrors.Is(err, ErrEventNotFound) || stderrors.Is(err, ErrNoSeatsAvailable)
}

// KindOf returns the Kind carried by err, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// RPCError is the wire form of Error carried in queue replies.
type RPCError struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// ToRPC converts err for transport. Storage and unknown failures are reduced to a
// generic internal error so no store detail leaves the executor.
func ToRPC(err error) *RPCError {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		switch e.Kind {
		case KindStorageFailure, KindInternal:
		default:
			msg := e.Message
			if e.Kind == KindMalformedRequest && e.Err != nil {
				msg = e.Message + ": " + e.Err.Error()
			}
			return &RPCError{Kind: e.Kind, StatusCode: e.StatusCode, Message: msg}
		}
	}
	return &RPCError{Kind: ErrInternal.Kind, StatusCode: ErrInternal.StatusCode, Message: ErrInternal.Message}
}

// FromRPC rebuilds a typed error on the initiating side.
func FromRPC(r *RPCError) error {
	if r == nil {
		return nil
	}
	status := r.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	kind := r.Kind
	if kind == "" {
		kind = KindInternal
	}
	return &Error{Kind: kind, StatusCode: status, Message: r.Message}
}

// StatusCode maps any error to an HTTP status.
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.StatusCode != 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}
