package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ReserveRequest - body of POST /api/bookings/reserve and payload of the reserve queue
type ReserveRequest struct {
	EventID     int64  `json:"eventId" validate:"required,min=1,max=2147483647"`
	RequesterID string `json:"requesterId" validate:"required,max=255"`
}

// Normalize trims the requester identifier in place.
func (r *ReserveRequest) Normalize() {
	r.RequesterID = strings.TrimSpace(r.RequesterID)
}

// Validate normalizes the request and checks it. Used by both the HTTP entry
// point and the queue executor so the rules cannot drift apart.
func (r *ReserveRequest) Validate() error {
	r.Normalize()
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on the '%s' rule", lowerFirst(fe.Field()), fe.Tag())
		}
		return err
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ErrorResponse - body returned by the HTTP layer on failures
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// SearchBookingsResponse - response of GET /api/bookings/search
type SearchBookingsResponse struct {
	Total int64             `json:"total"`
	Items []BookingDocument `json:"items"`
}

// HealthResponse - response of GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Database any    `json:"database,omitempty"`
}

// CreateEventRequest - body of POST /api/events
type CreateEventRequest struct {
	Name        string    `json:"name" validate:"required,max=255"`
	Description string    `json:"description"`
	Venue       string    `json:"venue" validate:"max=255"`
	EventDate   time.Time `json:"eventDate"`
	TotalSeats  int       `json:"totalSeats" validate:"required,min=1"`
}

// Validate trims the name and checks the request.
func (r *CreateEventRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on the '%s' rule", lowerFirst(fe.Field()), fe.Tag())
		}
		return err
	}
	return nil
}

// ListEventsResponse - response of GET /api/events
type ListEventsResponse struct {
	Items    []Event `json:"items"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}
