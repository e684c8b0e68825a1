package models

import (
	"time"
)

// Event represents a capacity-bearing event
type Event struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	EventDate   time.Time `json:"eventDate" db:"event_date"`
	Venue       string    `json:"venue" db:"venue"`
	TotalSeats  int       `json:"totalSeats" db:"total_seats"`
	BookedSeats int       `json:"bookedSeats" db:"booked_seats"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// SeatsRemaining returns the free capacity according to the counter.
func (e Event) SeatsRemaining() int {
	return e.TotalSeats - e.BookedSeats
}

// Booking represents a confirmed reservation. At most one per (event, requester).
type Booking struct {
	ID          int64     `json:"id" db:"id"`
	EventID     int64     `json:"eventId" db:"event_id"`
	RequesterID string    `json:"requesterId" db:"requester_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	EventName   string    `json:"eventName,omitempty" db:"-"` // filled by joins
}

// ReservationOutcome is the result of one reservation attempt. Not persisted.
type ReservationOutcome struct {
	BookingID      int64     `json:"bookingId"`
	EventID        int64     `json:"eventId"`
	RequesterID    string    `json:"requesterId"`
	TotalSeats     int       `json:"totalSeats"`
	SeatsRemaining int       `json:"seatsRemaining"`
	WasCreated     bool      `json:"wasCreated"`
	BookedAt       time.Time `json:"bookedAt"`
}

// Saturation is the booked fraction of total capacity.
func (o ReservationOutcome) Saturation() float64 {
	if o.TotalSeats == 0 {
		return 0
	}
	return float64(o.TotalSeats-o.SeatsRemaining) / float64(o.TotalSeats)
}

// BookingAttendee is a single entry in an event's attendee list
type BookingAttendee struct {
	RequesterID string    `json:"requesterId"`
	BookedAt    time.Time `json:"bookedAt"`
}

// EventAttendees groups the attendees of one event in booking order
type EventAttendees struct {
	EventID   int64             `json:"eventId"`
	EventName string            `json:"eventName"`
	Attendees []BookingAttendee `json:"attendees"`
}

// AttendeeSnapshot is one full recomputation of the attendee view.
type AttendeeSnapshot struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Events      []EventAttendees `json:"events"`
}

// CapacityDrift describes an event whose counter disagrees with its booking rows.
type CapacityDrift struct {
	EventID      int64  `json:"eventId"`
	EventName    string `json:"eventName"`
	TotalSeats   int    `json:"totalSeats"`
	BookedSeats  int    `json:"bookedSeats"`
	BookingCount int    `json:"bookingCount"`
}

// Drift is the number of seats the counter overstates.
func (d CapacityDrift) Drift() int {
	return d.BookedSeats - d.BookingCount
}

// BookingDocument is the search index representation of a booking
type BookingDocument struct {
	BookingID      int64     `json:"booking_id"`
	EventID        int64     `json:"event_id"`
	RequesterID    string    `json:"requester_id"`
	BookedAt       time.Time `json:"booked_at"`
	TotalSeats     int       `json:"total_seats"`
	SeatsRemaining int       `json:"seats_remaining"`
}

// NewBookingDocument builds the index document for a committed reservation.
func NewBookingDocument(o ReservationOutcome) BookingDocument {
	return BookingDocument{
		BookingID:      o.BookingID,
		EventID:        o.EventID,
		RequesterID:    o.RequesterID,
		BookedAt:       o.BookedAt,
		TotalSeats:     o.TotalSeats,
		SeatsRemaining: o.SeatsRemaining,
	}
}
