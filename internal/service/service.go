package service

import (
	"seatkeeper/internal/repository"
)

type Services struct {
	Events       *EventService
	Reservations *ReservationService
	Bookings     *BookingService
	Attendees    *AttendeeService
}

// NewServices wires the gateway. reserver is the RPC client in queued mode, or the
// local ReservationService when reservations run in process. index may be nil.
func NewServices(repos *repository.Repositories, telemetry Telemetry, reserver Reserver, attendees *AttendeeService, index SearchIndex) *Services {
	reservations := NewReservationService(repos.Bookings, telemetry)
	if reserver == nil {
		reserver = reservations
	}

	observers := []BookingObserver{attendees}
	var bookingIndex BookingIndex
	if index != nil {
		observers = append(observers, NewSearchObserver(index))
		bookingIndex = index
	}

	return &Services{
		Events:       NewEventService(repos.Events),
		Reservations: reservations,
		Bookings:     NewBookingService(reserver, repos.Bookings, bookingIndex, observers...),
		Attendees:    attendees,
	}
}

// SearchIndex is the full booking index surface.
type SearchIndex interface {
	BookingIndex
	BookingIndexer
}
