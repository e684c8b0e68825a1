package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
	"seatkeeper/internal/service"
)

// Bookings handlers

// ReserveSeat - POST /api/bookings/reserve and POST /api/bookings
// Забронировать место для участника
func (h *Handlers) ReserveSeat(c *gin.Context) {
	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondReservationError(c, apperrors.Malformed(err))
		return
	}

	outcome, err := h.services.Bookings.Reserve(c.Request.Context(), req)
	if err != nil {
		respondReservationError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ListBookings - GET /api/bookings
// Получить список бронирований
func (h *Handlers) ListBookings(c *gin.Context) {
	bookings, err := h.services.Bookings.List(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "pageSize", 50))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	booking, err := h.services.Bookings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListEventBookings - GET /api/bookings/event/:eventId
func (h *Handlers) ListEventBookings(c *gin.Context) {
	eventID, err := paramID(c, "eventId")
	if err != nil {
		respondError(c, err)
		return
	}

	bookings, err := h.services.Bookings.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// DeleteBooking - DELETE /api/bookings/:id
// Удаляет бронирование. Счетчик занятых мест события не уменьшается.
func (h *Handlers) DeleteBooking(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.services.Bookings.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchBookings - GET /api/bookings/search
// Поиск бронирований участника через Elasticsearch
func (h *Handlers) SearchBookings(c *gin.Context) {
	resp, err := h.services.Bookings.Search(c.Request.Context(),
		c.Query("requesterId"), queryInt(c, "page", 1), queryInt(c, "pageSize", 20))
	if errors.Is(err, service.ErrSearchDisabled) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{
			StatusCode: http.StatusServiceUnavailable,
			Message:    err.Error(),
			Error:      "SEARCH_DISABLED",
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
