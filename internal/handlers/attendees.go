package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"seatkeeper/internal/logger"
)

// GetAttendees - GET /api/bookings/attendees
// Текущий список участников по событиям
func (h *Handlers) GetAttendees(c *gin.Context) {
	snapshot, err := h.services.Attendees.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot.Events)
}

// StreamAttendees - GET /api/bookings/attendees/stream
// Server-Sent Events: последний снимок сразу после подключения, затем каждое обновление.
func (h *Handlers) StreamAttendees(c *gin.Context) {
	sub := h.services.Attendees.Subscribe()
	defer sub.Close()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	log := logger.WithContext(ctx)
	log.Debug("Attendee stream opened", "client_ip", c.ClientIP())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent("message", snapshot.Events)
			return true
		case t := <-ticker.C:
			c.SSEvent("heartbeat", t.UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})

	log.Debug("Attendee stream closed", "client_ip", c.ClientIP())
}
