package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
)

// Events handlers

// CreateEvent - POST /api/events
// Создать событие с фиксированной вместимостью
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Malformed(err))
		return
	}

	event, err := h.services.Events.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// ListEvents - GET /api/events
// Получить список событий
func (h *Handlers) ListEvents(c *gin.Context) {
	resp, err := h.services.Events.List(c.Request.Context(),
		c.Query("query"), queryInt(c, "page", 1), queryInt(c, "pageSize", 20))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetEvent - GET /api/events/:id
func (h *Handlers) GetEvent(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	event, err := h.services.Events.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}
