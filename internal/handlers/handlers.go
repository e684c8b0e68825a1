package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"seatkeeper/internal/database"
	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
	"seatkeeper/internal/service"
)

const defaultHeartbeat = 15 * time.Second

// HealthChecker reports storage health for GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthCheck
}

type Handlers struct {
	services  *service.Services
	db        HealthChecker
	heartbeat time.Duration
}

func NewHandlers(services *service.Services, db HealthChecker, heartbeat time.Duration) *Handlers {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Handlers{
		services:  services,
		db:        db,
		heartbeat: heartbeat,
	}
}

// Health - GET /health
func (h *Handlers) Health(c *gin.Context) {
	resp := models.HealthResponse{
		Status:  "ok",
		Service: "seatkeeper-api",
		Version: "1.0.0",
	}

	status := http.StatusOK
	if h.db != nil {
		check := h.db.HealthCheck(c.Request.Context())
		resp.Database = check
		if check.Status != "healthy" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, resp)
}

const internalErrorMessage = "Internal server error"

// respondError writes the typed error body. Storage and unknown failures are
// reported as a generic internal error.
func respondError(c *gin.Context, err error) {
	wire := apperrors.ToRPC(err)
	if wire.Kind == apperrors.KindInternal {
		wire.Message = internalErrorMessage
	}
	writeError(c, err, wire)
}

// respondReservationError is respondError for the reserve routes, where an
// internal failure keeps the reservation wording carried over the queue.
func respondReservationError(c *gin.Context, err error) {
	writeError(c, err, apperrors.ToRPC(err))
}

func writeError(c *gin.Context, err error, wire *apperrors.RPCError) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(wire.StatusCode, models.ErrorResponse{
		StatusCode: wire.StatusCode,
		Message:    wire.Message,
		Error:      string(wire.Kind),
	})
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 || id > math.MaxInt32 {
		return 0, apperrors.Malformed(fmt.Errorf("%s must be a positive integer", name))
	}
	return id, nil
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
