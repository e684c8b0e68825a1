package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
)

type PoolStats struct {
	MaxOpenConns      int           `json:"max_open_connections"`
	OpenConns         int           `json:"open_connections"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
	Timestamp    time.Time     `json:"timestamp"`
}

func (db *DB) GetPoolStats() PoolStats {
	stats := db.Stats()
	return PoolStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	start := time.Now()
	healthCheck := HealthCheck{
		Timestamp: start,
		Stats:     db.GetPoolStats(),
	}

	// Perform database ping with timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.PingContext(pingCtx)
	healthCheck.ResponseTime = time.Since(start)

	if err != nil {
		healthCheck.Status = "unhealthy"
		healthCheck.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	} else {
		healthCheck.Status = "healthy"
	}

	return healthCheck
}

// ValidateConnectionPool logs warnings when the pool looks saturated. Reservations
// hold a connection for the whole row-locked transaction, so waits show up here first.
func (db *DB) ValidateConnectionPool() {
	stats := db.Stats()

	if stats.MaxOpenConnections > 0 && stats.InUse > int(float64(stats.MaxOpenConnections)*0.9) {
		slog.Warn("High connection usage detected",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConnections)
	}

	if stats.WaitCount > 0 && stats.WaitDuration > time.Second {
		slog.Warn("High database wait times detected",
			"wait_count", stats.WaitCount, "wait_duration", stats.WaitDuration)
	}
}

// Postgres SQLSTATE codes that mark a whole transaction as safe to retry.
var retryableCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available (lock_timeout)
	"57P01": true, // admin_shutdown
	"57014": true, // query_canceled (statement_timeout)
}

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if retryableCodes[pqErr.Code] {
			return true
		}
		return pqErr.Code.Class() == "08" // connection_exception
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, retryable := range []string{"connection refused", "connection reset", "broken pipe"} {
		if strings.Contains(msg, retryable) {
			return true
		}
	}
	return false
}

// RetryPolicy retries a whole transaction on transient storage failures.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it succeeds, fails with a non-retryable error, or attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < attempts {
			slog.Warn("Transaction failed, retrying",
				"attempt", attempt, "max_attempts", attempts, "error", lastErr)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(time.Duration(attempt) * p.Backoff):
			}
		}
	}

	return lastErr
}
