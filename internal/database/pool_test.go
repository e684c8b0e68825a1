package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"lock timeout", &pq.Error{Code: "55P03"}, true},
		{"deadlock wrapped", fmt.Errorf("reserve: %w", &pq.Error{Code: "40P01"}), true},
		{"connection class", &pq.Error{Code: "08006"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"refused text", errors.New("dial tcp: connection refused"), true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetryPolicyDo(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return &pq.Error{Code: "40001"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on terminal errors", func(t *testing.T) {
		calls := 0
		terminal := errors.New("no seats")
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return terminal
		})
		assert.ErrorIs(t, err, terminal)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return driver.ErrBadConn
		})
		assert.ErrorIs(t, err, driver.ErrBadConn)
		assert.Equal(t, 3, calls)
	})
}
