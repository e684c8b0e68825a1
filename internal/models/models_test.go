package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ReserveRequest
		wantErr string
	}{
		{name: "valid", req: ReserveRequest{EventID: 1, RequesterID: "alice"}},
		{name: "trims requester", req: ReserveRequest{EventID: 1, RequesterID: "  bob  "}},
		{name: "missing event", req: ReserveRequest{RequesterID: "alice"}, wantErr: "eventID"},
		{name: "negative event", req: ReserveRequest{EventID: -4, RequesterID: "alice"}, wantErr: "eventID"},
		{name: "blank requester", req: ReserveRequest{EventID: 2, RequesterID: "   "}, wantErr: "requesterID"},
		{name: "long requester", req: ReserveRequest{EventID: 2, RequesterID: strings.Repeat("x", 256)}, wantErr: "requesterID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(tt.req.RequesterID), req.RequesterID)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOutcomeSaturation(t *testing.T) {
	o := ReservationOutcome{TotalSeats: 10, SeatsRemaining: 7}
	assert.InDelta(t, 0.3, o.Saturation(), 1e-9)

	assert.Zero(t, ReservationOutcome{}.Saturation())
	assert.Equal(t, 1.0, ReservationOutcome{TotalSeats: 4, SeatsRemaining: 0}.Saturation())
}

func TestCapacityDrift(t *testing.T) {
	d := CapacityDrift{BookedSeats: 5, BookingCount: 3}
	assert.Equal(t, 2, d.Drift())
}

func TestReserveRequestEventIDFitsStore(t *testing.T) {
	req := ReserveRequest{EventID: 1 << 31, RequesterID: "alice"}
	err := req.Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "eventID")
	}
}
