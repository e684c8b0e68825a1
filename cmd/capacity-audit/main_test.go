package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatkeeper/internal/models"
)

func TestReportTable(t *testing.T) {
	var buf bytes.Buffer
	err := report(&buf, []models.CapacityDrift{
		{EventID: 3, EventName: "Gala", TotalSeats: 10, BookedSeats: 4, BookingCount: 2},
	}, false)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "DRIFT")
	assert.Contains(t, out, "Gala")
	assert.Regexp(t, `3\s+Gala\s+10\s+4\s+2\s+2`, out)
}

func TestReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report(&buf, nil, false))
	assert.Contains(t, buf.String(), "no drift")

	buf.Reset()
	require.NoError(t, report(&buf, nil, true))
	assert.JSONEq(t, `[]`, buf.String())
}
