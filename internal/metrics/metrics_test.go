package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()

	r.RecordRequest(1, "alice")
	r.RecordRequest(1, "alice")
	r.RecordError(1, "alice", "NO_SEATS_AVAILABLE")
	r.RecordRPCTimeout()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("1", "alice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues("1", "alice", "NO_SEATS_AVAILABLE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rpcTimeouts))
}

func TestRecorderSaturationAndLatency(t *testing.T) {
	r := NewRecorder()

	r.RecordSaturation(7, 0.3)
	r.ObserveLatency(7, 12*time.Millisecond)

	assert.InDelta(t, 0.3, testutil.ToFloat64(r.saturationGauge.WithLabelValues("7")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.saturation, "booking_saturation_ratio"))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency, "booking_latency_ms"))
}

func TestRecorderCapacityDriftResets(t *testing.T) {
	r := NewRecorder()

	r.SetCapacityDrift(map[int64]int{1: 2, 2: 1})
	assert.Equal(t, 2, testutil.CollectAndCount(r.capacityDrift))

	r.SetCapacityDrift(map[int64]int{2: 3})
	assert.Equal(t, 1, testutil.CollectAndCount(r.capacityDrift))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.capacityDrift.WithLabelValues("2")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordRequest(1, "a")
		r.RecordError(1, "a", "TIMEOUT")
		r.ObserveLatency(1, time.Second)
		r.RecordSaturation(1, 1)
		r.RecordRPCTimeout()
		r.SetCapacityDrift(nil)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.RecordRequest(3, "bob")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `booking_requests_total{event_id="3",requester_id="bob"} 1`))
}
