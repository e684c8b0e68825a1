package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

// Recorder holds the reservation instruments. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	errors          *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	saturation      *prometheus.HistogramVec
	saturationGauge *prometheus.GaugeVec
	rpcTimeouts     prometheus.Counter
	capacityDrift   *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Reservation attempts handled by the executor.",
		}, []string{"event_id", "requester_id"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Reservation attempts that ended in an error, by error kind.",
		}, []string{"event_id", "requester_id", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_ms",
			Help:      "Reservation transaction duration in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"event_id"}),
		saturation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saturation_ratio",
			Help:      "Booked fraction of event capacity observed after each successful reservation.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"event_id"}),
		saturationGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "saturation_current",
			Help:      "Most recent booked fraction of event capacity.",
		}, []string{"event_id"}),
		rpcTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_timeouts_total",
			Help:      "Reservation RPC calls that gave up waiting for a reply.",
		}),
		capacityDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_drift",
			Help:      "booked_seats minus booking rows, per event, from the last capacity audit.",
		}, []string{"event_id"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.errors,
		r.latency,
		r.saturation,
		r.saturationGauge,
		r.rpcTimeouts,
		r.capacityDrift,
	)

	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) RecordRequest(eventID int64, requesterID string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(label(eventID), requesterID).Inc()
}

func (r *Recorder) RecordError(eventID int64, requesterID, kind string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(label(eventID), requesterID, kind).Inc()
}

func (r *Recorder) ObserveLatency(eventID int64, d time.Duration) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(label(eventID)).Observe(float64(d) / float64(time.Millisecond))
}

func (r *Recorder) RecordSaturation(eventID int64, ratio float64) {
	if r == nil {
		return
	}
	r.saturation.WithLabelValues(label(eventID)).Observe(ratio)
	r.saturationGauge.WithLabelValues(label(eventID)).Set(ratio)
}

func (r *Recorder) RecordRPCTimeout() {
	if r == nil {
		return
	}
	r.rpcTimeouts.Inc()
}

// SetCapacityDrift replaces the drift gauge with the latest audit result.
func (r *Recorder) SetCapacityDrift(drift map[int64]int) {
	if r == nil {
		return
	}
	r.capacityDrift.Reset()
	for eventID, d := range drift {
		r.capacityDrift.WithLabelValues(label(eventID)).Set(float64(d))
	}
}

func label(eventID int64) string {
	return strconv.FormatInt(eventID, 10)
}
