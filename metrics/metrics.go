// Package metrics holds the Prometheus collectors for the profile
// reconciliation layer and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store labels.
const (
	StorePrimary   = "primary"
	StoreSecondary = "secondary"
)

// Read results.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Dual-write outcomes.
const (
	OutcomeBoth          = "both"
	OutcomePrimaryOnly   = "primary_only"
	OutcomeSecondaryOnly = "secondary_only"
	OutcomeFailed        = "failed"
)

// ProfileMetrics instruments profile reads, writes and backfills.
type ProfileMetrics struct {
	reads      *prometheus.CounterVec
	writes     *prometheus.CounterVec
	backfills  *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
}

// NewProfileMetrics registers the profile collectors on reg. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewProfileMetrics(reg prometheus.Registerer) *ProfileMetrics {
	factory := promauto.With(reg)
	return &ProfileMetrics{
		reads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_store_reads_total",
			Help: "Profile lookups per store and result",
		}, []string{"store", "result"}),
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_dual_writes_total",
			Help: "Profile writes per operation and which stores accepted them",
		}, []string{"operation", "outcome"}),
		backfills: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_backfills_total",
			Help: "Asynchronous copies of primary profiles into the secondary store",
		}, []string{"result"}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profile_store_operation_duration_seconds",
			Help:    "Latency of individual store calls",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"store", "operation"}),
	}
}

func (m *ProfileMetrics) ObserveRead(store, result string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(store, result).Inc()
}

func (m *ProfileMetrics) ObserveWrite(operation, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(operation, outcome).Inc()
}

func (m *ProfileMetrics) ObserveBackfill(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.backfills.WithLabelValues(result).Inc()
}

// Timer starts a latency measurement; call the returned func when done.
func (m *ProfileMetrics) Timer(store, operation string) func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.opDuration.WithLabelValues(store, operation))
	return func() { timer.ObserveDuration() }
}

// HTTPMetrics instruments gin routes.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (m *HTTPMetrics) Observe(route, method, status string, seconds float64) {
	m.requests.WithLabelValues(route, method, status).Inc()
	m.duration.WithLabelValues(route, method).Observe(seconds)
}
