package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the service. A nil *Metrics
// is a valid no-op, which keeps unit tests free of registry bookkeeping.
type Metrics struct {
	ReconcileOutcomes *prometheus.CounterVec
	ReconcileRetries  prometheus.Counter
	MergedPrimaries   prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ReconcileOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_reconcile_outcomes_total",
			Help: "Reconciliation outcomes by action taken on the contact graph",
		}, []string{"action"}),
		ReconcileRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_reconcile_retries_total",
			Help: "Reconciliation attempts restarted after a retryable store conflict",
		}),
		MergedPrimaries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_merged_primaries_total",
			Help: "Primaries demoted to secondaries during merges",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkage_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) ObserveOutcome(action string) {
	if m == nil {
		return
	}
	m.ReconcileOutcomes.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.ReconcileRetries.Inc()
}

func (m *Metrics) ObserveMergedPrimaries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MergedPrimaries.Add(float64(n))
}

func (m *Metrics) ObserveRequest(route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}
