package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sync outcomes recorded by ReconcileMetrics.IncSync.
const (
	SyncApplied  = "applied"
	SyncStale    = "stale"
	SyncOrphaned = "orphaned"
	SyncEmptied  = "emptied"
)

// ReconcileMetrics records ordering-backend calls and cart sync outcomes.
type ReconcileMetrics struct {
	duration *prometheus.HistogramVec
	failure  *prometheus.CounterVec
	sync     *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cartsync_gateway_duration_seconds",
		Help:    "Duration of ordering backend calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_gateway_failures_total",
		Help: "Failed ordering backend calls by error class.",
	}, []string{"operation", "class"})
	sync := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_cart_sync_total",
		Help: "Cart reconciliations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, failure, sync)
	return &ReconcileMetrics{
		duration: duration,
		failure:  failure,
		sync:     sync,
	}
}

// ObserveGateway records the duration of a backend call.
func (m *ReconcileMetrics) ObserveGateway(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncGatewayFailure counts a failed backend call. class is the error code.
func (m *ReconcileMetrics) IncGatewayFailure(operation, class string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(operation), normalizeLabel(class)).Inc()
}

// IncSync counts a reconciliation outcome.
func (m *ReconcileMetrics) IncSync(outcome string) {
	if m == nil || m.sync == nil {
		return
	}
	m.sync.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
