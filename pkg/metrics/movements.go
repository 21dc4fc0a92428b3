package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MovementMetrics records apply outcomes for the movement engine.
type MovementMetrics struct {
	applied  *prometheus.CounterVec
	failed   *prometheus.CounterVec
	retries  prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewMovementMetrics registers the movement engine metrics on the provided
// registerer. A nil registerer yields a no-op collector, matching how tests
// construct the engine.
func NewMovementMetrics(reg prometheus.Registerer) *MovementMetrics {
	if reg == nil {
		return &MovementMetrics{}
	}
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "movements_applied_total",
		Help: "Committed stock movements.",
	}, []string{"type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "movements_failed_total",
		Help: "Rejected or failed stock movements.",
	}, []string{"type", "code"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "movements_transient_retries_total",
		Help: "Transient storage failures retried inside the applicator.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "movement_apply_duration_seconds",
		Help:    "Duration of the applicator's atomic unit in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	reg.MustRegister(applied, failed, retries, duration)
	return &MovementMetrics{
		applied:  applied,
		failed:   failed,
		retries:  retries,
		duration: duration,
	}
}

// IncApplied increments the committed counter for the movement type.
func (m *MovementMetrics) IncApplied(movementType string) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.WithLabelValues(normalizeLabel(movementType)).Inc()
}

// IncFailed increments the failure counter for the movement type and code.
func (m *MovementMetrics) IncFailed(movementType, code string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(movementType), normalizeLabel(code)).Inc()
}

// IncRetry counts one transient retry of the atomic unit.
func (m *MovementMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// ObserveApply records how long the apply took for the movement type.
func (m *MovementMetrics) ObserveApply(movementType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(movementType)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
