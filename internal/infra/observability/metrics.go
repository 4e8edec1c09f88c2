package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	batchDuration       *prometheus.HistogramVec
	entriesMaterialized *prometheus.CounterVec
	obligationsExpired  prometheus.Counter
	driftRepaired       *prometheus.CounterVec
	batchErrors         *prometheus.CounterVec
	casConflicts        *prometheus.CounterVec
	notificationsFired  *prometheus.CounterVec
	notificationsMuted  *prometheus.CounterVec
	storeErrors         *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		batchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_batch_duration_seconds",
				Help:    "Duration of batch runs by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		entriesMaterialized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_entries_materialized_total",
				Help: "Ledger entries created by the scheduler.",
			},
			[]string{"source"}, // recurring, installment
		),
		obligationsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fintrack_obligations_expired_total",
				Help: "Recurring obligations deactivated on reaching their end date.",
			},
		),
		driftRepaired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_drift_repaired_total",
				Help: "Cached aggregates overwritten by the reconciler.",
			},
			[]string{"entity"}, // plan, installment
		),
		batchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_batch_errors_total",
				Help: "Per-entity failures collected during batch runs.",
			},
			[]string{"operation"},
		),
		casConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_cas_conflicts_total",
				Help: "Conditional updates lost to a concurrent invocation.",
			},
			[]string{"entity"},
		),
		notificationsFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_notifications_fired_total",
				Help: "Alert events raised by the trigger rules.",
			},
			[]string{"kind"},
		),
		notificationsMuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_notifications_muted_total",
				Help: "Alert events suppressed by the dedup window.",
			},
			[]string{"kind"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_store_errors_total",
				Help: "Errors from the persistence layer.",
			},
			[]string{"table"},
		),
	}
}

// RecordBatchDuration records the duration of a batch operation.
func (m *Metrics) RecordBatchDuration(operation string, d time.Duration) {
	m.batchDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrEntriesMaterialized increments the materialized-entry counter.
func (m *Metrics) IncrEntriesMaterialized(source string) {
	m.entriesMaterialized.WithLabelValues(source).Inc()
}

// IncrObligationExpired increments the expiry counter.
func (m *Metrics) IncrObligationExpired() {
	m.obligationsExpired.Inc()
}

// IncrDriftRepaired increments the repaired-aggregate counter.
func (m *Metrics) IncrDriftRepaired(entity string) {
	m.driftRepaired.WithLabelValues(entity).Inc()
}

// IncrBatchError increments the per-entity batch failure counter.
func (m *Metrics) IncrBatchError(operation string) {
	m.batchErrors.WithLabelValues(operation).Inc()
}

// IncrCASConflict increments the lost-conditional-update counter.
func (m *Metrics) IncrCASConflict(entity string) {
	m.casConflicts.WithLabelValues(entity).Inc()
}

// IncrNotificationFired increments the raised-alert counter.
func (m *Metrics) IncrNotificationFired(kind string) {
	m.notificationsFired.WithLabelValues(kind).Inc()
}

// IncrNotificationMuted increments the suppressed-alert counter.
func (m *Metrics) IncrNotificationMuted(kind string) {
	m.notificationsMuted.WithLabelValues(kind).Inc()
}

// IncrStoreError increments the persistence error counter.
func (m *Metrics) IncrStoreError(table string) {
	m.storeErrors.WithLabelValues(table).Inc()
}

// CounterSnapshot exposes the cumulative engine counters for the
// status endpoint.
type CounterSnapshot struct {
	EntriesMaterialized float64
	DriftRepaired       float64
	BatchErrors         float64
}

// Snapshot gathers current counter values from Prometheus.
// Note: counters expose cumulative values since process start.
func (m *Metrics) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		EntriesMaterialized: getCounterValue(m.entriesMaterialized, "recurring") +
			getCounterValue(m.entriesMaterialized, "installment"),
		DriftRepaired: getCounterValue(m.driftRepaired, "plan") +
			getCounterValue(m.driftRepaired, "installment"),
		BatchErrors: getCounterValue(m.batchErrors, "recurring_process") +
			getCounterValue(m.batchErrors, "scheduled_sweep") +
			getCounterValue(m.batchErrors, "reconcile"),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
