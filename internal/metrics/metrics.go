package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	PrivilegedOperations *prometheus.CounterVec
	TriggerEvents        *prometheus.CounterVec
	ProfilesReconciled   prometheus.Counter
	PropagationDuration  prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PrivilegedOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lorewiki_privileged_operations_total",
				Help: "Privileged operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		TriggerEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lorewiki_trigger_events_total",
				Help: "Lifecycle trigger events handled, by outcome",
			},
			[]string{"event", "outcome"},
		),
		ProfilesReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lorewiki_profiles_reconciled_total",
			Help: "Orphaned profile records removed by sync-users",
		}),
		PropagationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lorewiki_propagation_duration_seconds",
			Help:    "Time spent copying profile identity onto pages",
			Buckets: prometheus.DefBuckets,
		}),
		gatherer: registry,
	}

	registry.MustRegister(
		m.PrivilegedOperations,
		m.TriggerEvents,
		m.ProfilesReconciled,
		m.PropagationDuration,
	)
	return m
}

// Outcome labels an error as "ok" or its kind string.
func Outcome(kind string, err error) string {
	if err == nil {
		return "ok"
	}
	return kind
}

func (m *Metrics) RecordPrivileged(operation, outcome string) {
	if m == nil {
		return
	}
	m.PrivilegedOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordTrigger(event, outcome string) {
	if m == nil {
		return
	}
	m.TriggerEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) AddReconciled(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ProfilesReconciled.Add(float64(n))
}

func (m *Metrics) ObservePropagation(d time.Duration) {
	if m == nil {
		return
	}
	m.PropagationDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
