package orchestrator

import (
	"time"

	"crm-bridge/core/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "crm_bridge"

// Metrics holds the cycle metrics on a registry owned by one orchestrator.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	running       prometheus.Gauge
	entities      *prometheus.CounterVec
	operations    *prometheus.CounterVec
	issues        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

// NewMetrics creates and registers the cycle metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cycle", Name: "total",
			Help: "Completed sync cycles by status.",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cycle", Name: "duration_seconds",
			Help:    "Duration of sync cycles.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cycle", Name: "running",
			Help: "1 while a cycle is running.",
		}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entities_processed_total",
			Help: "Canonical entities processed.",
		}, []string{"entity_type"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operations_applied_total",
			Help: "Remote writes applied.",
		}, []string{"entity_type"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "issues_raised_total",
			Help: "Reconciliation issues raised.",
		}, []string{"entity_type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entity_failures_total",
			Help: "Entities that failed to sync.",
		}, []string{"entity_type"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cycle", Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle.",
		}),
	}
	reg.MustRegister(m.cycles, m.cycleDuration, m.running, m.entities, m.operations, m.issues, m.failures, m.lastSuccess)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) cycleStarted() {
	m.running.Set(1)
}

func (m *Metrics) cycleFinished(status string, d time.Duration) {
	m.running.Set(0)
	m.cycles.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(d.Seconds())
	if status == string(StatusSucceeded) {
		m.lastSuccess.SetToCurrentTime()
	}
}

func (m *Metrics) observe(res *reconcile.Result) {
	et := string(res.EntityType)
	m.entities.WithLabelValues(et).Add(float64(res.Processed))
	m.operations.WithLabelValues(et).Add(float64(res.Operations))
	m.issues.WithLabelValues(et).Add(float64(res.Issues))
	m.failures.WithLabelValues(et).Add(float64(res.Failures))
}
