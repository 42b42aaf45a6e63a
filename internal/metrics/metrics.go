// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP requests by route pattern, method and status
	RequestDuration *prometheus.HistogramVec

	// Checklist generations by trigger ("create", "regenerate")
	Generations *prometheus.CounterVec

	// Items produced per generation
	ChecklistItems prometheus.Histogram

	// Time spent waiting for a project lock, by outcome
	LockWait *prometheus.HistogramVec

	// Evidence bytes accepted
	EvidenceBytes prometheus.Counter

	// Rendered reports by format
	Reports *prometheus.CounterVec

	// Registry reloads by result ("ok", "error", "unchanged")
	RegistryReloads *prometheus.CounterVec

	// Packs in the loaded registry
	RegistryPacks prometheus.Gauge
}

// New creates a Metrics instance on its own registry, so tests and several
// servers in one process do not collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truststack_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route, method and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method", "status"}),

		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "truststack_checklist_generations_total",
			Help: "Checklist generations by trigger",
		}, []string{"trigger"}),

		ChecklistItems: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "truststack_checklist_items",
			Help:    "Number of items in a generated checklist",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		LockWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truststack_project_lock_wait_seconds",
			Help:    "Time spent acquiring a project lock",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"outcome"}),

		EvidenceBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "truststack_evidence_bytes_total",
			Help: "Total evidence bytes accepted",
		}),

		Reports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "truststack_reports_rendered_total",
			Help: "Rendered reports by format",
		}, []string{"format"}),

		RegistryReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "truststack_registry_reloads_total",
			Help: "Registry reload attempts by result",
		}, []string{"result"}),

		RegistryPacks: f.NewGauge(prometheus.GaugeOpts{
			Name: "truststack_registry_packs",
			Help: "Pack versions in the loaded registry",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}


// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}

// IncrementGeneration records a checklist generation and its size.
func (m *Metrics) IncrementGeneration(trigger string, items int) {
	if m != nil {
		m.Generations.WithLabelValues(trigger).Inc()
		m.ChecklistItems.Observe(float64(items))
	}
}

// ObserveLockWait records how long acquiring a project lock took.
func (m *Metrics) ObserveLockWait(outcome string, d time.Duration) {
	if m != nil {
		m.LockWait.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// AddEvidenceBytes records accepted evidence.
func (m *Metrics) AddEvidenceBytes(n int64) {
	if m != nil {
		m.EvidenceBytes.Add(float64(n))
	}
}

// IncrementReport records a rendered report.
func (m *Metrics) IncrementReport(format string) {
	if m != nil {
		m.Reports.WithLabelValues(format).Inc()
	}
}

// IncrementReload records a registry reload attempt.
func (m *Metrics) IncrementReload(result string) {
	if m != nil {
		m.RegistryReloads.WithLabelValues(result).Inc()
	}
}

// SetRegistryPacks records the pack count of the loaded registry.
func (m *Metrics) SetRegistryPacks(n int) {
	if m != nil {
		m.RegistryPacks.Set(float64(n))
	}
}
