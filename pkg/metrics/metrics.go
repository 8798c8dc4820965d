// Package metrics exports correction pipeline metrics in Prometheus format.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xhad/docfix/internal/models"
)

const namespace = "docfix"

type Metrics struct {
	registry *prometheus.Registry

	documents     *prometheus.CounterVec
	paragraphs    *prometheus.CounterVec
	edits         *prometheus.CounterVec
	checkLatency  *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
	tokenRequests *prometheus.CounterVec
}

type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for checker latency histograms (in seconds)
	LatencyBuckets []float64
}

func New() *Metrics {
	return NewWithConfig(Config{})
}

func NewWithConfig(cfg Config) *Metrics {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.documents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "documents_total",
			Help:      "Documents processed, by outcome",
		},
		[]string{"outcome"},
	)

	m.paragraphs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "paragraphs_total",
			Help:      "Paragraphs processed, by status",
		},
		[]string{"status"},
	)

	m.edits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "edits_total",
			Help:      "Candidate edits, by whether they were applied",
		},
		[]string{"result"},
	)

	m.checkLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checker",
			Name:      "request_duration_seconds",
			Help:      "Correction service latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"status"},
	)

	m.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "queue_depth",
			Help:      "Documents waiting to be processed",
		},
	)

	m.tokenRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "authorizations_total",
			Help:      "Payment token checks, by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		m.documents,
		m.paragraphs,
		m.edits,
		m.checkLatency,
		m.queueDepth,
		m.tokenRequests,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCheck(d time.Duration, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.checkLatency.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ObserveReport(report *models.Report) {
	if m == nil || report == nil {
		return
	}

	m.paragraphs.WithLabelValues("corrected").Add(float64(report.Corrected))
	m.paragraphs.WithLabelValues("unchanged").Add(float64(report.Unchanged))
	m.paragraphs.WithLabelValues("skipped").Add(float64(report.Skipped))
	m.paragraphs.WithLabelValues("failed").Add(float64(report.Failed))

	m.edits.WithLabelValues("applied").Add(float64(report.EditsApplied))
	m.edits.WithLabelValues("dropped").Add(float64(report.EditsDropped))
}

// ObserveDocument counts a finished document; outcome is one of
// "corrected", "degraded" or "failed".
func (m *Metrics) ObserveDocument(outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) ObserveAuthorization(err error) {
	if m == nil {
		return
	}

	result := "granted"
	if err != nil {
		result = "denied"
	}
	m.tokenRequests.WithLabelValues(result).Inc()
}
