// ABOUTME: Prometheus metrics for verdicts, provider calls, breaker state, and quota
// ABOUTME: Every breaker transition, quota exhaustion, and verdict is countable with labels

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects scan-pipeline metrics into a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	verdicts           *prometheus.CounterVec
	providerResults    *prometheus.CounterVec
	providerLatency    *prometheus.HistogramVec
	breakerTransitions *prometheus.CounterVec
	breakerOpen        *prometheus.GaugeVec
	quotaAvailable     *prometheus.GaugeVec
	rateLimited        *prometheus.CounterVec
	scanDuration       prometheus.Histogram
	activeScans        prometheus.Gauge
	recordWrites       prometheus.Counter
	duplicateScans     prometheus.Counter
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_verdicts_total",
			Help: "Final verdicts emitted, by severity.",
		}, []string{"severity"}),

		providerResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_provider_results_total",
			Help: "Provider lookup outcomes, by provider and normalized severity or error kind.",
		}, []string{"provider", "result"}),

		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_provider_latency_seconds",
			Help:    "Provider lookup latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),

		breakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_breaker_transitions_total",
			Help: "Circuit breaker state transitions, by provider and edge.",
		}, []string{"provider", "from", "to"}),

		breakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_breaker_open",
			Help: "1 when the provider's circuit is open, 0 otherwise.",
		}, []string{"provider"}),

		quotaAvailable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_quota_available",
			Help: "1 when the provider has monthly budget remaining, 0 when exhausted.",
		}, []string{"provider"}),

		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_rate_limited_total",
			Help: "Provider calls rejected by the fixed-window limiter.",
		}, []string{"provider"}),

		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_scan_duration_seconds",
			Help:    "End-to-end scan duration including aggregation.",
			Buckets: prometheus.DefBuckets,
		}),

		activeScans: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_active_scans",
			Help: "Scans currently in flight.",
		}),

		recordWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_record_writes_total",
			Help: "Hashed message records created.",
		}),

		duplicateScans: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_duplicate_scans_total",
			Help: "Scan requests answered from an existing live record.",
		}),
	}
}

// Handler returns an HTTP handler exposing the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (for tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordVerdict counts an emitted verdict.
func (m *Metrics) RecordVerdict(severity string) {
	m.verdicts.WithLabelValues(severity).Inc()
}

// RecordProviderResult counts one provider outcome and its latency.
// result is the normalized severity, or the error kind on failure.
func (m *Metrics) RecordProviderResult(provider, result string, latencySeconds float64) {
	m.providerResults.WithLabelValues(provider, result).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordBreakerTransition counts a breaker transition and keeps the
// open gauge in sync.
func (m *Metrics) RecordBreakerTransition(provider, from, to string) {
	m.breakerTransitions.WithLabelValues(provider, from, to).Inc()
	if to == "open" {
		m.breakerOpen.WithLabelValues(provider).Set(1)
	} else {
		m.breakerOpen.WithLabelValues(provider).Set(0)
	}
}

// SetQuotaAvailable sets the provider's quota gauge (1 available,
// 0 exhausted).
func (m *Metrics) SetQuotaAvailable(provider string, available bool) {
	v := 0.0
	if available {
		v = 1.0
	}
	m.quotaAvailable.WithLabelValues(provider).Set(v)
}

// RecordRateLimited counts a fixed-window rejection.
func (m *Metrics) RecordRateLimited(provider string) {
	m.rateLimited.WithLabelValues(provider).Inc()
}

// ObserveScanDuration records an end-to-end scan duration.
func (m *Metrics) ObserveScanDuration(seconds float64) {
	m.scanDuration.Observe(seconds)
}

// IncActiveScans increments the in-flight gauge.
func (m *Metrics) IncActiveScans() { m.activeScans.Inc() }

// DecActiveScans decrements the in-flight gauge.
func (m *Metrics) DecActiveScans() { m.activeScans.Dec() }

// RecordWrite counts a created hashed record.
func (m *Metrics) RecordWrite() { m.recordWrites.Inc() }

// RecordDuplicate counts a scan served from an existing record.
func (m *Metrics) RecordDuplicate() { m.duplicateScans.Inc() }
