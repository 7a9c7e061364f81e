package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls metric collection.
type Config struct {
	// Enabled turns recording on. When false every record method is a
	// no-op; the handler still serves whatever the registry holds.
	Enabled bool

	// Namespace prefixes every metric name. Defaults to "gateway".
	Namespace string

	// RequestDurationBuckets overrides the request duration histogram
	// buckets, in seconds.
	RequestDurationBuckets []float64
}

// Metrics bundles the gateway's collectors around one registry.
type Metrics struct {
	enabled   bool
	namespace string
	registry  *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	streamEvents     *prometheus.CounterVec
	activeStreams    prometheus.Gauge
	tokensTotal      *prometheus.CounterVec
	upstreamAttempts *prometheus.CounterVec
}

// New creates and registers the gateway collectors. A nil registry gets
// a fresh private one.
func New(cfg Config, registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "gateway"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Spread for LLM latencies: fast validation failures up to
		// multi-minute generations.
		cfg.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	}

	m := &Metrics{
		enabled:   cfg.Enabled,
		namespace: cfg.Namespace,
		registry:  registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Requests processed, by operation and outcome.",
			},
			[]string{"operation", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds, by operation.",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"operation"},
		),
		streamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "stream_events_total",
				Help:      "Stream events relayed to clients, by event type.",
			},
			[]string{"type"},
		),
		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "active_streams",
				Help:      "Streaming sessions currently open.",
			},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "tokens_total",
				Help:      "Tokens processed, by model and direction.",
			},
			[]string{"model", "direction"},
		),
		upstreamAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_attempts_total",
				Help:      "HTTP attempts against the provider, retries included.",
			},
			[]string{"method"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.streamEvents,
		m.activeStreams,
		m.tokensTotal,
		m.upstreamAttempts,
	)
	return m
}

// RecordRequest counts one completed operation and observes its duration.
// The status label is "success" or the error kind's wire value.
func (m *Metrics) RecordRequest(operation, status string, duration time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStreamEvent counts one relayed stream event.
func (m *Metrics) RecordStreamEvent(eventType string) {
	if m == nil || !m.enabled {
		return
	}
	m.streamEvents.WithLabelValues(eventType).Inc()
}

// StreamOpened bumps the active stream gauge.
func (m *Metrics) StreamOpened() {
	if m == nil || !m.enabled {
		return
	}
	m.activeStreams.Inc()
}

// StreamClosed drops the active stream gauge.
func (m *Metrics) StreamClosed() {
	if m == nil || !m.enabled {
		return
	}
	m.activeStreams.Dec()
}

// RecordTokens counts input and output tokens for a model.
func (m *Metrics) RecordTokens(model string, input, output int64) {
	if m == nil || !m.enabled {
		return
	}
	if input > 0 {
		m.tokensTotal.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		m.tokensTotal.WithLabelValues(model, "output").Add(float64(output))
	}
}

// RecordUpstreamAttempt counts one HTTP attempt against the provider.
// Retries show up as attempts exceeding the request count.
func (m *Metrics) RecordUpstreamAttempt(method string) {
	if m == nil || !m.enabled {
		return
	}
	m.upstreamAttempts.WithLabelValues(method).Inc()
}

// ObserveBatchRegistry exposes the batch registry size as the batch_jobs
// gauge, sampled at scrape time.
func (m *Metrics) ObserveBatchRegistry(size func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "batch_jobs",
			Help:      "Batch jobs currently tracked in the registry.",
		},
		func() float64 { return float64(size()) },
	))
}

// ObserveAuditDrops exposes the audit recorder's drop counter as
// audit_dropped_total, sampled at scrape time.
func (m *Metrics) ObserveAuditDrops(count func() int64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit records dropped because the recorder was saturated.",
		},
		func() float64 { return float64(count()) },
	))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
