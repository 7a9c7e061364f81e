// Package metrics owns the gateway's Prometheus collectors.
//
// All collectors register against an injected *prometheus.Registry so
// tests and embedders control the metric namespace end to end. Record
// methods are safe on a nil *Metrics and become no-ops when collection
// is disabled, which keeps call sites unconditional.
//
// Exposed series (namespace configurable, default "gateway"):
//
//   - requests_total{operation,status}
//   - request_duration_seconds{operation}
//   - stream_events_total{type}
//   - active_streams
//   - tokens_total{model,direction}
//   - upstream_attempts_total{method}
//   - batch_jobs (registered via ObserveBatchRegistry)
//   - audit_dropped_total (registered via ObserveAuditDrops)
package metrics
