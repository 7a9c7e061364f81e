// Package telemetry groups the gateway's observability subpackages:
// logging (structured slog setup), metrics (Prometheus collectors),
// tracing (optional OTLP export), and health (component checks).
package telemetry
