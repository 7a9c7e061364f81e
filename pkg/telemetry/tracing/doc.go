// Package tracing sets up optional OpenTelemetry tracing for the gateway.
//
// Tracing is disabled by default; when disabled, Start hands out noop
// spans so instrumentation points stay unconditional. When enabled,
// spans export over OTLP/gRPC to the configured collector endpoint.
package tracing
