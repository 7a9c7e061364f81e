package config

import (
	"fmt"
	"net"
	"strings"
)

// FieldError is a validation failure on one configuration field.
type FieldError struct {
	// Field is the dotted path to the field, e.g. "server.listen_address".
	Field string

	// Message is a human-readable description of the problem.
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns all field errors as one message.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and collects every failure into
// one ValidationError. A nil return means the configuration is usable.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateAnthropic(&cfg.Anthropic)...)
	errs = append(errs, validateStream(&cfg.Stream)...)
	errs = append(errs, validateBatch(&cfg.Batch)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("must be host:port: %v", err),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "must be positive",
		})
	}
	if cfg.MaxHeaderBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "must be positive",
		})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateAnthropic(cfg *AnthropicConfig) []FieldError {
	var errs []FieldError

	if cfg.APIKey == "" {
		errs = append(errs, FieldError{
			Field:   "anthropic.api_key",
			Message: "API key is required; set anthropic.api_key or the ANTHROPIC_API_KEY environment variable",
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "anthropic.timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateStream(cfg *StreamConfig) []FieldError {
	var errs []FieldError

	if cfg.IdleTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "stream.idle_timeout",
			Message: "must be positive",
		})
	}
	if cfg.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "stream.buffer_size",
			Message: "must be positive",
		})
	}

	return errs
}

func validateBatch(cfg *BatchConfig) []FieldError {
	var errs []FieldError

	if cfg.StalenessThreshold <= 0 {
		errs = append(errs, FieldError{
			Field:   "batch.staleness_threshold",
			Message: "must be positive",
		})
	}
	if cfg.RegistryTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "batch.registry_ttl",
			Message: "must be positive",
		})
	}
	if cfg.SweepSchedule == "" {
		errs = append(errs, FieldError{
			Field:   "batch.sweep_schedule",
			Message: "cron schedule is required",
		})
	}
	if cfg.ListDefaultLimit <= 0 {
		errs = append(errs, FieldError{
			Field:   "batch.list_default_limit",
			Message: "must be positive",
		})
	}
	if cfg.ListMaxLimit < cfg.ListDefaultLimit {
		errs = append(errs, FieldError{
			Field:   "batch.list_max_limit",
			Message: "must be at least list_default_limit",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q, must be memory or sqlite", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.path",
			Message: "path is required for the sqlite backend",
		})
	}
	if cfg.SQLite.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.busy_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.buffer_size",
			Message: "must be positive",
		})
	}
	if cfg.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.max_age",
			Message: "must not be negative; zero disables pruning",
		})
	}

	return errs
}

func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "usage.backend",
			Message: fmt.Sprintf("unknown backend %q, must be memory or sqlite", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "usage.sqlite.path",
			Message: "path is required for the sqlite backend",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q, must be debug, info, warn, or error", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q, must be text or json", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.IsEnabled() && cfg.Metrics.Namespace == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.namespace",
			Message: "namespace is required when metrics are enabled",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "must be between 0 and 1",
		})
	}

	return errs
}
