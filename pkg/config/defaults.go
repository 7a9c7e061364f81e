package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	// CORS defaults
	DefaultCORSMaxAge = 300

	// Provider defaults
	DefaultAnthropicTimeout    = 60 * time.Second
	DefaultAnthropicMaxRetries = 2

	// Stream defaults
	DefaultStreamIdleTimeout       = 90 * time.Second
	DefaultStreamKeepAliveInterval = 15 * time.Second
	DefaultStreamBufferSize        = 8

	// Batch defaults
	DefaultBatchStalenessThreshold = 5 * time.Second
	DefaultBatchRegistryTTL        = 720 * time.Hour
	DefaultBatchSweepSchedule      = "@hourly"
	DefaultBatchListDefaultLimit   = 20
	DefaultBatchListMaxLimit       = 100

	// Audit defaults
	DefaultAuditBackend           = "memory"
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditSQLiteBusyTimeout = 5 * time.Second
	DefaultAuditBufferSize        = 1024
	DefaultAuditRetentionMaxAge   = 2160 * time.Hour
	DefaultAuditRetentionSchedule = "0 3 * * *"

	// Usage defaults
	DefaultUsageBackend    = "memory"
	DefaultUsageSQLitePath = "data/usage.db"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsNamespace   = "gateway"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "anthropic-api-server"
	DefaultTracingSampleRatio = 1.0
)

// ApplyDefaults fills unset fields in cfg with default values. Explicitly
// configured values are never overwritten.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.CORS.AllowedOrigins == nil {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.CORS.AllowedMethods == nil {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if cfg.Server.CORS.AllowedHeaders == nil {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Anthropic
	if cfg.Anthropic.Timeout == 0 {
		cfg.Anthropic.Timeout = DefaultAnthropicTimeout
	}
	if cfg.Anthropic.MaxRetries == 0 {
		cfg.Anthropic.MaxRetries = DefaultAnthropicMaxRetries
	}

	// Stream
	if cfg.Stream.IdleTimeout == 0 {
		cfg.Stream.IdleTimeout = DefaultStreamIdleTimeout
	}
	if cfg.Stream.KeepAliveInterval == 0 {
		cfg.Stream.KeepAliveInterval = DefaultStreamKeepAliveInterval
	}
	if cfg.Stream.BufferSize == 0 {
		cfg.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Batch
	if cfg.Batch.StalenessThreshold == 0 {
		cfg.Batch.StalenessThreshold = DefaultBatchStalenessThreshold
	}
	if cfg.Batch.RegistryTTL == 0 {
		cfg.Batch.RegistryTTL = DefaultBatchRegistryTTL
	}
	if cfg.Batch.SweepSchedule == "" {
		cfg.Batch.SweepSchedule = DefaultBatchSweepSchedule
	}
	if cfg.Batch.ListDefaultLimit == 0 {
		cfg.Batch.ListDefaultLimit = DefaultBatchListDefaultLimit
	}
	if cfg.Batch.ListMaxLimit == 0 {
		cfg.Batch.ListMaxLimit = DefaultBatchListMaxLimit
	}

	// Audit
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = DefaultAuditBufferSize
	}
	if cfg.Audit.Retention.MaxAge == 0 {
		cfg.Audit.Retention.MaxAge = DefaultAuditRetentionMaxAge
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultAuditRetentionSchedule
	}

	// Usage
	if cfg.Usage.Backend == "" {
		cfg.Usage.Backend = DefaultUsageBackend
	}
	if cfg.Usage.SQLite.Path == "" {
		cfg.Usage.SQLite.Path = DefaultUsageSQLitePath
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}

// DefaultConfig returns a configuration with every default applied and no
// file or environment input.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
