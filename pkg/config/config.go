package config

import "time"

// Config is the root configuration for the gateway.
type Config struct {
	// Server contains the HTTP listener configuration.
	Server ServerConfig `yaml:"server"`

	// Anthropic contains the upstream provider connection settings.
	Anthropic AnthropicConfig `yaml:"anthropic"`

	// Stream contains streaming relay windows.
	Stream StreamConfig `yaml:"stream"`

	// Batch contains batch registry tuning.
	Batch BatchConfig `yaml:"batch"`

	// Catalog contains the model catalog source settings.
	Catalog CatalogConfig `yaml:"catalog"`

	// Audit contains request audit trail settings.
	Audit AuditConfig `yaml:"audit"`

	// Usage contains token usage ledger settings.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry contains logging, metrics, and tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on, "host:port".
	// Default: "127.0.0.1:8000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading an entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a whole response. Zero disables it, which
	// is also the default: SSE streams outlive any fixed write window, and
	// per-request deadlines come from the timeout middleware instead.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit between requests.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the graceful shutdown drain window.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes caps request header parsing.
	// Default: 1048576 (1 MiB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing settings.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS settings for browser clients.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted. Unset means
	// enabled, matching the permissive local-deployment posture.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins lists origins allowed to call the gateway.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists methods advertised on preflight.
	// Default: ["GET", "POST", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists request headers advertised on preflight.
	// Default: ["Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 300
	MaxAge int `yaml:"max_age"`
}

// IsEnabled reports the effective toggle state.
func (c CORSConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AnthropicConfig contains the provider connection settings.
type AnthropicConfig struct {
	// APIKey is the provider credential. Required; the ANTHROPIC_API_KEY
	// environment variable fills it when the file leaves it empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint. Empty uses the provider's
	// public API host.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each unary and batch provider call. Zero disables
	// the bound.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the SDK retry budget for transient failures. Negative
	// means no retries.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// APIVersion overrides the anthropic-version header when set.
	APIVersion string `yaml:"api_version"`
}

// StreamConfig contains streaming relay windows.
type StreamConfig struct {
	// IdleTimeout is the longest wait for the next provider event before
	// the stream fails.
	// Default: 90s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// KeepAliveInterval is the cadence of injected ping frames. Negative
	// disables keepalives.
	// Default: 15s
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	// BufferSize is the bounded per-stream event window.
	// Default: 8
	BufferSize int `yaml:"buffer_size"`
}

// BatchConfig contains batch registry tuning.
type BatchConfig struct {
	// StalenessThreshold is how old a non-terminal snapshot may be before
	// a get refreshes it from the provider.
	// Default: 5s
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`

	// RegistryTTL is how long finished or abandoned jobs stay in the local
	// registry before the sweeper evicts them.
	// Default: 720h (30 days)
	RegistryTTL time.Duration `yaml:"registry_ttl"`

	// SweepSchedule is the cron expression for registry eviction.
	// Default: "@hourly"
	SweepSchedule string `yaml:"sweep_schedule"`

	// ListDefaultLimit is the page size when ?limit= is absent.
	// Default: 20
	ListDefaultLimit int `yaml:"list_default_limit"`

	// ListMaxLimit clamps the requested page size.
	// Default: 100
	ListMaxLimit int `yaml:"list_max_limit"`
}

// CatalogConfig contains the model catalog source settings.
type CatalogConfig struct {
	// Path points at a YAML catalog file. Empty serves the built-in
	// catalog.
	Path string `yaml:"path"`

	// Watch enables hot reloading of the catalog file on change.
	// Default: false
	Watch bool `yaml:"watch"`
}

// AuditConfig contains request audit trail settings.
type AuditConfig struct {
	// Enabled controls whether request outcomes are recorded at all.
	// Unset means enabled.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Backend selects the storage: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// BufferSize is the async recorder queue depth. Records are dropped,
	// and counted, when the queue is full.
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`

	// Retention controls scheduled pruning of old records.
	Retention RetentionConfig `yaml:"retention"`
}

// IsEnabled reports the effective toggle state.
func (c AuditConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AuditSQLiteConfig configures the audit sqlite backend.
type AuditSQLiteConfig struct {
	// Path is the database file location.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// BusyTimeout is the sqlite lock wait.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig controls scheduled pruning.
type RetentionConfig struct {
	// MaxAge is how long records are kept. Zero disables pruning.
	// Default: 2160h (90 days)
	MaxAge time.Duration `yaml:"max_age"`

	// Schedule is the cron expression for prune runs.
	// Default: "0 3 * * *" (daily at 03:00)
	Schedule string `yaml:"schedule"`
}

// UsageConfig contains token usage ledger settings.
type UsageConfig struct {
	// Enabled controls whether usage accounting runs. Unset means
	// enabled.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Backend selects the storage: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite UsageSQLiteConfig `yaml:"sqlite"`
}

// IsEnabled reports the effective toggle state.
func (c UsageConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// UsageSQLiteConfig configures the usage sqlite backend.
type UsageSQLiteConfig struct {
	// Path is the database file location.
	// Default: "data/usage.db"
	Path string `yaml:"path"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus surface.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry export.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, or error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the handler: "text" or "json".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus surface.
type MetricsConfig struct {
	// Enabled controls the /metrics endpoint and collection. Unset means
	// enabled.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	// Default: "gateway"
	Namespace string `yaml:"namespace"`
}

// IsEnabled reports the effective toggle state.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	// Enabled turns on span export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName labels exported spans.
	// Default: "anthropic-api-server"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the trace sampling fraction in (0, 1]. Zero is
	// treated as unset.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure *bool `yaml:"insecure"`
}

// IsInsecure reports the effective collector TLS toggle.
func (c TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}
