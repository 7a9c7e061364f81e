package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for the full loading sequence.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides runs the full loading sequence: YAML file (or
// pure defaults when path is empty), defaults, environment overrides,
// validation. Environment variables always take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
		ApplyDefaults(cfg)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies GATEWAY_<SECTION>_<FIELD> environment variables
// on top of cfg, plus the bare ANTHROPIC_API_KEY credential.
func applyEnvOverrides(cfg *Config) {
	// The SDK-conventional credential first, so the gateway-specific
	// variable can still override it.
	envString("ANTHROPIC_API_KEY", &cfg.Anthropic.APIKey)

	// Server
	envString("GATEWAY_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("GATEWAY_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("GATEWAY_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("GATEWAY_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("GATEWAY_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt("GATEWAY_SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)
	envBoolPtr("GATEWAY_SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)

	// Anthropic
	envString("GATEWAY_ANTHROPIC_API_KEY", &cfg.Anthropic.APIKey)
	envString("GATEWAY_ANTHROPIC_BASE_URL", &cfg.Anthropic.BaseURL)
	envDuration("GATEWAY_ANTHROPIC_TIMEOUT", &cfg.Anthropic.Timeout)
	envInt("GATEWAY_ANTHROPIC_MAX_RETRIES", &cfg.Anthropic.MaxRetries)
	envString("GATEWAY_ANTHROPIC_API_VERSION", &cfg.Anthropic.APIVersion)

	// Stream
	envDuration("GATEWAY_STREAM_IDLE_TIMEOUT", &cfg.Stream.IdleTimeout)
	envDuration("GATEWAY_STREAM_KEEPALIVE_INTERVAL", &cfg.Stream.KeepAliveInterval)
	envInt("GATEWAY_STREAM_BUFFER_SIZE", &cfg.Stream.BufferSize)

	// Batch
	envDuration("GATEWAY_BATCH_STALENESS_THRESHOLD", &cfg.Batch.StalenessThreshold)
	envDuration("GATEWAY_BATCH_REGISTRY_TTL", &cfg.Batch.RegistryTTL)
	envString("GATEWAY_BATCH_SWEEP_SCHEDULE", &cfg.Batch.SweepSchedule)
	envInt("GATEWAY_BATCH_LIST_DEFAULT_LIMIT", &cfg.Batch.ListDefaultLimit)
	envInt("GATEWAY_BATCH_LIST_MAX_LIMIT", &cfg.Batch.ListMaxLimit)

	// Catalog
	envString("GATEWAY_CATALOG_PATH", &cfg.Catalog.Path)
	envBool("GATEWAY_CATALOG_WATCH", &cfg.Catalog.Watch)

	// Audit
	envBoolPtr("GATEWAY_AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("GATEWAY_AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("GATEWAY_AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envDuration("GATEWAY_AUDIT_SQLITE_BUSY_TIMEOUT", &cfg.Audit.SQLite.BusyTimeout)
	envInt("GATEWAY_AUDIT_BUFFER_SIZE", &cfg.Audit.BufferSize)
	envDuration("GATEWAY_AUDIT_RETENTION_MAX_AGE", &cfg.Audit.Retention.MaxAge)
	envString("GATEWAY_AUDIT_RETENTION_SCHEDULE", &cfg.Audit.Retention.Schedule)

	// Usage
	envBoolPtr("GATEWAY_USAGE_ENABLED", &cfg.Usage.Enabled)
	envString("GATEWAY_USAGE_BACKEND", &cfg.Usage.Backend)
	envString("GATEWAY_USAGE_SQLITE_PATH", &cfg.Usage.SQLite.Path)

	// Telemetry
	envString("GATEWAY_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("GATEWAY_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("GATEWAY_TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBoolPtr("GATEWAY_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("GATEWAY_TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
	envBool("GATEWAY_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("GATEWAY_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("GATEWAY_TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
	envFloat("GATEWAY_TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	envBoolPtr("GATEWAY_TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envBoolPtr(name string, dst **bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}
