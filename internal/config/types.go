// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"time"

	"aggregen/internal/naming"
	"aggregen/internal/schemafilter"
)

// Config holds the application configuration.
type Config struct {
	Source        SourceConfig        `mapstructure:"source"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Platform      PlatformConfig      `mapstructure:"platform"`
	Aggregate     AggregateConfig     `mapstructure:"aggregate"`
	Output        OutputConfig        `mapstructure:"output"`
	Naming        naming.Config       `mapstructure:"naming"`
	SchemaFilters schemafilter.Config `mapstructure:"schema_filters"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Schema source kinds.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// SourceConfig selects where the schema comes from.
type SourceConfig struct {
	// Kind is "file" (YAML schema definition) or "database" (live introspection).
	Kind string `mapstructure:"kind"`
	// SchemaFile is the YAML schema definition. With a database source it is
	// optional and only its behaviors are applied on top of the introspected tables.
	SchemaFile string `mapstructure:"schema_file"`
}

// DatabaseConfig holds connection parameters for live introspection.
type DatabaseConfig struct {
	// ConnectionString is a complete driver DSN. When set, overrides the
	// discrete fields below.
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile is a path to a file containing the DSN.
	// Supports "@-" to read from stdin.
	ConnectionStringFile string `mapstructure:"dsn_file"`

	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`
	// Schema is the PostgreSQL schema to introspect (default: public).
	Schema  string `mapstructure:"schema"`
	TLSMode string `mapstructure:"tls_mode"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// PlatformConfig selects the SQL dialect of generated queries.
type PlatformConfig struct {
	Name              string `mapstructure:"name"` // mysql, pgsql, sqlite
	IdentifierQuoting bool   `mapstructure:"identifier_quoting"`
	// TablePrefix overrides the prefix declared by the schema file.
	TablePrefix string `mapstructure:"table_prefix"`
}

// AggregateConfig controls aggregate column resolution.
type AggregateConfig struct {
	// AmbiguousRelationships is "first" or "error".
	AmbiguousRelationships string `mapstructure:"ambiguous_relationships"`
}

// OutputConfig controls where generated code goes.
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	Package string `mapstructure:"package"`
	// DDLFile receives ALTER TABLE statements for added columns; empty disables it.
	DDLFile string `mapstructure:"ddl_file"`
	DryRun  bool   `mapstructure:"dry_run"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	MetricsFile      string        `mapstructure:"metrics_file"` // Prometheus textfile output
	Logging          LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP config for traces
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// GetLogsConfig returns the effective OTLP config for logs
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// mergeOTLPConfigs merges signal-specific config over global defaults
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	// A present override block always carries its own Insecure value.
	result.Insecure = override.Insecure

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}

	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	if override.RetryMaxAttempts != 0 {
		result.RetryEnabled = override.RetryEnabled
		result.RetryMaxAttempts = override.RetryMaxAttempts
	}

	return result
}
