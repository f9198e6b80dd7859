package config

import (
	"fmt"
	"go/token"
	"net"
	"net/url"
	"path"
	"regexp"
	"strings"

	"aggregen/internal/aggregate"
	"aggregen/internal/naming"
	"aggregen/internal/platform"
	"aggregen/internal/schemafilter"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Platform.validate(result)
	c.Source.validate(result)
	if c.Source.Kind == SourceDatabase {
		c.Database.validate(c.Platform.Name, result)
	}

	if _, err := aggregate.ParseAmbiguityPolicy(c.Aggregate.AmbiguousRelationships); err != nil {
		result.addError("aggregate.ambiguous_relationships", err.Error(), "valid values are: first, error")
	}

	c.Output.validate(result)
	c.Observability.validate(result)
	validateSchemaFilters(result, c.SchemaFilters)
	validateNamingConfig(result, c.Naming)

	return result
}

func (p *PlatformConfig) validate(result *ValidationResult) {
	if p.Name == "" {
		return
	}
	if _, err := platform.Lookup(p.Name); err != nil {
		result.addError("platform.name", err.Error(), "valid values are: "+strings.Join(platform.Names(), ", "))
	}
}

func (s *SourceConfig) validate(result *ValidationResult) {
	switch s.Kind {
	case SourceFile:
		if strings.TrimSpace(s.SchemaFile) == "" {
			result.addError("source.schema_file", "schema file is required for a file source", "set source.schema_file or use --source.schema_file")
		}
	case SourceDatabase:
		if strings.TrimSpace(s.SchemaFile) == "" {
			result.addWarning("source.schema_file", "no schema file configured for the database source", "behaviors are read from the schema file; without one no aggregate columns are generated")
		}
	default:
		result.addError("source.kind", fmt.Sprintf("invalid source kind %q", s.Kind), "valid values are: file, database")
	}
}

func (d *DatabaseConfig) validate(platformName string, result *ValidationResult) {
	p, err := platform.Lookup(EffectivePlatformName(platformName))
	if err == nil && p.DriverName() != "mysql" && p.DriverName() != "pgx" {
		result.addError("platform.name", fmt.Sprintf("platform %q cannot be introspected", p.Name), "use mysql or pgsql with a database source")
		return
	}

	if strings.TrimSpace(d.ConnectionString) != "" {
		if err == nil {
			if _, dbErr := d.EffectiveDatabaseName(p.Name); dbErr != nil {
				result.addError("database.dsn", dbErr.Error(), "")
			}
		}
		if d.Password != "" || d.PasswordPrompt {
			result.addWarning("database.password", "password settings are ignored when database.dsn is set", "")
		}
		return
	}

	if strings.TrimSpace(d.Host) == "" {
		result.addError("database.host", "database host is required", "set database.host or database.dsn")
	}
	if d.Port < 0 || d.Port > 65535 {
		result.addError("database.port", fmt.Sprintf("port must be between 0 and 65535, got %d", d.Port), "")
	}
	if strings.TrimSpace(d.Database) == "" {
		result.addError("database.database", "database name is required", "set database.database or include it in database.dsn")
	}
	if d.ConnectTimeout < 0 {
		result.addError("database.connect_timeout", "connect timeout cannot be negative", "")
	}
	if d.Schema != "" && err == nil && p.Name == "mysql" {
		result.addWarning("database.schema", "schema is ignored for mysql; the database name selects the catalog", "")
	}
}

// EffectivePlatformName returns the platform used for live introspection
// when none is configured.
func EffectivePlatformName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "mysql"
	}
	return name
}

var goPackagePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func (o *OutputConfig) validate(result *ValidationResult) {
	if !goPackagePattern.MatchString(o.Package) || token.IsKeyword(o.Package) {
		result.addError("output.package", fmt.Sprintf("invalid Go package name %q", o.Package), "use a lower-case identifier such as models")
	}
	if !o.DryRun && strings.TrimSpace(o.Dir) == "" {
		result.addError("output.dir", "output directory is required unless output.dry_run is set", "")
	}
}

func validateSchemaFilters(result *ValidationResult, filters schemafilter.Config) {
	validateGlobList(result, "schema_filters.allow_tables", filters.AllowTables)
	validateGlobList(result, "schema_filters.deny_tables", filters.DenyTables)
	validatePatternMap(result, "schema_filters.allow_columns", filters.AllowColumns)
	validatePatternMap(result, "schema_filters.deny_columns", filters.DenyColumns)
}

var pascalCasePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	validateIdentifierOverrides(result, "naming.type_overrides", "table", cfg.TypeOverrides)
	validateIdentifierOverrides(result, "naming.accessor_overrides", "column", cfg.AccessorOverrides)
}

func validateIdentifierOverrides(result *ValidationResult, field, subject string, overrides map[string]string) {
	for source, ident := range overrides {
		source = strings.TrimSpace(source)
		ident = strings.TrimSpace(ident)
		if source == "" {
			result.addError(field, subject+" name cannot be empty", "")
			continue
		}
		if ident == "" {
			result.addError(field, fmt.Sprintf("override for %s %q cannot be empty", subject, source), "")
			continue
		}
		if !pascalCasePattern.MatchString(ident) {
			result.addError(field, fmt.Sprintf("override %q for %s %q must be PascalCase", ident, subject, source), "")
		}
	}
}

func validatePatternMap(result *ValidationResult, field string, patternMap map[string][]string) {
	for tablePattern, columnPatterns := range patternMap {
		if strings.TrimSpace(tablePattern) == "" {
			result.addError(field, "table pattern cannot be empty", "")
			continue
		}
		if _, err := path.Match(strings.ToLower(tablePattern), "probe"); err != nil {
			result.addError(field, fmt.Sprintf("invalid table glob pattern %q: %v", tablePattern, err), "")
		}
		for _, columnPattern := range columnPatterns {
			if strings.TrimSpace(columnPattern) == "" {
				result.addError(field, fmt.Sprintf("column pattern for table pattern %q cannot be empty", tablePattern), "")
				continue
			}
			if _, err := path.Match(strings.ToLower(columnPattern), "probe"); err != nil {
				result.addError(field, fmt.Sprintf("invalid column glob pattern %q for table pattern %q: %v", columnPattern, tablePattern, err), "")
			}
		}
	}
}

func validateGlobList(result *ValidationResult, field string, patterns []string) {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			result.addError(field, "glob pattern cannot be empty", "")
			continue
		}
		if _, err := path.Match(strings.ToLower(pattern), "probe"); err != nil {
			result.addError(field, fmt.Sprintf("invalid glob pattern %q: %v", pattern, err), "")
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level), "valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format), "valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio", fmt.Sprintf("sample ratio must be between 0 and 1, got %g", o.TraceSampleRatio), "")
	}

	if !o.TracingEnabled && !o.Logging.ExportsEnabled {
		return
	}
	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol), "valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint), "use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression), "valid values are: none, gzip")
	}

	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
