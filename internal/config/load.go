package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes environment variables: AGGREGEN_OUTPUT_DIR sets output.dir.
const EnvPrefix = "AGGREGEN"

// Flags that control the command itself rather than configuration keys.
const (
	FlagConfig  = "config"
	FlagEnvFile = "env_file"
	FlagVersion = "version"
	FlagCheck   = "check"
)

var commandFlags = map[string]bool{
	FlagConfig:  true,
	FlagEnvFile: true,
	FlagVersion: true,
	FlagCheck:   true,
}

// NewFlagSet defines all command line flags using canonical snake_case keys.
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)

	flags.String(FlagConfig, "", "Path to config file")
	flags.String(FlagEnvFile, "", "Path to a .env file loaded before reading environment variables (default: .env if present)")
	flags.Bool(FlagVersion, false, "Print version and exit")
	flags.Bool(FlagCheck, false, "Resolve aggregate columns and print a summary without writing files")

	// Source flags
	flags.String("source.kind", "", "Schema source: file or database")
	flags.String("source.schema_file", "", "YAML schema definition (behaviors overlay for database sources)")

	// Database flags
	flags.String("database.dsn", "", "Complete database DSN")
	flags.String("database.dsn_file", "", "Path to file containing the DSN (use @- for stdin)")
	flags.String("database.host", "", "Database host")
	flags.Int("database.port", 0, "Database port")
	flags.String("database.user", "", "Database user")
	flags.String("database.password", "", "Database password")
	flags.String("database.password_file", "", "Path to file containing database password (use @- for stdin)")
	flags.Bool("database.password_prompt", false, "Prompt for database password securely")
	flags.String("database.database", "", "Database name")
	flags.String("database.schema", "", "PostgreSQL schema to introspect")
	flags.String("database.tls_mode", "", "TLS mode passed to the driver")
	flags.Duration("database.connect_timeout", 0, "Timeout for connecting and introspecting")

	// Platform flags
	flags.String("platform.name", "", "SQL dialect of generated queries (mysql, pgsql, sqlite); defaults to the schema file platform")
	flags.Bool("platform.identifier_quoting", false, "Quote table identifiers in generated queries")
	flags.String("platform.table_prefix", "", "Table prefix override")

	// Aggregate flags
	flags.String("aggregate.ambiguous_relationships", "", "Policy when several foreign keys link two tables (first, error)")

	// Output flags
	flags.String("output.dir", "", "Directory receiving generated Go files")
	flags.String("output.package", "", "Package name of generated Go files")
	flags.String("output.ddl_file", "", "File receiving ALTER TABLE statements for added columns")
	flags.Bool("output.dry_run", false, "Render without writing files")

	// Schema filter flags
	flags.StringSlice("schema_filters.allow_tables", nil, "Table globs to include (comma-separated or repeated)")
	flags.StringSlice("schema_filters.deny_tables", nil, "Table globs to exclude (comma-separated or repeated)")

	// Observability flags
	flags.String("observability.service_name", "", "Service name for observability")
	flags.String("observability.service_version", "", "Service version for observability")
	flags.String("observability.environment", "", "Environment name (dev, staging, prod)")
	flags.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
	flags.Float64("observability.trace_sample_ratio", 0, "Trace sample ratio (0..1)")
	flags.String("observability.metrics_file", "", "Write build metrics in Prometheus text format to this file")
	flags.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	flags.String("observability.logging.format", "", "Log format (json, text)")
	flags.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")
	flags.String("observability.otlp.endpoint", "", "OTLP endpoint (host:port or URL)")
	flags.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	flags.Bool("observability.otlp.insecure", false, "Disable TLS for OTLP export")

	return flags
}

// Load loads configuration with the following precedence:
// 1. Explicit overrides (v.Set) – used only for secret files and the password prompt
// 2. Command line flags
// 3. Environment variables (including a .env file)
// 4. Config file
// 5. Default values
//
// flags must have been created by NewFlagSet and parsed.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// --- Config file ---
	cfgPath, _ := flags.GetString(FlagConfig)
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("aggregen")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.aggregen")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	envFile, _ := flags.GetString(FlagEnvFile)
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	// Canonical keys: dot + snake_case
	// Env vars: AGGREGEN_OUTPUT_DDL_FILE
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest normal priority) ---
	bindChangedFlagsToViper(flags, v)
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	// --- DSN from file (explicit override) ---
	if v.GetString("database.dsn") == "" && v.GetString("database.dsn_file") != "" {
		dsn, err := readSecretFile(v.GetString("database.dsn_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read database DSN file: %w", err)
		}
		v.Set("database.dsn", dsn)
	}

	// --- Secure password input (explicit override) ---
	if v.GetString("database.password") == "" && v.GetString("database.password_file") != "" {
		pwd, err := readSecretFile(v.GetString("database.password_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read database password file: %w", err)
		}
		v.Set("database.password", pwd)
	}
	if v.GetString("source.kind") == SourceDatabase &&
		v.GetString("database.dsn") == "" &&
		v.GetString("database.password") == "" &&
		v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToStringSliceHookFunc(","),
	)
}

// loadEnvFile loads variables from a .env file without overriding variables
// already present in the environment. A missing default file is not an error.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Visit(func(f *pflag.Flag) {
		if commandFlags[f.Name] {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := flags.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := flags.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := flags.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := flags.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := flags.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := flags.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.kind", SourceFile)
	v.SetDefault("source.schema_file", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.dsn_file", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.password_file", "")
	v.SetDefault("database.password_prompt", false)
	v.SetDefault("database.database", "")
	v.SetDefault("database.schema", "")
	v.SetDefault("database.tls_mode", "")
	v.SetDefault("database.connect_timeout", 30*time.Second)

	v.SetDefault("platform.name", "")
	v.SetDefault("platform.identifier_quoting", false)
	v.SetDefault("platform.table_prefix", "")

	v.SetDefault("aggregate.ambiguous_relationships", "first")

	v.SetDefault("output.dir", "generated")
	v.SetDefault("output.package", "models")
	v.SetDefault("output.ddl_file", "")
	v.SetDefault("output.dry_run", false)

	v.SetDefault("naming.plural_overrides", map[string]string{})
	v.SetDefault("naming.singular_overrides", map[string]string{})
	v.SetDefault("naming.type_overrides", map[string]string{})
	v.SetDefault("naming.accessor_overrides", map[string]string{})

	v.SetDefault("schema_filters.allow_tables", []string{"*"})
	v.SetDefault("schema_filters.deny_tables", []string{})
	v.SetDefault("schema_filters.allow_columns", map[string][]string{})
	v.SetDefault("schema_filters.deny_columns", map[string][]string{})

	v.SetDefault("observability.service_name", "aggregen")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.metrics_file", "")
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 5)
}

// promptPassword prompts the user for a password without echoing to terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"database.dsn_file",
		"database.password_file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}

	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
