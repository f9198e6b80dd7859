// Package buildpass runs one generation pass: load the schema, filter it,
// resolve aggregate columns, render the generated code, and write it out.
package buildpass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aggregen/internal/aggregate"
	"aggregen/internal/codegen"
	"aggregen/internal/introspection"
	"aggregen/internal/logging"
	"aggregen/internal/naming"
	"aggregen/internal/observability"
	"aggregen/internal/platform"
	"aggregen/internal/schema"
	"aggregen/internal/schemafile"
	"aggregen/internal/schemafilter"
	"aggregen/internal/schemanaming"
)

// Schema sources.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// Config defines the inputs of a pass.
type Config struct {
	Source string
	// SchemaFile is the full definition for a file source and an optional
	// behaviors overlay for a database source.
	SchemaFile string
	// PlatformName overrides the schema file platform when set.
	PlatformName      string
	IdentifierQuoting bool
	TablePrefix       string

	// Queryer and Target are used by the database source.
	Queryer introspection.Queryer
	Target  introspection.Target

	Filters         schemafilter.Config
	Naming          naming.Config
	AmbiguityPolicy aggregate.AmbiguityPolicy

	Package   string
	OutputDir string
	DDLFile   string
	DryRun    bool

	Logger  *logging.Logger
	Metrics *observability.BuildMetrics
}

// Result contains the artifacts of a pass.
type Result struct {
	BuildID    string
	Database   *schema.Database
	Aggregates aggregate.Result
	Files      []codegen.File
	DDL        string
	// Fingerprint is a digest of the generated files and DDL, stable across
	// passes over the same input.
	Fingerprint string
	BuiltAt     time.Time
	Duration    time.Duration
}

// AddedColumnCount returns the number of target columns added to the schema.
func (r *Result) AddedColumnCount() int {
	n := 0
	for _, tr := range r.Aggregates.Tables {
		n += len(tr.AddedColumns)
	}
	return n
}

// Run executes a pass. Nothing is written when any stage fails.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.FromContext(ctx)
	}
	buildID := logging.NewBuildID()
	logger := cfg.Logger.WithBuildID(buildID).WithFields(slog.String("component", "buildpass"))
	ctx = logging.WithBuildIDContext(logging.WithLogger(ctx, logger), buildID)

	ctx, span := startSpan(ctx, "buildpass.run",
		attribute.String("build_id", buildID),
		attribute.String("source", cfg.Source),
	)
	defer span.End()

	start := time.Now()
	result, err := run(ctx, cfg, logger)
	duration := time.Since(start)

	stats := observability.BuildStats{Source: cfg.Source, Duration: duration, Success: err == nil}
	if err != nil {
		recordSpanError(span, err)
		cfg.Metrics.RecordBuild(ctx, stats)
		logger.Error("build pass failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return nil, err
	}

	result.BuildID = buildID
	result.Duration = duration
	stats.Tables = len(result.Aggregates.Tables)
	stats.Bindings = result.Aggregates.BindingCount()
	stats.Artifacts = result.Aggregates.ArtifactCount()
	stats.Columns = result.AddedColumnCount()
	cfg.Metrics.RecordBuild(ctx, stats)

	span.SetAttributes(
		attribute.Int("tables", stats.Tables),
		attribute.Int("bindings", stats.Bindings),
		attribute.Int("files", len(result.Files)),
	)
	logger.Info("build pass complete",
		slog.Int("tables", stats.Tables),
		slog.Int("bindings", stats.Bindings),
		slog.Int("artifacts", stats.Artifacts),
		slog.Int("added_columns", stats.Columns),
		slog.Int("files", len(result.Files)),
		slog.String("fingerprint", result.Fingerprint),
		slog.Duration("duration", duration),
		slog.Bool("dry_run", cfg.DryRun),
	)
	return result, nil
}

func run(ctx context.Context, cfg Config, logger *logging.Logger) (*Result, error) {
	db, err := loadSchema(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.TablePrefix != "" {
		db.TablePrefix = cfg.TablePrefix
	}
	db.Platform = db.Platform.WithIdentifierQuoting(cfg.IdentifierQuoting)

	before := len(db.Tables)
	schemafilter.Apply(db, cfg.Filters)
	if removed := before - len(db.Tables); removed > 0 {
		logger.Debug("schema filters removed tables", slog.Int("removed", removed))
	}

	namer := naming.New(cfg.Naming, logger.Logger)
	schemanaming.Apply(db, namer)

	processor := aggregate.NewProcessor(db, aggregate.Options{
		AmbiguityPolicy: cfg.AmbiguityPolicy,
		Namer:           namer,
		Logger:          logger.Logger,
	})
	aggregates, err := processor.Run(ctx)
	if err != nil {
		return nil, err
	}

	files, err := render(ctx, cfg.Package, namer, db, aggregates)
	if err != nil {
		return nil, err
	}
	ddl := codegen.DDL(db.Platform, aggregates)

	result := &Result{
		Database:    db,
		Aggregates:  aggregates,
		Files:       files,
		DDL:         ddl,
		Fingerprint: fingerprint(files, ddl),
		BuiltAt:     time.Now(),
	}

	if cfg.DryRun {
		return result, nil
	}
	if err := write(ctx, cfg, result); err != nil {
		return nil, err
	}
	return result, nil
}

func loadSchema(ctx context.Context, cfg Config) (*schema.Database, error) {
	ctx, span := startSpan(ctx, "buildpass.load_schema", attribute.String("source", cfg.Source))
	defer span.End()

	var (
		db  *schema.Database
		err error
	)
	switch cfg.Source {
	case SourceFile, "":
		db, err = loadSchemaFile(cfg)
	case SourceDatabase:
		db, err = introspectDatabase(ctx, cfg)
	default:
		err = fmt.Errorf("unknown schema source %q", cfg.Source)
	}
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("tables", len(db.Tables)))
	return db, nil
}

func loadSchemaFile(cfg Config) (*schema.Database, error) {
	f, err := schemafile.Load(cfg.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file %s: %w", cfg.SchemaFile, err)
	}
	db, err := f.Build(cfg.PlatformName)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema from %s: %w", cfg.SchemaFile, err)
	}
	return db, nil
}

func introspectDatabase(ctx context.Context, cfg Config) (*schema.Database, error) {
	if cfg.Queryer == nil {
		return nil, fmt.Errorf("database source requires a connection")
	}
	name := cfg.PlatformName
	if name == "" {
		name = "mysql"
	}
	p, err := platform.Lookup(name)
	if err != nil {
		return nil, err
	}

	db, err := introspection.Introspect(ctx, cfg.Queryer, p, cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	if cfg.SchemaFile == "" {
		return db, nil
	}

	f, err := schemafile.Load(cfg.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file %s: %w", cfg.SchemaFile, err)
	}
	if err := f.Overlay(db); err != nil {
		return nil, fmt.Errorf("failed to apply behaviors from %s: %w", cfg.SchemaFile, err)
	}
	return db, nil
}

func render(ctx context.Context, pkg string, namer *naming.Namer, db *schema.Database, aggregates aggregate.Result) ([]codegen.File, error) {
	_, span := startSpan(ctx, "buildpass.render", attribute.Int("artifacts", aggregates.ArtifactCount()))
	defer span.End()

	gen, err := codegen.New(pkg, namer)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	files, err := gen.Generate(db, aggregates)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to render generated code: %w", err)
	}
	return files, nil
}

func write(ctx context.Context, cfg Config, result *Result) error {
	_, span := startSpan(ctx, "buildpass.write", attribute.String("dir", cfg.OutputDir))
	defer span.End()

	if len(result.Files) > 0 {
		if err := codegen.WriteFiles(cfg.OutputDir, result.Files); err != nil {
			recordSpanError(span, err)
			return err
		}
	}
	if cfg.DDLFile != "" && result.DDL != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DDLFile), 0o755); err != nil {
			recordSpanError(span, err)
			return fmt.Errorf("create DDL directory: %w", err)
		}
		if err := os.WriteFile(cfg.DDLFile, []byte(result.DDL), 0o644); err != nil {
			recordSpanError(span, err)
			return fmt.Errorf("write %s: %w", cfg.DDLFile, err)
		}
	}
	return nil
}

func fingerprint(files []codegen.File, ddl string) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write(f.Content)
		h.Write([]byte{0})
	}
	h.Write([]byte(ddl))
	return hex.EncodeToString(h.Sum(nil))
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("aggregen/buildpass")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
