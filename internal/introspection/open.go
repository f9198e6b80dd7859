package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"aggregen/internal/platform"
)

// OpenOptions configures a catalog connection.
type OpenOptions struct {
	DSN            string
	TracingEnabled bool
	Logger         *slog.Logger
}

// Open connects to the platform's database driver, instrumented with
// OpenTelemetry when tracing is enabled, and verifies the connection.
func Open(ctx context.Context, p platform.Platform, opts OpenOptions) (*sql.DB, error) {
	driver := p.DriverName()
	system, ok := dbSystem(p)
	if !ok {
		return nil, fmt.Errorf("platform %q has no database driver for introspection", p.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		db  *sql.DB
		err error
	)
	if opts.TracingEnabled {
		db, err = otelsql.Open(driver, opts.DSN,
			otelsql.WithAttributes(system),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		)
		logger.Debug("database instrumentation enabled", slog.String("driver", driver))
	} else {
		db, err = sql.Open(driver, opts.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// RegisterStatsMetrics exports connection pool statistics through the global
// meter provider. Callers unregister the returned registration on shutdown.
func RegisterStatsMetrics(db *sql.DB, p platform.Platform) (interface{ Unregister() error }, error) {
	system, ok := dbSystem(p)
	if !ok {
		return nil, fmt.Errorf("platform %q has no database driver for introspection", p.Name)
	}
	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(system))
	if err != nil {
		return nil, fmt.Errorf("failed to register database stats metrics: %w", err)
	}
	return reg, nil
}

func dbSystem(p platform.Platform) (attribute.KeyValue, bool) {
	switch p.Name {
	case "mysql":
		return semconv.DBSystemMySQL, true
	case "pgsql":
		return semconv.DBSystemPostgreSQL, true
	default:
		return attribute.KeyValue{}, false
	}
}
