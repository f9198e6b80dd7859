// Package platform describes the SQL dialects generated code targets: how
// identifiers are quoted, whether schema-qualified names exist, and which
// placeholder style catalog queries use.
package platform

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"aggregen/internal/sqlutil"
)

// Platform is an SQL dialect descriptor.
type Platform struct {
	Name string
	// SupportsSchemas reports whether table names may carry a schema qualifier.
	SupportsSchemas bool
	// IdentifierQuoting enables quoting of table references in generated SQL.
	IdentifierQuoting bool
	// IntegerType is the column type used for added aggregate columns.
	IntegerType string

	quote       string
	placeholder sq.PlaceholderFormat
	driver      string
}

var platforms = map[string]Platform{
	"mysql": {
		Name:            "mysql",
		SupportsSchemas: true,
		IntegerType:     "INTEGER",
		quote:           "`",
		placeholder:     sq.Question,
		driver:          "mysql",
	},
	"pgsql": {
		Name:            "pgsql",
		SupportsSchemas: true,
		IntegerType:     "INTEGER",
		quote:           `"`,
		placeholder:     sq.Dollar,
		driver:          "pgx",
	},
	"sqlite": {
		Name:            "sqlite",
		SupportsSchemas: false,
		IntegerType:     "INTEGER",
		quote:           `"`,
		placeholder:     sq.Question,
		driver:          "sqlite",
	},
}

var aliases = map[string]string{
	"tidb":       "mysql",
	"mariadb":    "mysql",
	"postgres":   "pgsql",
	"postgresql": "pgsql",
	"pgx":        "pgsql",
	"sqlite3":    "sqlite",
}

// Lookup returns the platform registered under name (case-insensitive).
func Lookup(name string) (Platform, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	p, ok := platforms[key]
	if !ok {
		return Platform{}, fmt.Errorf("unsupported platform %q (supported: mysql, pgsql, sqlite)", name)
	}
	return p, nil
}

// Names lists the canonical platform names.
func Names() []string {
	return []string{"mysql", "pgsql", "sqlite"}
}

// WithIdentifierQuoting returns a copy of p with quoting switched on or off.
func (p Platform) WithIdentifierQuoting(enabled bool) Platform {
	p.IdentifierQuoting = enabled
	return p
}

// QuoteIdentifier quotes a possibly schema-qualified identifier when quoting is
// enabled; otherwise it returns name unchanged.
func (p Platform) QuoteIdentifier(name string) string {
	if !p.IdentifierQuoting {
		return name
	}
	return sqlutil.QuoteQualified(name, p.quote)
}

// Placeholder returns the bind-parameter style used for catalog queries.
func (p Platform) Placeholder() sq.PlaceholderFormat {
	if p.placeholder == nil {
		return sq.Question
	}
	return p.placeholder
}

// DriverName returns the database/sql driver name for live introspection.
func (p Platform) DriverName() string {
	return p.driver
}
