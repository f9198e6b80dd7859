// Package introspection discovers tables, columns, primary keys, and foreign
// keys from a live database's information_schema.
package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

// DefaultPostgresSchema is the schema introspected on PostgreSQL when none is set.
const DefaultPostgresSchema = "public"

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Target selects what to introspect. On MySQL/TiDB the database is the
// catalog schema; on PostgreSQL Schema selects the namespace.
type Target struct {
	Database string
	Schema   string
}

// catalogSchema returns the information_schema TABLE_SCHEMA value to filter on.
func (t Target) catalogSchema(p platform.Platform) string {
	if p.Name == "pgsql" {
		if t.Schema == "" {
			return DefaultPostgresSchema
		}
		return t.Schema
	}
	return t.Database
}

// tableSchema returns the schema qualifier recorded on tables. Tables in the
// default namespace stay unqualified.
func (t Target) tableSchema(p platform.Platform, catalogSchema string) string {
	if p.Name == "pgsql" && catalogSchema != DefaultPostgresSchema {
		return catalogSchema
	}
	return ""
}

// Introspect builds a table registry from the database's catalog. Only base
// tables are read; views cannot carry aggregate columns.
func Introspect(ctx context.Context, db Queryer, p platform.Platform, target Target) (*schema.Database, error) {
	if p.Name != "mysql" && p.Name != "pgsql" {
		return nil, fmt.Errorf("live introspection is not supported on platform %q", p.Name)
	}
	catalogSchema := target.catalogSchema(p)

	ctx, span := startSpan(ctx, "introspection.build_schema",
		attribute.String("db.name", target.Database),
		attribute.String("db.schema", catalogSchema),
	)
	defer span.End()

	c := catalog{db: db, p: p, schema: catalogSchema, qualifier: target.tableSchema(p, catalogSchema)}
	result := schema.NewDatabase(target.Database, p)

	names, err := c.tables(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		columns, err := c.columns(ctx, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get columns for %s: %w", name, err)
		}
		primaryKeys, err := c.primaryKeys(ctx, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get primary keys for table %s: %w", name, err)
		}
		foreignKeys, err := c.foreignKeys(ctx, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get foreign keys for table %s: %w", name, err)
		}

		// Mark primary key columns
		for i := range columns {
			for _, pk := range primaryKeys {
				if columns[i].Name == pk {
					columns[i].IsPrimaryKey = true
					break
				}
			}
		}

		table := &schema.Table{
			Name:        name,
			Schema:      c.qualifier,
			Columns:     columns,
			ForeignKeys: foreignKeys,
		}
		if err := result.AddTable(table); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("db.tables", len(result.Tables)))
	return result, nil
}

type catalog struct {
	db        Queryer
	p         platform.Platform
	schema    string
	qualifier string
}

func (c catalog) query(ctx context.Context, b sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := b.PlaceholderFormat(c.p.Placeholder()).ToSql()
	if err != nil {
		return nil, err
	}
	return c.db.QueryContext(ctx, query, args...)
}

func (c catalog) tables(ctx context.Context) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_tables",
		attribute.String("db.schema", c.schema),
	)
	defer span.End()

	rows, err := c.query(ctx, sq.Select("TABLE_NAME").
		From("INFORMATION_SCHEMA.TABLES").
		Where(sq.Eq{"TABLE_SCHEMA": c.schema}).
		Where("TABLE_TYPE = 'BASE TABLE'").
		OrderBy("TABLE_NAME"))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return names, nil
}

func (c catalog) columns(ctx context.Context, tableName string) ([]schema.Column, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.schema", c.schema),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	rows, err := c.query(ctx, sq.Select("COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT").
		From("INFORMATION_SCHEMA.COLUMNS").
		Where(sq.Eq{"TABLE_SCHEMA": c.schema}).
		Where(sq.Eq{"TABLE_NAME": tableName}).
		OrderBy("ORDINAL_POSITION"))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var isNullable string
		var columnDefault sql.NullString
		if err := rows.Scan(&col.Name, &col.Type, &isNullable, &columnDefault); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		col.Type = strings.ToUpper(col.Type)
		col.IsNullable = strings.EqualFold(isNullable, "YES")
		if columnDefault.Valid {
			col.Default = columnDefault.String
			col.HasDefault = true
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

func (c catalog) primaryKeys(ctx context.Context, tableName string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_keys",
		attribute.String("db.schema", c.schema),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	rows, err := c.query(ctx, sq.Select("kcu.COLUMN_NAME").
		From("INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc").
		Join("INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA AND tc.TABLE_NAME = kcu.TABLE_NAME").
		Where("tc.CONSTRAINT_TYPE = 'PRIMARY KEY'").
		Where(sq.Eq{"tc.TABLE_SCHEMA": c.schema}).
		Where(sq.Eq{"tc.TABLE_NAME": tableName}).
		OrderBy("kcu.ORDINAL_POSITION"))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var primaryKeys []string
	for rows.Next() {
		var columnName string
		if err := rows.Scan(&columnName); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		primaryKeys = append(primaryKeys, columnName)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return primaryKeys, nil
}

// foreignKeysQuery reads one row per FK column. MySQL exposes the referenced
// columns on KEY_COLUMN_USAGE; PostgreSQL needs the referenced unique
// constraint's usage rows.
func (c catalog) foreignKeysQuery(tableName string) sq.SelectBuilder {
	if c.p.Name == "pgsql" {
		return sq.Select("kcu.COLUMN_NAME", "ccu.TABLE_SCHEMA", "ccu.TABLE_NAME", "ccu.COLUMN_NAME", "kcu.CONSTRAINT_NAME", "kcu.ORDINAL_POSITION").
			From("INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu").
			Join("INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME").
			Join("INFORMATION_SCHEMA.KEY_COLUMN_USAGE ccu ON ccu.CONSTRAINT_SCHEMA = rc.UNIQUE_CONSTRAINT_SCHEMA AND ccu.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME AND ccu.ORDINAL_POSITION = kcu.POSITION_IN_UNIQUE_CONSTRAINT").
			Where(sq.Eq{"kcu.TABLE_SCHEMA": c.schema}).
			Where(sq.Eq{"kcu.TABLE_NAME": tableName}).
			OrderBy("kcu.CONSTRAINT_NAME", "kcu.ORDINAL_POSITION")
	}
	return sq.Select("COLUMN_NAME", "REFERENCED_TABLE_SCHEMA", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME", "CONSTRAINT_NAME", "ORDINAL_POSITION").
		From("INFORMATION_SCHEMA.KEY_COLUMN_USAGE").
		Where(sq.Eq{"TABLE_SCHEMA": c.schema}).
		Where(sq.Eq{"TABLE_NAME": tableName}).
		Where("REFERENCED_TABLE_NAME IS NOT NULL").
		OrderBy("CONSTRAINT_NAME", "ORDINAL_POSITION")
}

func (c catalog) foreignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	ctx, span := startSpan(ctx, "introspection.get_foreign_keys",
		attribute.String("db.schema", c.schema),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	rows, err := c.query(ctx, c.foreignKeysQuery(tableName))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var foreignKeys []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		var referencedSchema sql.NullString
		if err := rows.Scan(&fk.ColumnName, &referencedSchema, &fk.ReferencedTable,
			&fk.ReferencedColumn, &fk.ConstraintName, &fk.OrdinalPosition); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		fk.ReferencedTable = c.referencedName(referencedSchema.String, fk.ReferencedTable)
		foreignKeys = append(foreignKeys, fk)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return foreignKeys, nil
}

// referencedName qualifies a referenced table the same way introspected tables are.
func (c catalog) referencedName(schemaName, tableName string) string {
	if schemaName == "" || schemaName == c.schema {
		if c.qualifier == "" {
			return tableName
		}
		return c.qualifier + "." + tableName
	}
	if c.p.Name == "pgsql" && schemaName == DefaultPostgresSchema {
		return tableName
	}
	return schemaName + "." + tableName
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("aggregen/introspection")
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
