// Package schemafilter applies allow/deny filters to an introspected table registry.
package schemafilter

import (
	"path"
	"slices"
	"strings"

	"aggregen/internal/schema"
)

// Config controls allow/deny filters for tables and columns. Patterns are
// case-insensitive globs matched against qualified table names.
type Config struct {
	AllowTables  []string            `mapstructure:"allow_tables"`
	DenyTables   []string            `mapstructure:"deny_tables"`
	AllowColumns map[string][]string `mapstructure:"allow_columns"`
	DenyColumns  map[string][]string `mapstructure:"deny_columns"`
}

// Apply filters tables, columns, and foreign keys in place.
// Missing allow lists default to allow-all; deny rules always win.
func Apply(db *schema.Database, cfg Config) {
	if db == nil {
		return
	}

	db.RemoveTables(func(t *schema.Table) bool {
		return tableAllowed(t.QualifiedName(), cfg.AllowTables, cfg.DenyTables)
	})

	allowedColumnsByTable := make(map[string]map[string]bool, len(db.Tables))
	for _, table := range db.Tables {
		name := table.QualifiedName()
		allowedColumns := make(map[string]bool)
		filteredColumns := make([]schema.Column, 0, len(table.Columns))
		for _, column := range table.Columns {
			if !columnAllowed(name, column.Name, cfg.AllowColumns, cfg.DenyColumns) {
				continue
			}
			filteredColumns = append(filteredColumns, column)
			allowedColumns[column.Name] = true
		}
		table.Columns = filteredColumns
		allowedColumnsByTable[name] = allowedColumns
	}

	for _, table := range db.Tables {
		allowedColumns := allowedColumnsByTable[table.QualifiedName()]
		table.ForeignKeys = filterForeignKeys(table.ForeignKeys, allowedColumns, allowedColumnsByTable)
	}
}

func tableAllowed(table string, allow, deny []string) bool {
	if matchesAny(table, deny) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesAny(table, allow)
}

func columnAllowed(table, column string, allow, deny map[string][]string) bool {
	denyPatterns := mergePatterns(deny, table)
	if matchesAny(column, denyPatterns) {
		return false
	}
	allowPatterns := mergePatterns(allow, table)
	if len(allowPatterns) == 0 {
		return true
	}
	return matchesAny(column, allowPatterns)
}

func mergePatterns(patterns map[string][]string, table string) []string {
	if patterns == nil {
		return nil
	}
	combined := append([]string{}, patterns["*"]...)
	combined = append(combined, patterns[table]...)
	return slices.Compact(combined)
}

// filterForeignKeys drops FK rows whose local column, referenced table, or
// referenced column was filtered out.
func filterForeignKeys(fks []schema.ForeignKey, allowedColumns map[string]bool, allowedColumnsByTable map[string]map[string]bool) []schema.ForeignKey {
	filtered := make([]schema.ForeignKey, 0, len(fks))
	for _, fk := range fks {
		if !allowedColumns[fk.ColumnName] {
			continue
		}
		remoteColumns := allowedColumnsByTable[fk.ReferencedTable]
		if remoteColumns == nil || !remoteColumns[fk.ReferencedColumn] {
			continue
		}
		filtered = append(filtered, fk)
	}
	return filtered
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		// matching should be case-insensitive
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
