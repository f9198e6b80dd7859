// Package schema is the in-memory table model a build pass works on: tables,
// columns, foreign keys, and the behaviors attached to tables. Tables are owned
// by a Database registry and looked up by qualified name.
package schema

import (
	"fmt"
	"strings"

	"aggregen/internal/platform"
)

// Column represents a table column
type Column struct {
	Name         string
	Type         string
	IsPrimaryKey bool
	IsNullable   bool
	HasDefault   bool
	Default      string
	Comment      string
	// Accessor is the resolved accessor identifier; empty means derived from Name.
	Accessor string
}

// Table represents a table in the schema graph.
type Table struct {
	// Name is the table name including any database prefix, without schema.
	Name    string
	Schema  string
	Comment string
	// TypeName is the resolved Go type name of the table's generated object.
	TypeName string
	Columns  []Column
	// ForeignKeys holds one row per FK column, grouped by ForeignKeyConstraints.
	ForeignKeys []ForeignKey

	behaviors []Behavior
}

// Database is the table registry for one build pass.
type Database struct {
	Name        string
	TablePrefix string
	Platform    platform.Platform
	Tables      []*Table

	index map[string]*Table
}

// NewDatabase creates an empty registry.
func NewDatabase(name string, p platform.Platform) *Database {
	return &Database{
		Name:     name,
		Platform: p,
		index:    make(map[string]*Table),
	}
}

// QualifiedName returns schema.name when the table carries a schema, otherwise name.
func (t *Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// AddColumn appends a column. Callers check HasColumn first.
func (t *Table) AddColumn(col Column) {
	t.Columns = append(t.Columns, col)
}

// PrimaryKeyColumns returns all primary key columns in column order.
func (t *Table) PrimaryKeyColumns() []Column {
	var cols []Column
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols
}

// AddTable registers a table. Qualified names must be unique.
func (d *Database) AddTable(t *Table) error {
	if d.index == nil {
		d.index = make(map[string]*Table)
	}
	key := t.QualifiedName()
	if _, exists := d.index[key]; exists {
		return fmt.Errorf("duplicate table %q in database %q", key, d.Name)
	}
	d.index[key] = t
	d.Tables = append(d.Tables, t)
	return nil
}

// Table looks up a table by qualified name.
func (d *Database) Table(qualifiedName string) (*Table, bool) {
	t, ok := d.index[qualifiedName]
	return t, ok
}

// QualifyTableName applies the table prefix to base and, when the platform
// supports schemas and schemaName is set, the schema qualifier.
func (d *Database) QualifyTableName(schemaName, base string) string {
	name := d.TablePrefix + base
	schemaName = strings.TrimSpace(schemaName)
	if d.Platform.SupportsSchemas && schemaName != "" {
		name = schemaName + "." + name
	}
	return name
}

// RemoveTables drops every table for which keep returns false, preserving order.
func (d *Database) RemoveTables(keep func(*Table) bool) {
	kept := d.Tables[:0]
	for _, t := range d.Tables {
		if keep(t) {
			kept = append(kept, t)
			continue
		}
		delete(d.index, t.QualifiedName())
	}
	d.Tables = kept
}
