// Package schemafile loads table definitions and their behaviors from YAML.
package schemafile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"aggregen/internal/aggregate"
	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

// File is the root of a schema definition file.
type File struct {
	Database    string  `yaml:"database"`
	Platform    string  `yaml:"platform"`
	TablePrefix string  `yaml:"table_prefix"`
	Tables      []Table `yaml:"tables"`
}

// Table is one table definition.
type Table struct {
	Name        string       `yaml:"name"`
	Schema      string       `yaml:"schema"`
	Comment     string       `yaml:"comment"`
	Columns     []Column     `yaml:"columns"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys"`
	Behaviors   []Behavior   `yaml:"behaviors"`
}

// Column is one column definition.
type Column struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Primary  bool    `yaml:"primary"`
	Nullable bool    `yaml:"nullable"`
	Default  *string `yaml:"default"`
	Accessor string  `yaml:"accessor"`
	Comment  string  `yaml:"comment"`
}

// ForeignKey is one (possibly composite) foreign key constraint.
type ForeignKey struct {
	Name              string   `yaml:"name"`
	ReferencedTable   string   `yaml:"referenced_table"`
	Columns           []string `yaml:"columns"`
	ReferencedColumns []string `yaml:"referenced_columns"`
}

// Behavior attaches a behavior by kind. Aggregate columns may use either the
// flat parameters or the structured columns list.
type Behavior struct {
	Kind       string            `yaml:"kind"`
	Name       string            `yaml:"name"`
	Parameters map[string]string `yaml:"parameters"`
	Columns    []aggregate.Spec  `yaml:"columns"`
}

// Load reads and decodes a schema definition file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a schema definition document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}
	return &f, nil
}

// Build creates a table registry from the file. A non-empty platformName
// overrides the file's platform.
func (f *File) Build(platformName string) (*schema.Database, error) {
	if platformName == "" {
		platformName = f.Platform
	}
	if platformName == "" {
		return nil, fmt.Errorf("schema file does not name a platform")
	}
	p, err := platform.Lookup(platformName)
	if err != nil {
		return nil, err
	}

	db := schema.NewDatabase(f.Database, p)
	db.TablePrefix = f.TablePrefix
	for _, def := range f.Tables {
		table, err := def.build()
		if err != nil {
			return nil, err
		}
		if err := db.AddTable(table); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Overlay attaches the file's behaviors to matching tables of an existing
// registry, such as one discovered from a live database. Columns and foreign
// keys in the file are ignored. Every table named in the file must exist.
func (f *File) Overlay(db *schema.Database) error {
	if f.TablePrefix != "" {
		db.TablePrefix = f.TablePrefix
	}
	for _, def := range f.Tables {
		key := qualified(def.Schema, def.Name)
		table, ok := db.Table(key)
		if !ok {
			return fmt.Errorf("schema file table %q not found in database %q", key, db.Name)
		}
		if err := attachBehaviors(table, def.Behaviors); err != nil {
			return err
		}
	}
	return nil
}

func (def Table) build() (*schema.Table, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("schema file table without a name")
	}
	table := &schema.Table{
		Name:    def.Name,
		Schema:  def.Schema,
		Comment: def.Comment,
	}
	for _, c := range def.Columns {
		if table.HasColumn(c.Name) {
			return nil, fmt.Errorf("table %q: duplicate column %q", table.QualifiedName(), c.Name)
		}
		col := schema.Column{
			Name:         c.Name,
			Type:         c.Type,
			IsPrimaryKey: c.Primary,
			IsNullable:   c.Nullable,
			Accessor:     c.Accessor,
			Comment:      c.Comment,
		}
		if c.Default != nil {
			col.HasDefault = true
			col.Default = *c.Default
		}
		table.AddColumn(col)
	}
	for n, fk := range def.ForeignKeys {
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferencedColumns) {
			return nil, fmt.Errorf("table %q: foreign key %q must map the same number of columns on both sides", table.QualifiedName(), fk.Name)
		}
		// Rows of one constraint are grouped by name, so every list entry needs one.
		name := fk.Name
		if name == "" {
			name = fmt.Sprintf("%s_fk_%d", def.Name, n+1)
		}
		for i, col := range fk.Columns {
			table.ForeignKeys = append(table.ForeignKeys, schema.ForeignKey{
				ColumnName:       col,
				ReferencedTable:  fk.ReferencedTable,
				ReferencedColumn: fk.ReferencedColumns[i],
				ConstraintName:   name,
				OrdinalPosition:  i + 1,
			})
		}
	}
	if err := attachBehaviors(table, def.Behaviors); err != nil {
		return nil, err
	}
	return table, nil
}

// attachBehaviors adds the declared behaviors to table. Behaviors are keyed by
// name, so a repeated name is an error rather than a silent replacement.
func attachBehaviors(table *schema.Table, defs []Behavior) error {
	for _, b := range defs {
		behavior, err := b.build(table.QualifiedName())
		if err != nil {
			return err
		}
		if table.HasBehavior(behavior.Name()) {
			return fmt.Errorf("table %q: duplicate behavior %q; give each %s behavior a distinct name",
				table.QualifiedName(), behavior.Name(), b.Kind)
		}
		table.AddBehavior(behavior)
	}
	return nil
}

func (b Behavior) build(table string) (schema.Behavior, error) {
	if b.Kind == "" {
		return nil, fmt.Errorf("table %q: behavior without a kind", table)
	}
	params := b.params()

	if b.Kind != schema.KindAggregateColumn {
		if len(b.Columns) > 0 {
			return nil, fmt.Errorf("table %q: behavior %q does not accept columns", table, b.Kind)
		}
		return schema.DeclaredBehavior{BehaviorName: b.Name, BehaviorKind: b.Kind, Params: params}, nil
	}

	if len(b.Columns) > 0 {
		if len(b.Parameters) > 0 {
			return nil, fmt.Errorf("table %q: aggregate_column behavior mixes parameters and columns", table)
		}
		return &aggregate.ColumnBehavior{BehaviorName: b.Name, Specs: aggregate.Numbered(b.Columns)}, nil
	}
	specs, err := aggregate.ParseSpecs(params)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", table, err)
	}
	return &aggregate.ColumnBehavior{BehaviorName: b.Name, Specs: specs}, nil
}

// params returns the flat parameters sorted by name.
func (b Behavior) params() []schema.Parameter {
	names := make([]string, 0, len(b.Parameters))
	for name := range b.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	params := make([]schema.Parameter, 0, len(names))
	for _, name := range names {
		params = append(params, schema.Parameter{Name: name, Value: b.Parameters[name]})
	}
	return params
}

func qualified(schemaName, name string) string {
	if schemaName == "" {
		return name
	}
	return schemaName + "." + name
}
