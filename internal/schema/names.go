package schema

import "aggregen/internal/naming"

// defaultNamer is the package-level namer used when no accessor was resolved.
var defaultNamer = naming.Default()

// AccessorName returns the resolved accessor identifier for a column.
func (c Column) AccessorName() string {
	if c.Accessor != "" {
		return c.Accessor
	}
	return defaultNamer.AccessorName(c.Name)
}

// GoTypeName returns the resolved Go type name for a table.
func (t *Table) GoTypeName() string {
	if t.TypeName != "" {
		return t.TypeName
	}
	return defaultNamer.TypeName(t.QualifiedName())
}
