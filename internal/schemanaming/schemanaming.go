// Package schemanaming applies naming rules to schema elements.
package schemanaming

import (
	"aggregen/internal/naming"
	"aggregen/internal/schema"
)

// Apply assigns Go type names to tables and accessor identifiers to columns
// using the provided namer. It resets collision state to ensure deterministic
// naming per build pass. Accessors already set are kept.
func Apply(db *schema.Database, namer *naming.Namer) {
	if db == nil {
		return
	}
	if namer == nil {
		namer = naming.Default()
	}
	namer.Reset()

	for _, table := range db.Tables {
		table.TypeName = namer.RegisterType(table.QualifiedName())

		for ci := range table.Columns {
			col := &table.Columns[ci]
			if col.Accessor == "" {
				col.Accessor = namer.AccessorName(col.Name)
			}
		}
	}
}
