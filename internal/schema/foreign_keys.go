package schema

import (
	"fmt"
	"sort"
)

// ForeignKey represents one column of a foreign key constraint.
type ForeignKey struct {
	ColumnName       string // e.g., "invoice_id"
	ReferencedTable  string // qualified name, e.g., "invoice"
	ReferencedColumn string // e.g., "id"
	ConstraintName   string // e.g., "invoice_line_fk_1"
	OrdinalPosition  int    // Column position within the FK constraint
}

// ForeignKeyConstraint groups per-column rows into an ordered FK constraint mapping.
type ForeignKeyConstraint struct {
	ConstraintName    string
	ReferencedTable   string
	ColumnNames       []string
	ReferencedColumns []string
}

// ColumnReference pairs a local column with the foreign column it references.
type ColumnReference struct {
	Local   string
	Foreign string
}

// ColumnMapping returns the ordered (local, foreign) column pairs.
func (fk ForeignKeyConstraint) ColumnMapping() []ColumnReference {
	n := len(fk.ColumnNames)
	if len(fk.ReferencedColumns) < n {
		n = len(fk.ReferencedColumns)
	}
	refs := make([]ColumnReference, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, ColumnReference{Local: fk.ColumnNames[i], Foreign: fk.ReferencedColumns[i]})
	}
	return refs
}

// ForeignKeyConstraints returns FK constraints for a table with deterministic ordering.
func (t *Table) ForeignKeyConstraints() []ForeignKeyConstraint {
	if len(t.ForeignKeys) == 0 {
		return nil
	}

	type row struct {
		key   string
		fk    ForeignKey
		index int
	}
	rows := make([]row, 0, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		key := fk.ConstraintName
		if key == "" {
			// Unnamed constraints stay isolated to avoid accidental merging.
			key = fmt.Sprintf("__unnamed_%d", i)
		}
		rows = append(rows, row{key: key, fk: fk, index: i})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].key != rows[j].key {
			return rows[i].key < rows[j].key
		}
		iPos := rows[i].fk.OrdinalPosition
		jPos := rows[j].fk.OrdinalPosition
		if iPos != jPos {
			if iPos == 0 {
				return false
			}
			if jPos == 0 {
				return true
			}
			return iPos < jPos
		}
		return rows[i].index < rows[j].index
	})

	var orderedKeys []string
	grouped := make(map[string]*ForeignKeyConstraint)
	for _, item := range rows {
		group, ok := grouped[item.key]
		if !ok {
			group = &ForeignKeyConstraint{
				ConstraintName:  item.fk.ConstraintName,
				ReferencedTable: item.fk.ReferencedTable,
			}
			grouped[item.key] = group
			orderedKeys = append(orderedKeys, item.key)
		}
		group.ColumnNames = append(group.ColumnNames, item.fk.ColumnName)
		group.ReferencedColumns = append(group.ReferencedColumns, item.fk.ReferencedColumn)
	}

	result := make([]ForeignKeyConstraint, 0, len(orderedKeys))
	for _, key := range orderedKeys {
		result = append(result, *grouped[key])
	}
	return result
}

// ForeignKeysReferencing returns the constraints whose referenced table is tableName.
func (t *Table) ForeignKeysReferencing(tableName string) []ForeignKeyConstraint {
	var out []ForeignKeyConstraint
	for _, fk := range t.ForeignKeyConstraints() {
		if fk.ReferencedTable == tableName {
			out = append(out, fk)
		}
	}
	return out
}
