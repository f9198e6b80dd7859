package aggregate

import (
	"aggregen/internal/platform"
	"aggregen/internal/schema"
	"aggregen/internal/sqltype"
)

// DefaultDeletedColumn is the soft delete marker column when the behavior sets none.
const DefaultDeletedColumn = "DELETED_AT"

// Binding is a validated aggregate column declaration with its relationship resolved.
type Binding struct {
	Index  int
	Parent *schema.Table
	Child  *schema.Table
	// TargetColumn is the aggregate column on the parent.
	TargetColumn string
	// TargetAccessor is the accessor identifier of TargetColumn.
	TargetAccessor string
	// TargetType is the SQL type of TargetColumn, existing or to be added.
	TargetType string
	Expression string
	ForeignKey schema.ForeignKeyConstraint
	// SoftDeleteColumn is set when the child declares soft delete.
	SoftDeleteColumn string
	Platform         platform.Platform
}

// UpdateMethod is the parent method that refreshes the aggregate column.
func (b Binding) UpdateMethod() string {
	return "update" + b.TargetAccessor
}

// ComputeMethod is the parent method that runs the aggregation query.
func (b Binding) ComputeMethod() string {
	return "compute" + b.TargetAccessor
}

// Category returns the Go value category the aggregate is coerced to.
func (b Binding) Category() sqltype.Category {
	return sqltype.Map(b.TargetType)
}

// validateSpec checks the required keys of one spec in declaration order.
func validateSpec(parent *schema.Table, spec Spec) error {
	switch {
	case spec.TargetColumn == "":
		return &ConfigError{
			Kind:  ErrMissingTargetColumn,
			Table: parent.QualifiedName(),
			Index: spec.Index,
			Key:   indexedKey(ParamName, spec.Index),
		}
	case spec.ForeignTable == "":
		return &ConfigError{
			Kind:  ErrMissingForeignTableReference,
			Table: parent.QualifiedName(),
			Index: spec.Index,
			Key:   indexedKey(ParamForeignTable, spec.Index),
		}
	case spec.Expression == "":
		return &ConfigError{
			Kind:  ErrMissingExpression,
			Table: parent.QualifiedName(),
			Index: spec.Index,
			Key:   indexedKey(ParamExpression, spec.Index),
		}
	}
	return nil
}

// softDeleteColumn returns the deleted marker column of a soft delete child.
func softDeleteColumn(child *schema.Table) string {
	behaviors := child.BehaviorsOfKind(schema.KindSoftDelete)
	if len(behaviors) == 0 {
		return ""
	}
	if col, ok := schema.ParameterValue(behaviors[0], "deleted_column"); ok && col != "" {
		return col
	}
	return DefaultDeletedColumn
}
