package aggregate

import (
	"aggregen/internal/schema"
)

// Sync unit parameter names.
const (
	ParamSyncForeignTable = "foreign_table"
	ParamSyncUpdateMethod = "update_method"
)

// SyncUnit is the aggregate_column_relation behavior attached to a child
// table. Its hook calls UpdateMethod on the related parent whenever a child
// row changes.
type SyncUnit struct {
	// ForeignTable is the parent's qualified name.
	ForeignTable string
	// UpdateMethod is the parent method to invoke, e.g. updateLineItemCount.
	UpdateMethod string
	// ParentType is the Go type name of the parent.
	ParentType string
	// Relation is the accessor naming the parent relation on the child.
	Relation   string
	ForeignKey schema.ForeignKeyConstraint
}

// Name implements schema.Behavior. One unit exists per parent and update method.
func (u *SyncUnit) Name() string {
	return schema.KindAggregateColumnRelation + ":" + u.ForeignTable + ":" + u.UpdateMethod
}

// Kind implements schema.Behavior.
func (u *SyncUnit) Kind() string { return schema.KindAggregateColumnRelation }

// Parameters implements schema.Behavior.
func (u *SyncUnit) Parameters() []schema.Parameter {
	return []schema.Parameter{
		{Name: ParamSyncForeignTable, Value: u.ForeignTable},
		{Name: ParamSyncUpdateMethod, Value: u.UpdateMethod},
	}
}

// SyncUnits returns the sync units attached to a table in attachment order.
func SyncUnits(t *schema.Table) []*SyncUnit {
	var units []*SyncUnit
	for _, b := range t.BehaviorsOfKind(schema.KindAggregateColumnRelation) {
		if u, ok := b.(*SyncUnit); ok {
			units = append(units, u)
		}
	}
	return units
}
