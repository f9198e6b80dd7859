package aggregate

import (
	"log/slog"

	"aggregen/internal/naming"
	"aggregen/internal/schema"
	"aggregen/internal/sqltype"
)

// Mutation reports what Apply changed.
type Mutation struct {
	// AddedColumn is set when the target column was created.
	AddedColumn *schema.Column
	// SyncUnit is set when a new sync unit was attached to the child.
	SyncUnit *SyncUnit
	// SyncSkipped is set when the child is an inheritance parent.
	SyncSkipped bool
}

// Mutator ensures the aggregate column exists on the parent and the child
// carries a sync unit. Applying the same binding again changes nothing.
type Mutator struct {
	namer  *naming.Namer
	logger *slog.Logger
}

// NewMutator creates a mutator.
func NewMutator(namer *naming.Namer, logger *slog.Logger) *Mutator {
	if namer == nil {
		namer = naming.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{namer: namer, logger: logger}
}

// Apply mutates the binding's parent and child tables.
func (m *Mutator) Apply(b Binding) Mutation {
	var result Mutation

	if col, ok := b.Parent.Column(b.TargetColumn); ok {
		if !sqltype.Map(col.Type).IsNumeric() {
			m.logger.Warn("aggregate target column has a non-numeric type",
				slog.String("table", b.Parent.QualifiedName()),
				slog.String("column", col.Name),
				slog.String("type", col.Type),
			)
		}
	} else {
		col := schema.Column{
			Name:       b.TargetColumn,
			Type:       b.TargetType,
			IsNullable: true,
			Accessor:   b.TargetAccessor,
		}
		b.Parent.AddColumn(col)
		result.AddedColumn = &col
	}

	if b.Child.HasBehaviorKind(schema.KindConcreteInheritanceParent) {
		result.SyncSkipped = true
		return result
	}

	unit := &SyncUnit{
		ForeignTable: b.Parent.QualifiedName(),
		UpdateMethod: b.UpdateMethod(),
		ParentType:   b.Parent.GoTypeName(),
		Relation:     m.relationName(b.ForeignKey),
		ForeignKey:   b.ForeignKey,
	}
	if !b.Child.HasBehavior(unit.Name()) {
		b.Child.AddBehavior(unit)
		result.SyncUnit = unit
	}
	return result
}

func (m *Mutator) relationName(fk schema.ForeignKeyConstraint) string {
	if len(fk.ColumnNames) == 0 {
		return m.namer.TypeName(fk.ReferencedTable)
	}
	return m.namer.RelationName(fk.ColumnNames[0])
}
