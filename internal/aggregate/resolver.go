package aggregate

import (
	"fmt"
	"log/slog"
	"strings"

	"aggregen/internal/schema"
)

// AmbiguityPolicy decides what happens when several foreign keys on the child
// reference the parent and no explicit selector was given.
type AmbiguityPolicy string

const (
	// PolicyFirst picks the first constraint in deterministic order and logs a warning.
	PolicyFirst AmbiguityPolicy = "first"
	// PolicyError rejects the declaration with ErrAmbiguousRelationship.
	PolicyError AmbiguityPolicy = "error"
)

// ParseAmbiguityPolicy validates a configured policy name. Empty means PolicyFirst.
func ParseAmbiguityPolicy(value string) (AmbiguityPolicy, error) {
	switch AmbiguityPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyError:
		return PolicyError, nil
	default:
		return "", fmt.Errorf("unknown ambiguous relationship policy %q (expected first or error)", value)
	}
}

// Resolver maps a spec to the child table and the foreign key linking it back
// to the parent. It never modifies the schema.
type Resolver struct {
	db     *schema.Database
	policy AmbiguityPolicy
	logger *slog.Logger
}

// NewResolver creates a resolver over the table registry.
func NewResolver(db *schema.Database, policy AmbiguityPolicy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = PolicyFirst
	}
	return &Resolver{db: db, policy: policy, logger: logger}
}

// ChildTableName returns the qualified name the spec refers to.
func (r *Resolver) ChildTableName(spec Spec) string {
	return r.db.QualifyTableName(spec.ForeignSchema, spec.ForeignTable)
}

// Resolve finds the child table and the foreign key on it referencing parent.
func (r *Resolver) Resolve(parent *schema.Table, spec Spec) (*schema.Table, schema.ForeignKeyConstraint, error) {
	childName := r.ChildTableName(spec)
	child, ok := r.db.Table(childName)
	if !ok {
		return nil, schema.ForeignKeyConstraint{}, &ConfigError{
			Kind:       ErrChildTableNotFound,
			Table:      parent.QualifiedName(),
			ChildTable: childName,
			Index:      spec.Index,
			Key:        indexedKey(ParamForeignTable, spec.Index),
		}
	}

	fks := child.ForeignKeysReferencing(parent.QualifiedName())
	if len(fks) == 0 {
		return nil, schema.ForeignKeyConstraint{}, &ConfigError{
			Kind:       ErrUnresolvedRelationship,
			Table:      parent.QualifiedName(),
			ChildTable: childName,
			Index:      spec.Index,
			Key:        indexedKey(ParamForeignTable, spec.Index),
			Detail:     fmt.Sprintf("define a foreign key to %q in %q", parent.QualifiedName(), childName),
		}
	}

	if spec.ForeignKey != "" {
		for _, fk := range fks {
			if fk.ConstraintName == spec.ForeignKey {
				return child, fk, nil
			}
		}
		return nil, schema.ForeignKeyConstraint{}, &ConfigError{
			Kind:       ErrUnknownForeignKey,
			Table:      parent.QualifiedName(),
			ChildTable: childName,
			Index:      spec.Index,
			Key:        indexedKey(ParamForeignKey, spec.Index),
			Detail:     fmt.Sprintf("constraint %q does not reference the parent table", spec.ForeignKey),
		}
	}

	if len(fks) > 1 {
		names := constraintNames(fks)
		if r.policy == PolicyError {
			return nil, schema.ForeignKeyConstraint{}, &ConfigError{
				Kind:       ErrAmbiguousRelationship,
				Table:      parent.QualifiedName(),
				ChildTable: childName,
				Index:      spec.Index,
				Key:        indexedKey(ParamForeignKey, spec.Index),
				Detail:     fmt.Sprintf("choose one of %s", strings.Join(names, ", ")),
			}
		}
		r.logger.Warn("multiple foreign keys reference parent table, using the first",
			slog.String("table", parent.QualifiedName()),
			slog.String("child_table", childName),
			slog.Int("index", spec.Index),
			slog.String("chosen", names[0]),
			slog.Any("candidates", names),
		)
	}
	return child, fks[0], nil
}

func constraintNames(fks []schema.ForeignKeyConstraint) []string {
	names := make([]string, 0, len(fks))
	for _, fk := range fks {
		name := fk.ConstraintName
		if name == "" {
			name = "(" + strings.Join(fk.ColumnNames, ",") + ")"
		}
		names = append(names, name)
	}
	return names
}
