package schema

// Well-known behavior kinds.
const (
	KindAggregateColumn           = "aggregate_column"
	KindAggregateColumnRelation   = "aggregate_column_relation"
	KindSoftDelete                = "soft_delete"
	KindConcreteInheritanceParent = "concrete_inheritance_parent"
)

// Behavior is a named unit attached to a table. Name is unique within the table;
// Kind groups behaviors of the same type.
type Behavior interface {
	Name() string
	Kind() string
	Parameters() []Parameter
}

// Parameter is a single behavior setting.
type Parameter struct {
	Name  string
	Value string
}

// DeclaredBehavior is a behavior read from schema definitions that carries only
// parameters, such as soft_delete or concrete_inheritance_parent.
type DeclaredBehavior struct {
	BehaviorName string
	BehaviorKind string
	Params       []Parameter
}

// Name implements Behavior.
func (b DeclaredBehavior) Name() string {
	if b.BehaviorName == "" {
		return b.BehaviorKind
	}
	return b.BehaviorName
}

// Kind implements Behavior.
func (b DeclaredBehavior) Kind() string { return b.BehaviorKind }

// Parameters implements Behavior.
func (b DeclaredBehavior) Parameters() []Parameter { return b.Params }

// Parameter returns the value of the named parameter.
func (b DeclaredBehavior) Parameter(name string) (string, bool) {
	return ParameterValue(b, name)
}

// AddBehavior attaches b, replacing any behavior already attached under the same name.
func (t *Table) AddBehavior(b Behavior) {
	for i, existing := range t.behaviors {
		if existing.Name() == b.Name() {
			t.behaviors[i] = b
			return
		}
	}
	t.behaviors = append(t.behaviors, b)
}

// HasBehavior reports whether a behavior with the given name is attached.
func (t *Table) HasBehavior(name string) bool {
	_, ok := t.Behavior(name)
	return ok
}

// Behavior returns the behavior attached under name.
func (t *Table) Behavior(name string) (Behavior, bool) {
	for _, b := range t.behaviors {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// HasBehaviorKind reports whether any attached behavior has the given kind.
func (t *Table) HasBehaviorKind(kind string) bool {
	return len(t.BehaviorsOfKind(kind)) > 0
}

// BehaviorsOfKind returns attached behaviors of one kind in attachment order.
func (t *Table) BehaviorsOfKind(kind string) []Behavior {
	var out []Behavior
	for _, b := range t.behaviors {
		if b.Kind() == kind {
			out = append(out, b)
		}
	}
	return out
}

// Behaviors returns all attached behaviors in attachment order.
func (t *Table) Behaviors() []Behavior {
	return append([]Behavior(nil), t.behaviors...)
}

// ParameterValue returns the value of the named parameter on any behavior.
func ParameterValue(b Behavior, name string) (string, bool) {
	for _, p := range b.Parameters() {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}
