// Package aggregate resolves aggregate column bindings between a parent table
// and a child table, mutates the schema to carry the aggregate column and its
// synchronization unit, and emits the compute/update artifacts for the parent.
package aggregate

import (
	"fmt"
	"strconv"
	"strings"

	"aggregen/internal/schema"
)

// Flat behavior parameter keys. Indexed keys carry a 1-based suffix.
const (
	ParamCount         = "count"
	ParamName          = "name"
	ParamForeignTable  = "foreign_table"
	ParamForeignSchema = "foreign_schema"
	ParamExpression    = "expression"
	ParamForeignKey    = "foreign_key"
)

// Spec is one aggregate column declaration. Fields are not validated until a
// Binding is built from it.
type Spec struct {
	// Index is the 1-based position of the spec within its behavior.
	Index         int    `yaml:"-" mapstructure:"-"`
	TargetColumn  string `yaml:"name" mapstructure:"name"`
	ForeignTable  string `yaml:"foreign_table" mapstructure:"foreign_table"`
	ForeignSchema string `yaml:"foreign_schema" mapstructure:"foreign_schema"`
	Expression    string `yaml:"expression" mapstructure:"expression"`
	// ForeignKey optionally names the child FK constraint to use.
	ForeignKey string `yaml:"foreign_key" mapstructure:"foreign_key"`
}

// ParseSpecs converts the flat count/name{x}/... parameter encoding into an
// ordered list of specs. An absent count yields no specs. Missing indexed keys
// are left empty and reported when the binding is validated.
func ParseSpecs(params []schema.Parameter) ([]Spec, error) {
	values := make(map[string]string, len(params))
	for _, p := range params {
		values[p.Name] = strings.TrimSpace(p.Value)
	}

	raw, ok := values[ParamCount]
	if !ok || raw == "" {
		return nil, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter %q: %w", ParamCount, raw, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid %s parameter %q: must not be negative", ParamCount, raw)
	}

	specs := make([]Spec, 0, count)
	for x := 1; x <= count; x++ {
		suffix := strconv.Itoa(x)
		specs = append(specs, Spec{
			Index:         x,
			TargetColumn:  values[ParamName+suffix],
			ForeignTable:  values[ParamForeignTable+suffix],
			ForeignSchema: values[ParamForeignSchema+suffix],
			Expression:    values[ParamExpression+suffix],
			ForeignKey:    values[ParamForeignKey+suffix],
		})
	}
	return specs, nil
}

// Numbered returns specs with Index assigned from their position.
func Numbered(specs []Spec) []Spec {
	out := make([]Spec, len(specs))
	for i, s := range specs {
		s.Index = i + 1
		out[i] = s
	}
	return out
}

// ColumnBehavior is the aggregate_column behavior attached to a parent table.
type ColumnBehavior struct {
	BehaviorName string
	Specs        []Spec
}

// Name implements schema.Behavior.
func (b *ColumnBehavior) Name() string {
	if b.BehaviorName == "" {
		return schema.KindAggregateColumn
	}
	return b.BehaviorName
}

// Kind implements schema.Behavior.
func (b *ColumnBehavior) Kind() string { return schema.KindAggregateColumn }

// Parameters implements schema.Behavior using the flat indexed encoding.
func (b *ColumnBehavior) Parameters() []schema.Parameter {
	params := []schema.Parameter{{Name: ParamCount, Value: strconv.Itoa(len(b.Specs))}}
	for i, s := range b.Specs {
		suffix := strconv.Itoa(i + 1)
		params = append(params,
			schema.Parameter{Name: ParamName + suffix, Value: s.TargetColumn},
			schema.Parameter{Name: ParamForeignTable + suffix, Value: s.ForeignTable},
			schema.Parameter{Name: ParamExpression + suffix, Value: s.Expression},
		)
		if s.ForeignSchema != "" {
			params = append(params, schema.Parameter{Name: ParamForeignSchema + suffix, Value: s.ForeignSchema})
		}
		if s.ForeignKey != "" {
			params = append(params, schema.Parameter{Name: ParamForeignKey + suffix, Value: s.ForeignKey})
		}
	}
	return params
}

// SpecsFor extracts the ordered specs from an aggregate_column behavior. Typed
// behaviors return their specs; any other behavior is parsed from its flat
// parameters.
func SpecsFor(b schema.Behavior) ([]Spec, error) {
	if cb, ok := b.(*ColumnBehavior); ok {
		return Numbered(cb.Specs), nil
	}
	return ParseSpecs(b.Parameters())
}
