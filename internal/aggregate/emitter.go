package aggregate

import (
	"fmt"

	"aggregen/internal/schema"
)

// ArtifactKind distinguishes the generated methods of a binding.
type ArtifactKind string

const (
	ArtifactCompute ArtifactKind = "compute"
	ArtifactUpdate  ArtifactKind = "update"
	ArtifactHook    ArtifactKind = "hook"
)

// Param is one method parameter of a generated method.
type Param struct {
	Name string
	Type string
}

// Artifact is one generated method as data. Body is empty until rendered.
type Artifact struct {
	Kind  ArtifactKind
	Index int
	// Receiver is the Go type the method is declared on.
	Receiver string
	Name     string
	Params   []Param
	Results  []string

	// Column and Accessor name the aggregate column the method serves.
	Column    string
	Accessor  string
	GoType    string
	NullType  string
	NullField string

	// Query is set on compute artifacts.
	Query Query
	// Calls lists the methods this one invokes, in order.
	Calls []string

	// Relation and ParentType are set on hook artifacts.
	Relation   string
	ParentType string

	Body string
}

// Renderer turns artifacts into source text by template name.
type Renderer interface {
	Render(name string, data any) (string, error)
}

var methodParams = []Param{
	{Name: "ctx", Type: "context.Context"},
	{Name: "db", Type: "aggregateQueryer"},
}

// Emit returns the compute and update artifacts of one binding. It does not
// touch the schema.
func Emit(b Binding) ([]Artifact, error) {
	query, err := BuildQuery(b)
	if err != nil {
		return nil, err
	}
	category := b.Category()
	receiver := b.Parent.GoTypeName()

	compute := Artifact{
		Kind:      ArtifactCompute,
		Index:     b.Index,
		Receiver:  receiver,
		Name:      b.ComputeMethod(),
		Params:    methodParams,
		Results:   []string{category.GoType(), "error"},
		Column:    b.TargetColumn,
		Accessor:  b.TargetAccessor,
		GoType:    category.GoType(),
		NullType:  category.NullType(),
		NullField: category.NullField(),
		Query:     query,
	}
	update := Artifact{
		Kind:     ArtifactUpdate,
		Index:    b.Index,
		Receiver: receiver,
		Name:     b.UpdateMethod(),
		Params:   methodParams,
		Results:  []string{"error"},
		Column:   b.TargetColumn,
		Accessor: b.TargetAccessor,
		GoType:   category.GoType(),
		Calls:    []string{compute.Name},
	}
	return []Artifact{compute, update}, nil
}

// EmitHooks returns one hook artifact per parent relation of the child's
// sync units, in first-attachment order. Each hook calls the update methods of
// that relation in attachment order.
func EmitHooks(child *schema.Table) []Artifact {
	var hooks []Artifact
	byRelation := make(map[string]int)
	for _, unit := range SyncUnits(child) {
		key := unit.ForeignTable + "#" + unit.Relation
		if i, ok := byRelation[key]; ok {
			hooks[i].Calls = append(hooks[i].Calls, unit.UpdateMethod)
			continue
		}
		byRelation[key] = len(hooks)
		hooks = append(hooks, Artifact{
			Kind:       ArtifactHook,
			Receiver:   child.GoTypeName(),
			Name:       "updateRelated" + unit.Relation,
			Params:     append(append([]Param(nil), methodParams...), Param{Name: "parent", Type: "*" + unit.ParentType}),
			Results:    []string{"error"},
			Calls:      []string{unit.UpdateMethod},
			Relation:   unit.Relation,
			ParentType: unit.ParentType,
		})
	}
	return hooks
}

// RenderArtifacts fills the Body of each artifact using the template named by
// its kind.
func RenderArtifacts(r Renderer, artifacts []Artifact) ([]Artifact, error) {
	out := make([]Artifact, len(artifacts))
	for i, a := range artifacts {
		body, err := r.Render(string(a.Kind), a)
		if err != nil {
			return nil, fmt.Errorf("render %s %s.%s: %w", a.Kind, a.Receiver, a.Name, err)
		}
		a.Body = body
		out[i] = a
	}
	return out, nil
}
