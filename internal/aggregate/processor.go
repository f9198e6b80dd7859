package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aggregen/internal/naming"
	"aggregen/internal/schema"
)

// TableResult is the outcome of processing one parent table.
type TableResult struct {
	Table    *schema.Table
	Bindings []Binding
	// Artifacts holds (compute, update) pairs in binding index order.
	Artifacts    []Artifact
	AddedColumns []schema.Column
	SyncUnits    []*SyncUnit
}

// Result is the outcome of a full pass over the database.
type Result struct {
	Tables []TableResult
}

// BindingCount returns the number of bindings across all tables.
func (r Result) BindingCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Bindings)
	}
	return n
}

// ArtifactCount returns the number of artifacts across all tables.
func (r Result) ArtifactCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Artifacts)
	}
	return n
}

// Options configures a Processor.
type Options struct {
	AmbiguityPolicy AmbiguityPolicy
	Namer           *naming.Namer
	Logger          *slog.Logger
}

// Processor runs aggregate column processing over every parent table of a database.
type Processor struct {
	db       *schema.Database
	resolver *Resolver
	mutator  *Mutator
	namer    *naming.Namer
	logger   *slog.Logger
}

// NewProcessor creates a processor for one build pass.
func NewProcessor(db *schema.Database, opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	namer := opts.Namer
	if namer == nil {
		namer = naming.Default()
	}
	return &Processor{
		db:       db,
		resolver: NewResolver(db, opts.AmbiguityPolicy, logger),
		mutator:  NewMutator(namer, logger),
		namer:    namer,
		logger:   logger,
	}
}

// Run processes every table carrying an aggregate_column behavior in registry
// order. It stops at the first error or when ctx is cancelled between tables.
func (p *Processor) Run(ctx context.Context) (Result, error) {
	ctx, span := startSpan(ctx, "aggregate.run",
		attribute.String("db.name", p.db.Name),
	)
	defer span.End()

	var result Result
	for _, table := range p.db.Tables {
		if err := ctx.Err(); err != nil {
			recordSpanError(span, err)
			return result, err
		}
		if !table.HasBehaviorKind(schema.KindAggregateColumn) {
			continue
		}
		tr, err := p.ProcessTable(ctx, table)
		if err != nil {
			recordSpanError(span, err)
			return result, fmt.Errorf("failed to process table %s: %w", table.QualifiedName(), err)
		}
		result.Tables = append(result.Tables, tr)
	}
	span.SetAttributes(
		attribute.Int("aggregate.tables", len(result.Tables)),
		attribute.Int("aggregate.bindings", result.BindingCount()),
	)
	return result, nil
}

// ProcessTable resolves, emits, and applies every aggregate binding of parent.
// Every binding is validated and emitted before the schema is touched, so an
// error leaves both tables unchanged and yields no artifacts.
func (p *Processor) ProcessTable(ctx context.Context, parent *schema.Table) (TableResult, error) {
	_, span := startSpan(ctx, "aggregate.process_table",
		attribute.String("db.table", parent.QualifiedName()),
	)
	defer span.End()

	bindings, err := p.Bind(parent)
	if err != nil {
		recordSpanError(span, err)
		return TableResult{}, err
	}

	artifacts := make([]Artifact, 0, 2*len(bindings))
	for _, b := range bindings {
		pair, err := Emit(b)
		if err != nil {
			recordSpanError(span, err)
			return TableResult{}, err
		}
		artifacts = append(artifacts, pair...)
	}

	result := TableResult{Table: parent, Bindings: bindings, Artifacts: artifacts}
	for _, b := range bindings {
		m := p.mutator.Apply(b)
		if m.AddedColumn != nil {
			result.AddedColumns = append(result.AddedColumns, *m.AddedColumn)
		}
		if m.SyncUnit != nil {
			result.SyncUnits = append(result.SyncUnits, m.SyncUnit)
		}
		p.logger.Debug("aggregate column bound",
			slog.String("table", parent.QualifiedName()),
			slog.String("column", b.TargetColumn),
			slog.String("child_table", b.Child.QualifiedName()),
			slog.String("foreign_key", b.ForeignKey.ConstraintName),
			slog.Bool("column_added", m.AddedColumn != nil),
			slog.Bool("sync_skipped", m.SyncSkipped),
		)
	}

	span.SetAttributes(
		attribute.Int("aggregate.bindings", len(bindings)),
		attribute.Int("aggregate.artifacts", len(artifacts)),
	)
	return result, nil
}

// Bind resolves and validates all aggregate specs declared on parent, in
// ascending index order. It does not modify the schema.
func (p *Processor) Bind(parent *schema.Table) ([]Binding, error) {
	var specs []Spec
	for _, behavior := range parent.BehaviorsOfKind(schema.KindAggregateColumn) {
		s, err := SpecsFor(behavior)
		if err != nil {
			return nil, fmt.Errorf("behavior %s on %s: %w", behavior.Name(), parent.QualifiedName(), err)
		}
		specs = append(specs, s...)
	}

	bindings := make([]Binding, 0, len(specs))
	seen := make(map[string]int, len(specs))
	for _, spec := range specs {
		if err := validateSpec(parent, spec); err != nil {
			return nil, err
		}
		if first, dup := seen[spec.TargetColumn]; dup {
			return nil, &ConfigError{
				Kind:   ErrDuplicateTargetColumn,
				Table:  parent.QualifiedName(),
				Index:  spec.Index,
				Key:    indexedKey(ParamName, spec.Index),
				Detail: fmt.Sprintf("column %q already declared at index %d", spec.TargetColumn, first),
			}
		}
		seen[spec.TargetColumn] = spec.Index

		child, fk, err := p.resolver.Resolve(parent, spec)
		if err != nil {
			return nil, err
		}

		b := Binding{
			Index:            spec.Index,
			Parent:           parent,
			Child:            child,
			TargetColumn:     spec.TargetColumn,
			Expression:       spec.Expression,
			ForeignKey:       fk,
			SoftDeleteColumn: softDeleteColumn(child),
			Platform:         p.db.Platform,
		}
		if col, ok := parent.Column(spec.TargetColumn); ok {
			b.TargetAccessor = col.AccessorName()
			b.TargetType = col.Type
		} else {
			b.TargetAccessor = p.namer.AccessorName(spec.TargetColumn)
			b.TargetType = p.db.Platform.IntegerType
			if b.TargetType == "" {
				b.TargetType = "INTEGER"
			}
		}

		source := parent.QualifiedName() + "." + spec.TargetColumn
		if !p.namer.RegisterMethod(parent.GoTypeName(), b.UpdateMethod(), source) {
			return nil, &ConfigError{
				Kind:   ErrDuplicateTargetColumn,
				Table:  parent.QualifiedName(),
				Index:  spec.Index,
				Key:    indexedKey(ParamName, spec.Index),
				Detail: fmt.Sprintf("method %s is already generated for another column", b.UpdateMethod()),
			}
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("aggregen/aggregate")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
