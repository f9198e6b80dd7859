package aggregate

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"aggregen/internal/schema"
)

// QueryParam binds one named query parameter to a parent accessor.
type QueryParam struct {
	// Ordinal is the 1-based parameter position.
	Ordinal int
	// Name is the placeholder name without the colon, e.g. "p1".
	Name string
	// Column is the foreign column on the parent.
	Column string
	// Accessor is the parent accessor supplying the value.
	Accessor string
}

// Query is the recomputation query of one binding.
type Query struct {
	// SQL uses named :pN placeholders.
	SQL string
	// Executable is SQL in the platform's positional placeholder style. Its
	// arguments are the Bindings values in ordinal order.
	Executable string
	Bindings   []QueryParam
}

// Accessor returns the accessor bound to the given ordinal.
func (q Query) Accessor(ordinal int) (string, bool) {
	for _, p := range q.Bindings {
		if p.Ordinal == ordinal {
			return p.Accessor, true
		}
	}
	return "", false
}

// colonFormat rewrites ? placeholders as :p1, :p2, ... and unescapes ??.
type colonFormat struct{}

func (colonFormat) ReplacePlaceholders(sql string) (string, error) {
	var buf strings.Builder
	n := 0
	for {
		p := strings.Index(sql, "?")
		if p == -1 {
			break
		}
		buf.WriteString(sql[:p])
		if len(sql) > p+1 && sql[p+1] == '?' {
			buf.WriteString("?")
			sql = sql[p+2:]
			continue
		}
		n++
		fmt.Fprintf(&buf, ":p%d", n)
		sql = sql[p+1:]
	}
	buf.WriteString(sql)
	return buf.String(), nil
}

// Colon is the named placeholder format used by recomputation queries.
var Colon sq.PlaceholderFormat = colonFormat{}

// BuildQuery renders the recomputation query for a binding:
//
//	SELECT <expr> FROM <child> WHERE <child>.<local> = :p1 [AND ...] [AND <child>.<deleted> IS NULL]
//
// The output depends only on the binding.
func BuildQuery(b Binding) (Query, error) {
	childName := b.Child.QualifiedName()
	mapping := b.ForeignKey.ColumnMapping()
	if len(mapping) == 0 {
		return Query{}, fmt.Errorf("foreign key %q on %q has no columns", b.ForeignKey.ConstraintName, childName)
	}

	builder := sq.Select(escapePlaceholders(b.Expression)).
		From(b.Platform.QuoteIdentifier(childName)).
		PlaceholderFormat(sq.Question)

	params := make([]QueryParam, 0, len(mapping))
	for i, ref := range mapping {
		builder = builder.Where(fmt.Sprintf("%s.%s = ?", childName, ref.Local), ref.Foreign)
		params = append(params, QueryParam{
			Ordinal:  i + 1,
			Name:     fmt.Sprintf("p%d", i+1),
			Column:   ref.Foreign,
			Accessor: foreignAccessor(b, ref.Foreign),
		})
	}
	if b.SoftDeleteColumn != "" {
		builder = builder.Where(fmt.Sprintf("%s.%s IS NULL", childName, b.SoftDeleteColumn))
	}

	base, args, err := builder.ToSql()
	if err != nil {
		return Query{}, fmt.Errorf("build aggregate query for %q: %w", b.TargetColumn, err)
	}
	if len(args) != len(params) {
		return Query{}, fmt.Errorf("build aggregate query for %q: expected %d parameters, got %d", b.TargetColumn, len(params), len(args))
	}
	named, err := Colon.ReplacePlaceholders(base)
	if err != nil {
		return Query{}, fmt.Errorf("build aggregate query for %q: %w", b.TargetColumn, err)
	}
	executable, err := positional(b.Platform.Placeholder(), base)
	if err != nil {
		return Query{}, fmt.Errorf("build aggregate query for %q: %w", b.TargetColumn, err)
	}
	return Query{SQL: named, Executable: executable, Bindings: params}, nil
}

// positional rewrites ? placeholders into format. sq.Question leaves the
// text as is, so escaped ?? marks are unescaped here.
func positional(format sq.PlaceholderFormat, sql string) (string, error) {
	if format == sq.Question {
		return strings.ReplaceAll(sql, "??", "?"), nil
	}
	return format.ReplacePlaceholders(sql)
}

func escapePlaceholders(expr string) string {
	return strings.ReplaceAll(expr, "?", "??")
}

func foreignAccessor(b Binding, column string) string {
	if col, ok := b.Parent.Column(column); ok {
		return col.AccessorName()
	}
	return schema.Column{Name: column}.AccessorName()
}
