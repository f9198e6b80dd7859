package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregen/internal/schema"
)

func TestParseSpecs_AbsentCount(t *testing.T) {
	specs, err := ParseSpecs([]schema.Parameter{param("name1", "total")})
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestParseSpecs_OrderedByIndex(t *testing.T) {
	specs, err := ParseSpecs([]schema.Parameter{
		param("expression2", "SUM(amount)"),
		param("count", "2"),
		param("name2", "total_amount"),
		param("foreign_table2", "invoice_line"),
		param("name1", "line_item_count"),
		param("foreign_table1", "invoice_line"),
		param("foreign_schema1", "sales"),
		param("expression1", "COUNT(*)"),
		param("foreign_key2", "invoice_line_fk_invoice"),
	})
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, Spec{Index: 1, TargetColumn: "line_item_count", ForeignTable: "invoice_line", ForeignSchema: "sales", Expression: "COUNT(*)"}, specs[0])
	assert.Equal(t, Spec{Index: 2, TargetColumn: "total_amount", ForeignTable: "invoice_line", Expression: "SUM(amount)", ForeignKey: "invoice_line_fk_invoice"}, specs[1])
}

func TestParseSpecs_MissingIndexedKeysStayEmpty(t *testing.T) {
	specs, err := ParseSpecs([]schema.Parameter{param("count", "2"), param("name1", "a")})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].TargetColumn)
	assert.Empty(t, specs[1].TargetColumn)
	assert.Equal(t, 2, specs[1].Index)
}

func TestParseSpecs_InvalidCount(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not a number", value: "two"},
		{name: "negative", value: "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpecs([]schema.Parameter{param("count", tt.value)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "count")
		})
	}
}

func TestColumnBehavior_FlatParametersParseBack(t *testing.T) {
	b := &ColumnBehavior{Specs: []Spec{
		{TargetColumn: "line_item_count", ForeignTable: "invoice_line", Expression: "COUNT(*)"},
		{TargetColumn: "total", ForeignTable: "invoice_line", ForeignSchema: "sales", Expression: "SUM(amount)", ForeignKey: "fk"},
	}}
	assert.Equal(t, schema.KindAggregateColumn, b.Name())
	assert.Equal(t, schema.KindAggregateColumn, b.Kind())

	parsed, err := ParseSpecs(b.Parameters())
	require.NoError(t, err)
	assert.Equal(t, Numbered(b.Specs), parsed)
}

func TestSpecsFor(t *testing.T) {
	typed := &ColumnBehavior{Specs: []Spec{{TargetColumn: "a"}, {TargetColumn: "b"}}}
	specs, err := SpecsFor(typed)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, 1, specs[0].Index)
	assert.Equal(t, 2, specs[1].Index)

	declared := schema.DeclaredBehavior{BehaviorKind: schema.KindAggregateColumn, Params: []schema.Parameter{param("count", "1"), param("name1", "a")}}
	specs, err = SpecsFor(declared)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "a", specs[0].TargetColumn)
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Kind: ErrMissingTargetColumn, Table: "invoice", Index: 2, Key: "name2"}
	assert.Equal(t, `aggregate column on table "invoice" (index 2, key "name2"): missing target column`, err.Error())
	assert.ErrorIs(t, err, ErrMissingTargetColumn)

	err = &ConfigError{Kind: ErrUnresolvedRelationship, Table: "invoice", ChildTable: "invoice_line", Index: 1, Key: "foreign_table1", Detail: "x"}
	assert.Contains(t, err.Error(), `(child table "invoice_line")`)
	assert.Contains(t, err.Error(), ": x")
}
