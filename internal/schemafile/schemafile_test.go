package schemafile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregen/internal/aggregate"
	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

func TestLoad_BuildsRegistry(t *testing.T) {
	f, err := Load("testdata/invoice.yaml")
	require.NoError(t, err)

	db, err := f.Build("")
	require.NoError(t, err)
	assert.Equal(t, "shop", db.Name)
	assert.Equal(t, "mysql", db.Platform.Name)
	require.Len(t, db.Tables, 2)

	invoice, ok := db.Table("invoice")
	require.True(t, ok)
	pks := invoice.PrimaryKeyColumns()
	require.Len(t, pks, 1)
	assert.Equal(t, "id", pks[0].Name)

	behaviors := invoice.BehaviorsOfKind(schema.KindAggregateColumn)
	require.Len(t, behaviors, 1)
	cb, ok := behaviors[0].(*aggregate.ColumnBehavior)
	require.True(t, ok)
	require.Len(t, cb.Specs, 2)
	assert.Equal(t, "line_item_count", cb.Specs[0].TargetColumn)
	assert.Equal(t, "SUM(amount)", cb.Specs[1].Expression)

	line, ok := db.Table("invoice_line")
	require.True(t, ok)
	fks := line.ForeignKeysReferencing("invoice")
	require.Len(t, fks, 1)
	assert.Equal(t, []string{"invoice_id"}, fks[0].ColumnNames)
	assert.True(t, line.HasBehaviorKind(schema.KindSoftDelete))
}

func TestParse_StructuredColumns(t *testing.T) {
	f, err := Parse([]byte(`
platform: pgsql
tables:
  - name: invoice
    schema: sales
    behaviors:
      - kind: aggregate_column
        columns:
          - name: line_item_count
            foreign_table: invoice_line
            foreign_schema: sales
            expression: COUNT(*)
            foreign_key: fk_invoice
`))
	require.NoError(t, err)
	db, err := f.Build("")
	require.NoError(t, err)

	invoice, ok := db.Table("sales.invoice")
	require.True(t, ok)
	specs, err := aggregate.SpecsFor(invoice.BehaviorsOfKind(schema.KindAggregateColumn)[0])
	require.NoError(t, err)
	assert.Equal(t, []aggregate.Spec{{
		Index:         1,
		TargetColumn:  "line_item_count",
		ForeignTable:  "invoice_line",
		ForeignSchema: "sales",
		Expression:    "COUNT(*)",
		ForeignKey:    "fk_invoice",
	}}, specs)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "no platform",
			doc:     "tables: []",
			wantErr: "does not name a platform",
		},
		{
			name:    "unknown platform",
			doc:     "platform: oracle",
			wantErr: "unsupported platform",
		},
		{
			name:    "duplicate table",
			doc:     "platform: mysql\ntables:\n  - name: a\n  - name: a\n",
			wantErr: "duplicate table",
		},
		{
			name:    "mismatched foreign key",
			doc:     "platform: mysql\ntables:\n  - name: a\n    foreign_keys:\n      - name: fk\n        referenced_table: b\n        columns: [x, y]\n        referenced_columns: [id]\n",
			wantErr: "same number of columns",
		},
		{
			name:    "mixed aggregate forms",
			doc:     "platform: mysql\ntables:\n  - name: a\n    behaviors:\n      - kind: aggregate_column\n        parameters: {count: 1}\n        columns:\n          - name: n\n",
			wantErr: "mixes parameters and columns",
		},
		{
			name:    "bad count",
			doc:     "platform: mysql\ntables:\n  - name: a\n    behaviors:\n      - kind: aggregate_column\n        parameters: {count: many}\n",
			wantErr: "invalid count parameter",
		},
		{
			name:    "behavior without kind",
			doc:     "platform: mysql\ntables:\n  - name: a\n    behaviors:\n      - name: x\n",
			wantErr: "behavior without a kind",
		},
		{
			name:    "unnamed aggregate behaviors",
			doc:     "platform: mysql\ntables:\n  - name: a\n    behaviors:\n      - kind: aggregate_column\n        parameters: {count: 0}\n      - kind: aggregate_column\n        parameters: {count: 0}\n",
			wantErr: `duplicate behavior "aggregate_column"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			_, err = f.Build("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuild_UnnamedCompositeForeignKey(t *testing.T) {
	f, err := Parse([]byte(`
platform: pgsql
tables:
  - name: invoice
    columns:
      - {name: tenant_id, type: INTEGER, primary: true}
      - {name: id, type: INTEGER, primary: true}
    behaviors:
      - kind: aggregate_column
        parameters:
          count: 1
          name1: line_item_count
          foreign_table1: invoice_line
          expression1: COUNT(*)
  - name: invoice_line
    columns:
      - {name: tenant_id, type: INTEGER}
      - {name: invoice_id, type: INTEGER}
    foreign_keys:
      - referenced_table: invoice
        columns: [tenant_id, invoice_id]
        referenced_columns: [tenant_id, id]
`))
	require.NoError(t, err)
	db, err := f.Build("")
	require.NoError(t, err)

	line, ok := db.Table("invoice_line")
	require.True(t, ok)
	fks := line.ForeignKeysReferencing("invoice")
	require.Len(t, fks, 1)
	assert.Equal(t, "invoice_line_fk_1", fks[0].ConstraintName)
	assert.Equal(t, []string{"tenant_id", "invoice_id"}, fks[0].ColumnNames)
	assert.Equal(t, []string{"tenant_id", "id"}, fks[0].ReferencedColumns)

	result, err := aggregate.NewProcessor(db, aggregate.Options{AmbiguityPolicy: aggregate.PolicyError}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)
	require.Len(t, result.Tables[0].Bindings, 1)

	q, err := aggregate.BuildQuery(result.Tables[0].Bindings[0])
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) FROM invoice_line WHERE invoice_line.tenant_id = :p1 AND invoice_line.invoice_id = :p2",
		q.SQL)
	assert.Equal(t,
		"SELECT COUNT(*) FROM invoice_line WHERE invoice_line.tenant_id = $1 AND invoice_line.invoice_id = $2",
		q.Executable)
}

func TestOverlay(t *testing.T) {
	p, err := platform.Lookup("mysql")
	require.NoError(t, err)
	db := schema.NewDatabase("shop", p)
	require.NoError(t, db.AddTable(&schema.Table{Name: "invoice"}))

	f, err := Parse([]byte(`
table_prefix: app_
tables:
  - name: invoice
    columns:
      - name: ignored
    behaviors:
      - kind: concrete_inheritance_parent
`))
	require.NoError(t, err)
	require.NoError(t, f.Overlay(db))

	invoice, _ := db.Table("invoice")
	assert.True(t, invoice.HasBehaviorKind(schema.KindConcreteInheritanceParent))
	assert.False(t, invoice.HasColumn("ignored"))
	assert.Equal(t, "app_", db.TablePrefix)

	missing, err := Parse([]byte("tables:\n  - name: nope\n"))
	require.NoError(t, err)
	err = missing.Overlay(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope" not found`)
}
