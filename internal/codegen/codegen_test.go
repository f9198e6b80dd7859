package codegen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregen/internal/aggregate"
	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

func invoiceResult(t *testing.T, platformName string) (*schema.Database, aggregate.Result) {
	t.Helper()
	p, err := platform.Lookup(platformName)
	require.NoError(t, err)
	db := schema.NewDatabase("shop", p)
	invoice := &schema.Table{
		Name:    "invoice",
		Columns: []schema.Column{{Name: "id", Type: "INTEGER", IsPrimaryKey: true}},
	}
	invoice.AddBehavior(&aggregate.ColumnBehavior{Specs: []aggregate.Spec{
		{TargetColumn: "line_item_count", ForeignTable: "invoice_line", Expression: "COUNT(*)"},
		{TargetColumn: "total_amount", ForeignTable: "invoice_line", Expression: "SUM(amount)"},
	}})
	line := &schema.Table{
		Name:    "invoice_line",
		Columns: []schema.Column{{Name: "invoice_id", Type: "INTEGER"}},
		ForeignKeys: []schema.ForeignKey{
			{ConstraintName: "fk_invoice", ColumnName: "invoice_id", ReferencedTable: "invoice", ReferencedColumn: "id", OrdinalPosition: 1},
		},
	}
	require.NoError(t, db.AddTable(invoice))
	require.NoError(t, db.AddTable(line))

	result, err := aggregate.NewProcessor(db, aggregate.Options{}).Run(context.Background())
	require.NoError(t, err)
	return db, result
}

func TestGenerate_InvoiceFiles(t *testing.T) {
	db, result := invoiceResult(t, "mysql")
	g, err := New("models", nil)
	require.NoError(t, err)

	files, err := g.Generate(db, result)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "invoice_aggregate.go", files[0].Path)
	assert.Equal(t, "invoice_line_aggregate_sync.go", files[1].Path)
	assert.Equal(t, SupportFileName, files[2].Path)

	parent := string(files[0].Content)
	assert.Contains(t, parent, "// Code generated by aggregen. DO NOT EDIT.")
	assert.Contains(t, parent, "package models")
	assert.Contains(t, parent, "func (o *Invoice) computeLineItemCount(ctx context.Context, db aggregateQueryer) (int64, error) {")
	assert.Contains(t, parent, `"SELECT COUNT(*) FROM invoice_line WHERE invoice_line.invoice_id = ?",`+"\n\t\to.ID,\n")
	assert.NotContains(t, parent, "sql.Named")
	assert.NotContains(t, parent, ":p1")
	assert.Contains(t, parent, "var v sql.NullInt64")
	assert.Contains(t, parent, "func (o *Invoice) updateLineItemCount(ctx context.Context, db aggregateQueryer) error {")
	assert.Contains(t, parent, "o.LineItemCount = v")
	assert.Less(t,
		strings.Index(parent, "computeLineItemCount(ctx context.Context"),
		strings.Index(parent, "computeTotalAmount(ctx context.Context"),
		"methods follow binding order")

	hook := string(files[1].Content)
	assert.Contains(t, hook, "func (o *InvoiceLine) updateRelatedInvoice(ctx context.Context, db aggregateQueryer, parent *Invoice) error {")
	assert.Contains(t, hook, "parent.updateLineItemCount(ctx, db)")
	assert.Contains(t, hook, "parent.updateTotalAmount(ctx, db)")

	assert.Contains(t, string(files[2].Content), "type aggregateQueryer interface")
}

func TestGenerate_PositionalArgumentsPerPlatform(t *testing.T) {
	tests := []struct {
		platform string
		query    string
	}{
		{platform: "mysql", query: `"SELECT SUM(amount) FROM invoice_line WHERE invoice_line.invoice_id = ?"`},
		{platform: "pgsql", query: `"SELECT SUM(amount) FROM invoice_line WHERE invoice_line.invoice_id = $1"`},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			db, result := invoiceResult(t, tt.platform)
			g, err := New("models", nil)
			require.NoError(t, err)

			files, err := g.Generate(db, result)
			require.NoError(t, err)
			parent := string(files[0].Content)
			assert.Contains(t, parent, "err := db.QueryRowContext(ctx, "+tt.query+",\n\t\to.ID,\n\t).Scan(&v)")
			assert.NotContains(t, parent, "sql.Named")
		})
	}
}

func TestGenerate_NoBindings(t *testing.T) {
	p, err := platform.Lookup("mysql")
	require.NoError(t, err)
	db := schema.NewDatabase("shop", p)
	require.NoError(t, db.AddTable(&schema.Table{Name: "invoice"}))
	g, err := New("models", nil)
	require.NoError(t, err)

	files, err := g.Generate(db, aggregate.Result{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestGenerate_InheritanceParentHasNoHookFile(t *testing.T) {
	p, err := platform.Lookup("mysql")
	require.NoError(t, err)
	db := schema.NewDatabase("shop", p)
	invoice := &schema.Table{Name: "invoice", Columns: []schema.Column{{Name: "id"}}}
	invoice.AddBehavior(&aggregate.ColumnBehavior{Specs: []aggregate.Spec{
		{TargetColumn: "line_item_count", ForeignTable: "invoice_line", Expression: "COUNT(*)"},
	}})
	line := &schema.Table{
		Name:        "invoice_line",
		ForeignKeys: []schema.ForeignKey{{ConstraintName: "fk", ColumnName: "invoice_id", ReferencedTable: "invoice", ReferencedColumn: "id"}},
	}
	line.AddBehavior(schema.DeclaredBehavior{BehaviorKind: schema.KindConcreteInheritanceParent})
	require.NoError(t, db.AddTable(invoice))
	require.NoError(t, db.AddTable(line))

	result, err := aggregate.NewProcessor(db, aggregate.Options{}).Run(context.Background())
	require.NoError(t, err)
	g, err := New("models", nil)
	require.NoError(t, err)

	files, err := g.Generate(db, result)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "invoice_aggregate.go", files[0].Path)
	assert.Equal(t, SupportFileName, files[1].Path)
}

func TestNew_RequiresPackage(t *testing.T) {
	_, err := New("", nil)
	require.Error(t, err)
}

func TestDDL(t *testing.T) {
	db, result := invoiceResult(t, "pgsql")
	assert.Equal(t,
		"ALTER TABLE invoice ADD COLUMN line_item_count INTEGER;\nALTER TABLE invoice ADD COLUMN total_amount INTEGER;\n",
		DDL(db.Platform, result))
}

func TestDDL_Quoted(t *testing.T) {
	_, result := invoiceResult(t, "mysql")
	p, err := platform.Lookup("mysql")
	require.NoError(t, err)

	ddl := DDL(p.WithIdentifierQuoting(true), result)
	assert.Contains(t, ddl, "ALTER TABLE `invoice` ADD COLUMN `line_item_count` INTEGER;")
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files := []File{{Path: "a.go", Content: []byte("package a\n")}}

	require.NoError(t, WriteFiles(dir, files))
	got, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(got))
}
