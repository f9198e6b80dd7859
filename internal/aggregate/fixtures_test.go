package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

// newInvoiceDatabase builds invoice and invoice_line, with invoice_line.invoice_id -> invoice.id.
func newInvoiceDatabase(t *testing.T, platformName string) *schema.Database {
	t.Helper()
	p, err := platform.Lookup(platformName)
	require.NoError(t, err)
	db := schema.NewDatabase("shop", p)

	invoice := &schema.Table{
		Name: "invoice",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", IsPrimaryKey: true},
			{Name: "customer", Type: "VARCHAR(255)"},
		},
	}
	line := &schema.Table{
		Name: "invoice_line",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", IsPrimaryKey: true},
			{Name: "invoice_id", Type: "INTEGER"},
			{Name: "amount", Type: "DECIMAL(10,2)"},
		},
		ForeignKeys: []schema.ForeignKey{
			{ConstraintName: "invoice_line_fk_invoice", ColumnName: "invoice_id", ReferencedTable: "invoice", ReferencedColumn: "id", OrdinalPosition: 1},
		},
	}
	require.NoError(t, db.AddTable(invoice))
	require.NoError(t, db.AddTable(line))
	return db
}

func mustTable(t *testing.T, db *schema.Database, name string) *schema.Table {
	t.Helper()
	table, ok := db.Table(name)
	require.True(t, ok, "table %s", name)
	return table
}

func lineItemCountSpec() Spec {
	return Spec{Index: 1, TargetColumn: "line_item_count", ForeignTable: "invoice_line", Expression: "COUNT(*)"}
}

func attachSpecs(table *schema.Table, specs ...Spec) {
	table.AddBehavior(&ColumnBehavior{Specs: specs})
}

func attachFlat(table *schema.Table, params ...schema.Parameter) {
	table.AddBehavior(schema.DeclaredBehavior{BehaviorKind: schema.KindAggregateColumn, Params: params})
}

func param(name, value string) schema.Parameter {
	return schema.Parameter{Name: name, Value: value}
}
