package schemanaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregen/internal/naming"
	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

func newDatabase(t *testing.T, tables ...*schema.Table) *schema.Database {
	t.Helper()
	p, err := platform.Lookup("pgsql")
	require.NoError(t, err)
	db := schema.NewDatabase("shop", p)
	for _, table := range tables {
		require.NoError(t, db.AddTable(table))
	}
	return db
}

func TestApply_TypeAndAccessorNames(t *testing.T) {
	db := newDatabase(t,
		&schema.Table{
			Name: "invoices",
			Columns: []schema.Column{
				{Name: "id", IsPrimaryKey: true},
				{Name: "line_item_count"},
			},
		},
		&schema.Table{
			Name:    "invoice_line",
			Columns: []schema.Column{{Name: "invoice_id"}},
		},
	)

	Apply(db, naming.Default())

	assert.Equal(t, "Invoice", db.Tables[0].TypeName)
	assert.Equal(t, "ID", db.Tables[0].Columns[0].Accessor)
	assert.Equal(t, "LineItemCount", db.Tables[0].Columns[1].Accessor)
	assert.Equal(t, "InvoiceLine", db.Tables[1].TypeName)
	assert.Equal(t, "InvoiceID", db.Tables[1].Columns[0].Accessor)
}

func TestApply_KeepsExistingAccessor(t *testing.T) {
	db := newDatabase(t, &schema.Table{
		Name:    "invoice",
		Columns: []schema.Column{{Name: "ref_no", Accessor: "Reference"}},
	})

	Apply(db, naming.Default())

	assert.Equal(t, "Reference", db.Tables[0].Columns[0].Accessor)
}

func TestApply_TypeCollisionAcrossSchemas(t *testing.T) {
	db := newDatabase(t,
		&schema.Table{Name: "invoice"},
		&schema.Table{Name: "invoice", Schema: "archive"},
	)

	Apply(db, naming.Default())

	assert.Equal(t, "Invoice", db.Tables[0].TypeName)
	assert.Equal(t, "Invoice2", db.Tables[1].TypeName)
}

func TestApply_DeterministicAcrossPasses(t *testing.T) {
	namer := naming.Default()
	db := newDatabase(t,
		&schema.Table{Name: "invoice"},
		&schema.Table{Name: "invoice", Schema: "archive"},
	)

	Apply(db, namer)
	first := []string{db.Tables[0].TypeName, db.Tables[1].TypeName}
	Apply(db, namer)
	second := []string{db.Tables[0].TypeName, db.Tables[1].TypeName}

	assert.Equal(t, first, second)
}

func TestApply_NilDatabase(t *testing.T) {
	assert.NotPanics(t, func() { Apply(nil, nil) })
}
