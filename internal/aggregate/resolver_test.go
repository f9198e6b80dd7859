package aggregate

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

func TestParseAmbiguityPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    AmbiguityPolicy
		wantErr bool
	}{
		{in: "", want: PolicyFirst},
		{in: "first", want: PolicyFirst},
		{in: " ERROR ", want: PolicyError},
		{in: "random", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmbiguityPolicy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_SingleForeignKey(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	r := NewResolver(db, PolicyFirst, nil)

	child, fk, err := r.Resolve(mustTable(t, db, "invoice"), lineItemCountSpec())
	require.NoError(t, err)
	assert.Equal(t, "invoice_line", child.Name)
	assert.Equal(t, "invoice_line_fk_invoice", fk.ConstraintName)
	assert.Equal(t, []schema.ColumnReference{{Local: "invoice_id", Foreign: "id"}}, fk.ColumnMapping())
}

func TestResolve_ChildTableNotFound(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	r := NewResolver(db, PolicyFirst, nil)

	spec := lineItemCountSpec()
	spec.ForeignTable = "missing"
	_, _, err := r.Resolve(mustTable(t, db, "invoice"), spec)

	require.ErrorIs(t, err, ErrChildTableNotFound)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "missing", cfgErr.ChildTable)
	assert.Equal(t, "foreign_table1", cfgErr.Key)
}

func TestResolve_UnresolvedRelationship(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	require.NoError(t, db.AddTable(&schema.Table{Name: "note", Columns: []schema.Column{{Name: "id"}}}))
	r := NewResolver(db, PolicyFirst, nil)

	spec := lineItemCountSpec()
	spec.ForeignTable = "note"
	_, _, err := r.Resolve(mustTable(t, db, "invoice"), spec)

	require.ErrorIs(t, err, ErrUnresolvedRelationship)
	assert.Contains(t, err.Error(), `"invoice"`)
	assert.Contains(t, err.Error(), `"note"`)
}

func addSecondInvoiceFK(t *testing.T, db *schema.Database) {
	t.Helper()
	line := mustTable(t, db, "invoice_line")
	line.AddColumn(schema.Column{Name: "credit_invoice_id", Type: "INTEGER"})
	line.ForeignKeys = append(line.ForeignKeys, schema.ForeignKey{
		ConstraintName: "invoice_line_fk_credit", ColumnName: "credit_invoice_id", ReferencedTable: "invoice", ReferencedColumn: "id", OrdinalPosition: 1,
	})
}

func TestResolve_AmbiguousFirstLogsWarning(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	addSecondInvoiceFK(t, db)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewResolver(db, PolicyFirst, logger)

	_, fk, err := r.Resolve(mustTable(t, db, "invoice"), lineItemCountSpec())
	require.NoError(t, err)
	// Constraints are ordered by name.
	assert.Equal(t, "invoice_line_fk_credit", fk.ConstraintName)
	assert.Contains(t, buf.String(), "multiple foreign keys reference parent table")
}

func TestResolve_AmbiguousErrorPolicy(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	addSecondInvoiceFK(t, db)
	r := NewResolver(db, PolicyError, nil)

	_, _, err := r.Resolve(mustTable(t, db, "invoice"), lineItemCountSpec())
	require.ErrorIs(t, err, ErrAmbiguousRelationship)
	assert.Contains(t, err.Error(), "invoice_line_fk_credit")
	assert.Contains(t, err.Error(), "invoice_line_fk_invoice")
}

func TestResolve_ExplicitForeignKey(t *testing.T) {
	db := newInvoiceDatabase(t, "mysql")
	addSecondInvoiceFK(t, db)
	r := NewResolver(db, PolicyError, nil)

	spec := lineItemCountSpec()
	spec.ForeignKey = "invoice_line_fk_invoice"
	_, fk, err := r.Resolve(mustTable(t, db, "invoice"), spec)
	require.NoError(t, err)
	assert.Equal(t, "invoice_line_fk_invoice", fk.ConstraintName)

	spec.ForeignKey = "nope"
	_, _, err = r.Resolve(mustTable(t, db, "invoice"), spec)
	require.ErrorIs(t, err, ErrUnknownForeignKey)
}

func TestResolve_SchemaAndPrefix(t *testing.T) {
	p, err := platform.Lookup("pgsql")
	require.NoError(t, err)
	db := schema.NewDatabase("shop", p)
	db.TablePrefix = "app_"
	parent := &schema.Table{Name: "app_invoice", Columns: []schema.Column{{Name: "id"}}}
	child := &schema.Table{
		Name:   "app_invoice_line",
		Schema: "sales",
		ForeignKeys: []schema.ForeignKey{
			{ConstraintName: "fk", ColumnName: "invoice_id", ReferencedTable: "app_invoice", ReferencedColumn: "id"},
		},
	}
	require.NoError(t, db.AddTable(parent))
	require.NoError(t, db.AddTable(child))
	r := NewResolver(db, PolicyFirst, nil)

	spec := Spec{Index: 1, TargetColumn: "n", ForeignTable: "invoice_line", ForeignSchema: "sales", Expression: "COUNT(*)"}
	assert.Equal(t, "sales.app_invoice_line", r.ChildTableName(spec))

	got, _, err := r.Resolve(parent, spec)
	require.NoError(t, err)
	assert.Same(t, child, got)
}
