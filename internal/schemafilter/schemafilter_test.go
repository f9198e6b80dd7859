package schemafilter

import (
	"testing"

	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

func newDatabase(t *testing.T, tables ...*schema.Table) *schema.Database {
	t.Helper()
	p, err := platform.Lookup("mysql")
	if err != nil {
		t.Fatalf("lookup platform: %v", err)
	}
	db := schema.NewDatabase("shop", p)
	for _, table := range tables {
		if err := db.AddTable(table); err != nil {
			t.Fatalf("add table: %v", err)
		}
	}
	return db
}

func TestApply_AllowsAllByDefault(t *testing.T) {
	db := newDatabase(t,
		&schema.Table{Name: "users", Columns: []schema.Column{{Name: "id"}}},
		&schema.Table{Name: "orders", Columns: []schema.Column{{Name: "id"}}},
	)

	Apply(db, Config{})

	if len(db.Tables) != 2 {
		t.Fatalf("expected all tables to remain, got %d", len(db.Tables))
	}
}

func TestApply_TableAndColumnFilters(t *testing.T) {
	db := newDatabase(t,
		&schema.Table{
			Name: "users",
			Columns: []schema.Column{
				{Name: "id", IsPrimaryKey: true},
				{Name: "email"},
				{Name: "password_hash"},
			},
		},
		&schema.Table{
			Name: "audit_intern",
			Columns: []schema.Column{
				{Name: "id", IsPrimaryKey: true},
				{Name: "payload"},
			},
		},
	)

	Apply(db, Config{
		AllowTables: []string{"*"},
		DenyTables:  []string{"*_INTERN"},
		AllowColumns: map[string][]string{
			"*": {"*"},
		},
		DenyColumns: map[string][]string{
			"users": {"password_*"},
		},
	})

	if len(db.Tables) != 1 {
		t.Fatalf("expected 1 table after filtering, got %d", len(db.Tables))
	}
	if _, ok := db.Table("audit_intern"); ok {
		t.Fatalf("expected audit_intern to be removed from the registry")
	}
	users := db.Tables[0]
	if users.HasColumn("password_hash") {
		t.Fatalf("expected password_hash to be filtered")
	}
	if !users.HasColumn("email") {
		t.Fatalf("expected email to remain")
	}
}

func TestApply_RemovesForeignKeysForFilteredTablesAndColumns(t *testing.T) {
	db := newDatabase(t,
		&schema.Table{Name: "invoice", Columns: []schema.Column{{Name: "id"}}},
		&schema.Table{Name: "customer", Columns: []schema.Column{{Name: "id"}}},
		&schema.Table{
			Name: "invoice_line",
			Columns: []schema.Column{
				{Name: "id"},
				{Name: "invoice_id"},
				{Name: "customer_id"},
				{Name: "legacy_invoice_id"},
			},
			ForeignKeys: []schema.ForeignKey{
				{ConstraintName: "fk_invoice", ColumnName: "invoice_id", ReferencedTable: "invoice", ReferencedColumn: "id"},
				{ConstraintName: "fk_customer", ColumnName: "customer_id", ReferencedTable: "customer", ReferencedColumn: "id"},
				{ConstraintName: "fk_legacy", ColumnName: "legacy_invoice_id", ReferencedTable: "invoice", ReferencedColumn: "id"},
			},
		},
	)

	Apply(db, Config{
		DenyTables:  []string{"customer"},
		DenyColumns: map[string][]string{"invoice_line": {"legacy_*"}},
	})

	line, ok := db.Table("invoice_line")
	if !ok {
		t.Fatalf("expected invoice_line to remain")
	}
	if len(line.ForeignKeys) != 1 || line.ForeignKeys[0].ConstraintName != "fk_invoice" {
		t.Fatalf("unexpected foreign keys: %#v", line.ForeignKeys)
	}
}

func TestApply_AllowListMatchesQualifiedNames(t *testing.T) {
	p, err := platform.Lookup("pgsql")
	if err != nil {
		t.Fatalf("lookup platform: %v", err)
	}
	db := schema.NewDatabase("shop", p)
	for _, table := range []*schema.Table{
		{Name: "invoice", Schema: "sales"},
		{Name: "invoice", Schema: "archive"},
	} {
		if err := db.AddTable(table); err != nil {
			t.Fatalf("add table: %v", err)
		}
	}

	Apply(db, Config{AllowTables: []string{"sales.*"}})

	if len(db.Tables) != 1 || db.Tables[0].Schema != "sales" {
		t.Fatalf("expected only sales.invoice, got %#v", db.Tables)
	}
}

func TestApply_NilDatabase(t *testing.T) {
	Apply(nil, Config{DenyTables: []string{"*"}})
}
