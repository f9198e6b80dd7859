package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		schemas  bool
	}{
		{"mysql", "mysql", true},
		{"TiDB", "mysql", true},
		{"postgres", "pgsql", true},
		{"pgsql", "pgsql", true},
		{"sqlite3", "sqlite", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := Lookup(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Name)
			assert.Equal(t, tt.schemas, p.SupportsSchemas)
			assert.Equal(t, "INTEGER", p.IntegerType)
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform")
}

func TestQuoteIdentifier(t *testing.T) {
	mysql, err := Lookup("mysql")
	require.NoError(t, err)
	pg, err := Lookup("pgsql")
	require.NoError(t, err)

	assert.Equal(t, "invoice_line", mysql.QuoteIdentifier("invoice_line"), "quoting disabled by default")
	assert.Equal(t, "`invoice_line`", mysql.WithIdentifierQuoting(true).QuoteIdentifier("invoice_line"))
	assert.Equal(t, "`sales`.`invoice_line`", mysql.WithIdentifierQuoting(true).QuoteIdentifier("sales.invoice_line"))
	assert.Equal(t, `"sales"."invoice_line"`, pg.WithIdentifierQuoting(true).QuoteIdentifier("sales.invoice_line"))
}

func TestPlaceholderAndDriver(t *testing.T) {
	pg, err := Lookup("pgsql")
	require.NoError(t, err)
	sql, err := pg.Placeholder().ReplacePlaceholders("a = ? AND b = ?")
	require.NoError(t, err)
	assert.Equal(t, "a = $1 AND b = $2", sql)
	assert.Equal(t, "pgx", pg.DriverName())

	mysql, err := Lookup("mysql")
	require.NoError(t, err)
	assert.Equal(t, "mysql", mysql.DriverName())
}
