// Package sqltype provides a shared mapping from SQL data types to Go type categories.
// Generated compute methods use it to pick the scan target and result type.
package sqltype

import "strings"

// Category represents the Go value category of a SQL column.
type Category int

const (
	// TypeString is the default type for text, dates, and unknown SQL types.
	TypeString Category = iota
	// TypeInt represents integer numeric types.
	TypeInt
	// TypeFloat represents floating-point and fixed-point numeric types.
	TypeFloat
	// TypeBoolean represents boolean types.
	TypeBoolean
)

// Map converts a SQL data type string to its corresponding category.
// The input is case-insensitive. Size specifiers like (10,2) or (255) are stripped before matching.
func Map(sqlType string) Category {
	// Strip size specifiers like (10,2) or (255)
	if idx := strings.Index(sqlType, "("); idx != -1 {
		sqlType = sqlType[:idx]
	}
	switch strings.ToUpper(strings.TrimSpace(sqlType)) {
	// Integer Numeric Data Types
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT",
		"INTEGER", "BIGINT", "SERIAL", "BIGSERIAL", "BIT":
		return TypeInt
	// Floating Point Numeric Data Types
	case "FLOAT", "DOUBLE", "REAL", "DOUBLE PRECISION":
		return TypeFloat
	// Fixed-Point Numeric Data Types
	case "DECIMAL", "NUMERIC":
		return TypeFloat
	// Boolean Data Type
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	default:
		return TypeString
	}
}

// IsNumeric reports whether the category holds numbers.
func (c Category) IsNumeric() bool {
	return c == TypeInt || c == TypeFloat
}

// GoType returns the Go type name used for generated fields and return values.
func (c Category) GoType() string {
	switch c {
	case TypeInt:
		return "int64"
	case TypeFloat:
		return "float64"
	case TypeBoolean:
		return "bool"
	default:
		return "string"
	}
}

// NullType returns the database/sql null wrapper used as a scan target.
// Aggregates such as SUM over zero rows yield NULL.
func (c Category) NullType() string {
	switch c {
	case TypeInt:
		return "sql.NullInt64"
	case TypeFloat:
		return "sql.NullFloat64"
	case TypeBoolean:
		return "sql.NullBool"
	default:
		return "sql.NullString"
	}
}

// NullField returns the value field of the NullType wrapper.
func (c Category) NullField() string {
	switch c {
	case TypeInt:
		return "Int64"
	case TypeFloat:
		return "Float64"
	case TypeBoolean:
		return "Bool"
	default:
		return "String"
	}
}
