// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifierWith quotes a single identifier with the given quote mark,
// doubling any embedded quote marks.
func QuoteIdentifierWith(name, quote string) string {
	escaped := strings.ReplaceAll(name, quote, quote+quote)
	return quote + escaped + quote
}

// QuoteQualified quotes each dot-separated part of a qualified name,
// e.g. sales.invoice -> "sales"."invoice".
func QuoteQualified(name, quote string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = QuoteIdentifierWith(part, quote)
	}
	return strings.Join(parts, ".")
}
