package naming

import (
	"log/slog"
	"strings"
)

// commonInitialisms lists tokens rendered fully upper-case in Go identifiers.
var commonInitialisms = map[string]string{
	"api":  "API",
	"html": "HTML",
	"http": "HTTP",
	"id":   "ID",
	"ip":   "IP",
	"json": "JSON",
	"sku":  "SKU",
	"sql":  "SQL",
	"uri":  "URI",
	"url":  "URL",
	"uuid": "UUID",
	"vat":  "VAT",
}

// Namer provides all name transformation functions for converting SQL names
// to Go identifiers. It handles pluralization, initialisms, and type collisions.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a new build pass.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// AccessorName converts a column name to its generated accessor identifier.
// Example: "line_item_count" -> "LineItemCount", "invoice_id" -> "InvoiceID"
func (n *Namer) AccessorName(columnName string) string {
	if override, ok := n.config.AccessorOverrides[columnName]; ok {
		return override
	}
	return toPascalCase(columnName)
}

// TypeName converts a table name to the singular Go type name of its rows.
// Any schema qualifier is dropped.
// Example: "sales.invoice_lines" -> "InvoiceLine"
func (n *Namer) TypeName(tableName string) string {
	if override, ok := n.config.TypeOverrides[tableName]; ok {
		return override
	}
	base := tableName
	if idx := strings.LastIndex(base, "."); idx != -1 {
		base = base[idx+1:]
	}
	return toPascalCase(n.Singularize(base))
}

// RegisterType registers a table and returns its collision-free Go type name.
func (n *Namer) RegisterType(tableName string) string {
	return n.resolver.RegisterType(n.TypeName(tableName), tableName)
}

// RegisterMethod records a generated method name on a type and reports whether
// it is free for the given source.
func (n *Namer) RegisterMethod(typeName, methodName, source string) bool {
	return n.resolver.RegisterMethod(typeName, methodName, source)
}

// MethodName joins a lower-case verb with an accessor.
// Example: ("update", "LineItemCount") -> "updateLineItemCount"
func (n *Namer) MethodName(verb, accessor string) string {
	return verb + accessor
}

// RelationName generates the accessor for a many-to-one relation based on the
// FK column name with common suffixes stripped.
// Example: "author_id" -> "Author", "created_by_user_id" -> "CreatedByUser"
func (n *Namer) RelationName(fkColumn string) string {
	name := fkColumn
	// Strip common FK suffixes
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return toPascalCase(name)
}

// FileStem converts a qualified table name into a lower snake_case file stem.
// Example: "sales.InvoiceLine" -> "sales_invoiceline"
func (n *Namer) FileStem(tableName string) string {
	return strings.ToLower(strings.ReplaceAll(tableName, ".", "_"))
}

// toPascalCase converts snake_case to PascalCase, upper-casing common initialisms.
func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if initialism, ok := commonInitialisms[strings.ToLower(part)]; ok {
			parts[i] = initialism
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}
