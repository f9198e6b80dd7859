// Package naming provides centralized naming logic for converting SQL schema
// names to Go identifiers, including pluralization, initialisms, and collision
// handling for generated types.
package naming

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	// Example: {"people": "person", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// TypeOverrides maps table name -> generated Go type name.
	// Example: {"tbl_invoice": "Invoice"}
	TypeOverrides map[string]string `mapstructure:"type_overrides"`

	// AccessorOverrides maps column name -> generated accessor identifier.
	// Example: {"nb_lines": "LineCount"}
	AccessorOverrides map[string]string `mapstructure:"accessor_overrides"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
		TypeOverrides:     make(map[string]string),
		AccessorOverrides: make(map[string]string),
	}
}
