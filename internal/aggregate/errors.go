package aggregate

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration error kinds, usable with errors.Is.
var (
	ErrMissingTargetColumn          = errors.New("missing target column")
	ErrMissingForeignTableReference = errors.New("missing foreign table reference")
	ErrMissingExpression            = errors.New("missing aggregation expression")
	ErrChildTableNotFound           = errors.New("child table not found")
	ErrUnresolvedRelationship       = errors.New("no foreign key references the parent table")
	ErrAmbiguousRelationship        = errors.New("more than one foreign key references the parent table")
	ErrDuplicateTargetColumn        = errors.New("duplicate target column")
	ErrUnknownForeignKey            = errors.New("unknown foreign key")
)

// ConfigError reports an invalid aggregate column declaration.
type ConfigError struct {
	Kind       error
	Table      string
	ChildTable string
	// Index is the 1-based spec index, or 0 when not tied to one spec.
	Index int
	// Key is the offending configuration key, e.g. "name2".
	Key    string
	Detail string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "aggregate column on table %q", e.Table)
	if e.Index > 0 {
		fmt.Fprintf(&b, " (index %d", e.Index)
		if e.Key != "" {
			fmt.Fprintf(&b, ", key %q", e.Key)
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.ChildTable != "" {
		fmt.Fprintf(&b, " (child table %q)", e.ChildTable)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Kind
}

func indexedKey(key string, index int) string {
	return fmt.Sprintf("%s%d", key, index)
}
