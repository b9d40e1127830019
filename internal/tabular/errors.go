// Defines the error taxonomy for the tabular store.

package tabular

import "fmt"

// SchemaError reports a reference to a column or argument that does not fit
// the table's schema: missing match columns, an unknown header in a query,
// or an invalid enum value.
type SchemaError struct {
	Table  string
	Reason string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Table == "" {
		return e.Reason
	}
	return fmt.Sprintf("table %q: %s", e.Table, e.Reason)
}

// ValidationError reports an unsupported argument combination.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Reason
}

func schemaErrorf(table, format string, args ...any) error {
	return &SchemaError{Table: table, Reason: fmt.Sprintf(format, args...)}
}
