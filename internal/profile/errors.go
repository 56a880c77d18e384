package profile

import "fmt"

// UnknownTableError is returned when a table is not declared in the relations.
type UnknownTableError struct {
	Table     string
	Available []string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q\nAvailable tables: %v", e.Table, e.Available)
}

// UnknownColumnError is returned when a column is not declared for its table.
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("table %s has no column %q", e.Table, e.Column)
}
