package profile

import (
	"fmt"

	"github.com/leapstack-labs/profq/internal/profile/field"
)

// Row is one record of a table. Values are kept in schema column order.
type Row struct {
	schema *TableSchema
	values []string
}

// NewRow creates a row for schema. Missing trailing values are empty; extra
// values are an error.
func NewRow(schema *TableSchema, values []string) (*Row, error) {
	if len(values) > len(schema.Fields) {
		return nil, fmt.Errorf("table %s: expected %d fields, got %d", schema.Name, len(schema.Fields), len(values))
	}
	vals := make([]string, len(schema.Fields))
	copy(vals, values)
	return &Row{schema: schema, values: vals}, nil
}

// Table returns the name of the row's table.
func (r *Row) Table() string {
	return r.schema.Name
}

// Columns returns the column names in schema order.
func (r *Row) Columns() []string {
	return r.schema.FieldNames()
}

// Get returns the value of col.
func (r *Row) Get(col string) (string, bool) {
	i := r.schema.Index(col)
	if i < 0 {
		return "", false
	}
	return r.values[i], true
}

// Set replaces the value of col.
func (r *Row) Set(col, value string) error {
	i := r.schema.Index(col)
	if i < 0 {
		return &UnknownColumnError{Table: r.schema.Name, Column: col}
	}
	r.values[i] = value
	return nil
}

// Values returns a copy of all values in schema order.
func (r *Row) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Select returns the values of cols in the given order.
func (r *Row) Select(cols []string) ([]string, error) {
	out := make([]string, len(cols))
	for i, col := range cols {
		v, ok := r.Get(col)
		if !ok {
			return nil, &UnknownColumnError{Table: r.schema.Name, Column: col}
		}
		out[i] = v
	}
	return out, nil
}

// Encode renders the row as one table-file line (without newline).
func (r *Row) Encode() string {
	return field.Join(r.values)
}
