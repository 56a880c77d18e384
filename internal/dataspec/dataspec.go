// Package dataspec parses data specifiers, the compact table/column
// addressing strings used by filters, applicators and selections.
//
// Grammar:
//
//	TABLE[:COLUMN[@COLUMN]*]
//
// A specifier without a column list addresses whole rows. Names are not
// checked against a schema here; unknown tables or columns surface when the
// profile attaches an action or resolves a selection.
package dataspec

import (
	"fmt"
	"strings"
)

const (
	tableSep  = ":"
	columnSep = "@"
)

// Specifier addresses a table and, optionally, an ordered list of its columns.
type Specifier struct {
	Table   string
	Columns []string
}

// Parse parses text of the form TABLE[:COL[@COL]*].
func Parse(text string) (Specifier, error) {
	table, cols, hasCols := strings.Cut(strings.TrimSpace(text), tableSep)
	if table == "" {
		return Specifier{}, &ParseError{Text: text, Reason: "missing table name"}
	}

	spec := Specifier{Table: table}
	if !hasCols {
		return spec, nil
	}

	for _, col := range strings.Split(cols, columnSep) {
		if col == "" {
			return Specifier{}, &ParseError{Text: text, Reason: "empty column name"}
		}
		spec.Columns = append(spec.Columns, col)
	}
	return spec, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(text string) Specifier {
	spec, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return spec
}

// WholeRow reports whether the specifier addresses entire rows.
func (s Specifier) WholeRow() bool {
	return len(s.Columns) == 0
}

// String renders the specifier back into its textual form.
func (s Specifier) String() string {
	if s.WholeRow() {
		return s.Table
	}
	return s.Table + tableSep + strings.Join(s.Columns, columnSep)
}

// ParseError describes a malformed data specifier.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid data specifier %q: %s", e.Text, e.Reason)
}
