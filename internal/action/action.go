// Package action builds the filter and applicator actions that a profile view
// runs against each row: a data specifier paired with a compiled expression.
package action

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/profq/internal/dataspec"
	"github.com/leapstack-labs/profq/internal/expr"
)

// Kind distinguishes filters from applicators.
type Kind int

const (
	// Filter drops rows for which the expression is not true.
	Filter Kind = iota
	// Applicator replaces column values with the expression result.
	Applicator
)

func (k Kind) String() string {
	switch k {
	case Filter:
		return "filter"
	case Applicator:
		return "apply"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrNoColumns is returned for an applicator whose specifier names no column.
var ErrNoColumns = errors.New("applicator requires at least one column")

// Row is a mutable row as seen by actions.
type Row interface {
	expr.Row
	Set(col, value string) error
}

// Action is an immutable filter or applicator bound to one table.
type Action struct {
	kind Kind
	spec dataspec.Specifier
	fn   *expr.Func
}

// New parses specText, compiles exprText and combines them into an action.
func New(c *expr.Compiler, kind Kind, specText, exprText string) (*Action, error) {
	spec, err := dataspec.Parse(specText)
	if err != nil {
		return nil, err
	}
	if kind == Applicator && spec.WholeRow() {
		return nil, fmt.Errorf("%s %s: %w", kind, spec, ErrNoColumns)
	}

	fn, err := c.Compile(fmt.Sprintf("%s[%s]", kind, spec), exprText)
	if err != nil {
		return nil, err
	}

	return &Action{kind: kind, spec: spec, fn: fn}, nil
}

// Kind returns whether the action is a filter or an applicator.
func (a *Action) Kind() Kind { return a.kind }

// Table returns the table the action applies to.
func (a *Action) Table() string { return a.spec.Table }

// Columns returns the columns the action is bound to (empty for whole-row filters).
func (a *Action) Columns() []string { return a.spec.Columns }

// Spec returns the parsed data specifier.
func (a *Action) Spec() dataspec.Specifier { return a.spec }

// Expr returns the expression source text.
func (a *Action) Expr() string { return a.fn.Text() }

func (a *Action) String() string {
	return fmt.Sprintf("%s %s=%s", a.kind, a.spec, a.fn.Text())
}

// Apply runs an applicator on row, writing each bound column in turn. Later
// columns observe the values written for earlier ones.
func (a *Action) Apply(row Row) error {
	if a.kind != Applicator {
		return fmt.Errorf("%s is not an applicator", a)
	}
	for _, col := range a.spec.Columns {
		x, ok := row.Get(col)
		if !ok {
			return fmt.Errorf("%s: no column %q", a, col)
		}
		v, err := a.fn.Transform(row, &x)
		if err != nil {
			return err
		}
		if err := row.Set(col, v); err != nil {
			return err
		}
	}
	return nil
}

// Keep reports whether a filter retains row. With several columns the
// expression must hold for each of them; with none it is called once with
// x set to None.
func (a *Action) Keep(row Row) (bool, error) {
	if a.kind != Filter {
		return false, fmt.Errorf("%s is not a filter", a)
	}
	if a.spec.WholeRow() {
		return a.fn.Predicate(row, nil)
	}
	for _, col := range a.spec.Columns {
		x, ok := row.Get(col)
		if !ok {
			return false, fmt.Errorf("%s: no column %q", a, col)
		}
		keep, err := a.fn.Predicate(row, &x)
		if err != nil || !keep {
			return false, err
		}
	}
	return true, nil
}
