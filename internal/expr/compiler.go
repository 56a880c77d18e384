// Package expr compiles the per-row expressions used by filters and
// applicators.
//
// Expressions are Starlark expressions (not statements) evaluated by a
// sandboxed interpreter. Each compiled expression sees exactly two free
// variables, row and x, plus the Starlark universe and the predeclared
// conversion namespace (see Predeclared).
package expr

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Parameter names bound for every compiled expression.
const (
	RowParam   = "row"
	ValueParam = "x"
)

// Row is the read-only view of a row handed to expressions.
type Row interface {
	Columns() []string
	Get(col string) (string, bool)
}

// Compiler turns expression text into callable functions. A Compiler and the
// functions it produces share one interpreter thread and must not be used
// from multiple goroutines.
type Compiler struct {
	predeclared starlark.StringDict
	thread      *starlark.Thread
}

// NewCompiler creates a compiler with the default predeclared namespace.
func NewCompiler() *Compiler {
	return &Compiler{
		predeclared: Predeclared(),
		thread:      newThread("profq"),
	}
}

// Compile parses and compiles text. The name is used in error messages.
func (c *Compiler) Compile(name, text string) (*Func, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &EvalError{Name: name, Expr: text, Message: "empty expression"}
	}

	// Reject anything that is not a single well-formed expression before it
	// is spliced into the lambda below.
	if _, err := syntax.ParseExpr(name, text, 0); err != nil { //nolint:staticcheck // SA1019: legacy options are what Eval uses too
		return nil, &EvalError{Name: name, Expr: text, Message: err.Error()}
	}

	src := fmt.Sprintf("lambda %s, %s: (\n%s\n)", RowParam, ValueParam, text)
	v, err := starlark.Eval(c.thread, name, src, c.predeclared) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return nil, &EvalError{Name: name, Expr: text, Message: err.Error()}
	}

	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, &EvalError{Name: name, Expr: text, Message: fmt.Sprintf("compiled to %s, not a function", v.Type())}
	}

	return &Func{name: name, text: text, fn: fn, thread: c.thread}, nil
}

// Func is a compiled expression.
type Func struct {
	name   string
	text   string
	fn     *starlark.Function
	thread *starlark.Thread
}

// Name returns the name the expression was compiled under.
func (f *Func) Name() string { return f.name }

// Text returns the source text of the expression.
func (f *Func) Text() string { return f.text }

// Call evaluates the expression for row. x is the current column value, or
// nil when the expression is not bound to a column (it is then None).
func (f *Func) Call(row Row, x *string) (starlark.Value, error) {
	var xv starlark.Value = starlark.None
	if x != nil {
		xv = starlark.String(*x)
	}

	v, err := starlark.Call(f.thread, f.fn, starlark.Tuple{rowToStarlark(row), xv}, nil)
	if err != nil {
		return nil, &EvalError{Name: f.name, Expr: f.text, Message: err.Error()}
	}
	return v, nil
}

// Predicate evaluates the expression and reports its truthiness.
func (f *Func) Predicate(row Row, x *string) (bool, error) {
	v, err := f.Call(row, x)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

// Transform evaluates the expression and renders the result as a column value.
func (f *Func) Transform(row Row, x *string) (string, error) {
	v, err := f.Call(row, x)
	if err != nil {
		return "", err
	}
	return ToString(v), nil
}

// newThread creates an interpreter thread. Expressions have no output channel,
// so print() is discarded.
func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, _ string) {},
	}
}

// EvalError represents a failure to compile or evaluate an expression.
type EvalError struct {
	Name    string
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: error evaluating %q: %s", e.Name, e.Expr, e.Message)
}
