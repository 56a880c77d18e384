package expr

import (
	"go.starlark.net/starlark"
)

// rowToStarlark converts a row to a frozen Starlark dict, keeping column order.
// Freezing makes any attempt to assign into row a runtime error.
func rowToStarlark(row Row) *starlark.Dict {
	cols := row.Columns()
	dict := starlark.NewDict(len(cols))
	for _, col := range cols {
		v, _ := row.Get(col)
		_ = dict.SetKey(starlark.String(col), starlark.String(v))
	}
	dict.Freeze()
	return dict
}

// ToString renders a Starlark value the way it is stored in a table cell.
// Strings are stored as-is, None becomes the empty string, and everything
// else uses Starlark's str() form.
func ToString(v starlark.Value) string {
	switch val := v.(type) {
	case starlark.String:
		return string(val)
	case starlark.NoneType:
		return ""
	default:
		return v.String()
	}
}
