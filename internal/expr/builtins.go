package expr

import (
	"fmt"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"

	"github.com/leapstack-labs/profq/internal/convert"
)

// Predeclared returns the fixed namespace visible to every expression besides
// row, x and the Starlark universe:
//
//	convert(value, source, target)  run a registered representation converter
//	converters()                    list registered "source->target" pairs
//	math                            Starlark math module
//	json                            Starlark json module (encode/decode)
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"convert":    starlark.NewBuiltin("convert", convertValue),
		"converters": starlark.NewBuiltin("converters", listConverters),
		"math":       math.Module,
		"json":       json.Module,
	}
}

func convertValue(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value, source, target string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "source", &source, "target", &target); err != nil {
		return nil, err
	}
	out, err := convert.Convert(value, source, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.String(out), nil
}

func listConverters(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	names := convert.List()
	list := make([]starlark.Value, len(names))
	for i, n := range names {
		list[i] = starlark.String(n)
	}
	return starlark.NewList(list), nil
}
