package script

import (
	"go.starlark.net/starlark"

	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/variant"
)

// ToStarlark converts a dynamic value for use in a script. Narrow text
// becomes a string, binary data becomes bytes.
func ToStarlark(v variant.Value) starlark.Value {
	switch x := v.(type) {
	case nil, variant.Absent:
		return starlark.None
	case variant.Bool:
		return starlark.Bool(x)
	case variant.Int:
		return starlark.MakeInt64(int64(x))
	case variant.Real:
		return starlark.Float(x)
	case variant.Text:
		return starlark.String(x.String())
	case variant.NarrowText:
		return starlark.String(x.String())
	case variant.Binary:
		return starlark.Bytes(x.Bytes())
	}
	return starlark.None
}

// FromStarlark converts a script value to a dynamic value. Integers must
// fit in int64; lists, dicts and other types are rejected.
func FromStarlark(v starlark.Value, path ...string) (variant.Value, error) {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return variant.Absent{}, nil
	case starlark.Bool:
		return variant.Bool(x), nil
	case starlark.Int:
		n, ok := x.Int64()
		if !ok {
			return nil, errors.Overflow(errors.PhaseScript, path, x.String(), "int64")
		}
		return variant.Int(n), nil
	case starlark.Float:
		return variant.Real(x), nil
	case starlark.String:
		return variant.TextOf(string(x)), nil
	case starlark.Bytes:
		return variant.BinaryOf([]byte(x)), nil
	}
	return nil, errors.TypeMismatch(errors.PhaseScript, path, "variant.Value", v.Type())
}
