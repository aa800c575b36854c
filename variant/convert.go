package variant

import (
	"math"

	"github.com/wippyai/native-addin/errors"
)

// AsBool extracts a bool. Only Bool converts.
func AsBool(v Value) (bool, error) {
	if b, ok := v.(Bool); ok {
		return bool(b), nil
	}
	return false, mismatch("bool", v)
}

// AsInt extracts an int64 from Int, or from a Real holding an exact
// integral value within int64 range.
func AsInt(v Value) (int64, error) {
	switch x := v.(type) {
	case Int:
		return int64(x), nil
	case Real:
		f := float64(x)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f), nil
		}
		return 0, errors.Overflow(errors.PhaseInvoke, nil, f, "int64")
	}
	return 0, mismatch("int64", v)
}

// AsReal extracts a float64 from Real or Int.
func AsReal(v Value) (float64, error) {
	switch x := v.(type) {
	case Real:
		return float64(x), nil
	case Int:
		return float64(x), nil
	}
	return 0, mismatch("float64", v)
}

// AsString extracts a Go string from Text or NarrowText.
func AsString(v Value) (string, error) {
	switch x := v.(type) {
	case Text:
		return x.String(), nil
	case NarrowText:
		return string(x.data), nil
	}
	return "", mismatch("string", v)
}

// AsBytes extracts the payload of Binary or NarrowText.
func AsBytes(v Value) ([]byte, error) {
	switch x := v.(type) {
	case Binary:
		return x.Bytes(), nil
	case NarrowText:
		return x.Bytes(), nil
	}
	return nil, mismatch("[]byte", v)
}

// IsAbsent reports whether v is nil or Absent.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Absent)
	return ok
}

func mismatch(goType string, v Value) error {
	got := "nil"
	if v != nil {
		got = v.Kind().String()
	}
	return errors.TypeMismatch(errors.PhaseInvoke, nil, goType, got)
}
