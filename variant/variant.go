package variant

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Kind identifies the active case of a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindBool
	KindInt
	KindReal
	KindText
	KindNarrowText
	KindBinary
)

var kindNames = [...]string{
	KindAbsent:     "absent",
	KindBool:       "bool",
	KindInt:        "int",
	KindReal:       "real",
	KindText:       "text",
	KindNarrowText: "narrow-text",
	KindBinary:     "binary",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a closed sum type: Bool, Int, Real, Text, NarrowText, Binary or
// Absent. Values are immutable once constructed.
type Value interface {
	Kind() Kind
	String() string
	sealed()
}

// Bool is a boolean value.
type Bool bool

// Int is a 64-bit signed integer value.
type Int int64

// Real is a double-precision value.
type Real float64

// Text is a UTF-16 string.
type Text struct {
	units []uint16
}

// NarrowText is an 8-bit string.
type NarrowText struct {
	data []byte
}

// Binary is an opaque byte sequence.
type Binary struct {
	data []byte
}

// Absent is the "no value" case.
type Absent struct{}

func (Bool) Kind() Kind       { return KindBool }
func (Int) Kind() Kind        { return KindInt }
func (Real) Kind() Kind       { return KindReal }
func (Text) Kind() Kind       { return KindText }
func (NarrowText) Kind() Kind { return KindNarrowText }
func (Binary) Kind() Kind     { return KindBinary }
func (Absent) Kind() Kind     { return KindAbsent }

func (Bool) sealed()       {}
func (Int) sealed()        {}
func (Real) sealed()       {}
func (Text) sealed()       {}
func (NarrowText) sealed() {}
func (Binary) sealed()     {}
func (Absent) sealed()     {}

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }
func (v Int) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v Real) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Text) String() string { return string(utf16.Decode(v.units)) }
func (v NarrowText) String() string {
	return string(v.data)
}
func (v Binary) String() string { return fmt.Sprintf("binary(%d)", len(v.data)) }
func (Absent) String() string   { return "" }

// TextOf encodes s as UTF-16.
func TextOf(s string) Text {
	return Text{units: utf16.Encode([]rune(s))}
}

// TextFromUnits copies units into a Text.
func TextFromUnits(units []uint16) Text {
	return Text{units: slices.Clone(units)}
}

// Units returns a copy of the UTF-16 code units.
func (v Text) Units() []uint16 { return slices.Clone(v.units) }

// Len returns the number of UTF-16 code units.
func (v Text) Len() int { return len(v.units) }

// NarrowOf copies b into a NarrowText.
func NarrowOf(b []byte) NarrowText {
	return NarrowText{data: bytes.Clone(b)}
}

// Bytes returns a copy of the narrow text bytes.
func (v NarrowText) Bytes() []byte { return bytes.Clone(v.data) }

// Len returns the number of bytes.
func (v NarrowText) Len() int { return len(v.data) }

// BinaryOf copies b into a Binary.
func BinaryOf(b []byte) Binary {
	return Binary{data: bytes.Clone(b)}
}

// Bytes returns a copy of the payload.
func (v Binary) Bytes() []byte { return bytes.Clone(v.data) }

// Len returns the payload length.
func (v Binary) Len() int { return len(v.data) }

// Equal reports whether a and b hold the same case and payload. Real values
// compare by bit pattern so that NaN equals itself.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Bool:
		return x == b.(Bool)
	case Int:
		return x == b.(Int)
	case Real:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Real)))
	case Text:
		return slices.Equal(x.units, b.(Text).units)
	case NarrowText:
		return bytes.Equal(x.data, b.(NarrowText).data)
	case Binary:
		return bytes.Equal(x.data, b.(Binary).data)
	case Absent:
		return true
	default:
		return false
	}
}

// Of converts a native Go value into a Value. Supported inputs are bool,
// signed and unsigned integers that fit int64, float32/float64, string
// (as Text), []byte (as Binary), nil (as Absent) and Value itself.
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Absent{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(x), nil
	case uint16:
		return Int(x), nil
	case uint32:
		return Int(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("variant: uint %d overflows int64", x)
		}
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("variant: uint64 %d overflows int64", x)
		}
		return Int(x), nil
	case float32:
		return Real(x), nil
	case float64:
		return Real(x), nil
	case string:
		return TextOf(x), nil
	case []byte:
		return BinaryOf(x), nil
	default:
		return nil, fmt.Errorf("variant: unsupported Go type %T", v)
	}
}

// Native returns the Go value held by v: bool, int64, float64, string
// (for both text cases), []byte or nil.
func Native(v Value) any {
	switch x := v.(type) {
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case Real:
		return float64(x)
	case Text:
		return x.String()
	case NarrowText:
		return string(x.data)
	case Binary:
		return x.Bytes()
	default:
		return nil
	}
}
