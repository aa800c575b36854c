package variant

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"
)

// WitType returns the WIT type used to describe values of kind k. Absent has
// no WIT counterpart and returns nil.
func WitType(k Kind) wit.Type {
	switch k {
	case KindBool:
		return wit.Bool{}
	case KindInt:
		return wit.S64{}
	case KindReal:
		return wit.F64{}
	case KindText, KindNarrowText:
		return wit.String{}
	case KindBinary:
		return &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
	default:
		return nil
	}
}

// WitTypeName renders the primitive WIT types this package understands.
func WitTypeName(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "none"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if l, ok := v.Kind.(*wit.List); ok {
			return "list<" + WitTypeName(l.Type) + ">"
		}
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

var witByName = map[string]wit.Type{
	"bool":     wit.Bool{},
	"u8":       wit.U8{},
	"s8":       wit.S8{},
	"u16":      wit.U16{},
	"s16":      wit.S16{},
	"u32":      wit.U32{},
	"s32":      wit.S32{},
	"u64":      wit.U64{},
	"s64":      wit.S64{},
	"f32":      wit.F32{},
	"f64":      wit.F64{},
	"string":   wit.String{},
	"list<u8>": &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}},
}

// FromWit converts a textual literal into a Value according to t. Integer
// types widen to Int, float types to Real, string to Text and list<u8>
// expects hex.
func FromWit(t wit.Type, literal string) (Value, error) {
	switch v := t.(type) {
	case nil:
		return Absent{}, nil
	case wit.Bool:
		b, err := strconv.ParseBool(literal)
		if err != nil {
			return nil, fmt.Errorf("variant: bool literal %q: %w", literal, err)
		}
		return Bool(b), nil
	case wit.S8:
		return parseSigned(literal, 8)
	case wit.S16:
		return parseSigned(literal, 16)
	case wit.S32:
		return parseSigned(literal, 32)
	case wit.S64:
		return parseSigned(literal, 64)
	case wit.U8:
		return parseUnsigned(literal, 8)
	case wit.U16:
		return parseUnsigned(literal, 16)
	case wit.U32:
		return parseUnsigned(literal, 32)
	case wit.U64:
		return parseUnsigned(literal, 64)
	case wit.F32:
		f, err := strconv.ParseFloat(literal, 32)
		if err != nil {
			return nil, fmt.Errorf("variant: f32 literal %q: %w", literal, err)
		}
		return Real(f), nil
	case wit.F64:
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, fmt.Errorf("variant: f64 literal %q: %w", literal, err)
		}
		return Real(f), nil
	case wit.String:
		return TextOf(literal), nil
	case *wit.TypeDef:
		if l, ok := v.Kind.(*wit.List); ok {
			if _, ok := l.Type.(wit.U8); ok {
				b, err := hex.DecodeString(literal)
				if err != nil {
					return nil, fmt.Errorf("variant: list<u8> literal %q: %w", literal, err)
				}
				return BinaryOf(b), nil
			}
		}
	}
	return nil, fmt.Errorf("variant: unsupported WIT type %s", WitTypeName(t))
}

// Parse reads a literal of the form "type:value" where type is a WIT
// primitive name, "list<u8>" or "narrow". Without a recognized prefix the
// type is inferred: true/false, integers, floats, "none", otherwise text.
func Parse(s string) (Value, error) {
	if name, rest, ok := strings.Cut(s, ":"); ok {
		if name == "narrow" {
			return NarrowOf([]byte(rest)), nil
		}
		if t, known := witByName[name]; known {
			return FromWit(t, rest)
		}
	}
	switch s {
	case "none":
		return Absent{}, nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Real(f), nil
	}
	return TextOf(s), nil
}

// Format renders v as a literal that Parse reads back to an equal value.
func Format(v Value) string {
	switch x := v.(type) {
	case Bool:
		return "bool:" + x.String()
	case Int:
		return "s64:" + x.String()
	case Real:
		return "f64:" + x.String()
	case Text:
		return "string:" + x.String()
	case NarrowText:
		return "narrow:" + string(x.data)
	case Binary:
		return "list<u8>:" + hex.EncodeToString(x.data)
	default:
		return "none"
	}
}

func parseSigned(literal string, bits int) (Value, error) {
	i, err := strconv.ParseInt(literal, 10, bits)
	if err != nil {
		return nil, fmt.Errorf("variant: s%d literal %q: %w", bits, literal, err)
	}
	return Int(i), nil
}

func parseUnsigned(literal string, bits int) (Value, error) {
	u, err := strconv.ParseUint(literal, 10, bits)
	if err != nil {
		return nil, fmt.Errorf("variant: u%d literal %q: %w", bits, literal, err)
	}
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("variant: u%d literal %q overflows int64", bits, literal)
	}
	return Int(u), nil
}
