package member

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// NotFound is returned by lookups that match no entry.
const NotFound = -1

// Alias selectors accepted by name accessors.
const (
	AliasCanonical = 0
	AliasLocal     = 1
)

// Mode is the access mode of a property.
type Mode uint8

const (
	Readable Mode = 1 << iota
	Writable

	ReadWrite = Readable | Writable
)

func (m Mode) String() string {
	switch m {
	case Readable:
		return "r"
	case Writable:
		return "w"
	case ReadWrite:
		return "rw"
	default:
		return "-"
	}
}

// Args is the argument bundle passed to method callables.
type Args = wire.Args

// NewArgs returns an in-memory Args holding values, for calling members
// without a host.
func NewArgs(values ...variant.Value) *wire.ArgList {
	return wire.NewArgList(values...)
}

type (
	Getter[T any]   func(obj T) (variant.Value, error)
	Setter[T any]   func(obj T, v variant.Value) error
	Callable[T any] func(obj T, args Args) (variant.Value, error)
)

// Property describes one property of T.
type Property[T any] struct {
	Name      string
	LocalName string
	Mode      Mode
	Get       Getter[T]
	Set       Setter[T]
}

// Readable reports whether the property has a getter the host may call.
func (p *Property[T]) Readable() bool { return p.Mode&Readable != 0 }

// Writable reports whether the property has a setter the host may call.
func (p *Property[T]) Writable() bool { return p.Mode&Writable != 0 }

// Alias returns the canonical name for AliasCanonical and the localized
// name otherwise.
func (p *Property[T]) Alias(alias int) string {
	if alias == AliasCanonical {
		return p.Name
	}
	return p.LocalName
}

// Method describes one method of T. The last Optional parameters may be
// omitted by the caller; the host fills them with Absent.
type Method[T any] struct {
	Name      string
	LocalName string
	Arity     int
	Optional  int
	Call      Callable[T]
}

func (m *Method[T]) Alias(alias int) string {
	if alias == AliasCanonical {
		return m.Name
	}
	return m.LocalName
}

// HasDefault reports whether parameter p is one of the optional trailing
// parameters. Indices at or past Arity have no default.
func (m *Method[T]) HasDefault(p int) bool {
	return p >= m.Arity-m.Optional && p < m.Arity
}

// Table is the immutable member list of one object type. A Table is safe
// for concurrent use.
type Table[T any] struct {
	name       string
	props      []Property[T]
	methods    []Method[T]
	propKeys   []nameKey
	methodKeys []nameKey
}

type nameKey struct {
	canonical string
	local     string
}

func (k nameKey) match(folded string) bool {
	return k.canonical == folded || k.local == folded
}

// Fold returns the case-folded form used for name comparison.
func Fold(name string) string {
	return cases.Fold().String(name)
}

// Name returns the name the object registers under.
func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) PropertyCount() int { return len(t.props) }
func (t *Table[T]) MethodCount() int   { return len(t.methods) }

// Property returns entry i, or false when i is out of range.
func (t *Table[T]) Property(i int) (*Property[T], bool) {
	if i < 0 || i >= len(t.props) {
		return nil, false
	}
	return &t.props[i], true
}

// Method returns entry i, or false when i is out of range.
func (t *Table[T]) Method(i int) (*Method[T], bool) {
	if i < 0 || i >= len(t.methods) {
		return nil, false
	}
	return &t.methods[i], true
}

// FindProperty returns the index of the first property whose canonical or
// localized name matches name ignoring case, or NotFound.
func (t *Table[T]) FindProperty(name string) int {
	return find(t.propKeys, name)
}

// FindMethod is FindProperty for methods.
func (t *Table[T]) FindMethod(name string) int {
	return find(t.methodKeys, name)
}

func find(keys []nameKey, name string) int {
	if name == "" {
		return NotFound
	}
	folded := Fold(name)
	for i, k := range keys {
		if k.match(folded) {
			return i
		}
	}
	return NotFound
}

// Properties returns a copy of the property list.
func (t *Table[T]) Properties() []Property[T] {
	out := make([]Property[T], len(t.props))
	copy(out, t.props)
	return out
}

// Methods returns a copy of the method list.
func (t *Table[T]) Methods() []Method[T] {
	out := make([]Method[T], len(t.methods))
	copy(out, t.methods)
	return out
}

// String lists the members in a compact single-line form.
func (t *Table[T]) String() string {
	var b strings.Builder
	b.WriteString(t.name)
	b.WriteString("{")
	for i, p := range t.props {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(":")
		b.WriteString(p.Mode.String())
	}
	if len(t.props) > 0 && len(t.methods) > 0 {
		b.WriteString("; ")
	}
	for i, m := range t.methods {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.Name)
		b.WriteString("/")
		b.WriteString(strconv.Itoa(m.Arity))
	}
	b.WriteString("}")
	return b.String()
}
