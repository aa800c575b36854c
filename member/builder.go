package member

import (
	stderrors "errors"

	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/wire"
)

// Builder collects the members of T. Build validates them once and
// returns the immutable Table.
type Builder[T any] struct {
	name    string
	props   []Property[T]
	methods []Method[T]
}

// NewBuilder starts a table for an object registered under name.
func NewBuilder[T any](name string) *Builder[T] {
	return &Builder[T]{name: name}
}

// AddProperty appends p. A zero Mode is derived from which of Get and Set
// are present.
func (b *Builder[T]) AddProperty(p Property[T]) *Builder[T] {
	b.props = append(b.props, p)
	return b
}

// Property appends a property readable when get is non-nil and writable
// when set is non-nil.
func (b *Builder[T]) Property(name, local string, get Getter[T], set Setter[T]) *Builder[T] {
	return b.AddProperty(Property[T]{Name: name, LocalName: local, Get: get, Set: set})
}

func (b *Builder[T]) AddMethod(m Method[T]) *Builder[T] {
	b.methods = append(b.methods, m)
	return b
}

// Method appends a method with a fixed arity and no optional parameters.
func (b *Builder[T]) Method(name, local string, arity int, call Callable[T]) *Builder[T] {
	return b.AddMethod(Method[T]{Name: name, LocalName: local, Arity: arity, Call: call})
}

// MethodWithOptional appends a method whose last optional parameters may
// be left to their defaults.
func (b *Builder[T]) MethodWithOptional(name, local string, arity, optional int, call Callable[T]) *Builder[T] {
	return b.AddMethod(Method[T]{Name: name, LocalName: local, Arity: arity, Optional: optional, Call: call})
}

// Build validates every entry and returns the table. All problems are
// reported together.
func (b *Builder[T]) Build() (*Table[T], error) {
	var errs []error
	if b.name == "" {
		errs = append(errs, errors.InvalidInput(errors.PhaseRegistry, "object name is empty"))
	}

	t := &Table[T]{
		name:       b.name,
		props:      make([]Property[T], len(b.props)),
		methods:    make([]Method[T], len(b.methods)),
		propKeys:   make([]nameKey, len(b.props)),
		methodKeys: make([]nameKey, len(b.methods)),
	}

	for i, p := range b.props {
		if p.LocalName == "" {
			p.LocalName = p.Name
		}
		if p.Mode == 0 {
			if p.Get != nil {
				p.Mode |= Readable
			}
			if p.Set != nil {
				p.Mode |= Writable
			}
		}
		if err := validateProperty(&p); err != nil {
			errs = append(errs, err)
		}
		t.props[i] = p
		t.propKeys[i] = nameKey{canonical: Fold(p.Name), local: Fold(p.LocalName)}
	}

	for i, m := range b.methods {
		if m.LocalName == "" {
			m.LocalName = m.Name
		}
		if err := validateMethod(&m); err != nil {
			errs = append(errs, err)
		}
		t.methods[i] = m
		t.methodKeys[i] = nameKey{canonical: Fold(m.Name), local: Fold(m.LocalName)}
	}

	if len(errs) > 0 {
		return nil, errors.Registration(errors.PhaseRegistry, b.name, stderrors.Join(errs...))
	}
	return t, nil
}

// MustBuild is Build for package-level tables; it panics on invalid input.
func (b *Builder[T]) MustBuild() *Table[T] {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func validateProperty[T any](p *Property[T]) error {
	invalid := func(detail string, args ...any) error {
		return errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
			Path("property", p.Name).
			Detail(detail, args...).
			Build()
	}
	switch {
	case p.Name == "":
		return invalid("property name is empty")
	case p.Mode&^ReadWrite != 0:
		return invalid("unknown mode bits %#x", uint8(p.Mode))
	case p.Mode == 0:
		return invalid("property has neither getter nor setter")
	case p.Readable() && p.Get == nil:
		return invalid("readable property has no getter")
	case p.Writable() && p.Set == nil:
		return invalid("writable property has no setter")
	}
	return nil
}

func validateMethod[T any](m *Method[T]) error {
	invalid := func(detail string, args ...any) error {
		return errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
			Path("method", m.Name).
			Detail(detail, args...).
			Build()
	}
	switch {
	case m.Name == "":
		return invalid("method name is empty")
	case m.Call == nil:
		return invalid("method has no callable")
	case m.Arity < 0 || m.Arity > wire.MaxArgs:
		return invalid("arity %d out of range [0, %d]", m.Arity, wire.MaxArgs)
	case m.Optional < 0 || m.Optional > m.Arity:
		return invalid("optional count %d out of range [0, %d]", m.Optional, m.Arity)
	}
	return nil
}
