package dispatch

import (
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/member"
	"github.com/wippyai/native-addin/variant"
)

// Names of the entry appended to every class as both a read-only property
// and a zero-argument method. It returns the current diagnostic.
const (
	ErrorDescriptionName      = "ErrorDescription"
	ErrorDescriptionLocalName = "ОписаниеОшибки"
)

// Class is the per-type metadata shared by every adapter of T. It is built
// once and never changes.
type Class[T any] struct {
	name        string
	user        *member.Table[T]
	members     *member.Table[*Adapter[T]]
	newObj      func() T
	messageCode int32
}

// ClassOption configures a Class.
type ClassOption func(*classOptions)

type classOptions struct {
	messageCode int32
}

// WithMessageCode sets the code attached to failures reported to the host.
func WithMessageCode(code int32) ClassOption {
	return func(o *classOptions) { o.messageCode = code }
}

// NewClass binds table to a constructor. The user entries keep their
// indices; ErrorDescription follows them in both lists.
func NewClass[T any](table *member.Table[T], newObj func() T, opts ...ClassOption) (*Class[T], error) {
	if table == nil {
		return nil, errors.InvalidInput(errors.PhaseRegistry, "nil member table")
	}
	if newObj == nil {
		return nil, errors.Registration(errors.PhaseRegistry, table.Name(),
			errors.InvalidInput(errors.PhaseRegistry, "nil constructor"))
	}

	o := classOptions{messageCode: DefaultMessageCode}
	for _, opt := range opts {
		opt(&o)
	}

	b := member.NewBuilder[*Adapter[T]](table.Name())
	for _, p := range table.Properties() {
		b.AddProperty(bindProperty(p))
	}
	b.AddProperty(member.Property[*Adapter[T]]{
		Name:      ErrorDescriptionName,
		LocalName: ErrorDescriptionLocalName,
		Mode:      member.Readable,
		Get: func(a *Adapter[T]) (variant.Value, error) {
			return variant.TextOf(a.Diagnostic()), nil
		},
	})
	for _, m := range table.Methods() {
		b.AddMethod(bindMethod(m))
	}
	b.AddMethod(member.Method[*Adapter[T]]{
		Name:      ErrorDescriptionName,
		LocalName: ErrorDescriptionLocalName,
		Call: func(a *Adapter[T], _ member.Args) (variant.Value, error) {
			return variant.TextOf(a.Diagnostic()), nil
		},
	})

	members, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &Class[T]{
		name:        table.Name(),
		user:        table,
		members:     members,
		newObj:      newObj,
		messageCode: o.messageCode,
	}, nil
}

// MustClass is NewClass for package-level declarations.
func MustClass[T any](table *member.Table[T], newObj func() T, opts ...ClassOption) *Class[T] {
	c, err := NewClass(table, newObj, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func bindProperty[T any](p member.Property[T]) member.Property[*Adapter[T]] {
	bound := member.Property[*Adapter[T]]{
		Name:      p.Name,
		LocalName: p.LocalName,
		Mode:      p.Mode,
	}
	if p.Get != nil {
		get := p.Get
		bound.Get = func(a *Adapter[T]) (variant.Value, error) { return get(a.obj) }
	}
	if p.Set != nil {
		set := p.Set
		bound.Set = func(a *Adapter[T], v variant.Value) error { return set(a.obj, v) }
	}
	return bound
}

func bindMethod[T any](m member.Method[T]) member.Method[*Adapter[T]] {
	call := m.Call
	return member.Method[*Adapter[T]]{
		Name:      m.Name,
		LocalName: m.LocalName,
		Arity:     m.Arity,
		Optional:  m.Optional,
		Call: func(a *Adapter[T], args member.Args) (variant.Value, error) {
			return call(a.obj, args)
		},
	}
}

// Name returns the name the class registers under.
func (c *Class[T]) Name() string { return c.name }

// Table returns the user member table without the synthetic entries.
func (c *Class[T]) Table() *member.Table[T] { return c.user }

// Members returns the full dispatch table, synthetic entries included.
func (c *Class[T]) Members() *member.Table[*Adapter[T]] { return c.members }

// NewAdapter constructs a fresh object and wraps it.
func (c *Class[T]) NewAdapter() *Adapter[T] {
	a := &Adapter[T]{class: c, obj: c.newObj()}
	if b, ok := any(a.obj).(Binder); ok {
		b.Bind(a)
	}
	return a
}

// New is NewAdapter for callers that only need the Instance interface.
func (c *Class[T]) New() Instance { return c.NewAdapter() }
