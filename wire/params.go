package wire

import (
	"strconv"

	addin "github.com/wippyai/native-addin"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/variant"
)

// Args is the argument view handed to method implementations. Get returns
// Absent for indices out of range. Set replaces a slot; the new value is
// written back to the caller only if the call succeeds.
type Args interface {
	Len() int
	Get(i int) variant.Value
	Set(i int, v variant.Value) error
}

// ArgList is an in-memory Args that remembers which slots were replaced.
type ArgList struct {
	values []variant.Value
	dirty  []bool
}

// NewArgList wraps values. The slice is copied.
func NewArgList(values ...variant.Value) *ArgList {
	vs := make([]variant.Value, len(values))
	for i, v := range values {
		if v == nil {
			v = variant.Absent{}
		}
		vs[i] = v
	}
	return &ArgList{values: vs, dirty: make([]bool, len(vs))}
}

func (a *ArgList) Len() int { return len(a.values) }

func (a *ArgList) Get(i int) variant.Value {
	if i < 0 || i >= len(a.values) {
		return variant.Absent{}
	}
	return a.values[i]
}

func (a *ArgList) Set(i int, v variant.Value) error {
	if i < 0 || i >= len(a.values) {
		return errors.OutOfBounds(errors.PhaseInvoke, []string{argName(i)}, i, len(a.values))
	}
	if v == nil {
		v = variant.Absent{}
	}
	a.values[i] = v
	a.dirty[i] = true
	return nil
}

// Dirty reports whether slot i was replaced since the list was created.
func (a *ArgList) Dirty(i int) bool {
	return i >= 0 && i < len(a.dirty) && a.dirty[i]
}

// Values returns a copy of the current slot values.
func (a *ArgList) Values() []variant.Value {
	out := make([]variant.Value, len(a.values))
	copy(out, a.values)
	return out
}

// Params is the argument bundle of one host call. Slots are decoded up
// front; Close writes back only the slots that were replaced, leaving
// untouched records byte-identical.
type Params struct {
	*ArgList
	mem  addin.Memory
	base uint32
}

// OpenParams decodes count records starting at base. count must equal the
// declared arity of the method being called.
func OpenParams(mem addin.Memory, base uint32, count, arity int) (*Params, error) {
	if count != arity {
		return nil, errors.ArityMismatch("", arity, count)
	}
	if count < 0 || count > MaxArgs {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, count, MaxArgs)
	}
	values := make([]variant.Value, count)
	for i := range values {
		addr := RecordAddr(base, i)
		r, err := ReadRecord(mem, addr)
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
				Path(argName(i)).
				Detail("read record at %d", addr).
				Cause(err).
				Build()
		}
		v, err := decodeRecord(mem, r, []string{argName(i)})
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return &Params{
		ArgList: &ArgList{values: values, dirty: make([]bool, count)},
		mem:     mem,
		base:    base,
	}, nil
}

// Base returns the address of the first record.
func (p *Params) Base() uint32 { return p.base }

// Close queues every replaced slot into st. Nothing is written until the
// stage commits.
func (p *Params) Close(st *Stage) error {
	for i, d := range p.dirty {
		if !d {
			continue
		}
		if err := st.put(RecordAddr(p.base, i), p.values[i], []string{argName(i)}); err != nil {
			return err
		}
	}
	return nil
}

func argName(i int) string { return "arg" + strconv.Itoa(i) }
