package dispatch

import (
	"sync"
	"unicode/utf16"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	addin "github.com/wippyai/native-addin"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/member"
	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// Adapter answers host requests for one object of type T. It is created
// by Class.NewAdapter, becomes ready on Init and returns to the
// no-instance state on Done.
//
// Every failure is converted to a false or sentinel result and stored as
// the diagnostic, which the host reads through ErrorDescription. A
// successful member call clears the diagnostic after it completes, so
// reading ErrorDescription returns the previous failure once.
type Adapter[T any] struct {
	class *Class[T]
	obj   T

	mu        sync.Mutex
	ready     bool
	conn      Connection
	mem       addin.MemoryManager
	diag      string
	locale    language.Tag
	localeRaw string
}

var _ Instance = (*Adapter[struct{}])(nil)

// Object returns the wrapped object.
func (a *Adapter[T]) Object() T { return a.obj }

// Class returns the class the adapter was created from.
func (a *Adapter[T]) Class() *Class[T] { return a.class }

func (a *Adapter[T]) ClassName() string { return a.class.name }

// Ready reports whether Init has succeeded and Done has not been called.
func (a *Adapter[T]) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Diagnostic returns the description of the last failure, or "" if the
// last member call succeeded.
func (a *Adapter[T]) Diagnostic() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diag
}

// Locale returns the tag set by SetLocale, or language.Und.
func (a *Adapter[T]) Locale() language.Tag {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locale
}

// Message sends msg to the host connection at informational severity.
// Without a connection the message is dropped.
func (a *Adapter[T]) Message(msg string, code int32) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return
	}
	swallow(func() { conn.AddError(SeverityInfo, a.class.name, msg, code) })
}

// Lifecycle

func (a *Adapter[T]) Init(conn Connection) bool {
	if conn == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn = conn
	a.ready = true
	return true
}

func (a *Adapter[T]) SetMemManager(mm addin.MemoryManager) bool {
	if mm == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mem = mm
	return true
}

func (a *Adapter[T]) GetInfo() int32 { return InterfaceVersion }

// Done returns the adapter to the no-instance state. Objects implementing
// Finalizer are notified; a panic there is swallowed.
func (a *Adapter[T]) Done() {
	a.mu.Lock()
	wasReady := a.ready
	a.ready = false
	a.conn = nil
	a.diag = ""
	a.mu.Unlock()

	if f, ok := any(a.obj).(Finalizer); ok && wasReady {
		swallow(f.Done)
	}
}

func (a *Adapter[T]) RegisterExtensionAs() (uint32, bool) {
	ptr := a.allocName(a.class.name)
	return ptr, ptr != 0
}

// SetLocale records the host locale. Names the language package cannot
// parse are kept verbatim with an undetermined tag.
func (a *Adapter[T]) SetLocale(loc []uint16) {
	raw := string(utf16.Decode(loc))
	tag, err := language.Parse(raw)
	if err != nil {
		Logger().Debug("unparsed locale", zap.String("class", a.class.name), zap.String("locale", raw), zap.Error(err))
		tag = language.Und
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.localeRaw = raw
	a.locale = tag
}

// LocaleName returns the locale string exactly as the host sent it.
func (a *Adapter[T]) LocaleName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.localeRaw
}

// Design-level operations, usable in process without host memory. In the
// no-instance state each returns its negative result and sets the
// diagnostic to not_initialized.

func (a *Adapter[T]) checkReady() bool {
	if a.Ready() {
		return true
	}
	a.reject(errors.NotInitialized(errors.PhaseDispatch, a.class.name))
	return false
}

func (a *Adapter[T]) PropertyCount() int {
	if !a.checkReady() {
		return 0
	}
	return a.class.members.PropertyCount()
}

func (a *Adapter[T]) MethodCount() int {
	if !a.checkReady() {
		return 0
	}
	return a.class.members.MethodCount()
}

func (a *Adapter[T]) LookupProperty(name string) int {
	if !a.checkReady() {
		return member.NotFound
	}
	return a.class.members.FindProperty(name)
}

func (a *Adapter[T]) LookupMethod(name string) int {
	if !a.checkReady() {
		return member.NotFound
	}
	return a.class.members.FindMethod(name)
}

func (a *Adapter[T]) PropertyName(i, alias int) (string, bool) {
	if !a.checkReady() {
		return "", false
	}
	p, ok := a.class.members.Property(i)
	if !ok {
		return "", false
	}
	return p.Alias(alias), true
}

func (a *Adapter[T]) MethodName(i, alias int) (string, bool) {
	if !a.checkReady() {
		return "", false
	}
	m, ok := a.class.members.Method(i)
	if !ok {
		return "", false
	}
	return m.Alias(alias), true
}

func (a *Adapter[T]) IsReadable(i int) bool {
	if !a.checkReady() {
		return false
	}
	p, ok := a.class.members.Property(i)
	return ok && p.Readable()
}

func (a *Adapter[T]) IsWritable(i int) bool {
	if !a.checkReady() {
		return false
	}
	p, ok := a.class.members.Property(i)
	return ok && p.Writable()
}

func (a *Adapter[T]) MethodArity(i int) int {
	if !a.checkReady() {
		return 0
	}
	m, ok := a.class.members.Method(i)
	if !ok {
		return 0
	}
	return m.Arity
}

func (a *Adapter[T]) HasOptionalDefault(method, param int) bool {
	if !a.checkReady() {
		return false
	}
	m, ok := a.class.members.Method(method)
	return ok && m.HasDefault(param)
}

// GetProperty calls the getter of property i.
func (a *Adapter[T]) GetProperty(i int) (variant.Value, bool) {
	p, err := a.readableProperty(i)
	if err != nil {
		a.reject(err)
		return nil, false
	}
	var out variant.Value
	ok := a.run(p.Name, func() error {
		v, err := p.Get(a)
		if err != nil {
			return err
		}
		if v == nil {
			v = variant.Absent{}
		}
		out = v
		return nil
	})
	if !ok {
		return nil, false
	}
	return out, true
}

// SetProperty calls the setter of property i with v.
func (a *Adapter[T]) SetProperty(i int, v variant.Value) bool {
	p, err := a.writableProperty(i)
	if err != nil {
		a.reject(err)
		return false
	}
	if v == nil {
		v = variant.Absent{}
	}
	return a.run(p.Name, func() error { return p.Set(a, v) })
}

// Invoke calls method m with args. Replaced argument slots are visible in
// args afterwards. The callable never runs when the argument count differs
// from the declared arity.
func (a *Adapter[T]) Invoke(m int, args *wire.ArgList) (variant.Value, bool) {
	if args == nil {
		args = wire.NewArgList()
	}
	method, err := a.method(m, args.Len())
	if err != nil {
		a.reject(err)
		return nil, false
	}
	var out variant.Value
	ok := a.run(method.Name, func() error {
		v, err := method.Call(a, args)
		if err != nil {
			return err
		}
		if v == nil {
			v = variant.Absent{}
		}
		out = v
		return nil
	})
	if !ok {
		return nil, false
	}
	return out, true
}

// Host ABI. Records and names live in the memory set by SetMemManager.

func (a *Adapter[T]) GetNProps() int32   { return int32(a.PropertyCount()) }
func (a *Adapter[T]) GetNMethods() int32 { return int32(a.MethodCount()) }

func (a *Adapter[T]) FindProp(name []uint16) int32 {
	return int32(a.LookupProperty(string(utf16.Decode(name))))
}

func (a *Adapter[T]) FindMethod(name []uint16) int32 {
	return int32(a.LookupMethod(string(utf16.Decode(name))))
}

func (a *Adapter[T]) GetPropName(num, alias int32) uint32 {
	name, ok := a.PropertyName(int(num), int(alias))
	if !ok {
		return 0
	}
	return a.allocName(name)
}

func (a *Adapter[T]) GetMethodName(num, alias int32) uint32 {
	name, ok := a.MethodName(int(num), int(alias))
	if !ok {
		return 0
	}
	return a.allocName(name)
}

func (a *Adapter[T]) IsPropReadable(num int32) bool { return a.IsReadable(int(num)) }
func (a *Adapter[T]) IsPropWritable(num int32) bool { return a.IsWritable(int(num)) }
func (a *Adapter[T]) GetNParams(num int32) int32    { return int32(a.MethodArity(int(num))) }

// HasRetVal is true for every method; procedures return Absent.
func (a *Adapter[T]) HasRetVal(int32) bool { return true }

// GetParamDefValue writes ERROR for optional parameters, which decodes to
// Absent when the host passes it back, and EMPTY for required ones.
func (a *Adapter[T]) GetParamDefValue(method, param int32, out uint32) bool {
	if !a.checkReady() {
		return false
	}
	m, ok := a.class.members.Method(int(method))
	if !ok || param < 0 || int(param) >= m.Arity {
		return false
	}
	mem := a.memory()
	if mem == nil {
		return false
	}
	rec := wire.EmptyRecord()
	if m.HasDefault(int(param)) {
		rec = wire.ErrorRecord()
	}
	return wire.WriteRecord(mem, out, rec) == nil
}

func (a *Adapter[T]) GetPropVal(num int32, out uint32) bool {
	p, err := a.readableProperty(int(num))
	if err == nil {
		err = a.requireMemory()
	}
	if err != nil {
		a.reject(err)
		return false
	}
	mem := a.memory()
	return a.run(p.Name, func() error {
		v, err := p.Get(a)
		if err != nil {
			return err
		}
		return wire.Encode(mem, mem, out, v)
	})
}

func (a *Adapter[T]) SetPropVal(num int32, in uint32) bool {
	p, err := a.writableProperty(int(num))
	if err == nil {
		err = a.requireMemory()
	}
	if err != nil {
		a.reject(err)
		return false
	}
	mem := a.memory()
	return a.run(p.Name, func() error {
		v, err := wire.Decode(mem, in)
		if err != nil {
			return err
		}
		return p.Set(a, v)
	})
}

// CallAsProc calls a method and discards its result.
func (a *Adapter[T]) CallAsProc(method int32, params uint32, count int32) bool {
	return a.call(method, nil, params, count)
}

// CallAsFunc calls a method and writes its result to ret. Replaced
// arguments and the result are written together only after the callable
// succeeded and every output encoded.
func (a *Adapter[T]) CallAsFunc(method int32, ret, params uint32, count int32) bool {
	return a.call(method, &ret, params, count)
}

func (a *Adapter[T]) call(num int32, ret *uint32, params uint32, count int32) bool {
	m, err := a.method(int(num), int(count))
	if err == nil {
		err = a.requireMemory()
	}
	if err != nil {
		a.reject(err)
		return false
	}
	mem := a.memory()
	return a.run(m.Name, func() error {
		args, err := wire.OpenParams(mem, params, int(count), m.Arity)
		if err != nil {
			return err
		}
		result, err := m.Call(a, args)
		if err != nil {
			return err
		}

		st := wire.NewStage(mem, mem)
		defer st.Release()
		if err := args.Close(st); err != nil {
			st.Abort()
			return err
		}
		if ret != nil {
			if err := st.Put(*ret, result); err != nil {
				st.Abort()
				return err
			}
		}
		return st.Commit()
	})
}

// Lookup helpers. Their errors are negative results: they set the
// diagnostic but are not reported to the host connection.

func (a *Adapter[T]) readableProperty(i int) (*member.Property[*Adapter[T]], error) {
	if !a.Ready() {
		return nil, errors.NotInitialized(errors.PhaseDispatch, a.class.name)
	}
	p, ok := a.class.members.Property(i)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDispatch, []string{"property"}, i, a.class.members.PropertyCount())
	}
	if !p.Readable() {
		return nil, errors.NotReadable(p.Name)
	}
	return p, nil
}

func (a *Adapter[T]) writableProperty(i int) (*member.Property[*Adapter[T]], error) {
	if !a.Ready() {
		return nil, errors.NotInitialized(errors.PhaseDispatch, a.class.name)
	}
	p, ok := a.class.members.Property(i)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDispatch, []string{"property"}, i, a.class.members.PropertyCount())
	}
	if !p.Writable() {
		return nil, errors.NotWritable(p.Name)
	}
	return p, nil
}

func (a *Adapter[T]) method(i, count int) (*member.Method[*Adapter[T]], error) {
	if !a.Ready() {
		return nil, errors.NotInitialized(errors.PhaseDispatch, a.class.name)
	}
	m, ok := a.class.members.Method(i)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDispatch, []string{"method"}, i, a.class.members.MethodCount())
	}
	if count != m.Arity {
		return nil, errors.ArityMismatch(m.Name, m.Arity, count)
	}
	return m, nil
}

func (a *Adapter[T]) memory() addin.MemoryManager {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mem
}

func (a *Adapter[T]) requireMemory() error {
	if a.memory() == nil {
		return errors.NotInitialized(errors.PhaseHost, "memory manager")
	}
	return nil
}

// allocName copies name into a zero-terminated UTF-16 buffer in host
// memory. The buffer belongs to the host. It returns 0 on any failure.
func (a *Adapter[T]) allocName(name string) uint32 {
	mem := a.memory()
	if mem == nil {
		return 0
	}
	var ptr uint32
	err := protect(func() error {
		st := wire.NewStage(mem, mem)
		defer st.Release()
		rec, err := st.Lower(variant.TextOf(name))
		if err != nil {
			return err
		}
		if err := st.Commit(); err != nil {
			return err
		}
		ptr = rec.Ptr()
		return nil
	})
	if err != nil {
		Logger().Debug("name allocation failed", zap.String("class", a.class.name), zap.Error(err))
		return 0
	}
	return ptr
}

// run is the fault boundary around user code and the codec. A returned
// error or a panic becomes the diagnostic and is reported to the host.
func (a *Adapter[T]) run(name string, fn func() error) bool {
	err := protect(fn)
	if err == nil {
		a.setDiagnostic("")
		return true
	}
	a.fail(name, err)
	return false
}

func (a *Adapter[T]) fail(name string, err error) {
	text := Render(err)
	a.mu.Lock()
	a.diag = text
	conn := a.conn
	a.mu.Unlock()

	_, panicked := err.(failure)
	Logger().Debug("member call failed",
		zap.String("class", a.class.name),
		zap.String("member", name),
		zap.Bool("panic", panicked),
		zap.String("diagnostic", text))

	if conn != nil {
		swallow(func() { conn.AddError(SeverityInfo, a.class.name, text, a.class.messageCode) })
	}
}

func (a *Adapter[T]) reject(err error) {
	text := Render(err)
	a.setDiagnostic(text)
	Logger().Debug("request rejected", zap.String("class", a.class.name), zap.Error(err))
}

func (a *Adapter[T]) setDiagnostic(text string) {
	a.mu.Lock()
	a.diag = text
	a.mu.Unlock()
}
