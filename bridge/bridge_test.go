package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"testing"
	"unicode/utf16"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/native-addin/dispatch"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/member"
	"github.com/wippyai/native-addin/registry"
	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// guestWASM exports one page of memory and a bump allocator:
//
//	(global $next (mut i32) (i32.const 1024))
//	(func (export "alloc") (param i32) (result i32)
//	  global.get $next
//	  (global.set $next (i32.and (i32.add (i32.add (global.get $next) (local.get 0)) (i32.const 7)) (i32.const -8))))
var guestWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f, // type: (i32) -> i32
	0x03, 0x02, 0x01, 0x00, // func: 1 function of type 0
	0x05, 0x03, 0x01, 0x00, 0x01, // memory: 1 page, no max
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b, // global: mut i32 = 1024
	0x07, 0x12, 0x02, // export section: 18 bytes, 2 exports
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x05, 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	0x0a, 0x13, 0x01, 0x11, 0x00, // code: 1 body of 17 bytes, no locals
	0x23, 0x00, // global.get 0
	0x23, 0x00, // global.get 0
	0x20, 0x00, // local.get 0
	0x6a,       // i32.add
	0x41, 0x07, // i32.const 7
	0x6a,       // i32.add
	0x41, 0x78, // i32.const -8
	0x71,       // i32.and
	0x24, 0x00, // global.set 0
	0x0b, // end
}

// memoryOnlyWASM exports memory but no allocator.
var memoryOnlyWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

type counter struct {
	value int64
}

func counterClass(t *testing.T) *dispatch.Class[*counter] {
	t.Helper()
	table, err := member.NewBuilder[*counter]("Counter").
		Property("Value", "Значение",
			func(c *counter) (variant.Value, error) { return variant.Int(c.value), nil },
			func(c *counter, v variant.Value) error {
				n, err := variant.AsInt(v)
				if err != nil {
					return err
				}
				c.value = n
				return nil
			}).
		Method("Add", "Добавить", 1, func(c *counter, args member.Args) (variant.Value, error) {
			n, err := variant.AsInt(args.Get(0))
			if err != nil {
				return nil, err
			}
			c.value += n
			return variant.Int(c.value), nil
		}).
		Method("Fail", "", 0, func(*counter, member.Args) (variant.Value, error) {
			return nil, fmt.Errorf("counter jammed")
		}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return dispatch.MustClass(table, func() *counter { return &counter{} })
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	b     *Bridge
	mod   api.Module
	guest *Guest
	funcs map[string]hostFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	reg := registry.New()
	if err := reg.Register(counterClass(t)); err != nil {
		t.Fatal(err)
	}
	b := New(reg)
	if _, err := b.Instantiate(ctx, rt); err != nil {
		t.Fatalf("instantiate bridge: %v", err)
	}

	mod, err := rt.InstantiateWithConfig(ctx, guestWASM, wazero.NewModuleConfig().WithName("host"))
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	g, err := NewGuest(ctx, mod)
	if err != nil {
		t.Fatal(err)
	}

	funcs := make(map[string]hostFunc)
	for _, f := range b.functions() {
		funcs[f.name] = f
	}
	return &fixture{t: t, ctx: ctx, b: b, mod: mod, guest: g, funcs: funcs}
}

// call invokes a host function the way wazero would for an import from the guest.
func (f *fixture) call(name string, args ...uint64) uint64 {
	f.t.Helper()
	hf, ok := f.funcs[name]
	if !ok {
		f.t.Fatalf("no host function %q", name)
	}
	if len(args) != hf.params {
		f.t.Fatalf("%s takes %d params, got %d", name, hf.params, len(args))
	}
	stack := make([]uint64, max(hf.params, hf.results))
	copy(stack, args)
	hf.fn(f.ctx, f.mod, stack)
	if hf.results == 0 {
		return 0
	}
	return stack[0]
}

func (f *fixture) putName(s string) (uint64, uint64) {
	f.t.Helper()
	units := utf16.Encode([]rune(s))
	ptr, err := f.guest.Alloc(uint32(len(units)*2), 2)
	if err != nil {
		f.t.Fatal(err)
	}
	for i, u := range units {
		if err := f.guest.WriteU16(ptr+uint32(i)*2, u); err != nil {
			f.t.Fatal(err)
		}
	}
	return uint64(ptr), uint64(len(units))
}

func (f *fixture) readZ(ptr uint32) string {
	f.t.Helper()
	if ptr == 0 {
		f.t.Fatal("null string pointer")
	}
	var units []uint16
	for i := uint32(0); ; i++ {
		u, err := f.guest.ReadU16(ptr + i*2)
		if err != nil {
			f.t.Fatal(err)
		}
		if u == 0 {
			return string(utf16.Decode(units))
		}
		units = append(units, u)
	}
}

func (f *fixture) records(values ...variant.Value) uint32 {
	f.t.Helper()
	base, err := f.guest.Alloc(uint32(max(len(values), 1))*wire.RecordSize, wire.RecordAlign)
	if err != nil {
		f.t.Fatal(err)
	}
	st := wire.NewStage(f.guest, f.guest)
	defer st.Release()
	for i, v := range values {
		if err := st.Put(wire.RecordAddr(base, i), v); err != nil {
			f.t.Fatal(err)
		}
	}
	if err := st.Commit(); err != nil {
		f.t.Fatal(err)
	}
	return base
}

func (f *fixture) value(addr uint32) variant.Value {
	f.t.Helper()
	v, err := wire.Decode(f.guest, addr)
	if err != nil {
		f.t.Fatal(err)
	}
	return v
}

func (f *fixture) create() uint64 {
	f.t.Helper()
	ptr, n := f.putName("counter")
	h := f.call("create", ptr, n)
	if h == 0 {
		f.t.Fatal("create returned handle 0")
	}
	if f.call("init", h) != 1 || f.call("set_mem_manager", h) != 1 {
		f.t.Fatal("init failed")
	}
	return h
}

func TestHostModuleExports(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	b := New(registry.New())
	mod, err := b.Instantiate(ctx, rt)
	if err != nil {
		t.Fatal(err)
	}
	defs := mod.ExportedFunctionDefinitions()
	for _, name := range b.Exports() {
		if _, ok := defs[name]; !ok {
			t.Errorf("export %q missing", name)
		}
	}
	want := []string{"class_names", "create", "call_as_func", "set_locale"}
	for _, name := range want {
		if !slices.Contains(b.Exports(), name) {
			t.Errorf("Exports() lacks %q", name)
		}
	}
}

func TestValidateMissingExports(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mod, err := rt.InstantiateWithConfig(ctx, memoryOnlyWASM, wazero.NewModuleConfig().WithName("bare"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewGuest(ctx, mod)
	var missing *errors.MissingExportsError
	if !stderrors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingExportsError", err)
	}
	if !slices.Equal(missing.Exports, []string{ExportAlloc}) {
		t.Errorf("missing = %v", missing.Exports)
	}
}

func TestGuestAllocator(t *testing.T) {
	f := newFixture(t)
	a, err := f.guest.Alloc(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.guest.Alloc(16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if a != 1024 || b != 1032 {
		t.Errorf("allocations at %d, %d; want 1024, 1032", a, b)
	}
	if _, err := f.guest.Alloc(8, 16); err == nil {
		t.Error("alignment above 8 accepted")
	}
	// no free export: Free is a no-op
	f.guest.Free(a, 3, 1)
	if f.guest.Size() != 65536 {
		t.Errorf("Size() = %d", f.guest.Size())
	}
}

func TestClassNames(t *testing.T) {
	f := newFixture(t)
	out, err := f.guest.Alloc(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	n := api.DecodeI32(f.call("class_names", uint64(out)))
	if n != int32(len("Counter")) {
		t.Fatalf("class_names = %d", n)
	}
	ptr, _ := f.guest.ReadU32(out)
	if got := f.readZ(ptr); got != "Counter" {
		t.Errorf("names = %q", got)
	}
}

func TestObjectThroughBridge(t *testing.T) {
	f := newFixture(t)
	h := f.create()

	if got := api.DecodeI32(f.call("get_info", h)); got != dispatch.InterfaceVersion {
		t.Errorf("get_info = %d", got)
	}
	if got := api.DecodeI32(f.call("get_n_props", h)); got != 2 {
		t.Errorf("get_n_props = %d, want 2 (Value, ErrorDescription)", got)
	}

	ptr, n := f.putName("значение")
	prop := f.call("find_prop", h, ptr, n)
	if api.DecodeI32(prop) != 0 {
		t.Fatalf("find_prop = %d", api.DecodeI32(prop))
	}
	if got := f.readZ(api.DecodeU32(f.call("get_prop_name", h, prop, 1))); got != "Значение" {
		t.Errorf("local name = %q", got)
	}
	if f.call("is_prop_readable", h, prop) != 1 || f.call("is_prop_writable", h, prop) != 1 {
		t.Error("Value should be read/write")
	}

	in := f.records(variant.Int(40))
	if f.call("set_prop_val", h, prop, uint64(in)) != 1 {
		t.Fatal("set_prop_val failed")
	}

	ptr, n = f.putName("ADD")
	add := f.call("find_method", h, ptr, n)
	if api.DecodeI32(add) < 0 {
		t.Fatal("Add not found")
	}
	if got := api.DecodeI32(f.call("get_n_params", h, add)); got != 1 {
		t.Errorf("get_n_params = %d", got)
	}
	if f.call("has_ret_val", h, add) != 1 {
		t.Error("has_ret_val = 0")
	}

	params := f.records(variant.Int(2))
	ret := f.records(variant.Absent{})
	if f.call("call_as_func", h, add, uint64(ret), uint64(params), 1) != 1 {
		t.Fatal("call_as_func failed")
	}
	if v := f.value(ret); v != variant.Int(42) {
		t.Errorf("Add result = %v", v)
	}

	out := f.records(variant.Absent{})
	if f.call("get_prop_val", h, prop, uint64(out)) != 1 {
		t.Fatal("get_prop_val failed")
	}
	if v := f.value(out); v != variant.Int(42) {
		t.Errorf("Value = %v", v)
	}

	loc, ln := f.putName("ru_RU")
	f.call("set_locale", h, loc, ln)
	inst, _ := f.b.Registry().Get(registry.Handle(h))
	if got := inst.(*dispatch.Adapter[*counter]).LocaleName(); got != "ru_RU" {
		t.Errorf("locale = %q", got)
	}

	extOut, _ := f.guest.Alloc(4, 4)
	if f.call("register_extension_as", h, uint64(extOut)) != 1 {
		t.Fatal("register_extension_as failed")
	}
	extPtr, _ := f.guest.ReadU32(extOut)
	if got := f.readZ(extPtr); got != "Counter" {
		t.Errorf("extension name = %q", got)
	}

	f.call("done", h)
	if inst.Ready() {
		t.Error("object ready after done")
	}
	if f.call("destroy", h) != 1 {
		t.Error("destroy failed")
	}
	if f.call("destroy", h) != 0 {
		t.Error("second destroy succeeded")
	}
}

func TestFailureWithoutAddError(t *testing.T) {
	f := newFixture(t)
	h := f.create()

	ptr, n := f.putName("Fail")
	m := f.call("find_method", h, ptr, n)
	if f.call("call_as_proc", h, m, 0, 0) != 0 {
		t.Fatal("failing method reported success")
	}

	ptr, n = f.putName("ErrorDescription")
	prop := f.call("find_prop", h, ptr, n)
	out := f.records(variant.Absent{})
	if f.call("get_prop_val", h, prop, uint64(out)) != 1 {
		t.Fatal("get_prop_val failed")
	}
	if v := f.value(out); v.String() != "counter jammed" {
		t.Errorf("ErrorDescription = %q", v.String())
	}
}

func TestUnknownHandle(t *testing.T) {
	f := newFixture(t)
	if got := f.call("get_n_props", 99); got != 0 {
		t.Errorf("get_n_props(99) = %d", got)
	}
	ptr, n := f.putName("Value")
	if got := api.DecodeI32(f.call("find_prop", 99, ptr, n)); got != -1 {
		t.Errorf("find_prop(99) = %d", got)
	}
	if f.call("destroy", 0) != 0 {
		t.Error("destroy(0) succeeded")
	}
}

func TestCreateUnknownClass(t *testing.T) {
	f := newFixture(t)
	ptr, n := f.putName("Nope")
	if h := f.call("create", ptr, n); h != 0 {
		t.Errorf("create(Nope) = %d", h)
	}
	if h := f.call("create", 60000, 100); h != 0 {
		t.Errorf("create with out of bounds name = %d", h)
	}
}

func TestRunMissingEntry(t *testing.T) {
	b := New(registry.New())
	err := b.Run(context.Background(), guestWASM, "main")
	var missing *errors.MissingExportsError
	if !stderrors.As(err, &missing) || missing.Exports[0] != "main" {
		t.Errorf("Run error = %v", err)
	}
	if err := b.Run(context.Background(), memoryOnlyWASM, ""); !stderrors.As(err, &missing) {
		t.Errorf("Run without alloc = %v", err)
	}
}
