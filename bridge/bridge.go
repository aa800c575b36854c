package bridge

import (
	"context"
	"encoding/binary"
	"sync"
	"unicode/utf16"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/native-addin/dispatch"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/registry"
	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// ModuleName is the import module guests use for the add-in functions.
const ModuleName = "addin"

// Bridge serves the classes of a registry to WebAssembly guests that play
// the host role. Objects are addressed by registry handles.
type Bridge struct {
	reg    *registry.Registry
	guests map[api.Module]*Guest
	mu     sync.Mutex
}

// New creates a bridge over reg. A nil reg uses registry.Default().
func New(reg *registry.Registry) *Bridge {
	if reg == nil {
		reg = registry.Default()
	}
	return &Bridge{reg: reg, guests: make(map[api.Module]*Guest)}
}

// Registry returns the registry the bridge serves.
func (b *Bridge) Registry() *registry.Registry { return b.reg }

type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  int
	results int
}

// Instantiate defines the addin host module in rt.
func (b *Bridge) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ModuleName)
	for _, f := range b.functions() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, i32s(f.params), i32s(f.results)).
			Export(f.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBridge, errors.KindRegistration, err, "instantiate host module")
	}
	return mod, nil
}

// Forget drops cached state for a guest module that is being closed.
func (b *Bridge) Forget(mod api.Module) {
	b.mu.Lock()
	delete(b.guests, mod)
	b.mu.Unlock()
}

func i32s(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

// guest returns the Guest for caller, refreshing the context its allocator
// calls run under.
func (b *Bridge) guest(ctx context.Context, caller api.Module) (*Guest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.guests[caller]; ok {
		g.ctx = ctx
		return g, nil
	}
	g, err := NewGuest(ctx, caller)
	if err != nil {
		return nil, err
	}
	b.guests[caller] = g
	return g, nil
}

// instanceFunc handles a call on an existing object. args excludes the handle.
type instanceFunc func(ctx context.Context, caller api.Module, inst dispatch.Instance, args []uint64) uint64

// onInstance resolves the handle in the first parameter. Unknown handles
// yield fallback.
func (b *Bridge) onInstance(name string, params, results int, fallback uint64, fn instanceFunc) hostFunc {
	return hostFunc{
		name:    name,
		params:  params,
		results: results,
		fn: func(ctx context.Context, caller api.Module, stack []uint64) {
			h := registry.Handle(api.DecodeU32(stack[0]))
			inst, ok := b.reg.Get(h)
			var out uint64
			if ok {
				out = fn(ctx, caller, inst, stack[1:params])
			} else {
				Logger().Warn("unknown object handle", zap.String("func", name), zap.Uint32("handle", uint32(h)))
				out = fallback
			}
			if results > 0 {
				stack[0] = out
			}
		},
	}
}

func boolResult(ok bool) uint64 {
	if ok {
		return 1
	}
	return 0
}

func i32(v int32) uint64 { return api.EncodeI32(v) }

var notFound = api.EncodeI32(-1)

func (b *Bridge) functions() []hostFunc {
	return []hostFunc{
		{name: "class_names", params: 1, results: 1, fn: b.classNames},
		{name: "create", params: 2, results: 1, fn: b.create},
		{name: "destroy", params: 1, results: 1, fn: b.destroy},

		b.onInstance("init", 1, 1, 0, func(ctx context.Context, caller api.Module, inst dispatch.Instance, _ []uint64) uint64 {
			g, err := b.guest(ctx, caller)
			if err != nil {
				Logger().Warn("init: guest unusable", zap.Error(err))
				return 0
			}
			return boolResult(inst.Init(newGuestConnection(g)))
		}),
		b.onInstance("set_mem_manager", 1, 1, 0, func(ctx context.Context, caller api.Module, inst dispatch.Instance, _ []uint64) uint64 {
			g, err := b.guest(ctx, caller)
			if err != nil {
				Logger().Warn("set_mem_manager: guest unusable", zap.Error(err))
				return 0
			}
			return boolResult(inst.SetMemManager(g))
		}),
		b.onInstance("get_info", 1, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, _ []uint64) uint64 {
			return i32(inst.GetInfo())
		}),
		b.onInstance("done", 1, 0, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, _ []uint64) uint64 {
			inst.Done()
			return 0
		}),
		b.onInstance("register_extension_as", 2, 1, 0, func(ctx context.Context, caller api.Module, inst dispatch.Instance, args []uint64) uint64 {
			ptr, ok := inst.RegisterExtensionAs()
			if !ok {
				return 0
			}
			return boolResult(b.writePointer(ctx, caller, api.DecodeU32(args[0]), ptr))
		}),

		b.onInstance("get_n_props", 1, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, _ []uint64) uint64 {
			return i32(inst.GetNProps())
		}),
		b.onInstance("find_prop", 3, 1, notFound, func(ctx context.Context, caller api.Module, inst dispatch.Instance, args []uint64) uint64 {
			name, ok := b.readName(ctx, caller, args[0], args[1])
			if !ok {
				return notFound
			}
			return i32(inst.FindProp(name))
		}),
		b.onInstance("get_prop_name", 3, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return api.EncodeU32(inst.GetPropName(api.DecodeI32(args[0]), api.DecodeI32(args[1])))
		}),
		b.onInstance("get_prop_val", 3, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.GetPropVal(api.DecodeI32(args[0]), api.DecodeU32(args[1])))
		}),
		b.onInstance("set_prop_val", 3, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.SetPropVal(api.DecodeI32(args[0]), api.DecodeU32(args[1])))
		}),
		b.onInstance("is_prop_readable", 2, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.IsPropReadable(api.DecodeI32(args[0])))
		}),
		b.onInstance("is_prop_writable", 2, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.IsPropWritable(api.DecodeI32(args[0])))
		}),

		b.onInstance("get_n_methods", 1, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, _ []uint64) uint64 {
			return i32(inst.GetNMethods())
		}),
		b.onInstance("find_method", 3, 1, notFound, func(ctx context.Context, caller api.Module, inst dispatch.Instance, args []uint64) uint64 {
			name, ok := b.readName(ctx, caller, args[0], args[1])
			if !ok {
				return notFound
			}
			return i32(inst.FindMethod(name))
		}),
		b.onInstance("get_method_name", 3, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return api.EncodeU32(inst.GetMethodName(api.DecodeI32(args[0]), api.DecodeI32(args[1])))
		}),
		b.onInstance("get_n_params", 2, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return i32(inst.GetNParams(api.DecodeI32(args[0])))
		}),
		b.onInstance("get_param_def_value", 4, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.GetParamDefValue(api.DecodeI32(args[0]), api.DecodeI32(args[1]), api.DecodeU32(args[2])))
		}),
		b.onInstance("has_ret_val", 2, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.HasRetVal(api.DecodeI32(args[0])))
		}),
		b.onInstance("call_as_proc", 4, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.CallAsProc(api.DecodeI32(args[0]), api.DecodeU32(args[1]), api.DecodeI32(args[2])))
		}),
		b.onInstance("call_as_func", 5, 1, 0, func(_ context.Context, _ api.Module, inst dispatch.Instance, args []uint64) uint64 {
			return boolResult(inst.CallAsFunc(api.DecodeI32(args[0]), api.DecodeU32(args[1]), api.DecodeU32(args[2]), api.DecodeI32(args[3])))
		}),

		b.onInstance("set_locale", 3, 0, 0, func(ctx context.Context, caller api.Module, inst dispatch.Instance, args []uint64) uint64 {
			if loc, ok := b.readName(ctx, caller, args[0], args[1]); ok {
				inst.SetLocale(loc)
			}
			return 0
		}),
	}
}

// class_names(out) -> units. Writes a pointer to a zero-terminated UTF-16
// list "A|B" at out and returns its length, or -1.
func (b *Bridge) classNames(ctx context.Context, caller api.Module, stack []uint64) {
	out := api.DecodeU32(stack[0])
	stack[0] = notFound
	g, err := b.guest(ctx, caller)
	if err != nil {
		Logger().Warn("class_names: guest unusable", zap.Error(err))
		return
	}
	st := wire.NewStage(g, g)
	defer st.Release()
	rec, err := st.Lower(variant.TextOf(b.reg.ClassNames()))
	if err == nil {
		err = g.WriteU32(out, rec.Ptr())
	}
	if err == nil {
		err = st.Commit()
	}
	if err != nil {
		Logger().Warn("class_names failed", zap.Error(err))
		return
	}
	stack[0] = i32(int32(rec.Len))
}

// create(name, len) -> handle, 0 on failure.
func (b *Bridge) create(ctx context.Context, caller api.Module, stack []uint64) {
	units, ok := b.readName(ctx, caller, stack[0], stack[1])
	stack[0] = 0
	if !ok {
		return
	}
	name := string(utf16.Decode(units))
	h, _, err := b.reg.Create(name)
	if err != nil {
		Logger().Warn("create failed", zap.String("class", name), zap.Error(err))
		return
	}
	stack[0] = api.EncodeU32(uint32(h))
}

// destroy(handle) -> ok.
func (b *Bridge) destroy(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = boolResult(b.reg.Destroy(registry.Handle(api.DecodeU32(stack[0]))))
}

// readName reads len UTF-16 units at ptr from the caller's memory.
func (b *Bridge) readName(ctx context.Context, caller api.Module, ptr, n uint64) ([]uint16, bool) {
	count := api.DecodeU32(n)
	if count == 0 {
		return nil, true
	}
	if count > wire.MaxTextUnits {
		Logger().Warn("name too long", zap.Uint32("units", count))
		return nil, false
	}
	g, err := b.guest(ctx, caller)
	if err != nil {
		Logger().Warn("guest unusable", zap.Error(err))
		return nil, false
	}
	raw, err := g.Read(api.DecodeU32(ptr), count*2)
	if err != nil {
		Logger().Warn("name out of bounds", zap.Error(err))
		return nil, false
	}
	units := make([]uint16, count)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return units, true
}

func (b *Bridge) writePointer(ctx context.Context, caller api.Module, out, ptr uint32) bool {
	g, err := b.guest(ctx, caller)
	if err != nil {
		Logger().Warn("guest unusable", zap.Error(err))
		return false
	}
	if err := g.WriteU32(out, ptr); err != nil {
		Logger().Warn("pointer write out of bounds", zap.Error(err))
		return false
	}
	return true
}
