package bridge

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/native-addin/errors"
)

// DefaultEntry is the export Run calls when no entry is given.
const DefaultEntry = "run"

// Run compiles a host guest, links it against the addin module and calls
// its entry export. The guest must export memory and alloc. WASI
// preview1 is available to the guest for output.
func (b *Bridge) Run(ctx context.Context, wasm []byte, entry string) error {
	if entry == "" {
		entry = DefaultEntry
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return errors.Wrap(errors.PhaseBridge, errors.KindRegistration, err, "instantiate wasi")
	}
	if _, err := b.Instantiate(ctx, rt); err != nil {
		return err
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return errors.ParseFailed(errors.PhaseBridge, "wasm module", err)
	}
	defer compiled.Close(ctx)

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("host").WithStartFunctions())
	if err != nil {
		return errors.Wrap(errors.PhaseBridge, errors.KindRegistration, err, "instantiate guest")
	}
	defer b.Forget(mod)

	if err := Validate(mod); err != nil {
		return err
	}

	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return errors.NewMissingExportsError(mod.Name(), []string{entry})
	}
	Logger().Debug("running host guest", zap.String("entry", entry))
	if _, err := fn.Call(ctx); err != nil {
		return errors.Wrap(errors.PhaseBridge, errors.KindCallable, err, "guest "+entry)
	}
	return nil
}

// Exports lists the function names of the addin module.
func (b *Bridge) Exports() []string {
	funcs := b.functions()
	out := make([]string, len(funcs))
	for i, f := range funcs {
		out[i] = f.name
	}
	return out
}
