package bridge

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	addin "github.com/wippyai/native-addin"
	"github.com/wippyai/native-addin/errors"
)

var (
	_ addin.MemoryManager = (*Guest)(nil)
	_ addin.MemorySizer   = (*Guest)(nil)
)

// Guest export names the bridge relies on.
const (
	ExportMemory   = "memory"
	ExportAlloc    = "alloc"
	ExportFree     = "free"
	ExportAddError = "add_error"
)

// guestAlign is the alignment every pointer returned by the guest's alloc
// export must satisfy.
const guestAlign = 8

// Guest adapts a wasm module acting as the host to addin.MemoryManager.
// Its linear memory holds wire records and its alloc export provides
// host-owned buffers.
type Guest struct {
	ctx   context.Context
	mod   api.Module
	mem   api.Memory
	alloc api.Function
	free  api.Function
}

// NewGuest binds to mod's exports. memory and alloc are required; free and
// add_error are optional.
func NewGuest(ctx context.Context, mod api.Module) (*Guest, error) {
	if err := Validate(mod); err != nil {
		return nil, err
	}
	return &Guest{
		ctx:   ctx,
		mod:   mod,
		mem:   mod.ExportedMemory(ExportMemory),
		alloc: mod.ExportedFunction(ExportAlloc),
		free:  mod.ExportedFunction(ExportFree),
	}, nil
}

// Module returns the wrapped module.
func (g *Guest) Module() api.Module { return g.mod }

// Size returns the current size of guest memory in bytes.
func (g *Guest) Size() uint32 { return g.mem.Size() }

// Read copies bytes out of guest memory. wazero returns a view that is
// invalidated when memory grows, so callers never see it.
func (g *Guest) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := g.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return bytes.Clone(data), nil
}

func (g *Guest) Write(offset uint32, data []byte) error {
	if !g.mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (g *Guest) ReadU8(offset uint32) (uint8, error) {
	v, ok := g.mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (g *Guest) ReadU16(offset uint32) (uint16, error) {
	v, ok := g.mem.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (g *Guest) ReadU32(offset uint32) (uint32, error) {
	v, ok := g.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (g *Guest) ReadU64(offset uint32) (uint64, error) {
	v, ok := g.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (g *Guest) WriteU8(offset uint32, value uint8) error {
	if !g.mem.WriteByte(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (g *Guest) WriteU16(offset uint32, value uint16) error {
	if !g.mem.WriteUint16Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (g *Guest) WriteU32(offset uint32, value uint32) error {
	if !g.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (g *Guest) WriteU64(offset uint32, value uint64) error {
	if !g.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// Alloc calls the guest's alloc(size) export. The guest returns 8-byte
// aligned pointers; a larger alignment is refused.
func (g *Guest) Alloc(size, align uint32) (uint32, error) {
	if align > guestAlign {
		return 0, fmt.Errorf("alignment %d exceeds guest alignment %d", align, guestAlign)
	}
	results, err := g.alloc.Call(g.ctx, api.EncodeU32(size))
	if err != nil {
		return 0, fmt.Errorf("allocation failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocation returned no result")
	}
	ptr := api.DecodeU32(results[0])
	if align > 0 && ptr%align != 0 {
		return 0, fmt.Errorf("guest returned misaligned pointer %d for alignment %d", ptr, align)
	}
	return ptr, nil
}

// Free calls the guest's free(ptr, size) export when present. Guests with
// arena allocators may omit it.
func (g *Guest) Free(ptr, size, _ uint32) {
	if g.free == nil || ptr == 0 {
		return
	}
	_, _ = g.free.Call(g.ctx, api.EncodeU32(ptr), api.EncodeU32(size))
}

// Validate reports the required exports mod lacks.
func Validate(mod api.Module) error {
	var missing []string
	if mod.ExportedMemory(ExportMemory) == nil {
		missing = append(missing, ExportMemory)
	}
	if mod.ExportedFunction(ExportAlloc) == nil {
		missing = append(missing, ExportAlloc)
	}
	if len(missing) > 0 {
		return errors.NewMissingExportsError(mod.Name(), missing)
	}
	return nil
}
