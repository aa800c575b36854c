package addin

// Memory represents the host's linear memory as seen through wire pointers.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of host memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates host-owned buffers. A zero pointer with a nil error
// is treated as an allocation failure.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// MemoryManager is what the host hands over in SetMemManager: its allocator
// together with the memory the returned pointers address.
type MemoryManager interface {
	Memory
	Allocator
}
