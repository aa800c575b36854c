// Package hostmem simulates the host side of the component ABI in process:
// a growable linear memory with an allocator, used by tests, the CLI and
// the interactive browser to drive adapters through their wire interface.
package hostmem

import (
	"encoding/binary"
	"fmt"
	"sync"

	addin "github.com/wippyai/native-addin"
)

const (
	// base is the first address handed out; 0 stays the null pointer.
	base        = 16
	initialSize = 64 * 1024
)

// Memory is a linear memory plus bump allocator. Freed blocks at the top
// of the heap are reclaimed; others are only accounted. It is safe for
// concurrent use.
type Memory struct {
	mu        sync.Mutex
	data      []byte
	limit     uint32
	next      uint32
	live      map[uint32]uint32
	liveBytes uint64
	allocs    uint64
	failAfter int
}

var (
	_ addin.MemoryManager = (*Memory)(nil)
	_ addin.MemorySizer   = (*Memory)(nil)
)

// Option configures a Memory.
type Option func(*Memory)

// WithLimit caps the memory size in bytes. Allocations that would grow
// past it fail. Zero means no limit.
func WithLimit(limit uint32) Option {
	return func(m *Memory) { m.limit = limit }
}

// New returns an empty memory.
func New(opts ...Option) *Memory {
	m := &Memory{
		next:      base,
		live:      make(map[uint32]uint32),
		failAfter: -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	size := uint32(initialSize)
	if m.limit != 0 && m.limit < size {
		size = m.limit
	}
	m.data = make([]byte, size)
	return m
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(len(m.data))
}

// FailAfter makes every allocation after the next n fail. A negative n
// turns failure injection off.
func (m *Memory) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
}

// Live returns the number of allocations not yet freed.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// LiveBytes returns the bytes held by live allocations.
func (m *Memory) LiveBytes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveBytes
}

// Allocations returns the number of successful allocations so far.
func (m *Memory) Allocations() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocs
}

// Alloc implements addin.Allocator.
func (m *Memory) Alloc(size, align uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAfter == 0 {
		return 0, fmt.Errorf("hostmem: allocation of %d bytes refused", size)
	}
	if align == 0 || align&(align-1) != 0 {
		return 0, fmt.Errorf("hostmem: invalid alignment %d", align)
	}
	if size == 0 {
		size = 1
	}

	ptr := (uint64(m.next) + uint64(align) - 1) &^ (uint64(align) - 1)
	end := ptr + uint64(size)
	if err := m.grow(end); err != nil {
		return 0, err
	}

	if m.failAfter > 0 {
		m.failAfter--
	}
	m.next = uint32(end)
	m.live[uint32(ptr)] = size
	m.liveBytes += uint64(size)
	m.allocs++
	return uint32(ptr), nil
}

// Free implements addin.Allocator. Unknown pointers are ignored.
func (m *Memory) Free(ptr, size, align uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.live[ptr]
	if !ok {
		return
	}
	delete(m.live, ptr)
	m.liveBytes -= uint64(n)
	if ptr+n == m.next {
		m.next = ptr
	}
}

// Reset frees every allocation and zeroes the memory.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.data)
	clear(m.live)
	m.liveBytes = 0
	m.next = base
}

func (m *Memory) grow(end uint64) error {
	if end <= uint64(len(m.data)) {
		return nil
	}
	if end > 1<<32-1 || (m.limit != 0 && end > uint64(m.limit)) {
		return fmt.Errorf("hostmem: out of memory (need %d bytes, limit %d)", end, m.limit)
	}
	size := uint64(len(m.data))
	if size == 0 {
		size = initialSize
	}
	for size < end {
		size *= 2
	}
	if m.limit != 0 && size > uint64(m.limit) {
		size = uint64(m.limit)
	}
	if size > 1<<32-1 {
		size = 1<<32 - 1
	}
	data := make([]byte, size)
	copy(data, m.data)
	m.data = data
	return nil
}

func (m *Memory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d", offset, length)
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[offset:])
	return out, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], value)
	return m.Write(offset, b[:])
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return m.Write(offset, b[:])
}
