package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// mockMemory implements addin.Memory over a byte slice with bounds checks.
// When failArmed is set, a Write starting at failAt fails, or panics if
// panics is set.
type mockMemory struct {
	data      []byte
	failAt    uint32
	failArmed bool
	panics    bool
}

func newMockMemory(size int) *mockMemory {
	return &mockMemory{data: make([]byte, size)}
}

func (m *mockMemory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("access [%d, %d) out of bounds (%d)", offset, uint64(offset)+uint64(length), len(m.data))
	}
	return nil
}

func (m *mockMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

func (m *mockMemory) Write(offset uint32, data []byte) error {
	if m.failArmed && offset == m.failAt {
		if m.panics {
			panic("write fault")
		}
		return errors.New("write fault")
	}
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *mockMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *mockMemory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *mockMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *mockMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *mockMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *mockMemory) WriteU16(offset uint32, value uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], value)
	return m.Write(offset, b[:])
}

func (m *mockMemory) WriteU32(offset uint32, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

func (m *mockMemory) WriteU64(offset uint32, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return m.Write(offset, b[:])
}

// mockAllocator is a bump allocator that tracks live allocations.
// After failAfter successful allocations every further call fails;
// a negative failAfter never fails.
type mockAllocator struct {
	offset    uint32
	live      map[uint32]uint32
	calls     int
	failAfter int
	zeroPtr   bool
}

func newMockAllocator(start uint32) *mockAllocator {
	return &mockAllocator{offset: start, live: make(map[uint32]uint32), failAfter: -1}
}

func (a *mockAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.failAfter >= 0 && a.calls >= a.failAfter {
		return 0, errors.New("out of memory")
	}
	a.calls++
	if a.zeroPtr {
		return 0, nil
	}
	if align > 1 {
		a.offset = (a.offset + align - 1) &^ (align - 1)
	}
	ptr := a.offset
	a.offset += size
	a.live[ptr] = size
	return ptr, nil
}

func (a *mockAllocator) Free(ptr, size, align uint32) {
	delete(a.live, ptr)
}
