package hostmem

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// maxNameUnits bounds ReadUTF16Z scans.
const maxNameUnits = 1 << 16

// NewRecords allocates n zeroed (EMPTY) records and returns the first
// address. n == 0 returns a valid address with no slots.
func (m *Memory) NewRecords(n int) (uint32, error) {
	if n < 0 || n > wire.MaxArgs {
		return 0, fmt.Errorf("hostmem: record count %d out of range", n)
	}
	size := uint32(n) * wire.RecordSize
	addr, err := m.Alloc(size, wire.RecordAlign)
	if err != nil {
		return 0, err
	}
	if size > 0 {
		if err := m.Write(addr, make([]byte, size)); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

// PutValues lays out values as a contiguous record array, the way the
// host passes method arguments.
func (m *Memory) PutValues(values ...variant.Value) (uint32, error) {
	addr, err := m.NewRecords(len(values))
	if err != nil {
		return 0, err
	}
	for i, v := range values {
		if err := wire.Encode(m, m, wire.RecordAddr(addr, i), v); err != nil {
			return 0, fmt.Errorf("hostmem: argument %d: %w", i, err)
		}
	}
	return addr, nil
}

// PutRecords writes raw records as an array, for hosts that send tags the
// codec never produces.
func (m *Memory) PutRecords(recs ...wire.Record) (uint32, error) {
	addr, err := m.NewRecords(len(recs))
	if err != nil {
		return 0, err
	}
	for i, r := range recs {
		if err := wire.WriteRecord(m, wire.RecordAddr(addr, i), r); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

// Values decodes n records starting at addr.
func (m *Memory) Values(addr uint32, n int) ([]variant.Value, error) {
	out := make([]variant.Value, n)
	for i := range out {
		v, err := wire.Decode(m, wire.RecordAddr(addr, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Value decodes the record at addr.
func (m *Memory) Value(addr uint32) (variant.Value, error) {
	return wire.Decode(m, addr)
}

// Record reads the raw record at addr.
func (m *Memory) Record(addr uint32) (wire.Record, error) {
	return wire.ReadRecord(m, addr)
}

// PutUTF16 writes s as UTF-16 without terminator and returns its address
// and length in units, the form host names are passed in.
func (m *Memory) PutUTF16(s string) (uint32, uint32, error) {
	units := utf16.Encode([]rune(s))
	if len(units) == 0 {
		return 0, 0, nil
	}
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	ptr, err := m.Alloc(uint32(len(buf)), 2)
	if err != nil {
		return 0, 0, err
	}
	if err := m.Write(ptr, buf); err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(units)), nil
}

// ReadUTF16Z reads a zero-terminated UTF-16 string, the form names are
// returned in. A null pointer is an error.
func (m *Memory) ReadUTF16Z(ptr uint32) (string, error) {
	if ptr == 0 {
		return "", fmt.Errorf("hostmem: null string pointer")
	}
	var units []uint16
	for i := uint32(0); i < maxNameUnits; i++ {
		u, err := m.ReadU16(ptr + i*2)
		if err != nil {
			return "", err
		}
		if u == 0 {
			return string(utf16.Decode(units)), nil
		}
		units = append(units, u)
	}
	return "", fmt.Errorf("hostmem: string at %d is not terminated", ptr)
}

// ReadUTF16 reads n units at ptr.
func (m *Memory) ReadUTF16(ptr, n uint32) (string, error) {
	if n == 0 {
		return "", nil
	}
	raw, err := m.Read(ptr, n*2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// Units converts s to UTF-16 code units.
func Units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
