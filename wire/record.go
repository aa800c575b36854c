package wire

import (
	"encoding/binary"
	"math"

	addin "github.com/wippyai/native-addin"
)

// Record layout in host memory (little endian):
//
//	0   8  payload: inline scalar bits, or u32 pointer in the low half
//	8   4  element count for PWSTR/PSTR/BLOB
//	12  2  tag
//	14  2  reserved
const (
	RecordSize  = 16
	RecordAlign = 8

	offPayload = 0
	offLen     = 8
	offTag     = 12
)

// Limits on payloads read from or written to the host.
const (
	MaxTextUnits = 1 << 29 // UTF-16 units per text record
	MaxBytes     = 1 << 30 // bytes per narrow text or blob record
	MaxArgs      = 1 << 16 // records per call
)

// Record is the raw content of one wire record.
type Record struct {
	Payload uint64
	Len     uint32
	Tag     Tag
}

// Ptr returns the buffer pointer of a PWSTR/PSTR/BLOB record.
func (r Record) Ptr() uint32 { return uint32(r.Payload) }

// ReadRecord loads the record at addr.
func ReadRecord(mem addin.Memory, addr uint32) (Record, error) {
	raw, err := mem.Read(addr, RecordSize)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Payload: binary.LittleEndian.Uint64(raw[offPayload:]),
		Len:     binary.LittleEndian.Uint32(raw[offLen:]),
		Tag:     Tag(binary.LittleEndian.Uint16(raw[offTag:])),
	}, nil
}

// WriteRecord stores r at addr, zeroing the reserved bytes.
func WriteRecord(mem addin.Memory, addr uint32, r Record) error {
	var raw [RecordSize]byte
	binary.LittleEndian.PutUint64(raw[offPayload:], r.Payload)
	binary.LittleEndian.PutUint32(raw[offLen:], r.Len)
	binary.LittleEndian.PutUint16(raw[offTag:], uint16(r.Tag))
	return mem.Write(addr, raw[:])
}

// RecordAddr returns the address of slot i of an array starting at base.
func RecordAddr(base uint32, i int) uint32 {
	return base + uint32(i)*RecordSize
}

// Scalar record constructors, also used by hosts that build argument arrays.

func BoolRecord(b bool) Record {
	var p uint64
	if b {
		p = 1
	}
	return Record{Tag: TagBool, Payload: p}
}

func I2Record(v int16) Record { return Record{Tag: TagI2, Payload: uint64(uint16(v))} }
func I4Record(v int32) Record { return Record{Tag: TagI4, Payload: uint64(uint32(v))} }
func UI1Record(v uint8) Record { return Record{Tag: TagUI1, Payload: uint64(v)} }

func R4Record(v float32) Record {
	return Record{Tag: TagR4, Payload: uint64(math.Float32bits(v))}
}

func R8Record(v float64) Record {
	return Record{Tag: TagR8, Payload: math.Float64bits(v)}
}

func EmptyRecord() Record { return Record{Tag: TagEmpty} }
func ErrorRecord() Record { return Record{Tag: TagError} }
