package wire

import (
	"encoding/binary"
	"math"

	addin "github.com/wippyai/native-addin"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/variant"
)

// Decode reads the record at addr and converts it to a Value.
func Decode(mem addin.Memory, addr uint32) (variant.Value, error) {
	r, err := ReadRecord(mem, addr)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read record")
	}
	return DecodeRecord(mem, r)
}

// DecodeRecord converts r to a Value, reading text and blob payloads from
// mem. Integer tags widen to Int, float tags to Real, ERROR and EMPTY
// become Absent. Any other tag is an error.
func DecodeRecord(mem addin.Memory, r Record) (variant.Value, error) {
	return decodeRecord(mem, r, nil)
}

func decodeRecord(mem addin.Memory, r Record, path []string) (variant.Value, error) {
	switch r.Tag {
	case TagBool:
		return variant.Bool(r.Payload&0xff != 0), nil
	case TagI2:
		return variant.Int(int16(uint16(r.Payload))), nil
	case TagI4:
		return variant.Int(int32(uint32(r.Payload))), nil
	case TagUI1:
		// Widened without a range check; uint8 always fits.
		return variant.Int(uint8(r.Payload)), nil
	case TagR4:
		return variant.Real(math.Float32frombits(uint32(r.Payload))), nil
	case TagR8:
		return variant.Real(math.Float64frombits(r.Payload)), nil
	case TagPWStr:
		units, err := readUnits(mem, r, path)
		if err != nil {
			return nil, err
		}
		return variant.TextFromUnits(units), nil
	case TagPStr:
		data, err := readBytes(mem, r, path)
		if err != nil {
			return nil, err
		}
		return variant.NarrowOf(data), nil
	case TagBlob:
		data, err := readBytes(mem, r, path)
		if err != nil {
			return nil, err
		}
		return variant.BinaryOf(data), nil
	case TagError, TagEmpty:
		return variant.Absent{}, nil
	default:
		return nil, errors.UnsupportedWireType(errors.PhaseDecode, path, uint16(r.Tag), r.Tag.String())
	}
}

func readUnits(mem addin.Memory, r Record, path []string) ([]uint16, error) {
	if r.Len == 0 {
		return nil, nil
	}
	if r.Len > MaxTextUnits {
		return nil, errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			WireType(r.Tag.String()).
			Detail("text length %d exceeds maximum %d", r.Len, MaxTextUnits).
			Build()
	}
	if r.Ptr() == 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, path, "null text pointer with non-zero length")
	}
	raw, err := mem.Read(r.Ptr(), r.Len*2)
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Path(path...).
			WireType(r.Tag.String()).
			Cause(err).
			Build()
	}
	units := make([]uint16, r.Len)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return units, nil
}

func readBytes(mem addin.Memory, r Record, path []string) ([]byte, error) {
	if r.Len == 0 {
		return nil, nil
	}
	if r.Len > MaxBytes {
		return nil, errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			WireType(r.Tag.String()).
			Detail("payload length %d exceeds maximum %d", r.Len, MaxBytes).
			Build()
	}
	if r.Ptr() == 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, path, "null payload pointer with non-zero length")
	}
	raw, err := mem.Read(r.Ptr(), r.Len)
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Path(path...).
			WireType(r.Tag.String()).
			Cause(err).
			Build()
	}
	// raw may alias host memory; variant constructors copy.
	return raw, nil
}

// Encode converts v and stores it at addr, allocating payload buffers
// through alloc. On failure nothing is written and every buffer allocated
// for v has been freed again.
func Encode(mem addin.Memory, alloc addin.Allocator, addr uint32, v variant.Value) error {
	st := NewStage(mem, alloc)
	defer st.Release()

	if err := st.Put(addr, v); err != nil {
		st.Abort()
		return err
	}
	return st.Commit()
}

// lowerScalar handles every case that needs no allocation.
func lowerScalar(v variant.Value, path []string) (Record, bool, error) {
	switch x := v.(type) {
	case variant.Bool:
		return BoolRecord(bool(x)), true, nil
	case variant.Int:
		if int64(x) < math.MinInt32 || int64(x) > math.MaxInt32 {
			return Record{}, true, errors.New(errors.PhaseEncode, errors.KindOverflow).
				Path(path...).
				GoType("int64").
				WireType(TagI4.String()).
				Value(int64(x)).
				Detail("value %d overflows I4", int64(x)).
				Build()
		}
		return I4Record(int32(x)), true, nil
	case variant.Real:
		return R8Record(float64(x)), true, nil
	case variant.Absent:
		return EmptyRecord(), true, nil
	case nil:
		return EmptyRecord(), true, nil
	}
	return Record{}, false, nil
}
