package wire

import (
	"bytes"
	"encoding/binary"
	"sync"

	addin "github.com/wippyai/native-addin"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/variant"
)

// Allocation records one host buffer obtained during a stage.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

type pendingWrite struct {
	addr uint32
	rec  Record
}

// Stage collects the output records of one call. Payload buffers are
// allocated and filled as values are lowered, but records reach their
// destination slots only on Commit, which also hands the buffers over to
// the host. Abort, and Release on a stage that was not committed, free
// every buffer the stage allocated, so a failed or panicking call leaves
// no partially written outputs and no leaked host buffers.
type Stage struct {
	mem         addin.Memory
	alloc       addin.Allocator
	allocations []Allocation
	writes      []pendingWrite
}

var stagePool = sync.Pool{
	New: func() any {
		return &Stage{
			allocations: make([]Allocation, 0, 8),
			writes:      make([]pendingWrite, 0, 8),
		}
	},
}

const maxPooledStageCapacity = 128

// NewStage returns a pooled stage bound to mem and alloc. Call Release when done.
func NewStage(mem addin.Memory, alloc addin.Allocator) *Stage {
	st := stagePool.Get().(*Stage)
	st.mem = mem
	st.alloc = alloc
	return st
}

// Release frees any buffers not handed over by Commit and returns the
// stage to the pool. The stage is invalid afterwards.
func (st *Stage) Release() {
	st.Abort()
	if cap(st.allocations) > maxPooledStageCapacity || cap(st.writes) > maxPooledStageCapacity {
		return
	}
	st.Reset()
	st.mem = nil
	st.alloc = nil
	stagePool.Put(st)
}

// Reset forgets pending writes and allocations without freeing anything.
func (st *Stage) Reset() {
	st.allocations = st.allocations[:0]
	st.writes = st.writes[:0]
}

// Pending returns the number of queued record writes.
func (st *Stage) Pending() int { return len(st.writes) }

// Allocations returns the number of buffers allocated so far.
func (st *Stage) Allocations() int { return len(st.allocations) }

// Put lowers v and queues its record for addr.
func (st *Stage) Put(addr uint32, v variant.Value) error {
	return st.put(addr, v, nil)
}

func (st *Stage) put(addr uint32, v variant.Value, path []string) error {
	rec, err := st.lower(v, path)
	if err != nil {
		return err
	}
	st.writes = append(st.writes, pendingWrite{addr: addr, rec: rec})
	return nil
}

// Lower converts v to a record, allocating and filling its payload buffer
// when it has one. The record is not written anywhere. The buffer stays
// owned by the stage until Commit.
func (st *Stage) Lower(v variant.Value) (Record, error) {
	return st.lower(v, nil)
}

func (st *Stage) lower(v variant.Value, path []string) (Record, error) {
	if rec, ok, err := lowerScalar(v, path); ok {
		return rec, err
	}

	switch x := v.(type) {
	case variant.Text:
		units := x.Units()
		if len(units) > MaxTextUnits {
			return Record{}, errors.Overflow(errors.PhaseEncode, path, len(units), TagPWStr.String())
		}
		buf := make([]byte, (len(units)+1)*2)
		for i, u := range units {
			binary.LittleEndian.PutUint16(buf[i*2:], u)
		}
		ptr, err := st.allocWrite(buf, 2, path)
		if err != nil {
			return Record{}, err
		}
		return Record{Tag: TagPWStr, Payload: uint64(ptr), Len: uint32(len(units))}, nil

	case variant.NarrowText:
		return st.lowerBytes(TagPStr, x.Bytes(), path)

	case variant.Binary:
		return st.lowerBytes(TagBlob, x.Bytes(), path)

	default:
		return Record{}, errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(path...).
			GoType(typeName(v)).
			Detail("no wire encoding").
			Build()
	}
}

func (st *Stage) lowerBytes(tag Tag, data []byte, path []string) (Record, error) {
	if err := checkBytesLen(tag, len(data), path); err != nil {
		return Record{}, err
	}
	buf := make([]byte, len(data)+1)
	copy(buf, data)
	ptr, err := st.allocWrite(buf, 1, path)
	if err != nil {
		return Record{}, err
	}
	return Record{Tag: tag, Payload: uint64(ptr), Len: uint32(len(data))}, nil
}

// checkBytesLen accepts every length Decode accepts.
func checkBytesLen(tag Tag, n int, path []string) error {
	if n > MaxBytes {
		return errors.Overflow(errors.PhaseEncode, path, n, tag.String())
	}
	return nil
}

func (st *Stage) allocWrite(buf []byte, align uint32, path []string) (uint32, error) {
	if st.alloc == nil {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Path(path...).
			Detail("no host allocator").
			Build()
	}
	size := uint32(len(buf))
	ptr, err := st.alloc.Alloc(size, align)
	if err != nil || ptr == 0 {
		e := errors.AllocationFailed(errors.PhaseEncode, size, align)
		e.Path = path
		e.Cause = err
		return 0, e
	}
	st.allocations = append(st.allocations, Allocation{Ptr: ptr, Size: size, Align: align})
	if err := st.mem.Write(ptr, buf); err != nil {
		return 0, errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
			Path(path...).
			Detail("write %d bytes at %d", size, ptr).
			Cause(err).
			Build()
	}
	return ptr, nil
}

// Commit writes every queued record and hands the stage's buffers to the
// host. The previous contents of every destination are saved first; if a
// write fails or panics, the destinations already touched are restored and
// the stage is aborted.
func (st *Stage) Commit() error {
	saved := make([][]byte, len(st.writes))
	for i, w := range st.writes {
		old, err := st.mem.Read(w.addr, RecordSize)
		if err != nil {
			st.Abort()
			return commitError(w.addr, err)
		}
		saved[i] = bytes.Clone(old)
	}

	touched := -1
	defer func() {
		if touched < 0 {
			return
		}
		for j := touched; j >= 0; j-- {
			st.restore(st.writes[j].addr, saved[j])
		}
		st.Abort()
	}()
	for i, w := range st.writes {
		touched = i
		if err := WriteRecord(st.mem, w.addr, w.rec); err != nil {
			return commitError(w.addr, err)
		}
	}
	touched = -1
	st.Reset()
	return nil
}

// restore puts back a destination's previous contents. A fault while
// restoring is ignored.
func (st *Stage) restore(addr uint32, old []byte) {
	defer func() { _ = recover() }()
	_ = st.mem.Write(addr, old)
}

func commitError(addr uint32, cause error) error {
	return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
		Detail("write record at %d", addr).
		Cause(cause).
		Build()
}

// Abort frees every buffer allocated by this stage and drops queued writes.
// Buffers are forgotten before they are freed.
func (st *Stage) Abort() {
	allocs := st.allocations
	st.Reset()
	if st.alloc == nil {
		return
	}
	for _, a := range allocs {
		if a.Ptr != 0 {
			st.alloc.Free(a.Ptr, a.Size, a.Align)
		}
	}
}

func typeName(v variant.Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
