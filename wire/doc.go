// Package wire converts between variant values and the host's 16-byte
// tagged records.
//
// # Record Layout
//
//	offset  size  field
//	0       8     payload (scalar bits, or buffer pointer in the low 32 bits)
//	8       4     length in elements for PWSTR, PSTR and BLOB
//	12      2     tag
//	14      2     reserved, written as zero
//
// # Decoding
//
// BOOL becomes Bool. I2, I4 and UI1 widen to Int (I2 sign-extends, UI1
// zero-extends). R4 and R8 widen to Real. PWSTR, PSTR and BLOB copy their
// buffers into Text, NarrowText and Binary. ERROR and EMPTY are Absent.
// Every other tag fails with an unsupported error naming the tag.
//
// # Encoding
//
// Encoding goes through a Stage. Scalars need no memory. Text allocates
// (n+1)*2 bytes at alignment 2 and writes a zero terminator; NarrowText and
// Binary allocate n+1 bytes. Records are queued and only reach memory on
// Commit. Abort frees every buffer the stage obtained:
//
//	st := wire.NewStage(mem, alloc)
//	defer st.Release()
//	if err := params.Close(st); err != nil {
//		st.Abort()
//		return err
//	}
//	if err := st.Put(resultAddr, value); err != nil {
//		st.Abort()
//		return err
//	}
//	return st.Commit()
//
// # Arguments
//
// OpenParams decodes a call's argument array up front and exposes it as
// Args. Only slots replaced through Set are written back on Close, so
// arguments the method did not touch stay byte-identical.
package wire
