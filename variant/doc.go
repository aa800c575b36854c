// Package variant defines the dynamic value exchanged with the host.
//
// A Value is exactly one of:
//
//	Bool        boolean
//	Int         64-bit signed integer
//	Real        double
//	Text        UTF-16 string
//	NarrowText  8-bit string
//	Binary      byte sequence with explicit length
//	Absent      no value
//
// The interface is sealed; code that inspects values uses a type switch
// with a default branch that reports the unexpected case. Payload-carrying
// cases copy their input on construction and on access, so a Value never
// aliases host memory.
//
// The wit.go helpers map kinds onto WIT primitive types and parse typed
// literals ("s64:5", "string:hi", "list<u8>:cafe") for command-line entry.
package variant
