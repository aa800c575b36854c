// Package errors provides structured error types for the add-in adapter.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the member path, Go type and wire tag names, and a cause chain.
// Its Error() text is what the host eventually reads as the diagnostic string.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindOverflow).
//		Path("Total").
//		GoType("int64").
//		WireType("I4").
//		Detail("value does not fit 32 bits").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ArityMismatch("Add", 2, 1)
//	err := errors.UnsupportedWireType(errors.PhaseDecode, path, 7, "TM")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
