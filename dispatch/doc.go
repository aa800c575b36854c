// Package dispatch adapts a Go object described by a member table to the
// host's component interface.
//
// # Classes and Adapters
//
// A Class binds a member.Table to a constructor. It is built once per type
// and appends the ErrorDescription entry (property and method) after the
// user's members. Each host connection gets its own Adapter:
//
//	class := dispatch.MustClass(table, func() *Calc { return &Calc{} })
//	a := class.NewAdapter()
//	a.Init(conn)
//	a.SetMemManager(mem)
//	ok := a.CallAsFunc(a.FindMethod(units("Add")), ret, args, 2)
//
// # Lifecycle
//
// An adapter is in the no-instance state until Init succeeds and again
// after Done. In that state counts are zero, lookups return -1 and calls
// fail with a not_initialized diagnostic.
//
// # Failures
//
// No failure crosses the boundary as a panic. Lookup problems (bad index,
// arity mismatch, missing getter or setter) fail the request and set the
// diagnostic. Failures inside a call (decoding arguments, the user's code,
// encoding results) are additionally reported to the host connection with
// SeverityInfo and the class message code. Panics are rendered as follows:
// Diagnostic or string values verbatim, errors via Error, fmt.Stringer via
// String, anything else as "<unknown error>".
//
// A successful call clears the diagnostic after it completes. Reading
// ErrorDescription therefore returns the last failure and then resets it.
//
// # Concurrency
//
// Adapter state is guarded by a per-adapter mutex. User code runs outside
// the lock and may call Message from within a member.
package dispatch
