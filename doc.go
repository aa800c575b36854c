// Package addin provides a Go implementation of a native add-in adapter.
//
// An add-in is a Go object whose properties and methods are exposed to an
// external host through a narrow C-style ABI. The host enumerates members
// by index, resolves them by (case-insensitive, bilingual) name, reads and
// writes properties and invokes methods, passing values as fixed-layout
// tagged records in its own memory. This module translates those records to
// a Go dynamic value type, dispatches through a member table built once per
// type, and turns every failure into the host's boolean + diagnostic
// convention.
//
// # Architecture Overview
//
//	addin/             Root package with Memory, Allocator, MemoryManager
//	├── variant/       Dynamic value sum type (Bool, Int, Real, Text, ...)
//	├── wire/          Wire record layout, codec, staged output, call params
//	├── member/        Member table builder (properties and methods)
//	├── dispatch/      Host-facing adapter, fault boundary, diagnostics
//	├── registry/      Process-wide class registry and instance handles
//	├── hostmem/       In-process host memory for tests and the CLI
//	├── bridge/        wazero host module exposing objects to wasm hosts
//	├── script/        Starlark-defined add-in objects
//	├── config/        CUE manifest loading
//	├── errors/        Structured error types
//	├── examples/      Calculator class and a host walkthrough
//	└── cmd/addin/     CLI and interactive member browser
//
// # Quick Start
//
// Describe a type once and register it:
//
//	table, err := member.NewBuilder[*Counter]("Counter").
//	    Property("Value", "Значение", (*Counter).value, nil).
//	    Method("Add", "Добавить", 1, (*Counter).add).
//	    Build()
//	class, err := dispatch.NewClass(table, func() *Counter { return &Counter{} })
//	err = registry.Register(class)
//
// The host then drives the object through dispatch.Object:
//
//	obj.Init(conn)
//	obj.SetMemManager(mm)
//	idx := obj.FindMethod(utf16.Encode([]rune("Add")))
//	ok := obj.CallAsFunc(idx, retAddr, paramsAddr, 2)
//
// # Thread Safety
//
// Member tables and classes are immutable and safe for concurrent use.
// Each adapter serializes access to its own state; user callables run
// outside that lock.
package addin
