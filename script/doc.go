// Package script defines add-in classes in Starlark.
//
// A script is executed once by Compile. It declares members with the
// property and method builtins and may define init(self) and done(self)
// hooks:
//
//	class_name = "Greeter"
//
//	def init(self):
//	    self["count"] = 0
//
//	def greet(self, who, greeting = "Hello"):
//	    self["count"] += 1
//	    return greeting + ", " + who + "!"
//
//	property("Count", "Количество", get = lambda self: self["count"])
//	method("Greet", "Приветствовать", greet)
//
// Each object gets its own dict as self. init runs before the first member
// call, done when the host tears the object down. message(text, code=0)
// sends text to the host connection. fail(msg) makes the call fail with
// msg as the error description.
//
// Values map to Starlark as None (absent), bool, int (int64 range), float,
// string (text) and bytes (binary).
package script
