// Package registry tracks component classes and the objects the host
// creates from them.
//
// Classes are registered once, usually from an init function:
//
//	func init() {
//		registry.MustRegister(dispatch.MustClass(table, newCalc))
//	}
//
// The host asks for ClassNames ("Calc|Printer"), then creates objects by
// name. Each object gets a Handle; handle 0 is never issued and released
// handles are reused. Destroy and Close call Done on the objects they
// release.
package registry
