// Package instance defines the live VM state the snapshot engine reads and
// writes: the module (function table, globals, linear memory) and the stack
// manager (operand stack and call frames).
//
// The interfaces are what a host VM implements. ModuleInstance,
// MemoryInstance and Stack are in-memory reference implementations used by
// the verifier and by tests.
package instance
