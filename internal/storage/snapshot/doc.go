// Package snapshot checkpoints and restores a running VM.
//
// A snapshot captures the operand stack, the frame stack above the two
// sentinel frames, the program counter, the global table and the linear
// memory. Instruction positions are stored as (function id, offset) pairs so
// a snapshot can be restored into a fresh process holding the same module.
//
// Two memory strategies are available:
//
//	difflog  <id>.snap (text) holds globals, control state and the memory
//	         size; <id>.bin holds the bytes that changed since snapshot
//	         id-1. Restoring id replays 1.bin .. id.bin.
//	rle      <id>.snap (binary) holds control state, globals, the program
//	         counter again and a run-length encoded image. Every snapshot
//	         is self-contained.
//
// Both write <id>.meta, a JSON manifest, once the other artifacts are safely
// committed.
//
// A Manager is not safe for concurrent use, and the VM must be quiescent for
// the duration of Save and Load.
package snapshot
