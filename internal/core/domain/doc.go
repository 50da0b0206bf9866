// Package domain defines the core domain models for wasmsnap.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - Value: the 128-bit operand cell and its 64-bit persisted form
//   - ProgramCounter: a relocatable (function, offset) instruction position
//   - Frame: one call activation on the live frame stack
//   - Chain ids: ULIDs that tie the snapshots of one write chain together
//   - Errors: the snapshot error taxonomy (I/O, format, module mismatch, mode)
package domain
