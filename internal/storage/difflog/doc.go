// Package difflog encodes linear memory as a chain of byte-change logs.
//
// Each snapshot's log holds only the bytes that changed since the previous
// snapshot taken by the same process. Restoring snapshot N replays logs
// 1..N in order onto a zeroed image, so restore cost grows with history
// rather than with image size. A Compactor squashes a prefix of the chain
// into one log to bound that cost.
//
// Record wire format (binary archive, little-endian):
//
//	[Offset:8][Value:1]
//
// A log is a plain sequence of records with no header or trailer; an empty
// log is valid and means nothing changed.
package difflog
