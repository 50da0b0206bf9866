// Package archive provides ordered scalar codecs for snapshot artifacts.
//
// A Writer and its matching Reader move primitive scalars in a fixed,
// caller-defined order. Nothing is tagged: every field must be read back in
// the exact order it was written.
//
// Two encodings are available:
//
//   - Text: decimal tokens separated by a single space. Byte spans are
//     written one number per byte.
//   - Binary: fixed-width little-endian scalars and raw byte spans.
//
// Both readers report io.EOF when the stream ends cleanly before a scalar
// and io.ErrUnexpectedEOF when it ends inside one.
package archive
