// Package rle encodes a full linear memory image with run-length compression.
//
// Stream layout (binary archive):
//
//	[count:u64]                      total image size, 0 means no memory
//	( [-run:i64][value:u8]           run of at least zip equal bytes
//	| [+len:i64][bytes:len] )*       literal bytes
//	[0:i64]                          terminator
//
// When count is 0 nothing follows it.
package rle

// DefaultZipFactor is the shortest run stored as a compressed record.
const DefaultZipFactor = 16

// MaxImageSize bounds the declared element count a decoder will allocate:
// 65536 pages of 64 KiB.
const MaxImageSize = 1 << 32
