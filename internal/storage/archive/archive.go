package archive

import "errors"

// Writer writes scalars in order.
type Writer interface {
	WriteUint8(v uint8) error
	WriteUint32(v uint32) error
	WriteUint64(v uint64) error
	WriteInt64(v int64) error
	WriteBytes(p []byte) error
	// Flush pushes buffered output to the underlying stream.
	Flush() error
}

// Reader reads scalars in the order they were written.
type Reader interface {
	ReadUint8() (uint8, error)
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)
	ReadInt64() (int64, error)
	// ReadBytes fills p completely.
	ReadBytes(p []byte) error
}

// ErrMalformedToken is returned by the text reader for a token that does not
// parse as the requested scalar.
var ErrMalformedToken = errors.New("archive: malformed token")
