package archive

import (
	"bufio"
	"encoding/binary"
	"io"
)

// BinaryWriter writes fixed-width little-endian scalars.
type BinaryWriter struct {
	w   *bufio.Writer
	buf [8]byte
}

// NewBinaryWriter returns a BinaryWriter over w.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{w: bufio.NewWriter(w)}
}

func (b *BinaryWriter) WriteUint8(v uint8) error {
	return b.w.WriteByte(v)
}

func (b *BinaryWriter) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(b.buf[:4], v)
	_, err := b.w.Write(b.buf[:4])
	return err
}

func (b *BinaryWriter) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(b.buf[:], v)
	_, err := b.w.Write(b.buf[:])
	return err
}

func (b *BinaryWriter) WriteInt64(v int64) error {
	return b.WriteUint64(uint64(v))
}

func (b *BinaryWriter) WriteBytes(p []byte) error {
	_, err := b.w.Write(p)
	return err
}

func (b *BinaryWriter) Flush() error {
	return b.w.Flush()
}

// BinaryReader reads scalars written by BinaryWriter.
type BinaryReader struct {
	r   *bufio.Reader
	buf [8]byte
}

// NewBinaryReader returns a BinaryReader over r.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{r: bufio.NewReader(r)}
}

func (b *BinaryReader) ReadUint8() (uint8, error) {
	return b.r.ReadByte()
}

func (b *BinaryReader) ReadUint32() (uint32, error) {
	if _, err := io.ReadFull(b.r, b.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.buf[:4]), nil
}

func (b *BinaryReader) ReadUint64() (uint64, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b.buf[:]), nil
}

func (b *BinaryReader) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *BinaryReader) ReadBytes(p []byte) error {
	_, err := io.ReadFull(b.r, p)
	return err
}
