package adaptive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ChunkSize is the plaintext size of one sealed chunk.
const ChunkSize = 1 << 20

// ErrStreamTruncated is returned when a sealed stream ends before its final
// chunk.
var ErrStreamTruncated = errors.New("adaptive: sealed stream truncated")

// Sealed stream layout:
//
//	( [len:4][ciphertext:len] )*
//
// Each chunk's additional data is its big-endian sequence number followed by
// a final-chunk flag, so chunks cannot be reordered, dropped or appended.

func chunkAAD(seq uint64, final bool) []byte {
	var aad [9]byte
	binary.BigEndian.PutUint64(aad[:8], seq)
	if final {
		aad[8] = 1
	}
	return aad[:]
}

// SealWriter encrypts everything written to it in ChunkSize chunks.
type SealWriter struct {
	w      io.Writer
	cipher Cipher
	buf    bytes.Buffer
	seq    uint64
	closed bool
}

// NewSealWriter returns a writer that seals into w. Close must be called to
// emit the final chunk; it does not close w.
func NewSealWriter(w io.Writer, c Cipher) *SealWriter {
	return &SealWriter{w: w, cipher: c}
}

func (s *SealWriter) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.New("adaptive: write to closed seal writer")
	}
	n, _ := s.buf.Write(p)
	for s.buf.Len() > ChunkSize {
		if err := s.emit(s.buf.Next(ChunkSize), false); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *SealWriter) emit(plain []byte, final bool) error {
	sealed, err := s.cipher.Encrypt(plain, chunkAAD(s.seq, final))
	if err != nil {
		return fmt.Errorf("adaptive: seal chunk %d: %w", s.seq, err)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(sealed)))
	if _, err := s.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := s.w.Write(sealed); err != nil {
		return err
	}
	s.seq++
	return nil
}

// Close seals the remaining buffered bytes as the final chunk.
func (s *SealWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.emit(s.buf.Bytes(), true)
}

// OpenReader decrypts a stream produced by SealWriter.
type OpenReader struct {
	r      io.Reader
	cipher Cipher
	plain  []byte
	seq    uint64
	done   bool
}

// NewOpenReader returns a reader that opens the sealed stream r.
func NewOpenReader(r io.Reader, c Cipher) *OpenReader {
	return &OpenReader{r: r, cipher: c}
}

func (o *OpenReader) Read(p []byte) (int, error) {
	for len(o.plain) == 0 {
		if o.done {
			return 0, io.EOF
		}
		if err := o.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, o.plain)
	o.plain = o.plain[n:]
	return n, nil
}

func (o *OpenReader) next() error {
	var hdr [4]byte
	if _, err := io.ReadFull(o.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrStreamTruncated
		}
		return err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > ChunkSize+uint32(o.cipher.Overhead()) {
		return fmt.Errorf("adaptive: chunk %d too large: %d", o.seq, size)
	}
	sealed := make([]byte, size)
	if _, err := io.ReadFull(o.r, sealed); err != nil {
		return ErrStreamTruncated
	}

	// A chunk opens under exactly one of the two flags.
	if plain, err := o.cipher.Decrypt(sealed, chunkAAD(o.seq, false)); err == nil {
		o.plain = plain
	} else if plain, err := o.cipher.Decrypt(sealed, chunkAAD(o.seq, true)); err == nil {
		o.plain = plain
		o.done = true
	} else {
		return fmt.Errorf("adaptive: open chunk %d: %w", o.seq, err)
	}
	o.seq++
	return nil
}
