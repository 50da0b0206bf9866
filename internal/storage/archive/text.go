package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// TextWriter writes whitespace separated decimal tokens.
type TextWriter struct {
	w     *bufio.Writer
	buf   []byte
	first bool
}

// NewTextWriter returns a TextWriter over w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{
		w:     bufio.NewWriter(w),
		buf:   make([]byte, 0, 24),
		first: true,
	}
}

func (t *TextWriter) token(b []byte) error {
	if !t.first {
		if err := t.w.WriteByte(' '); err != nil {
			return err
		}
	}
	t.first = false
	_, err := t.w.Write(b)
	return err
}

func (t *TextWriter) WriteUint8(v uint8) error {
	return t.WriteUint64(uint64(v))
}

func (t *TextWriter) WriteUint32(v uint32) error {
	return t.WriteUint64(uint64(v))
}

func (t *TextWriter) WriteUint64(v uint64) error {
	t.buf = strconv.AppendUint(t.buf[:0], v, 10)
	return t.token(t.buf)
}

func (t *TextWriter) WriteInt64(v int64) error {
	t.buf = strconv.AppendInt(t.buf[:0], v, 10)
	return t.token(t.buf)
}

func (t *TextWriter) WriteBytes(p []byte) error {
	for _, b := range p {
		if err := t.WriteUint64(uint64(b)); err != nil {
			return err
		}
	}
	return nil
}

func (t *TextWriter) Flush() error {
	return t.w.Flush()
}

// TextReader reads tokens written by TextWriter.
type TextReader struct {
	r   *bufio.Reader
	tok []byte
}

// NewTextReader returns a TextReader over r.
func NewTextReader(r io.Reader) *TextReader {
	return &TextReader{r: bufio.NewReader(r), tok: make([]byte, 0, 24)}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// next returns the next token. The slice is reused by the following call.
func (t *TextReader) next() ([]byte, error) {
	var c byte
	var err error
	for {
		c, err = t.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if !isSpace(c) {
			break
		}
	}

	t.tok = append(t.tok[:0], c)
	for {
		c, err = t.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return t.tok, nil
		}
		if err != nil {
			return nil, err
		}
		if isSpace(c) {
			return t.tok, nil
		}
		t.tok = append(t.tok, c)
	}
}

func (t *TextReader) readUint(bits int) (uint64, error) {
	tok, err := t.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(tok), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedToken, tok)
	}
	return v, nil
}

func (t *TextReader) ReadUint8() (uint8, error) {
	v, err := t.readUint(8)
	return uint8(v), err
}

func (t *TextReader) ReadUint32() (uint32, error) {
	v, err := t.readUint(32)
	return uint32(v), err
}

func (t *TextReader) ReadUint64() (uint64, error) {
	return t.readUint(64)
}

func (t *TextReader) ReadInt64() (int64, error) {
	tok, err := t.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedToken, tok)
	}
	return v, nil
}

func (t *TextReader) ReadBytes(p []byte) error {
	for i := range p {
		b, err := t.ReadUint8()
		if err != nil {
			if i > 0 && errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		p[i] = b
	}
	return nil
}
