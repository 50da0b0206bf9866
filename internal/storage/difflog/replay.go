package difflog

import (
	"errors"
	"io"

	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
)

// Scan calls fn for every record in the log.
func Scan(r archive.Reader, fn func(Record) error) error {
	for {
		off, err := r.ReadUint64()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncatedRecord
		}
		if err != nil {
			return err
		}

		v, err := r.ReadUint8()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncatedRecord
		}
		if err != nil {
			return err
		}

		if err := fn(Record{Offset: off, Value: v}); err != nil {
			return err
		}
	}
}

// Replay applies a log to image. Records whose offset lies outside image are
// counted in Stats.Skipped and otherwise ignored.
func Replay(r archive.Reader, image []byte) (Stats, error) {
	var st Stats
	size := uint64(len(image))
	err := Scan(r, func(rec Record) error {
		st.Records++
		if rec.Offset >= size {
			st.Skipped++
			return nil
		}
		image[rec.Offset] = rec.Value
		return nil
	})
	return st, err
}

// ReadAll returns every record of a binary log.
func ReadAll(r io.Reader) ([]Record, error) {
	var out []Record
	err := Scan(archive.NewBinaryReader(r), func(rec Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}
