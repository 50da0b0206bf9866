package rle

import (
	"errors"
	"fmt"

	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
)

// ErrCorrupt is returned when a stream does not describe a consistent image.
var ErrCorrupt = errors.New("rle: corrupt stream")

// Stats summarizes one encode or decode.
type Stats struct {
	// Count is the image size in bytes.
	Count uint64 `json:"count" yaml:"count"`
	// Runs is the number of compressed records.
	Runs uint64 `json:"runs" yaml:"runs"`
	// Literals is the number of literal records.
	Literals uint64 `json:"literals" yaml:"literals"`
	// LiteralBytes is the number of bytes stored verbatim.
	LiteralBytes uint64 `json:"literal_bytes" yaml:"literal_bytes"`
}

// Encode writes image as a run-length stream. Runs of zip or more equal
// bytes become compressed records; everything else is gathered into literal
// records.
func Encode(w archive.Writer, image []byte, zip int64) (Stats, error) {
	st := Stats{Count: uint64(len(image))}
	if zip < 1 {
		return st, fmt.Errorf("rle: zip factor must be positive, got %d", zip)
	}

	if err := w.WriteUint64(st.Count); err != nil {
		return st, err
	}
	if len(image) == 0 {
		return st, w.Flush()
	}

	litStart := 0
	flush := func(end int) error {
		if end == litStart {
			return nil
		}
		if err := w.WriteInt64(int64(end - litStart)); err != nil {
			return err
		}
		if err := w.WriteBytes(image[litStart:end]); err != nil {
			return err
		}
		st.Literals++
		st.LiteralBytes += uint64(end - litStart)
		return nil
	}

	for i := 0; i < len(image); {
		j := i + 1
		for j < len(image) && image[j] == image[i] {
			j++
		}
		if int64(j-i) >= zip {
			if err := flush(i); err != nil {
				return st, err
			}
			if err := w.WriteInt64(-int64(j - i)); err != nil {
				return st, err
			}
			if err := w.WriteUint8(image[i]); err != nil {
				return st, err
			}
			st.Runs++
			litStart = j
		}
		i = j
	}
	if err := flush(len(image)); err != nil {
		return st, err
	}

	if err := w.WriteInt64(0); err != nil {
		return st, err
	}
	return st, w.Flush()
}

// Decode reads a stream written by Encode into a new buffer. A nil buffer
// with zero Count means the stream recorded no memory.
func Decode(r archive.Reader) ([]byte, Stats, error) {
	var st Stats

	count, err := r.ReadUint64()
	if err != nil {
		return nil, st, fmt.Errorf("%w: element count: %w", ErrCorrupt, err)
	}
	st.Count = count
	if count == 0 {
		return nil, st, nil
	}
	if count > MaxImageSize {
		return nil, st, fmt.Errorf("%w: element count %d exceeds %d", ErrCorrupt, count, uint64(MaxImageSize))
	}

	image := make([]byte, count)
	var pos uint64
	for rec := 0; ; rec++ {
		n, err := r.ReadInt64()
		if err != nil {
			return nil, st, fmt.Errorf("%w: record %d: %w", ErrCorrupt, rec, err)
		}
		if n == 0 {
			break
		}

		if n > 0 {
			size := uint64(n)
			if size > count-pos {
				return nil, st, fmt.Errorf("%w: literal of %d at %d overruns %d", ErrCorrupt, size, pos, count)
			}
			if err := r.ReadBytes(image[pos : pos+size]); err != nil {
				return nil, st, fmt.Errorf("%w: record %d: %w", ErrCorrupt, rec, err)
			}
			pos += size
			st.Literals++
			st.LiteralBytes += size
			continue
		}

		size := uint64(-n)
		if n == -n || size > count-pos {
			return nil, st, fmt.Errorf("%w: run of %d at %d overruns %d", ErrCorrupt, size, pos, count)
		}
		v, err := r.ReadUint8()
		if err != nil {
			return nil, st, fmt.Errorf("%w: record %d: %w", ErrCorrupt, rec, err)
		}
		run := image[pos : pos+size]
		if v != 0 {
			for k := range run {
				run[k] = v
			}
		}
		pos += size
		st.Runs++
	}

	if pos != count {
		return nil, st, fmt.Errorf("%w: decoded %d of %d bytes", ErrCorrupt, pos, count)
	}
	return image, st, nil
}
