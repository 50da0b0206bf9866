package snapshot

import (
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage/rle"
)

// RLEPersistence stores a complete run-length encoded image per snapshot.
type RLEPersistence struct {
	zip int64
}

// NewRLEPersistence returns a persistence compressing runs of zip or more
// equal bytes.
func NewRLEPersistence(zip int64) *RLEPersistence {
	if zip < 1 {
		zip = rle.DefaultZipFactor
	}
	return &RLEPersistence{zip: zip}
}

func (p *RLEPersistence) Strategy() Strategy { return StrategyRLE }

func (p *RLEPersistence) Encode(sess *session, mem instance.Memory) (MemoryStats, error) {
	var data []byte
	if mem != nil {
		data = mem.Data()
	}

	st, err := rle.Encode(sess.w, data, p.zip)
	ms := MemoryStats{Bytes: uint64(len(data)), RLE: &st}
	if err != nil {
		return ms, classify(err, "memory image")
	}
	return ms, nil
}

func (p *RLEPersistence) Decode(sess *session) ([]byte, MemoryStats, error) {
	image, st, err := rle.Decode(sess.r)
	ms := MemoryStats{Bytes: st.Count, RLE: &st}
	if err != nil {
		return nil, ms, classify(err, "memory image")
	}
	if len(image) == 0 {
		return nil, ms, nil
	}
	return image, ms, nil
}

// Adopt is a no-op: every RLE snapshot is self-contained.
func (p *RLEPersistence) Adopt([]byte) {}
