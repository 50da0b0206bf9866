package snapshot

import (
	"io"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
	"github.com/yndnr/wasmsnap-go/internal/storage/difflog"
)

// Summary is the module-independent content of one snapshot.
type Summary struct {
	ID       uint32         `json:"id" yaml:"id"`
	Strategy Strategy       `json:"strategy" yaml:"strategy"`
	Values   []uint64       `json:"values" yaml:"values"`
	Globals  []uint64       `json:"globals" yaml:"globals"`
	Control  ControlState   `json:"control" yaml:"control"`
	Memory   MemoryStats    `json:"memory" yaml:"memory"`
	Manifest *Manifest      `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Verified bool           `json:"verified" yaml:"verified"`
	NonZero  uint64         `json:"non_zero_bytes,omitempty" yaml:"non_zero_bytes,omitempty"`
	Chain    []ChainSegment `json:"chain,omitempty" yaml:"chain,omitempty"`
}

// ChainSegment describes one diff log replayed by Verify.
type ChainSegment struct {
	ID      uint32 `json:"id" yaml:"id"`
	Records uint64 `json:"records" yaml:"records"`
	Skipped uint64 `json:"skipped" yaml:"skipped"`
}

// Inspect decodes snapshot id from store without a module. The strategy is
// taken from the manifest when strategy is empty.
//
// Inspect does not replay the Diff Log chain; only the records of <id>.bin
// are counted.
func Inspect(store storage.Store, id uint32, strategy Strategy) (*Summary, error) {
	return inspect(store, id, strategy, false)
}

// Verify is Inspect plus a full decode of the memory image, replaying the
// whole Diff Log chain, and a check that every surviving manifest of the
// chain shares one chain id.
func Verify(store storage.Store, id uint32, strategy Strategy) (*Summary, error) {
	return inspect(store, id, strategy, true)
}

func inspect(store storage.Store, id uint32, strategy Strategy, full bool) (*Summary, error) {
	if id == 0 {
		return nil, domain.ErrInvalidConfig.WithDetails("snapshot id must be at least 1")
	}

	sum := &Summary{ID: id, Strategy: strategy}
	man, err := ReadManifest(store, id)
	switch {
	case isNotFound(err):
	case err != nil:
		return nil, classify(err, storage.MetaName(id))
	default:
		sum.Manifest = man
		if sum.Strategy == "" {
			sum.Strategy = man.Strategy
		}
	}
	if sum.Strategy == "" {
		return nil, domain.ErrInvalidConfig.WithDetailsf("snapshot %d has no manifest, strategy required", id)
	}
	if _, err := ParseStrategy(string(sum.Strategy)); err != nil {
		return nil, err
	}

	sess, err := openRead(store, id, sum.Strategy)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	globals, st, err := decodeSections(sess.r, sum.Strategy)
	if err != nil {
		return nil, err
	}
	sum.Control = st
	sum.Values = make([]uint64, len(st.Values))
	for i, v := range st.Values {
		sum.Values[i] = v.Uint64()
	}
	sum.Globals = make([]uint64, len(globals))
	for i, v := range globals {
		sum.Globals[i] = v.Uint64()
	}

	var image []byte
	switch {
	case sum.Strategy == StrategyRLE:
		image, sum.Memory, err = NewRLEPersistence(0).Decode(sess)
	case full:
		image, sum.Memory, err = verifyChain(sess, sum)
	default:
		sum.Memory, err = countLog(sess)
	}
	if err != nil {
		return nil, err
	}

	if full {
		if man != nil {
			if err := checkChain(store, man); err != nil {
				return nil, err
			}
		}
		for _, b := range image {
			if b != 0 {
				sum.NonZero++
			}
		}
		sum.Verified = true
	}
	return sum, nil
}

// countLog reads the memory size and counts the records of the snapshot's
// own diff log.
func countLog(sess *session) (MemoryStats, error) {
	var ms MemoryStats
	n, err := sess.r.ReadUint64()
	if err != nil {
		return ms, classify(err, "memory size")
	}
	ms.Bytes = n

	var st difflog.Stats
	err = sess.read(storage.BinName(sess.id), func(r io.Reader) error {
		return difflog.Scan(archive.NewBinaryReader(r), func(rec difflog.Record) error {
			st.Records++
			if rec.Offset >= n {
				st.Skipped++
			}
			return nil
		})
	})
	ms.Diff = &st
	return ms, err
}

// verifyChain replays the whole chain like Load does, recording per-log
// statistics.
func verifyChain(sess *session, sum *Summary) ([]byte, MemoryStats, error) {
	var ms MemoryStats
	n, err := sess.r.ReadUint64()
	if err != nil {
		return nil, ms, classify(err, "memory size")
	}
	ms.Bytes = n
	if err := checkImageSize(n); err != nil {
		return nil, ms, err
	}

	image := make([]byte, n)
	total, err := replayChain(sess, image, func(k uint32, st difflog.Stats) {
		sum.Chain = append(sum.Chain, ChainSegment{ID: k, Records: st.Records, Skipped: st.Skipped})
	})
	ms.Diff = &total
	if err != nil {
		return nil, ms, err
	}
	return image, ms, nil
}
