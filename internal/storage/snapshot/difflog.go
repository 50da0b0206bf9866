package snapshot

import (
	"bytes"
	"io"

	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
	"github.com/yndnr/wasmsnap-go/internal/storage/difflog"
)

// DiffLogPersistence stores, per snapshot, only the bytes that changed since
// the previous snapshot taken by this process.
//
// It owns its baseline image exclusively; the baseline is replaced wholesale
// by Adopt once a save is committed or a load succeeded.
type DiffLogPersistence struct {
	sparse   bool
	baseline []byte
	// synced is set once the baseline reflects a saved or loaded snapshot,
	// which may have had no memory at all.
	synced bool
}

// NewDiffLogPersistence returns a persistence with no baseline. When sparse
// is set the first Encode omits zero bytes.
func NewDiffLogPersistence(sparse bool) *DiffLogPersistence {
	return &DiffLogPersistence{sparse: sparse}
}

func (p *DiffLogPersistence) Strategy() Strategy { return StrategyDiffLog }

// HasBaseline reports whether the next Encode is incremental.
func (p *DiffLogPersistence) HasBaseline() bool { return p.synced }

// Encode writes the image size into the .snap stream and the changed bytes
// into <id>.bin.
func (p *DiffLogPersistence) Encode(sess *session, mem instance.Memory) (MemoryStats, error) {
	var ms MemoryStats

	var data []byte
	if mem != nil {
		data = mem.Data()
	}
	ms.Bytes = uint64(len(data))

	if err := sess.w.WriteUint64(ms.Bytes); err != nil {
		return ms, classify(err, "memory size")
	}

	bin, err := sess.create(storage.BinName(sess.id), storage.KindBin)
	if err != nil {
		return ms, err
	}
	st, err := difflog.Encode(archive.NewBinaryWriter(bin), data, p.baseline, p.sparse)
	ms.Diff = &st
	if err != nil {
		return ms, classify(err, storage.BinName(sess.id))
	}

	sess.baseline = bytes.Clone(data)
	sess.staged = true
	return ms, nil
}

// Decode reads the image size and replays 1.bin through <id>.bin onto a
// zeroed image of that size.
func (p *DiffLogPersistence) Decode(sess *session) ([]byte, MemoryStats, error) {
	var ms MemoryStats

	n, err := sess.r.ReadUint64()
	if err != nil {
		return nil, ms, classify(err, "memory size")
	}
	ms.Bytes = n
	if n == 0 {
		return nil, ms, nil
	}
	if err := checkImageSize(n); err != nil {
		return nil, ms, err
	}

	image := make([]byte, n)
	total, err := replayChain(sess, image, nil)
	ms.Diff = &total
	if err != nil {
		return nil, ms, err
	}
	return image, ms, nil
}

// replayChain applies 1.bin through <id>.bin to image in order. each, when
// set, is called with the statistics of every log.
func replayChain(sess *session, image []byte, each func(id uint32, st difflog.Stats)) (difflog.Stats, error) {
	var total difflog.Stats
	for k := uint32(1); k <= sess.id; k++ {
		var st difflog.Stats
		err := sess.read(storage.BinName(k), func(r io.Reader) error {
			var err error
			st, err = difflog.Replay(archive.NewBinaryReader(r), image)
			return err
		})
		total.Add(st)
		if err != nil {
			return total, err
		}
		if each != nil {
			each(k, st)
		}
	}
	return total, nil
}

// Adopt makes image the new baseline. The persistence keeps image.
func (p *DiffLogPersistence) Adopt(image []byte) {
	p.baseline = image
	p.synced = true
}

// Reset drops the baseline; the next Encode starts a new chain.
func (p *DiffLogPersistence) Reset() {
	p.baseline = nil
	p.synced = false
}
