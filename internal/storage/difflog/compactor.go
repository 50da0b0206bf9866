package difflog

import (
	"errors"
	"fmt"

	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/logger"
)

// Compactor squashes a prefix of a diff-log chain into a single log.
type Compactor struct {
	store  storage.Store
	logger logger.Logger
}

// CompactorOption configures the Compactor.
type CompactorOption func(*Compactor)

// WithLogger sets the compactor's logger.
func WithLogger(l logger.Logger) CompactorOption {
	return func(c *Compactor) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCompactor creates a compactor over the chain held in store.
func NewCompactor(store storage.Store, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		store:  store,
		logger: logger.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CompactStats describes one compaction.
type CompactStats struct {
	// Logs is the number of logs folded into the squashed log.
	Logs int `json:"logs" yaml:"logs"`
	// RecordsBefore is the record count of logs 1..id before compaction.
	RecordsBefore uint64 `json:"records_before" yaml:"records_before"`
	// RecordsAfter is the record count of the squashed log.
	RecordsAfter uint64 `json:"records_after" yaml:"records_after"`
	// Removed is the number of .snap and .meta artifacts deleted.
	Removed int `json:"removed" yaml:"removed"`
}

// Compact rewrites <id>.bin so that it alone reproduces the image of
// snapshot id, empties logs 1..id-1, and removes the .snap and .meta
// artifacts of snapshots older than id, which can no longer be restored.
// Snapshots id and later restore exactly as before.
//
// The squashed log carries a record for every offset any folded log ever
// touched, so a crash after the rewrite but before the older logs are
// emptied still replays to the same image.
func (c *Compactor) Compact(id uint32) (CompactStats, error) {
	var st CompactStats
	if id == 0 {
		return st, fmt.Errorf("difflog: snapshot ids start at 1")
	}

	var image []byte
	var touched []bool
	for k := uint32(1); k <= id; k++ {
		n, err := c.fold(k, &image, &touched)
		if err != nil {
			return st, fmt.Errorf("difflog: fold %s: %w", storage.BinName(k), err)
		}
		st.Logs++
		st.RecordsBefore += n
	}

	written, err := c.writeSquashed(id, image, touched)
	if err != nil {
		return st, err
	}
	st.RecordsAfter = written

	var errs []error
	for k := uint32(1); k < id; k++ {
		if err := c.truncate(storage.BinName(k)); err != nil {
			errs = append(errs, err)
		}
		for _, name := range []string{storage.SnapName(k), storage.MetaName(k)} {
			if _, err := c.store.Stat(name); err != nil {
				continue
			}
			if err := c.store.Remove(name); err != nil {
				errs = append(errs, err)
				continue
			}
			st.Removed++
		}
	}
	if len(errs) > 0 {
		return st, fmt.Errorf("difflog: failed to clean %d artifacts: %w", len(errs), errors.Join(errs...))
	}

	c.logger.Info("diff log chain compacted",
		"snapshot_id", id,
		"logs", st.Logs,
		"records_before", st.RecordsBefore,
		"records_after", st.RecordsAfter,
		"removed", st.Removed)

	return st, nil
}

// fold applies log k to a growable image.
func (c *Compactor) fold(k uint32, image *[]byte, touched *[]bool) (uint64, error) {
	rc, err := c.store.Open(storage.BinName(k))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var n uint64
	err = Scan(archive.NewBinaryReader(rc), func(rec Record) error {
		n++
		if rec.Offset >= uint64(len(*image)) {
			grow := rec.Offset + 1 - uint64(len(*image))
			*image = append(*image, make([]byte, grow)...)
			*touched = append(*touched, make([]bool, grow)...)
		}
		(*image)[rec.Offset] = rec.Value
		(*touched)[rec.Offset] = true
		return nil
	})
	return n, err
}

func (c *Compactor) writeSquashed(id uint32, image []byte, touched []bool) (uint64, error) {
	wc, err := c.store.Create(storage.BinName(id))
	if err != nil {
		return 0, err
	}

	w := archive.NewBinaryWriter(wc)
	var n uint64
	for off, hit := range touched {
		if !hit {
			continue
		}
		if err := w.WriteUint64(uint64(off)); err != nil {
			wc.Close()
			return 0, err
		}
		if err := w.WriteUint8(image[off]); err != nil {
			wc.Close()
			return 0, err
		}
		n++
	}
	if err := w.Flush(); err != nil {
		wc.Close()
		return 0, err
	}
	if err := wc.Close(); err != nil {
		return 0, fmt.Errorf("difflog: write %s: %w", storage.BinName(id), err)
	}
	return n, nil
}

func (c *Compactor) truncate(name string) error {
	wc, err := c.store.Create(name)
	if err != nil {
		return fmt.Errorf("truncate %s: %w", name, err)
	}
	return wc.Close()
}

// TotalSize returns the total size of all diff logs in bytes.
func (c *Compactor) TotalSize() (int64, error) {
	infos, err := c.store.List()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, info := range infos {
		if _, kind, ok := storage.ParseArtifact(info.Name); ok && kind == storage.KindBin {
			total += info.Size
		}
	}
	return total, nil
}

// NeedsCompaction returns true if the total diff log size exceeds threshold.
func (c *Compactor) NeedsCompaction(threshold int64) bool {
	total, _ := c.TotalSize()
	return total > threshold
}
