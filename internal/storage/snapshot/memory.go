package snapshot

import (
	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage/difflog"
	"github.com/yndnr/wasmsnap-go/internal/storage/rle"
)

// Strategy names a memory persistence strategy.
type Strategy string

const (
	StrategyDiffLog Strategy = "difflog"
	StrategyRLE     Strategy = "rle"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyDiffLog, StrategyRLE:
		return Strategy(s), nil
	default:
		return "", domain.ErrInvalidConfig.WithDetailsf("unknown strategy %q", s)
	}
}

// MemoryStats describes the memory section of one snapshot.
type MemoryStats struct {
	// Bytes is the size of the memory image; 0 when the module had none.
	Bytes uint64         `json:"bytes" yaml:"bytes"`
	Diff  *difflog.Stats `json:"diff,omitempty" yaml:"diff,omitempty"`
	RLE   *rle.Stats     `json:"rle,omitempty" yaml:"rle,omitempty"`
}

// MemoryPersistence writes and reads the memory section of a snapshot.
//
// Decode only produces the image. The manager applies it to the module once
// every other section decoded cleanly, then hands it to Adopt.
type MemoryPersistence interface {
	Strategy() Strategy
	Encode(sess *session, mem instance.Memory) (MemoryStats, error)
	// Decode returns nil when the snapshot holds no memory.
	Decode(sess *session) ([]byte, MemoryStats, error)
	// Adopt is called with the image of a successful load or of a committed
	// save, and may keep it.
	Adopt(image []byte)
}

func newPersistence(cfg Config) MemoryPersistence {
	if cfg.Strategy == StrategyRLE {
		return NewRLEPersistence(cfg.ZipFactor)
	}
	return NewDiffLogPersistence(cfg.SparseFirstSave)
}

func checkImageSize(n uint64) error {
	if n > rle.MaxImageSize {
		return domain.ErrFormatCorruption.WithDetailsf("memory size %d exceeds %d", n, uint64(rle.MaxImageSize))
	}
	return nil
}

// applyImage makes the module's memory equal to image, creating or growing
// it to whole pages first. Bytes past the image are zeroed.
func applyImage(mod instance.Module, image []byte, pageSize uint64) error {
	if image == nil {
		return nil
	}

	n := uint64(len(image))
	mem := mod.Memory()
	if mem == nil {
		pages := instance.PagesFor(n, pageSize)
		if pages > uint64(^uint32(0)) {
			return domain.ErrFormatCorruption.WithDetailsf("memory of %d bytes needs %d pages", n, pages)
		}
		var err error
		if mem, err = mod.AddMemory(pageSize, uint32(pages)); err != nil {
			return domain.ErrModuleMismatch.WithDetails("create memory").Wrap(err)
		}
	} else if err := instance.EnsureSize(mem, n); err != nil {
		return domain.ErrModuleMismatch.WithDetails("grow memory").Wrap(err)
	}

	data := mem.Data()
	if uint64(len(data)) < n {
		return domain.ErrModuleMismatch.WithDetailsf("memory holds %d bytes after growth, need %d", len(data), n)
	}
	copied := copy(data, image)
	clear(data[copied:])
	return nil
}
