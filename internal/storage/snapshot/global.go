package snapshot

import (
	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
)

// EncodeGlobals writes the global count then each value in declaration
// order.
func EncodeGlobals(w archive.Writer, globals []*instance.Global) error {
	if err := w.WriteUint64(uint64(len(globals))); err != nil {
		return err
	}
	for _, g := range globals {
		if err := w.WriteUint64(g.Value.Uint64()); err != nil {
			return err
		}
	}
	return nil
}

// DecodeGlobals reads the values written by EncodeGlobals.
func DecodeGlobals(r archive.Reader) ([]domain.Value, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, classify(err, "global count")
	}
	values := make([]domain.Value, 0, min(n, maxPrealloc))
	for i := uint64(0); i < n; i++ {
		u, err := r.ReadUint64()
		if err != nil {
			return nil, classify(err, "globals")
		}
		values = append(values, domain.ValueOf(u))
	}
	return values, nil
}

func checkGlobals(mod instance.Module, values []domain.Value) error {
	if have := len(mod.Globals()); have != len(values) {
		return domain.ErrModuleMismatch.
			WithDetailsf("snapshot has %d globals, module has %d", len(values), have)
	}
	return nil
}

// ApplyGlobals writes values positionally into the module's global table.
// Nothing is written when the counts differ.
func ApplyGlobals(mod instance.Module, values []domain.Value) error {
	if err := checkGlobals(mod, values); err != nil {
		return err
	}
	for i, g := range mod.Globals() {
		g.Value = values[i]
	}
	return nil
}
