package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage"
)

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// Manifest describes one committed snapshot. It is stored as <id>.meta.
type Manifest struct {
	Version  int      `json:"version" yaml:"version"`
	ID       uint32   `json:"id" yaml:"id"`
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	// ChainID is shared by every snapshot of one write chain.
	ChainID string `json:"chain_id" yaml:"chain_id"`
	// CreatedAt is the commit time in Unix milliseconds.
	CreatedAt int64 `json:"created_at" yaml:"created_at"`

	ModuleFingerprint string `json:"module_fingerprint" yaml:"module_fingerprint"`
	Functions         int    `json:"functions" yaml:"functions"`
	Globals           int    `json:"globals" yaml:"globals"`

	Values    int                   `json:"values" yaml:"values"`
	Frames    uint32                `json:"frames" yaml:"frames"`
	PC        domain.ProgramCounter `json:"pc" yaml:"pc"`
	Truncated int                   `json:"truncated,omitempty" yaml:"truncated,omitempty"`

	Memory        MemoryStats      `json:"memory" yaml:"memory"`
	ArtifactBytes map[string]int64 `json:"artifact_bytes,omitempty" yaml:"artifact_bytes,omitempty"`
}

// Created returns CreatedAt as a time.
func (m *Manifest) Created() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

func fingerprint(mod instance.Module) string {
	return fmt.Sprintf("%016x", instance.Fingerprint(mod))
}

func writeManifest(store storage.Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	w, err := store.Create(storage.MetaName(m.ID))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadManifest reads <id>.meta. A missing manifest yields an error matching
// storage.ErrNotFound.
func ReadManifest(store storage.Store, id uint32) (*Manifest, error) {
	name := storage.MetaName(id)
	rc, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, domain.ErrFormatCorruption.WithDetails(name).Wrap(err)
	}
	if m.Version != ManifestVersion {
		return nil, domain.ErrFormatCorruption.WithDetailsf("%s: unsupported version %d", name, m.Version)
	}
	if m.ID != id {
		return nil, domain.ErrFormatCorruption.WithDetailsf("%s: records id %d", name, m.ID)
	}
	return &m, nil
}

// checkModule reports ErrModuleMismatch when mod is not the module the
// snapshot was taken from.
func (m *Manifest) checkModule(mod instance.Module) error {
	if fp := fingerprint(mod); fp != m.ModuleFingerprint {
		return domain.ErrModuleMismatch.
			WithDetailsf("fingerprint %s, snapshot %d was taken from %s", fp, m.ID, m.ModuleFingerprint)
	}
	if n := len(mod.Functions()); n != m.Functions {
		return domain.ErrModuleMismatch.WithDetailsf("module has %d functions, snapshot %d", n, m.Functions)
	}
	if n := len(mod.Globals()); n != m.Globals {
		return domain.ErrModuleMismatch.WithDetailsf("module has %d globals, snapshot %d", n, m.Globals)
	}
	return nil
}

// checkChain verifies that every surviving manifest before m belongs to the
// same write chain. Missing manifests are skipped.
func checkChain(store storage.Store, m *Manifest) error {
	if m.Strategy != StrategyDiffLog || m.ChainID == "" {
		return nil
	}
	for k := uint32(1); k < m.ID; k++ {
		prev, err := ReadManifest(store, k)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return classify(err, storage.MetaName(k))
		}
		if prev.ChainID != m.ChainID {
			return domain.ErrFormatCorruption.
				WithDetailsf("snapshot %d belongs to chain %s, snapshot %d to %s", k, prev.ChainID, m.ID, m.ChainID)
		}
	}
	return nil
}
