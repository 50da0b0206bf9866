package config

import (
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/bundle"
	"github.com/yndnr/wasmsnap-go/internal/storage/snapshot"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/logger"
	"github.com/yndnr/wasmsnap-go/pkg/crypto/adaptive"
)

// SnapshotConfig returns the snapshot manager configuration.
func (c *Config) SnapshotConfig() snapshot.Config {
	in, out := c.Snapshot.InputDir, c.Snapshot.OutputDir
	if in == "" {
		in = c.Storage.Dir
	}
	if out == "" {
		out = c.Storage.Dir
	}
	return snapshot.Config{
		InputDir:        in,
		OutputDir:       out,
		SnapshotID:      c.Snapshot.ID,
		PageSize:        c.Snapshot.PageSize,
		ZipFactor:       c.Snapshot.ZipFactor,
		SparseFirstSave: c.Snapshot.SparseFirstSave,
		Strategy:        snapshot.Strategy(c.Snapshot.Strategy),
		VerifyModule:    c.Snapshot.VerifyModule,
	}
}

// StorageConfig returns the artifact store configuration.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Backend: c.Storage.Backend,
		Dir:     c.Storage.Dir,
		Badger: storage.BadgerConfig{
			GCInterval:       c.Storage.BadgerGCInterval,
			GCThreshold:      c.Storage.BadgerGCThreshold,
			CacheSize:        c.Storage.BadgerCacheSize,
			ValueLogFileSize: c.Storage.BadgerValueLogFileSize,
			SyncWrites:       c.Storage.BadgerSyncWrites,
		},
	}
}

// BundleOptions returns the bundle options. Level falls back to the zstd
// default when invalid; Verify reports that case.
func (c *Config) BundleOptions() bundle.Options {
	opts := bundle.Options{Cipher: adaptive.CipherType(c.Bundle.Cipher)}
	if c.Bundle.Cipher == "auto" {
		opts.Cipher = ""
	}
	if c.Bundle.Passphrase != "" {
		opts.Passphrase = []byte(c.Bundle.Passphrase)
	}
	opts.Level, _ = BundleLevel(c.Bundle.Level)
	return opts
}

// LoggerConfig returns the logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}
