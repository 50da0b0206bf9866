package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/snapshot"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/logger"
	"github.com/yndnr/wasmsnap-go/pkg/crypto/adaptive"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	return errors.Join(
		verifySnapshot(&cfg.Snapshot),
		verifyStorage(&cfg.Storage),
		verifyBundle(&cfg.Bundle),
		verifyLog(&cfg.Log),
	)
}

func verifySnapshot(cfg *SnapshotSection) error {
	if _, err := snapshot.ParseStrategy(cfg.Strategy); err != nil {
		return fmt.Errorf("snapshot.strategy: %w", err)
	}
	if cfg.ID == 0 {
		return errors.New("snapshot.id must be at least 1")
	}
	if cfg.PageSize == 0 {
		return errors.New("snapshot.page_size must be positive")
	}
	if cfg.ZipFactor < 1 {
		return errors.New("snapshot.zip_factor must be at least 1")
	}
	if cfg.CompactThreshold < 0 {
		return errors.New("snapshot.compact_threshold must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case storage.BackendFile, storage.BackendBadger:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", cfg.Backend)
	}
	if cfg.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if cfg.Backend == storage.BackendBadger {
		if _, err := time.ParseDuration(cfg.BadgerGCInterval); err != nil {
			return fmt.Errorf("storage.badger_gc_interval: %w", err)
		}
		if cfg.BadgerGCThreshold <= 0 || cfg.BadgerGCThreshold >= 1 {
			return errors.New("storage.badger_gc_threshold must be between 0 and 1")
		}
	}
	return nil
}

func verifyBundle(cfg *BundleSection) error {
	if _, err := adaptive.ParseCipherType(cfg.Cipher); err != nil {
		return fmt.Errorf("bundle.cipher: %w", err)
	}
	if cfg.Passphrase != "" && len(cfg.Passphrase) < adaptive.MinPassphraseLength {
		return fmt.Errorf("bundle.passphrase: %w", adaptive.ErrPassphraseTooWeak)
	}
	if _, err := BundleLevel(cfg.Level); err != nil {
		return err
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil || cfg.Level == "" {
		return fmt.Errorf("log.level: unknown level %q", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return nil
}

// BundleLevel maps a level name to a zstd encoder level.
func BundleLevel(name string) (zstd.EncoderLevel, error) {
	if name == "" {
		return zstd.SpeedDefault, nil
	}
	ok, level := zstd.EncoderLevelFromString(name)
	if !ok {
		return 0, fmt.Errorf("bundle.level: unknown level %q", name)
	}
	return level, nil
}
