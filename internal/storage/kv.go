package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Common errors
var (
	ErrNotFound = errors.New("storage: artifact not found")
	ErrClosed   = errors.New("storage: store closed")
)

// Info describes one stored artifact.
type Info struct {
	Name    string    `json:"name" yaml:"name"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// Store holds snapshot artifacts by name.
//
// Writes become visible when the writer returned by Create is closed. A
// writer that is never closed leaves no artifact behind.
type Store interface {
	Create(name string) (io.WriteCloser, error)
	// Open returns ErrNotFound if the artifact does not exist.
	Open(name string) (io.ReadCloser, error)
	Stat(name string) (Info, error)
	// List returns every artifact sorted by name.
	List() ([]Info, error)
	// Remove deletes an artifact. Removing a missing artifact is not an error.
	Remove(name string) error
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	// Backend is "file" or "badger".
	// Default: "file"
	Backend string

	// Dir is the storage directory.
	Dir string

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// SyncWrites enables sync writes (fsync after each write).
	// Default: true
	SyncWrites bool

	// InMemory keeps everything in memory. Dir is ignored.
	InMemory bool
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Backend: BackendFile,
		Dir:     dir,
		Badger:  DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        64 << 20,  // 64MB
		ValueLogFileSize: 256 << 20, // 256MB
		SyncWrites:       true,
	}
}

// Open opens the backend named by cfg.Backend.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendBadger:
		return NewBadgerStore(cfg, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
