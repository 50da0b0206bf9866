package config

// Config is the root wasmsnap configuration.
type Config struct {
	Snapshot SnapshotSection `koanf:"snapshot" json:"snapshot" yaml:"snapshot"`
	Storage  StorageSection  `koanf:"storage" json:"storage" yaml:"storage"`
	Bundle   BundleSection   `koanf:"bundle" json:"bundle" yaml:"bundle"`
	Log      LogSection      `koanf:"log" json:"log" yaml:"log"`
	Metrics  MetricsSection  `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// SnapshotSection configures the snapshot manager.
type SnapshotSection struct {
	// Strategy is "difflog" or "rle".
	Strategy string `koanf:"strategy" json:"strategy" yaml:"strategy"`

	// InputDir and OutputDir default to storage.dir when empty.
	InputDir  string `koanf:"input_dir" json:"input_dir" yaml:"input_dir"`
	OutputDir string `koanf:"output_dir" json:"output_dir" yaml:"output_dir"`

	ID              uint32 `koanf:"id" json:"id" yaml:"id"`
	PageSize        uint64 `koanf:"page_size" json:"page_size" yaml:"page_size"`
	ZipFactor       int64  `koanf:"zip_factor" json:"zip_factor" yaml:"zip_factor"`
	SparseFirstSave bool   `koanf:"sparse_first_save" json:"sparse_first_save" yaml:"sparse_first_save"`
	VerifyModule    bool   `koanf:"verify_module" json:"verify_module" yaml:"verify_module"`

	// CompactThreshold is the total diff log size in bytes above which
	// `wasmsnap compact` without an id compacts the newest snapshot.
	CompactThreshold int64 `koanf:"compact_threshold" json:"compact_threshold" yaml:"compact_threshold"`
}

// StorageSection configures the artifact store.
type StorageSection struct {
	// Backend is "file" or "badger".
	Backend string `koanf:"backend" json:"backend" yaml:"backend"`
	Dir     string `koanf:"dir" json:"dir" yaml:"dir"`

	BadgerGCInterval       string  `koanf:"badger_gc_interval" json:"badger_gc_interval" yaml:"badger_gc_interval"`
	BadgerGCThreshold      float64 `koanf:"badger_gc_threshold" json:"badger_gc_threshold" yaml:"badger_gc_threshold"`
	BadgerCacheSize        int64   `koanf:"badger_cache_size" json:"badger_cache_size" yaml:"badger_cache_size"`
	BadgerValueLogFileSize int64   `koanf:"badger_value_log_file_size" json:"badger_value_log_file_size" yaml:"badger_value_log_file_size"`
	BadgerSyncWrites       bool    `koanf:"badger_sync_writes" json:"badger_sync_writes" yaml:"badger_sync_writes"`
}

// BundleSection configures bundle export and import.
type BundleSection struct {
	// Passphrase seals exported bundles when set.
	Passphrase string `koanf:"passphrase" json:"passphrase" yaml:"passphrase"`

	// Cipher is "auto", "aes-gcm" or "chacha20-poly1305".
	Cipher string `koanf:"cipher" json:"cipher" yaml:"cipher"`

	// Level is the zstd level: fastest, default, better or best.
	Level string `koanf:"level" json:"level" yaml:"level"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// MetricsSection configures metrics output.
type MetricsSection struct {
	// TextFile is written with the final metric values on exit when set.
	TextFile string `koanf:"textfile" json:"textfile" yaml:"textfile"`
}
