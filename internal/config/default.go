package config

// Default configuration values.
const (
	DefaultStrategy         = "difflog"
	DefaultPageSize         = 65536
	DefaultZipFactor        = 16
	DefaultCompactThreshold = 64 << 20

	DefaultBackend = "file"
	DefaultDir     = "./snapshots"

	DefaultBadgerGCInterval       = "10m"
	DefaultBadgerGCThreshold      = 0.5
	DefaultBadgerCacheSize        = 64 << 20
	DefaultBadgerValueLogFileSize = 256 << 20

	DefaultCipher      = "auto"
	DefaultBundleLevel = "default"

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Snapshot: SnapshotSection{
			Strategy:         DefaultStrategy,
			ID:               1,
			PageSize:         DefaultPageSize,
			ZipFactor:        DefaultZipFactor,
			SparseFirstSave:  true,
			VerifyModule:     true,
			CompactThreshold: DefaultCompactThreshold,
		},
		Storage: StorageSection{
			Backend:                DefaultBackend,
			Dir:                    DefaultDir,
			BadgerGCInterval:       DefaultBadgerGCInterval,
			BadgerGCThreshold:      DefaultBadgerGCThreshold,
			BadgerCacheSize:        DefaultBadgerCacheSize,
			BadgerValueLogFileSize: DefaultBadgerValueLogFileSize,
			BadgerSyncWrites:       true,
		},
		Bundle: BundleSection{
			Cipher: DefaultCipher,
			Level:  DefaultBundleLevel,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
