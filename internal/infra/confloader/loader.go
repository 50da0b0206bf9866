package confloader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "WASMSNAP_"

// Loader merges configuration sources into one koanf tree.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file read by Load. An empty path skips it.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the config file, the environment and overrides, in increasing
// priority, and unmarshals the result over target. Fields of target that no
// source sets keep their value, so target carries the defaults.
//
// overrides is a nested map keyed like the YAML file, e.g.
// {"storage": {"dir": "/data"}}.
func (l *Loader) Load(target any, overrides map[string]any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if len(overrides) > 0 {
		if err := l.LoadMap(overrides); err != nil {
			return err
		}
	}
	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges prefixed environment variables. The first underscore after
// the prefix separates the section from the key, so keys may themselves
// contain underscores: WASMSNAP_SNAPSHOT_ZIP_FACTOR=32 sets
// snapshot.zip_factor.
func (l *Loader) LoadEnv() error {
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + key
}

// LoadMap merges a nested map.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal decodes the merged tree into target using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// String returns the merged value at a dotted key.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// Keys returns the dotted keys set by any source.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

// mapProvider is a koanf.Provider over an in-memory map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: map provider has no byte form")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
