package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
)

const tmpSuffix = ".tmp"

// FileStore keeps one file per artifact in a directory.
type FileStore struct {
	dir    string
	closed atomic.Bool
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: dir is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Create writes to <name>.tmp and renames it over <name> on Close.
func (s *FileStore) Create(name string) (io.WriteCloser, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	final, err := s.path(name)
	if err != nil {
		return nil, err
	}
	tmp := final + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", name, err)
	}
	return &atomicFile{File: f, tmp: tmp, final: final}, nil
}

func (s *FileStore) Open(name string) (io.ReadCloser, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("storage: open %s: %w", name, err)
	}
	return f, nil
}

func (s *FileStore) Stat(name string) (Info, error) {
	p, err := s.path(name)
	if err != nil {
		return Info{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Info{}, err
	}
	return Info{Name: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (s *FileStore) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: e.Name(), Size: st.Size(), ModTime: st.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *FileStore) Remove(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}

// atomicFile syncs and renames its temporary file into place on Close.
type atomicFile struct {
	*os.File
	tmp   string
	final string
}

func (f *atomicFile) Close() error {
	if err := f.File.Sync(); err != nil {
		f.File.Close()
		os.Remove(f.tmp)
		return fmt.Errorf("storage: sync: %w", err)
	}
	if err := f.File.Close(); err != nil {
		os.Remove(f.tmp)
		return fmt.Errorf("storage: close: %w", err)
	}
	if err := os.Rename(f.tmp, f.final); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}
