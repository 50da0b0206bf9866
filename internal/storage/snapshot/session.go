package snapshot

import (
	"errors"
	"io"

	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
)

// Mode is the direction of an open session.
type Mode int

const (
	// ModeNone means no session is open.
	ModeNone Mode = iota
	ModeWrite
	ModeRead
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeRead:
		return "read"
	default:
		return "none"
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type counted struct {
	kind storage.Kind
	w    *countingWriter
}

// session tracks every handle opened between Open and Close.
type session struct {
	mode     Mode
	id       uint32
	strategy Strategy
	store    storage.Store

	w archive.Writer
	r archive.Reader

	handles []io.Closer
	counts  []counted

	// pending is written once every handle closed cleanly.
	pending *Manifest
	// baseline is the image a Diff Log save encoded against the previous
	// one. Close hands it to the persistence after pending is written.
	baseline []byte
	staged   bool
}

func newArchiveWriter(strategy Strategy, w io.Writer) archive.Writer {
	if strategy == StrategyRLE {
		return archive.NewBinaryWriter(w)
	}
	return archive.NewTextWriter(w)
}

func newArchiveReader(strategy Strategy, r io.Reader) archive.Reader {
	if strategy == StrategyRLE {
		return archive.NewBinaryReader(r)
	}
	return archive.NewTextReader(r)
}

// openWrite creates <id>.snap in store.
func openWrite(store storage.Store, id uint32, strategy Strategy) (*session, error) {
	s := &session{mode: ModeWrite, id: id, strategy: strategy, store: store}
	w, err := s.create(storage.SnapName(id), storage.KindSnap)
	if err != nil {
		return nil, err
	}
	s.w = newArchiveWriter(strategy, w)
	return s, nil
}

// openRead opens <id>.snap in store.
func openRead(store storage.Store, id uint32, strategy Strategy) (*session, error) {
	s := &session{mode: ModeRead, id: id, strategy: strategy, store: store}
	name := storage.SnapName(id)
	rc, err := store.Open(name)
	if err != nil {
		return nil, classify(err, name)
	}
	s.handles = append(s.handles, rc)
	s.r = newArchiveReader(strategy, rc)
	return s, nil
}

func (s *session) create(name string, kind storage.Kind) (io.Writer, error) {
	wc, err := s.store.Create(name)
	if err != nil {
		return nil, classify(err, name)
	}
	cw := &countingWriter{w: wc}
	s.handles = append(s.handles, wc)
	s.counts = append(s.counts, counted{kind: kind, w: cw})
	return cw, nil
}

// read opens name, hands it to fn and closes it again.
func (s *session) read(name string, fn func(io.Reader) error) error {
	rc, err := s.store.Open(name)
	if err != nil {
		return classify(err, name)
	}
	err = fn(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	return classify(err, name)
}

// written returns the bytes written per artifact kind.
func (s *session) written() map[string]int64 {
	if len(s.counts) == 0 {
		return nil
	}
	out := make(map[string]int64, len(s.counts))
	for _, c := range s.counts {
		out[string(c.kind)] += c.w.n
	}
	return out
}

func (s *session) close() error {
	var errs []error
	for _, h := range s.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.handles = nil
	return errors.Join(errs...)
}
