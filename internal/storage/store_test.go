package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, s Store, name, data string) {
	t.Helper()
	w, err := s.Create(name)
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatalf("Write(%s): %v", name, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close(%s): %v", name, err)
	}
}

func readArtifact(t *testing.T, s Store, name string) string {
	t.Helper()
	r, err := s.Open(name)
	if err != nil {
		t.Fatalf("Open(%s): %v", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll(%s): %v", name, err)
	}
	return string(data)
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	cfg := DefaultConfig("")
	cfg.Badger.InMemory = true
	bs, err := NewBadgerStore(cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}

	t.Cleanup(func() {
		fs.Close()
		bs.Close()
	})
	return map[string]Store{"file": fs, "badger": bs}
}

func TestStore_Contract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			writeArtifact(t, s, "1.snap", "2 1 2")
			writeArtifact(t, s, "1.bin", "")
			writeArtifact(t, s, "2.snap", "0")

			if got := readArtifact(t, s, "1.snap"); got != "2 1 2" {
				t.Errorf("1.snap = %q", got)
			}
			if got := readArtifact(t, s, "1.bin"); got != "" {
				t.Errorf("1.bin = %q, want empty", got)
			}

			info, err := s.Stat("1.snap")
			if err != nil {
				t.Fatalf("Stat: %v", err)
			}
			if info.Size != 5 || info.ModTime.IsZero() {
				t.Errorf("Stat() = %+v", info)
			}

			infos, err := s.List()
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var names []string
			for _, i := range infos {
				names = append(names, i.Name)
			}
			want := []string{"1.bin", "1.snap", "2.snap"}
			if len(names) != len(want) {
				t.Fatalf("List() = %v, want %v", names, want)
			}
			for i := range want {
				if names[i] != want[i] {
					t.Errorf("List()[%d] = %s, want %s", i, names[i], want[i])
				}
			}

			// Overwrite replaces content.
			writeArtifact(t, s, "2.snap", "1 7")
			if got := readArtifact(t, s, "2.snap"); got != "1 7" {
				t.Errorf("overwritten 2.snap = %q", got)
			}

			if err := s.Remove("2.snap"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if err := s.Remove("2.snap"); err != nil {
				t.Errorf("removing a missing artifact should succeed, got %v", err)
			}
			if _, err := s.Open("2.snap"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Open after Remove error = %v, want ErrNotFound", err)
			}
			if _, err := s.Stat("9.meta"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Stat missing error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_UnclosedWriterLeavesNothing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			w, err := s.Create("5.snap")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			io.WriteString(w, "partial")

			if _, err := s.Open("5.snap"); !errors.Is(err, ErrNotFound) {
				t.Errorf("artifact visible before Close: %v", err)
			}
			w.Close()
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s.Close()
			if _, err := s.Create("1.snap"); !errors.Is(err, ErrClosed) {
				t.Errorf("Create on closed store error = %v, want ErrClosed", err)
			}
		})
	}
}

func TestFileStore_AtomicRename(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	w, err := s.Create("3.bin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "3.bin.tmp")); err != nil {
		t.Errorf("temporary file should exist while writing: %v", err)
	}
	w.Write([]byte{1, 2, 3})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "3.bin.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file should be gone after Close")
	}

	infos, err := s.List()
	if err != nil || len(infos) != 1 || infos[0].Name != "3.bin" {
		t.Errorf("List() = %v, %v", infos, err)
	}
}

func TestFileStore_RejectsPaths(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, name := range []string{"", "..", "../1.snap", "a/b"} {
		if _, err := s.Create(name); err == nil {
			t.Errorf("Create(%q) should fail", name)
		}
	}
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Backend = BackendBadger
	cfg.Badger.GCInterval = "1h"

	s, err := Open(cfg, slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	writeArtifact(t, s, "1.snap", "persisted")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(cfg, slog.Default())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got := readArtifact(t, s, "1.snap"); got != "persisted" {
		t.Errorf("after reopen = %q", got)
	}
}

func TestBadgerStore_GC(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Badger.GCInterval = "1h"
	s, err := NewBadgerStore(cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	defer s.Close()

	if !s.LastGC().IsZero() {
		t.Fatal("LastGC before any run should be zero")
	}
	writeArtifact(t, s, "1.bin", "diff")
	if _, err := s.GC(context.Background()); err != nil {
		t.Fatalf("GC: %v", err)
	}
	if s.LastGC().IsZero() {
		t.Error("LastGC not recorded")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Backend = "s3"
	if _, err := Open(cfg, nil); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestParseArtifact(t *testing.T) {
	tests := []struct {
		name   string
		id     uint32
		kind   Kind
		wantOK bool
	}{
		{"1.snap", 1, KindSnap, true},
		{"42.bin", 42, KindBin, true},
		{"7.meta", 7, KindMeta, true},
		{"7.snap.tmp", 0, "", false},
		{"x.snap", 0, "", false},
		{"snapshot", 0, "", false},
		{"-1.bin", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, kind, ok := ParseArtifact(tt.name)
			if ok != tt.wantOK || id != tt.id || kind != tt.kind {
				t.Errorf("ParseArtifact(%q) = %d, %q, %v", tt.name, id, kind, ok)
			}
		})
	}

	if SnapName(3) != "3.snap" || BinName(3) != "3.bin" || MetaName(3) != "3.meta" {
		t.Error("artifact names do not follow <id>.<kind>")
	}
}

func TestSnapshotIDs(t *testing.T) {
	infos := []Info{{Name: "10.snap"}, {Name: "2.bin"}, {Name: "2.snap"}, {Name: "9.snap"}, {Name: "notes.txt"}}
	ids := SnapshotIDs(infos)
	want := []uint32{2, 9, 10}
	if len(ids) != len(want) {
		t.Fatalf("SnapshotIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("SnapshotIDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}
