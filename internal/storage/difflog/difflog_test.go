package difflog

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
)

func encode(t *testing.T, cur, prev []byte, sparse bool) ([]byte, Stats) {
	t.Helper()
	var buf bytes.Buffer
	st, err := Encode(archive.NewBinaryWriter(&buf), cur, prev, sparse)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes(), st
}

func replay(t *testing.T, log, image []byte) Stats {
	t.Helper()
	st, err := Replay(archive.NewBinaryReader(bytes.NewReader(log)), image)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return st
}

func TestEncode_SparseFirstSave(t *testing.T) {
	tests := []struct {
		name    string
		image   []byte
		sparse  bool
		records uint64
	}{
		{"all zero sparse", make([]byte, 64), true, 0},
		{"all zero dense", make([]byte, 64), false, 64},
		{"two non-zero sparse", []byte{0, 5, 0, 0, 9}, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, st := encode(t, tt.image, nil, tt.sparse)
			if st.Records != tt.records {
				t.Errorf("Records = %d, want %d", st.Records, tt.records)
			}
			if uint64(len(log)) != tt.records*RecordSize {
				t.Errorf("log length = %d, want %d", len(log), tt.records*RecordSize)
			}
		})
	}
}

func TestEncode_WireFormat(t *testing.T) {
	log, _ := encode(t, []byte{0, 0, 0x7F}, nil, true)
	want := []byte{2, 0, 0, 0, 0, 0, 0, 0, 0x7F}
	if !bytes.Equal(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestEncode_GrowthComparesAgainstZero(t *testing.T) {
	prev := []byte{1, 2}
	cur := []byte{1, 3, 0, 0, 4}

	log, st := encode(t, cur, prev, true)
	if st.Records != 2 {
		t.Fatalf("Records = %d, want 2 (offset 1 changed, offset 4 non-zero)", st.Records)
	}

	recs, err := ReadAll(bytes.NewReader(log))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if recs[0] != (Record{Offset: 1, Value: 3}) || recs[1] != (Record{Offset: 4, Value: 4}) {
		t.Errorf("records = %+v", recs)
	}
}

func TestReplay_CumulativeChain(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const size = 4096

	images := make([][]byte, 8)
	cur := make([]byte, size)
	for k := range images {
		for n := 0; n < 200; n++ {
			cur[rng.Intn(size)] = byte(rng.Intn(4)) // small alphabet so bytes return to zero
		}
		images[k] = append([]byte(nil), cur...)
	}

	var logs [][]byte
	var prev []byte
	for _, img := range images {
		log, _ := encode(t, img, prev, true)
		logs = append(logs, log)
		prev = img
	}

	for k := range images {
		image := make([]byte, size)
		for _, log := range logs[:k+1] {
			replay(t, log, image)
		}
		if !bytes.Equal(image, images[k]) {
			t.Fatalf("replay of logs 1..%d does not reproduce image %d", k+1, k+1)
		}
	}
}

func TestReplay_OutOfBounds(t *testing.T) {
	log, _ := encode(t, []byte{0, 0, 0, 0, 9}, nil, true)
	image := make([]byte, 2)

	st := replay(t, log, image)
	if st.Records != 1 || st.Skipped != 1 {
		t.Errorf("Stats = %+v, want 1 record skipped", st)
	}
}

func TestReplay_Truncated(t *testing.T) {
	log, _ := encode(t, []byte{1, 2}, nil, true)

	for _, cut := range []int{1, RecordSize - 1, RecordSize + 4} {
		_, err := Replay(archive.NewBinaryReader(bytes.NewReader(log[:cut])), make([]byte, 2))
		if !errors.Is(err, ErrTruncatedRecord) {
			t.Errorf("cut at %d: error = %v, want ErrTruncatedRecord", cut, err)
		}
	}
}

func putLog(t *testing.T, s storage.Store, name string, log []byte) {
	t.Helper()
	w, err := s.Create(name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w.Write(log)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func replayChain(t *testing.T, s storage.Store, n uint32, size int) []byte {
	t.Helper()
	image := make([]byte, size)
	for k := uint32(1); k <= n; k++ {
		rc, err := s.Open(storage.BinName(k))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := Replay(archive.NewBinaryReader(rc), image); err != nil {
			t.Fatalf("Replay %d: %v", k, err)
		}
		rc.Close()
	}
	return image
}

func TestCompactor_Compact(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	images := [][]byte{
		{0, 7, 0, 0},
		{0, 0, 3, 0},       // offset 1 back to zero
		{5, 0, 3, 0, 0, 1}, // growth
		{5, 0, 4, 0, 0, 1},
	}
	var prev []byte
	for i, img := range images {
		log, _ := encode(t, img, prev, true)
		id := uint32(i + 1)
		putLog(t, s, storage.BinName(id), log)
		putLog(t, s, storage.SnapName(id), []byte("x"))
		prev = img
	}

	st, err := NewCompactor(s).Compact(3)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if st.Logs != 3 || st.Removed != 2 {
		t.Errorf("CompactStats = %+v", st)
	}

	for _, id := range []uint32{1, 2} {
		if _, err := s.Stat(storage.SnapName(id)); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("%s should be removed", storage.SnapName(id))
		}
		info, err := s.Stat(storage.BinName(id))
		if err != nil || info.Size != 0 {
			t.Errorf("%s should be an empty log, got %+v, %v", storage.BinName(id), info, err)
		}
	}

	for _, id := range []uint32{3, 4} {
		got := replayChain(t, s, id, 6)
		want := make([]byte, 6)
		copy(want, images[id-1])
		if !bytes.Equal(got, want) {
			t.Errorf("snapshot %d after compaction = %v, want %v", id, got, want)
		}
	}
}

func TestCompactor_SquashedLogIsSelfContained(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	first, _ := encode(t, []byte{9, 9}, nil, true)
	second, _ := encode(t, []byte{0, 9}, []byte{9, 9}, true)
	putLog(t, s, storage.BinName(1), first)
	putLog(t, s, storage.BinName(2), second)

	if _, err := NewCompactor(s).Compact(2); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	// Replaying the original first log and then the squashed one, as happens
	// when a crash interrupts cleanup, must still zero offset 0.
	image := make([]byte, 2)
	replay(t, first, image)
	rc, err := s.Open(storage.BinName(2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	squashed, _ := io.ReadAll(rc)
	replay(t, squashed, image)

	if !bytes.Equal(image, []byte{0, 9}) {
		t.Errorf("image = %v, want [0 9]", image)
	}
}

func TestCompactor_TotalSize(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	putLog(t, s, storage.BinName(1), make([]byte, 18))
	putLog(t, s, storage.SnapName(1), make([]byte, 100))

	c := NewCompactor(s)
	total, err := c.TotalSize()
	if err != nil || total != 18 {
		t.Errorf("TotalSize() = %d, %v; want 18", total, err)
	}
	if !c.NeedsCompaction(10) || c.NeedsCompaction(18) {
		t.Error("NeedsCompaction threshold is exclusive")
	}
}
