package bundle

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/pkg/crypto/adaptive"
)

// Magic opens every bundle.
const Magic = "WSNBNDL1"

const flagSealed = 1 << 0

var (
	// ErrBadMagic is returned when the input is not a bundle.
	ErrBadMagic = errors.New("bundle: not a snapshot bundle")

	// ErrPassphraseRequired is returned when importing a sealed bundle
	// without a passphrase.
	ErrPassphraseRequired = errors.New("bundle: bundle is sealed, passphrase required")

	// ErrBadEntry is returned for a tar entry that is not a snapshot
	// artifact.
	ErrBadEntry = errors.New("bundle: unexpected entry")
)

// Options controls sealing and compression.
type Options struct {
	// Passphrase seals the bundle when set on export and opens it on import.
	Passphrase []byte

	// Cipher selects the sealing cipher; empty selects by hardware.
	Cipher adaptive.CipherType

	// Level is the zstd encoder level.
	// Default: zstd.SpeedDefault
	Level zstd.EncoderLevel
}

// Stats describes an export or import.
type Stats struct {
	Artifacts []string `json:"artifacts" yaml:"artifacts"`
	// Bytes is the total artifact size before compression.
	Bytes  int64 `json:"bytes" yaml:"bytes"`
	Sealed bool  `json:"sealed" yaml:"sealed"`
}

// Artifacts returns the names needed to restore snapshot id from store: its
// .snap and, when present, its .meta, plus 1.bin through <id>.bin when the
// snapshot is a Diff Log snapshot.
func Artifacts(store storage.Store, id uint32) ([]string, error) {
	if _, err := store.Stat(storage.SnapName(id)); err != nil {
		return nil, fmt.Errorf("bundle: snapshot %d: %w", id, err)
	}

	names := []string{storage.SnapName(id)}
	if _, err := store.Stat(storage.MetaName(id)); err == nil {
		names = append(names, storage.MetaName(id))
	}

	if _, err := store.Stat(storage.BinName(id)); errors.Is(err, storage.ErrNotFound) {
		return names, nil
	}
	for k := uint32(1); k <= id; k++ {
		if _, err := store.Stat(storage.BinName(k)); err != nil {
			return nil, fmt.Errorf("bundle: diff log chain of %d: %w", id, err)
		}
		names = append(names, storage.BinName(k))
	}
	return names, nil
}

// Export writes a bundle holding every artifact needed to restore ids.
func Export(store storage.Store, ids []uint32, w io.Writer, opts Options) (Stats, error) {
	var st Stats

	seen := make(map[string]bool)
	for _, id := range ids {
		names, err := Artifacts(store, id)
		if err != nil {
			return st, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				st.Artifacts = append(st.Artifacts, n)
			}
		}
	}

	body, closeBody, err := writeHeader(w, opts)
	if err != nil {
		return st, err
	}
	st.Sealed = len(opts.Passphrase) > 0

	level := opts.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	zw, err := zstd.NewWriter(body, zstd.WithEncoderLevel(level))
	if err != nil {
		return st, fmt.Errorf("bundle: zstd writer: %w", err)
	}

	tw := tar.NewWriter(zw)
	for _, name := range st.Artifacts {
		n, err := addEntry(tw, store, name)
		if err != nil {
			zw.Close()
			return st, err
		}
		st.Bytes += n
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return st, fmt.Errorf("bundle: finish tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return st, fmt.Errorf("bundle: finish zstd: %w", err)
	}
	if err := closeBody(); err != nil {
		return st, fmt.Errorf("bundle: seal: %w", err)
	}
	return st, nil
}

func addEntry(tw *tar.Writer, store storage.Store, name string) (int64, error) {
	info, err := store.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("bundle: stat %s: %w", name, err)
	}
	rc, err := store.Open(name)
	if err != nil {
		return 0, fmt.Errorf("bundle: open %s: %w", name, err)
	}
	defer rc.Close()

	// The size must be known up front, so read the artifact fully.
	data, err := io.ReadAll(rc)
	if err != nil {
		return 0, fmt.Errorf("bundle: read %s: %w", name, err)
	}

	hdr := &tar.Header{
		Name:    name,
		Mode:    0o600,
		Size:    int64(len(data)),
		ModTime: info.ModTime.Truncate(time.Second),
		Format:  tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, fmt.Errorf("bundle: tar header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return 0, fmt.Errorf("bundle: tar %s: %w", name, err)
	}
	return int64(len(data)), nil
}

// writeHeader writes the bundle header and returns the writer for the body
// and a function that finishes it.
func writeHeader(w io.Writer, opts Options) (io.Writer, func() error, error) {
	if len(opts.Passphrase) == 0 {
		if _, err := w.Write(append([]byte(Magic), 0, 0)); err != nil {
			return nil, nil, fmt.Errorf("bundle: write header: %w", err)
		}
		return w, func() error { return nil }, nil
	}

	ct, err := adaptive.ParseCipherType(string(opts.Cipher))
	if err != nil {
		return nil, nil, fmt.Errorf("bundle: %w", err)
	}
	salt, err := adaptive.NewSalt()
	if err != nil {
		return nil, nil, err
	}
	c, err := newCipher(opts.Passphrase, salt, ct)
	if err != nil {
		return nil, nil, err
	}

	var hdr bytes.Buffer
	hdr.WriteString(Magic)
	hdr.WriteByte(flagSealed)
	hdr.WriteByte(ct.ID())
	hdr.Write(salt)
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return nil, nil, fmt.Errorf("bundle: write header: %w", err)
	}

	sw := adaptive.NewSealWriter(w, c)
	return sw, sw.Close, nil
}

func newCipher(passphrase, salt []byte, ct adaptive.CipherType) (adaptive.Cipher, error) {
	key, err := adaptive.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	defer adaptive.ZeroKey(key)
	return adaptive.NewWithType(key, ct)
}

// Import unpacks a bundle into store.
func Import(r io.Reader, store storage.Store, opts Options) (Stats, error) {
	var st Stats

	body, sealed, err := readHeader(r, opts)
	if err != nil {
		return st, err
	}
	st.Sealed = sealed

	zr, err := zstd.NewReader(body)
	if err != nil {
		return st, fmt.Errorf("bundle: zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("bundle: read tar: %w", err)
		}
		if _, _, ok := storage.ParseArtifact(hdr.Name); !ok || hdr.Typeflag != tar.TypeReg {
			return st, fmt.Errorf("%w: %q", ErrBadEntry, hdr.Name)
		}

		n, err := copyEntry(store, hdr.Name, tr)
		if err != nil {
			return st, err
		}
		st.Artifacts = append(st.Artifacts, hdr.Name)
		st.Bytes += n
	}

	// Read to the end so a sealed stream authenticates its final chunk.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return st, fmt.Errorf("bundle: trailing data: %w", err)
	}
	return st, nil
}

func copyEntry(store storage.Store, name string, r io.Reader) (int64, error) {
	w, err := store.Create(name)
	if err != nil {
		return 0, fmt.Errorf("bundle: create %s: %w", name, err)
	}
	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return n, fmt.Errorf("bundle: extract %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("bundle: commit %s: %w", name, err)
	}
	return n, nil
}

func readHeader(r io.Reader, opts Options) (io.Reader, bool, error) {
	var fixed [len(Magic) + 2]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrBadMagic, err)
	}
	if string(fixed[:len(Magic)]) != Magic {
		return nil, false, ErrBadMagic
	}

	flags, cipherID := fixed[len(Magic)], fixed[len(Magic)+1]
	if flags&flagSealed == 0 {
		return r, false, nil
	}
	if len(opts.Passphrase) == 0 {
		return nil, true, ErrPassphraseRequired
	}

	ct, err := adaptive.CipherTypeFromID(cipherID)
	if err != nil {
		return nil, true, fmt.Errorf("bundle: %w", err)
	}
	salt := make([]byte, adaptive.SaltLength)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, true, fmt.Errorf("bundle: read salt: %w", err)
	}
	c, err := newCipher(opts.Passphrase, salt, ct)
	if err != nil {
		return nil, true, err
	}
	return adaptive.NewOpenReader(r, c), true, nil
}
