package adaptive

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func sealAll(t *testing.T, c Cipher, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewSealWriter(&buf, c)
	if _, err := w.Write(plain); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestSealStream_RoundTrip(t *testing.T) {
	c, err := NewChaCha20(key32)
	if err != nil {
		t.Fatalf("NewChaCha20: %v", err)
	}

	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"small", 100},
		{"exact chunk", ChunkSize},
		{"multi chunk", 2*ChunkSize + 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain := bytes.Repeat([]byte{0xA5, 0x01, 0x7F}, tt.size/3+1)[:tt.size]
			sealed := sealAll(t, c, plain)

			got, err := io.ReadAll(NewOpenReader(bytes.NewReader(sealed), c))
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(plain))
			}
		})
	}
}

func TestSealStream_Truncated(t *testing.T) {
	c, _ := NewAESGCM(key32)
	sealed := sealAll(t, c, bytes.Repeat([]byte{1}, ChunkSize+10))

	// Drop the final chunk entirely.
	first := 4 + ChunkSize + c.NonceSize() + c.Overhead()
	_, err := io.ReadAll(NewOpenReader(bytes.NewReader(sealed[:first]), c))
	if !errors.Is(err, ErrStreamTruncated) {
		t.Errorf("err = %v, want ErrStreamTruncated", err)
	}
}

func TestSealStream_Tampered(t *testing.T) {
	c, _ := NewAESGCM(key32)
	sealed := sealAll(t, c, []byte("snapshot bytes"))
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := io.ReadAll(NewOpenReader(bytes.NewReader(sealed), c)); err == nil {
		t.Error("tampered stream should fail to open")
	}
}

func TestSealStream_WrongKey(t *testing.T) {
	c, _ := NewAESGCM(key32)
	sealed := sealAll(t, c, []byte("snapshot bytes"))

	other := make([]byte, 32)
	wrong, _ := NewAESGCM(other)
	if _, err := io.ReadAll(NewOpenReader(bytes.NewReader(sealed), wrong)); err == nil {
		t.Error("wrong key should fail to open")
	}
}
