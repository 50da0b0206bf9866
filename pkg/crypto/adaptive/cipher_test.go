package adaptive

import (
	"bytes"
	"errors"
	"testing"
)

var key32 = func() []byte {
	k := make([]byte, KeyLength)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}()

func ciphers(t *testing.T) []Cipher {
	t.Helper()
	var out []Cipher
	for _, ct := range []CipherType{CipherAESGCM, CipherChaCha20} {
		c, err := NewWithType(key32, ct)
		if err != nil {
			t.Fatalf("NewWithType(%s): %v", ct, err)
		}
		if c.Type() != ct {
			t.Fatalf("Type() = %s, want %s", c.Type(), ct)
		}
		out = append(out, c)
	}
	return out
}

func TestCipher_RoundTrip(t *testing.T) {
	for _, c := range ciphers(t) {
		t.Run(string(c.Type()), func(t *testing.T) {
			tests := []struct {
				name  string
				plain []byte
				ad    []byte
			}{
				{"empty", nil, nil},
				{"chunk", bytes.Repeat([]byte{0xAB}, 4096), []byte("seq=1")},
				{"no ad", []byte("1.snap"), nil},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					sealed, err := c.Encrypt(tt.plain, tt.ad)
					if err != nil {
						t.Fatalf("Encrypt: %v", err)
					}
					if len(sealed) != len(tt.plain)+c.Overhead() {
						t.Errorf("sealed len = %d, want %d", len(sealed), len(tt.plain)+c.Overhead())
					}
					got, err := c.Decrypt(sealed, tt.ad)
					if err != nil {
						t.Fatalf("Decrypt: %v", err)
					}
					if !bytes.Equal(got, tt.plain) {
						t.Error("round trip mismatch")
					}
				})
			}
		})
	}
}

func TestCipher_Rejects(t *testing.T) {
	for _, c := range ciphers(t) {
		t.Run(string(c.Type()), func(t *testing.T) {
			sealed, err := c.Encrypt([]byte("frame stack"), []byte("ad"))
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}

			tampered := append([]byte(nil), sealed...)
			tampered[len(tampered)-1] ^= 1
			if _, err := c.Decrypt(tampered, []byte("ad")); err == nil {
				t.Error("tampered ciphertext accepted")
			}
			if _, err := c.Decrypt(sealed, []byte("other")); err == nil {
				t.Error("wrong additional data accepted")
			}
			if _, err := c.Decrypt(sealed[:c.NonceSize()-1], nil); !errors.Is(err, ErrCiphertextTooShort) {
				t.Errorf("short input err = %v", err)
			}
		})
	}
}

func TestCipher_NonceIsRandom(t *testing.T) {
	c, err := New(key32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, _ := c.Encrypt([]byte("same"), nil)
	b, _ := c.Encrypt([]byte("same"), nil)
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestNewWithType_KeySize(t *testing.T) {
	for _, ct := range []CipherType{CipherAESGCM, CipherChaCha20} {
		if _, err := NewWithType(make([]byte, 16), ct); err == nil {
			t.Errorf("%s accepted a 16 byte key", ct)
		}
	}
	if _, err := NewWithType(key32, "rot13"); err == nil {
		t.Error("unknown cipher type accepted")
	}
}

func TestCipherTypeIDs(t *testing.T) {
	for _, ct := range []CipherType{CipherAESGCM, CipherChaCha20} {
		got, err := CipherTypeFromID(ct.ID())
		if err != nil || got != ct {
			t.Errorf("CipherTypeFromID(%d) = %s, %v", ct.ID(), got, err)
		}
	}
	if _, err := CipherTypeFromID(0); err == nil {
		t.Error("id 0 should be rejected")
	}
}

func TestParseCipherType(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"auto", false},
		{"aes-gcm", false},
		{"chacha20-poly1305", false},
		{"des", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ct, err := ParseCipherType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCipherType(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && ct.ID() == 0 {
				t.Errorf("ParseCipherType(%q) = %q", tt.in, ct)
			}
		})
	}
}

func BenchmarkCipher_Encrypt64KiB(b *testing.B) {
	plain := make([]byte, 64<<10)
	for _, ct := range []CipherType{CipherAESGCM, CipherChaCha20} {
		b.Run(string(ct), func(b *testing.B) {
			c, err := NewWithType(key32, ct)
			if err != nil {
				b.Fatalf("NewWithType: %v", err)
			}
			b.SetBytes(int64(len(plain)))
			for i := 0; i < b.N; i++ {
				if _, err := c.Encrypt(plain, nil); err != nil {
					b.Fatalf("Encrypt: %v", err)
				}
			}
		})
	}
}
