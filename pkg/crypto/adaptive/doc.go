// Package adaptive provides authenticated encryption for snapshot bundles.
//
// A Cipher is AES-256-GCM when the CPU accelerates AES and
// ChaCha20-Poly1305 otherwise. On top of it:
//
//   - kdf.go derives a key from a passphrase with Argon2id
//   - stream.go seals arbitrarily long streams as a sequence of
//     authenticated chunks
//
// Usage:
//
//	salt, _ := adaptive.NewSalt()
//	key, _ := adaptive.DeriveKey(passphrase, salt)
//	c, _ := adaptive.NewWithType(key, adaptive.CipherChaCha20)
//	w := adaptive.NewSealWriter(out, c)
package adaptive
