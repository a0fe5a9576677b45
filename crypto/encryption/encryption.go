// Package encryption implements the AEAD stage of the message codec
// pipeline (spec component C4): "aes256-gcm" and "chacha20-poly1305",
// plus the pre-defined nonce and key derivation the standard mandates so
// that encoding is fully deterministic for a given (sender, receiver,
// channel, seed) tuple.
//
// Grounded on original_source/hyperborealib/src/crypto/encryption/{aes256_gcm,chacha20_poly1305}.rs
// and crypto/asymmetric/mod.rs's HKDF-based shared secret derivation,
// reworked onto stdlib crypto/aes + crypto/cipher and
// golang.org/x/crypto/chacha20poly1305 (the libraries the example pack's
// teacher already depends on for AEAD work).
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm identifies an AEAD stage of the pipeline grammar.
type Algorithm string

const (
	// None passes data through unencrypted.
	None Algorithm = ""

	// AES256GCM is the "aes256-gcm" pipeline token.
	AES256GCM Algorithm = "aes256-gcm"

	// ChaCha20Poly1305 is the "chacha20-poly1305" pipeline token.
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// NonceSize is the fixed AEAD nonce length used by every cipher this
// standard supports.
const NonceSize = 12

// Parse validates a pipeline encryption token.
func Parse(token string) (Algorithm, error) {
	switch Algorithm(token) {
	case AES256GCM:
		return AES256GCM, nil
	case ChaCha20Poly1305:
		return ChaCha20Poly1305, nil
	default:
		return None, fmt.Errorf("encryption: unknown algorithm %q", token)
	}
}

func aead(alg Algorithm, key [32]byte) (cipher.AEAD, error) {
	switch alg {
	case AES256GCM:
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)

	case ChaCha20Poly1305:
		return chacha20poly1305.New(key[:])

	default:
		return nil, fmt.Errorf("encryption: unknown algorithm %q", alg)
	}
}

// Seal encrypts plaintext under key and nonce with an empty AAD, per
// spec.md §4.4 ("AAD is the empty string").
func Seal(alg Algorithm, key [32]byte, nonce [NonceSize]byte, plaintext []byte) ([]byte, error) {
	if alg == None {
		return plaintext, nil
	}
	a, err := aead(alg, key)
	if err != nil {
		return nil, err
	}
	return a.Seal(nil, nonce[:], plaintext, nil), nil
}

// Open decrypts and authenticates ciphertext produced by Seal.
func Open(alg Algorithm, key [32]byte, nonce [NonceSize]byte, ciphertext []byte) ([]byte, error) {
	if alg == None {
		return ciphertext, nil
	}
	a, err := aead(alg, key)
	if err != nil {
		return nil, err
	}
	return a.Open(nil, nonce[:], ciphertext, nil)
}

// DeriveNonce computes the standard's pre-defined per-message nonce: the
// first 12 bytes of SHA-256(sender ‖ receiver ‖ channel ‖ seed), where
// seed is the containing request's proof seed. This is what makes message
// encoding reproducible for test vectors and prevents cross-channel
// replay (spec.md §4.4).
func DeriveNonce(sender, receiver [33]byte, channel string, seed uint64) [NonceSize]byte {
	h := sha256.New()
	h.Write(sender[:])
	h.Write(receiver[:])
	h.Write([]byte(channel))

	var seedBytes [8]byte
	binary.BigEndian.PutUint64(seedBytes[:], seed)
	h.Write(seedBytes[:])

	digest := h.Sum(nil)

	var nonce [NonceSize]byte
	copy(nonce[:], digest[:NonceSize])
	return nonce
}

// DeriveKey applies the ANSI X9.63 key derivation function (SHA-256 based)
// to the raw ECDH shared secret, truncating the output to the 32 bytes
// every supported AEAD cipher in this package needs for its key.
func DeriveKey(sharedSecret [32]byte) [32]byte {
	// A single SHA-256(Z ‖ counter) round already yields 32 bytes, which is
	// exactly what every cipher here requires, so no second round is
	// needed per X9.63 §5.6.3.
	h := sha256.New()
	h.Write(sharedSecret[:])
	h.Write([]byte{0x00, 0x00, 0x00, 0x01})

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}
