// Package crypto implements Hyperborea's identity and signing primitives
// (spec component C1): secp256k1 keypairs, the "v1:" address encoding, and
// strict ECDSA signature verification.
//
// Grounded on original_source/hyperborealib/src/crypto/asymmetric/{secret_key,public_key}.rs
// (k256-backed SecretKey/PublicKey with deterministic RFC 6979 signing,
// SEC1 compressed encoding and X963-KDF-derived shared secrets), reworked
// onto the real secp256k1 library the ecosystem reaches for in Go:
// github.com/decred/dcrd/dcrec/secp256k1/v4.
package crypto

import (
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	hrand "github.com/hyperborea/hyperborea/crypto/rand"
)

// AddressVersion is the textual address tag this module understands.
const AddressVersion = "v1"

// addressEncoding is the RFC 5155 alphabet, lowercased, unpadded, matching
// spec.md §3's address grammar exactly.
var addressEncoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// ErrInvalidAddress is returned by DecodeAddress on any malformed address:
// wrong version tag, bad alphabet, or wrong decoded length.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// ErrInvalidSignature describes signature bytes that cannot even be
// parsed (wrong length, etc). Verify itself reports such a signature as
// false rather than returning this error.
var ErrInvalidSignature = errors.New("crypto: malformed signature")

// PublicKey is a 33-byte compressed secp256k1 point, the identity of every
// Hyperborea participant.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// PrivateKey is a secp256k1 scalar paired with its PublicKey.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// Signature is a fixed 64-byte secp256k1 ECDSA signature in r‖s form, as
// mandated by spec.md §3 (no DER, no recovery id).
type Signature [64]byte

// Generate creates a new random keypair.
func Generate() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PublicKey derives the public key for this private key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Bytes returns the raw 32-byte scalar.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// ParsePrivateKey reconstructs a PrivateKey from its 32-byte scalar.
func ParsePrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, errors.New("crypto: private key must be 32 bytes")
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Bytes returns the 33-byte SEC1-compressed encoding of the public key.
func (pk *PublicKey) Bytes() [33]byte {
	var out [33]byte
	copy(out[:], pk.key.SerializeCompressed())
	return out
}

// ParsePublicKey decodes a 33-byte compressed secp256k1 point.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) != 33 {
		return nil, errors.New("crypto: public key must be 33 bytes")
	}
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// Equal reports whether two public keys encode the same identity.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	a, b := pk.Bytes(), other.Bytes()
	return a == b
}

// String implements fmt.Stringer by returning the canonical address.
func (pk *PublicKey) String() string {
	return EncodeAddress(pk)
}

// Sign produces a deterministic (RFC 6979) ECDSA signature over
// SHA-256(message), matching spec.md §3's "secp256k1 ECDSA over SHA-256".
func Sign(priv *PrivateKey, message []byte) Signature {
	digest := sha256.Sum256(message)

	// SignCompact always returns a canonical (low-S), deterministic
	// (RFC 6979) signature as [recovery-id-byte ‖ r(32) ‖ s(32)]; we keep
	// only the fixed-width r‖s portion the wire format wants.
	compact := ecdsa.SignCompact(priv.key, digest[:], true)

	var out Signature
	copy(out[0:64], compact[1:65])
	return out
}

// Verify checks that sig is a valid, canonical (low-S) secp256k1 signature
// over SHA-256(message) by pub. Non-canonical (malleable, high-S)
// signatures are rejected, per spec.md §3.
func Verify(sig Signature, message []byte, pub *PublicKey) bool {
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig[0:32]) {
		// overflowed the group order
		return false
	}
	if s.SetByteSlice(sig[32:64]) {
		return false
	}

	if s.IsOverHalfOrder() {
		// non-canonical / malleable signature, reject strictly
		return false
	}

	digest := sha256.Sum256(message)

	parsed := ecdsa.NewSignature(&r, &s)
	return parsed.Verify(digest[:], pub.key)
}

// EncodeAddress renders a public key as its canonical "v1:" address.
func EncodeAddress(pk *PublicKey) string {
	b := pk.Bytes()
	return AddressVersion + ":" + addressEncoding.EncodeToString(b[:])
}

// DecodeAddress parses a "v1:" address back into a public key. Parsing is
// case-insensitive but only lowercase addresses are canonical.
func DecodeAddress(address string) (*PublicKey, error) {
	lower := strings.ToLower(address)

	prefix := AddressVersion + ":"
	if !strings.HasPrefix(lower, prefix) {
		return nil, ErrInvalidAddress
	}

	raw, err := addressEncoding.DecodeString(lower[len(prefix):])
	if err != nil {
		return nil, ErrInvalidAddress
	}
	if len(raw) != 33 {
		return nil, ErrInvalidAddress
	}

	pk, err := ParsePublicKey(raw)
	if err != nil {
		return nil, ErrInvalidAddress
	}
	return pk, nil
}

// SafeRandomSeed returns a proof seed in the range required by §4.2's
// Proof type: a uniformly random 64-bit value with its high bit set, so
// its big-endian encoding is never a short run of leading zero bytes.
func SafeRandomSeed() uint64 {
	return hrand.SafeRandomU64Long()
}
