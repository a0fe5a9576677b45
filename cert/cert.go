// Package cert implements Hyperborea's connection certificate (spec
// component C3): a fixed-width ConnectionToken binding a client to a
// server at a point in time, and the client signature over it.
//
// Grounded on original_source/hyperborealib/src/rest_api/types/connection_{token,certificate}.rs
// (41-byte token layout, signature-over-token attestation) and on the
// teacher's core/cert package for the surrounding idiom: small, explicit
// Build/Verify functions over fixed-width byte layouts rather than a
// generic claims object.
package cert

import (
	"encoding/binary"
	"errors"

	"github.com/hyperborea/hyperborea/crypto"
)

// TokenSize is the fixed encoded length of a ConnectionToken: an 8-byte
// big-endian UTC timestamp followed by a 33-byte compressed public key.
const TokenSize = 8 + 33

// ErrBadToken is returned when a serialized token is the wrong length.
var ErrBadToken = errors.New("cert: connection token must be 41 bytes")

// ErrBadSignature describes a certificate whose signature does not
// verify, or whose token's server key does not match the server the
// caller expected. Verify itself reports that case as false rather than
// returning this error.
var ErrBadSignature = errors.New("cert: certificate does not verify")

// ConnectionToken attests "this client claims to be bound to this server
// as of this timestamp" (spec.md §3). It is signed, not self-authenticating.
type ConnectionToken struct {
	AuthDate  uint64            `json:"auth_date"`
	ServerKey *crypto.PublicKey `json:"public_key"`
}

// Bytes serializes the token to its fixed 41-byte wire layout.
func (t ConnectionToken) Bytes() [TokenSize]byte {
	var out [TokenSize]byte
	binary.BigEndian.PutUint64(out[0:8], t.AuthDate)
	serverKey := t.ServerKey.Bytes()
	copy(out[8:41], serverKey[:])
	return out
}

// ParseToken reconstructs a ConnectionToken from its 41-byte encoding.
func ParseToken(b []byte) (ConnectionToken, error) {
	if len(b) != TokenSize {
		return ConnectionToken{}, ErrBadToken
	}
	serverKey, err := crypto.ParsePublicKey(b[8:41])
	if err != nil {
		return ConnectionToken{}, err
	}
	return ConnectionToken{
		AuthDate:  binary.BigEndian.Uint64(b[0:8]),
		ServerKey: serverKey,
	}, nil
}

// Certificate is a ConnectionToken plus the client's signature over it.
type Certificate struct {
	Token ConnectionToken  `json:"token"`
	Sign  crypto.Signature `json:"sign"`
}

// Build constructs a certificate binding clientKey to serverKey at
// authDate, signed by the client's secret key.
func Build(clientSecret *crypto.PrivateKey, serverKey *crypto.PublicKey, authDate uint64) Certificate {
	token := ConnectionToken{AuthDate: authDate, ServerKey: serverKey}
	tokenBytes := token.Bytes()
	sig := crypto.Sign(clientSecret, tokenBytes[:])
	return Certificate{Token: token, Sign: sig}
}

// Verify checks that cert is a valid attestation by clientKey, binding it
// to expectedServerKey. Freshness (auth_date monotonicity across
// replacement) is the router's concern, not this function's
// (spec.md §4.3).
func Verify(cert Certificate, clientKey *crypto.PublicKey, expectedServerKey *crypto.PublicKey) bool {
	if !cert.Token.ServerKey.Equal(expectedServerKey) {
		return false
	}
	tokenBytes := cert.Token.Bytes()
	return crypto.Verify(cert.Sign, tokenBytes[:], clientKey)
}

// Supersedes reports whether candidate should replace current under
// spec.md §3's supersession rule: strictly later auth_date wins; ties
// break by lexicographically greater signature bytes.
func Supersedes(candidate, current Certificate) bool {
	if candidate.Token.AuthDate != current.Token.AuthDate {
		return candidate.Token.AuthDate > current.Token.AuthDate
	}
	return compareBytes(candidate.Sign[:], current.Sign[:]) > 0
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
