package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// SharedX returns the X-coordinate of the ECDH shared point between priv
// and pub, the raw ECDH output that encryption.DeriveKey feeds into the
// X963-KDF (spec.md §4.4). Grounded on
// original_source/hyperborealib/src/crypto/asymmetric/secret_key.rs's
// `create_shared_secret`, which performs the equivalent
// `k256::ecdh::diffie_hellman` over the same curve.
func SharedX(priv *PrivateKey, pub *PublicKey) [32]byte {
	var point secp256k1.JacobianPoint
	pub.key.AsJacobian(&point)

	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&priv.key.Key, &point, &result)
	result.ToAffine()

	var out [32]byte
	xBytes := result.X.Bytes()
	copy(out[:], xBytes[:])
	return out
}
