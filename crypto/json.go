package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the public key as the base64 (standard, padded)
// string of its 33-byte compressed form, matching
// original_source/hyperborealib/src/rest_api/request.rs's
// `public_key.to_base64()` wire convention (distinct from the "v1:"
// address form, which is a human-facing presentation, not the envelope's
// wire field).
func (pk *PublicKey) MarshalJSON() ([]byte, error) {
	if pk == nil {
		return json.Marshal(nil)
	}
	b := pk.Bytes()
	return json.Marshal(base64.StdEncoding.EncodeToString(b[:]))
}

// UnmarshalJSON decodes a base64-encoded compressed public key.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("crypto: public_key: %w", err)
	}
	parsed, err := ParsePublicKey(raw)
	if err != nil {
		return err
	}
	*pk = *parsed
	return nil
}

// MarshalJSON encodes the signature as a base64 string of its 64 raw
// r‖s bytes.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(s[:]))
}

// UnmarshalJSON decodes a base64-encoded 64-byte signature.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return fmt.Errorf("crypto: sign: %w", err)
	}
	if len(raw) != 64 {
		return fmt.Errorf("crypto: sign: expected 64 bytes, got %d", len(raw))
	}
	copy(s[:], raw)
	return nil
}
