package message

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/crypto/compression"
	"github.com/hyperborea/hyperborea/crypto/encryption"
)

// DefaultMaxPlaintextSize is the default ceiling on decoded message
// plaintext (spec.md §4.4): 16 MiB. Implementations may configure a
// smaller bound; they must never raise it.
const DefaultMaxPlaintextSize = 16 * 1024 * 1024

// ErrTooLarge is returned when a decoded plaintext exceeds the configured
// size ceiling. Endpoint handlers map this to status 322.
var ErrTooLarge = errors.New("message: plaintext exceeds configured size limit")

// ErrBadSignature is returned when a decoded message's signature does not
// verify over its own plaintext.
var ErrBadSignature = errors.New("message: signature does not verify over plaintext")

// EncodedSize reports the decoded byte length of m.Content, the
// ciphertext/compressed payload carried on the wire. A relaying server
// never holds the receiver's private key and so can never decrypt to
// measure true plaintext size directly; this is the server-side proxy for
// spec.md §4.4's size ceiling, checked against the same configured bound
// the eventual receiver enforces after decode. It bounds the wire payload
// only: when the pipeline compresses, the plaintext can be larger than
// this size, and only Decode checks the plaintext itself.
func (m *Message) EncodedSize() (int, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Content)
	if err != nil {
		return 0, fmt.Errorf("message: base64 decode: %w", err)
	}
	return len(raw), nil
}

// Message is the wire shape of an opaque payload exchanged via send/poll
// (spec.md §3): ciphertext/compressed bytes, a signature over the
// plaintext, and the pipeline descriptor needed to reverse it.
type Message struct {
	Content  string `json:"content"`
	Sign     string `json:"sign"`
	Encoding string `json:"encoding"`
}

// Endpoints is the (sender, receiver) key pair plus channel and seed that
// the standard's deterministic AEAD parameters are derived from.
type Endpoints struct {
	Sender   *crypto.PublicKey
	Receiver *crypto.PublicKey
	Channel  string
	Seed     uint64
}

// New builds a Message from plaintext: it signs the plaintext with
// senderSecret, then runs compress → encrypt → base64 per pipeline.
func New(pipeline Pipeline, plaintext []byte, senderSecret *crypto.PrivateKey, ep Endpoints) (*Message, error) {
	compressed, err := compression.Compress(pipeline.Compression, plaintext)
	if err != nil {
		return nil, fmt.Errorf("message: compress: %w", err)
	}

	var sealed []byte
	if pipeline.Encryption != encryption.None {
		key := encryption.DeriveKey(crypto.SharedX(senderSecret, ep.Receiver))
		senderBytes := ep.Sender.Bytes()
		receiverBytes := ep.Receiver.Bytes()
		nonce := encryption.DeriveNonce(senderBytes, receiverBytes, ep.Channel, ep.Seed)

		sealed, err = encryption.Seal(pipeline.Encryption, key, nonce, compressed)
		if err != nil {
			return nil, fmt.Errorf("message: encrypt: %w", err)
		}
	} else {
		sealed = compressed
	}

	sig := crypto.Sign(senderSecret, plaintext)

	return &Message{
		Content:  base64.StdEncoding.EncodeToString(sealed),
		Sign:     base64.StdEncoding.EncodeToString(sig[:]),
		Encoding: pipeline.String(),
	}, nil
}

// Decode reverses the pipeline described by m.Encoding: base64 decode →
// decrypt → decompress, enforces maxPlaintextSize, and verifies the
// signature over the recovered plaintext. receiverSecret is required only
// when the pipeline applies encryption.
func (m *Message) Decode(receiverSecret *crypto.PrivateKey, ep Endpoints, maxPlaintextSize int) ([]byte, error) {
	pipeline, err := ParsePipeline(m.Encoding)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(m.Content)
	if err != nil {
		return nil, fmt.Errorf("message: base64 decode: %w", err)
	}

	var decompressed []byte
	if pipeline.Encryption != encryption.None {
		key := encryption.DeriveKey(crypto.SharedX(receiverSecret, ep.Sender))
		senderBytes := ep.Sender.Bytes()
		receiverBytes := ep.Receiver.Bytes()
		nonce := encryption.DeriveNonce(senderBytes, receiverBytes, ep.Channel, ep.Seed)

		decompressed, err = encryption.Open(pipeline.Encryption, key, nonce, raw)
		if err != nil {
			return nil, fmt.Errorf("message: decrypt: %w", err)
		}
	} else {
		decompressed = raw
	}

	plaintext, err := compression.Decompress(pipeline.Compression, decompressed)
	if err != nil {
		return nil, fmt.Errorf("message: decompress: %w", err)
	}

	if maxPlaintextSize > 0 && len(plaintext) > maxPlaintextSize {
		return nil, ErrTooLarge
	}

	sigBytes, err := base64.StdEncoding.DecodeString(m.Sign)
	if err != nil || len(sigBytes) != 64 {
		return nil, ErrBadSignature
	}
	var sig crypto.Signature
	copy(sig[:], sigBytes)

	if !crypto.Verify(sig, plaintext, ep.Sender) {
		return nil, ErrBadSignature
	}

	return plaintext, nil
}
