package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperborea/hyperborea/crypto"
)

// StandardVersion is the only wire standard this implementation speaks.
const StandardVersion uint64 = 1

// seed is proof_seed's wire representation: a decimal string rather than
// a JSON number, per spec.md §6 ("seed ... must round-trip through a
// decimal representation without loss"). A bare JSON number loses
// precision above 2^53 in common decoders, and proof_seed is mandated
// >= 1<<63, so this implementation picks the string encoding the spec
// leaves as an endpoint-documented choice.
type seed uint64

func (s seed) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(s), 10))
}

func (s *seed) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("protocol: seed: %w", err)
	}
	*s = seed(v)
	return nil
}

// Request is the envelope wrapping every REST API request body
// (spec.md §4.1): a standard version tag, the sender's public key, and a
// proof-of-key (a signature over a random seed) binding the envelope to
// that key without re-signing the payload itself.
//
// Grounded on original_source/hyperborealib/src/rest_api/request.rs's
// `Request<T>`; Go generics stand in for the Rust generic parameter.
type Request[T any] struct {
	Standard  uint64
	PublicKey *crypto.PublicKey
	ProofSeed uint64
	ProofSign crypto.Signature
	Body      T
}

// NewRequest builds a Request wrapping body, signed by clientSecret. The
// proof seed is drawn from the CSPRNG with its top bit forced set
// (crypto.SafeRandomSeed), matching spec.md §4.2's "proof_seed must be
// >= 1<<63" constraint.
func NewRequest[T any](clientSecret *crypto.PrivateKey, body T) Request[T] {
	seed := crypto.SafeRandomSeed()
	return Request[T]{
		Standard:  StandardVersion,
		PublicKey: clientSecret.PublicKey(),
		ProofSeed: seed,
		ProofSign: crypto.Sign(clientSecret, seedBytes(seed)),
		Body:      body,
	}
}

// Validate checks the envelope's proof-of-key: that ProofSeed respects
// the high-bit constraint and ProofSign verifies against PublicKey over
// ProofSeed's big-endian bytes (spec.md §4.2).
func (r Request[T]) Validate() error {
	if r.Standard != StandardVersion {
		return NewError(KindSchema, fmt.Sprintf("unsupported standard %d", r.Standard))
	}
	if r.ProofSeed < 1<<63 {
		return NewError(KindIntegrity, "proof seed below required high-bit threshold")
	}
	if !crypto.Verify(r.ProofSign, seedBytes(r.ProofSeed), r.PublicKey) {
		return NewError(KindIntegrity, "proof signature does not verify")
	}
	return nil
}

type requestJSON[T any] struct {
	Standard  uint64            `json:"standard"`
	PublicKey *crypto.PublicKey `json:"public_key"`
	Proof     requestProofJSON  `json:"proof"`
	Request   T                 `json:"request"`
}

type requestProofJSON struct {
	Seed seed             `json:"seed"`
	Sign crypto.Signature `json:"sign"`
}

// MarshalJSON renders the envelope in the standard-1 wire shape:
// {"standard","public_key","proof":{"seed","sign"},"request"}.
func (r Request[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestJSON[T]{
		Standard:  r.Standard,
		PublicKey: r.PublicKey,
		Proof:     requestProofJSON{Seed: seed(r.ProofSeed), Sign: r.ProofSign},
		Request:   r.Body,
	})
}

// UnmarshalJSON parses the standard-1 wire shape.
func (r *Request[T]) UnmarshalJSON(data []byte) error {
	var raw requestJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Standard != StandardVersion {
		return NewError(KindSchema, fmt.Sprintf("unsupported standard %d", raw.Standard))
	}
	r.Standard = raw.Standard
	r.PublicKey = raw.PublicKey
	r.ProofSeed = uint64(raw.Proof.Seed)
	r.ProofSign = raw.Proof.Sign
	r.Body = raw.Request
	return nil
}

// Response is the envelope wrapping every REST API response body
// (spec.md §4.1). Exactly one of Body (with PublicKey/ProofSign) or
// Reason is meaningful, discriminated by Status.IsSuccess(); the other is
// ignored on encode.
//
// Grounded on original_source/hyperborealib/src/rest_api/response.rs's
// `Response<T>` enum, flattened into a single Go struct since Go has no
// tagged-union sum type: the Rust variant tag is carried implicitly by
// Status, exactly as the wire encoding already does.
type Response[T any] struct {
	Standard  uint64
	Status    Status
	PublicKey *crypto.PublicKey
	ProofSign crypto.Signature
	Body      T
	Reason    string
}

// NewSuccessResponse builds a successful Response, signing the
// originating request's proof seed with the responder's secret key as
// its own proof-of-key.
func NewSuccessResponse[T any](status Status, serverSecret *crypto.PrivateKey, requestProofSeed uint64, body T) Response[T] {
	return Response[T]{
		Standard:  StandardVersion,
		Status:    status,
		PublicKey: serverSecret.PublicKey(),
		ProofSign: crypto.Sign(serverSecret, seedBytes(requestProofSeed)),
		Body:      body,
	}
}

// NewErrorResponse builds an error Response carrying no signed proof,
// per spec.md §4.2 (error responses are not proof-bound).
func NewErrorResponse[T any](status Status, reason string) Response[T] {
	return Response[T]{Standard: StandardVersion, Status: status, Reason: reason}
}

// Validate checks a success Response's proof-of-key against the proof
// seed from the original request; error responses are always considered
// structurally valid (spec.md §4.2).
func (r Response[T]) Validate(requestProofSeed uint64) error {
	if r.Standard != StandardVersion {
		return NewError(KindSchema, fmt.Sprintf("unsupported standard %d", r.Standard))
	}
	if !r.Status.IsSuccess() {
		return nil
	}
	if requestProofSeed < 1<<63 {
		return NewError(KindIntegrity, "proof seed below required high-bit threshold")
	}
	if !crypto.Verify(r.ProofSign, seedBytes(requestProofSeed), r.PublicKey) {
		return NewError(KindIntegrity, "proof signature does not verify")
	}
	return nil
}

type responseSuccessJSON[T any] struct {
	Standard  uint64            `json:"standard"`
	Status    Status            `json:"status"`
	PublicKey *crypto.PublicKey `json:"public_key"`
	Proof     responseProofJSON `json:"proof"`
	Response  T                 `json:"response"`
}

type responseProofJSON struct {
	Sign crypto.Signature `json:"sign"`
}

type responseErrorJSON struct {
	Standard uint64 `json:"standard"`
	Status   Status `json:"status"`
	Reason   string `json:"reason"`
}

// MarshalJSON renders either the success or error wire shape, chosen by
// Status.IsSuccess(), matching response.rs's two-variant encoding.
func (r Response[T]) MarshalJSON() ([]byte, error) {
	if r.Status.IsSuccess() {
		return json.Marshal(responseSuccessJSON[T]{
			Standard:  r.Standard,
			Status:    r.Status,
			PublicKey: r.PublicKey,
			Proof:     responseProofJSON{Sign: r.ProofSign},
			Response:  r.Body,
		})
	}
	return json.Marshal(responseErrorJSON{
		Standard: r.Standard,
		Status:   r.Status,
		Reason:   r.Reason,
	})
}

// UnmarshalJSON parses either wire shape, discriminating on the decoded
// status code.
func (r *Response[T]) UnmarshalJSON(data []byte) error {
	var peek struct {
		Standard uint64 `json:"standard"`
		Status   Status `json:"status"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return err
	}
	if peek.Standard != StandardVersion {
		return NewError(KindSchema, fmt.Sprintf("unsupported standard %d", peek.Standard))
	}
	if peek.Status.IsSuccess() {
		var raw responseSuccessJSON[T]
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		r.Standard = raw.Standard
		r.Status = raw.Status
		r.PublicKey = raw.PublicKey
		r.ProofSign = raw.Proof.Sign
		r.Body = raw.Response
		r.Reason = ""
		return nil
	}
	var raw responseErrorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Standard = raw.Standard
	r.Status = raw.Status
	r.Reason = raw.Reason
	var zero T
	r.Body = zero
	return nil
}

// SeedBytes renders a proof seed as its big-endian 8-byte encoding, the
// exact byte string every proof-of-key signature is computed over. It is
// exported so callers outside this package (server, client) can produce
// or verify proof signatures of their own — e.g. the server's own
// self-signed /api/v1/info response, which carries a proof but no
// request envelope to validate against.
func SeedBytes(seed uint64) []byte {
	return seedBytes(seed)
}

func seedBytes(seed uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(seed)
		seed >>= 8
	}
	return b
}
