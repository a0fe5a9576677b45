package protocol

import "fmt"

// Kind is one of the error kinds enumerated in spec.md §7. It is the
// machine-readable discriminant every typed error in this module carries,
// in the spirit of the teacher's wire.HandshakeError/wire.MessageSizeError
// pattern of structured error values keyed by an explicit kind field
// rather than ad hoc error strings.
type Kind int

const (
	// KindIntegrity - signature/envelope validation failed (-> 301).
	KindIntegrity Kind = iota + 1

	// KindSchema - malformed request (-> 300).
	KindSchema

	// KindInternal - unexpected server failure (-> 200).
	KindInternal

	// KindNotFound - lookup exhausted its frontier (-> 311).
	KindNotFound

	// KindTimeout - lookup exhausted its deadline (-> 310).
	KindTimeout

	// KindNotConnected - target client unreachable from this server
	// (-> 320).
	KindNotConnected

	// KindInboxFull - target client's inbox is at capacity (-> 321).
	KindInboxFull

	// KindTooLarge - message plaintext exceeds the configured bound
	// (-> 322).
	KindTooLarge

	// KindTransport - client-side only; transport failure, retriable.
	KindTransport

	// KindConfig - server startup only; fatal configuration error.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindIntegrity:
		return "integrity"
	case KindSchema:
		return "schema"
	case KindInternal:
		return "internal"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindNotConnected:
		return "not_connected"
	case KindInboxFull:
		return "inbox_full"
	case KindTooLarge:
		return "too_large"
	case KindTransport:
		return "transport"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Status maps an error kind to its wire status code, per spec.md §4.2 /
// §7. Kinds with no wire representation (Transport, Config) return 0.
func (k Kind) Status() Status {
	switch k {
	case KindIntegrity:
		return StatusCertificateInvalid
	case KindSchema:
		return StatusInvalidRequest
	case KindInternal:
		return StatusInternalError
	case KindNotFound:
		return StatusClientNotFound
	case KindTimeout:
		return StatusLookupTimeout
	case KindNotConnected:
		return StatusNotConnected
	case KindInboxFull:
		return StatusInboxFull
	case KindTooLarge:
		return StatusMessageTooLarge
	default:
		return 0
	}
}

// Error is Hyperborea's typed error value. Reason is the short,
// internal-detail-free string that travels on the wire in an error
// Response (spec.md §7's propagation policy: "envelope validation errors
// never reveal internal details beyond a short reason string"). Cause, if
// set, is logged locally but never serialized.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol: %s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("protocol: %s: %s", e.Kind, e.Reason)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError constructs a typed Error with no underlying cause.
func NewError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// WrapError constructs a typed Error around an underlying cause. The
// cause is retained for logging but must never be included in Reason if
// Reason is meant to cross the wire.
func WrapError(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}
