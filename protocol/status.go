// Package protocol implements Hyperborea's envelope codec (spec component
// C2): the Request/Response wire shapes with mutual proof-of-key, the
// status code table, and the data-model types every endpoint exchanges.
//
// Grounded on original_source/hyperborealib/src/rest_api/{request,response,status,types}.rs.
package protocol

// Status is a response status code (spec.md §4.2's normative table).
type Status uint64

const (
	// StatusSuccess (100) - the request was handled successfully.
	StatusSuccess Status = 100

	// StatusInternalError (200) - unexpected server-side failure.
	StatusInternalError Status = 200

	// StatusInvalidRequest (300) - malformed request schema.
	StatusInvalidRequest Status = 300

	// StatusCertificateInvalid (301) - request proof-of-key failed to
	// validate.
	StatusCertificateInvalid Status = 301

	// StatusLookupTimeout (310) - traversal exhausted its deadline.
	StatusLookupTimeout Status = 310

	// StatusClientNotFound (311) - traversal exhausted its frontier.
	StatusClientNotFound Status = 311

	// StatusNotConnected (320) - target client not connected to this
	// server, and not known in the routing table.
	StatusNotConnected Status = 320

	// StatusInboxFull (321) - target client's inbox is at capacity.
	StatusInboxFull Status = 321

	// StatusMessageTooLarge (322) - message plaintext exceeds the
	// configured size ceiling.
	StatusMessageTooLarge Status = 322
)

// IsSuccess reports whether the status is in the 1xx success range, per
// spec.md §4.2's Response envelope discriminant.
func (s Status) IsSuccess() bool {
	return s >= 100 && s < 200
}

var statusNames = map[Status]string{
	StatusSuccess:            "success",
	StatusInternalError:      "internal server failure",
	StatusInvalidRequest:     "invalid request",
	StatusCertificateInvalid: "request certificate validation failed",
	StatusLookupTimeout:      "lookup timeout",
	StatusClientNotFound:     "client not found",
	StatusNotConnected:       "target client not connected to this server",
	StatusInboxFull:          "target client's inbox full",
	StatusMessageTooLarge:    "message too large",
}

// String returns the status's normative short description.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown status"
}
