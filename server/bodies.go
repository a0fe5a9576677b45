package server

import (
	"encoding/json"
	"fmt"

	"github.com/hyperborea/hyperborea/cert"
	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/message"
	"github.com/hyperborea/hyperborea/protocol"
	"github.com/hyperborea/hyperborea/traversal"
)

// InfoStats is the optional runtime snapshot carried by InfoResponse,
// supplementing the original's TODO-stubbed stats field per SPEC_FULL.md.
type InfoStats struct {
	ConnectedClients int `json:"connected_clients"`
	RoutingTableSize int `json:"routing_table_size"`
	KnownServers     int `json:"known_servers"`
	InboxDepth       int `json:"inbox_depth"`
}

// InfoResponse answers GET /api/v1/info. Unlike the POST endpoints it
// carries its own proof-of-key directly — there is no request envelope to
// validate against, since the server is announcing itself unprompted.
//
// Grounded on original_source/hyperborealib/src/rest_api/requests/info/mod.rs.
type InfoResponse struct {
	Standard  uint64
	PublicKey *crypto.PublicKey
	ProofSeed uint64
	ProofSign crypto.Signature
	Stats     *InfoStats
}

type infoResponseJSON struct {
	Standard uint64 `json:"standard"`
	Server   struct {
		PublicKey *crypto.PublicKey `json:"public_key"`
	} `json:"server"`
	Proof struct {
		Seed uint64           `json:"seed"`
		Sign crypto.Signature `json:"sign"`
	} `json:"proof"`
	Stats *InfoStats `json:"stats,omitempty"`
}

// MarshalJSON renders {"standard","server":{"public_key"},"proof":{"seed","sign"},"stats"?}.
func (r InfoResponse) MarshalJSON() ([]byte, error) {
	var raw infoResponseJSON
	raw.Standard = r.Standard
	raw.Server.PublicKey = r.PublicKey
	raw.Proof.Seed = r.ProofSeed
	raw.Proof.Sign = r.ProofSign
	raw.Stats = r.Stats
	return json.Marshal(raw)
}

// UnmarshalJSON parses the info response shape.
func (r *InfoResponse) UnmarshalJSON(data []byte) error {
	var raw infoResponseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Standard = raw.Standard
	r.PublicKey = raw.Server.PublicKey
	r.ProofSeed = raw.Proof.Seed
	r.ProofSign = raw.Proof.Sign
	r.Stats = raw.Stats
	return nil
}

// Validate checks InfoResponse's self-contained proof-of-key.
func (r InfoResponse) Validate() error {
	if r.Standard != protocol.StandardVersion {
		return protocol.NewError(protocol.KindSchema, fmt.Sprintf("unsupported standard %d", r.Standard))
	}
	if r.ProofSeed < 1<<63 {
		return protocol.NewError(protocol.KindIntegrity, "proof seed below required high-bit threshold")
	}
	if !crypto.Verify(r.ProofSign, protocol.SeedBytes(r.ProofSeed), r.PublicKey) {
		return protocol.NewError(protocol.KindIntegrity, "proof signature does not verify")
	}
	return nil
}

// ClientsResponse answers GET /api/v1/clients: every client directly
// connected to this server.
type ClientsResponse struct {
	Standard uint64            `json:"standard"`
	Clients  []protocol.Client `json:"clients"`
}

// ServersResponse answers GET /api/v1/servers: every peer server this
// server currently knows about.
type ServersResponse struct {
	Standard uint64            `json:"standard"`
	Servers  []protocol.Server `json:"servers"`
}

// ConnectRequestBody is POST /api/v1/connect's request body.
type ConnectRequestBody struct {
	Certificate cert.Certificate   `json:"certificate"`
	Client      protocol.ClientInfo `json:"client"`
}

// ConnectResponseBody carries no information beyond the envelope's
// success status (spec.md §6).
type ConnectResponseBody struct{}

// LookupRequestBody is POST /api/v1/lookup's request body.
type LookupRequestBody struct {
	PublicKey  *crypto.PublicKey    `json:"public_key"`
	ClientType *protocol.ClientKind `json:"type,omitempty"`
}

// LookupResponseBody is POST /api/v1/lookup's tagged response body: the
// target client is directly connected here (Local), bound to a known peer
// server (Remote), or unknown, with a set of servers to try next (Hint).
//
// Grounded on original_source/hyperborealib/src/rest_api/requests/lookup/response.rs's
// three-variant enum; traversal.Disposition supplies the discriminant so
// this shape lines up exactly with what traversal.Answer expects from a
// client-side lookup transport.
type LookupResponseBody struct {
	Disposition traversal.Disposition
	Client      protocol.Client
	Server      protocol.Server
	Available   bool
	Hint        []protocol.Server
}

type lookupResponseJSON struct {
	Disposition string          `json:"disposition"`
	Result      json.RawMessage `json:"result"`
}

type lookupLocalResult struct {
	Client    protocol.Client `json:"client"`
	Available bool            `json:"available"`
}

type lookupRemoteResult struct {
	Client    protocol.Client `json:"client"`
	Server    protocol.Server `json:"server"`
	Available bool            `json:"available"`
}

type lookupHintResult struct {
	Servers []protocol.Server `json:"servers"`
}

// MarshalJSON renders {"disposition": "local"|"remote"|"hint", "result": {...}}.
func (b LookupResponseBody) MarshalJSON() ([]byte, error) {
	var (
		disposition string
		result      interface{}
	)
	switch b.Disposition {
	case traversal.DispositionLocal:
		disposition = "local"
		result = lookupLocalResult{Client: b.Client, Available: b.Available}
	case traversal.DispositionRemote:
		disposition = "remote"
		result = lookupRemoteResult{Client: b.Client, Server: b.Server, Available: b.Available}
	default:
		disposition = "hint"
		result = lookupHintResult{Servers: b.Hint}
	}

	encodedResult, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(lookupResponseJSON{Disposition: disposition, Result: encodedResult})
}

// UnmarshalJSON parses the tagged lookup response shape.
func (b *LookupResponseBody) UnmarshalJSON(data []byte) error {
	var raw lookupResponseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Disposition {
	case "local":
		var result lookupLocalResult
		if err := json.Unmarshal(raw.Result, &result); err != nil {
			return err
		}
		b.Disposition = traversal.DispositionLocal
		b.Client = result.Client
		b.Available = result.Available

	case "remote":
		var result lookupRemoteResult
		if err := json.Unmarshal(raw.Result, &result); err != nil {
			return err
		}
		b.Disposition = traversal.DispositionRemote
		b.Client = result.Client
		b.Server = result.Server
		b.Available = result.Available

	case "hint":
		var result lookupHintResult
		if err := json.Unmarshal(raw.Result, &result); err != nil {
			return err
		}
		b.Disposition = traversal.DispositionHint
		b.Hint = result.Servers

	default:
		return fmt.Errorf("server: unknown lookup disposition %q", raw.Disposition)
	}
	return nil
}

// AnnounceKind discriminates AnnounceRequestBody's tagged variant.
type AnnounceKind string

const (
	AnnounceClient AnnounceKind = "client"
	AnnounceServer AnnounceKind = "server"
)

// AnnounceRequestBody is POST /api/v1/announce's tagged request body: push
// knowledge of a client's binding, or of a bare server, to the callee.
//
// Grounded on original_source/hyperborealib/src/rest_api/requests/announce/request.rs.
type AnnounceRequestBody struct {
	Kind   AnnounceKind
	Client protocol.Client // populated only when Kind == AnnounceClient
	Server protocol.Server
}

type announceRequestJSON struct {
	Announce AnnounceKind     `json:"announce"`
	Client   *protocol.Client `json:"client,omitempty"`
	Server   protocol.Server  `json:"server"`
}

// MarshalJSON renders {"announce": "client"|"server", client?, server}.
func (b AnnounceRequestBody) MarshalJSON() ([]byte, error) {
	raw := announceRequestJSON{Announce: b.Kind, Server: b.Server}
	if b.Kind == AnnounceClient {
		client := b.Client
		raw.Client = &client
	}
	return json.Marshal(raw)
}

// UnmarshalJSON parses the tagged announce request shape.
func (b *AnnounceRequestBody) UnmarshalJSON(data []byte) error {
	var raw announceRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Announce {
	case AnnounceClient:
		if raw.Client == nil {
			return fmt.Errorf("server: announce: client field required for %q", raw.Announce)
		}
		b.Kind = AnnounceClient
		b.Client = *raw.Client
	case AnnounceServer:
		b.Kind = AnnounceServer
	default:
		return fmt.Errorf("server: announce: unknown variant %q", raw.Announce)
	}
	b.Server = raw.Server
	return nil
}

// AnnounceResponseBody carries no information beyond the envelope's
// success status.
type AnnounceResponseBody struct{}

// SendRequestBody is POST /api/v1/send's request body.
//
// Grounded on original_source/hyperborealib/src/rest_api/send/{request,sender}.rs.
type SendRequestBody struct {
	Sender   protocol.Sender
	Receiver *crypto.PublicKey
	Channel  string
	Message  message.Message
}

type sendRequestJSON struct {
	Sender   protocol.Sender `json:"sender"`
	Receiver struct {
		PublicKey *crypto.PublicKey `json:"public_key"`
	} `json:"receiver"`
	Channel string          `json:"channel"`
	Message message.Message `json:"message"`
}

// MarshalJSON renders {"sender","receiver":{"public_key"},"channel","message"}.
func (b SendRequestBody) MarshalJSON() ([]byte, error) {
	var raw sendRequestJSON
	raw.Sender = b.Sender
	raw.Receiver.PublicKey = b.Receiver
	raw.Channel = b.Channel
	raw.Message = b.Message
	return json.Marshal(raw)
}

// UnmarshalJSON parses the send request shape.
func (b *SendRequestBody) UnmarshalJSON(data []byte) error {
	var raw sendRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Sender = raw.Sender
	b.Receiver = raw.Receiver.PublicKey
	b.Channel = raw.Channel
	b.Message = raw.Message
	return nil
}

// SendResponseBody carries no information beyond the envelope's success
// status (or, on forwarding, the downstream server's status verbatim).
type SendResponseBody struct{}

// PollRequestBody is POST /api/v1/poll's request body. Limit is nil for
// "use the server's default".
type PollRequestBody struct {
	Channel string  `json:"channel"`
	Limit   *uint64 `json:"limit"`
}

// PollResponseBody is POST /api/v1/poll's response body.
//
// protocol.InboxMessage already matches the original's MessageInfo shape
// (sender, channel, message, received_at) field-for-field, so it is reused
// directly rather than introducing a parallel wire type.
type PollResponseBody struct {
	Messages  []protocol.InboxMessage `json:"messages"`
	Remaining uint64                  `json:"remaining"`
}
