package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hyperborea/hyperborea/cert"
	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/message"
)

// ClientKind discriminates the ClientInfo tagged variant (spec.md §3):
// a thin client has no directly-reachable address, the others do.
type ClientKind string

const (
	ClientThin   ClientKind = "thin"
	ClientThick  ClientKind = "thick"
	ClientServer ClientKind = "server"
	ClientFile   ClientKind = "file"
)

// ClientInfo is the tagged `{thin} | {thick, address} | {server, address}
// | {file, address}` variant from spec.md §3. Address is an opaque URI,
// meaningless to the protocol core itself.
type ClientInfo struct {
	Kind    ClientKind
	Address string
}

// ThinClient builds a ClientInfo with no reachable address.
func ThinClient() ClientInfo { return ClientInfo{Kind: ClientThin} }

// ThickClient, ServerClient and FileClient build a ClientInfo carrying a
// reachable address.
func ThickClient(address string) ClientInfo  { return ClientInfo{Kind: ClientThick, Address: address} }
func ServerClient(address string) ClientInfo { return ClientInfo{Kind: ClientServer, Address: address} }
func FileClient(address string) ClientInfo   { return ClientInfo{Kind: ClientFile, Address: address} }

// Reachable reports whether this kind of client can be contacted directly
// (as opposed to only through polling its server inbox). Used by the
// router's liveness rule (spec.md §4.5).
func (c ClientInfo) Reachable() bool {
	return c.Kind != ClientThin
}

type clientInfoJSON struct {
	Type    ClientKind `json:"type"`
	Address string     `json:"address,omitempty"`
}

// MarshalJSON renders ClientInfo as {"type": "thin"} or
// {"type": "thick", "address": "..."}.
func (c ClientInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(clientInfoJSON{Type: c.Kind, Address: c.Address})
}

// UnmarshalJSON parses the tagged ClientInfo shape.
func (c *ClientInfo) UnmarshalJSON(data []byte) error {
	var raw clientInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case ClientThin, ClientThick, ClientServer, ClientFile:
		c.Kind = raw.Type
		c.Address = raw.Address
		return nil
	default:
		return fmt.Errorf("protocol: unknown client info type %q", raw.Type)
	}
}

// Client is a participant's identity plus the certificate binding it to
// the server that introduced it, and its connection metadata
// (spec.md §3). The invariant `certificate.token.public_key == <the
// introducing server>` and `verify(certificate, client.public_key)` are
// enforced by cert.Verify at every ingestion point (Router.Connect,
// Router.ObserveClient).
type Client struct {
	PublicKey   *crypto.PublicKey `json:"public_key"`
	Certificate cert.Certificate  `json:"certificate"`
	Info        ClientInfo        `json:"info"`
}

// Server is a peer server's identity and transport-reachable address.
type Server struct {
	PublicKey *crypto.PublicKey `json:"public_key"`
	Address   string            `json:"address"`
}

// RoutingEntry is a server's record of which remote server a client is
// currently bound to, per spec.md §3. ObservedAt is this server's local
// wall-clock reading at the time the entry was (re)validated, used by the
// router's TTL/LRU eviction policy.
type RoutingEntry struct {
	Client      Client
	Server      Server
	Certificate cert.Certificate
	ObservedAt  uint64
}

// Sender identifies where an inbox message came from: the client that
// composed it, and the server that forwarded it to this one (spec.md §3).
type Sender struct {
	Client Client `json:"client"`
	Server Server `json:"server"`
}

// InboxMessage is one queued message as stored by the inbox (spec
// component C6). ReceivedAt is this server's wall-clock reading at
// enqueue time, establishing the per-channel FIFO order.
type InboxMessage struct {
	Sender     Sender          `json:"sender"`
	Channel    string          `json:"channel"`
	Message    message.Message `json:"message"`
	ReceivedAt uint64          `json:"received_at"`
}
