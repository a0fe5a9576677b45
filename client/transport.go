package client

import (
	"context"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
	"github.com/hyperborea/hyperborea/server"
	"github.com/hyperborea/hyperborea/traversal"
)

// Transport issues six of the REST API's eight calls (all but /clients
// and /servers) against a chosen server.
// The caller supplies the HTTP (or in-process, for tests) binding; this
// package only decides which calls to make, in what order, and how to
// interpret the results (spec.md §1's "core is transport-agnostic").
//
// Grounded on server.Forwarder's shape: a narrow interface naming exactly
// the operations this package needs of the network, mirrored here for
// the client side of the same boundary.
type Transport interface {
	Info(ctx context.Context, target protocol.Server) (server.InfoResponse, error)
	Connect(ctx context.Context, target protocol.Server, req protocol.Request[server.ConnectRequestBody]) (protocol.Response[server.ConnectResponseBody], error)
	Lookup(ctx context.Context, target protocol.Server, req protocol.Request[server.LookupRequestBody]) (protocol.Response[server.LookupResponseBody], error)
	Announce(ctx context.Context, target protocol.Server, req protocol.Request[server.AnnounceRequestBody]) (protocol.Response[server.AnnounceResponseBody], error)
	Send(ctx context.Context, target protocol.Server, req protocol.Request[server.SendRequestBody]) (protocol.Response[server.SendResponseBody], error)
	Poll(ctx context.Context, target protocol.Server, req protocol.Request[server.PollRequestBody]) (protocol.Response[server.PollResponseBody], error)
}

// traversalTransport adapts Client's single-hop lookup call to
// traversal.Transport, so traversal.Run can drive the BFS described in
// spec.md §4.8 using the exact same signed-envelope plumbing as every
// other call this client makes.
type traversalTransport struct {
	c *Client
}

func (t *traversalTransport) Lookup(ctx context.Context, target protocol.Server, pk *crypto.PublicKey, clientType *protocol.ClientKind) (traversal.Answer, error) {
	resp, err := t.c.lookupOnce(ctx, target, pk, clientType)
	if err != nil {
		return traversal.Answer{}, err
	}
	return traversal.Answer{
		Disposition: resp.Disposition,
		Client:      resp.Client,
		Server:      resp.Server,
		Available:   resp.Available,
		Hint:        resp.Hint,
	}, nil
}
