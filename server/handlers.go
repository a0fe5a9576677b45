package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperborea/hyperborea/crypto"
	internalclock "github.com/hyperborea/hyperborea/internal/clock"
	"github.com/hyperborea/hyperborea/protocol"
	"github.com/hyperborea/hyperborea/traversal"
)

// Dispatch runs the preamble (proof-of-key validation, rate limiting)
// and postamble (success/error envelope wrapping) that spec.md §4.7
// specifies as common to every POST endpoint, around a handler that
// only needs to compute the typed result.
//
// Grounded on the teacher's pattern of a small number of shared
// request-handling steps wrapping endpoint-specific bodies (seen across
// drivers/server/server.rs's per-route dispatch_*); expressed here as a
// single generic function since Go lacks the Rust macro the original
// leaned on to avoid repeating the preamble/postamble per endpoint.
func Dispatch[Req, Resp any](sc *Context, endpoint string, ctx context.Context, req protocol.Request[Req], handle func(context.Context, protocol.Request[Req]) (Resp, error)) protocol.Response[Resp] {
	if err := req.Validate(); err != nil {
		status := asProtoErr(err).Kind.Status()
		sc.observeStatus(endpoint, status)
		return protocol.NewErrorResponse[Resp](status, asProtoErr(err).Reason)
	}

	if !sc.limiters.Allow(req.PublicKey) {
		sc.observeStatus(endpoint, protocol.StatusInternalError)
		return protocol.NewErrorResponse[Resp](protocol.StatusInternalError, "rate limit exceeded")
	}

	resp, err := handle(ctx, req)
	if err != nil {
		perr := asProtoErr(err)
		status := perr.Kind.Status()
		if status == 0 {
			status = protocol.StatusInternalError
		}
		sc.observeStatus(endpoint, status)
		return protocol.NewErrorResponse[Resp](status, perr.Reason)
	}

	sc.observeStatus(endpoint, protocol.StatusSuccess)
	return protocol.NewSuccessResponse(protocol.StatusSuccess, sc.cfg.ServerKeypair, req.ProofSeed, resp)
}

func (sc *Context) observeStatus(endpoint string, status protocol.Status) {
	sc.refreshMetrics()
	if sc.metrics != nil {
		sc.metrics.ObserveRequest(endpoint, status.String())
	}
}

// asProtoErr coerces any error into *protocol.Error, mapping unrecognized
// errors to KindInternal rather than leaking their text onto the wire
// (spec.md §7's propagation policy).
func asProtoErr(err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	return protocol.WrapError(protocol.KindInternal, "internal server error", err)
}

// statusToKind reverse-maps a forwarded peer's response status back to a
// Kind, so a forwarding failure can be threaded through the same
// NewErrorResponse path as any other handler error while still carrying
// the downstream server's status on the wire verbatim (spec.md §7). The
// mapping is the exact inverse of Kind.Status's, so nothing is lost in
// the round trip for the eight defined statuses.
func statusToKind(status protocol.Status) protocol.Kind {
	switch status {
	case protocol.StatusCertificateInvalid:
		return protocol.KindIntegrity
	case protocol.StatusInvalidRequest:
		return protocol.KindSchema
	case protocol.StatusClientNotFound:
		return protocol.KindNotFound
	case protocol.StatusLookupTimeout:
		return protocol.KindTimeout
	case protocol.StatusNotConnected:
		return protocol.KindNotConnected
	case protocol.StatusInboxFull:
		return protocol.KindInboxFull
	case protocol.StatusMessageTooLarge:
		return protocol.KindTooLarge
	default:
		return protocol.KindInternal
	}
}

// Info answers GET /api/v1/info: this server's identity and a fresh
// self-signed proof-of-key, plus optional live stats (spec.md §6; stats
// itself is a gap the original left as a TODO, filled per SPEC_FULL.md).
func (sc *Context) Info() InfoResponse {
	seed := crypto.SafeRandomSeed()
	resp := InfoResponse{
		Standard:  protocol.StandardVersion,
		PublicKey: sc.Self(),
		ProofSeed: seed,
		ProofSign: crypto.Sign(sc.cfg.ServerKeypair, protocol.SeedBytes(seed)),
	}
	if sc.cfg.ExposeStats {
		resp.Stats = &InfoStats{
			ConnectedClients: len(sc.router.LocalClients()),
			RoutingTableSize: sc.router.RoutingTableSize(),
			KnownServers:     len(sc.router.KnownServers()),
			InboxDepth:       sc.inbox.Depth(),
		}
	}
	return resp
}

// Clients answers GET /api/v1/clients.
func (sc *Context) Clients() ClientsResponse {
	return ClientsResponse{Standard: protocol.StandardVersion, Clients: sc.router.LocalClients()}
}

// Servers answers GET /api/v1/servers.
func (sc *Context) Servers() ServersResponse {
	return ServersResponse{Standard: protocol.StandardVersion, Servers: sc.router.KnownServers()}
}

// Connect answers POST /api/v1/connect: bind the calling client to this
// server under the certificate it presents (spec.md §4.7).
func (sc *Context) Connect(ctx context.Context, req protocol.Request[ConnectRequestBody]) protocol.Response[ConnectResponseBody] {
	return Dispatch(sc, "connect", ctx, req, func(_ context.Context, req protocol.Request[ConnectRequestBody]) (ConnectResponseBody, error) {
		now := internalclock.Timestamp()
		if err := sc.router.Connect(req.PublicKey, req.Body.Certificate, req.Body.Client, now); err != nil {
			return ConnectResponseBody{}, err
		}
		return ConnectResponseBody{}, nil
	})
}

// Lookup answers POST /api/v1/lookup: a single-hop resolution of one
// target public key against this server's own router state.
//
// This handler deliberately does NOT itself run the multi-hop BFS
// described in spec.md §4.8 — that traversal is driven by the caller (the
// client package), which repeatedly issues single-hop lookups like this
// one against a growing frontier. A /lookup handler that recursively
// traversed the mesh on every incoming query would have no bound on
// fan-out across a ring of servers; keeping this handler a cheap,
// single-hop responder is what makes the hop/depth bounds in §4.8
// meaningful at all.
func (sc *Context) Lookup(ctx context.Context, req protocol.Request[LookupRequestBody]) protocol.Response[LookupResponseBody] {
	return Dispatch(sc, "lookup", ctx, req, func(_ context.Context, req protocol.Request[LookupRequestBody]) (LookupResponseBody, error) {
		now := internalclock.Timestamp()

		// A client known under a different type than requested is a miss:
		// the caller gets a hint and keeps traversing.
		typeMatches := func(client protocol.Client) bool {
			return req.Body.ClientType == nil || client.Info.Kind == *req.Body.ClientType
		}

		if client, available, found := sc.router.LookupLocal(req.Body.PublicKey, now); found && typeMatches(client) {
			return LookupResponseBody{Disposition: traversal.DispositionLocal, Client: client, Available: available}, nil
		}

		if client, server, available, found := sc.router.LookupRemote(req.Body.PublicKey); found && typeMatches(client) {
			return LookupResponseBody{
				Disposition: traversal.DispositionRemote,
				Client:      client,
				Server:      server,
				Available:   available,
			}, nil
		}

		hint := sc.router.Hint(req.Body.PublicKey, sc.cfg.LookupHintWidth(), nil)
		return LookupResponseBody{Disposition: traversal.DispositionHint, Hint: hint}, nil
	})
}

// Announce answers POST /api/v1/announce: record knowledge of a client's
// binding, or of a bare peer server (spec.md §4.7).
func (sc *Context) Announce(ctx context.Context, req protocol.Request[AnnounceRequestBody]) protocol.Response[AnnounceResponseBody] {
	return Dispatch(sc, "announce", ctx, req, func(_ context.Context, req protocol.Request[AnnounceRequestBody]) (AnnounceResponseBody, error) {
		now := internalclock.Timestamp()

		switch req.Body.Kind {
		case AnnounceClient:
			if err := sc.router.ObserveClient(req.Body.Client, req.Body.Server, now); err != nil {
				return AnnounceResponseBody{}, err
			}
		case AnnounceServer:
			sc.router.ObserveServer(req.Body.Server, now)
		default:
			return AnnounceResponseBody{}, protocol.NewError(protocol.KindSchema, "unknown announce variant")
		}
		return AnnounceResponseBody{}, nil
	})
}

// Send answers POST /api/v1/send (spec.md §4.7): deliver locally, forward
// to a known remote binding within the hop budget, or report the client
// unreachable.
func (sc *Context) Send(ctx context.Context, req protocol.Request[SendRequestBody]) protocol.Response[SendResponseBody] {
	return Dispatch(sc, "send", ctx, req, func(ctx context.Context, req protocol.Request[SendRequestBody]) (SendResponseBody, error) {
		if size, err := req.Body.Message.EncodedSize(); err != nil {
			return SendResponseBody{}, protocol.WrapError(protocol.KindSchema, "malformed message encoding", err)
		} else if size > sc.cfg.MessageSizeLimit {
			return SendResponseBody{}, protocol.NewError(protocol.KindTooLarge, "message exceeds configured size limit")
		}

		now := internalclock.Timestamp()

		if _, _, found := sc.router.LookupLocal(req.Body.Receiver, now); found {
			msg := protocol.InboxMessage{
				Sender:     req.Body.Sender,
				Channel:    req.Body.Channel,
				Message:    req.Body.Message,
				ReceivedAt: now,
			}
			if err := sc.inbox.Push(req.Body.Receiver, msg); err != nil {
				return SendResponseBody{}, err
			}
			return SendResponseBody{}, nil
		}

		if _, target, _, found := sc.router.LookupRemote(req.Body.Receiver); found {
			return sc.forwardSend(ctx, target, req)
		}

		return SendResponseBody{}, protocol.NewError(protocol.KindNotConnected, "receiver not connected to this server")
	})
}

func (sc *Context) forwardSend(ctx context.Context, target protocol.Server, req protocol.Request[SendRequestBody]) (SendResponseBody, error) {
	if sc.forwarder == nil {
		return SendResponseBody{}, protocol.NewError(protocol.KindNotConnected, "no forwarder configured for remote delivery")
	}

	if !sc.hopBudget.Consume(req.ProofSeed, req.Body.Sender.Client.PublicKey, time.Now()) {
		return SendResponseBody{}, protocol.NewError(protocol.KindNotConnected, "forwarding hop budget exhausted")
	}

	forwardCtx, cancel := context.WithTimeout(ctx, sc.cfg.ForwardTimeout)
	defer cancel()

	// Re-sign only the transport envelope with this server's own key,
	// propagating the same proof seed forward so hop-budget tracking
	// keyed by (seed, origin sender) stays coherent across every hop of
	// the chain (spec.md §4.7's "re-signing only the transport envelope,
	// not the inner Message").
	forwarded := protocol.Request[SendRequestBody]{
		Standard:  protocol.StandardVersion,
		PublicKey: sc.Self(),
		ProofSeed: req.ProofSeed,
		ProofSign: crypto.Sign(sc.cfg.ServerKeypair, protocol.SeedBytes(req.ProofSeed)),
		Body:      req.Body,
	}

	resp, err := sc.forwarder.ForwardSend(forwardCtx, target, forwarded)
	if err != nil {
		return SendResponseBody{}, protocol.WrapError(protocol.KindTimeout, "forwarding request failed", err)
	}
	if !resp.Status.IsSuccess() {
		return SendResponseBody{}, protocol.NewError(statusToKind(resp.Status), fmt.Sprintf("downstream server: %s", resp.Reason))
	}
	return resp.Body, nil
}

// Poll answers POST /api/v1/poll (spec.md §4.7).
func (sc *Context) Poll(ctx context.Context, req protocol.Request[PollRequestBody]) protocol.Response[PollResponseBody] {
	return Dispatch(sc, "poll", ctx, req, func(_ context.Context, req protocol.Request[PollRequestBody]) (PollResponseBody, error) {
		limit := 0
		if req.Body.Limit != nil {
			limit = int(*req.Body.Limit)
		}
		messages, remaining := sc.inbox.Poll(req.PublicKey, req.Body.Channel, limit)
		return PollResponseBody{Messages: messages, Remaining: uint64(remaining)}, nil
	})
}

// LookupHintWidth reports how many candidate servers a /lookup miss
// should hint back, matching the traversal package's default frontier
// width so client-driven BFS rounds stay consistent with what servers
// actually return.
func (cfg Config) LookupHintWidth() int {
	return 8
}
