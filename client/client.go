package client

import (
	"context"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/hyperborea/hyperborea/cert"
	"github.com/hyperborea/hyperborea/crypto"
	internalclock "github.com/hyperborea/hyperborea/internal/clock"
	"github.com/hyperborea/hyperborea/message"
	"github.com/hyperborea/hyperborea/protocol"
	"github.com/hyperborea/hyperborea/retry"
	"github.com/hyperborea/hyperborea/server"
	"github.com/hyperborea/hyperborea/traversal"
)

// Binding is a client's attestation of which server it is currently
// reachable through (spec.md §4.9's `bound_server: Option<(Server,
// Certificate)>`).
type Binding struct {
	Server      protocol.Server
	Certificate cert.Certificate
}

// Client composes the REST API's operations into the runtime
// described by spec.md §4.9: it holds a keypair, an optional server
// binding, and drives traversal.Run for multi-hop lookups.
type Client struct {
	cfg       Config
	log       *logging.Logger
	keypair   *crypto.PrivateKey
	info      protocol.ClientInfo
	transport Transport

	mu      sync.RWMutex
	binding *Binding
}

// New constructs a Client with no server binding yet; call Connect before
// Send, Announce, or Poll.
func New(cfg Config, log *logging.Logger, keypair *crypto.PrivateKey, info protocol.ClientInfo, transport Transport) *Client {
	return &Client{
		cfg:       cfg,
		log:       log,
		keypair:   keypair,
		info:      info,
		transport: transport,
	}
}

// Self reports this client's public key.
func (c *Client) Self() *crypto.PublicKey {
	return c.keypair.PublicKey()
}

// Binding reports the client's current server binding, if any.
func (c *Client) Binding() (Binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.binding == nil {
		return Binding{}, false
	}
	return *c.binding, true
}

func (c *Client) debugf(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Debugf(format, args...)
	}
}

// withRetry runs fn, retrying with exponential backoff (package retry)
// as long as the error is transient (spec.md §4.9: "transport errors ...
// are retriable by the caller" — this is that retry loop). A non-transient
// error is returned as is; exhausting cfg.MaxRetries returns a
// KindTransport error wrapping the last error seen.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	maxAttempts := c.cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retry.IsTransientError(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		delay := retry.Delay(c.cfg.RetryBaseDelay, c.cfg.RetryMaxDelay, c.cfg.RetryJitter, attempt)
		c.debugf("client: transient error, retrying in %s: %v", delay, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return protocol.WrapError(protocol.KindTransport, "exhausted retries", lastErr)
}

// verifyResponseEnvelope checks that resp's proof-of-key validates against
// the request's proof seed and that the responder signed with the key we
// expected (spec.md §4.9: "envelope-validation failures surface as
// Integrity").
func verifyResponseEnvelope[T any](resp protocol.Response[T], expectedSigner *crypto.PublicKey, requestSeed uint64) error {
	if err := resp.Validate(requestSeed); err != nil {
		return err
	}
	if resp.Status.IsSuccess() && !resp.PublicKey.Equal(expectedSigner) {
		return protocol.NewError(protocol.KindIntegrity, "response signed by unexpected key")
	}
	return nil
}

// asClientErr surfaces a non-success status as a typed error, per
// spec.md §4.9's "any status >= 200 surfaces as a typed error (§7)". This
// is the client-side mirror of server.statusToKind, applied to responses
// this client receives rather than ones it forwards.
func asClientErr[T any](resp protocol.Response[T]) error {
	if resp.Status.IsSuccess() {
		return nil
	}
	return protocol.NewError(kindForStatus(resp.Status), resp.Reason)
}

func kindForStatus(status protocol.Status) protocol.Kind {
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

// Connect binds this client to target (spec.md §4.9): fetch /info,
// verify the server's self-signed proof, build a fresh certificate, and
// submit /connect. The binding is stored only once the server has
// accepted it.
func (c *Client) Connect(ctx context.Context, target protocol.Server) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var info server.InfoResponse
	err := c.withRetry(ctx, func() error {
		var ierr error
		info, ierr = c.transport.Info(ctx, target)
		return ierr
	})
	if err != nil {
		return err
	}
	if err := info.Validate(); err != nil {
		return protocol.WrapError(protocol.KindIntegrity, "server info proof invalid", err)
	}
	if !info.PublicKey.Equal(target.PublicKey) {
		return protocol.NewError(protocol.KindIntegrity, "server info key does not match the server we dialed")
	}

	certificate := cert.Build(c.keypair, target.PublicKey, internalclock.Timestamp())
	req := protocol.NewRequest(c.keypair, server.ConnectRequestBody{Certificate: certificate, Client: c.info})

	var resp protocol.Response[server.ConnectResponseBody]
	err = c.withRetry(ctx, func() error {
		var rerr error
		resp, rerr = c.transport.Connect(ctx, target, req)
		return rerr
	})
	if err != nil {
		return err
	}
	if err := verifyResponseEnvelope(resp, target.PublicKey, req.ProofSeed); err != nil {
		return err
	}
	if err := asClientErr(resp); err != nil {
		return err
	}

	c.mu.Lock()
	c.binding = &Binding{Server: target, Certificate: certificate}
	c.mu.Unlock()
	return nil
}

// Announce pushes this client's current binding to each of targets
// (spec.md §4.9). It requires an existing binding from a prior Connect.
// Every target is attempted regardless of earlier failures; the returned
// slice is one error per target, in order, nil where that target
// succeeded.
func (c *Client) Announce(ctx context.Context, targets []protocol.Server) []error {
	binding, ok := c.Binding()
	if !ok {
		err := protocol.NewError(protocol.KindSchema, "announce requires an existing server binding")
		errs := make([]error, len(targets))
		for i := range errs {
			errs[i] = err
		}
		return errs
	}

	errs := make([]error, len(targets))
	for i, target := range targets {
		errs[i] = c.announceOne(ctx, target, binding)
	}
	return errs
}

func (c *Client) announceOne(ctx context.Context, target protocol.Server, binding Binding) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req := protocol.NewRequest(c.keypair, server.AnnounceRequestBody{
		Kind: server.AnnounceClient,
		Client: protocol.Client{
			PublicKey:   c.Self(),
			Certificate: binding.Certificate,
			Info:        c.info,
		},
		Server: binding.Server,
	})

	var resp protocol.Response[server.AnnounceResponseBody]
	err := c.withRetry(ctx, func() error {
		var rerr error
		resp, rerr = c.transport.Announce(ctx, target, req)
		return rerr
	})
	if err != nil {
		return err
	}
	if err := verifyResponseEnvelope(resp, target.PublicKey, req.ProofSeed); err != nil {
		return err
	}
	return asClientErr(resp)
}

// lookupOnce issues a single /lookup call against target, the primitive
// traversal.Run repeatedly drives to walk the mesh.
func (c *Client) lookupOnce(ctx context.Context, target protocol.Server, pk *crypto.PublicKey, clientType *protocol.ClientKind) (server.LookupResponseBody, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req := protocol.NewRequest(c.keypair, server.LookupRequestBody{PublicKey: pk, ClientType: clientType})

	var resp protocol.Response[server.LookupResponseBody]
	err := c.withRetry(ctx, func() error {
		var rerr error
		resp, rerr = c.transport.Lookup(ctx, target, req)
		return rerr
	})
	if err != nil {
		return server.LookupResponseBody{}, err
	}
	if err := verifyResponseEnvelope(resp, target.PublicKey, req.ProofSeed); err != nil {
		return server.LookupResponseBody{}, err
	}
	if err := asClientErr(resp); err != nil {
		return server.LookupResponseBody{}, err
	}
	return resp.Body, nil
}

// Lookup resolves pk to the server it is reachable through, driving the
// bounded-concurrency BFS in package traversal (spec.md §4.8) seeded from
// this client's current server binding.
func (c *Client) Lookup(ctx context.Context, pk *crypto.PublicKey, clientType *protocol.ClientKind) (traversal.Result, error) {
	binding, ok := c.Binding()
	if !ok {
		return traversal.Result{}, protocol.NewError(protocol.KindSchema, "lookup requires an existing server binding")
	}

	seedFrontier := []protocol.Server{binding.Server}
	return traversal.Run(ctx, &traversalTransport{c: c}, c.Self(), pk, clientType, seedFrontier, c.cfg.Traversal)
}

// Send composes and submits a /send request through the bound server
// (spec.md §4.9, §4.6).
func (c *Client) Send(ctx context.Context, receiver *crypto.PublicKey, channel string, msg message.Message) error {
	binding, ok := c.Binding()
	if !ok {
		return protocol.NewError(protocol.KindSchema, "send requires an existing server binding")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req := protocol.NewRequest(c.keypair, server.SendRequestBody{
		Sender: protocol.Sender{
			Client: protocol.Client{PublicKey: c.Self(), Certificate: binding.Certificate, Info: c.info},
			Server: binding.Server,
		},
		Receiver: receiver,
		Channel:  channel,
		Message:  msg,
	})

	var resp protocol.Response[server.SendResponseBody]
	err := c.withRetry(ctx, func() error {
		var rerr error
		resp, rerr = c.transport.Send(ctx, binding.Server, req)
		return rerr
	})
	if err != nil {
		return err
	}
	if err := verifyResponseEnvelope(resp, binding.Server.PublicKey, req.ProofSeed); err != nil {
		return err
	}
	return asClientErr(resp)
}

// Poll retrieves queued inbox messages for channel from the bound server
// (spec.md §4.6). limit of 0 uses cfg.PollLimit; cfg.PollLimit of 0 in
// turn defers to the server's own default.
func (c *Client) Poll(ctx context.Context, channel string, limit uint64) (server.PollResponseBody, error) {
	binding, ok := c.Binding()
	if !ok {
		return server.PollResponseBody{}, protocol.NewError(protocol.KindSchema, "poll requires an existing server binding")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if limit == 0 {
		limit = c.cfg.PollLimit
	}
	var limitPtr *uint64
	if limit > 0 {
		limitPtr = &limit
	}

	req := protocol.NewRequest(c.keypair, server.PollRequestBody{Channel: channel, Limit: limitPtr})

	var resp protocol.Response[server.PollResponseBody]
	err := c.withRetry(ctx, func() error {
		var rerr error
		resp, rerr = c.transport.Poll(ctx, binding.Server, req)
		return rerr
	})
	if err != nil {
		return server.PollResponseBody{}, err
	}
	if err := verifyResponseEnvelope(resp, binding.Server.PublicKey, req.ProofSeed); err != nil {
		return server.PollResponseBody{}, err
	}
	if err := asClientErr(resp); err != nil {
		return server.PollResponseBody{}, err
	}
	return resp.Body, nil
}
