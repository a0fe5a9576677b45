package server

import (
	"context"
	"fmt"

	"gopkg.in/op/go-logging.v1"

	"github.com/hyperborea/hyperborea/crypto"
	internalclock "github.com/hyperborea/hyperborea/internal/clock"
	"github.com/hyperborea/hyperborea/inbox"
	"github.com/hyperborea/hyperborea/protocol"
	"github.com/hyperborea/hyperborea/router"
	"github.com/hyperborea/hyperborea/server/metrics"
	"github.com/hyperborea/hyperborea/server/snapshot"
)

// Forwarder issues a single /api/v1/send call against a peer server, for
// the hop-budget-bounded forwarding path of the send handler. The caller
// (the process wiring this package to an actual HTTP client) supplies the
// transport; this package only decides when and what to forward.
type Forwarder interface {
	ForwardSend(ctx context.Context, target protocol.Server, req protocol.Request[SendRequestBody]) (protocol.Response[SendResponseBody], error)
}

// Context is the receiver every endpoint handler hangs off: the server's
// identity, its routing/inbox state, and the collaborators (forwarder,
// persistence, metrics) a full deployment wires in.
//
// Grounded on the teacher's server.Server-as-dispatch-root shape
// (drivers/server/server.rs's Server struct holding the router/inbox/PKI
// it dispatches each request against), adapted to plain typed methods
// rather than an async trait dispatch table, since the HTTP transport
// itself is out of scope here (spec.md §1).
type Context struct {
	cfg Config
	log *logging.Logger

	router *router.Router
	inbox  *inbox.Inbox

	forwarder Forwarder
	snapshot  *snapshot.Store
	metrics   *metrics.Recorder

	hopBudget *hopBudgetTracker
	limiters  *limiterRegistry
}

// New constructs a Context. forwarder may be nil if this server never
// forwards sends (e.g. a test double with no peers); store and rec may be
// nil to disable persistence/metrics respectively.
func New(cfg Config, log *logging.Logger, forwarder Forwarder, store *snapshot.Store, rec *metrics.Recorder) *Context {
	return &Context{
		cfg:       cfg,
		log:       log,
		router:    router.New(cfg.ServerKeypair.PublicKey(), cfg.Router, log),
		inbox:     inbox.New(cfg.Inbox),
		forwarder: forwarder,
		snapshot:  store,
		metrics:   rec,
		hopBudget: newHopBudgetTracker(cfg.HopBudget, cfg.HopBudgetTTL),
		limiters:  newLimiterRegistry(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
}

// Self reports this server's public key.
func (sc *Context) Self() *crypto.PublicKey {
	return sc.cfg.ServerKeypair.PublicKey()
}

// Router exposes the underlying routing state, for callers that drive
// traversal.Run's Transport against this same server in-process (tests,
// or a single-process multi-server simulation).
func (sc *Context) Router() *router.Router {
	return sc.router
}

// LoadSnapshot repopulates the routing table from the configured snapshot
// store, if one is attached. Call once at startup before serving traffic.
func (sc *Context) LoadSnapshot() error {
	if sc.snapshot == nil {
		return nil
	}
	entries, err := sc.snapshot.Load()
	if err != nil {
		return fmt.Errorf("server: load snapshot: %w", err)
	}
	now := internalclock.Timestamp()
	for _, e := range entries {
		if err := sc.router.ObserveClient(e.Client, e.Server, now); err != nil {
			sc.debugf("snapshot: dropping stale entry for %x: %v", e.Client.PublicKey.Bytes(), err)
		}
	}
	return nil
}

// SaveSnapshot persists the current routing table, if a snapshot store is
// attached. Callers typically invoke this periodically and at shutdown.
func (sc *Context) SaveSnapshot() error {
	if sc.snapshot == nil {
		return nil
	}
	return sc.snapshot.Save(sc.routingEntries())
}

func (sc *Context) routingEntries() []protocol.RoutingEntry {
	return sc.router.RoutingEntries()
}

func (sc *Context) debugf(format string, args ...interface{}) {
	if sc.log != nil {
		sc.log.Debugf(format, args...)
	}
}

func (sc *Context) refreshMetrics() {
	if sc.metrics == nil {
		return
	}
	sc.metrics.SetRouterStats(
		len(sc.router.LocalClients()),
		sc.router.RoutingTableSize(),
		len(sc.router.KnownServers()),
		sc.inbox.Depth(),
	)
}
