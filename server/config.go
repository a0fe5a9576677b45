// Package server implements Hyperborea's endpoint handlers (spec component
// C7): the eight /api/v1/* operations, hop-budget loop prevention for send
// forwarding, and the server-side configuration, abuse-resistance and
// persistence surface that a production deployment of the protocol needs
// around them.
//
// Grounded on original_source/hyperborealib/src/rest_api/* request/response
// body shapes and drivers/server/server.rs's dispatch-per-endpoint shape,
// adapted onto the teacher's Config-struct-plus-context idiom
// (server/config, server/internal/pki). The HTTP transport itself is
// explicitly out of scope (spec.md §1); handlers here take and return
// typed, already-decoded envelopes, leaving byte-level transport binding
// to the caller.
package server

import (
	"time"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/inbox"
	"github.com/hyperborea/hyperborea/message"
	"github.com/hyperborea/hyperborea/router"
)

// Config carries every server-tunable parameter enumerated in spec.md §6
// and §5's timeouts table. There is no on-disk loader here (out of scope
// per spec.md §1); callers build this from their own configuration source.
type Config struct {
	ServerKeypair       *crypto.PrivateKey
	ListenAddr          string
	SeedServers         []string
	RoutingSnapshotPath string

	Router router.Config
	Inbox  inbox.Config

	MessageSizeLimit int

	RequestDeadline time.Duration
	LookupTimeout   time.Duration
	ForwardTimeout  time.Duration
	HopBudget       int
	HopBudgetTTL    time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int

	// ExposeStats controls whether GET /api/v1/info's optional stats
	// field is populated from live router/inbox state.
	ExposeStats bool
}

// DefaultConfig returns the spec's normative defaults, requiring only a
// keypair and listen address from the caller.
func DefaultConfig(keypair *crypto.PrivateKey, listenAddr string) Config {
	return Config{
		ServerKeypair:    keypair,
		ListenAddr:       listenAddr,
		Router:           router.DefaultConfig(),
		Inbox:            inbox.DefaultConfig(),
		MessageSizeLimit: message.DefaultMaxPlaintextSize,

		RequestDeadline: 10 * time.Second,
		LookupTimeout:   5 * time.Second,
		ForwardTimeout:  3 * time.Second,
		HopBudget:       3,
		HopBudgetTTL:    time.Minute,

		RateLimitPerSecond: 20,
		RateLimitBurst:     40,

		ExposeStats: true,
	}
}
