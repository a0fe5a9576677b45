// Package client implements Hyperborea's client runtime (spec component
// C9): the piece that composes the envelopes every other package only
// defines, manages a client's binding to a rendezvous server, and drives
// the lookup traversal (package traversal) across the mesh.
//
// Grounded on original_source/hyperborealib/src/drivers/client/* (the
// Client trait composing connect/announce/lookup/send/poll around a
// single bound-server cursor) and on the teacher's client.Client: a small
// struct wrapping the caller-supplied transport and session state rather
// than owning the network itself, since the HTTP binding is out of scope
// here (spec.md §1).
package client

import (
	"time"

	"github.com/hyperborea/hyperborea/retry"
	"github.com/hyperborea/hyperborea/traversal"
)

// Config carries the client-tunable parameters from spec.md §4.9 and §6.
type Config struct {
	RequestTimeout time.Duration
	Traversal      traversal.Config

	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryJitter    float64

	// PollLimit is the default "how many messages at most" sent on Poll
	// calls that don't specify one; nil/zero means "let the server pick
	// its own default" (spec.md §4.6).
	PollLimit uint64
}

// DefaultConfig returns the spec's normative defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		Traversal:      traversal.DefaultConfig(),

		MaxRetries:     retry.DefaultMaxAttempts,
		RetryBaseDelay: retry.DefaultBaseDelay,
		RetryMaxDelay:  retry.DefaultMaxDelay,
		RetryJitter:    retry.DefaultJitter,

		PollLimit: 64,
	}
}
