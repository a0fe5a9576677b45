package server

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/hyperborea/hyperborea/crypto"
)

// limiterRegistry hands out one token-bucket rate limiter per distinct
// client public key, for the abuse resistance spec.md §5 requires of
// every endpoint handler.
//
// Grounded on _examples/udisondev-sprut/internal/router/peer.go's
// Peer.limiter (rate.NewLimiter(rate.Limit(rateLimitPerSec),
// rateLimitBurst) per connected peer), generalized from one limiter per
// live connection to one limiter per public key so the budget survives a
// client reconnecting under the same identity.
type limiterRegistry struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[[33]byte]*rate.Limiter
}

func newLimiterRegistry(requestsPerSecond float64, burst int) *limiterRegistry {
	return &limiterRegistry{
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[[33]byte]*rate.Limiter),
	}
}

func (r *limiterRegistry) limiterFor(pk *crypto.PublicKey) *rate.Limiter {
	key := pk.Bytes()

	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.rps, r.burst)
		r.limiters[key] = l
	}
	return l
}

// Allow reports whether pk may make one more request right now, consuming
// a token if so.
func (r *limiterRegistry) Allow(pk *crypto.PublicKey) bool {
	return r.limiterFor(pk).Allow()
}
