package server

import (
	"sync"
	"time"

	"github.com/hyperborea/hyperborea/crypto"
)

// hopBudgetKey identifies one in-flight send forwarding chain. seed is the
// request's proof_seed, propagated unchanged by every relaying server
// (only ProofSign is recomputed per hop, per spec.md §4.7's "re-signing
// only the transport envelope"); sender is the origin client's public key
// embedded in SendRequestBody.Sender.Client, which likewise stays constant
// across every hop of the chain. Keying on these two together lets a
// server distinguish two distinct sends that happen to share a seed from
// the same sender (vanishingly unlikely given SafeRandomSeed, but the
// pairing is what the spec text actually describes).
type hopBudgetKey struct {
	seed   uint64
	sender [33]byte
}

type hopBudgetEntry struct {
	remaining int
	expires   time.Time
}

// hopBudgetTracker bounds how many times a single send forwarding chain
// may hop across this server's lifetime view of it, preventing routing
// loops (spec.md §4.7: "forwarding hops are bounded (default 3) to
// prevent loops; each hop decrements a server-local hop budget tracked
// per (request seed, sender pubkey)"). Entries expire after ttl so the
// map doesn't grow unboundedly across the server's uptime.
type hopBudgetTracker struct {
	mu      sync.Mutex
	budget  int
	ttl     time.Duration
	entries map[hopBudgetKey]hopBudgetEntry
}

func newHopBudgetTracker(budget int, ttl time.Duration) *hopBudgetTracker {
	return &hopBudgetTracker{
		budget:  budget,
		ttl:     ttl,
		entries: make(map[hopBudgetKey]hopBudgetEntry),
	}
}

// Consume decrements the hop budget for (seed, sender), creating it at the
// configured budget on first sight, and reports whether a hop is still
// allowed. now is passed in rather than read via time.Now() so tests can
// drive expiry deterministically.
func (t *hopBudgetTracker) Consume(seed uint64, sender *crypto.PublicKey, now time.Time) bool {
	key := hopBudgetKey{seed: seed, sender: sender.Bytes()}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked(now)

	entry, ok := t.entries[key]
	if !ok || entry.expires.Before(now) {
		entry = hopBudgetEntry{remaining: t.budget, expires: now.Add(t.ttl)}
	}
	if entry.remaining <= 0 {
		t.entries[key] = entry
		return false
	}
	entry.remaining--
	t.entries[key] = entry
	return true
}

// sweepLocked drops every expired entry. Called inline from Consume
// rather than on a timer, matching router.Sweep's caller-driven idiom
// (no background goroutine owned by this package).
func (t *hopBudgetTracker) sweepLocked(now time.Time) {
	for k, e := range t.entries {
		if e.expires.Before(now) {
			delete(t.entries, k)
		}
	}
}
