// Package traversal implements Hyperborea's lookup algorithm (spec
// component C8): a bounded-concurrency BFS across the server mesh that
// resolves a client's public key to the server it is reachable through.
//
// Grounded on original_source/hyperborealib/src/drivers/server/traversal/bfs_recursion.rs's
// queue-driven crawl shape (pop a frontier server, query it, push what it
// returns onto the back of the queue) generalized to spec.md §4.8's full
// contract: XOR-distance frontier ordering, a visited set, a depth bound,
// a wall-clock deadline, and bounded concurrency per round rather than the
// original's unbounded one-at-a-time VecDeque drain. frontier.go's
// frontierQueue (see there) supplies the deterministic XOR-distance
// ordering, in the shape of the teacher's core/queue.PriorityQueue but
// specialized directly to this domain rather than kept as a generic
// reused container.
package traversal

import (
	"context"
	"time"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
)

// Disposition discriminates a remote server's answer to a /lookup query.
type Disposition int

const (
	// DispositionLocal - the remote server reports the client directly
	// connected to it.
	DispositionLocal Disposition = iota

	// DispositionRemote - the remote server's routing_table resolves the
	// client to some other server.
	DispositionRemote

	// DispositionHint - the remote server doesn't know the client but
	// suggests other servers to try.
	DispositionHint
)

// Answer is one remote server's response to a /lookup query.
type Answer struct {
	Disposition Disposition
	Client      protocol.Client
	Server      protocol.Server // populated for DispositionRemote
	Available   bool
	Hint        []protocol.Server // populated for DispositionHint
}

// Transport issues a single /lookup query against a remote server. The
// caller (server or client package) supplies the HTTP binding; this
// package only drives the algorithm.
type Transport interface {
	Lookup(ctx context.Context, target protocol.Server, pk *crypto.PublicKey, clientType *protocol.ClientKind) (Answer, error)
}

// Config carries the traversal bounds from spec.md §4.8.
type Config struct {
	Timeout       time.Duration
	MaxDepth      int
	Concurrency   int
	FrontierWidth int
}

// DefaultConfig returns the spec's normative defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxDepth:      4,
		Concurrency:   4,
		FrontierWidth: 8,
	}
}

// Result is the outcome of a completed traversal.
type Result struct {
	Disposition Disposition
	Client      protocol.Client
	Server      protocol.Server
	Available   bool
}

// Run executes the BFS lookup described by spec.md §4.8. self excludes
// this server from ever being queried as part of its own traversal.
// seedFrontier is the initial frontier (typically the caller's
// router.Hint(pk, k, nil)).
func Run(ctx context.Context, transport Transport, self *crypto.PublicKey, pk *crypto.PublicKey, clientType *protocol.ClientKind, seedFrontier []protocol.Server, cfg Config) (Result, error) {
	deadline := time.Now().Add(cfg.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	visited := map[string]bool{keyOf(self): true}
	frontier := dedupeAndMark(seedFrontier, visited, pk, cfg.FrontierWidth)

	depth := 0
	for len(frontier) > 0 && time.Now().Before(deadline) && depth < cfg.MaxDepth {
		answers := queryFrontier(ctx, transport, frontier, pk, clientType, cfg.Concurrency)

		var nextCandidates []protocol.Server
		for _, a := range answers {
			if a == nil {
				continue
			}
			switch a.Disposition {
			case DispositionLocal:
				return Result{Disposition: DispositionRemote, Client: a.Client, Server: a.queriedServer, Available: a.Available}, nil
			case DispositionRemote:
				return Result{Disposition: DispositionRemote, Client: a.Client, Server: a.Server, Available: a.Available}, nil
			case DispositionHint:
				nextCandidates = append(nextCandidates, a.Hint...)
			}
		}

		frontier = dedupeAndMark(nextCandidates, visited, pk, cfg.FrontierWidth)
		depth++
	}

	if !time.Now().Before(deadline) {
		return Result{}, protocol.NewError(protocol.KindTimeout, "lookup deadline exceeded")
	}
	return Result{}, protocol.NewError(protocol.KindNotFound, "lookup exhausted frontier")
}

type answerWithOrigin struct {
	Answer
	queriedServer protocol.Server
}

func queryFrontier(ctx context.Context, transport Transport, frontier []protocol.Server, pk *crypto.PublicKey, clientType *protocol.ClientKind, concurrency int) []*answerWithOrigin {
	results := make([]*answerWithOrigin, len(frontier))
	work := make(chan int)
	done := make(chan struct{})

	worker := func() {
		for i := range work {
			target := frontier[i]
			answer, err := transport.Lookup(ctx, target, pk, clientType)
			if err == nil {
				results[i] = &answerWithOrigin{Answer: answer, queriedServer: target}
			}
		}
		done <- struct{}{}
	}

	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(frontier) {
		concurrency = len(frontier)
	}
	for w := 0; w < concurrency; w++ {
		go worker()
	}

	go func() {
		for i := range frontier {
			select {
			case work <- i:
			case <-ctx.Done():
			}
		}
		close(work)
	}()

	for w := 0; w < concurrency; w++ {
		<-done
	}

	return results
}

// dedupeAndMark drops already-visited candidates, marks the survivors as
// visited, and returns at most width of them, closest-by-XOR-distance
// first, via frontierQueue.
func dedupeAndMark(servers []protocol.Server, visited map[string]bool, target *crypto.PublicKey, width int) []protocol.Server {
	var unvisited []protocol.Server
	seen := make(map[string]bool)
	for _, s := range servers {
		key := keyOf(s.PublicKey)
		if visited[key] || seen[key] {
			continue
		}
		seen[key] = true
		unvisited = append(unvisited, s)
	}

	out := newFrontierQueue(unvisited, target).closest(width)
	for _, s := range out {
		visited[keyOf(s.PublicKey)] = true
	}
	return out
}

func keyOf(pk *crypto.PublicKey) string {
	b := pk.Bytes()
	return string(b[:])
}
