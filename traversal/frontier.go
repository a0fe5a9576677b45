package traversal

import (
	"container/heap"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
)

// frontierEntry is one candidate server awaiting a /lookup query, paired
// with its precomputed XOR distance to the lookup target so the heap
// never needs the target key again once seeded.
type frontierEntry struct {
	server   protocol.Server
	distance [33]byte
}

// frontierQueue is a min-heap of candidate servers ordered by Kademlia-style
// XOR distance to the lookup target (spec.md §4.8). Grounded on the
// teacher's core/queue.PriorityQueue shape (container/heap over a backing
// slice, Enqueue/Pop-closest), but specialized to the traversal domain
// directly: entries are typed frontierEntry rather than interface{}, and
// the distance metric is baked into Less instead of being supplied by
// the caller as an opaque priority.
type frontierQueue struct {
	entries []frontierEntry
}

// newFrontierQueue seeds a heap from candidates, each keyed by its XOR
// distance to target.
func newFrontierQueue(candidates []protocol.Server, target *crypto.PublicKey) *frontierQueue {
	targetBytes := target.Bytes()
	q := &frontierQueue{entries: make([]frontierEntry, 0, len(candidates))}
	for _, s := range candidates {
		q.entries = append(q.entries, frontierEntry{server: s, distance: xorDistance(s.PublicKey, targetBytes)})
	}
	heap.Init(q)
	return q
}

func xorDistance(pk *crypto.PublicKey, target [33]byte) [33]byte {
	b := pk.Bytes()
	var d [33]byte
	for i := range d {
		d[i] = b[i] ^ target[i]
	}
	return d
}

// closest drains up to width entries off the heap in ascending distance
// order. width<=0 drains the whole queue.
func (q *frontierQueue) closest(width int) []protocol.Server {
	var out []protocol.Server
	for q.Len() > 0 && (width <= 0 || len(out) < width) {
		out = append(out, heap.Pop(q).(frontierEntry).server)
	}
	return out
}

func (q *frontierQueue) Len() int { return len(q.entries) }

func (q *frontierQueue) Less(i, j int) bool {
	a, b := q.entries[i].distance, q.entries[j].distance
	for x := range a {
		if a[x] != b[x] {
			return a[x] < b[x]
		}
	}
	return false
}

func (q *frontierQueue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
}

func (q *frontierQueue) Push(x interface{}) {
	q.entries = append(q.entries, x.(frontierEntry))
}

func (q *frontierQueue) Pop() interface{} {
	n := len(q.entries)
	e := q.entries[n-1]
	q.entries = q.entries[:n-1]
	return e
}
