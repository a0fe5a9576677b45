// Package router implements Hyperborea's server-side routing state (spec
// component C5): directly connected local clients, known peer servers,
// and the client→server routing table learned by gossip.
//
// Grounded on the teacher's server/internal/pki.pki: a single struct
// embedding sync.RWMutex over a handful of maps, guarded by one lock
// rather than per-map locks, with capacity (LRU) eviction done inline on
// mutation and TTL eviction done by an explicit Sweep call rather than by
// a separate worker. The map/refresh shape is
// also informed by original_source/hyperborealib/src/drivers/server/router
// (index_local_client / index_remote_client / lookup_* operations), though
// that Router trait is file-backed; this one is in-memory, matching
// spec.md §5's "core does no blocking I/O" constraint.
package router

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/hyperborea/hyperborea/cert"
	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"

	"gopkg.in/op/go-logging.v1"
)

// Config carries the retention and liveness parameters from spec.md §4.5.
type Config struct {
	RoutingTableCap int
	KnownServersCap int
	EntryTTL        time.Duration
	LivenessWindow  time.Duration
}

// DefaultConfig returns the spec's normative defaults.
func DefaultConfig() Config {
	return Config{
		RoutingTableCap: 10000,
		KnownServersCap: 1000,
		EntryTTL:        time.Hour,
		LivenessWindow:  60 * time.Second,
	}
}

type localRecord struct {
	client     protocol.Client
	lastSeen   uint64
	lruElement *list.Element
}

type serverRecord struct {
	server   protocol.Server
	lastSeen uint64
}

type routingRecord struct {
	entry      protocol.RoutingEntry
	lruElement *list.Element
}

// Router is a server's view of local clients, known peer servers, and the
// remote routing table. The zero value is not usable; construct with New.
type Router struct {
	sync.RWMutex

	self *crypto.PublicKey
	cfg  Config
	log  *logging.Logger

	localClients map[string]*localRecord
	localLRU     *list.List // oldest-first; bounds eviction order only, not capped itself

	knownServers map[string]*serverRecord
	serverLRU    *list.List
	serverLRUIdx map[string]*list.Element

	routingTable map[string]*routingRecord
	routingLRU   *list.List
}

// New constructs an empty Router for a server identified by self.
func New(self *crypto.PublicKey, cfg Config, log *logging.Logger) *Router {
	return &Router{
		self:         self,
		cfg:          cfg,
		log:          log,
		localClients: make(map[string]*localRecord),
		localLRU:     list.New(),
		knownServers: make(map[string]*serverRecord),
		serverLRU:    list.New(),
		serverLRUIdx: make(map[string]*list.Element),
		routingTable: make(map[string]*routingRecord),
		routingLRU:   list.New(),
	}
}

func keyOf(pk *crypto.PublicKey) string {
	b := pk.Bytes()
	return string(b[:])
}

func (r *Router) debugf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Debugf(format, args...)
	}
}

// Connect binds clientKey to this server under certificate, replacing any
// existing local or routed binding for the same client only if the
// certificate strictly supersedes it (spec.md §4.5). Returns a KindIntegrity
// error if the certificate does not verify against this server's key.
func (r *Router) Connect(clientKey *crypto.PublicKey, certificate cert.Certificate, info protocol.ClientInfo, now uint64) error {
	if !cert.Verify(certificate, clientKey, r.self) {
		return protocol.NewError(protocol.KindIntegrity, "connect certificate does not verify")
	}

	key := keyOf(clientKey)

	r.Lock()
	defer r.Unlock()

	if existing, ok := r.localClients[key]; ok {
		if !cert.Supersedes(certificate, existing.client.Certificate) {
			return protocol.NewError(protocol.KindIntegrity, "connect certificate does not supersede existing binding")
		}
	}
	if routed, ok := r.routingTable[key]; ok {
		if !cert.Supersedes(certificate, routed.entry.Certificate) {
			return protocol.NewError(protocol.KindIntegrity, "connect certificate does not supersede existing remote binding")
		}
	}

	client := protocol.Client{PublicKey: clientKey, Certificate: certificate, Info: info}

	if existing, ok := r.localClients[key]; ok {
		existing.client = client
		existing.lastSeen = now
		r.localLRU.MoveToBack(existing.lruElement)
		return nil
	}

	rec := &localRecord{client: client, lastSeen: now}
	rec.lruElement = r.localLRU.PushBack(key)
	r.localClients[key] = rec
	r.debugf("connected local client %x", clientKey.Bytes())
	return nil
}

// Disconnect removes clientKey's local binding. It does not retract any
// remote announcements of this client; those expire by TTL (spec.md §4.5).
func (r *Router) Disconnect(clientKey *crypto.PublicKey) {
	key := keyOf(clientKey)

	r.Lock()
	defer r.Unlock()

	if rec, ok := r.localClients[key]; ok {
		r.localLRU.Remove(rec.lruElement)
		delete(r.localClients, key)
		r.debugf("disconnected local client %x", clientKey.Bytes())
	}
}

// ObserveClient records that client is bound to server, per a certificate
// the caller already obtained (e.g. via announce or a clients listing).
// The strictly-newer-auth_date-wins, tie-break-by-signature rule from
// spec.md §3/§4.5 governs whether this replaces an existing routing_table
// entry.
func (r *Router) ObserveClient(client protocol.Client, server protocol.Server, now uint64) error {
	if !cert.Verify(client.Certificate, client.PublicKey, server.PublicKey) {
		return protocol.NewError(protocol.KindIntegrity, "observed client certificate does not verify")
	}

	key := keyOf(client.PublicKey)

	r.Lock()
	defer r.Unlock()

	if existing, ok := r.routingTable[key]; ok {
		if !cert.Supersedes(client.Certificate, existing.entry.Certificate) {
			r.observeServerLocked(server, now)
			return nil
		}
		existing.entry = protocol.RoutingEntry{
			Client:      client,
			Server:      server,
			Certificate: client.Certificate,
			ObservedAt:  now,
		}
		r.routingLRU.MoveToBack(existing.lruElement)
	} else {
		entry := protocol.RoutingEntry{
			Client:      client,
			Server:      server,
			Certificate: client.Certificate,
			ObservedAt:  now,
		}
		rec := &routingRecord{entry: entry}
		rec.lruElement = r.routingLRU.PushBack(key)
		r.routingTable[key] = rec
		r.evictRoutingLocked()
	}

	r.observeServerLocked(server, now)
	return nil
}

// ObserveServer upserts server into the known-servers set.
func (r *Router) ObserveServer(server protocol.Server, now uint64) {
	r.Lock()
	defer r.Unlock()
	r.observeServerLocked(server, now)
}

func (r *Router) observeServerLocked(server protocol.Server, now uint64) {
	key := keyOf(server.PublicKey)
	if existing, ok := r.knownServers[key]; ok {
		existing.server = server
		existing.lastSeen = now
		r.serverLRU.MoveToBack(r.serverLRUIdx[key])
		return
	}
	r.knownServers[key] = &serverRecord{server: server, lastSeen: now}
	r.serverLRUIdx[key] = r.serverLRU.PushBack(key)
	r.evictServersLocked()
}

func (r *Router) evictRoutingLocked() {
	for len(r.routingTable) > r.cfg.RoutingTableCap {
		front := r.routingLRU.Front()
		if front == nil {
			return
		}
		key := front.Value.(string)
		r.routingLRU.Remove(front)
		delete(r.routingTable, key)
	}
}

func (r *Router) evictServersLocked() {
	for len(r.knownServers) > r.cfg.KnownServersCap {
		front := r.serverLRU.Front()
		if front == nil {
			return
		}
		key := front.Value.(string)
		r.serverLRU.Remove(front)
		delete(r.knownServers, key)
		delete(r.serverLRUIdx, key)
	}
}

// Sweep evicts routing_table and known_servers entries not refreshed
// within the configured TTL (spec.md §4.5). Local clients are never
// TTL-evicted; they leave only via Disconnect.
func (r *Router) Sweep(now uint64) {
	ttl := uint64(r.cfg.EntryTTL / time.Second)

	r.Lock()
	defer r.Unlock()

	for key, rec := range r.routingTable {
		if now > rec.entry.ObservedAt+ttl {
			r.routingLRU.Remove(rec.lruElement)
			delete(r.routingTable, key)
		}
	}
	for key, rec := range r.knownServers {
		if now > rec.lastSeen+ttl {
			if elem, ok := r.serverLRUIdx[key]; ok {
				r.serverLRU.Remove(elem)
				delete(r.serverLRUIdx, key)
			}
			delete(r.knownServers, key)
		}
	}
}

// LookupLocal reports the directly-connected client for pk, if any, and
// whether it is currently "available" per spec.md §4.5's liveness rule:
// thin clients must have been seen within the liveness window; other
// client kinds are always considered available (they're reachable
// directly regardless of when this server last heard from them).
func (r *Router) LookupLocal(pk *crypto.PublicKey, now uint64) (client protocol.Client, available bool, found bool) {
	r.RLock()
	defer r.RUnlock()

	rec, ok := r.localClients[keyOf(pk)]
	if !ok {
		return protocol.Client{}, false, false
	}

	if rec.client.Info.Reachable() {
		return rec.client, true, true
	}

	window := uint64(r.cfg.LivenessWindow / time.Second)
	return rec.client, now <= rec.lastSeen+window, true
}

// LookupRemote reports the routing_table binding for pk, if both the
// entry and its server are known (spec.md §4.5).
func (r *Router) LookupRemote(pk *crypto.PublicKey) (client protocol.Client, server protocol.Server, available bool, found bool) {
	r.RLock()
	defer r.RUnlock()

	rec, ok := r.routingTable[keyOf(pk)]
	if !ok {
		return protocol.Client{}, protocol.Server{}, false, false
	}
	if _, known := r.knownServers[keyOf(rec.entry.Server.PublicKey)]; !known {
		return protocol.Client{}, protocol.Server{}, false, false
	}
	return rec.entry.Client, rec.entry.Server, true, true
}

// LookupServer reports a known server's record by its public key.
func (r *Router) LookupServer(pk *crypto.PublicKey) (protocol.Server, bool) {
	r.RLock()
	defer r.RUnlock()
	rec, ok := r.knownServers[keyOf(pk)]
	if !ok {
		return protocol.Server{}, false
	}
	return rec.server, true
}

// RoutingTableSize reports the current number of routing_table entries,
// for observability (server/metrics).
func (r *Router) RoutingTableSize() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.routingTable)
}

// RoutingEntries returns a snapshot of every routing_table entry, for
// persistence (server/snapshot).
func (r *Router) RoutingEntries() []protocol.RoutingEntry {
	r.RLock()
	defer r.RUnlock()
	out := make([]protocol.RoutingEntry, 0, len(r.routingTable))
	for _, rec := range r.routingTable {
		out = append(out, rec.entry)
	}
	return out
}

// LocalClients returns a snapshot of every directly-connected client.
func (r *Router) LocalClients() []protocol.Client {
	r.RLock()
	defer r.RUnlock()
	out := make([]protocol.Client, 0, len(r.localClients))
	for _, rec := range r.localClients {
		out = append(out, rec.client)
	}
	return out
}

// KnownServers returns a snapshot of every known peer server.
func (r *Router) KnownServers() []protocol.Server {
	r.RLock()
	defer r.RUnlock()
	out := make([]protocol.Server, 0, len(r.knownServers))
	for _, rec := range r.knownServers {
		out = append(out, rec.server)
	}
	return out
}

// Hint returns up to k known servers believed likeliest to know pk,
// ordered by XOR distance between each server's public key and pk
// (spec.md §4.5, Kademlia-style), excluding any server whose key is in
// exclude.
func (r *Router) Hint(pk *crypto.PublicKey, k int, exclude map[string]bool) []protocol.Server {
	r.RLock()
	candidates := make([]protocol.Server, 0, len(r.knownServers))
	for key, rec := range r.knownServers {
		if exclude != nil && exclude[key] {
			continue
		}
		candidates = append(candidates, rec.server)
	}
	r.RUnlock()

	target := pk.Bytes()
	sortByXORDistance(candidates, target)

	if k >= 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func sortByXORDistance(servers []protocol.Server, target [33]byte) {
	dist := func(pk *crypto.PublicKey) [33]byte {
		b := pk.Bytes()
		var d [33]byte
		for i := range d {
			d[i] = b[i] ^ target[i]
		}
		return d
	}

	sort.Slice(servers, func(i, j int) bool {
		di, dj := dist(servers[i].PublicKey), dist(servers[j].PublicKey)
		for x := range di {
			if di[x] != dj[x] {
				return di[x] < dj[x]
			}
		}
		bi, bj := servers[i].PublicKey.Bytes(), servers[j].PublicKey.Bytes()
		for x := range bi {
			if bi[x] != bj[x] {
				return bi[x] < bj[x]
			}
		}
		return false
	})
}
