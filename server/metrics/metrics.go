// Package metrics exposes Hyperborea server runtime state as Prometheus
// metrics, the external export surface SPEC_FULL.md's domain stack section
// calls for alongside the wire-level GET /api/v1/info stats field (which is
// computed directly from live router/inbox state rather than read back from
// here).
//
// Grounded on the teacher's internal/instrument/prometheus.go (package-level
// prometheus.New*Vec metrics registered once, bumped by simple Inc/Observe
// calls from call sites), adapted from package-level globals to a Recorder
// value so multiple servers in one process don't collide registering the
// same metric names twice.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder bumps the gauges and counters a running server exposes.
type Recorder struct {
	connectedClients prometheus.Gauge
	routingTableSize prometheus.Gauge
	knownServers     prometheus.Gauge
	inboxDepth       prometheus.Gauge
	lookupsInFlight  prometheus.Gauge

	requestsTotal *prometheus.CounterVec
}

// New builds a Recorder and registers its metrics against reg. Passing
// prometheus.NewRegistry() isolates tests and multi-server processes from
// the global default registry's MustRegister panic-on-duplicate behavior.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyperborea_connected_clients",
			Help: "Number of clients directly connected to this server.",
		}),
		routingTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyperborea_routing_table_size",
			Help: "Number of entries in the routing table.",
		}),
		knownServers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyperborea_known_servers",
			Help: "Number of peer servers this server currently knows about.",
		}),
		inboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyperborea_inbox_depth",
			Help: "Aggregate number of messages queued across every client inbox.",
		}),
		lookupsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyperborea_lookups_in_flight",
			Help: "Number of client-driven lookup traversals currently running.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyperborea_requests_total",
			Help: "Number of requests handled, by endpoint and response status.",
		}, []string{"endpoint", "status"}),
	}

	reg.MustRegister(
		r.connectedClients,
		r.routingTableSize,
		r.knownServers,
		r.inboxDepth,
		r.lookupsInFlight,
		r.requestsTotal,
	)
	return r
}

// ObserveRequest records one handled request against endpoint, labeled
// with its resulting wire status.
func (r *Recorder) ObserveRequest(endpoint, status string) {
	r.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

// SetRouterStats refreshes the router/inbox-derived gauges. Call sites
// pass already-read values (e.g. from router.RoutingTableSize,
// inbox.Depth) rather than this package reaching into those packages
// itself, keeping metrics a pure export surface.
func (r *Recorder) SetRouterStats(connectedClients, routingTableSize, knownServers, inboxDepth int) {
	r.connectedClients.Set(float64(connectedClients))
	r.routingTableSize.Set(float64(routingTableSize))
	r.knownServers.Set(float64(knownServers))
	r.inboxDepth.Set(float64(inboxDepth))
}

// LookupStarted records the start of one client-driven lookup traversal.
func (r *Recorder) LookupStarted() {
	r.lookupsInFlight.Inc()
}

// LookupFinished records the end of one client-driven lookup traversal.
func (r *Recorder) LookupFinished() {
	r.lookupsInFlight.Dec()
}
