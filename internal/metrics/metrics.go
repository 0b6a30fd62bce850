// Package metrics exposes Igloo's Prometheus metrics endpoint, grounded on
// daemon_ref/ap.httpd's global prometheus.NewSummary/MustRegister +
// promhttp.Handler() wiring at "/metrics" and on the metric surface
// ap_common/bgmetrics defines (counters, gauges, duration summaries) --
// narrowed to Prometheus's own client library instead of bgmetrics' own
// config-tree-push transport, since Igloo has no ap.configd-style property
// tree to push samples into.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"igloo/tree"
)

// TreeMutations counts every tree mutation the core task emits, labeled by
// kind, the Prometheus-native equivalent of a per-kind bgmetrics.Counter.
var TreeMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "igloo",
	Name:      "tree_mutations_total",
	Help:      "Number of tree mutations emitted, by kind.",
}, []string{"kind"})

// Watchers tracks the number of live watch.Registry subscriptions.
var Watchers = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "igloo",
	Name:      "watchers",
	Help:      "Number of currently registered watchers.",
})

// ExtensionMailboxDepth tracks each connected extension's inbound command
// mailbox depth, labeled by extension id, so an operator can see a slow or
// wedged extension before its mailbox fills and commands start dropping.
var ExtensionMailboxDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "igloo",
	Name:      "extension_mailbox_depth",
	Help:      "Current depth of an extension's inbound command mailbox.",
}, []string{"extension"})

// QueryLatency observes how long query.Translate takes to turn a SetQuery
// into its matching SetCommands, the Prometheus equivalent of a
// bgmetrics.DurationSummary.
var QueryLatency = prometheus.NewSummary(prometheus.SummaryOpts{
	Namespace:  "igloo",
	Name:       "query_translate_seconds",
	Help:       "Latency of translating a SetQuery into SetCommands.",
	Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
})

func init() {
	prometheus.MustRegister(TreeMutations, Watchers, ExtensionMailboxDepth, QueryLatency)
}

// ObserveMutations increments TreeMutations once per mutation in muts, by
// kind, the way a core-task tick reports its batch of emitted mutations.
func ObserveMutations(muts []tree.TreeMutation) {
	for _, m := range muts {
		TreeMutations.WithLabelValues(m.Kind.String()).Inc()
	}
}

// RegisterRoutes mounts the Prometheus scrape endpoint at /metrics, mirroring
// ap.httpd's http.Handle("/metrics", promhttp.Handler()).
func RegisterRoutes(r *mux.Router) {
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}
