// Prometheus instrumentation for the registry cache. Refresh outcomes are the
// signal an operator watches to tell a flapping gateway apart from a dead one:
// a run of stale_fallback means searches are being served from an aging
// snapshot, a run of unavailable means they are failing outright.
package registry

import "github.com/prometheus/client_golang/prometheus"

// refreshesTotal counts gateway fetch attempts by disposition. Fresh-snapshot
// reads served straight from memory are not refreshes and are not counted.
var refreshesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "registry_refreshes_total",
		Help: "Indexer registry refresh attempts against the gateway, by outcome.",
	},
	[]string{"outcome"}, // success|stale_fallback|unavailable
)

func init() {
	prometheus.MustRegister(refreshesTotal)
}
