// Package metrics exposes the node's Prometheus counters and gauges: one
// set for the block graph (active/final/discarded blocks, clique count)
// and one for the execution driver (slots run, operations executed and
// rolled back, gas consumed). go.mod already carries
// github.com/prometheus/client_golang for the pack's node-software
// repos; this package is where that dependency earns its place here.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors bundles every metric this node registers.
type Collectors struct {
	BlocksActive    prometheus.Gauge
	BlocksFinal     prometheus.Counter
	BlocksDiscarded *prometheus.CounterVec
	Cliques         prometheus.Gauge

	SlotsExecuted       prometheus.Counter
	OperationsExecuted  prometheus.Counter
	OperationsReverted  prometheus.Counter
	GasConsumed         prometheus.Counter
	AsyncPoolLen        prometheus.Gauge
	AsyncPoolReimbursed prometheus.Counter

	OperationPoolLen prometheus.Gauge
}

// New registers every collector on reg and returns the bundle. Pass
// prometheus.NewRegistry() for an isolated registry (tests, multiple
// nodes in one process) or prometheus.DefaultRegisterer for a normal
// single-node deployment.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		BlocksActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "corechain",
			Subsystem: "graph",
			Name:      "blocks_active",
			Help:      "Number of blocks currently active in the block graph.",
		}),
		BlocksFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "corechain",
			Subsystem: "graph",
			Name:      "blocks_final_total",
			Help:      "Total number of blocks that have reached finality.",
		}),
		BlocksDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corechain",
			Subsystem: "graph",
			Name:      "blocks_discarded_total",
			Help:      "Total number of blocks discarded, by reason.",
		}, []string{"reason"}),
		Cliques: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "corechain",
			Subsystem: "graph",
			Name:      "cliques",
			Help:      "Number of cliques in the current block graph.",
		}),
		SlotsExecuted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "corechain",
			Subsystem: "executor",
			Name:      "slots_executed_total",
			Help:      "Total number of slots run by the execution driver.",
		}),
		OperationsExecuted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "corechain",
			Subsystem: "executor",
			Name:      "operations_executed_total",
			Help:      "Total number of operations run (including those that rolled back).",
		}),
		OperationsReverted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "corechain",
			Subsystem: "executor",
			Name:      "operations_reverted_total",
			Help:      "Total number of operations whose frame was rolled back.",
		}),
		GasConsumed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "corechain",
			Subsystem: "executor",
			Name:      "gas_consumed_total",
			Help:      "Total gas declared by executed operations.",
		}),
		AsyncPoolLen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "corechain",
			Subsystem: "executor",
			Name:      "async_pool_len",
			Help:      "Number of messages currently queued in the async pool.",
		}),
		AsyncPoolReimbursed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "corechain",
			Subsystem: "executor",
			Name:      "async_pool_reimbursed_total",
			Help:      "Total number of expired async messages reimbursed to their sender.",
		}),
		OperationPoolLen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "corechain",
			Subsystem: "pool",
			Name:      "operations_pending",
			Help:      "Number of operations currently pending in the operation pool.",
		}),
	}
}

// Handler returns the /metrics scrape endpoint for reg, the same registry
// passed to New.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
