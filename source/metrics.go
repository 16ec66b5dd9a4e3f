// Package source coordinates zero or more types.Source implementations
// against a live subject graph: batching local writes outward, applying
// remote changes inward, suppressing echoes, and running outbound flushes
// behind a circuit breaker (spec §4.I). A failed flush is logged and counted;
// its changes are not retried. See DESIGN.md's §I entry.
package source

import "github.com/prometheus/client_golang/prometheus"

// metrics mirrors the teacher's prometheus.NewCounterVec/NewHistogramVec +
// init()-time MustRegister pattern (bittoy-rule/engine/metrics.go)
// verbatim, renamed to the reactor_source_* namespace.
var (
	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "source",
			Name:      "writes_total",
			Help:      "Total property writes flushed to a source, by source name and outcome.",
		},
		[]string{"source", "outcome"},
	)

	writeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reactor",
			Subsystem: "source",
			Name:      "write_duration_seconds",
			Help:      "Latency of a WriteChangesAsync flush, by source name.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "reactor",
			Subsystem: "source",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by source name (0=closed, 1=half-open, 2=open).",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(writesTotal, writeDuration, breakerState)
}
