// Package metrics registers the prometheus collectors exposed by the
// admin HTTP surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EventsDispatched counts every authorization decision, by event
	// name and the answer returned.
	EventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medusad",
			Name:      "events_dispatched_total",
			Help:      "Authorization events dispatched, by event name and answer.",
		},
		[]string{"event", "answer"},
	)

	// RequestLatency measures fetch/update round-trip latency in seconds.
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medusad",
			Name:      "request_latency_seconds",
			Help:      "Fetch/update request round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// PendingRequests reports the current depth of the fetch/update
	// pending-request tables.
	PendingRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "medusad",
			Name:      "pending_requests",
			Help:      "Outstanding fetch/update requests awaiting an answer.",
		},
		[]string{"kind"},
	)

	// DecodeErrors counts wire decode failures by error kind.
	DecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medusad",
			Name:      "decode_errors_total",
			Help:      "Wire decode failures, by error kind.",
		},
		[]string{"kind"},
	)
)

// Register registers every collector with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(EventsDispatched, RequestLatency, PendingRequests, DecodeErrors)
}
