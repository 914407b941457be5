// Package metrics holds the process-wide Prometheus collectors.
//
// Labels are kept to small closed sets (kind, stage, status, transport,
// route pattern) so cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Dispatches counts finished dispatches by trigger (manual|auto) and outcome
	// (sent|failed) plus the error kind for failures ("" on success).
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailytales_dispatch_total",
			Help: "Dispatch attempts by trigger, outcome and error kind.",
		},
		[]string{"trigger", "outcome", "kind"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailytales_dispatch_duration_seconds",
			Help:    "End-to-end dispatch duration in seconds.",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"trigger"},
	)

	GenerationDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailytales_generation_degraded_total",
			Help: "Generations that fell back to category labels, by reason.",
		},
		[]string{"reason"},
	)

	StorageDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailytales_storage_degraded_total",
			Help: "History reads or writes that failed without failing the dispatch.",
		},
		[]string{"op"},
	)

	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailytales_delivery_total",
			Help: "Delivery attempts by transport and result.",
		},
		[]string{"transport", "result"},
	)

	// WorkerRestarts counts restarts of supervised background loops.
	WorkerRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailytales_worker_restarts_total",
			Help: "Supervised goroutine restarts after an error or panic.",
		},
		[]string{"name"},
	)

	SchedulerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailytales_scheduler_runs_total",
			Help: "Scheduled auto dispatch runs by result (ok|failed|skipped).",
		},
		[]string{"result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailytales_http_requests_total",
			Help: "Operator API requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailytales_http_request_duration_seconds",
			Help:    "Operator API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		Dispatches, DispatchDuration, GenerationDegraded, StorageDegraded, Deliveries,
		WorkerRestarts, SchedulerRuns, HTTPRequests, HTTPLatency,
	)
}
