// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Mutations counts annotation mutations by operation and result.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linenotes_mutations_total",
		Help: "Annotation mutations by operation and result",
	}, []string{"op", "result"})

	// Remaps counts applied line changes by edit source.
	Remaps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linenotes_remaps_total",
		Help: "Line changes applied by edit source",
	}, []string{"source"})

	// Shifted counts annotations moved to another line.
	Shifted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linenotes_shifted_total",
		Help: "Annotations moved by line changes",
	})

	// Orphaned counts annotations staged because their line was deleted.
	Orphaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linenotes_orphaned_total",
		Help: "Annotations staged for an archive decision",
	})

	// Decisions counts resolved deletion candidates by outcome.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linenotes_pending_decisions_total",
		Help: "Deletion candidates archived or discarded",
	}, []string{"outcome"})

	// Requests counts API requests by route pattern and status.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linenotes_http_requests_total",
		Help: "API requests by route and status",
	}, []string{"route", "status"})

	// PersistFailures counts failed writes whose in-memory effect was kept.
	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linenotes_persist_failures_total",
		Help: "Writes that failed after the in-memory change was applied",
	}, []string{"op"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
