// Package metrics defines the Prometheus collectors for backend traffic and
// controller state transitions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movietaste_backend_requests_total",
			Help: "Backend calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movietaste_backend_request_duration_seconds",
			Help:    "Duration of backend calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// StaleResponses counts completions discarded because a newer request of
	// the same kind was issued, or the state they belonged to was cleared.
	StaleResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movietaste_stale_responses_total",
			Help: "Backend responses discarded as stale",
		},
		[]string{"operation"},
	)

	ProfileInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movietaste_profile_invalidations_total",
			Help: "Profiles cleared because the favorites count changed",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "movietaste_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
