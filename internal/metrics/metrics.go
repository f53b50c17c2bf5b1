package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablebook"

var (
	once sync.Once

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Count of availability checks by outcome.",
		},
		[]string{"outcome"},
	)

	availabilityDivergence = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_divergence_total",
			Help:      "Count of local pre-checks that disagreed with the upstream answer.",
		},
		[]string{"kind"},
	)

	staleDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_stale_discarded_total",
			Help:      "Count of availability results dropped because the draft changed.",
		},
	)

	reservationsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_submitted_total",
			Help:      "Count of reservation submissions by outcome.",
		},
		[]string{"outcome"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_validation_failures_total",
			Help:      "Count of submissions blocked by a precondition.",
		},
		[]string{"reason"},
	)

	upstreamRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to the reservation API.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"method", "resource", "status"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "booking_sessions_active",
			Help:      "Number of open booking sessions.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityChecks,
			availabilityDivergence,
			staleDiscarded,
			reservationsSubmitted,
			validationFailures,
			upstreamRequests,
			activeSessions,
		)
	})
}

func IncAvailabilityCheck(outcome string) {
	availabilityChecks.WithLabelValues(outcome).Inc()
}

func IncAvailabilityDivergence(kind string) {
	availabilityDivergence.WithLabelValues(kind).Inc()
}

func IncStaleDiscarded() {
	staleDiscarded.Inc()
}

func IncReservationSubmitted(outcome string) {
	reservationsSubmitted.WithLabelValues(outcome).Inc()
}

func IncValidationFailure(reason string) {
	validationFailures.WithLabelValues(reason).Inc()
}

func ObserveUpstream(method, resource, status string, seconds float64) {
	upstreamRequests.WithLabelValues(method, resource, status).Observe(seconds)
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
