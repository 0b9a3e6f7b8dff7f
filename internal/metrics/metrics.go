package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos_console"

var (
	// SessionTransitions counts committed session state changes by kind
	// (login, pin_login, resolved, fallback, logout).
	SessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Committed session transitions by kind.",
	}, []string{"kind"})

	// StaleResults counts identity or login results discarded because the session moved on.
	StaleResults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "stale_results_total",
		Help:      "Login or identity results discarded after the session changed.",
	})

	// Unauthorized counts 401 responses observed by the transport.
	Unauthorized = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "unauthorized_total",
		Help:      "Responses with status 401 observed on backend calls.",
	})

	// StepUps counts PIN challenges by outcome (valid, invalid, error).
	StepUps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stepup",
		Name:      "challenges_total",
		Help:      "PIN step-up challenges by outcome.",
	}, []string{"outcome"})

	// Voids counts void-sale attempts by result.
	Voids = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sales",
		Name:      "voids_total",
		Help:      "Void-sale attempts by result.",
	}, []string{"result"})

	// Registry holds the console collectors.
	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(SessionTransitions, StaleResults, Unauthorized, StepUps, Voids)
}

// Handler exposes the console collectors in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
