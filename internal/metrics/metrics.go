// Package metrics provides Prometheus metrics for the escalation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "escalation"

var (
	// AlertsCreated counts alerts accepted by the engine, by level.
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Total alerts accepted by the engine",
		},
		[]string{"level"},
	)

	// AlertsSuppressed counts createAlert calls returning no alert, by reason.
	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Total alert creations suppressed by policy",
		},
		[]string{"reason"},
	)

	// AlertsAcknowledged counts successful acknowledgments.
	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_acknowledged_total",
			Help:      "Total alerts acknowledged",
		},
	)

	// Dispatches counts tier dispatch attempts by tier and outcome.
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total tier dispatch attempts",
		},
		[]string{"tier", "outcome"},
	)
)
