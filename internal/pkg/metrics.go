package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BestEffortFailures 被吞掉的图库写失败
	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_best_effort_failures_total",
			Help: "Secondary graph store writes that failed and were swallowed",
		},
		[]string{"op"},
	)

	CounterDriftFixed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_counter_drift_corrections_total",
			Help: "User counters corrected by the reconciler",
		},
		[]string{"field"},
	)

	OutboxReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_graph_outbox_replayed_total",
			Help: "Graph repair rows replayed by the relayer",
		},
		[]string{"result"},
	)

	GraphBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "social_graph_breaker_state",
			Help: "Graph store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
