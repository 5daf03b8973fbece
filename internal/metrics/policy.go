package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PolicyEvaluations counts authorization decisions by outcome.
	PolicyEvaluations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "evaluations_total",
			Help:      "Total policy evaluations by decision (allow, deny)",
		},
		[]string{"decision"},
	)

	// PolicyEvaluationDuration tracks how long policy evaluation takes.
	PolicyEvaluationDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "evaluation_duration_seconds",
			Help:      "Time taken to evaluate a request against attached policies",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)
)
