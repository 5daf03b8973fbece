package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SealState reports the current seal state: 0=uninitialized, 1=sealed, 2=unsealed.
	SealState = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "seal",
			Name:      "state",
			Help:      "Current seal state (0=uninitialized, 1=sealed, 2=unsealed)",
		},
	)

	// UnsealProgress reports the number of key shares submitted toward the threshold.
	UnsealProgress = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "seal",
			Name:      "unseal_progress",
			Help:      "Number of unseal key shares submitted so far",
		},
	)

	// SealOperations counts seal/unseal state transitions by outcome.
	SealOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seal",
			Name:      "operations_total",
			Help:      "Total seal/unseal operations by operation and result",
		},
		[]string{"operation", "result"},
	)
)
