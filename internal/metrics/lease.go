package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LeasesActive tracks currently outstanding leases.
	LeasesActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "active",
			Help:      "Number of currently active leases",
		},
	)

	// LeasesIssued counts leases issued by backend.
	LeasesIssued = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "issued_total",
			Help:      "Total leases issued, by backend",
		},
		[]string{"backend"},
	)

	// LeasesExpired counts leases reclaimed by the sweeper.
	LeasesExpired = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "expired_total",
			Help:      "Total leases expired and swept",
		},
	)

	// LeaseRevocationFailures counts backend revocation failures during sweep.
	LeaseRevocationFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "revocation_failures_total",
			Help:      "Total lease revocations that failed against the backend, by backend",
		},
		[]string{"backend"},
	)
)
