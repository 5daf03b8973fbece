package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts AppRole login attempts by result.
	LoginAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approle",
			Name:      "login_attempts_total",
			Help:      "Total AppRole login attempts by result",
		},
		[]string{"result"},
	)

	// SessionTokensIssued counts session tokens minted.
	SessionTokensIssued = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approle",
			Name:      "session_tokens_issued_total",
			Help:      "Total session tokens issued",
		},
	)

	// SecretIDsGenerated counts secret_id bootstrap credentials minted per role.
	SecretIDsGenerated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approle",
			Name:      "secret_ids_generated_total",
			Help:      "Total secret_ids generated, by role",
		},
		[]string{"role"},
	)
)
