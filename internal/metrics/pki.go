package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CertificatesIssued counts certificates issued by role and key type.
	CertificatesIssued = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pki",
			Name:      "certificates_issued_total",
			Help:      "Total certificates issued",
		},
		[]string{"role", "key_type"},
	)

	// CertificatesRevoked counts certificate revocations.
	CertificatesRevoked = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pki",
			Name:      "certificates_revoked_total",
			Help:      "Total certificates revoked",
		},
	)

	// CertificatesActive tracks currently valid, unrevoked, unexpired certificates.
	CertificatesActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pki",
			Name:      "certificates_active",
			Help:      "Number of active (unrevoked, unexpired) certificates",
		},
	)

	// SigningDuration tracks certificate-issuance latency.
	SigningDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pki",
			Name:      "signing_duration_seconds",
			Help:      "Time taken to sign a certificate or CSR",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"key_type"},
	)
)
