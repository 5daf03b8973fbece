package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuditEntriesWritten counts audit log appends.
	AuditEntriesWritten = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "entries_written_total",
			Help:      "Total audit log entries appended",
		},
	)

	// AuditAppendRetries counts sequence-contention retries on append.
	AuditAppendRetries = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "append_retries_total",
			Help:      "Total retries due to sequence contention on audit append",
		},
	)

	// AuditChainVerifications counts chain-verification runs by result.
	AuditChainVerifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "chain_verifications_total",
			Help:      "Total audit chain verification runs by result",
		},
		[]string{"result"},
	)
)
