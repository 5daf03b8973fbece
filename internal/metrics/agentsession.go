// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated tracks total agent sessions created.
	SessionsCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agentsession",
			Name:      "created_total",
			Help:      "Total number of agent sessions created",
		},
		[]string{"status"}, // success, failure
	)

	// SessionsActive tracks currently active agent sessions.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agentsession",
			Name:      "active",
			Help:      "Number of currently active agent sessions",
		},
	)

	// SessionsExpired tracks sessions reaped for inactivity.
	SessionsExpired = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agentsession",
			Name:      "expired_total",
			Help:      "Total number of agent sessions expired by the cleanup sweep",
		},
	)

	// SessionsClosed tracks sessions closed normally.
	SessionsClosed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agentsession",
			Name:      "closed_total",
			Help:      "Total number of agent sessions closed",
		},
	)

	// RequestDuration tracks dispatched request/response round-trip time.
	RequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agentsession",
			Name:      "request_duration_seconds",
			Help:      "Agent session request round-trip duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"method"},
	)

	// MessageSize tracks framed message sizes.
	MessageSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agentsession",
			Name:      "message_size_bytes",
			Help:      "Size of messages processed over agent sessions",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"direction"}, // inbound, outbound
	)
)
