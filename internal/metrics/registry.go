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

// Package metrics exposes secretcore's Prometheus instrumentation. Every
// collector below is registered against Registry through promauto, so
// importing a sub-file is enough to have it served from Handler().
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "secretcore"

// Registry is the Prometheus registry all secretcore collectors attach to.
// A dedicated registry (instead of prometheus.DefaultRegisterer) keeps the
// exposed surface limited to secretcore's own series.
var Registry = prometheus.NewRegistry()
