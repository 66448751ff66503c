// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package planner

import (
	metricsutil "github.com/ebay/graphopt/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type plannerMetrics struct {
	optimizeDurationSeconds  prometheus.Summary
	pruneDurationSeconds     prometheus.Summary
	prunedFetchers           prometheus.Counter
	eliminatedAppendVertices prometheus.Counter
	optimizeFailures         prometheus.Counter
}

var metrics plannerMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = plannerMetrics{
		optimizeDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Subsystem: "planner",
			Name:      "optimize_duration_seconds",
			Help: `The time it takes to optimize a plan, including property pruning.

These observations are expected to vary significantly from one plan to the
next, but a major shift in the overall distributions would indicate a change in
usage or a change in the rules.
`,
		}),
		pruneDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Subsystem: "planner",
			Name:      "prune_duration_seconds",
			Help: `The time it takes to prune unused properties from a chosen plan.

This is taken from the "Prune Properties" tracing span, so it's only observed
when a tracer from util/tracing is installed.
`,
		}),
		prunedFetchers: mr.NewCounter(prometheus.CounterOpts{
			Subsystem: "planner",
			Name:      "pruned_fetchers_total",
			Help:      `The number of data fetchers whose requested properties were pruned.`,
		}),
		eliminatedAppendVertices: mr.NewCounter(prometheus.CounterOpts{
			Subsystem: "planner",
			Name:      "eliminated_append_vertices_total",
			Help:      `The number of AppendVertices nodes removed because their vertices were unused.`,
		}),
		optimizeFailures: mr.NewCounter(prometheus.CounterOpts{
			Subsystem: "planner",
			Name:      "optimize_failures_total",
			Help: `The number of plans that failed to optimize.

Most failures come from schema lookups during property pruning.
`,
		}),
	}
}
