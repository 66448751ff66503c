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

package search

import (
	metricsutil "github.com/ebay/graphopt/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type searchMetrics struct {
	transformsApplied  *prometheus.CounterVec
	transformsRejected *prometheus.CounterVec
	explorationRounds  prometheus.Histogram
}

var metrics searchMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = searchMetrics{
		transformsApplied: mr.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "optimizer",
			Name:      "transforms_applied_total",
			Help:      `The number of rule transforms accepted into the memo, by rule.`,
		}, "rule"),
		transformsRejected: mr.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "optimizer",
			Name:      "transforms_rejected_total",
			Help: `The number of rule transforms rejected by the dataflow check, by rule.

A rejected transform would have left a variable without a writer or changed
what the rewritten sub-plan reads. Any increase points at a rule bug.
`,
		}, "rule"),
		explorationRounds: mr.NewHistogram(prometheus.HistogramOpts{
			Subsystem: "optimizer",
			Name:      "exploration_rounds",
			Help:      `The number of exploration rounds run per optimized plan.`,
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
}
