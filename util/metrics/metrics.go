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

// Package metrics aids in defining Prometheus metrics. Every optimizer metric
// lives in the "graphopt" namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the Prometheus namespace used for all metrics in this module.
const Namespace = "graphopt"

// DefaultObjectives are the quantiles reported by summaries created without
// explicit objectives.
var DefaultObjectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001}

// Registry creates metrics and registers them with R.
type Registry struct {
	R prometheus.Registerer
}

func (mr Registry) register(c prometheus.Collector) {
	mr.R.MustRegister(c)
}

// NewCounter returns a new registered Counter. An empty namespace is set to
// Namespace.
func (mr Registry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	if opts.Namespace == "" {
		opts.Namespace = Namespace
	}
	c := prometheus.NewCounter(opts)
	mr.register(c)
	return c
}

// NewCounterVec returns a new registered CounterVec partitioned by the given
// labels. An empty namespace is set to Namespace.
func (mr Registry) NewCounterVec(opts prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	if opts.Namespace == "" {
		opts.Namespace = Namespace
	}
	c := prometheus.NewCounterVec(opts, labels)
	mr.register(c)
	return c
}

// NewGauge returns a new registered Gauge. An empty namespace is set to
// Namespace.
func (mr Registry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	if opts.Namespace == "" {
		opts.Namespace = Namespace
	}
	g := prometheus.NewGauge(opts)
	mr.register(g)
	return g
}

// NewSummary returns a new registered Summary. An empty namespace is set to
// Namespace and nil objectives to DefaultObjectives.
func (mr Registry) NewSummary(opts prometheus.SummaryOpts) prometheus.Summary {
	if opts.Namespace == "" {
		opts.Namespace = Namespace
	}
	if opts.Objectives == nil {
		opts.Objectives = DefaultObjectives
	}
	s := prometheus.NewSummary(opts)
	mr.register(s)
	return s
}

// NewHistogram returns a new registered Histogram. An empty namespace is set
// to Namespace.
func (mr Registry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	if opts.Namespace == "" {
		opts.Namespace = Namespace
	}
	h := prometheus.NewHistogram(opts)
	mr.register(h)
	return h
}
