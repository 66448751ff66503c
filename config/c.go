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

// Package config contains the configuration of the plan optimizer. The
// configuration is typically loaded from a JSON file on disk.
package config

// DefaultMaxExplorationRounds is used when MaxExplorationRounds is unset.
const DefaultMaxExplorationRounds = 5

// Optimizer describes how plans are optimized.
type Optimizer struct {
	// The maximum number of rounds the optimizer applies its rules for. Once
	// reached, the best plan found so far is used. If 0 (or unset),
	// DefaultMaxExplorationRounds is used. Values < 0 are rejected.
	MaxExplorationRounds int `json:"maxExplorationRounds"`

	// If true, vertex and edge properties that nothing in the chosen plan
	// uses are no longer fetched.
	EnablePropertyPruning bool `json:"enablePropertyPruning"`

	// If true (and EnablePropertyPruning is set), AppendVertices nodes whose
	// vertices are never used are removed from the plan. This changes the
	// plan's shape, so it's disabled by default.
	EliminateUnusedAppendVertices bool `json:"eliminateUnusedAppendVertices"`

	// The names of the rule sets to apply, in order. If empty, the planner
	// uses its default sets.
	RuleSets []string `json:"ruleSets,omitempty"`

	// If true, the plan and memo are checked for consistency after every
	// optimization step, panicking on violations. This is slow and intended
	// for tests and debugging.
	CheckInvariants bool `json:"checkInvariants"`

	// If non-nil, configures logging for tools that load this configuration.
	Log *Log `json:"log,omitempty"`

	// If non-nil, configures where tools report OpenTracing spans.
	Tracing *Tracing `json:"tracing,omitempty"`
}

// Log contains configuration related to logging.
type Log struct {
	// A logrus level name, such as "debug" or "warn". If empty (or unset),
	// the level isn't changed.
	Level string `json:"level"`
	// Either "text" or "json". If empty (or unset), "text" is used.
	Format string `json:"format,omitempty"`
}

// Tracing contains configuration related to distributed tracing.
type Tracing struct {
	// The URL of a Jaeger collector accepting spans over HTTP, such as
	// "http://localhost:14268/api/traces". If empty, spans are recorded (and
	// update their metrics) but aren't reported anywhere.
	Endpoint string `json:"endpoint"`
	// The fraction of traces to report, between 0 and 1. If 0 (or unset),
	// every trace is reported.
	SampleRate float64 `json:"sampleRate"`
}

// Default returns the configuration used when none is given.
func Default() *Optimizer {
	return &Optimizer{
		MaxExplorationRounds:  DefaultMaxExplorationRounds,
		EnablePropertyPruning: true,
	}
}
