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

// Package planner optimizes query plans. It applies the rule sets of the
// rules subpackage through the search subpackage, then prunes the properties
// the chosen plan doesn't use with the prune subpackage.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/ebay/graphopt/config"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/ebay/graphopt/query/planner/prune"
	"github.com/ebay/graphopt/query/planner/rules"
	"github.com/ebay/graphopt/query/planner/search"
	"github.com/ebay/graphopt/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// DefaultRuleSets are applied when the configuration doesn't name any.
var DefaultRuleSets = []string{rules.QuerySet}

// Options control Optimize. The zero value is usable.
type Options struct {
	// If nil, config.Default() is used.
	Config *config.Optimizer
	// Used to resolve fetchers that request every property of a tag or edge
	// type. May be nil if no plan does.
	Schema prune.Schema
	// Used to estimate costs. If nil, typical values are assumed.
	Stats Stats
}

// Result is the outcome of Optimize.
type Result struct {
	// The root of the optimized plan. It writes the same variable as the
	// input plan's root.
	Root plandef.NodeID
	// A description of the optimized plan, including the estimated cost of
	// each node.
	Description *plandef.PlanDescription
	// Details about the optimization.
	Stats OptimizeStats
}

// OptimizeStats summarizes one call to Optimize.
type OptimizeStats struct {
	Search search.Stats
	Prune  prune.Stats
	// The estimated time the optimized plan spends reading from disk.
	EstimatedCost time.Duration
	// The structural hash of the optimized plan.
	Fingerprint uint64
	Elapsed     time.Duration
}

// Optimize finds a cheaper equivalent of the plan rooted at root in g, using
// the rule sets in registry that the configuration names. If registry is nil,
// the rule sets of the rules package are used. The plan is rewritten in place:
// nodes that aren't part of the result have their symbols released.
//
// The supplied context is used to generate tracing spans and to stop
// exploration early. Only errors from resolving the rule sets and from
// schema lookups during pruning are returned.
func Optimize(ctx context.Context, g *plandef.Graph, root plandef.NodeID,
	registry *search.RuleSetRegistry, opts Options) (*Result, error) {

	start := time.Now()
	res, err := optimize(ctx, g, root, registry, opts)
	if err != nil {
		metrics.optimizeFailures.Inc()
		return nil, err
	}
	res.Stats.Elapsed = time.Since(start)
	metrics.optimizeDurationSeconds.Observe(res.Stats.Elapsed.Seconds())
	log.WithFields(log.Fields{
		"root":        res.Root,
		"rounds":      res.Stats.Search.Rounds,
		"applied":     res.Stats.Search.TotalApplied(),
		"pruned":      res.Stats.Prune.Pruned,
		"fingerprint": fmt.Sprintf("%016x", res.Stats.Fingerprint),
	}).Debugf("Optimized plan in %v", res.Stats.Elapsed)
	return res, nil
}

func optimize(ctx context.Context, g *plandef.Graph, root plandef.NodeID,
	registry *search.RuleSetRegistry, opts Options) (*Result, error) {

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = rules.NewRegistry()
	}
	stats := opts.Stats
	if stats == nil {
		stats = defaultStats{}
	}
	names := cfg.RuleSets
	if len(names) == 0 {
		names = DefaultRuleSets
	}
	sets, err := registry.Resolve(names...)
	if err != nil {
		return nil, err
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "Optimize")
	defer span.Finish()
	o := search.New(g, sets, search.Options{
		MaxExplorationRounds: cfg.MaxExplorationRounds,
		CheckInvariants:      cfg.CheckInvariants,
		Cost:                 costFunc(stats),
	})
	best, err := o.Optimize(ctx, root)
	if err != nil {
		return nil, err
	}
	res := &Result{Root: best}
	res.Stats.Search = o.Stats()

	if cfg.EnablePropertyPruning {
		pspan, _ := tracing.StartSpanFromContext(ctx, "Prune Properties", metrics.pruneDurationSeconds)
		res.Stats.Prune, err = prune.Prune(g, best, opts.Schema, prune.Options{
			EliminateUnusedAppendVertices: cfg.EliminateUnusedAppendVertices,
		})
		pspan.Finish()
		metrics.prunedFetchers.Add(float64(res.Stats.Prune.Pruned))
		metrics.eliminatedAppendVertices.Add(float64(res.Stats.Prune.Eliminated))
		if err != nil {
			return nil, err
		}
		if cfg.CheckInvariants {
			if err := g.CheckInvariants(); err != nil {
				return nil, fmt.Errorf("pruned plan is inconsistent: %v", err)
			}
		}
	}

	res.Stats.EstimatedCost = annotateCosts(g, best, stats)
	res.Stats.Fingerprint = g.Fingerprint(best)
	res.Description = g.Describe(best)
	return res, nil
}
