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

// Package search implements a rule-driven plan optimizer. It's loosely based
// on the Volcano/Cascades line of optimizer frameworks: the plan is converted
// into a memo of groups of equivalent alternatives, rules add alternatives to
// the groups for a bounded number of rounds, and the lowest-cost alternative
// of each group is then chosen and written back into the plan arena.
//
// This package knows nothing about specific rules; it takes rule sets as input.
package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ebay/graphopt/query/planner/plandef"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxExplorationRounds is used when Options.MaxExplorationRounds is
// not positive.
const DefaultMaxExplorationRounds = 5

// Options are configuration settings for the Optimizer.
type Options struct {
	// The maximum number of exploration rounds. Exploration also stops after a
	// round in which no transform was accepted.
	MaxExplorationRounds int
	// Used in testing: If set, checks the integrity of the memo and the symbol
	// table after every change, and panics on errors.
	CheckInvariants bool
	// Returns the local cost of a group node. If nil, the cost recorded on the
	// plan node is used.
	Cost CostFunc
}

func (options *Options) maxRounds() int {
	if options.MaxExplorationRounds <= 0 {
		return DefaultMaxExplorationRounds
	}
	return options.MaxExplorationRounds
}

// Stats summarizes one optimization.
type Stats struct {
	// Number of exploration rounds run.
	Rounds int
	// Number of groups and group nodes reachable from the roots after
	// exploration.
	Groups     int
	GroupNodes int
	// Number of accepted transforms, by rule name.
	Applied map[string]int
	// Number of transforms rejected by the dataflow check, by rule name.
	Rejected map[string]int
	// Set if the context was canceled before exploration finished.
	Cancelled bool
	// Time spent exploring.
	ExploreTime time.Duration
}

// TotalApplied returns the number of accepted transforms across all rules.
func (s *Stats) TotalApplied() int {
	total := 0
	for _, n := range s.Applied {
		total += n
	}
	return total
}

// lastRun is used to give every Optimizer a distinct run ID.
var lastRun int64

// An Optimizer optimizes a single plan. It's not safe for concurrent use, and
// Optimize may only be called once.
type Optimizer struct {
	graph   *plandef.Graph
	sets    []*RuleSet
	options Options
	run     int64
	used    bool

	nextGroupID int
	nextNodeID  int
	// The plan root first, then the roots of Select and Loop bodies.
	roots []*OptGroup
	// Conversion memo, from plan node to the group it was placed in.
	converted map[plandef.NodeID]*OptGroup
	// Every group node created, by the ID of the plan node it wraps.
	byPlan map[plandef.NodeID]*OptGroupNode
	// The plan nodes of the chosen plan, once chosen.
	chosen map[plandef.NodeID]bool
	stats  Stats
}

// New returns an Optimizer that rewrites plans in graph using the given rule
// sets, in order.
func New(graph *plandef.Graph, sets []*RuleSet, options Options) *Optimizer {
	if options.Cost == nil {
		options.Cost = planCost
	}
	return &Optimizer{
		graph:     graph,
		sets:      sets,
		options:   options,
		run:       atomic.AddInt64(&lastRun, 1),
		converted: make(map[plandef.NodeID]*OptGroup),
		byPlan:    make(map[plandef.NodeID]*OptGroupNode),
		stats: Stats{
			Applied:  make(map[string]int),
			Rejected: make(map[string]int),
		},
	}
}

// Stats returns a summary of the optimization so far.
func (o *Optimizer) Stats() Stats {
	return o.stats
}

// Graph returns the plan arena the optimizer works on.
func (o *Optimizer) Graph() *plandef.Graph {
	return o.graph
}

// Root returns the group holding the plan root. It's nil before Optimize.
func (o *Optimizer) Root() *OptGroup {
	if len(o.roots) == 0 {
		return nil
	}
	return o.roots[0]
}

// Optimize finds a cheaper equivalent of the plan rooted at root and returns
// the ID of its root. The returned plan writes the same output variable as
// the input plan. Plan nodes that aren't part of the chosen plan have their
// symbols released.
//
// The supplied context is used to generate tracing spans and to stop
// exploration early. Cancellation isn't an error: the best plan found so far
// is returned.
func (o *Optimizer) Optimize(ctx context.Context, root plandef.NodeID) (plandef.NodeID, error) {
	if o.used {
		return 0, fmt.Errorf("optimizer already used")
	}
	o.used = true
	execStep := func(name string, step func() error) error {
		span, cctx := opentracing.StartSpanFromContext(ctx, name)
		defer span.Finish()
		err := step()
		if err == nil && o.options.CheckInvariants {
			cispan, _ := opentracing.StartSpanFromContext(cctx, "CheckInvariants")
			o.MustCheckInvariants()
			cispan.Finish()
		}
		return err
	}
	err := execStep("Convert Plan", func() error {
		return o.convert(root)
	})
	if err != nil {
		return 0, err
	}
	execStep("Explore Plan", func() error {
		o.explore(ctx)
		return nil
	})
	var best plandef.NodeID
	err = execStep("Choose Plan", func() error {
		var err error
		best, err = o.choose()
		return err
	})
	if err != nil {
		return 0, err
	}
	o.releaseUnchosen()
	if o.options.CheckInvariants {
		if err := o.graph.CheckSymbols(); err != nil {
			return 0, fmt.Errorf("chosen plan is inconsistent: %v", err)
		}
	}
	return best, nil
}

// explore applies the rule sets to the memo for up to MaxExplorationRounds
// rounds. The context is only checked between rounds.
func (o *Optimizer) explore(ctx context.Context) {
	start := time.Now()
	max := o.options.maxRounds()
	for round := 0; round < max; round++ {
		if ctx.Err() != nil {
			o.stats.Cancelled = true
			log.WithError(ctx.Err()).Debugf("Exploration stopped after %d rounds", o.stats.Rounds)
			break
		}
		o.stats.Rounds++
		if !o.exploreRound(ctx) {
			break
		}
	}
	o.stats.ExploreTime = time.Since(start)
	for _, group := range o.liveGroups() {
		o.stats.Groups++
		o.stats.GroupNodes += len(group.nodes)
	}
	metrics.explorationRounds.Observe(float64(o.stats.Rounds))
	log.Debugf("Explore ran %d rounds, applied %d transforms and took %v",
		o.stats.Rounds, o.stats.TotalApplied(), o.stats.ExploreTime)
}

// exploreRound visits every live group node once, inputs first. It returns
// true if any transform was accepted.
func (o *Optimizer) exploreRound(ctx context.Context) bool {
	changed := false
	for _, group := range o.liveGroups() {
		for _, node := range group.Nodes() {
			if node.erased {
				continue
			}
			if o.applyRules(ctx, node) {
				changed = true
			}
		}
	}
	return changed
}

// applyRules tries every rule that hasn't yet been applied to node. It stops
// early if node is erased.
func (o *Optimizer) applyRules(ctx context.Context, node *OptGroupNode) bool {
	changed := false
	for _, set := range o.sets {
		for _, rule := range set.Rules {
			if node.erased {
				return changed
			}
			if node.applied[rule.Name()] {
				continue
			}
			if o.applyRule(ctx, rule, node) {
				node.applied[rule.Name()] = true
				changed = true
				if set.Policy == ApplyFirst {
					break
				}
			}
		}
	}
	return changed
}

// applyRule runs a single rule against node. It returns true if the rule's
// transform was accepted and applied to the memo.
func (o *Optimizer) applyRule(ctx context.Context, rule OptRule, node *OptGroupNode) bool {
	matched, ok := rule.Pattern().Match(node)
	if !ok {
		return false
	}
	octx := &OptContext{
		ctx: ctx,
		opt: o,
		log: log.WithFields(log.Fields{
			"rule":  rule.Name(),
			"node":  node.String(),
			"group": node.group.ID,
		}),
		current: node.group,
	}
	if !rule.Match(octx, matched) {
		return false
	}
	mark := o.graph.NumNodes()
	res, err := rule.Transform(octx, matched)
	if err != nil {
		octx.log.WithError(err).Debug("Transform declined")
		o.rollback(octx, mark)
		return false
	}
	if res.empty() {
		o.rollback(octx, mark)
		return false
	}
	if err := o.checkTransform(octx, matched, res); err != nil {
		octx.log.WithError(err).Debug("Transform rejected")
		o.stats.Rejected[rule.Name()]++
		metrics.transformsRejected.WithLabelValues(rule.Name()).Inc()
		o.rollback(octx, mark)
		return false
	}
	o.commit(octx, matched, res, mark)
	o.stats.Applied[rule.Name()]++
	metrics.transformsApplied.WithLabelValues(rule.Name()).Inc()
	if o.options.CheckInvariants {
		o.MustCheckInvariants()
	}
	return true
}

// choose picks the lowest-cost alternative of every group reachable from the
// roots and writes the choice back into the plan arena.
func (o *Optimizer) choose() (plandef.NodeID, error) {
	visiting := make(map[*OptGroup]bool)
	for _, root := range o.roots {
		if _, err := o.groupCost(root, visiting); err != nil {
			return 0, err
		}
	}
	built := make(map[*OptGroup]plandef.NodeID)
	var build func(group *OptGroup) (plandef.NodeID, error)
	build = func(group *OptGroup) (plandef.NodeID, error) {
		if id, ok := built[group]; ok {
			return id, nil
		}
		best := group.best
		for i, dep := range best.deps {
			depID, err := build(dep)
			if err != nil {
				return 0, err
			}
			if err := o.graph.SetDep(best.node.ID, i, depID); err != nil {
				return 0, err
			}
		}
		built[group] = best.node.ID
		return best.node.ID, o.rebindBodies(best.node, build)
	}
	res, err := build(o.roots[0])
	if err != nil {
		return 0, err
	}
	for _, root := range o.roots[1:] {
		if _, err := build(root); err != nil {
			return 0, err
		}
	}
	o.chosen = make(map[plandef.NodeID]bool, len(built))
	for _, id := range built {
		o.chosen[id] = true
	}
	return res, nil
}

// releaseUnchosen releases the symbols of every plan node in the memo that
// isn't part of the chosen plan.
func (o *Optimizer) releaseUnchosen() {
	for id, node := range o.byPlan {
		if !o.chosen[id] && !node.node.Released() {
			o.graph.ReleaseSymbols(id)
		}
	}
}

// rebindBodies points a chosen Select or Loop node at the chosen roots of its
// bodies.
func (o *Optimizer) rebindBodies(node *plandef.PlanNode, build func(*OptGroup) (plandef.NodeID, error)) error {
	rebind := func(id *plandef.NodeID) error {
		group := o.converted[*id]
		if *id == 0 || group == nil {
			return nil
		}
		chosen, err := build(group)
		if err != nil {
			return err
		}
		*id = chosen
		return nil
	}
	switch args := node.Args.(type) {
	case *plandef.Select:
		if err := rebind(&args.If); err != nil {
			return err
		}
		return rebind(&args.Else)
	case *plandef.Loop:
		return rebind(&args.Body)
	}
	return nil
}

// groupCost returns the cost of the cheapest alternative in the group,
// including the cost of its inputs, and records that alternative as the
// group's best. Ties go to the alternative added first.
func (o *Optimizer) groupCost(group *OptGroup, visiting map[*OptGroup]bool) (float64, error) {
	if group.costValid {
		return group.bestCost, nil
	}
	if visiting[group] {
		return 0, fmt.Errorf("cycle through group %d", group.ID)
	}
	if len(group.nodes) == 0 {
		return 0, fmt.Errorf("group %d has no alternatives", group.ID)
	}
	visiting[group] = true
	defer delete(visiting, group)
	group.best = nil
	for _, node := range group.nodes {
		cost := o.options.Cost(node)
		for _, dep := range node.deps {
			depCost, err := o.groupCost(dep, visiting)
			if err != nil {
				return 0, err
			}
			cost += depCost
		}
		if group.best == nil || cost < group.bestCost {
			group.best = node
			group.bestCost = cost
		}
	}
	group.costValid = true
	return group.bestCost, nil
}
