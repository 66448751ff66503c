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

// Package rules defines the rewrite rules of the plan optimizer and groups
// them into the named rule sets used by the planner.
//
// Every rule here replaces the matched root: the rewritten alternative is
// added to the root's group and the original alternative is erased, so no
// cost model is needed to pick the rewritten plan.
package rules

import (
	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/ebay/graphopt/query/planner/search"
)

// Names of the rule sets registered by Register.
const (
	// DefaultSet holds the rules that apply to every plan.
	DefaultSet = "default"
	// QuerySet holds the default rules plus those that only make sense for
	// read queries.
	QuerySet = "query"
)

// rule is an OptRule built from functions. A nil match accepts everything the
// pattern matches.
type rule struct {
	name      string
	pattern   *search.Pattern
	match     func(ctx *search.OptContext, m *search.MatchedResult) bool
	transform func(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error)
}

func (r *rule) Name() string              { return r.name }
func (r *rule) Pattern() *search.Pattern { return r.pattern }

func (r *rule) Match(ctx *search.OptContext, m *search.MatchedResult) bool {
	if r.match == nil {
		return true
	}
	return r.match(ctx, m)
}

func (r *rule) Transform(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	return r.transform(ctx, m)
}

// anyKind matches a single node of any kind.
func anyKind() *search.Pattern {
	return search.NewMultiPattern(plandef.AllKinds())
}

var defaultRules = []*rule{
	{
		name:      "MergeDataCollectAndProject",
		pattern:   search.NewPattern(plandef.KindDataCollect, search.NewPattern(plandef.KindProject)),
		match:     matchRowCollectOverProject,
		transform: mergeDataCollectAndProject,
	},
	{
		name:      "CollapseProject",
		pattern:   search.NewPattern(plandef.KindProject, search.NewPattern(plandef.KindProject)),
		transform: collapseProject,
	},
	{
		name:      "CombineFilter",
		pattern:   search.NewPattern(plandef.KindFilter, search.NewPattern(plandef.KindFilter)),
		transform: combineFilter,
	},
	{
		name:      "RemoveNoopProject",
		pattern:   search.NewPattern(plandef.KindProject, anyKind()),
		match:     matchNoopProject,
		transform: replaceWithInput,
	},
	{
		name:      "EliminateTrueFilter",
		pattern:   search.NewPattern(plandef.KindFilter, anyKind()),
		match:     matchTrueFilter,
		transform: replaceWithInput,
	},
	{
		name:      "TopN",
		pattern:   search.NewPattern(plandef.KindLimit, search.NewPattern(plandef.KindSort)),
		transform: limitOverSortToTopN,
	},
	{
		name:      "PushLimitDownProject",
		pattern:   search.NewPattern(plandef.KindLimit, search.NewPattern(plandef.KindProject)),
		transform: pushLimitDownProject,
	},
	{
		name:      "MergeGetVerticesAndDedup",
		pattern:   search.NewPattern(plandef.KindGetVertices, search.NewPattern(plandef.KindDedup)),
		transform: mergeGetVerticesAndDedup,
	},
	{
		name:      "PushFilterDownTraverse",
		pattern:   search.NewPattern(plandef.KindFilter, search.NewPattern(plandef.KindTraverse)),
		transform: pushFilterDownTraverse,
	},
	{
		name:      "RemoveDedupOverDedup",
		pattern:   search.NewPattern(plandef.KindDedup, search.NewPattern(plandef.KindDedup)),
		transform: replaceWithInput,
	},
}

var queryRules = []*rule{
	{
		name:      "PushFilterDownCrossJoin",
		pattern:   search.NewPattern(plandef.KindFilter, search.NewPattern(plandef.KindCrossJoin)),
		transform: pushFilterDownCrossJoin,
	},
}

func optRules(rules []*rule) []search.OptRule {
	res := make([]search.OptRule, len(rules))
	for i, r := range rules {
		res[i] = r
	}
	return res
}

// Register adds the DefaultSet and QuerySet rule sets to reg.
func Register(reg *search.RuleSetRegistry) error {
	if err := reg.Register(&search.RuleSet{
		Name:   DefaultSet,
		Policy: search.ApplyAll,
		Rules:  optRules(defaultRules),
	}); err != nil {
		return err
	}
	if err := reg.Register(&search.RuleSet{
		Name:   QuerySet,
		Policy: search.ApplyAll,
		Rules:  optRules(queryRules),
	}); err != nil {
		return err
	}
	return reg.Merge(QuerySet, DefaultSet)
}

// NewRegistry returns a registry holding the rule sets of this package. It
// panics if they're invalid.
func NewRegistry() *search.RuleSetRegistry {
	reg := search.NewRuleSetRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}

// replace adds plan as an alternative in the matched root's group, reading
// from deps. plan is rebound to write the group's variable.
func replace(ctx *search.OptContext, m *search.MatchedResult, plan *plandef.PlanNode, deps ...*search.OptGroup) (*search.OptGroupNode, error) {
	g := ctx.Graph()
	if err := g.SetOutputVar(plan.ID, g.OutputVar(m.PlanNode().ID).Name); err != nil {
		return nil, err
	}
	return ctx.NewGroupNode(plan, m.Node().Group(), deps...)
}

// eraseCurrent returns the result for a rule that replaces the matched root
// with node.
func eraseCurrent(node *search.OptGroupNode) *search.TransformResult {
	return &search.TransformResult{
		EraseCurrent:  true,
		NewGroupNodes: []*search.OptGroupNode{node},
	}
}

// replaceWithInput drops the matched root in favor of its input: the input is
// copied into the root's group, reading what the input read. The root must
// not change its input's rows or columns.
func replaceWithInput(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	input := m.Result(0)
	switch input.PlanNode().Kind {
	case plandef.KindSelect, plandef.KindLoop:
		// Copies would share the bodies.
		return nil, nil
	}
	c, err := ctx.Graph().Clone(input.PlanNode().ID)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, c, input.Node().Deps()...)
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}

func cloneExpr(e expr.Expr) expr.Expr {
	if e == nil {
		return nil
	}
	return e.Clone()
}
