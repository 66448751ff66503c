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
	"context"
	"testing"

	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRule struct {
	name      string
	pattern   *Pattern
	match     func(ctx *OptContext, m *MatchedResult) bool
	transform func(ctx *OptContext, m *MatchedResult) (*TransformResult, error)
}

func (r *testRule) Name() string       { return r.name }
func (r *testRule) Pattern() *Pattern { return r.pattern }

func (r *testRule) Match(ctx *OptContext, m *MatchedResult) bool {
	if r.match == nil {
		return true
	}
	return r.match(ctx, m)
}

func (r *testRule) Transform(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
	return r.transform(ctx, m)
}

func ruleSet(rules ...OptRule) []*RuleSet {
	return []*RuleSet{{Name: "test", Rules: rules}}
}

// cloneAsAlternative adds a copy of the matched root to the root's group.
func cloneAsAlternative(ctx *OptContext, m *MatchedResult) (*OptGroupNode, error) {
	g := ctx.Graph()
	c, err := g.Clone(m.PlanNode().ID)
	if err != nil {
		return nil, err
	}
	if err := g.SetOutputVar(c.ID, g.OutputVar(m.PlanNode().ID).Name); err != nil {
		return nil, err
	}
	return ctx.NewGroupNode(c, m.Node().Group(), m.Node().Deps()...)
}

// noopRule replaces every matching node with a copy of itself. It's always
// accepted, so exploration only stops at the round limit.
func noopRule(kind plandef.Kind) *testRule {
	return &testRule{
		name:    "Noop",
		pattern: NewPattern(kind),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			node, err := cloneAsAlternative(ctx, m)
			if err != nil {
				return nil, err
			}
			return &TransformResult{EraseCurrent: true, NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
}

type testPlan struct {
	g       *plandef.Graph
	start   *plandef.PlanNode
	filter  *plandef.PlanNode
	project *plandef.PlanNode
}

// newTestPlan returns the plan Project(Filter(Start)).
func newTestPlan() *testPlan {
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	filter := g.MustNewNode(plandef.KindFilter, &plandef.Filter{
		Condition: expr.MustParse("v.t.p > 3"),
	}, start.ID)
	project := g.MustNewNode(plandef.KindProject, &plandef.Project{Columns: []plandef.YieldColumn{
		{Expr: expr.MustParse("v.t.p"), Alias: "p"},
	}}, filter.ID)
	return &testPlan{g: g, start: start, filter: filter, project: project}
}

func Test_Optimize_noRules(t *testing.T) {
	assert := assert.New(t)
	p := newTestPlan()
	before := p.g.Format(p.project.ID)
	o := New(p.g, nil, Options{CheckInvariants: true})
	root, err := o.Optimize(context.Background(), p.project.ID)
	require.NoError(t, err)
	assert.Equal(p.project.ID, root)
	assert.Equal(before, p.g.Format(root))
	stats := o.Stats()
	assert.Equal(1, stats.Rounds)
	assert.Equal(3, stats.Groups)
	assert.Equal(3, stats.GroupNodes)
	assert.Equal(0, stats.TotalApplied())
	assert.False(stats.Cancelled)
	assert.NoError(p.g.CheckInvariants())

	_, err = o.Optimize(context.Background(), p.project.ID)
	assert.EqualError(err, "optimizer already used")
}

func Test_Optimize_badRoot(t *testing.T) {
	p := newTestPlan()
	o := New(p.g, nil, Options{})
	_, err := o.Optimize(context.Background(), 42)
	assert.EqualError(t, err, "unknown plan node 42")
}

func Test_ExplorationBound(t *testing.T) {
	for _, max := range []int{1, 3, 0} {
		p := newTestPlan()
		outVar := p.filter.OutputVar()
		o := New(p.g, ruleSet(noopRule(plandef.KindFilter)), Options{
			MaxExplorationRounds: max,
			CheckInvariants:      true,
		})
		root, err := o.Optimize(context.Background(), p.project.ID)
		require.NoError(t, err)
		exp := max
		if max == 0 {
			exp = DefaultMaxExplorationRounds
		}
		stats := o.Stats()
		assert.Equal(t, exp, stats.Rounds, "max %d", max)
		assert.Equal(t, exp, stats.Applied["Noop"], "max %d", max)
		assert.Equal(t, p.project.ID, root)

		chosen := p.g.Node(p.g.Node(root).Dep(0))
		assert.Equal(t, plandef.KindFilter, chosen.Kind)
		assert.NotEqual(t, p.filter.ID, chosen.ID)
		assert.Equal(t, outVar, chosen.OutputVar())
		assert.True(t, p.filter.Released())
		assert.NoError(t, p.g.CheckInvariants())
	}
}

func Test_Cancelled(t *testing.T) {
	assert := assert.New(t)
	p := newTestPlan()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := New(p.g, ruleSet(noopRule(plandef.KindFilter)), Options{CheckInvariants: true})
	root, err := o.Optimize(ctx, p.project.ID)
	assert.NoError(err)
	assert.Equal(p.project.ID, root)
	stats := o.Stats()
	assert.True(stats.Cancelled)
	assert.Equal(0, stats.Rounds)
	assert.Equal(p.filter.ID, p.g.Node(root).Dep(0))
}

func Test_ApplyFirst(t *testing.T) {
	var calls []string
	record := func(name string) *testRule {
		rule := noopRule(plandef.KindFilter)
		rule.name = name
		transform := rule.transform
		rule.transform = func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			calls = append(calls, name)
			return transform(ctx, m)
		}
		return rule
	}
	for _, test := range []struct {
		policy Policy
		exp    []string
	}{
		// The first rule erases the node, so the second never sees it.
		{ApplyAll, []string{"A"}},
		{ApplyFirst, []string{"A"}},
	} {
		calls = nil
		p := newTestPlan()
		sets := []*RuleSet{{Name: "test", Policy: test.policy, Rules: []OptRule{record("A"), record("B")}}}
		o := New(p.g, sets, Options{MaxExplorationRounds: 1, CheckInvariants: true})
		_, err := o.Optimize(context.Background(), p.project.ID)
		require.NoError(t, err)
		assert.Equal(t, test.exp, calls, "%v", test.policy)
	}
}

func Test_ApplyFirst_keepsNode(t *testing.T) {
	// These rules add an alternative without erasing the matched node.
	addCheaper := func(name string, applied *[]string) *testRule {
		return &testRule{
			name:    name,
			pattern: NewPattern(plandef.KindFilter),
			match: func(ctx *OptContext, m *MatchedResult) bool {
				return m.PlanNode().Cost > 1
			},
			transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
				*applied = append(*applied, name)
				node, err := cloneAsAlternative(ctx, m)
				if err != nil {
					return nil, err
				}
				node.Node().Cost = 1
				return &TransformResult{NewGroupNodes: []*OptGroupNode{node}}, nil
			},
		}
	}
	for _, test := range []struct {
		policy Policy
		exp    []string
	}{
		{ApplyAll, []string{"A", "B"}},
		{ApplyFirst, []string{"A"}},
	} {
		var applied []string
		p := newTestPlan()
		p.filter.Cost = 10
		sets := []*RuleSet{{Name: "test", Policy: test.policy, Rules: []OptRule{
			addCheaper("A", &applied), addCheaper("B", &applied),
		}}}
		o := New(p.g, sets, Options{MaxExplorationRounds: 1, CheckInvariants: true})
		_, err := o.Optimize(context.Background(), p.project.ID)
		require.NoError(t, err)
		assert.Equal(t, test.exp, applied, "%v", test.policy)
	}
}

func Test_BestPlan_lowestCost(t *testing.T) {
	assert := assert.New(t)
	p := newTestPlan()
	p.filter.Cost = 10
	var added *plandef.PlanNode
	rule := &testRule{
		name:    "Cheaper",
		pattern: NewPattern(plandef.KindFilter),
		match: func(ctx *OptContext, m *MatchedResult) bool {
			return m.PlanNode().Cost > 1
		},
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			node, err := cloneAsAlternative(ctx, m)
			if err != nil {
				return nil, err
			}
			node.Node().Cost = 1
			added = node.Node()
			return &TransformResult{NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
	o := New(p.g, ruleSet(rule), Options{CheckInvariants: true})
	root, err := o.Optimize(context.Background(), p.project.ID)
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.Equal(added.ID, p.g.Node(root).Dep(0))
	assert.True(p.filter.Released())
	assert.False(added.Released())
	assert.Equal(2, o.Stats().Rounds)
	assert.Equal(2, o.Root().Best().Dep(0).NumNodes())
	assert.NoError(p.g.CheckInvariants())
}

func Test_BestPlan_tieGoesToFirst(t *testing.T) {
	p := newTestPlan()
	rule := &testRule{
		name:    "Same",
		pattern: NewPattern(plandef.KindFilter),
		match: func(ctx *OptContext, m *MatchedResult) bool {
			return m.Node().Group().NumNodes() == 1
		},
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			node, err := cloneAsAlternative(ctx, m)
			if err != nil {
				return nil, err
			}
			return &TransformResult{NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
	o := New(p.g, ruleSet(rule), Options{CheckInvariants: true})
	root, err := o.Optimize(context.Background(), p.project.ID)
	require.NoError(t, err)
	assert.Equal(t, p.filter.ID, p.g.Node(root).Dep(0))
	assert.Equal(t, 1, o.Stats().Applied["Same"])
}

func Test_CostFunc(t *testing.T) {
	p := newTestPlan()
	var added *plandef.PlanNode
	rule := &testRule{
		name:    "ToDedup",
		pattern: NewPattern(plandef.KindFilter),
		match: func(ctx *OptContext, m *MatchedResult) bool {
			return m.Node().Group().NumNodes() == 1
		},
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			g := ctx.Graph()
			n, err := g.NewNode(plandef.KindDedup, nil, m.PlanNode().Dep(0))
			if err != nil {
				return nil, err
			}
			if err := g.SetOutputVar(n.ID, g.OutputVar(m.PlanNode().ID).Name); err != nil {
				return nil, err
			}
			node, err := ctx.NewGroupNode(n, m.Node().Group(), m.Node().Deps()...)
			if err != nil {
				return nil, err
			}
			added = n
			return &TransformResult{NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
	cost := func(node *OptGroupNode) float64 {
		if node.Node().Kind == plandef.KindFilter {
			return 5
		}
		return 1
	}
	o := New(p.g, ruleSet(rule), Options{CheckInvariants: true, Cost: cost})
	root, err := o.Optimize(context.Background(), p.project.ID)
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.Equal(t, added.ID, p.g.Node(root).Dep(0))
	assert.Equal(t, []plandef.NodeID{p.start.ID}, added.Deps())
}

func Test_SelectBody(t *testing.T) {
	assert := assert.New(t)
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	bodyStart := g.MustNewNode(plandef.KindStart, nil)
	body := g.MustNewNode(plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse("x > 1")}, bodyStart.ID)
	sel := g.MustNewNode(plandef.KindSelect, &plandef.Select{
		If:        body.ID,
		Condition: expr.MustParse("true"),
	}, start.ID)

	o := New(g, ruleSet(noopRule(plandef.KindFilter)), Options{
		MaxExplorationRounds: 1,
		CheckInvariants:      true,
	})
	root, err := o.Optimize(context.Background(), sel.ID)
	require.NoError(t, err)
	assert.Equal(sel.ID, root)
	assert.Equal(1, o.Stats().Applied["Noop"])
	newBody := sel.Args.(*plandef.Select).If
	assert.NotEqual(body.ID, newBody)
	assert.Equal(plandef.KindFilter, g.Node(newBody).Kind)
	assert.Equal(body.OutputVar(), g.Node(newBody).OutputVar())
	assert.Equal([]plandef.NodeID{bodyStart.ID}, g.Node(newBody).Deps())
	assert.True(body.Released())
	assert.NoError(g.CheckInvariants())
}

func Test_SharedNodeConvertedOnce(t *testing.T) {
	assert := assert.New(t)
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	left := g.MustNewNode(plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse("a > 1")}, start.ID)
	right := g.MustNewNode(plandef.KindDedup, nil, start.ID)
	join := g.MustNewNode(plandef.KindCrossJoin, nil, left.ID, right.ID)
	o := New(g, nil, Options{CheckInvariants: true})
	_, err := o.Optimize(context.Background(), join.ID)
	require.NoError(t, err)
	assert.Equal(4, o.Stats().Groups)
	assert.Same(o.Root().Best().Dep(0).Best().Dep(0), o.Root().Best().Dep(1).Best().Dep(0))
}

func Test_StatsTotalApplied(t *testing.T) {
	s := Stats{Applied: map[string]int{"a": 2, "b": 3}}
	assert.Equal(t, 5, s.TotalApplied())
	assert.Equal(t, 0, new(Stats).TotalApplied())
}
