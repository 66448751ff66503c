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
	"errors"
	"testing"

	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_convert_cycle(t *testing.T) {
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	a := g.MustNewNode(plandef.KindDedup, nil, start.ID)
	b := g.MustNewNode(plandef.KindDedup, nil, a.ID)
	require.NoError(t, g.SetDep(a.ID, 0, b.ID))
	o := New(g, nil, Options{})
	assert.EqualError(t, o.convert(b.ID), "plan has a cycle through node 3")
}

func Test_convert_released(t *testing.T) {
	p := newTestPlan()
	p.g.ReleaseSymbols(p.filter.ID)
	o := New(p.g, nil, Options{})
	assert.EqualError(t, o.convert(p.project.ID), "plan node 2 was released")
}

// optimizeWith runs a single exploration round of rule over the plan and
// returns the optimizer.
func optimizeWith(t *testing.T, g *plandef.Graph, root plandef.NodeID, rule OptRule) (*Optimizer, plandef.NodeID) {
	o := New(g, ruleSet(rule), Options{MaxExplorationRounds: 1, CheckInvariants: true})
	res, err := o.Optimize(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, g.CheckInvariants())
	return o, res
}

func Test_Safety_rejectsWrongInputs(t *testing.T) {
	assert := assert.New(t)
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	dedup := g.MustNewNode(plandef.KindDedup, nil, start.ID)
	filter := g.MustNewNode(plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse("a > 1")}, dedup.ID)
	project := g.MustNewNode(plandef.KindProject, &plandef.Project{}, filter.ID)
	before := g.Format(project.ID)
	numVars := g.Symbols().Len()

	// Skips the Dedup: the replacement reads the Start's group rather than the
	// Dedup's.
	rule := &testRule{
		name:    "SkipDedup",
		pattern: NewPattern(plandef.KindFilter, NewPattern(plandef.KindDedup)),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			c, err := ctx.Graph().Clone(m.PlanNode().ID)
			if err != nil {
				return nil, err
			}
			if err := ctx.Graph().SetOutputVar(c.ID, ctx.Graph().OutputVar(m.PlanNode().ID).Name); err != nil {
				return nil, err
			}
			startGroup := m.Node().Dep(0).Nodes()[0].Dep(0)
			node, err := ctx.NewGroupNode(c, m.Node().Group(), startGroup)
			if err != nil {
				return nil, err
			}
			return &TransformResult{EraseCurrent: true, NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
	// Without a Dedup child pattern, the Dedup's group is the boundary.
	o, root := optimizeWith(t, g, project.ID, &testRule{
		name:      rule.name,
		pattern:   NewPattern(plandef.KindFilter),
		transform: rule.transform,
	})
	assert.Equal(1, o.Stats().Rejected["SkipDedup"])
	assert.Equal(0, o.Stats().Applied["SkipDedup"])
	assert.Equal(before, g.Format(root))
	assert.Equal(numVars+1, g.Symbols().Len())

	// With a Dedup child pattern, the Start's group is the boundary, so the
	// same rewrite is accepted.
	o, root = optimizeWith(t, g, project.ID, rule)
	assert.Equal(1, o.Stats().Applied["SkipDedup"])
	chosen := g.Node(g.Node(root).Dep(0))
	assert.Equal(plandef.KindFilter, chosen.Kind)
	assert.Equal([]plandef.NodeID{start.ID}, chosen.Deps())
	assert.True(dedup.Released())
}

func Test_Safety_rejectsWrongOutputVar(t *testing.T) {
	p := newTestPlan()
	before := p.g.Format(p.project.ID)
	rule := &testRule{
		name:    "ForgetVar",
		pattern: NewPattern(plandef.KindFilter),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			c, err := ctx.Graph().Clone(m.PlanNode().ID)
			if err != nil {
				return nil, err
			}
			node, err := ctx.NewGroupNode(c, m.Node().Group(), m.Node().Deps()...)
			if err != nil {
				return nil, err
			}
			return &TransformResult{EraseCurrent: true, NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
	o, root := optimizeWith(t, p.g, p.project.ID, rule)
	assert.Equal(t, 1, o.Stats().Rejected["ForgetVar"])
	assert.Equal(t, before, p.g.Format(root))
	assert.False(t, p.filter.Released())
}

func Test_Safety_rejectsSelfReference(t *testing.T) {
	p := newTestPlan()
	rule := &testRule{
		name:    "Loop",
		pattern: NewPattern(plandef.KindFilter),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			g := ctx.Graph()
			n, err := g.NewNode(plandef.KindDedup, nil, m.PlanNode().ID)
			if err != nil {
				return nil, err
			}
			if err := g.SetOutputVar(n.ID, g.OutputVar(m.PlanNode().ID).Name); err != nil {
				return nil, err
			}
			node, err := ctx.NewGroupNode(n, m.Node().Group(), m.Node().Group())
			if err != nil {
				return nil, err
			}
			return &TransformResult{NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
	o, _ := optimizeWith(t, p.g, p.project.ID, rule)
	assert.Equal(t, 1, o.Stats().Rejected["Loop"])
}

func Test_Safety_eraseAllSharedInput(t *testing.T) {
	// CrossJoin(Filter(Project(Start)), Project(Start)): the Project is read
	// by both the Filter and the CrossJoin.
	build := func() (*plandef.Graph, *plandef.PlanNode, *plandef.PlanNode) {
		g := plandef.NewGraph(nil)
		start := g.MustNewNode(plandef.KindStart, nil)
		project := g.MustNewNode(plandef.KindProject, &plandef.Project{Columns: []plandef.YieldColumn{
			{Expr: expr.MustParse("a"), Alias: "a"},
		}}, start.ID)
		filter := g.MustNewNode(plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse("a > 1")}, project.ID)
		join := g.MustNewNode(plandef.KindCrossJoin, nil, filter.ID, project.ID)
		return g, project, join
	}
	// Replaces Filter(Project(x)) with a Project(x) that writes the Filter's
	// variable.
	rule := func(eraseAll bool) *testRule {
		return &testRule{
			name:    "MergeIntoProject",
			pattern: NewPattern(plandef.KindFilter, NewPattern(plandef.KindProject)),
			transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
				g := ctx.Graph()
				inner := m.Result(0)
				c, err := g.Clone(inner.PlanNode().ID)
				if err != nil {
					return nil, err
				}
				if err := g.SetOutputVar(c.ID, g.OutputVar(m.PlanNode().ID).Name); err != nil {
					return nil, err
				}
				node, err := ctx.NewGroupNode(c, m.Node().Group(), inner.Node().Deps()...)
				if err != nil {
					return nil, err
				}
				return &TransformResult{
					EraseCurrent:  true,
					EraseAll:      eraseAll,
					NewGroupNodes: []*OptGroupNode{node},
				}, nil
			},
		}
	}

	g, project, join := build()
	o, _ := optimizeWith(t, g, join.ID, rule(true))
	assert.Equal(t, 1, o.Stats().Rejected["MergeIntoProject"])
	assert.False(t, project.Released())

	g, project, join = build()
	o, root := optimizeWith(t, g, join.ID, rule(false))
	assert.Equal(t, 1, o.Stats().Applied["MergeIntoProject"])
	assert.False(t, project.Released())
	assert.Equal(t, plandef.KindProject, g.Node(g.Node(root).Dep(0)).Kind)
	assert.Equal(t, project.ID, g.Node(root).Dep(1))
}

func Test_Safety_unlistedAndForeignNodes(t *testing.T) {
	p := newTestPlan()
	unlisted := &testRule{
		name:    "Unlisted",
		pattern: NewPattern(plandef.KindFilter),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			if _, err := cloneAsAlternative(ctx, m); err != nil {
				return nil, err
			}
			return &TransformResult{EraseCurrent: true}, nil
		},
	}
	o, _ := optimizeWith(t, p.g, p.project.ID, unlisted)
	assert.Equal(t, 1, o.Stats().Rejected["Unlisted"])

	p = newTestPlan()
	foreign := &testRule{
		name:    "Foreign",
		pattern: NewPattern(plandef.KindProject),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			// Adds a node to the Filter's group while matching the Project.
			filter := m.Node().Dep(0).Nodes()[0]
			c, err := ctx.Graph().Clone(filter.Node().ID)
			if err != nil {
				return nil, err
			}
			if err := ctx.Graph().SetOutputVar(c.ID, ctx.Graph().OutputVar(filter.Node().ID).Name); err != nil {
				return nil, err
			}
			node, err := ctx.NewGroupNode(c, filter.Group(), filter.Deps()...)
			if err != nil {
				return nil, err
			}
			return &TransformResult{NewGroupNodes: []*OptGroupNode{node}}, nil
		},
	}
	o, _ = optimizeWith(t, p.g, p.project.ID, foreign)
	assert.Equal(t, 1, o.Stats().Rejected["Foreign"])
}

func Test_Transform_declined(t *testing.T) {
	p := newTestPlan()
	numVars := p.g.Symbols().Len()
	rule := &testRule{
		name:    "Fails",
		pattern: NewPattern(plandef.KindFilter),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			if _, err := cloneAsAlternative(ctx, m); err != nil {
				return nil, err
			}
			return nil, errors.New("not today")
		},
	}
	o, root := optimizeWith(t, p.g, p.project.ID, rule)
	assert.Equal(t, 0, o.Stats().Rejected["Fails"])
	assert.Equal(t, 0, o.Stats().Applied["Fails"])
	assert.Equal(t, p.filter.ID, p.g.Node(root).Dep(0))
	// The clone's symbols were released.
	clone := p.g.Nodes()[3]
	assert.True(t, clone.Released())
	assert.Equal(t, []plandef.NodeID{p.filter.ID}, p.g.Symbols().Lookup(clone.OutputVar()).WrittenBy())
	assert.Equal(t, numVars+1, p.g.Symbols().Len())

	empty := &testRule{
		name:    "Empty",
		pattern: NewPattern(plandef.KindFilter),
		transform: func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
			return &TransformResult{}, nil
		},
	}
	o, _ = optimizeWith(t, p.g, root, empty)
	stats := o.Stats()
	assert.Equal(t, 0, stats.TotalApplied())
}

func Test_commit_releasesUnwrappedNodes(t *testing.T) {
	p := newTestPlan()
	var scratch *plandef.PlanNode
	rule := noopRule(plandef.KindFilter)
	transform := rule.transform
	rule.transform = func(ctx *OptContext, m *MatchedResult) (*TransformResult, error) {
		scratch = ctx.Graph().MustNewNode(plandef.KindDedup, nil, m.PlanNode().Dep(0))
		return transform(ctx, m)
	}
	o, _ := optimizeWith(t, p.g, p.project.ID, rule)
	assert.Equal(t, 1, o.Stats().Applied["Noop"])
	assert.True(t, scratch.Released())
}
