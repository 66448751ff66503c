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
	"testing"

	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// convertOnly builds the memo for root without exploring it.
func convertOnly(t *testing.T, g *plandef.Graph, root plandef.NodeID) *Optimizer {
	o := New(g, nil, Options{CheckInvariants: true})
	require.NoError(t, o.convert(root))
	require.NoError(t, o.CheckInvariants())
	return o
}

func Test_Pattern_String(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("Filter", NewPattern(plandef.KindFilter).String())
	assert.Equal("Project(Filter(Start))",
		NewPattern(plandef.KindProject,
			NewPattern(plandef.KindFilter,
				NewPattern(plandef.KindStart))).String())
	p := NewMultiPattern([]plandef.Kind{plandef.KindProject, plandef.KindFilter},
		NewPattern(plandef.KindStart))
	assert.Equal("{Filter|Project}(Start)", p.String())
	assert.Equal([]plandef.Kind{plandef.KindFilter, plandef.KindProject}, p.Kinds())
	assert.Len(p.Children(), 1)
}

func Test_Pattern_Match(t *testing.T) {
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	project := g.MustNewNode(plandef.KindProject, &plandef.Project{}, start.ID)
	dedup := g.MustNewNode(plandef.KindDedup, nil, start.ID)
	overProject := g.MustNewNode(plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse("a")}, project.ID)
	overDedup := g.MustNewNode(plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse("b")}, dedup.ID)
	join := g.MustNewNode(plandef.KindCrossJoin, nil, project.ID, project.ID)
	root := g.MustNewNode(plandef.KindDataCollect, &plandef.DataCollect{},
		start.ID, overProject.ID, overDedup.ID, join.ID)
	o := convertOnly(t, g, root.ID)
	node := func(n *plandef.PlanNode) *OptGroupNode {
		return o.byPlan[n.ID]
	}

	// The pattern {Start, Filter, CrossJoin} with a single Project child.
	pattern := NewMultiPattern(
		[]plandef.Kind{plandef.KindStart, plandef.KindFilter, plandef.KindCrossJoin},
		NewPattern(plandef.KindProject))
	tests := []struct {
		name  string
		node  *plandef.PlanNode
		match bool
	}{
		{"match", overProject, true},
		{"zero deps", start, false},
		{"wrong child kind", overDedup, false},
		{"two deps", join, false},
		{"wrong root kind", project, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, ok := pattern.Match(node(test.node))
			assert.Equal(t, test.match, ok)
			if test.match {
				assert.Equal(t, test.node, m.PlanNode())
				assert.Equal(t, project, m.Result(0).PlanNode())
			} else {
				assert.Nil(t, m)
			}
		})
	}

	// A pattern without children matches regardless of the inputs.
	m, ok := NewPattern(plandef.KindCrossJoin).Match(node(join))
	assert.True(t, ok)
	assert.Empty(t, m.Deps())
	_, ok = NewPattern(plandef.KindFilter).Match(nil)
	assert.False(t, ok)
}

func Test_Pattern_MatchEveryAlternative(t *testing.T) {
	assert := assert.New(t)
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	project := g.MustNewNode(plandef.KindProject, &plandef.Project{}, start.ID)
	filter := g.MustNewNode(plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse("a")}, project.ID)
	o := convertOnly(t, g, filter.ID)
	pattern := NewPattern(plandef.KindFilter, NewPattern(plandef.KindProject))
	_, ok := pattern.Match(o.byPlan[filter.ID])
	assert.True(ok)

	// Add a Dedup alternative to the Project's group: now not every
	// alternative matches.
	group := o.byPlan[project.ID].Group()
	alt := g.MustNewNode(plandef.KindDedup, nil, start.ID)
	group.add(o.newGroupNode(alt, group, []*OptGroup{o.byPlan[start.ID].Group()}))
	_, ok = pattern.Match(o.byPlan[filter.ID])
	assert.False(ok)

	// Another Project alternative is fine, and the first one is captured.
	group.remove(o.byPlan[alt.ID])
	alt2 := g.MustNewNode(plandef.KindProject, &plandef.Project{}, start.ID)
	group.add(o.newGroupNode(alt2, group, []*OptGroup{o.byPlan[start.ID].Group()}))
	m, ok := pattern.Match(o.byPlan[filter.ID])
	assert.True(ok)
	assert.Equal(project, m.Result(0).PlanNode())

	// An empty input group never matches.
	group.nodes = nil
	_, ok = pattern.Match(o.byPlan[filter.ID])
	assert.False(ok)
}

func Test_MatchedResult_Result(t *testing.T) {
	assert := assert.New(t)
	g := plandef.NewGraph(nil)
	start := g.MustNewNode(plandef.KindStart, nil)
	dedup := g.MustNewNode(plandef.KindDedup, nil, start.ID)
	limit := g.MustNewNode(plandef.KindLimit, &plandef.Limit{Count: 3}, dedup.ID)
	o := convertOnly(t, g, limit.ID)
	m, ok := NewPattern(plandef.KindLimit,
		NewPattern(plandef.KindDedup,
			NewPattern(plandef.KindStart))).Match(o.byPlan[limit.ID])
	require.True(t, ok)
	assert.Same(m, m.Result())
	assert.Equal(dedup, m.Result(0).PlanNode())
	assert.Equal(start, m.Result(0, 0).PlanNode())
	assert.Nil(m.Result(1))
	assert.Nil(m.Result(0, 0, 0))
	assert.Nil(m.Result(-1))
	assert.Len(m.nodes(), 3)
	assert.Equal(map[*OptGroup]bool{}, matchBoundary(m))

	m, ok = NewPattern(plandef.KindLimit, NewPattern(plandef.KindDedup)).Match(o.byPlan[limit.ID])
	require.True(t, ok)
	assert.Equal(map[*OptGroup]bool{o.byPlan[start.ID].Group(): true}, matchBoundary(m))
}

func Test_Pattern_validate(t *testing.T) {
	tests := []struct {
		name    string
		pattern *Pattern
		err     string
	}{
		{"ok", NewPattern(plandef.KindFilter, NewPattern(plandef.KindProject)), ""},
		{"binary", NewPattern(plandef.KindHashInnerJoin,
			NewPattern(plandef.KindFilter), NewPattern(plandef.KindProject)), ""},
		{"variadic", NewPattern(plandef.KindDataCollect, NewPattern(plandef.KindProject)), ""},
		{"no kinds", NewMultiPattern(nil), "pattern has no kinds"},
		{"invalid kind", NewPattern(plandef.KindUnknown), "pattern Kind(0) has invalid kind Kind(0)"},
		{"zero arity children", NewPattern(plandef.KindStart, NewPattern(plandef.KindFilter)),
			"pattern Start(Filter): Start can't have child patterns"},
		{"too many children", NewPattern(plandef.KindFilter,
			NewPattern(plandef.KindStart), NewPattern(plandef.KindStart)),
			"pattern Filter(Start, Start): Filter is Single and can't have 2 child patterns"},
		{"every kind checked", NewMultiPattern([]plandef.Kind{plandef.KindFilter, plandef.KindCrossJoin},
			NewPattern(plandef.KindStart)),
			"pattern {Filter|CrossJoin}(Start): CrossJoin is Binary and can't have 1 child patterns"},
		{"nested", NewPattern(plandef.KindFilter, NewMultiPattern(nil)), "pattern has no kinds"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.pattern.validate()
			if test.err == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, test.err)
			}
		})
	}
}
