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

package plandef

import (
	"fmt"
	"testing"

	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewNodeRegistersSymbols(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	filter := g.MustNewNode(KindFilter, &Filter{Condition: expr.MustParse("v.t.p > 3")}, start.ID)

	startOut := g.OutputVar(start.ID)
	assert.Equal([]NodeID{start.ID}, startOut.WrittenBy())
	assert.Equal([]NodeID{filter.ID}, startOut.ReadBy())
	assert.Equal([]VarID{startOut.ID}, filter.InputVars())
	filterOut := g.OutputVar(filter.ID)
	assert.Equal([]NodeID{filter.ID}, filterOut.WrittenBy())
	assert.Empty(filterOut.ReadBy())
	assert.Equal(startOut, g.InputVar(filter.ID, 0))
	assert.Nil(g.InputVar(filter.ID, 1))
	assert.NoError(g.CheckInvariants())
}

func Test_NewNodeErrors(t *testing.T) {
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	other := g.MustNewNode(KindStart, nil)
	tests := []struct {
		name string
		kind Kind
		args Args
		deps []NodeID
		err  string
	}{
		{"invalid kind", KindUnknown, nil, nil, "invalid plan node kind Kind(0)"},
		{"too few", KindFilter, &Filter{}, nil, "Filter is Single and can't have 0 dependencies"},
		{"too many", KindFilter, &Filter{}, []NodeID{start.ID, other.ID}, "Filter is Single and can't have 2 dependencies"},
		{"binary", KindHashInnerJoin, &Join{}, []NodeID{start.ID}, "HashInnerJoin is Binary and can't have 1 dependencies"},
		{"variadic", KindDataCollect, &DataCollect{}, nil, "DataCollect is Variadic and can't have 0 dependencies"},
		{"admin", KindShowSpaces, nil, []NodeID{start.ID, other.ID}, "ShowSpaces is ZeroOrOne and can't have 2 dependencies"},
		{"wrong args", KindFilter, &Project{}, []NodeID{start.ID}, "*plandef.Project is not a valid payload for Filter"},
		{"missing args", KindProject, nil, []NodeID{start.ID}, "<nil> is not a valid payload for Project"},
		{"unknown dep", KindDedup, nil, []NodeID{99}, "unknown plan node 99"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := g.NewNode(test.kind, test.args, test.deps...)
			assert.EqualError(t, err, test.err)
		})
	}
	assert.Panics(t, func() { g.MustNewNode(KindFilter, &Filter{}) })
	assert.NoError(t, g.CheckInvariants())
}

func Test_NewNodeWithInputs(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	outer, err := g.Symbols().Declare("outer", TypeDataset)
	require.NoError(t, err)
	arg, err := g.NewNodeWithInputs(KindArgument, &Argument{Alias: "v"}, nil, []string{"outer"})
	require.NoError(t, err)
	assert.Equal([]NodeID{arg.ID}, outer.ReadBy())
	_, err = g.NewNodeWithInputs(KindArgument, nil, nil, []string{"missing"})
	assert.EqualError(err, `unknown input variable "missing" for new Argument node`)
}

func Test_NodeIDsAreSharedAcrossGraphs(t *testing.T) {
	ids := new(IDGenerator)
	g1 := NewGraph(ids)
	g2 := NewGraph(ids)
	a := g1.MustNewNode(KindStart, nil)
	b := g2.MustNewNode(KindStart, nil)
	c := g1.MustNewNode(KindStart, nil)
	assert.Equal(t, []NodeID{1, 2, 3}, []NodeID{a.ID, b.ID, c.ID})
	assert.Nil(t, g1.Node(b.ID))
}

func Test_SetOutputVar(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	dedup := g.MustNewNode(KindDedup, nil, start.ID)
	old := g.OutputVar(dedup.ID)
	target, _ := g.Symbols().Declare("target", TypeDataset)

	require.NoError(t, g.SetOutputVar(dedup.ID, "target"))
	assert.Equal(target.ID, dedup.OutputVar())
	assert.Empty(old.WrittenBy())
	assert.Equal([]NodeID{dedup.ID}, target.WrittenBy())
	assert.NoError(g.CheckInvariants())

	assert.Error(g.SetOutputVar(dedup.ID, "missing"))
	assert.Error(g.SetOutputVar(99, "target"))
}

func Test_SetInputVarAndSetDep(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	left := g.MustNewNode(KindStart, nil)
	right := g.MustNewNode(KindStart, nil)
	join := g.MustNewNode(KindCrossJoin, nil, left.ID, left.ID)
	leftOut := g.OutputVar(left.ID)
	// The join reads the left output twice; rebinding one input must not
	// drop it from the readers.
	require.NoError(t, g.SetInputVar(join.ID, 1, g.OutputVar(right.ID).Name))
	assert.Equal([]NodeID{join.ID}, leftOut.ReadBy())
	assert.Equal([]NodeID{join.ID}, g.OutputVar(right.ID).ReadBy())
	// The dependency list isn't changed by SetInputVar.
	assert.Equal([]NodeID{left.ID, left.ID}, join.Deps())

	require.NoError(t, g.SetDep(join.ID, 1, right.ID))
	assert.Equal([]NodeID{left.ID, right.ID}, join.Deps())
	assert.NoError(g.CheckInvariants())

	other := g.MustNewNode(KindStart, nil)
	require.NoError(t, g.SetDep(join.ID, 0, other.ID))
	assert.Empty(leftOut.ReadBy())
	assert.Equal([]NodeID{join.ID}, g.OutputVar(other.ID).ReadBy())
	assert.Equal(g.OutputVar(other.ID), g.InputVar(join.ID, 0))
	assert.NoError(g.CheckInvariants())

	assert.Error(g.SetDep(join.ID, 2, right.ID))
	assert.Error(g.SetDep(join.ID, 0, 99))
	assert.Error(g.SetInputVar(join.ID, 5, leftOut.Name))
	assert.Error(g.SetInputVar(join.ID, 0, "missing"))
}

func Test_ReleaseSymbols(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	limit := g.MustNewNode(KindLimit, &Limit{Count: 10}, start.ID)
	g.ReleaseSymbols(limit.ID)
	g.ReleaseSymbols(limit.ID)
	assert.True(limit.Released())
	assert.Empty(g.OutputVar(start.ID).ReadBy())
	assert.Empty(g.OutputVar(limit.ID).WrittenBy())
	// The node and its variable stay in the arena.
	assert.Equal(limit, g.Node(limit.ID))
	assert.NotNil(g.Symbols().Get(g.OutputVar(limit.ID).Name))
	assert.NoError(g.CheckInvariants())

	g.ReleaseSymbols(start.ID)
	_, err := g.NewNode(KindDedup, nil, start.ID)
	assert.Error(err)
}

func Test_Clone(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	filter := g.MustNewNode(KindFilter, &Filter{Condition: expr.MustParse("v.t.p > 3")}, start.ID)
	filter.Cost = 2.5
	require.NoError(t, g.SetColNames(filter.ID, []string{"v"}))
	parent := g.MustNewNode(KindDedup, nil, filter.ID)

	c, err := g.Clone(filter.ID)
	require.NoError(t, err)
	assert.NotEqual(filter.ID, c.ID)
	assert.Equal(KindFilter, c.Kind)
	assert.Equal(2.5, c.Cost)
	assert.Equal([]NodeID{start.ID}, c.Deps())
	assert.Equal([]string{"v"}, g.ColNames(c.ID))
	assert.NotEqual(filter.OutputVar(), c.OutputVar())
	// The clone reads the same input and has no readers.
	assert.Equal([]NodeID{filter.ID, c.ID}, g.OutputVar(start.ID).ReadBy())
	assert.Empty(g.OutputVar(c.ID).ReadBy())
	assert.Equal([]NodeID{parent.ID}, g.OutputVar(filter.ID).ReadBy())

	// The payload is a deep copy.
	c.Args.(*Filter).Condition.(*expr.Relational).Op = "<"
	assert.Equal("(v.t.p > 3)", filter.Args.(*Filter).Condition.String())
	assert.NoError(g.CheckInvariants())

	_, err = g.Clone(99)
	assert.Error(err)
}

func Test_Clone_releasedDependency(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	dedup := g.MustNewNode(KindDedup, nil, start.ID)
	g.ReleaseSymbols(start.ID)
	_, err := g.NewNode(KindDedup, nil, start.ID)
	assert.EqualError(err, fmt.Sprintf("dependency %v of new Dedup node was released", start.ID))
	c, err := g.Clone(dedup.ID)
	require.NoError(t, err)
	assert.Equal([]NodeID{start.ID}, c.Deps())
	assert.True(g.OutputVar(start.ID).IsReadBy(c.ID))
}

func Test_CheckInvariantsDetectsBrokenSets(t *testing.T) {
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	filter := g.MustNewNode(KindFilter, &Filter{}, start.ID)
	require.NoError(t, g.Symbols().DeleteReadBy(g.OutputVar(start.ID).Name, filter.ID))
	assert.Error(t, g.CheckInvariants())
	require.NoError(t, g.Symbols().ReadBy(g.OutputVar(start.ID).Name, filter.ID))
	assert.NoError(t, g.CheckInvariants())
	require.NoError(t, g.Symbols().ReadBy(g.OutputVar(filter.ID).Name, start.ID))
	assert.Error(t, g.CheckInvariants())
}

func Test_ReachableAndBodies(t *testing.T) {
	assert := assert.New(t)
	g := NewGraph(nil)
	start := g.MustNewNode(KindStart, nil)
	bodyStart := g.MustNewNode(KindStart, nil)
	body := g.MustNewNode(KindDedup, nil, bodyStart.ID)
	loop := g.MustNewNode(KindLoop, &Loop{Body: body.ID, Condition: expr.MustParse("true")}, start.ID)
	project := g.MustNewNode(KindProject, &Project{}, loop.ID)
	assert.Equal([]NodeID{body.ID}, g.Bodies(loop.ID))
	assert.Nil(g.Bodies(project.ID))
	assert.Equal([]NodeID{start.ID, bodyStart.ID, body.ID, loop.ID, project.ID}, g.Reachable(project.ID))
	assert.Len(g.Nodes(), 5)
}
