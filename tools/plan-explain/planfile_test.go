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

package main

import (
	"strings"
	"testing"

	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_readPlan(t *testing.T) {
	assert := assert.New(t)
	plan, err := readPlan(strings.NewReader(`{
		"nodes": [
			{"name": "start", "kind": "Start", "cols": ["s"]},
			{"name": "get", "kind": "GetVertices", "deps": ["start"], "cols": ["s", "v"],
			 "args": {"space": "g", "src": "$-.s",
				"vertexProps": [{"tag": "person", "allProps": true}]}},
			{"name": "sort", "kind": "TopN", "deps": ["get"], "cols": ["s", "v"],
			 "args": {"factors": ["s", "v desc"], "count": 10}}
		]
	}`))
	require.NoError(t, err)
	g := plan.graph
	root := g.Node(plan.root)
	assert.Equal(plandef.KindTopN, root.Kind)
	assert.Equal(&plandef.TopN{
		Factors: []plandef.SortFactor{{Column: "s"}, {Column: "v", Desc: true}},
		Count:   10,
	}, root.Args)
	assert.Equal([]string{"s", "v"}, g.ColNames(root.ID))

	get := g.Node(root.Deps()[0])
	args := get.Args.(*plandef.GetVertices)
	assert.Equal("g", args.Space)
	assert.Equal("$-.s", args.Src.String())
	assert.Equal([]plandef.VertexProp{{Tag: "person", AllProps: true}}, args.VertexProps)
	assert.Equal(plandef.KindStart, g.Node(get.Deps()[0]).Kind)
	assert.NoError(g.CheckInvariants())
}

func Test_readPlan_branches(t *testing.T) {
	plan, err := readPlan(strings.NewReader(`{
		"root": "loop",
		"nodes": [
			{"name": "start", "kind": "Start"},
			{"name": "arg", "kind": "Argument", "args": {"alias": "x"}},
			{"name": "body", "kind": "Project", "deps": ["arg"], "cols": ["y"],
			 "args": {"columns": [{"expr": "$-.x", "alias": "y"}]}},
			{"name": "loop", "kind": "Loop", "deps": ["start"],
			 "args": {"body": "body", "condition": "$var.n < 3"}}
		]
	}`))
	require.NoError(t, err)
	loop := plan.graph.Node(plan.root).Args.(*plandef.Loop)
	assert.Equal(t, plandef.KindProject, plan.graph.Node(loop.Body).Kind)
	assert.Equal(t, []plandef.NodeID{loop.Body}, plan.graph.Bodies(plan.root))
}

func Test_readPlan_errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expErr string
	}{
		{"empty", `{}`, "plan has no nodes"},
		{"unknownField", `{"nodez": []}`,
			`unable to decode plan: json: unknown field "nodez"`},
		{"noName", `{"nodes": [{"kind": "Start"}]}`, "node 0 has no name"},
		{"duplicate", `{"nodes": [{"name": "a", "kind": "Start"}, {"name": "a", "kind": "Start"}]}`,
			`node name "a" is used more than once`},
		{"kind", `{"nodes": [{"name": "a", "kind": "Bogus"}]}`, `node a: unknown kind "Bogus"`},
		{"dep", `{"nodes": [{"name": "a", "kind": "Filter", "deps": ["b"]}]}`,
			`node a: unknown dependency "b"`},
		{"expr", `{"nodes": [{"name": "s", "kind": "Start"},
			{"name": "a", "kind": "Filter", "deps": ["s"], "args": {"condition": "a >"}}]}`,
			`node a: invalid expression "a >"`},
		{"arity", `{"nodes": [{"name": "a", "kind": "Filter", "args": {"condition": "true"}}]}`,
			"node a: Filter is Single and can't have 0 dependencies"},
		{"unsupported", `{"nodes": [{"name": "s", "kind": "Start"},
			{"name": "a", "kind": "InsertVertices", "deps": ["s"]}]}`,
			"node a: kind InsertVertices is not supported in plan files"},
		{"root", `{"root": "x", "nodes": [{"name": "s", "kind": "Start"}]}`,
			`unknown root node "x"`},
		{"steps", `{"nodes": [{"name": "s", "kind": "Start"},
			{"name": "t", "kind": "Traverse", "deps": ["s"], "args": {"steps": "3..1"}}]}`,
			`node t: invalid step range "3..1"`},
		{"direction", `{"nodes": [{"name": "s", "kind": "Start"},
			{"name": "t", "kind": "GetNeighbors", "deps": ["s"], "args": {"direction": "up"}}]}`,
			`node t: invalid direction "up"`},
		{"collect", `{"nodes": [{"name": "s", "kind": "Start"},
			{"name": "c", "kind": "DataCollect", "deps": ["s"], "args": {"collect": "x"}}]}`,
			`node c: invalid collect kind "x"`},
		{"branch", `{"nodes": [{"name": "s", "kind": "Start"},
			{"name": "l", "kind": "Loop", "deps": ["s"], "args": {"body": "b"}}]}`,
			`node l: unknown branch node "b"`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := readPlan(strings.NewReader(test.input))
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), test.expErr)
			}
		})
	}
}

func Test_parseFactors(t *testing.T) {
	factors, err := parseFactors([]string{"a", "b ASC", "c Desc"})
	require.NoError(t, err)
	assert.Equal(t, []plandef.SortFactor{
		{Column: "a"}, {Column: "b"}, {Column: "c", Desc: true},
	}, factors)
	_, err = parseFactors([]string{"a up"})
	assert.EqualError(t, err, `invalid sort factor "a up"`)
}

func Test_parseSteps(t *testing.T) {
	tests := []struct {
		in     string
		exp    plandef.StepRange
		expErr bool
	}{
		{"", plandef.StepRange{Min: 1, Max: 1}, false},
		{"2", plandef.StepRange{Min: 2, Max: 2}, false},
		{"0..3", plandef.StepRange{Min: 0, Max: 3}, false},
		{"a..3", plandef.StepRange{}, true},
		{"1..b", plandef.StepRange{}, true},
		{"-1..2", plandef.StepRange{}, true},
	}
	for _, test := range tests {
		r, err := parseSteps(test.in)
		if test.expErr {
			assert.Error(t, err, "input %q", test.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, test.exp, r, "input %q", test.in)
	}
}

func Test_schemaFile(t *testing.T) {
	s := schemaFile{Tags: map[string][]string{"person": {"name"}}}
	props, err := s.TagProps("g", "person")
	assert.NoError(t, err)
	assert.Equal(t, []string{"name"}, props)
	_, err = s.TagProps("g", "car")
	assert.EqualError(t, err, `tag "car" not found in space g`)
	_, err = s.EdgeProps("g", "likes")
	assert.EqualError(t, err, `edge type "likes" not found in space g`)
}
