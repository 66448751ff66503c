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

package planner

import (
	"fmt"
	"strings"

	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
)

// node creates a node over deps and names its output columns.
func node(g *plandef.Graph, kind plandef.Kind, args plandef.Args, cols []string, deps ...*plandef.PlanNode) *plandef.PlanNode {
	ids := make([]plandef.NodeID, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	n := g.MustNewNode(kind, args, ids...)
	if err := g.SetColNames(n.ID, cols); err != nil {
		panic(err)
	}
	return n
}

// traversal builds the plan
//
// 	DataCollect(Project(v.tag1.p1 AS x, Filter(cond, Traverse(Start))))
//
// where the Traverse produces vertices v and edges e, requesting
// tag1.{p1,p2}, tag2.{p3} and like.{w}. It returns the graph and the root.
func traversal(cond string) (*plandef.Graph, plandef.NodeID) {
	g := plandef.NewGraph(nil)
	start := node(g, plandef.KindStart, nil, []string{"s"})
	tr := node(g, plandef.KindTraverse, &plandef.Traverse{
		Space:     "test",
		Src:       expr.MustParse("$-.s"),
		StepRange: plandef.StepRange{Min: 1, Max: 1},
		EdgeTypes: []string{"like"},
		VertexProps: []plandef.VertexProp{
			{Tag: "tag1", Props: []string{"p1", "p2"}},
			{Tag: "tag2", Props: []string{"p3"}},
		},
		EdgeProps: []plandef.EdgeProp{
			{Type: "like", Props: []string{"w"}},
		},
	}, []string{"s", "v", "e"}, start)
	f := node(g, plandef.KindFilter, &plandef.Filter{Condition: expr.MustParse(cond)},
		[]string{"s", "v", "e"}, tr)
	p := node(g, plandef.KindProject, &plandef.Project{
		Columns: []plandef.YieldColumn{{Expr: expr.MustParse("v.tag1.p1"), Alias: "x"}},
	}, []string{"x"}, f)
	collect := node(g, plandef.KindDataCollect,
		&plandef.DataCollect{Kind: plandef.CollectRowBasedMove}, []string{"x"}, p)
	return g, collect.ID
}

// shape returns the kinds of the plan rooted at id, like
// "Project(Filter(Start))".
func shape(g *plandef.Graph, id plandef.NodeID) string {
	n := g.Node(id)
	if n.NumDeps() == 0 {
		return n.Kind.String()
	}
	deps := make([]string, n.NumDeps())
	for i, dep := range n.Deps() {
		deps[i] = shape(g, dep)
	}
	return fmt.Sprintf("%v(%v)", n.Kind, strings.Join(deps, ", "))
}

// find returns the first node of the given kind in the plan rooted at id, or
// nil.
func find(g *plandef.Graph, id plandef.NodeID, kind plandef.Kind) *plandef.PlanNode {
	for _, n := range g.Reachable(id) {
		if g.Node(n).Kind == kind {
			return g.Node(n)
		}
	}
	return nil
}

type fakeSchema struct {
	err error
}

func (s *fakeSchema) TagProps(space, tag string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"p1", "p2", "p3"}, nil
}

func (s *fakeSchema) EdgeProps(space, edge string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"w"}, nil
}
