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

package rules

import (
	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/ebay/graphopt/query/planner/search"
)

// matchRowCollectOverProject accepts a row-based DataCollect whose only
// input is a Project that nothing else reads.
func matchRowCollectOverProject(ctx *search.OptContext, m *search.MatchedResult) bool {
	collect := m.PlanNode().Args.(*plandef.DataCollect)
	if collect.Kind != plandef.CollectRowBasedMove || collect.Distinct {
		return false
	}
	project := m.Result(0).PlanNode()
	return len(ctx.Graph().OutputVar(project.ID).ReadBy()) == 1
}

// mergeDataCollectAndProject removes a DataCollect that just moves the rows
// of a Project. The Project is copied to write the DataCollect's variable.
//
// 	Before: DataCollect(ROW, Project(cols, a))
// 	After:  Project(cols, a)
func mergeDataCollectAndProject(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	project := m.Result(0)
	c, err := ctx.Graph().Clone(project.PlanNode().ID)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, c, project.Node().Deps()...)
	if err != nil {
		return nil, err
	}
	return &search.TransformResult{
		EraseAll:      true,
		NewGroupNodes: []*search.OptGroupNode{node},
	}, nil
}

// collapseProject merges two adjacent Projects by substituting the inner
// Project's column expressions into the outer one.
//
// 	Before: Project(a + 1 AS b, Project(x * 2 AS a, in))
// 	After:  Project(x * 2 + 1 AS b, in)
func collapseProject(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	outer := m.PlanNode().Args.(*plandef.Project)
	inner := m.Result(0)
	cols, ok := substituteColumns(outer.Columns, inner.PlanNode().Args.(*plandef.Project).Columns)
	if !ok {
		return nil, nil
	}
	g := ctx.Graph()
	p, err := g.NewNode(plandef.KindProject, &plandef.Project{Columns: cols},
		planIDs(inner.Node().Deps())...)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, p, inner.Node().Deps()...)
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}

// substituteColumns rewrites the outer columns to read the inputs of the
// inner columns directly. It returns false if an outer column refers to
// something the inner Project doesn't produce, or reaches into a computed
// inner column in a way that can't be expressed over the inner input.
func substituteColumns(outer, inner []plandef.YieldColumn) ([]plandef.YieldColumn, bool) {
	byName := make(map[string]expr.Expr, len(inner))
	for _, c := range inner {
		if expr.IsAggregate(c.Expr) {
			return nil, false
		}
		byName[c.Name()] = c.Expr
	}
	ok := true
	substitute := func(e expr.Expr) (expr.Expr, bool) {
		switch e := e.(type) {
		case *expr.Label:
			if in, found := byName[e.Name]; found {
				return in.Clone(), true
			}
			ok = false
		case *expr.InputProperty:
			if in, found := byName[e.Prop]; found {
				return in.Clone(), true
			}
			ok = false
		case *expr.LabelAttribute:
			label, found := renamedLabel(byName, e.Label)
			if !found {
				ok = false
				return nil, false
			}
			return &expr.LabelAttribute{Label: label, Attr: e.Attr}, true
		case *expr.LabelTagProperty:
			label, found := renamedLabel(byName, e.Label)
			if !found {
				ok = false
				return nil, false
			}
			return &expr.LabelTagProperty{Label: label, Tag: e.Tag, Prop: e.Prop}, true
		}
		return nil, false
	}
	res := make([]plandef.YieldColumn, len(outer))
	for i, c := range outer {
		res[i] = plandef.YieldColumn{
			Expr:  expr.Rewrite(c.Expr, substitute),
			Alias: c.Name(),
		}
		if !ok {
			return nil, false
		}
	}
	return res, true
}

// renamedLabel returns the alias the inner Project renamed to name, if the
// inner column is a bare alias reference.
func renamedLabel(byName map[string]expr.Expr, name string) (string, bool) {
	in, found := byName[name]
	if !found {
		return "", false
	}
	l, isLabel := in.(*expr.Label)
	if !isLabel {
		return "", false
	}
	return l.Name, true
}

// matchNoopProject accepts a Project that passes each of its input's columns
// through, in order, under the same name.
func matchNoopProject(ctx *search.OptContext, m *search.MatchedResult) bool {
	cols := m.PlanNode().Args.(*plandef.Project).Columns
	input := ctx.Graph().ColNames(m.Result(0).PlanNode().ID)
	if len(cols) != len(input) {
		return false
	}
	for i, c := range cols {
		name, ok := expr.ColumnRef(c.Expr)
		if !ok || name != input[i] || c.Name() != input[i] {
			return false
		}
	}
	return true
}

// planIDs returns a current member of each group, for building plan nodes
// that read those groups.
func planIDs(groups []*search.OptGroup) []plandef.NodeID {
	ids := make([]plandef.NodeID, len(groups))
	for i, group := range groups {
		ids[i] = group.Nodes()[0].Node().ID
	}
	return ids
}
