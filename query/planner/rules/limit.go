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
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/ebay/graphopt/query/planner/search"
)

// limitOverSortToTopN replaces a Limit over a Sort with a TopN, which
// doesn't need to hold every input row.
//
// 	Before: Limit(offset, count, Sort(factors, in))
// 	After:  TopN(factors, offset, count, in)
func limitOverSortToTopN(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	limit := m.PlanNode().Args.(*plandef.Limit)
	if limit.Count < 0 {
		return nil, nil
	}
	sort := m.Result(0)
	factors := sort.PlanNode().Args.(*plandef.Sort).Factors
	topN, err := ctx.Graph().NewNode(plandef.KindTopN, &plandef.TopN{
		Factors: append([]plandef.SortFactor(nil), factors...),
		Offset:  limit.Offset,
		Count:   limit.Count,
	}, planIDs(sort.Node().Deps())...)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, topN, sort.Node().Deps()...)
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}

// pushLimitDownProject moves a Limit below a Project, so that the Project
// only computes the rows that are kept.
//
// 	Before: Limit(Project(cols, in))
// 	After:  Project(cols, Limit(in))
func pushLimitDownProject(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	g := ctx.Graph()
	project := m.Result(0)
	in := project.Node().Deps()
	args := m.PlanNode().Args.(*plandef.Limit)
	limit, err := g.NewNode(plandef.KindLimit, &plandef.Limit{Offset: args.Offset, Count: args.Count},
		planIDs(in)...)
	if err != nil {
		return nil, err
	}
	if err := g.SetColNames(limit.ID, g.ColNames(limit.Dep(0))); err != nil {
		return nil, err
	}
	below, err := ctx.NewGroupNode(limit, nil, in...)
	if err != nil {
		return nil, err
	}
	c, err := g.Clone(project.PlanNode().ID)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, c, below.Group())
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}
