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

// mergeGetVerticesAndDedup lets GetVertices remove duplicate source IDs
// itself instead of reading them from a Dedup.
//
// 	Before: GetVertices(Dedup(in))
// 	After:  GetVertices{dedup}(in)
func mergeGetVerticesAndDedup(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	dedup := m.Result(0)
	c, err := ctx.Graph().Clone(m.PlanNode().ID)
	if err != nil {
		return nil, err
	}
	c.Args.(*plandef.GetVertices).Dedup = true
	node, err := replace(ctx, m, c, dedup.Node().Deps()...)
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}
