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

// An OptRule is a rewrite that users of this package define. The optimizer
// calls Match for every group node whose shape matches Pattern, and calls
// Transform if Match returns true.
//
// Rules must be cheap and must not change existing plan nodes: a Transform
// builds new nodes (through the OptContext) and reports which of the matched
// nodes they replace. The optimizer checks the result before applying it,
// and undoes it if it would break the plan's dataflow.
type OptRule interface {
	// Name identifies the rule in logs, metrics and rule sets.
	Name() string
	// Pattern is the shape of the sub-plans the rule applies to. It must not
	// change over the lifetime of the rule.
	Pattern() *Pattern
	// Match returns true if the rule applies to the matched sub-plan. It's a
	// semantic check beyond the shape given by Pattern.
	Match(ctx *OptContext, matched *MatchedResult) bool
	// Transform returns the replacement for the matched sub-plan. Returning
	// nil, an empty result, or an error declines the rewrite; none of these
	// are fatal to the optimization.
	Transform(ctx *OptContext, matched *MatchedResult) (*TransformResult, error)
}

// MatchPattern can be embedded in an OptRule whose Pattern is a sufficient
// precondition. Its Match always returns true.
type MatchPattern struct{}

// Match implements OptRule.Match.
func (MatchPattern) Match(*OptContext, *MatchedResult) bool {
	return true
}

// TransformResult describes the outcome of a successful OptRule.Transform.
type TransformResult struct {
	// Remove the matched root from its group.
	EraseCurrent bool
	// Remove every node captured by the match: the root and all of its matched
	// descendants.
	EraseAll bool
	// The replacement alternatives. They must all belong to the matched root's
	// group, and so must write the same output variable as the matched root.
	NewGroupNodes []*OptGroupNode
}

// empty returns true if the result doesn't change anything.
func (res *TransformResult) empty() bool {
	return res == nil || (!res.EraseCurrent && !res.EraseAll && len(res.NewGroupNodes) == 0)
}

// CostFunc returns the cost of executing a single group node, excluding the
// cost of its inputs.
type CostFunc func(node *OptGroupNode) float64

// planCost is the default CostFunc. It returns the cost recorded on the plan
// node, which is 0 unless the planning phase assigned one.
func planCost(node *OptGroupNode) float64 {
	return node.Node().Cost
}
