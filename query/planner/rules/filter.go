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

func matchTrueFilter(ctx *search.OptContext, m *search.MatchedResult) bool {
	return expr.IsTrue(m.PlanNode().Args.(*plandef.Filter).Condition)
}

// combineFilter merges two adjacent Filters into one.
//
// 	Before: Filter(a, Filter(b, in))
// 	After:  Filter(b AND a, in)
func combineFilter(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	outer := m.PlanNode().Args.(*plandef.Filter)
	inner := m.Result(0)
	innerArgs := inner.PlanNode().Args.(*plandef.Filter)
	f, err := ctx.Graph().NewNode(plandef.KindFilter, &plandef.Filter{
		Condition:        expr.And(cloneExpr(innerArgs.Condition), cloneExpr(outer.Condition)),
		NeedStableFilter: outer.NeedStableFilter || innerArgs.NeedStableFilter,
	}, planIDs(inner.Node().Deps())...)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, f, inner.Node().Deps()...)
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}

// onlyRefersTo returns true if e refers to properties of alias and to nothing
// else from its input. References to other variables are allowed.
func onlyRefersTo(e expr.Expr, alias string) bool {
	refs := expr.PropertyRefs(e)
	found := false
	for _, ref := range refs {
		switch ref.Kind {
		case expr.RefVarCol:
			continue
		case expr.RefAttribute:
			if ref.Alias != alias {
				return false
			}
			found = true
		default:
			return false
		}
	}
	return found
}

// splitConjuncts partitions the conjuncts of e by whether keep accepts them.
// Either result may be nil.
func splitConjuncts(e expr.Expr, keep func(expr.Expr) bool) (kept, rest expr.Expr) {
	var in, out []expr.Expr
	for _, c := range expr.SplitAnd(e) {
		if keep(c) {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	return expr.And(in...), expr.And(out...)
}

// pushFilterDownTraverse moves the parts of a Filter that only test
// properties of the edges produced by a single-step Traverse into the
// Traverse's edge filter. What can't be moved stays in a Filter above.
//
// 	Before: Filter(e.w > 3 AND v.t.p == 1, Traverse(in))
// 	After:  Filter(v.t.p == 1, Traverse{eFilter: e.w > 3}(in))
func pushFilterDownTraverse(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	g := ctx.Graph()
	traverse := m.Result(0)
	args := traverse.PlanNode().Args.(*plandef.Traverse)
	if args.StepRange.Min != 1 || args.StepRange.Max != 1 {
		// With more steps the edge column holds a list of edges, and
		// zero-step rows have no edge for the row filter to drop.
		return nil, nil
	}
	cols := g.ColNames(traverse.PlanNode().ID)
	if len(cols) == 0 {
		return nil, nil
	}
	edge := cols[len(cols)-1]
	pushed, rest := splitConjuncts(m.PlanNode().Args.(*plandef.Filter).Condition,
		func(e expr.Expr) bool { return onlyRefersTo(e, edge) })
	if pushed == nil {
		return nil, nil
	}
	c, err := g.Clone(traverse.PlanNode().ID)
	if err != nil {
		return nil, err
	}
	targs := c.Args.(*plandef.Traverse)
	targs.EFilter = expr.And(targs.EFilter, pushed.Clone())
	if rest == nil {
		node, err := replace(ctx, m, c, traverse.Node().Deps()...)
		if err != nil {
			return nil, err
		}
		return eraseCurrent(node), nil
	}
	below, err := ctx.NewGroupNode(c, nil, traverse.Node().Deps()...)
	if err != nil {
		return nil, err
	}
	f, err := g.NewNode(plandef.KindFilter, &plandef.Filter{Condition: rest.Clone()}, c.ID)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, f, below.Group())
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}

// pushFilterDownCrossJoin moves the parts of a Filter that only read the
// columns of one side of a CrossJoin below the join, onto that side.
//
// 	Before: Filter(a.x > 1 AND b.y < 2 AND a.x < b.y, CrossJoin(l, r))
// 	After:  Filter(a.x < b.y, CrossJoin(Filter(a.x > 1, l), Filter(b.y < 2, r)))
func pushFilterDownCrossJoin(ctx *search.OptContext, m *search.MatchedResult) (*search.TransformResult, error) {
	g := ctx.Graph()
	join := m.Result(0)
	sides := join.Node().Deps()
	cond := m.PlanNode().Args.(*plandef.Filter).Condition
	newSides := make([]*search.OptGroup, len(sides))
	pushedAny := false
	for i, side := range sides {
		cols := columnSet(g.Symbols().Lookup(side.OutputVar()).ColNames)
		var pushed expr.Expr
		pushed, cond = splitConjuncts(cond, func(e expr.Expr) bool {
			return readsOnly(e, cols)
		})
		if pushed == nil {
			newSides[i] = side
			continue
		}
		pushedAny = true
		f, err := g.NewNode(plandef.KindFilter, &plandef.Filter{Condition: pushed.Clone()},
			side.Nodes()[0].Node().ID)
		if err != nil {
			return nil, err
		}
		if err := g.SetColNames(f.ID, g.Symbols().Lookup(side.OutputVar()).ColNames); err != nil {
			return nil, err
		}
		node, err := ctx.NewGroupNode(f, nil, side)
		if err != nil {
			return nil, err
		}
		newSides[i] = node.Group()
	}
	if !pushedAny {
		return nil, nil
	}
	c, err := g.Clone(join.PlanNode().ID)
	if err != nil {
		return nil, err
	}
	if cond == nil {
		node, err := replace(ctx, m, c, newSides...)
		if err != nil {
			return nil, err
		}
		return eraseCurrent(node), nil
	}
	below, err := ctx.NewGroupNode(c, nil, newSides...)
	if err != nil {
		return nil, err
	}
	f, err := g.NewNode(plandef.KindFilter, &plandef.Filter{Condition: cond.Clone()}, c.ID)
	if err != nil {
		return nil, err
	}
	node, err := replace(ctx, m, f, below.Group())
	if err != nil {
		return nil, err
	}
	return eraseCurrent(node), nil
}

func columnSet(cols []string) map[string]bool {
	res := make(map[string]bool, len(cols))
	for _, c := range cols {
		res[c] = true
	}
	return res
}

// readsOnly returns true if e reads at least one input column and all the
// columns it reads are in cols.
func readsOnly(e expr.Expr, cols map[string]bool) bool {
	aliases := expr.Aliases(e)
	if len(aliases) == 0 {
		return false
	}
	for alias := range aliases {
		if !cols[alias] {
			return false
		}
	}
	return true
}
