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

// Package prune removes vertex and edge properties that nothing in a plan
// uses from the plan's data fetching nodes.
//
// The plan is visited from the root toward the leaves. A PropertyTracker
// carries what the nodes already visited use, and each data fetcher is
// rewritten to request only those properties. Until a node that defines its
// own output columns (Project or Aggregate) is reached, every column the
// root produces is returned to the caller, so nothing is pruned. Nodes that
// compare whole rows, like Dedup, use every column of their input.
package prune

import (
	"fmt"

	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Schema resolves the property names of tags and edge types. It's used for
// fetchers that request every property of a tag or edge type.
type Schema interface {
	TagProps(space, tag string) ([]string, error)
	EdgeProps(space, edge string) ([]string, error)
}

// Options control optional pruning behavior.
type Options struct {
	// If set, AppendVertices nodes whose vertices are never used and that
	// don't filter are removed from the plan.
	EliminateUnusedAppendVertices bool
}

// Stats describe what Prune changed.
type Stats struct {
	// Number of fetchers whose requested properties were rewritten.
	Pruned int
	// Number of AppendVertices nodes removed.
	Eliminated int
}

// Prune rewrites the data fetchers of the plan rooted at root in place. Nodes
// with more than one parent are left as they are, along with everything
// below them. Errors from schema are returned, in which case the plan may be
// partially pruned.
func Prune(g *plandef.Graph, root plandef.NodeID, schema Schema, opts Options) (Stats, error) {
	v := &visitor{
		g:       g,
		schema:  schema,
		opts:    opts,
		parents: countParents(g, root),
		visited: make(map[plandef.NodeID]bool),
	}
	err := v.visit(root, branch{tracker: NewPropertyTracker(), root: true, depIdx: -1})
	return v.stats, err
}

// countParents returns how many dependency edges lead to each node.
func countParents(g *plandef.Graph, root plandef.NodeID) map[plandef.NodeID]int {
	res := make(map[plandef.NodeID]int)
	for _, id := range g.Reachable(root) {
		for _, dep := range g.Node(id).Deps() {
			res[dep]++
		}
	}
	return res
}

type visitor struct {
	g       *plandef.Graph
	schema  Schema
	opts    Options
	parents map[plandef.NodeID]int
	visited map[plandef.NodeID]bool
	stats   Stats
}

// branch is the state of the visit along one path from the root.
type branch struct {
	tracker *PropertyTracker
	// Set until a node that defines its output columns is visited.
	root bool
	// Set below a node with several parents. Nothing is changed.
	conservative bool
	// The node being visited is dependency depIdx of parent. depIdx is -1
	// for roots.
	parent plandef.NodeID
	depIdx int
}

func (v *visitor) visit(id plandef.NodeID, b branch) error {
	n := v.g.Node(id)
	if n == nil {
		return fmt.Errorf("prune: no node %d", id)
	}
	if v.parents[id] > 1 {
		if v.visited[id] {
			return nil
		}
		v.visited[id] = true
		b.conservative = true
	}
	if av, ok := n.Args.(*plandef.AppendVertices); ok && v.eliminable(n, av, b) {
		return v.eliminate(n, b)
	}
	switch a := n.Args.(type) {
	case *plandef.Project:
		b.tracker = v.projectTracker(a.Columns, nil, b)
		b.root = false
	case *plandef.Aggregate:
		b.tracker = v.projectTracker(a.GroupItems, a.GroupKeys, b)
		b.root = false
	case *plandef.Sort:
		for _, f := range a.Factors {
			b.tracker.InsertCol(f.Column)
		}
	case *plandef.TopN:
		for _, f := range a.Factors {
			b.tracker.InsertCol(f.Column)
		}
	default:
		for _, e := range n.Exprs() {
			b.tracker.ExtractFromExpr(e)
		}
		if comparesRows(n) {
			for _, dep := range n.Deps() {
				for _, c := range v.g.ColNames(dep) {
					b.tracker.InsertCol(c)
				}
			}
		}
		if n.Kind.IsDataFetcher() && !b.root && !b.conservative {
			if err := v.prune(n, b.tracker); err != nil {
				return err
			}
		}
	}
	for _, body := range v.g.Bodies(id) {
		err := v.visit(body, branch{
			tracker:      NewPropertyTracker(),
			root:         true,
			conservative: b.conservative,
			depIdx:       -1,
		})
		if err != nil {
			return err
		}
	}
	return v.visitDeps(n, b)
}

func (v *visitor) visitDeps(n *plandef.PlanNode, b branch) error {
	b.parent = n.ID
	if n.NumDeps() == 1 {
		b.depIdx = 0
		return v.visit(n.Dep(0), b)
	}
	for i, dep := range n.Deps() {
		fork := b
		fork.tracker = b.tracker.Copy()
		fork.depIdx = i
		if err := v.visit(dep, fork); err != nil {
			return err
		}
	}
	return nil
}

// comparesRows returns true if n compares its input rows as a whole, so every
// input column matters to its result even if nothing above reads it.
func comparesRows(n *plandef.PlanNode) bool {
	switch n.Kind {
	case plandef.KindDedup, plandef.KindMinus, plandef.KindIntersect:
		return true
	}
	if c, ok := n.Args.(*plandef.DataCollect); ok {
		return c.Distinct
	}
	return false
}

// projectTracker returns the tracker for the input of a node that outputs
// cols, and also evaluates keys. Columns nothing above uses are skipped,
// and a column that just renames an input column carries over what's
// tracked for it.
func (v *visitor) projectTracker(cols []plandef.YieldColumn, keys []expr.Expr, b branch) *PropertyTracker {
	res := NewPropertyTracker()
	for _, k := range keys {
		res.ExtractFromExpr(k)
	}
	for _, c := range cols {
		name := c.Name()
		if b.root {
			res.ExtractFromExpr(c.Expr)
			continue
		}
		if !b.tracker.Uses(name) {
			continue
		}
		if in, ok := expr.ColumnRef(c.Expr); ok {
			renamed := b.tracker.only(name)
			renamed.Update(name, in)
			res.merge(renamed)
			continue
		}
		res.ExtractFromExpr(c.Expr)
	}
	return res
}

func (v *visitor) eliminable(n *plandef.PlanNode, a *plandef.AppendVertices, b branch) bool {
	if !v.opts.EliminateUnusedAppendVertices || b.root || b.conservative || b.depIdx < 0 {
		return false
	}
	if a.VFilter != nil || a.Filter != nil || n.NumDeps() != 1 {
		return false
	}
	cols := v.g.ColNames(n.ID)
	return len(cols) > 0 && !b.tracker.Uses(cols[len(cols)-1])
}

// eliminate removes the AppendVertices node n by having its parent read its
// input directly, then continues with that input.
func (v *visitor) eliminate(n *plandef.PlanNode, b branch) error {
	in := n.Dep(0)
	if err := v.g.SetDep(b.parent, b.depIdx, in); err != nil {
		return err
	}
	v.g.ReleaseSymbols(n.ID)
	v.stats.Eliminated++
	log.WithFields(log.Fields{
		"node":   n.ID,
		"parent": b.parent,
	}).Debug("Removed unused AppendVertices")
	return v.visit(in, b)
}

// prune rewrites the requested properties of the data fetcher n. Its output
// aliases are the last output column, or the last two (the vertex, then the
// edge) for fetchers that return both.
func (v *visitor) prune(n *plandef.PlanNode, t *PropertyTracker) error {
	cols := v.g.ColNames(n.ID)
	if len(cols) == 0 {
		return nil
	}
	last := cols[len(cols)-1]
	var err error
	switch a := n.Args.(type) {
	case *plandef.Traverse:
		if len(cols) < 2 {
			return nil
		}
		if a.VertexProps, err = v.vertexProps(t, a.Space, cols[len(cols)-2], a.VertexProps); err != nil {
			return err
		}
		a.EdgeProps, err = v.edgeProps(t, a.Space, last, a.EdgeProps)
	case *plandef.GetNeighbors:
		if len(cols) < 2 {
			return nil
		}
		if a.VertexProps, err = v.vertexProps(t, a.Space, cols[len(cols)-2], a.VertexProps); err != nil {
			return err
		}
		a.EdgeProps, err = v.edgeProps(t, a.Space, last, a.EdgeProps)
	case *plandef.AppendVertices:
		a.VertexProps, err = v.vertexProps(t, a.Space, last, a.VertexProps)
	case *plandef.GetVertices:
		a.VertexProps, err = v.vertexProps(t, a.Space, last, a.VertexProps)
	case *plandef.ScanVertices:
		a.VertexProps, err = v.vertexProps(t, a.Space, last, a.VertexProps)
	case *plandef.GetEdges:
		a.EdgeProps, err = v.edgeProps(t, a.Space, last, a.EdgeProps)
	case *plandef.ScanEdges:
		a.EdgeProps, err = v.edgeProps(t, a.Space, last, a.EdgeProps)
	default:
		// IndexScan returns just its ReturnColumns.
		return nil
	}
	if err != nil {
		return err
	}
	v.stats.Pruned++
	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithFields(log.Fields{
			"node": n.ID,
			"kind": n.Kind,
		}).Debugf("Pruned properties using:\n%v", t)
	}
	return nil
}

// vertexProps returns the subset of props that's used for alias. A tag with
// no used properties only keeps its tag marker, as its presence still
// matters.
func (v *visitor) vertexProps(t *PropertyTracker, space, alias string, props []plandef.VertexProp) ([]plandef.VertexProp, error) {
	if t.HasCol(alias) {
		return props, nil
	}
	res := make([]plandef.VertexProp, 0, len(props))
	for _, vp := range props {
		requested := vp.Props
		if vp.AllProps {
			var err error
			if requested, err = v.tagProps(space, vp.Tag); err != nil {
				return nil, err
			}
		}
		kept := intersect(requested, t.VertexProps(alias, vp.Tag))
		if len(kept) == 0 {
			kept = []string{plandef.TagMarker}
		}
		res = append(res, plandef.VertexProp{Tag: vp.Tag, Props: kept})
	}
	return res, nil
}

// edgeProps returns the subset of props that's used for alias, plus the
// identity properties of each edge type.
func (v *visitor) edgeProps(t *PropertyTracker, space, alias string, props []plandef.EdgeProp) ([]plandef.EdgeProp, error) {
	if t.HasCol(alias) {
		return props, nil
	}
	res := make([]plandef.EdgeProp, 0, len(props))
	for _, ep := range props {
		requested := ep.Props
		if ep.AllProps {
			var err error
			if requested, err = v.edgeTypeProps(space, ep.Type); err != nil {
				return nil, err
			}
		}
		kept := append([]string(nil), plandef.EdgeIdentityProps...)
		for _, p := range intersect(requested, t.EdgeProps(alias, ep.Type)) {
			if !contains(plandef.EdgeIdentityProps, p) {
				kept = append(kept, p)
			}
		}
		res = append(res, plandef.EdgeProp{Type: ep.Type, Props: kept})
	}
	return res, nil
}

func (v *visitor) tagProps(space, tag string) ([]string, error) {
	if v.schema == nil {
		return nil, fmt.Errorf("no schema to look up the properties of tag %v", tag)
	}
	props, err := v.schema.TagProps(space, tag)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to look up properties of tag %v in space %v", tag, space)
	}
	return props, nil
}

func (v *visitor) edgeTypeProps(space, edge string) ([]string, error) {
	if v.schema == nil {
		return nil, fmt.Errorf("no schema to look up the properties of edge type %v", edge)
	}
	props, err := v.schema.EdgeProps(space, edge)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to look up properties of edge type %v in space %v", edge, space)
	}
	return props, nil
}

// intersect returns the elements of requested that are in used, in the order
// of requested.
func intersect(requested, used []string) []string {
	var res []string
	for _, p := range requested {
		if contains(used, p) {
			res = append(res, p)
		}
	}
	return res
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
