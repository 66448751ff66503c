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
	"fmt"
	"sort"

	"github.com/ebay/graphopt/query/planner/plandef"
)

func (o *Optimizer) newGroup() *OptGroup {
	o.nextGroupID++
	return &OptGroup{ID: o.nextGroupID, run: o.run}
}

func (o *Optimizer) newGroupNode(plan *plandef.PlanNode, group *OptGroup, deps []*OptGroup) *OptGroupNode {
	o.nextNodeID++
	node := &OptGroupNode{
		id:      o.nextNodeID,
		node:    plan,
		group:   group,
		deps:    append([]*OptGroup(nil), deps...),
		applied: make(map[string]bool),
	}
	o.byPlan[plan.ID] = node
	return node
}

// convert builds the memo from the plan rooted at root. The roots of Select
// and Loop bodies become additional roots.
func (o *Optimizer) convert(root plandef.NodeID) error {
	var bodies []*OptGroup
	rootGroup, err := o.convertToGroup(root, make(map[plandef.NodeID]bool), &bodies)
	if err != nil {
		return err
	}
	o.roots = append([]*OptGroup{rootGroup}, bodies...)
	return nil
}

// convertToGroup wraps the plan node and, recursively, its dependencies in
// single-alternative groups. A node reachable along several paths is wrapped
// once, and its group is shared.
func (o *Optimizer) convertToGroup(id plandef.NodeID, visiting map[plandef.NodeID]bool, bodies *[]*OptGroup) (*OptGroup, error) {
	if group, ok := o.converted[id]; ok {
		return group, nil
	}
	plan := o.graph.Node(id)
	if plan == nil {
		return nil, fmt.Errorf("unknown plan node %d", id)
	}
	if plan.Released() {
		return nil, fmt.Errorf("plan node %d was released", id)
	}
	if visiting[id] {
		return nil, fmt.Errorf("plan has a cycle through node %d", id)
	}
	visiting[id] = true
	defer delete(visiting, id)
	deps := make([]*OptGroup, plan.NumDeps())
	for i, dep := range plan.Deps() {
		group, err := o.convertToGroup(dep, visiting, bodies)
		if err != nil {
			return nil, err
		}
		deps[i] = group
	}
	for _, body := range o.graph.Bodies(id) {
		_, seen := o.converted[body]
		group, err := o.convertToGroup(body, visiting, bodies)
		if err != nil {
			return nil, err
		}
		if !seen {
			*bodies = append(*bodies, group)
		}
	}
	group := o.newGroup()
	group.add(o.newGroupNode(plan, group, deps))
	o.converted[id] = group
	return group, nil
}

// checkTransform is the dataflow safety check applied to every transform
// result before it changes the memo. It returns an error describing why the
// result would break the plan.
func (o *Optimizer) checkTransform(ctx *OptContext, matched *MatchedResult, res *TransformResult) error {
	current := ctx.current
	pending := make(map[*OptGroupNode]bool)
	for _, node := range ctx.created {
		switch {
		case node.group == current:
			pending[node] = true
		case ctx.isNewGroup(node.group):
		default:
			return fmt.Errorf("node %v was added to existing group %d", node, node.group.ID)
		}
		if len(node.deps) != node.node.NumDeps() {
			return fmt.Errorf("node %v has %d input groups but %d plan dependencies",
				node, len(node.deps), node.node.NumDeps())
		}
	}
	listed := make(map[*OptGroupNode]bool, len(res.NewGroupNodes))
	for _, node := range res.NewGroupNodes {
		if node == nil || !pending[node] {
			return fmt.Errorf("result node %v is not a new node of group %d", node, current.ID)
		}
		listed[node] = true
		if node.node.OutputVar() != current.outputVar {
			return fmt.Errorf("result node %v doesn't write %v",
				node, o.graph.Symbols().Lookup(current.outputVar))
		}
	}
	for node := range pending {
		if !listed[node] {
			return fmt.Errorf("node %v was added to group %d but not returned", node, current.ID)
		}
	}
	for _, group := range ctx.newGroups {
		if len(group.nodes) == 0 {
			return fmt.Errorf("new group %d has no alternatives", group.ID)
		}
	}

	// The replacement must read exactly what the matched sub-plan read.
	want := matchBoundary(matched)
	internal := make(map[*OptGroup]*MatchedResult)
	for _, m := range matched.Deps() {
		collectInternal(m, internal)
	}
	got := make(map[*OptGroup]bool)
	seen := make(map[*OptGroup]bool)
	var external func(group *OptGroup) error
	external = func(group *OptGroup) error {
		switch {
		case group == current:
			return fmt.Errorf("replacement reads its own group %d", current.ID)
		case ctx.isNewGroup(group):
			if seen[group] {
				return nil
			}
			seen[group] = true
			for _, node := range group.nodes {
				for _, dep := range node.deps {
					if err := external(dep); err != nil {
						return err
					}
				}
			}
		case internal[group] != nil:
			for g := range matchBoundary(internal[group]) {
				got[g] = true
			}
		default:
			got[group] = true
		}
		return nil
	}
	for _, node := range res.NewGroupNodes {
		for _, dep := range node.deps {
			if err := external(dep); err != nil {
				return err
			}
		}
	}
	if !sameGroups(want, got) {
		return fmt.Errorf("replacement reads groups %v, matched sub-plan reads %v",
			groupIDs(got), groupIDs(want))
	}

	// No variable written by an erased node may lose its last writer while a
	// live node still reads it.
	erased := erasedNodes(matched, res)
	live := o.liveGroupSet()
	erasedPlan := make(map[plandef.NodeID]bool, len(erased))
	for node := range erased {
		erasedPlan[node.node.ID] = true
	}
	for node := range erased {
		v := o.graph.Symbols().Lookup(node.node.OutputVar())
		if !o.hasLiveReader(ctx, v, erasedPlan, live) {
			continue
		}
		if !o.hasLiveWriter(ctx, v, erasedPlan, pending, live) {
			return fmt.Errorf("erasing %v leaves %v without a writer", node, v)
		}
	}

	remaining := len(pending)
	for _, node := range current.nodes {
		if !erased[node] {
			remaining++
		}
	}
	if remaining == 0 {
		return fmt.Errorf("transform would leave group %d empty", current.ID)
	}
	return nil
}

// hasLiveReader returns true if a node outside the erased region that will
// remain part of the plan reads v.
func (o *Optimizer) hasLiveReader(ctx *OptContext, v *plandef.Variable, erased map[plandef.NodeID]bool, live map[*OptGroup]bool) bool {
	for _, id := range v.ReadBy() {
		if erased[id] {
			continue
		}
		if o.isLive(ctx, id, live) {
			return true
		}
	}
	return false
}

// hasLiveWriter returns true if a node outside the erased region, or one of
// the transform's accepted new nodes, writes v.
func (o *Optimizer) hasLiveWriter(ctx *OptContext, v *plandef.Variable, erased map[plandef.NodeID]bool, pending map[*OptGroupNode]bool, live map[*OptGroup]bool) bool {
	for _, id := range v.WrittenBy() {
		if erased[id] {
			continue
		}
		if node := o.byPlan[id]; node != nil && pending[node] {
			return true
		}
		if o.isLive(ctx, id, live) {
			return true
		}
	}
	return false
}

// isLive returns true if the plan node will still be part of the plan after
// the transform is committed. Nodes outside the memo are assumed live.
func (o *Optimizer) isLive(ctx *OptContext, id plandef.NodeID, live map[*OptGroup]bool) bool {
	node := o.byPlan[id]
	if node == nil {
		return !o.graph.Node(id).Released()
	}
	for _, created := range ctx.created {
		if created == node {
			return created.group == ctx.current || ctx.isNewGroup(created.group)
		}
	}
	return !node.erased && live[node.group]
}

func (o *Optimizer) liveGroupSet() map[*OptGroup]bool {
	groups := o.liveGroups()
	res := make(map[*OptGroup]bool, len(groups))
	for _, group := range groups {
		res[group] = true
	}
	return res
}

// matchBoundary returns the groups the matched sub-plan reads from outside
// itself.
func matchBoundary(m *MatchedResult) map[*OptGroup]bool {
	res := make(map[*OptGroup]bool)
	if len(m.deps) == 0 {
		for _, dep := range m.node.deps {
			res[dep] = true
		}
		return res
	}
	for _, d := range m.deps {
		for group := range matchBoundary(d) {
			res[group] = true
		}
	}
	return res
}

// collectInternal records the group of every matched node below the root.
func collectInternal(m *MatchedResult, into map[*OptGroup]*MatchedResult) {
	if _, exists := into[m.node.group]; !exists {
		into[m.node.group] = m
	}
	for _, d := range m.deps {
		collectInternal(d, into)
	}
}

func erasedNodes(matched *MatchedResult, res *TransformResult) map[*OptGroupNode]bool {
	erased := make(map[*OptGroupNode]bool)
	switch {
	case res.EraseAll:
		for _, node := range matched.nodes() {
			erased[node] = true
		}
	case res.EraseCurrent:
		erased[matched.node] = true
	}
	return erased
}

func sameGroups(a, b map[*OptGroup]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for group := range a {
		if !b[group] {
			return false
		}
	}
	return true
}

func groupIDs(groups map[*OptGroup]bool) []int {
	res := make([]int, 0, len(groups))
	for group := range groups {
		res = append(res, group.ID)
	}
	sort.Ints(res)
	return res
}

// commit applies an accepted transform to the memo. Plan nodes the transform
// created but didn't wrap in a group node have their symbols released.
func (o *Optimizer) commit(ctx *OptContext, matched *MatchedResult, res *TransformResult, mark int) {
	for node := range erasedNodes(matched, res) {
		node.group.remove(node)
		node.erased = true
		node.group.costValid = false
		o.graph.ReleaseSymbols(node.node.ID)
	}
	for _, node := range res.NewGroupNodes {
		ctx.current.add(node)
	}
	wrapped := make(map[plandef.NodeID]bool, len(ctx.created))
	for _, node := range ctx.created {
		wrapped[node.node.ID] = true
	}
	for _, plan := range o.graph.NodesSince(mark) {
		if !wrapped[plan.ID] {
			o.graph.ReleaseSymbols(plan.ID)
		}
	}
}

// rollback undoes a declined or rejected transform: every plan node created
// since mark has its symbols released and no group node created by the
// transform is kept.
func (o *Optimizer) rollback(ctx *OptContext, mark int) {
	for _, node := range ctx.created {
		node.erased = true
		delete(o.byPlan, node.node.ID)
	}
	for _, plan := range o.graph.NodesSince(mark) {
		o.graph.ReleaseSymbols(plan.ID)
	}
	ctx.created = nil
	ctx.newGroups = nil
}
