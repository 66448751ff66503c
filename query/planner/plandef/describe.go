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
	"github.com/ebay/graphopt/query/planner/expr"
)

// A Pair is one kind-specific field in a node description.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BranchInfo links the root of a Select branch or Loop body back to the node
// that owns it.
type BranchInfo struct {
	// True for a Select's If branch and a Loop's body; false for a Select's
	// Else branch.
	IsDoBranch      bool   `json:"isDoBranch"`
	ConditionNodeID NodeID `json:"conditionNodeId"`
}

// PlanNodeDescription is the inspection record of a single node.
type PlanNodeDescription struct {
	ID           NodeID      `json:"id"`
	Name         string      `json:"name"`
	OutputVar    string      `json:"outputVar"`
	ColNames     []string    `json:"colNames,omitempty"`
	Dependencies []NodeID    `json:"dependencies"`
	Cost         float64     `json:"cost"`
	Description  []Pair      `json:"description,omitempty"`
	BranchInfo   *BranchInfo `json:"branchInfo,omitempty"`
}

// Value returns the value of the description pair with the given key, and
// whether it was found.
func (d *PlanNodeDescription) Value(key string) (string, bool) {
	for _, p := range d.Description {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// PlanDescription is the inspection record of a whole plan. It's designed to
// be serialized as JSON for external formatters.
type PlanDescription struct {
	PlanNodeDescs []*PlanNodeDescription `json:"planNodeDescs"`
	// Maps a node ID to its index in PlanNodeDescs.
	NodeIndexMap map[NodeID]int `json:"nodeIndexMap"`
	// How an external formatter should render the plan, e.g. "row" or
	// "dot". Informational only.
	Format string `json:"format"`
}

// describer collects the description pairs of a payload.
type describer struct {
	pairs []Pair
	// If false, pairs that only contain node IDs are skipped. This makes
	// descriptions comparable across graphs.
	withIDs bool
}

func (d *describer) add(key, value string) {
	d.pairs = append(d.pairs, Pair{Key: key, Value: value})
}

func (d *describer) addExpr(key string, e expr.Expr) {
	if e != nil {
		d.add(key, e.String())
	}
}

// Explain returns the inspection record of a node, or nil if there's no node
// with that ID. It doesn't modify the graph.
func (g *Graph) Explain(id NodeID) *PlanNodeDescription {
	n := g.nodes[id]
	if n == nil {
		return nil
	}
	desc := &PlanNodeDescription{
		ID:           n.ID,
		Name:         n.Kind.String(),
		OutputVar:    g.symbols.Lookup(n.outputVar).Name,
		ColNames:     append([]string(nil), g.ColNames(id)...),
		Dependencies: n.Deps(),
		Cost:         n.Cost,
	}
	if n.Args != nil {
		d := describer{withIDs: true}
		n.Args.describe(&d)
		desc.Description = d.pairs
	}
	return desc
}

// Describe returns the inspection record of every node reachable from root,
// in pre-order. The roots of Select branches and Loop bodies carry a
// BranchInfo pointing back at their owner.
func (g *Graph) Describe(root NodeID) *PlanDescription {
	res := &PlanDescription{
		NodeIndexMap: make(map[NodeID]int),
		Format:       "row",
	}
	var visit func(id NodeID, branch *BranchInfo)
	visit = func(id NodeID, branch *BranchInfo) {
		if _, seen := res.NodeIndexMap[id]; seen {
			return
		}
		desc := g.Explain(id)
		if desc == nil {
			return
		}
		desc.BranchInfo = branch
		res.NodeIndexMap[id] = len(res.PlanNodeDescs)
		res.PlanNodeDescs = append(res.PlanNodeDescs, desc)
		n := g.nodes[id]
		switch a := n.Args.(type) {
		case *Select:
			if a.If != 0 {
				visit(a.If, &BranchInfo{IsDoBranch: true, ConditionNodeID: id})
			}
			if a.Else != 0 {
				visit(a.Else, &BranchInfo{IsDoBranch: false, ConditionNodeID: id})
			}
		case *Loop:
			if a.Body != 0 {
				visit(a.Body, &BranchInfo{IsDoBranch: true, ConditionNodeID: id})
			}
		}
		for _, dep := range n.deps {
			visit(dep, nil)
		}
	}
	visit(root, nil)
	return res
}
