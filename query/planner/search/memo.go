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
	"io"
	"strings"

	"github.com/ebay/graphopt/query/planner/plandef"
)

// An OptGroup is a set of interchangeable alternatives: group nodes that
// produce the same output variable, each with a different operator or input
// shape. Groups only gain and lose alternatives; they're never merged.
type OptGroup struct {
	// Unique within an Optimizer, assigned in creation order.
	ID int
	// The alternatives, in the order they were added.
	nodes []*OptGroupNode
	// The variable every alternative writes.
	outputVar plandef.VarID
	// The optimizer that created the group.
	run int64
	// Set by chooseBest.
	best      *OptGroupNode
	bestCost  float64
	costValid bool
}

// Nodes returns a copy of the group's current alternatives.
func (group *OptGroup) Nodes() []*OptGroupNode {
	return append([]*OptGroupNode(nil), group.nodes...)
}

// NumNodes returns the number of alternatives in the group.
func (group *OptGroup) NumNodes() int {
	return len(group.nodes)
}

// OutputVar returns the variable every alternative writes. It's 0 for a new
// group that has no alternatives yet.
func (group *OptGroup) OutputVar() plandef.VarID {
	return group.outputVar
}

// Best returns the lowest-cost alternative, once chosen.
func (group *OptGroup) Best() *OptGroupNode {
	return group.best
}

func (group *OptGroup) add(node *OptGroupNode) {
	if group.outputVar == 0 {
		group.outputVar = node.node.OutputVar()
	}
	group.nodes = append(group.nodes, node)
}

func (group *OptGroup) remove(node *OptGroupNode) {
	for i, n := range group.nodes {
		if n == node {
			group.nodes = append(group.nodes[:i:i], group.nodes[i+1:]...)
			return
		}
	}
}

// An OptGroupNode wraps one plan node as an alternative in an OptGroup. Its
// inputs are groups rather than plan nodes, so that any alternative of an
// input can be chosen independently of this node.
type OptGroupNode struct {
	// Unique within an Optimizer.
	id    int
	node  *plandef.PlanNode
	group *OptGroup
	deps  []*OptGroup
	// Rules that have produced an accepted transform for this node. They're not
	// applied to it again.
	applied map[string]bool
	// Set once the node is removed from its group.
	erased bool
}

// Node returns the wrapped plan node.
func (n *OptGroupNode) Node() *plandef.PlanNode {
	return n.node
}

// Group returns the group the node belongs to.
func (n *OptGroupNode) Group() *OptGroup {
	return n.group
}

// Deps returns a copy of the node's input groups.
func (n *OptGroupNode) Deps() []*OptGroup {
	return append([]*OptGroup(nil), n.deps...)
}

// Dep returns the i-th input group.
func (n *OptGroupNode) Dep(i int) *OptGroup {
	return n.deps[i]
}

// Erased returns true once the node has been removed from its group.
func (n *OptGroupNode) Erased() bool {
	return n.erased
}

// String returns a single-line string with the node's kind, plan node ID and
// input group IDs, like "Filter(4) [1 2]".
func (n *OptGroupNode) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v(%d) [", n.node.Kind, n.node.ID)
	for i, dep := range n.deps {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprint(&b, dep.ID)
	}
	b.WriteByte(']')
	return b.String()
}

// liveGroups returns the groups reachable from the roots through
// alternatives, inputs before the groups that use them.
func (o *Optimizer) liveGroups() []*OptGroup {
	var res []*OptGroup
	seen := make(map[*OptGroup]bool)
	var visit func(group *OptGroup)
	visit = func(group *OptGroup) {
		if seen[group] {
			return
		}
		seen[group] = true
		for _, node := range group.nodes {
			for _, dep := range node.deps {
				visit(dep)
			}
		}
		res = append(res, group)
	}
	for _, root := range o.roots {
		visit(root)
	}
	return res
}

// String returns a multi-line human-readable string describing every live
// group and its alternatives.
func (o *Optimizer) String() string {
	var b strings.Builder
	o.Dump(&b)
	return b.String()
}

// Dump writes a description of every live group to w. The chosen alternative
// of each group, if any, is marked "[best]".
func (o *Optimizer) Dump(w io.Writer) {
	for _, group := range o.liveGroups() {
		fmt.Fprintf(w, "Group %d [%v]\n", group.ID, o.graph.Symbols().Lookup(group.outputVar))
		for _, node := range group.nodes {
			fmt.Fprintf(w, "\t%v", node)
			if node == group.best {
				fmt.Fprint(w, " [best]")
			}
			fmt.Fprintln(w)
		}
	}
}

// Graphviz writes a dot description of the live groups to w. Each group is a
// cluster; edges go from an alternative to its input groups.
func (o *Optimizer) Graphviz(w io.Writer) {
	fmt.Fprintln(w, "digraph {")
	fmt.Fprintln(w, "\tcompound=true")
	fmt.Fprintln(w, "\tnode [shape=box]")
	groups := o.liveGroups()
	for _, group := range groups {
		fmt.Fprintf(w, "\tsubgraph cluster_%d {\n", group.ID)
		fmt.Fprintf(w, "\t\tlabel=\"Group %d\"\n", group.ID)
		if len(group.nodes) == 0 {
			fmt.Fprintf(w, "\t\tg%d_empty [label=\"(empty)\"]\n", group.ID)
		}
		for _, node := range group.nodes {
			style := ""
			if node == group.best {
				style = ", style=bold"
			}
			fmt.Fprintf(w, "\t\tn%d [label=%q%s]\n", node.id, node.String(), style)
		}
		fmt.Fprintln(w, "\t}")
	}
	for _, group := range groups {
		for _, node := range group.nodes {
			for _, dep := range node.deps {
				if len(dep.nodes) == 0 {
					fmt.Fprintf(w, "\tn%d -> g%d_empty\n", node.id, dep.ID)
					continue
				}
				fmt.Fprintf(w, "\tn%d -> n%d [lhead=cluster_%d]\n", node.id, dep.nodes[0].id, dep.ID)
			}
		}
	}
	fmt.Fprintln(w, "}")
}

// CheckInvariants verifies the internal structure of the memo and the
// consistency of the symbol table. It returns an error describing the first
// problem found.
func (o *Optimizer) CheckInvariants() error {
	for _, group := range o.liveGroups() {
		if group.run != o.run {
			return fmt.Errorf("group %d belongs to another optimizer run", group.ID)
		}
		for _, node := range group.nodes {
			if node.erased {
				return fmt.Errorf("group %d contains erased node %v", group.ID, node)
			}
			if node.group != group {
				return fmt.Errorf("node %v is in group %d but records group %d",
					node, group.ID, node.group.ID)
			}
			if node.node.OutputVar() != group.outputVar {
				return fmt.Errorf("node %v in group %d doesn't write the group's variable",
					node, group.ID)
			}
			if node.node.Released() {
				return fmt.Errorf("node %v in group %d was released", node, group.ID)
			}
			if len(node.deps) != node.node.NumDeps() {
				return fmt.Errorf("node %v has %d input groups but %d plan dependencies",
					node, len(node.deps), node.node.NumDeps())
			}
			inputs := node.node.InputVars()
			for i, dep := range node.deps {
				if i < len(inputs) && inputs[i] != dep.outputVar {
					return fmt.Errorf("node %v input %d doesn't read group %d's variable",
						node, i, dep.ID)
				}
			}
		}
	}
	return o.graph.CheckSymbols()
}

// MustCheckInvariants calls CheckInvariants and panics if it returns an error.
func (o *Optimizer) MustCheckInvariants() {
	if err := o.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("optimizer invariant violated: %v\n%v", err, o))
	}
}

// Contains returns true if the memo has a group node matching the given
// pattern. It's intended for tests. The pattern is an indented tree of kind
// names, one node per line, for example:
//
//	Filter
//		Traverse
//			Start
//
// A node matches if its kind name matches and, when the pattern node has
// children, it has as many inputs as the pattern has children and some
// alternative of each input group matches the corresponding child.
func (o *Optimizer) Contains(pattern string) bool {
	tree := parsePattern(pattern)
	for _, group := range o.liveGroups() {
		for _, node := range group.nodes {
			if tree.matches(node) {
				return true
			}
		}
	}
	return false
}

type patternTree struct {
	op     string
	inputs []*patternTree
}

func (tree *patternTree) matches(node *OptGroupNode) bool {
	if node.node.Kind.String() != tree.op {
		return false
	}
	if len(tree.inputs) == 0 {
		return true
	}
	if len(node.deps) != len(tree.inputs) {
		return false
	}
	for i, input := range tree.inputs {
		found := false
		for _, alt := range node.deps[i].nodes {
			if input.matches(alt) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// parsePattern parses the pattern language used by Contains. It panics if the
// pattern doesn't have exactly one root.
func parsePattern(pattern string) *patternTree {
	type level struct {
		indent string
		node   *patternTree
	}
	var root *patternTree
	var stack []level
	for _, line := range strings.Split(pattern, "\n") {
		op := strings.TrimSpace(line)
		if op == "" {
			continue
		}
		indent := leftSpace(line)
		node := &patternTree{op: op}
		for len(stack) > 0 && len(stack[len(stack)-1].indent) >= len(indent) {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			if root != nil {
				panic(fmt.Sprintf("pattern has more than one root: %q", pattern))
			}
			root = node
		} else {
			parent := stack[len(stack)-1].node
			parent.inputs = append(parent.inputs, node)
		}
		stack = append(stack, level{indent: indent, node: node})
	}
	if root == nil {
		panic("empty pattern")
	}
	return root
}

// leftSpace returns the leading whitespace of a line that has other content,
// or "" for a line that has none.
func leftSpace(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		if len(line) > 0 {
			return line
		}
		return ""
	}
	return line[:len(line)-len(trimmed)]
}
