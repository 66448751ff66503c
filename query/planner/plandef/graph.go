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
	"fmt"
	"strings"
)

// A Graph is the arena holding every PlanNode and Variable of one query. It
// hands out NodeID and VarID handles rather than pointers between nodes, and
// it's the only way to change a node's topology, so that the SymbolTable
// always agrees with the nodes. A Graph is not safe for concurrent use.
type Graph struct {
	ids     *IDGenerator
	symbols *SymbolTable
	nodes   map[NodeID]*PlanNode
	// Node IDs in creation order.
	order []NodeID
}

// NewGraph returns an empty Graph that allocates node IDs from ids. If ids is
// nil, the Graph uses its own generator.
func NewGraph(ids *IDGenerator) *Graph {
	if ids == nil {
		ids = new(IDGenerator)
	}
	return &Graph{
		ids:     ids,
		symbols: NewSymbolTable(),
		nodes:   make(map[NodeID]*PlanNode),
	}
}

// Symbols returns the graph's symbol table.
func (g *Graph) Symbols() *SymbolTable {
	return g.symbols
}

// Node returns the node with the given ID, or nil if there's none.
func (g *Graph) Node(id NodeID) *PlanNode {
	return g.nodes[id]
}

// Nodes returns every node ever created in the graph, including released
// ones, in creation order.
func (g *Graph) Nodes() []*PlanNode {
	res := make([]*PlanNode, len(g.order))
	for i, id := range g.order {
		res[i] = g.nodes[id]
	}
	return res
}

func (g *Graph) mustNode(id NodeID) (*PlanNode, error) {
	n := g.nodes[id]
	if n == nil {
		return nil, fmt.Errorf("unknown plan node %d", id)
	}
	return n, nil
}

// NewNode creates a node of the given kind reading the output of each of the
// dependencies. It declares a new output variable for the node and records
// the node as its writer and as a reader of each dependency's output.
func (g *Graph) NewNode(kind Kind, args Args, deps ...NodeID) (*PlanNode, error) {
	inputs := make([]string, len(deps))
	for i, dep := range deps {
		d, err := g.mustNode(dep)
		if err != nil {
			return nil, err
		}
		inputs[i] = g.symbols.Lookup(d.outputVar).Name
	}
	return g.NewNodeWithInputs(kind, args, deps, inputs)
}

// NewNodeWithInputs is like NewNode but takes the names of the input
// variables explicitly. It's used for nodes that read variables not written
// by their dependencies, such as an Argument reading an outer variable.
func (g *Graph) NewNodeWithInputs(kind Kind, args Args, deps []NodeID, inputs []string) (*PlanNode, error) {
	for _, dep := range deps {
		d, err := g.mustNode(dep)
		if err != nil {
			return nil, err
		}
		if d.released {
			return nil, fmt.Errorf("dependency %v of new %v node was released", dep, kind)
		}
	}
	return g.newNode(kind, args, deps, inputs)
}

// newNode creates the node without checking whether its dependencies are
// still part of the plan.
func (g *Graph) newNode(kind Kind, args Args, deps []NodeID, inputs []string) (*PlanNode, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid plan node kind %v", kind)
	}
	if !kind.Arity().Accepts(len(deps)) {
		return nil, fmt.Errorf("%v is %v and can't have %d dependencies",
			kind, kind.Arity(), len(deps))
	}
	if !argsFit(kind, args) {
		return nil, fmt.Errorf("%T is not a valid payload for %v", args, kind)
	}
	for _, dep := range deps {
		if _, err := g.mustNode(dep); err != nil {
			return nil, err
		}
	}
	inputVars := make([]VarID, len(inputs))
	for i, name := range inputs {
		v := g.symbols.Get(name)
		if v == nil {
			return nil, fmt.Errorf("unknown input variable %q for new %v node", name, kind)
		}
		inputVars[i] = v.ID
	}
	n := &PlanNode{
		ID:        g.ids.Next(),
		Kind:      kind,
		Args:      args,
		deps:      append([]NodeID(nil), deps...),
		inputVars: inputVars,
	}
	out := g.symbols.NewVar(kind.String())
	n.outputVar = out.ID
	out.writtenBy.add(n.ID)
	for _, id := range inputVars {
		g.symbols.Lookup(id).readBy.add(n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return n, nil
}

// MustNewNode is like NewNode but panics on error. It's intended for tests
// and for rules building nodes whose shape is known to be valid.
func (g *Graph) MustNewNode(kind Kind, args Args, deps ...NodeID) *PlanNode {
	n, err := g.NewNode(kind, args, deps...)
	if err != nil {
		panic(fmt.Sprintf("MustNewNode: %v", err))
	}
	return n
}

// OutputVar returns the variable written by the node.
func (g *Graph) OutputVar(id NodeID) *Variable {
	n := g.nodes[id]
	if n == nil {
		return nil
	}
	return g.symbols.Lookup(n.outputVar)
}

// InputVar returns the i-th variable read by the node.
func (g *Graph) InputVar(id NodeID, i int) *Variable {
	n := g.nodes[id]
	if n == nil || i < 0 || i >= len(n.inputVars) {
		return nil
	}
	return g.symbols.Lookup(n.inputVars[i])
}

// ColNames returns the column names of the node's output variable.
func (g *Graph) ColNames(id NodeID) []string {
	v := g.OutputVar(id)
	if v == nil {
		return nil
	}
	return v.ColNames
}

// SetColNames sets the column names of the node's output variable.
func (g *Graph) SetColNames(id NodeID, cols []string) error {
	n, err := g.mustNode(id)
	if err != nil {
		return err
	}
	g.symbols.Lookup(n.outputVar).ColNames = append([]string(nil), cols...)
	return nil
}

// SetOutputVar makes the node write the named variable instead of its
// current output variable.
func (g *Graph) SetOutputVar(id NodeID, name string) error {
	n, err := g.mustNode(id)
	if err != nil {
		return err
	}
	to := g.symbols.Get(name)
	if to == nil {
		return fmt.Errorf("unknown variable %q", name)
	}
	from := g.symbols.Lookup(n.outputVar)
	if from == to {
		return nil
	}
	from.writtenBy.remove(id)
	to.writtenBy.add(id)
	n.outputVar = to.ID
	return nil
}

// SetInputVar makes the node read the named variable as its i-th input.
func (g *Graph) SetInputVar(id NodeID, i int, name string) error {
	n, err := g.mustNode(id)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(n.inputVars) {
		return fmt.Errorf("%v node %d has no input %d", n.Kind, id, i)
	}
	to := g.symbols.Get(name)
	if to == nil {
		return fmt.Errorf("unknown variable %q", name)
	}
	from := n.inputVars[i]
	if from == to.ID {
		return nil
	}
	n.inputVars[i] = to.ID
	to.readBy.add(id)
	if !n.reads(from) {
		g.symbols.Lookup(from).readBy.remove(id)
	}
	return nil
}

func (n *PlanNode) reads(v VarID) bool {
	for _, in := range n.inputVars {
		if in == v {
			return true
		}
	}
	return false
}

// SetDep makes dep the i-th dependency of the node. If the node reads its
// i-th input from that position, the input is rebound to dep's output
// variable.
func (g *Graph) SetDep(id NodeID, i int, dep NodeID) error {
	n, err := g.mustNode(id)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(n.deps) {
		return fmt.Errorf("%v node %d has no dependency %d", n.Kind, id, i)
	}
	d, err := g.mustNode(dep)
	if err != nil {
		return err
	}
	n.deps[i] = dep
	if i < len(n.inputVars) {
		return g.SetInputVar(id, i, g.symbols.Lookup(d.outputVar).Name)
	}
	return nil
}

// ReleaseSymbols removes the node from the read and write sets of every
// variable it uses and marks it released. The node stays in the arena so
// that its description remains available. Releasing a node twice has no
// further effect.
func (g *Graph) ReleaseSymbols(id NodeID) {
	n := g.nodes[id]
	if n == nil || n.released {
		return
	}
	g.symbols.Lookup(n.outputVar).writtenBy.remove(id)
	for _, in := range n.inputVars {
		g.symbols.Lookup(in).readBy.remove(id)
	}
	n.released = true
}

// Clone creates a structurally identical copy of a node: same kind, deep
// copy of the payload, same dependencies and input variables, and the same
// cost. The copy has a new ID and a new output variable with the same type
// and columns. The copy is registered as a reader of its inputs; nothing
// reads its output until the caller wires it in. Unlike NewNode, Clone
// accepts a node whose dependencies were released, as the optimizer rebinds
// dependencies after copying.
func (g *Graph) Clone(id NodeID) (*PlanNode, error) {
	n, err := g.mustNode(id)
	if err != nil {
		return nil, err
	}
	var args Args
	if n.Args != nil {
		args = n.Args.clone()
	}
	inputs := make([]string, len(n.inputVars))
	for i, in := range n.inputVars {
		inputs[i] = g.symbols.Lookup(in).Name
	}
	c, err := g.newNode(n.Kind, args, n.deps, inputs)
	if err != nil {
		return nil, err
	}
	c.Cost = n.Cost
	from := g.symbols.Lookup(n.outputVar)
	to := g.symbols.Lookup(c.outputVar)
	to.Type = from.Type
	to.ColNames = append([]string(nil), from.ColNames...)
	return c, nil
}

// Bodies returns the roots of the sub-plans owned by a Select or Loop node,
// which are not among its dependencies. It returns nil for other kinds.
func (g *Graph) Bodies(id NodeID) []NodeID {
	n := g.nodes[id]
	if n == nil {
		return nil
	}
	switch a := n.Args.(type) {
	case *Select:
		return nonZero(a.If, a.Else)
	case *Loop:
		return nonZero(a.Body)
	}
	return nil
}

func nonZero(ids ...NodeID) []NodeID {
	var res []NodeID
	for _, id := range ids {
		if id != 0 {
			res = append(res, id)
		}
	}
	return res
}

// Reachable returns the IDs of every node reachable from root through
// dependencies and Select/Loop bodies, in post-order (dependencies before
// the nodes that read them). Each node appears once.
func (g *Graph) Reachable(root NodeID) []NodeID {
	var res []NodeID
	seen := make(map[NodeID]bool)
	var visit func(id NodeID)
	visit = func(id NodeID) {
		n := g.nodes[id]
		if n == nil || seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range n.deps {
			visit(dep)
		}
		for _, body := range g.Bodies(id) {
			visit(body)
		}
		res = append(res, id)
	}
	visit(root)
	return res
}

// CheckInvariants verifies the arity of every live node and that the read
// and write sets of every variable match the bindings of the live nodes. It
// returns an error describing the first violation found.
func (g *Graph) CheckInvariants() error {
	for _, id := range g.order {
		n := g.nodes[id]
		if n.released {
			continue
		}
		if !n.Kind.Arity().Accepts(len(n.deps)) {
			return fmt.Errorf("%v node %d has %d dependencies", n.Kind, id, len(n.deps))
		}
		for _, dep := range n.deps {
			d := g.nodes[dep]
			if d == nil || d.released {
				return fmt.Errorf("%v node %d depends on missing or released node %d", n.Kind, id, dep)
			}
		}
		if !g.symbols.Lookup(n.outputVar).writtenBy.Contains(id) {
			return fmt.Errorf("%v node %d is not a writer of its output variable %v",
				n.Kind, id, g.symbols.Lookup(n.outputVar))
		}
		for _, in := range n.inputVars {
			if !g.symbols.Lookup(in).readBy.Contains(id) {
				return fmt.Errorf("%v node %d is not a reader of its input variable %v",
					n.Kind, id, g.symbols.Lookup(in))
			}
		}
	}
	return g.checkVars()
}

func (g *Graph) checkVars() error {
	for _, v := range g.symbols.Vars() {
		for _, id := range v.ReadBy() {
			n := g.nodes[id]
			if n == nil || n.released || !n.reads(v.ID) {
				return fmt.Errorf("variable %v lists %d as a reader, but it doesn't read it", v, id)
			}
		}
		for _, id := range v.WrittenBy() {
			n := g.nodes[id]
			if n == nil || n.released || n.outputVar != v.ID {
				return fmt.Errorf("variable %v lists %d as a writer, but it doesn't write it", v, id)
			}
		}
	}
	return nil
}

// CheckSymbols is a weaker form of CheckInvariants that only verifies that
// the read and write sets of every variable match the bindings of the live
// nodes. Dependencies of live nodes may point at released nodes.
func (g *Graph) CheckSymbols() error {
	for _, id := range g.order {
		n := g.nodes[id]
		if n.released {
			continue
		}
		if !g.symbols.Lookup(n.outputVar).writtenBy.Contains(id) {
			return fmt.Errorf("%v node %d is not a writer of its output variable %v",
				n.Kind, id, g.symbols.Lookup(n.outputVar))
		}
		for _, in := range n.inputVars {
			if !g.symbols.Lookup(in).readBy.Contains(id) {
				return fmt.Errorf("%v node %d is not a reader of its input variable %v",
					n.Kind, id, g.symbols.Lookup(in))
			}
		}
	}
	return g.checkVars()
}

// NumNodes returns the number of nodes ever created in the graph.
func (g *Graph) NumNodes() int {
	return len(g.order)
}

// NodesSince returns the nodes created after the graph held mark nodes, in
// creation order. mark is a value previously returned by NumNodes.
func (g *Graph) NodesSince(mark int) []*PlanNode {
	if mark < 0 || mark > len(g.order) {
		return nil
	}
	res := make([]*PlanNode, 0, len(g.order)-mark)
	for _, id := range g.order[mark:] {
		res = append(res, g.nodes[id])
	}
	return res
}

// Format returns a multi-line indented human-readable string describing the
// plan rooted at root. Nodes reachable along several paths are printed each
// time they're reached.
func (g *Graph) Format(root NodeID) string {
	var b strings.Builder
	var print func(id NodeID, indent string)
	print = func(id NodeID, indent string) {
		n := g.nodes[id]
		if n == nil {
			fmt.Fprintf(&b, "%v<missing %d>\n", indent, id)
			return
		}
		fmt.Fprintf(&b, "%v%v\n", indent, g.summary(n))
		for _, dep := range n.deps {
			print(dep, indent+"\t")
		}
		for _, body := range g.Bodies(id) {
			fmt.Fprintf(&b, "%v\tbody:\n", indent)
			print(body, indent+"\t\t")
		}
	}
	print(root, "")
	return b.String()
}

// summary returns a single line describing the node.
func (g *Graph) summary(n *PlanNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v(%d)", n.Kind, n.ID)
	d := describer{withIDs: true}
	if n.Args != nil {
		n.Args.describe(&d)
	}
	for _, p := range d.pairs {
		fmt.Fprintf(&b, " %v=%v", p.Key, p.Value)
	}
	fmt.Fprintf(&b, " -> %v", g.symbols.Lookup(n.outputVar))
	if cols := g.ColNames(n.ID); len(cols) > 0 {
		fmt.Fprintf(&b, " [%v]", strings.Join(cols, ", "))
	}
	return b.String()
}
