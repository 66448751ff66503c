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
	"strings"

	"github.com/ebay/graphopt/query/planner/plandef"
)

// A Pattern describes the shape of a sub-plan: the kinds allowed at the root,
// and optionally a pattern for each dependency. A Pattern with no children
// matches regardless of the node's dependencies. Patterns are immutable.
type Pattern struct {
	kinds    map[plandef.Kind]bool
	children []*Pattern
}

// NewPattern returns a pattern matching nodes of the given kind whose
// dependencies match the given children.
func NewPattern(kind plandef.Kind, children ...*Pattern) *Pattern {
	return NewMultiPattern([]plandef.Kind{kind}, children...)
}

// NewMultiPattern returns a pattern matching nodes of any of the given kinds
// whose dependencies match the given children.
func NewMultiPattern(kinds []plandef.Kind, children ...*Pattern) *Pattern {
	p := &Pattern{
		kinds:    make(map[plandef.Kind]bool, len(kinds)),
		children: append([]*Pattern(nil), children...),
	}
	for _, k := range kinds {
		p.kinds[k] = true
	}
	return p
}

// Kinds returns the pattern's root kinds in ascending order.
func (p *Pattern) Kinds() []plandef.Kind {
	res := make([]plandef.Kind, 0, len(p.kinds))
	for k := range p.kinds {
		res = append(res, k)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Children returns the pattern's child patterns.
func (p *Pattern) Children() []*Pattern {
	return append([]*Pattern(nil), p.children...)
}

// String returns a compact description like "Project(Filter(*))".
func (p *Pattern) String() string {
	var b strings.Builder
	p.format(&b)
	return b.String()
}

func (p *Pattern) format(b *strings.Builder) {
	kinds := p.Kinds()
	if len(kinds) > 1 {
		b.WriteByte('{')
	}
	for i, k := range kinds {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k.String())
	}
	if len(kinds) > 1 {
		b.WriteByte('}')
	}
	if len(p.children) == 0 {
		return
	}
	b.WriteByte('(')
	for i, c := range p.children {
		if i > 0 {
			b.WriteString(", ")
		}
		c.format(b)
	}
	b.WriteByte(')')
}

// validate checks that the pattern can ever match a well-formed plan.
func (p *Pattern) validate() error {
	if len(p.kinds) == 0 {
		return fmt.Errorf("pattern has no kinds")
	}
	for _, k := range p.Kinds() {
		if !k.Valid() {
			return fmt.Errorf("pattern %v has invalid kind %v", p, k)
		}
		if len(p.children) == 0 {
			continue
		}
		if k.Arity() == plandef.ZeroOrOne {
			return fmt.Errorf("pattern %v: %v can't have child patterns", p, k)
		}
		if !k.Arity().Accepts(len(p.children)) {
			return fmt.Errorf("pattern %v: %v is %v and can't have %d child patterns",
				p, k, k.Arity(), len(p.children))
		}
	}
	for _, c := range p.children {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Match returns the matched sub-plan if the group node has the pattern's
// shape. When the pattern has children, the node must have exactly one
// dependency group per child, and every alternative in each dependency group
// must match the corresponding child. The first alternative of each group is
// captured in the result.
func (p *Pattern) Match(node *OptGroupNode) (*MatchedResult, bool) {
	if node == nil || !p.kinds[node.node.Kind] {
		return nil, false
	}
	res := &MatchedResult{node: node}
	if len(p.children) == 0 {
		return res, true
	}
	if len(node.deps) != len(p.children) {
		return nil, false
	}
	res.deps = make([]*MatchedResult, len(p.children))
	for i, child := range p.children {
		group := node.deps[i]
		if len(group.nodes) == 0 {
			return nil, false
		}
		for j, alt := range group.nodes {
			m, ok := child.Match(alt)
			if !ok {
				return nil, false
			}
			if j == 0 {
				res.deps[i] = m
			}
		}
	}
	return res, true
}

// A MatchedResult is the sub-plan captured by a successful Pattern.Match. It's
// read-only and only valid during the rule call it's passed to.
type MatchedResult struct {
	node *OptGroupNode
	// One entry per child pattern; nil if the pattern had no children.
	deps []*MatchedResult
}

// Node returns the matched group node.
func (m *MatchedResult) Node() *OptGroupNode {
	return m.node
}

// PlanNode returns the plan node wrapped by the matched group node.
func (m *MatchedResult) PlanNode() *plandef.PlanNode {
	return m.node.node
}

// Deps returns the results of the child patterns.
func (m *MatchedResult) Deps() []*MatchedResult {
	return append([]*MatchedResult(nil), m.deps...)
}

// Result follows a path of child pattern indexes from this result. An empty
// path returns m. It returns nil if the path is invalid.
func (m *MatchedResult) Result(path ...int) *MatchedResult {
	res := m
	for _, i := range path {
		if i < 0 || i >= len(res.deps) {
			return nil
		}
		res = res.deps[i]
	}
	return res
}

// nodes returns every group node captured by the match, the root first.
func (m *MatchedResult) nodes() []*OptGroupNode {
	res := []*OptGroupNode{m.node}
	for _, d := range m.deps {
		res = append(res, d.nodes()...)
	}
	return res
}
