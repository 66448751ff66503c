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
	"context"
	"fmt"
	"sort"

	"github.com/ebay/graphopt/query/planner/plandef"
	log "github.com/sirupsen/logrus"
)

// Policy controls how many rules of a RuleSet may be applied to a single
// group node in one exploration round.
type Policy int

const (
	// ApplyAll applies every matching rule of the set.
	ApplyAll Policy = iota
	// ApplyFirst stops after the first rule of the set whose transform is
	// accepted.
	ApplyFirst
)

func (p Policy) String() string {
	switch p {
	case ApplyAll:
		return "ApplyAll"
	case ApplyFirst:
		return "ApplyFirst"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// A RuleSet is a named, ordered list of rules.
type RuleSet struct {
	Name   string
	Policy Policy
	Rules  []OptRule
}

func (set *RuleSet) hasRule(name string) bool {
	for _, r := range set.Rules {
		if r.Name() == name {
			return true
		}
	}
	return false
}

// A RuleSetRegistry holds the rule sets known to the process. Rule sets are
// registered at startup and looked up by name when an Optimizer is built. A
// registry is not safe for concurrent modification.
type RuleSetRegistry struct {
	sets map[string]*RuleSet
}

// NewRuleSetRegistry returns an empty registry.
func NewRuleSetRegistry() *RuleSetRegistry {
	return &RuleSetRegistry{sets: make(map[string]*RuleSet)}
}

// Register validates the rule set and adds it to the registry. It returns an
// error if the name is already taken, if two rules share a name, or if any
// rule's pattern can't match a well-formed plan.
func (reg *RuleSetRegistry) Register(set *RuleSet) error {
	if set == nil || set.Name == "" {
		return fmt.Errorf("rule set must have a name")
	}
	if _, exists := reg.sets[set.Name]; exists {
		return fmt.Errorf("rule set %q already registered", set.Name)
	}
	seen := make(map[string]bool, len(set.Rules))
	for i, rule := range set.Rules {
		if rule == nil {
			return fmt.Errorf("rule set %q: rule %d is nil", set.Name, i)
		}
		if seen[rule.Name()] {
			return fmt.Errorf("rule set %q: duplicate rule %q", set.Name, rule.Name())
		}
		seen[rule.Name()] = true
		if rule.Pattern() == nil {
			return fmt.Errorf("rule set %q: rule %q has no pattern", set.Name, rule.Name())
		}
		if err := rule.Pattern().validate(); err != nil {
			return fmt.Errorf("rule set %q: rule %q: %v", set.Name, rule.Name(), err)
		}
	}
	reg.sets[set.Name] = &RuleSet{
		Name:   set.Name,
		Policy: set.Policy,
		Rules:  append([]OptRule(nil), set.Rules...),
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (reg *RuleSetRegistry) MustRegister(set *RuleSet) {
	if err := reg.Register(set); err != nil {
		panic(fmt.Sprintf("MustRegister: %v", err))
	}
}

// Get returns the named rule set.
func (reg *RuleSetRegistry) Get(name string) (*RuleSet, bool) {
	set, ok := reg.sets[name]
	return set, ok
}

// Merge appends the rules of each 'from' set to the 'into' set, skipping
// rules whose names 'into' already has.
func (reg *RuleSetRegistry) Merge(into string, from ...string) error {
	dest, ok := reg.sets[into]
	if !ok {
		return fmt.Errorf("unknown rule set %q", into)
	}
	for _, name := range from {
		src, ok := reg.sets[name]
		if !ok {
			return fmt.Errorf("unknown rule set %q", name)
		}
		for _, rule := range src.Rules {
			if !dest.hasRule(rule.Name()) {
				dest.Rules = append(dest.Rules, rule)
			}
		}
	}
	return nil
}

// Names returns the names of all the registered rule sets, sorted.
func (reg *RuleSetRegistry) Names() []string {
	res := make([]string, 0, len(reg.sets))
	for name := range reg.sets {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Resolve returns the named rule sets, in the given order.
func (reg *RuleSetRegistry) Resolve(names ...string) ([]*RuleSet, error) {
	res := make([]*RuleSet, len(names))
	for i, name := range names {
		set, ok := reg.sets[name]
		if !ok {
			return nil, fmt.Errorf("unknown rule set %q", name)
		}
		res[i] = set
	}
	return res, nil
}

// An OptContext is passed to a rule's Match and Transform. It gives the rule
// access to the plan arena and lets it build new group nodes. Every group
// node a Transform creates is tentative until the optimizer has checked and
// accepted the result.
type OptContext struct {
	ctx context.Context
	opt *Optimizer
	log *log.Entry
	// The group of the matched root.
	current *OptGroup
	// Groups created during this transform.
	newGroups []*OptGroup
	// Group nodes created during this transform, in creation order.
	created []*OptGroupNode
}

// Context returns the context passed to Optimize.
func (ctx *OptContext) Context() context.Context {
	return ctx.ctx
}

// Graph returns the plan arena.
func (ctx *OptContext) Graph() *plandef.Graph {
	return ctx.opt.graph
}

// Log returns a log entry annotated with the rule and matched node.
func (ctx *OptContext) Log() *log.Entry {
	return ctx.log
}

// NewGroup returns a new empty group. It's kept only if the transform is
// accepted.
func (ctx *OptContext) NewGroup() *OptGroup {
	group := ctx.opt.newGroup()
	ctx.newGroups = append(ctx.newGroups, group)
	return group
}

func (ctx *OptContext) isNewGroup(group *OptGroup) bool {
	for _, g := range ctx.newGroups {
		if g == group {
			return true
		}
	}
	return false
}

// NewGroupNode wraps the plan node as an alternative in group, reading from
// the given dependency groups. A nil group creates a new one. The plan node's
// dependencies are rebound to members of the dependency groups; the plan node
// must already have the right number of dependencies.
//
// Nodes added to a new group are visible immediately so that later nodes of
// the same transform can depend on them. Nodes added to an existing group are
// only added if the transform is accepted.
func (ctx *OptContext) NewGroupNode(plan *plandef.PlanNode, group *OptGroup, deps ...*OptGroup) (*OptGroupNode, error) {
	if plan == nil {
		return nil, fmt.Errorf("NewGroupNode: nil plan node")
	}
	if plan.NumDeps() != len(deps) {
		return nil, fmt.Errorf("NewGroupNode: %v node %d has %d dependencies, got %d groups",
			plan.Kind, plan.ID, plan.NumDeps(), len(deps))
	}
	for i, dep := range deps {
		if dep == nil {
			return nil, fmt.Errorf("NewGroupNode: dependency group %d is nil", i)
		}
		if dep.run != ctx.opt.run {
			log.Panicf("NewGroupNode: group %d belongs to another optimizer run", dep.ID)
		}
		if len(dep.nodes) == 0 {
			return nil, fmt.Errorf("NewGroupNode: dependency group %d has no alternatives", dep.ID)
		}
		if err := ctx.opt.graph.SetDep(plan.ID, i, dep.nodes[0].node.ID); err != nil {
			return nil, err
		}
	}
	if group == nil {
		group = ctx.NewGroup()
	}
	node := ctx.opt.newGroupNode(plan, group, deps)
	ctx.created = append(ctx.created, node)
	if ctx.isNewGroup(group) {
		if group.outputVar != 0 && plan.OutputVar() != group.outputVar {
			return nil, fmt.Errorf("NewGroupNode: %v node %d doesn't write group %d's variable",
				plan.Kind, plan.ID, group.ID)
		}
		group.add(node)
	}
	return node, nil
}
