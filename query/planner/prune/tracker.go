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

package prune

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/graphopt/query/planner/expr"
)

// AnyScope stands for every tag of a vertex, or every type of an edge. It's
// used for properties referenced without a tag, like "e.weight".
const AnyScope = "*"

// alias -> tag or edge type -> property names.
type propMap map[string]map[string]map[string]struct{}

func (m propMap) insert(alias, scope, prop string) {
	scopes := m[alias]
	if scopes == nil {
		scopes = make(map[string]map[string]struct{})
		m[alias] = scopes
	}
	props := scopes[scope]
	if props == nil {
		props = make(map[string]struct{})
		scopes[scope] = props
	}
	if prop != "" {
		props[prop] = struct{}{}
	}
}

func (m propMap) copy() propMap {
	res := make(propMap, len(m))
	for alias := range m {
		m.copyAlias(res, alias)
	}
	return res
}

// move merges the entries of alias 'from' into 'to' and removes 'from'.
func (m propMap) move(from, to string) {
	scopes, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	propMap{to: scopes}.copyAlias(m, to)
}

// used returns the properties of alias used in scope, including those used
// through AnyScope.
func (m propMap) used(alias, scope string) map[string]struct{} {
	res := make(map[string]struct{})
	for _, s := range []string{scope, AnyScope} {
		for prop := range m[alias][s] {
			res[prop] = struct{}{}
		}
	}
	return res
}

func (m propMap) format(b *strings.Builder, kind string) {
	for _, alias := range sortedKeys(m) {
		for _, scope := range sortedKeys(m[alias]) {
			fmt.Fprintf(b, "%v %v.%v: %v\n", kind, alias, scope,
				strings.Join(sortedKeys(m[alias][scope]), ", "))
		}
	}
}

func sortedKeys(m interface{}) []string {
	var keys []string
	switch m := m.(type) {
	case propMap:
		for k := range m {
			keys = append(keys, k)
		}
	case map[string]map[string]struct{}:
		for k := range m {
			keys = append(keys, k)
		}
	case map[string]struct{}:
		for k := range m {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// A PropertyTracker records which vertex and edge properties of each alias
// are used by the part of the plan above some node. Columns in cols are used
// as whole values, so all of their properties are needed.
type PropertyTracker struct {
	vertexProps propMap
	edgeProps   propMap
	cols        map[string]struct{}
}

// NewPropertyTracker returns an empty tracker.
func NewPropertyTracker() *PropertyTracker {
	return &PropertyTracker{
		vertexProps: make(propMap),
		edgeProps:   make(propMap),
		cols:        make(map[string]struct{}),
	}
}

// InsertVertexProp records that the property of tag is used for the vertices
// named alias. An empty prop only records that the tag is referenced.
func (t *PropertyTracker) InsertVertexProp(alias, tag, prop string) {
	t.vertexProps.insert(alias, tag, prop)
}

// InsertEdgeProp records that the property of edgeType is used for the edges
// named alias.
func (t *PropertyTracker) InsertEdgeProp(alias, edgeType, prop string) {
	t.edgeProps.insert(alias, edgeType, prop)
}

// InsertCol records that the column is used as a whole.
func (t *PropertyTracker) InsertCol(name string) {
	t.cols[name] = struct{}{}
}

// Update renames the alias oldAlias to newAlias. Anything already tracked
// for newAlias is kept.
func (t *PropertyTracker) Update(oldAlias, newAlias string) {
	if oldAlias == newAlias {
		return
	}
	t.vertexProps.move(oldAlias, newAlias)
	t.edgeProps.move(oldAlias, newAlias)
	if _, ok := t.cols[oldAlias]; ok {
		delete(t.cols, oldAlias)
		t.cols[newAlias] = struct{}{}
	}
}

// Copy returns a deep copy of the tracker.
func (t *PropertyTracker) Copy() *PropertyTracker {
	res := &PropertyTracker{
		vertexProps: t.vertexProps.copy(),
		edgeProps:   t.edgeProps.copy(),
		cols:        make(map[string]struct{}, len(t.cols)),
	}
	for c := range t.cols {
		res.cols[c] = struct{}{}
	}
	return res
}

// merge adds everything tracked by other.
func (t *PropertyTracker) merge(other *PropertyTracker) {
	for alias := range other.vertexProps {
		other.vertexProps.copyAlias(t.vertexProps, alias)
	}
	for alias := range other.edgeProps {
		other.edgeProps.copyAlias(t.edgeProps, alias)
	}
	for c := range other.cols {
		t.cols[c] = struct{}{}
	}
}

// only returns a tracker with just the entries of alias.
func (t *PropertyTracker) only(alias string) *PropertyTracker {
	res := NewPropertyTracker()
	t.vertexProps.copyAlias(res.vertexProps, alias)
	t.edgeProps.copyAlias(res.edgeProps, alias)
	if _, ok := t.cols[alias]; ok {
		res.cols[alias] = struct{}{}
	}
	return res
}

func (m propMap) copyAlias(into propMap, alias string) {
	for scope, props := range m[alias] {
		into.insert(alias, scope, "")
		for prop := range props {
			into[alias][scope][prop] = struct{}{}
		}
	}
}

// ExtractFromExpr records every property reference in e. Bare aliases, input
// columns and variable columns are recorded as whole columns. A property
// without a tag ("e.p") may be an edge property or a property of any tag of
// a vertex, so it's recorded as both.
func (t *PropertyTracker) ExtractFromExpr(e expr.Expr) {
	if e == nil {
		return
	}
	for _, ref := range expr.PropertyRefs(e) {
		switch ref.Kind {
		case expr.RefLabel, expr.RefInputCol:
			t.InsertCol(ref.Alias)
		case expr.RefVarCol:
			t.InsertCol(ref.Prop)
		case expr.RefTagProp:
			t.InsertVertexProp(ref.Alias, ref.Scope, ref.Prop)
		case expr.RefAttribute:
			t.InsertVertexProp(ref.Alias, AnyScope, ref.Prop)
			t.InsertEdgeProp(ref.Alias, AnyScope, ref.Prop)
		}
	}
}

// HasCol returns true if the column is used as a whole.
func (t *PropertyTracker) HasCol(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Uses returns true if anything about alias is used.
func (t *PropertyTracker) Uses(alias string) bool {
	_, v := t.vertexProps[alias]
	_, e := t.edgeProps[alias]
	return v || e || t.HasCol(alias)
}

// VertexProps returns the used properties of tag for alias, in order,
// including those used without a tag.
func (t *PropertyTracker) VertexProps(alias, tag string) []string {
	return sortedKeys(t.vertexProps.used(alias, tag))
}

// EdgeProps returns the used properties of edgeType for alias, in order,
// including those used without a type.
func (t *PropertyTracker) EdgeProps(alias, edgeType string) []string {
	return sortedKeys(t.edgeProps.used(alias, edgeType))
}

// String returns a multi-line description of the tracker, in a stable order.
func (t *PropertyTracker) String() string {
	var b strings.Builder
	t.vertexProps.format(&b, "vertex")
	t.edgeProps.format(&b, "edge")
	if len(t.cols) > 0 {
		fmt.Fprintf(&b, "cols: %v\n", strings.Join(sortedKeys(t.cols), ", "))
	}
	return b.String()
}
