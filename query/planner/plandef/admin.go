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
	"strconv"
	"strings"

	"github.com/ebay/graphopt/query/planner/expr"
)

// A PropDef is one property of a tag or edge type definition.
type PropDef struct {
	Name string
	Type string
}

// Schema is the payload of the tag and edge type DDL kinds (create, alter,
// drop, describe) and of the index DDL kinds.
type Schema struct {
	Space       string
	Name        string
	Props       []PropDef
	IfNotExists bool
}

func (s *Schema) describe(d *describer) {
	d.add("space", s.Space)
	d.add("name", s.Name)
	if len(s.Props) > 0 {
		strs := make([]string, len(s.Props))
		for i, p := range s.Props {
			strs[i] = p.Name + " " + p.Type
		}
		d.add("props", strings.Join(strs, ", "))
	}
	if s.IfNotExists {
		d.add("ifNotExists", "true")
	}
}

func (s *Schema) clone() Args {
	c := *s
	c.Props = append([]PropDef(nil), s.Props...)
	return &c
}

func (s *Schema) exprs() []expr.Expr { return nil }

// Mutate is the payload of the insert, update and delete kinds. Target is the
// tag or edge type written; Items are the values, IDs or keys the mutation
// takes from its input.
type Mutate struct {
	Space  string
	Target string
	Props  []string
	Items  []expr.Expr
	Where  expr.Expr
	Upsert bool
}

func (m *Mutate) describe(d *describer) {
	d.add("space", m.Space)
	d.add("target", m.Target)
	if len(m.Props) > 0 {
		d.add("props", strings.Join(m.Props, ", "))
	}
	d.add("items", exprsString(m.Items))
	d.addExpr("where", m.Where)
	if m.Upsert {
		d.add("upsert", strconv.FormatBool(m.Upsert))
	}
}

func (m *Mutate) clone() Args {
	c := *m
	c.Props = append([]string(nil), m.Props...)
	c.Items = cloneExprs(m.Items)
	c.Where = cloneExpr(m.Where)
	return &c
}

func (m *Mutate) exprs() []expr.Expr { return append(nonNil(m.Where), m.Items...) }

// Admin is the payload of the remaining administration kinds: spaces, hosts,
// users, jobs and configs. Params are shown as given.
type Admin struct {
	Name   string
	Params []string
}

func (a *Admin) describe(d *describer) {
	if a.Name != "" {
		d.add("name", a.Name)
	}
	if len(a.Params) > 0 {
		d.add("params", strings.Join(a.Params, ", "))
	}
}

func (a *Admin) clone() Args {
	return &Admin{Name: a.Name, Params: append([]string(nil), a.Params...)}
}

func (a *Admin) exprs() []expr.Expr { return nil }
