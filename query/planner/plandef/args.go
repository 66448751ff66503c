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

// Args is the kind-specific payload of a PlanNode, such as the predicate of a
// Filter or the requested properties of a Traverse. Nodes of kinds that carry
// no arguments have nil Args.
type Args interface {
	// describe appends the explain pairs for the payload.
	describe(d *describer)
	// clone returns a deep copy, including any expression trees.
	clone() Args
	// exprs returns every expression owned by the payload.
	exprs() []expr.Expr
}

// ImplementArgs is a list of types that implement Args.
// This serves as documentation and as a compile-time check.
var ImplementArgs = []Args{
	// Defined in this file.
	new(Argument),
	new(Filter),
	new(Project),
	new(Unwind),
	new(Aggregate),
	new(Sort),
	new(TopN),
	new(Limit),
	new(Sample),
	new(DataCollect),
	new(Join),
	new(Apply),
	new(Assign),
	new(Select),
	new(Loop),
	// Defined in fetch.go
	new(Traverse),
	new(GetNeighbors),
	new(AppendVertices),
	new(GetVertices),
	new(GetEdges),
	new(ScanVertices),
	new(ScanEdges),
	new(IndexScan),
	new(Path),
	new(Subgraph),
	// Defined in admin.go
	new(Schema),
	new(Mutate),
	new(Admin),
}

// Argument imports a column of a variable defined outside the current
// sub-plan, such as the loop variable of a Loop body.
type Argument struct {
	Alias string
}

func (a *Argument) describe(d *describer) { d.add("inputVar", a.Alias) }
func (a *Argument) clone() Args          { c := *a; return &c }
func (a *Argument) exprs() []expr.Expr   { return nil }

// Filter drops the rows for which Condition doesn't evaluate to true.
type Filter struct {
	Condition expr.Expr
	// If set, the filter must preserve the order of its input rows.
	NeedStableFilter bool
}

func (f *Filter) describe(d *describer) {
	d.addExpr("condition", f.Condition)
	d.add("isStable", strconv.FormatBool(f.NeedStableFilter))
}

func (f *Filter) clone() Args {
	return &Filter{Condition: cloneExpr(f.Condition), NeedStableFilter: f.NeedStableFilter}
}

func (f *Filter) exprs() []expr.Expr { return nonNil(f.Condition) }

// A YieldColumn is one output column of a Project or Aggregate.
type YieldColumn struct {
	Expr expr.Expr
	// If empty, the column is named after the expression's string form.
	Alias string
}

// Name returns the name of the column in the output.
func (c YieldColumn) Name() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Expr.String()
}

func (c YieldColumn) String() string {
	if c.Alias == "" {
		return c.Expr.String()
	}
	return c.Expr.String() + " AS " + c.Alias
}

// YieldColumnNames returns the output name of each column.
func YieldColumnNames(cols []YieldColumn) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return names
}

func cloneColumns(cols []YieldColumn) []YieldColumn {
	if cols == nil {
		return nil
	}
	res := make([]YieldColumn, len(cols))
	for i, c := range cols {
		res[i] = YieldColumn{Expr: cloneExpr(c.Expr), Alias: c.Alias}
	}
	return res
}

func columnsString(cols []YieldColumn) string {
	strs := make([]string, len(cols))
	for i, c := range cols {
		strs[i] = c.String()
	}
	return strings.Join(strs, ", ")
}

func columnExprs(cols []YieldColumn) []expr.Expr {
	res := make([]expr.Expr, 0, len(cols))
	for _, c := range cols {
		if c.Expr != nil {
			res = append(res, c.Expr)
		}
	}
	return res
}

// Project computes one output column per YieldColumn for each input row.
type Project struct {
	Columns []YieldColumn
}

func (p *Project) describe(d *describer) { d.add("columns", columnsString(p.Columns)) }
func (p *Project) clone() Args          { return &Project{Columns: cloneColumns(p.Columns)} }
func (p *Project) exprs() []expr.Expr   { return columnExprs(p.Columns) }

// Unwind expands a list into one row per element, named Alias.
type Unwind struct {
	Expr  expr.Expr
	Alias string
}

func (u *Unwind) describe(d *describer) {
	d.addExpr("unwind", u.Expr)
	d.add("alias", u.Alias)
}

func (u *Unwind) clone() Args        { return &Unwind{Expr: cloneExpr(u.Expr), Alias: u.Alias} }
func (u *Unwind) exprs() []expr.Expr { return nonNil(u.Expr) }

// Aggregate groups rows by GroupKeys and computes GroupItems for each group.
type Aggregate struct {
	GroupKeys  []expr.Expr
	GroupItems []YieldColumn
}

func (a *Aggregate) describe(d *describer) {
	d.add("groupKey", exprsString(a.GroupKeys))
	d.add("groupItems", columnsString(a.GroupItems))
}

func (a *Aggregate) clone() Args {
	return &Aggregate{GroupKeys: cloneExprs(a.GroupKeys), GroupItems: cloneColumns(a.GroupItems)}
}

func (a *Aggregate) exprs() []expr.Expr {
	return append(append([]expr.Expr(nil), a.GroupKeys...), columnExprs(a.GroupItems)...)
}

// A SortFactor orders rows by one input column.
type SortFactor struct {
	Column string
	Desc   bool
}

func (f SortFactor) String() string {
	if f.Desc {
		return f.Column + " DESC"
	}
	return f.Column + " ASC"
}

func factorsString(factors []SortFactor) string {
	strs := make([]string, len(factors))
	for i, f := range factors {
		strs[i] = f.String()
	}
	return strings.Join(strs, ", ")
}

// Sort orders all of its input rows.
type Sort struct {
	Factors []SortFactor
}

func (s *Sort) describe(d *describer) { d.add("factors", factorsString(s.Factors)) }
func (s *Sort) clone() Args {
	return &Sort{Factors: append([]SortFactor(nil), s.Factors...)}
}
func (s *Sort) exprs() []expr.Expr { return factorExprs(s.Factors) }

// TopN is a Sort followed by a Limit, which can be computed without sorting
// every row.
type TopN struct {
	Factors []SortFactor
	Offset  int64
	Count   int64
}

func (t *TopN) describe(d *describer) {
	d.add("factors", factorsString(t.Factors))
	d.add("offset", strconv.FormatInt(t.Offset, 10))
	d.add("count", strconv.FormatInt(t.Count, 10))
}

func (t *TopN) clone() Args {
	return &TopN{Factors: append([]SortFactor(nil), t.Factors...), Offset: t.Offset, Count: t.Count}
}

func (t *TopN) exprs() []expr.Expr { return factorExprs(t.Factors) }

// factorExprs returns input column references for the sort columns, so that
// they take part in property tracking like any other expression.
func factorExprs(factors []SortFactor) []expr.Expr {
	res := make([]expr.Expr, len(factors))
	for i, f := range factors {
		res[i] = &expr.InputProperty{Prop: f.Column}
	}
	return res
}

// Limit skips Offset rows then emits at most Count rows. A negative Count
// means no limit.
type Limit struct {
	Offset int64
	Count  int64
}

func (l *Limit) describe(d *describer) {
	d.add("offset", strconv.FormatInt(l.Offset, 10))
	d.add("count", strconv.FormatInt(l.Count, 10))
}

func (l *Limit) clone() Args        { c := *l; return &c }
func (l *Limit) exprs() []expr.Expr { return nil }

// Sample emits Count randomly chosen rows.
type Sample struct {
	Count int64
}

func (s *Sample) describe(d *describer) { d.add("count", strconv.FormatInt(s.Count, 10)) }
func (s *Sample) clone() Args          { c := *s; return &c }
func (s *Sample) exprs() []expr.Expr   { return nil }

// CollectKind is the way a DataCollect combines its inputs.
type CollectKind uint8

// CollectKind values.
const (
	CollectSubgraph CollectKind = iota + 1
	CollectRowBasedMove
	CollectMToN
	CollectBFSShortest
	CollectAllPaths
	CollectMultiplePairShortest
	CollectPathProp
)

var collectKindNames = map[CollectKind]string{
	CollectSubgraph:             "SUBGRAPH",
	CollectRowBasedMove:         "ROW",
	CollectMToN:                 "M TO N",
	CollectBFSShortest:          "BFS SHORTEST",
	CollectAllPaths:             "ALL PATHS",
	CollectMultiplePairShortest: "MULTIPLE PAIR SHORTEST",
	CollectPathProp:             "PATH PROP",
}

func (k CollectKind) String() string {
	if name, ok := collectKindNames[k]; ok {
		return name
	}
	return "CollectKind(" + strconv.Itoa(int(k)) + ")"
}

// DataCollect combines the results of its inputs into a single dataset.
type DataCollect struct {
	Kind     CollectKind
	Distinct bool
}

func (c *DataCollect) describe(d *describer) {
	d.add("kind", c.Kind.String())
	d.add("distinct", strconv.FormatBool(c.Distinct))
}

func (c *DataCollect) clone() Args        { cp := *c; return &cp }
func (c *DataCollect) exprs() []expr.Expr { return nil }

// Join is the payload of the inner, left and hash join kinds. LeftKeys[i] is
// compared with RightKeys[i].
type Join struct {
	LeftKeys  []expr.Expr
	RightKeys []expr.Expr
}

func (j *Join) describe(d *describer) {
	d.add("hashKeys", exprsString(j.LeftKeys))
	d.add("probeKeys", exprsString(j.RightKeys))
}

func (j *Join) clone() Args {
	return &Join{LeftKeys: cloneExprs(j.LeftKeys), RightKeys: cloneExprs(j.RightKeys)}
}

func (j *Join) exprs() []expr.Expr {
	return append(append([]expr.Expr(nil), j.LeftKeys...), j.RightKeys...)
}

// Apply is the payload of RollUpApply and PatternApply: the right input is
// evaluated for each left row, matched on CompareCols.
type Apply struct {
	CompareCols []expr.Expr
	// For RollUpApply, the column collected into a list.
	Collect expr.Expr
	// For PatternApply, keep the rows that don't match.
	AntiPredicate bool
}

func (a *Apply) describe(d *describer) {
	d.add("compareCols", exprsString(a.CompareCols))
	d.addExpr("collectCol", a.Collect)
	if a.AntiPredicate {
		d.add("anti", "true")
	}
}

func (a *Apply) clone() Args {
	return &Apply{CompareCols: cloneExprs(a.CompareCols), Collect: cloneExpr(a.Collect), AntiPredicate: a.AntiPredicate}
}

func (a *Apply) exprs() []expr.Expr { return append(nonNil(a.Collect), a.CompareCols...) }

// An Assignment sets a variable to the value of an expression.
type Assignment struct {
	Var   string
	Value expr.Expr
}

// Assign evaluates each assignment once.
type Assign struct {
	Items []Assignment
}

func (a *Assign) describe(d *describer) {
	strs := make([]string, len(a.Items))
	for i, item := range a.Items {
		strs[i] = item.Var + " = " + item.Value.String()
	}
	d.add("items", strings.Join(strs, ", "))
}

func (a *Assign) clone() Args {
	items := make([]Assignment, len(a.Items))
	for i, item := range a.Items {
		items[i] = Assignment{Var: item.Var, Value: cloneExpr(item.Value)}
	}
	return &Assign{Items: items}
}

func (a *Assign) exprs() []expr.Expr {
	res := make([]expr.Expr, 0, len(a.Items))
	for _, item := range a.Items {
		res = append(res, item.Value)
	}
	return res
}

// Select runs the If branch when Condition is true and the Else branch
// otherwise. The branches are the roots of sub-plans that are not
// dependencies of the Select.
type Select struct {
	If        NodeID
	Else      NodeID
	Condition expr.Expr
}

func (s *Select) describe(d *describer) {
	d.addExpr("condition", s.Condition)
	if d.withIDs {
		d.add("thenBody", strconv.FormatInt(int64(s.If), 10))
		d.add("elseBody", strconv.FormatInt(int64(s.Else), 10))
	}
}

func (s *Select) clone() Args {
	return &Select{If: s.If, Else: s.Else, Condition: cloneExpr(s.Condition)}
}

func (s *Select) exprs() []expr.Expr { return nonNil(s.Condition) }

// Loop runs Body while Condition is true. Body is the root of a sub-plan that
// isn't a dependency of the Loop.
type Loop struct {
	Body      NodeID
	Condition expr.Expr
}

func (l *Loop) describe(d *describer) {
	d.addExpr("condition", l.Condition)
	if d.withIDs {
		d.add("loopBody", strconv.FormatInt(int64(l.Body), 10))
	}
}

func (l *Loop) clone() Args {
	return &Loop{Body: l.Body, Condition: cloneExpr(l.Condition)}
}

func (l *Loop) exprs() []expr.Expr { return nonNil(l.Condition) }

func cloneExpr(e expr.Expr) expr.Expr {
	if e == nil {
		return nil
	}
	return e.Clone()
}

func cloneExprs(in []expr.Expr) []expr.Expr {
	if in == nil {
		return nil
	}
	res := make([]expr.Expr, len(in))
	for i, e := range in {
		res[i] = cloneExpr(e)
	}
	return res
}

func exprsString(in []expr.Expr) string {
	strs := make([]string, len(in))
	for i, e := range in {
		strs[i] = e.String()
	}
	return strings.Join(strs, ", ")
}

func nonNil(exprs ...expr.Expr) []expr.Expr {
	var res []expr.Expr
	for _, e := range exprs {
		if e != nil {
			res = append(res, e)
		}
	}
	return res
}
