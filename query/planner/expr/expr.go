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

// Package expr defines the expression trees carried by plan nodes: filter
// predicates, projected columns, aggregation keys and storage-side filters.
// The optimizer only needs a narrow capability from expressions: deep copies,
// a stable textual form, a walk over the tree, and the list of vertex/edge
// properties an expression refers to.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ebay/graphopt/util/cmp"
)

// An Expr is a node in an expression tree. Expressions are treated as values:
// rules that want to change one build a new tree (see Rewrite) rather than
// mutate it in place, as a single expression may be shared by alternatives in
// the search space.
type Expr interface {
	// String returns a single-line human-readable form that Parse accepts.
	String() string
	// Key writes the identity of the expression. Two expressions with equal
	// keys are interchangeable.
	Key(*strings.Builder)
	// Clone returns a deep copy.
	Clone() Expr
	// Children returns the direct sub-expressions, if any.
	Children() []Expr
	anExpr()
}

// ImplementExpr is a list of types that implement Expr.
// This serves as documentation and as a compile-time check.
var ImplementExpr = []Expr{
	new(Constant),
	new(Label),
	new(LabelAttribute),
	new(LabelTagProperty),
	new(InputProperty),
	new(VariableProperty),
	new(Relational),
	new(Logical),
	new(Unary),
	new(Arithmetic),
	new(FunctionCall),
	new(Aggregate),
}

// Constant is a literal value. Value is one of nil, bool, int64, float64 or
// string.
type Constant struct {
	Value interface{}
}

func (*Constant) anExpr() {}

func (c *Constant) String() string {
	switch v := c.Value.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case string:
		return strconv.Quote(v)
	}
	return fmt.Sprintf("%v", c.Value)
}

// Key implements cmp.Key.
func (c *Constant) Key(b *strings.Builder) { b.WriteString(c.String()) }

// Clone implements Expr.
func (c *Constant) Clone() Expr { return &Constant{Value: c.Value} }

// Children implements Expr.
func (c *Constant) Children() []Expr { return nil }

// Label is a bare reference to a named column or alias, like "v". When the
// alias names a vertex or an edge, it refers to the entire object, and so to
// all of its properties.
type Label struct {
	Name string
}

func (*Label) anExpr() {}

func (l *Label) String() string { return l.Name }

// Key implements cmp.Key.
func (l *Label) Key(b *strings.Builder) { b.WriteString(l.Name) }

// Clone implements Expr.
func (l *Label) Clone() Expr { return &Label{Name: l.Name} }

// Children implements Expr.
func (l *Label) Children() []Expr { return nil }

// LabelAttribute is a property of an alias without a tag or type qualifier,
// like "e.likeness". For edges this names a property on whichever edge type
// the alias is bound to.
type LabelAttribute struct {
	Label string
	Attr  string
}

func (*LabelAttribute) anExpr() {}

func (a *LabelAttribute) String() string { return a.Label + "." + a.Attr }

// Key implements cmp.Key.
func (a *LabelAttribute) Key(b *strings.Builder) { b.WriteString(a.String()) }

// Clone implements Expr.
func (a *LabelAttribute) Clone() Expr { return &LabelAttribute{Label: a.Label, Attr: a.Attr} }

// Children implements Expr.
func (a *LabelAttribute) Children() []Expr { return nil }

// LabelTagProperty is a tag-qualified vertex property, like "v.player.age".
type LabelTagProperty struct {
	Label string
	Tag   string
	Prop  string
}

func (*LabelTagProperty) anExpr() {}

func (p *LabelTagProperty) String() string {
	return p.Label + "." + p.Tag + "." + p.Prop
}

// Key implements cmp.Key.
func (p *LabelTagProperty) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Clone implements Expr.
func (p *LabelTagProperty) Clone() Expr {
	return &LabelTagProperty{Label: p.Label, Tag: p.Tag, Prop: p.Prop}
}

// Children implements Expr.
func (p *LabelTagProperty) Children() []Expr { return nil }

// InputProperty is a column of the operator's input, like "$-.name".
type InputProperty struct {
	Prop string
}

func (*InputProperty) anExpr() {}

func (p *InputProperty) String() string { return "$-." + p.Prop }

// Key implements cmp.Key.
func (p *InputProperty) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Clone implements Expr.
func (p *InputProperty) Clone() Expr { return &InputProperty{Prop: p.Prop} }

// Children implements Expr.
func (p *InputProperty) Children() []Expr { return nil }

// VariableProperty is a column of a named variable, like "$var.name".
type VariableProperty struct {
	Var  string
	Prop string
}

func (*VariableProperty) anExpr() {}

func (p *VariableProperty) String() string { return "$" + p.Var + "." + p.Prop }

// Key implements cmp.Key.
func (p *VariableProperty) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Clone implements Expr.
func (p *VariableProperty) Clone() Expr { return &VariableProperty{Var: p.Var, Prop: p.Prop} }

// Children implements Expr.
func (p *VariableProperty) Children() []Expr { return nil }

// Relational compares two values.
type Relational struct {
	Op    string // one of == != < <= > >=
	Left  Expr
	Right Expr
}

func (*Relational) anExpr() {}

func (r *Relational) String() string {
	return "(" + r.Left.String() + " " + r.Op + " " + r.Right.String() + ")"
}

// Key implements cmp.Key.
func (r *Relational) Key(b *strings.Builder) {
	b.WriteByte('(')
	r.Left.Key(b)
	b.WriteByte(' ')
	b.WriteString(r.Op)
	b.WriteByte(' ')
	r.Right.Key(b)
	b.WriteByte(')')
}

// Clone implements Expr.
func (r *Relational) Clone() Expr {
	return &Relational{Op: r.Op, Left: r.Left.Clone(), Right: r.Right.Clone()}
}

// Children implements Expr.
func (r *Relational) Children() []Expr { return []Expr{r.Left, r.Right} }

// Logical is an AND or OR over two or more operands.
type Logical struct {
	Op       string // AND or OR
	Operands []Expr
}

func (*Logical) anExpr() {}

func (l *Logical) String() string {
	var b strings.Builder
	l.Key(&b)
	return b.String()
}

// Key implements cmp.Key.
func (l *Logical) Key(b *strings.Builder) {
	b.WriteByte('(')
	cmp.JoinKeys(b, " "+l.Op+" ", keys(l.Operands)...)
	b.WriteByte(')')
}

// Clone implements Expr.
func (l *Logical) Clone() Expr {
	return &Logical{Op: l.Op, Operands: cloneAll(l.Operands)}
}

func keys(exprs []Expr) []cmp.Key {
	res := make([]cmp.Key, len(exprs))
	for i, e := range exprs {
		res[i] = e
	}
	return res
}

// Children implements Expr.
func (l *Logical) Children() []Expr { return l.Operands }

// Unary is NOT or arithmetic negation.
type Unary struct {
	Op      string // NOT or -
	Operand Expr
}

func (*Unary) anExpr() {}

func (u *Unary) String() string {
	if u.Op == "-" {
		return "-(" + u.Operand.String() + ")"
	}
	return "(" + u.Op + " " + u.Operand.String() + ")"
}

// Key implements cmp.Key.
func (u *Unary) Key(b *strings.Builder) { b.WriteString(u.String()) }

// Clone implements Expr.
func (u *Unary) Clone() Expr { return &Unary{Op: u.Op, Operand: u.Operand.Clone()} }

// Children implements Expr.
func (u *Unary) Children() []Expr { return []Expr{u.Operand} }

// Arithmetic is a binary arithmetic operation.
type Arithmetic struct {
	Op    string // one of + - * / %
	Left  Expr
	Right Expr
}

func (*Arithmetic) anExpr() {}

func (a *Arithmetic) String() string {
	return "(" + a.Left.String() + " " + a.Op + " " + a.Right.String() + ")"
}

// Key implements cmp.Key.
func (a *Arithmetic) Key(b *strings.Builder) { b.WriteString(a.String()) }

// Clone implements Expr.
func (a *Arithmetic) Clone() Expr {
	return &Arithmetic{Op: a.Op, Left: a.Left.Clone(), Right: a.Right.Clone()}
}

// Children implements Expr.
func (a *Arithmetic) Children() []Expr { return []Expr{a.Left, a.Right} }

// FunctionCall is a call to a scalar function, like "id(v)".
type FunctionCall struct {
	Name string
	Args []Expr
}

func (*FunctionCall) anExpr() {}

func (f *FunctionCall) String() string {
	var b strings.Builder
	f.Key(&b)
	return b.String()
}

// Key implements cmp.Key.
func (f *FunctionCall) Key(b *strings.Builder) {
	b.WriteString(f.Name)
	b.WriteByte('(')
	cmp.JoinKeys(b, ", ", keys(f.Args)...)
	b.WriteByte(')')
}

// Clone implements Expr.
func (f *FunctionCall) Clone() Expr {
	return &FunctionCall{Name: f.Name, Args: cloneAll(f.Args)}
}

// Children implements Expr.
func (f *FunctionCall) Children() []Expr { return f.Args }

// Aggregate is an aggregation function over its argument, like "count(*)" or
// "sum(v.player.age)". A nil Arg stands for "*".
type Aggregate struct {
	Func     string
	Arg      Expr
	Distinct bool
}

func (*Aggregate) anExpr() {}

func (a *Aggregate) String() string {
	var b strings.Builder
	a.Key(&b)
	return b.String()
}

// Key implements cmp.Key.
func (a *Aggregate) Key(b *strings.Builder) {
	b.WriteString(a.Func)
	b.WriteByte('(')
	if a.Distinct {
		b.WriteString("DISTINCT ")
	}
	if a.Arg == nil {
		b.WriteByte('*')
	} else {
		a.Arg.Key(b)
	}
	b.WriteByte(')')
}

// Clone implements Expr.
func (a *Aggregate) Clone() Expr {
	c := &Aggregate{Func: a.Func, Distinct: a.Distinct}
	if a.Arg != nil {
		c.Arg = a.Arg.Clone()
	}
	return c
}

// Children implements Expr.
func (a *Aggregate) Children() []Expr {
	if a.Arg == nil {
		return nil
	}
	return []Expr{a.Arg}
}

func cloneAll(in []Expr) []Expr {
	if in == nil {
		return nil
	}
	out := make([]Expr, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
