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

package expr

import (
	"strings"

	"github.com/ebay/graphopt/util/cmp"
)

// Walk calls fn for every node of the tree in pre-order. If fn returns false,
// the children of that node are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, child := range e.Children() {
		Walk(child, fn)
	}
}

// Rewrite returns a copy of e where every node for which fn returns true has
// been replaced by the returned expression. Replacements are not descended
// into. The input tree is not modified.
func Rewrite(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if e == nil {
		return nil
	}
	if repl, ok := fn(e); ok {
		return repl
	}
	switch e := e.(type) {
	case *Relational:
		return &Relational{Op: e.Op, Left: Rewrite(e.Left, fn), Right: Rewrite(e.Right, fn)}
	case *Logical:
		ops := make([]Expr, len(e.Operands))
		for i := range e.Operands {
			ops[i] = Rewrite(e.Operands[i], fn)
		}
		return &Logical{Op: e.Op, Operands: ops}
	case *Unary:
		return &Unary{Op: e.Op, Operand: Rewrite(e.Operand, fn)}
	case *Arithmetic:
		return &Arithmetic{Op: e.Op, Left: Rewrite(e.Left, fn), Right: Rewrite(e.Right, fn)}
	case *FunctionCall:
		args := make([]Expr, len(e.Args))
		for i := range e.Args {
			args[i] = Rewrite(e.Args[i], fn)
		}
		return &FunctionCall{Name: e.Name, Args: args}
	case *Aggregate:
		return &Aggregate{Func: e.Func, Arg: Rewrite(e.Arg, fn), Distinct: e.Distinct}
	}
	return e.Clone()
}

// Equal returns true if a and b are structurally identical.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return cmp.GetKey(a) == cmp.GetKey(b)
}

// And combines the given expressions with AND, flattening nested ANDs. It
// returns nil for no input and the input itself for a single expression.
func And(exprs ...Expr) Expr {
	var ops []Expr
	for _, e := range exprs {
		ops = append(ops, SplitAnd(e)...)
	}
	switch len(ops) {
	case 0:
		return nil
	case 1:
		return ops[0]
	}
	return &Logical{Op: "AND", Operands: ops}
}

// SplitAnd returns the conjuncts of e. An expression that isn't an AND is its
// own single conjunct.
func SplitAnd(e Expr) []Expr {
	if e == nil {
		return nil
	}
	l, ok := e.(*Logical)
	if !ok || l.Op != "AND" {
		return []Expr{e}
	}
	var res []Expr
	for _, op := range l.Operands {
		res = append(res, SplitAnd(op)...)
	}
	return res
}

// IsTrue returns true if e is the constant true.
func IsTrue(e Expr) bool {
	c, ok := e.(*Constant)
	if !ok {
		return false
	}
	b, ok := c.Value.(bool)
	return ok && b
}

// IsAggregate returns true if e contains an aggregation function.
func IsAggregate(e Expr) bool {
	found := false
	Walk(e, func(e Expr) bool {
		if _, ok := e.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

// RefKind classifies a PropRef.
type RefKind int

// RefKind values.
const (
	// RefLabel refers to an entire alias ("v").
	RefLabel RefKind = iota + 1
	// RefTagProp refers to a tag-qualified vertex property ("v.tag.p").
	RefTagProp
	// RefAttribute refers to an unqualified property of an alias ("e.p").
	RefAttribute
	// RefInputCol refers to an input column ("$-.c").
	RefInputCol
	// RefVarCol refers to a column of a named variable ("$var.c").
	RefVarCol
)

func (k RefKind) String() string {
	switch k {
	case RefLabel:
		return "label"
	case RefTagProp:
		return "tagProp"
	case RefAttribute:
		return "attribute"
	case RefInputCol:
		return "inputCol"
	case RefVarCol:
		return "varCol"
	}
	return "unknown"
}

// A PropRef is one property reference found in an expression.
type PropRef struct {
	Kind RefKind
	// The alias, input column, or variable name.
	Alias string
	// The tag for RefTagProp; empty otherwise.
	Scope string
	// The property name; empty for RefLabel.
	Prop string
}

func (r PropRef) String() string {
	var b strings.Builder
	b.WriteString(r.Kind.String())
	b.WriteByte(':')
	b.WriteString(r.Alias)
	if r.Scope != "" {
		b.WriteByte('.')
		b.WriteString(r.Scope)
	}
	if r.Prop != "" {
		b.WriteByte('.')
		b.WriteString(r.Prop)
	}
	return b.String()
}

// identityFuncs only look at the identity of a vertex or edge, which is
// fetched regardless of the requested properties. A bare label passed to one
// of these doesn't need the object's properties.
var identityFuncs = map[string]bool{
	"id":   true,
	"src":  true,
	"dst":  true,
	"type": true,
	"rank": true,
	"tags": true,
}

// PropertyRefs enumerates the property references in e, in the order they
// appear. A label that only feeds an identity function (such as "id(v)") is
// not reported.
func PropertyRefs(e Expr) []PropRef {
	var refs []PropRef
	Walk(e, func(e Expr) bool {
		switch e := e.(type) {
		case *Label:
			refs = append(refs, PropRef{Kind: RefLabel, Alias: e.Name})
		case *LabelTagProperty:
			refs = append(refs, PropRef{Kind: RefTagProp, Alias: e.Label, Scope: e.Tag, Prop: e.Prop})
		case *LabelAttribute:
			refs = append(refs, PropRef{Kind: RefAttribute, Alias: e.Label, Prop: e.Attr})
		case *InputProperty:
			refs = append(refs, PropRef{Kind: RefInputCol, Alias: e.Prop})
		case *VariableProperty:
			refs = append(refs, PropRef{Kind: RefVarCol, Alias: e.Var, Prop: e.Prop})
		case *FunctionCall:
			if identityFuncs[strings.ToLower(e.Name)] && len(e.Args) == 1 {
				if _, isLabel := e.Args[0].(*Label); isLabel {
					return false
				}
			}
		}
		return true
	})
	return refs
}

// Aliases returns the set of aliases and input columns that e refers to in
// any way.
func Aliases(e Expr) map[string]struct{} {
	res := make(map[string]struct{})
	Walk(e, func(e Expr) bool {
		switch e := e.(type) {
		case *Label:
			res[e.Name] = struct{}{}
		case *LabelTagProperty:
			res[e.Label] = struct{}{}
		case *LabelAttribute:
			res[e.Label] = struct{}{}
		case *InputProperty:
			res[e.Prop] = struct{}{}
		}
		return true
	})
	return res
}

// ColumnRef returns the name of the column that e passes through unchanged,
// if e is a bare reference to one ("v" or "$-.v").
func ColumnRef(e Expr) (string, bool) {
	switch e := e.(type) {
	case *Label:
		return e.Name, true
	case *InputProperty:
		return e.Prop, true
	}
	return "", false
}
