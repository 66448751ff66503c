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
	"fmt"
	"strings"

	p "github.com/vektah/goparsify"
)

// expression is the root parser used by Parse. It's built in init because the
// grammar is recursive (parenthesized sub-expressions and NOT).
var expression p.Parser

// aggregateFuncs are the function names that build Aggregate expressions
// rather than FunctionCall expressions.
var aggregateFuncs = map[string]bool{
	"count":   true,
	"sum":     true,
	"avg":     true,
	"min":     true,
	"max":     true,
	"collect": true,
}

// Parse parses the expression language used in plan definitions and tests.
// It supports constants, labels ("v"), attributes ("e.p"), tag properties
// ("v.tag.p"), input and variable columns ("$-.c", "$var.c"), function calls,
// aggregates ("count(*)", "sum(x)"), arithmetic, comparisons, NOT, AND and OR.
func Parse(in string) (Expr, error) {
	res, err := p.Run(expression, in)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %v", in, err)
	}
	e, ok := res.(Expr)
	if !ok {
		return nil, fmt.Errorf("invalid expression %q: parsed to %T", in, res)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. It's intended for tests and
// static rule definitions.
func MustParse(in string) Expr {
	e, err := Parse(in)
	if err != nil {
		panic(err)
	}
	return e
}

// binaryTail is the result of one "op operand" repetition.
type binaryTail struct {
	op      string
	operand Expr
}

func init() {
	var unary p.Parser

	ident := p.Chars("A-Za-z0-9_", 1)

	number := p.NumberLit().Map(func(n *p.Result) {
		switch v := n.Result.(type) {
		case int64:
			n.Result = &Constant{Value: v}
		case float64:
			n.Result = &Constant{Value: v}
		}
	})
	str := p.StringLit(`"'`).Map(func(n *p.Result) {
		n.Result = &Constant{Value: n.Token}
	})
	inputProp := p.Seq("$-.", ident).Map(func(n *p.Result) {
		n.Result = &InputProperty{Prop: n.Child[1].Token}
	})
	varProp := p.Seq("$", ident, ".", ident).Map(func(n *p.Result) {
		n.Result = &VariableProperty{Var: n.Child[1].Token, Prop: n.Child[3].Token}
	})
	path := p.Seq(ident, repeatZeroOrMore(p.Seq(".", ident))).Map(func(n *p.Result) {
		parts := []string{n.Child[0].Token}
		for _, c := range n.Child[1].Child {
			parts = append(parts, c.Child[1].Token)
		}
		n.Result = pathExpr(parts)
	})
	star := p.Exact("*").Map(func(n *p.Result) {
		n.Result = nil
	})
	args := repeatZeroOrMore(&expression, ",")
	call := p.Seq(ident, "(", p.Maybe(ignoreCase("DISTINCT ")), p.Any(star, args), ")").Map(func(n *p.Result) {
		name := n.Child[0].Token
		distinct := n.Child[2].Token != ""
		var in []Expr
		if n.Child[3].Token != "*" {
			for _, c := range n.Child[3].Child {
				in = append(in, c.Result.(Expr))
			}
		}
		if aggregateFuncs[strings.ToLower(name)] {
			agg := &Aggregate{Func: strings.ToLower(name), Distinct: distinct}
			if len(in) > 0 {
				agg.Arg = in[0]
			}
			n.Result = agg
			return
		}
		n.Result = &FunctionCall{Name: name, Args: in}
	})
	paren := p.Seq("(", &expression, ")").Map(func(n *p.Result) {
		n.Result = n.Child[1].Result
	})
	primary := p.Any(call, inputProp, varProp, number, str, path, paren)

	negate := p.Seq("-", &unary).Map(func(n *p.Result) {
		n.Result = &Unary{Op: "-", Operand: n.Child[1].Result.(Expr)}
	})
	not := p.Seq(ignoreCase("NOT "), &unary).Map(func(n *p.Result) {
		n.Result = &Unary{Op: "NOT", Operand: n.Child[1].Result.(Expr)}
	})
	unary = p.Any(not, negate, primary)

	product := binaryLevel(unary, p.Any("*", "/", "%"), arithmetic)
	sum := binaryLevel(product, p.Any("+", "-"), arithmetic)

	relOp := p.Any("==", "!=", "<=", ">=", "<", ">")
	relTail := p.Seq(relOp, sum).Map(func(n *p.Result) {
		n.Result = binaryTail{op: n.Child[0].Token, operand: n.Child[1].Result.(Expr)}
	})
	relational := p.Seq(sum, p.Maybe(relTail)).Map(func(n *p.Result) {
		left := n.Child[0].Result.(Expr)
		tail, ok := n.Child[1].Result.(binaryTail)
		if !ok {
			n.Result = left
			return
		}
		n.Result = &Relational{Op: tail.op, Left: left, Right: tail.operand}
	})
	and := logicalLevel(relational, "AND")
	or := logicalLevel(and, "OR")
	expression = or
}

// pathExpr builds the expression for a dotted path of identifiers.
func pathExpr(parts []string) Expr {
	switch len(parts) {
	case 1:
		switch strings.ToLower(parts[0]) {
		case "true":
			return &Constant{Value: true}
		case "false":
			return &Constant{Value: false}
		case "null":
			return &Constant{Value: nil}
		}
		return &Label{Name: parts[0]}
	case 2:
		return &LabelAttribute{Label: parts[0], Attr: parts[1]}
	}
	return &LabelTagProperty{Label: parts[0], Tag: parts[1], Prop: strings.Join(parts[2:], ".")}
}

func arithmetic(op string, left, right Expr) Expr {
	return &Arithmetic{Op: op, Left: left, Right: right}
}

// binaryLevel returns a parser for a left-associative chain of 'operand'
// separated by 'op'.
func binaryLevel(operand p.Parserish, op p.Parserish, build func(op string, l, r Expr) Expr) p.Parser {
	tail := p.Seq(op, operand).Map(func(n *p.Result) {
		n.Result = binaryTail{op: n.Child[0].Token, operand: n.Child[1].Result.(Expr)}
	})
	return p.Seq(operand, repeatZeroOrMore(tail)).Map(func(n *p.Result) {
		res := n.Child[0].Result.(Expr)
		for _, c := range n.Child[1].Child {
			t := c.Result.(binaryTail)
			res = build(t.op, res, t.operand)
		}
		n.Result = res
	})
}

// logicalLevel returns a parser for a chain of 'operand' separated by the
// keyword, producing a single Logical with all of them as operands.
func logicalLevel(operand p.Parserish, keyword string) p.Parser {
	tail := p.Seq(ignoreCase(keyword+" "), operand).Map(func(n *p.Result) {
		n.Result = n.Child[1].Result
	})
	return p.Seq(operand, repeatZeroOrMore(tail)).Map(func(n *p.Result) {
		first := n.Child[0].Result.(Expr)
		if len(n.Child[1].Child) == 0 {
			n.Result = first
			return
		}
		ops := []Expr{first}
		for _, c := range n.Child[1].Child {
			ops = append(ops, c.Result.(Expr))
		}
		n.Result = &Logical{Op: keyword, Operands: ops}
	})
}

// repeatZeroOrMore matches zero or more parsers and returns the value as
// .Child[n]. An optional separator can be provided and that value will be
// consumed but not returned.
func repeatZeroOrMore(parser p.Parserish, sep ...p.Parserish) p.Parser {
	return p.Some(parser, sep...)
}

// ignoreCase returns a parser that matches the supplied string exactly ignoring
// case.
func ignoreCase(match string) p.Parser {
	lenMatch := len(match)
	return p.NewParser("i/"+match+"/", func(s *p.State, r *p.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) < lenMatch || !strings.EqualFold(match, in[:lenMatch]) {
			s.ErrorHere(match)
			return
		}
		s.Advance(lenMatch)
		r.Token = in[:lenMatch]
	})
}
