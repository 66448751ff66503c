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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse(t *testing.T) {
	tests := []struct {
		in  string
		exp string
	}{
		{"v", "v"},
		{"e.likeness", "e.likeness"},
		{"v.tag1.p1 > 3", "(v.tag1.p1 > 3)"},
		{"$-.name == 'bob'", `($-.name == "bob")`},
		{"$var.name != \"x\"", `($var.name != "x")`},
		{"a < 1 AND b >= 2.5", "((a < 1) AND (b >= 2.5))"},
		{"a OR b AND c", "(a OR (b AND c))"},
		{"(a OR b) AND c", "((a OR b) AND c)"},
		{"NOT a", "(NOT a)"},
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"id(v)", "id(v)"},
		{"concat(a, b, 'c')", `concat(a, b, "c")`},
		{"count(*)", "count(*)"},
		{"COUNT(DISTINCT v.t.p)", "count(DISTINCT v.t.p)"},
		{"true", "true"},
		{"null", "NULL"},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			e, err := Parse(test.in)
			require.NoError(t, err)
			assert.Equal(t, test.exp, e.String())
			// The string form must parse back to the same expression.
			again, err := Parse(e.String())
			require.NoError(t, err)
			assert.True(t, Equal(e, again), "%v != %v", e, again)
		})
	}
}

func Test_ParseErrors(t *testing.T) {
	for _, in := range []string{"", "a >", "(a", "a b"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
	assert.Panics(t, func() { MustParse(">") })
}

func Test_Clone(t *testing.T) {
	e := MustParse("v.tag1.p1 > 3 AND sum(e.w) < 10")
	c := e.Clone()
	assert.True(t, Equal(e, c))
	c.(*Logical).Operands[0].(*Relational).Op = "<"
	assert.Equal(t, "((v.tag1.p1 > 3) AND (sum(e.w) < 10))", e.String())
}

func Test_PropertyRefs(t *testing.T) {
	e := MustParse("v.tag1.p1 > 3 AND e.w < $-.x AND id(n) == $var.c AND m")
	var refs []string
	for _, r := range PropertyRefs(e) {
		refs = append(refs, r.String())
	}
	assert.Equal(t, []string{
		"tagProp:v.tag1.p1",
		"attribute:e.w",
		"inputCol:x",
		"varCol:var.c",
		"label:m",
	}, refs)
}

func Test_Rewrite(t *testing.T) {
	e := MustParse("$-.a > 3 AND $-.b == 1")
	out := Rewrite(e, func(e Expr) (Expr, bool) {
		if in, ok := e.(*InputProperty); ok && in.Prop == "a" {
			return MustParse("v.t.a"), true
		}
		return nil, false
	})
	assert.Equal(t, "((v.t.a > 3) AND ($-.b == 1))", out.String())
	assert.Equal(t, "(($-.a > 3) AND ($-.b == 1))", e.String())
}

func Test_AndSplitAnd(t *testing.T) {
	a := MustParse("a > 1")
	b := MustParse("b > 2 AND c > 3")
	assert.Nil(t, And())
	assert.Equal(t, a, And(a))
	combined := And(a, b)
	assert.Equal(t, "((a > 1) AND (b > 2) AND (c > 3))", combined.String())
	assert.Len(t, SplitAnd(combined), 3)
	assert.Len(t, SplitAnd(MustParse("a OR b")), 1)
}

func Test_Helpers(t *testing.T) {
	assert.True(t, IsTrue(MustParse("true")))
	assert.False(t, IsTrue(MustParse("false")))
	assert.False(t, IsTrue(MustParse("a")))
	assert.True(t, IsAggregate(MustParse("1 + count(*)")))
	assert.False(t, IsAggregate(MustParse("id(v)")))
	col, ok := ColumnRef(MustParse("$-.v"))
	assert.True(t, ok)
	assert.Equal(t, "v", col)
	_, ok = ColumnRef(MustParse("v.t.p"))
	assert.False(t, ok)
	assert.Equal(t, map[string]struct{}{"v": {}, "x": {}, "e": {}},
		Aliases(MustParse("v.t.p > $-.x OR e.w == 1")))
}
