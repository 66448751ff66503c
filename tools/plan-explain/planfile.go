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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ebay/graphopt/query/planner/expr"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/pkg/errors"
)

// planFile is the JSON form of a plan. Nodes must be listed after their
// dependencies and after the branches of Select and Loop nodes.
type planFile struct {
	Root   string     `json:"root"`
	Schema schemaFile `json:"schema"`
	Nodes  []nodeFile `json:"nodes"`
}

type nodeFile struct {
	Name string   `json:"name"`
	Kind string   `json:"kind"`
	Deps []string `json:"deps,omitempty"`
	Cols []string `json:"cols,omitempty"`
	Args argsFile `json:"args"`
}

// argsFile holds the arguments of every supported kind. Each kind reads only
// the fields it needs. Expressions are in their string form.
type argsFile struct {
	Condition   string               `json:"condition"`
	Stable      bool                 `json:"stable"`
	Columns     []columnFile         `json:"columns"`
	GroupKeys   []string             `json:"groupKeys"`
	Factors     []string             `json:"factors"`
	Offset      int64                `json:"offset"`
	Count       int64                `json:"count"`
	Collect     string               `json:"collect"`
	Distinct    bool                 `json:"distinct"`
	LeftKeys    []string             `json:"leftKeys"`
	RightKeys   []string             `json:"rightKeys"`
	Alias       string               `json:"alias"`
	Space       string               `json:"space"`
	Src         string               `json:"src"`
	Steps       string               `json:"steps"`
	EdgeTypes   []string             `json:"edgeTypes"`
	Direction   string               `json:"direction"`
	VertexProps []plandef.VertexProp `json:"vertexProps"`
	EdgeProps   []plandef.EdgeProp   `json:"edgeProps"`
	VFilter     string               `json:"vFilter"`
	EFilter     string               `json:"eFilter"`
	Filter      string               `json:"filter"`
	Dedup       bool                 `json:"dedup"`
	Limit       int64                `json:"limit"`
	If          string               `json:"if"`
	Else        string               `json:"else"`
	Body        string               `json:"body"`
}

type columnFile struct {
	Expr  string `json:"expr"`
	Alias string `json:"alias,omitempty"`
}

// schemaFile lists the properties of each tag and edge type. It's used for
// fetchers that request every property.
type schemaFile struct {
	Tags  map[string][]string `json:"tags"`
	Edges map[string][]string `json:"edges"`
}

func (s *schemaFile) TagProps(space, tag string) ([]string, error) {
	props, ok := s.Tags[tag]
	if !ok {
		return nil, fmt.Errorf("tag %q not found in space %v", tag, space)
	}
	return props, nil
}

func (s *schemaFile) EdgeProps(space, edgeType string) ([]string, error) {
	props, ok := s.Edges[edgeType]
	if !ok {
		return nil, fmt.Errorf("edge type %q not found in space %v", edgeType, space)
	}
	return props, nil
}

// loadedPlan is a plan file turned into a graph.
type loadedPlan struct {
	graph  *plandef.Graph
	root   plandef.NodeID
	schema *schemaFile
}

// readPlan decodes a plan file and builds its graph.
func readPlan(r io.Reader) (*loadedPlan, error) {
	var file planFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "unable to decode plan")
	}
	return file.build()
}

func (f *planFile) build() (*loadedPlan, error) {
	if len(f.Nodes) == 0 {
		return nil, errors.New("plan has no nodes")
	}
	g := plandef.NewGraph(nil)
	ids := make(map[string]plandef.NodeID, len(f.Nodes))
	b := builder{ids: ids}
	for i := range f.Nodes {
		nf := &f.Nodes[i]
		if nf.Name == "" {
			return nil, fmt.Errorf("node %d has no name", i)
		}
		if _, dup := ids[nf.Name]; dup {
			return nil, fmt.Errorf("node name %q is used more than once", nf.Name)
		}
		kind, ok := plandef.KindByName(nf.Kind)
		if !ok {
			return nil, fmt.Errorf("node %v: unknown kind %q", nf.Name, nf.Kind)
		}
		deps := make([]plandef.NodeID, len(nf.Deps))
		for j, name := range nf.Deps {
			if deps[j], ok = ids[name]; !ok {
				return nil, fmt.Errorf("node %v: unknown dependency %q", nf.Name, name)
			}
		}
		args, err := b.args(kind, &nf.Args)
		if err != nil {
			return nil, errors.Wrapf(err, "node %v", nf.Name)
		}
		n, err := g.NewNode(kind, args, deps...)
		if err != nil {
			return nil, errors.Wrapf(err, "node %v", nf.Name)
		}
		if err := g.SetColNames(n.ID, nf.Cols); err != nil {
			return nil, err
		}
		ids[nf.Name] = n.ID
	}
	root := f.Root
	if root == "" {
		root = f.Nodes[len(f.Nodes)-1].Name
	}
	rootID, ok := ids[root]
	if !ok {
		return nil, fmt.Errorf("unknown root node %q", root)
	}
	return &loadedPlan{graph: g, root: rootID, schema: &f.Schema}, nil
}

// builder turns argsFile values into node arguments. It records the first
// expression parse error.
type builder struct {
	ids map[string]plandef.NodeID
	err error
}

func (b *builder) expr(in string) expr.Expr {
	if in == "" || b.err != nil {
		return nil
	}
	e, err := expr.Parse(in)
	if err != nil {
		b.err = err
	}
	return e
}

func (b *builder) exprs(in []string) []expr.Expr {
	res := make([]expr.Expr, 0, len(in))
	for _, s := range in {
		if e := b.expr(s); e != nil {
			res = append(res, e)
		}
	}
	return res
}

func (b *builder) columns(in []columnFile) []plandef.YieldColumn {
	res := make([]plandef.YieldColumn, len(in))
	for i, c := range in {
		res[i] = plandef.YieldColumn{Expr: b.expr(c.Expr), Alias: c.Alias}
		if res[i].Expr == nil && b.err == nil {
			b.err = fmt.Errorf("column %d has no expression", i)
		}
	}
	return res
}

func (b *builder) node(name string) plandef.NodeID {
	if name == "" || b.err != nil {
		return 0
	}
	id, ok := b.ids[name]
	if !ok {
		b.err = fmt.Errorf("unknown branch node %q", name)
	}
	return id
}

func (b *builder) args(kind plandef.Kind, a *argsFile) (plandef.Args, error) {
	var res plandef.Args
	switch kind {
	case plandef.KindStart, plandef.KindPassThrough, plandef.KindDedup,
		plandef.KindUnion, plandef.KindIntersect, plandef.KindMinus,
		plandef.KindCrossJoin:
		return nil, nil
	case plandef.KindArgument:
		res = &plandef.Argument{Alias: a.Alias}
	case plandef.KindFilter:
		res = &plandef.Filter{Condition: b.expr(a.Condition), NeedStableFilter: a.Stable}
	case plandef.KindProject:
		res = &plandef.Project{Columns: b.columns(a.Columns)}
	case plandef.KindAggregate:
		res = &plandef.Aggregate{GroupKeys: b.exprs(a.GroupKeys), GroupItems: b.columns(a.Columns)}
	case plandef.KindSort:
		factors, err := parseFactors(a.Factors)
		if err != nil {
			return nil, err
		}
		res = &plandef.Sort{Factors: factors}
	case plandef.KindTopN:
		factors, err := parseFactors(a.Factors)
		if err != nil {
			return nil, err
		}
		res = &plandef.TopN{Factors: factors, Offset: a.Offset, Count: a.Count}
	case plandef.KindLimit:
		res = &plandef.Limit{Offset: a.Offset, Count: a.Count}
	case plandef.KindSample:
		res = &plandef.Sample{Count: a.Count}
	case plandef.KindDataCollect:
		ck, err := parseCollectKind(a.Collect)
		if err != nil {
			return nil, err
		}
		res = &plandef.DataCollect{Kind: ck, Distinct: a.Distinct}
	case plandef.KindInnerJoin, plandef.KindLeftJoin,
		plandef.KindHashInnerJoin, plandef.KindHashLeftJoin:
		res = &plandef.Join{LeftKeys: b.exprs(a.LeftKeys), RightKeys: b.exprs(a.RightKeys)}
	case plandef.KindSelect:
		res = &plandef.Select{If: b.node(a.If), Else: b.node(a.Else), Condition: b.expr(a.Condition)}
	case plandef.KindLoop:
		res = &plandef.Loop{Body: b.node(a.Body), Condition: b.expr(a.Condition)}
	case plandef.KindTraverse:
		steps, err := parseSteps(a.Steps)
		if err != nil {
			return nil, err
		}
		dir, err := parseDirection(a.Direction)
		if err != nil {
			return nil, err
		}
		res = &plandef.Traverse{
			Space:       a.Space,
			Src:         b.expr(a.Src),
			StepRange:   steps,
			EdgeTypes:   a.EdgeTypes,
			Direction:   dir,
			VertexProps: a.VertexProps,
			EdgeProps:   a.EdgeProps,
			VFilter:     b.expr(a.VFilter),
			EFilter:     b.expr(a.EFilter),
			Filter:      b.expr(a.Filter),
			Dedup:       a.Dedup,
		}
	case plandef.KindGetNeighbors:
		dir, err := parseDirection(a.Direction)
		if err != nil {
			return nil, err
		}
		res = &plandef.GetNeighbors{
			Space:       a.Space,
			Src:         b.expr(a.Src),
			EdgeTypes:   a.EdgeTypes,
			Direction:   dir,
			VertexProps: a.VertexProps,
			EdgeProps:   a.EdgeProps,
			Filter:      b.expr(a.Filter),
			Dedup:       a.Dedup,
			Limit:       a.Limit,
		}
	case plandef.KindAppendVertices:
		res = &plandef.AppendVertices{
			Space:       a.Space,
			Src:         b.expr(a.Src),
			VertexProps: a.VertexProps,
			VFilter:     b.expr(a.VFilter),
			Filter:      b.expr(a.Filter),
			Dedup:       a.Dedup,
		}
	case plandef.KindGetVertices:
		res = &plandef.GetVertices{
			Space:       a.Space,
			Src:         b.expr(a.Src),
			VertexProps: a.VertexProps,
			Filter:      b.expr(a.Filter),
			Dedup:       a.Dedup,
			Limit:       a.Limit,
		}
	case plandef.KindScanVertices:
		res = &plandef.ScanVertices{
			Space:       a.Space,
			VertexProps: a.VertexProps,
			Filter:      b.expr(a.Filter),
			Limit:       a.Limit,
		}
	case plandef.KindScanEdges:
		res = &plandef.ScanEdges{
			Space:     a.Space,
			EdgeProps: a.EdgeProps,
			Filter:    b.expr(a.Filter),
			Limit:     a.Limit,
		}
	default:
		if kind.IsAdmin() {
			return nil, nil
		}
		return nil, fmt.Errorf("kind %v is not supported in plan files", kind)
	}
	if b.err != nil {
		return nil, b.err
	}
	return res, nil
}

// parseFactors parses sort factors like "x" or "y DESC".
func parseFactors(in []string) ([]plandef.SortFactor, error) {
	res := make([]plandef.SortFactor, len(in))
	for i, s := range in {
		fields := strings.Fields(s)
		switch {
		case len(fields) == 1:
			res[i] = plandef.SortFactor{Column: fields[0]}
		case len(fields) == 2 && strings.EqualFold(fields[1], "ASC"):
			res[i] = plandef.SortFactor{Column: fields[0]}
		case len(fields) == 2 && strings.EqualFold(fields[1], "DESC"):
			res[i] = plandef.SortFactor{Column: fields[0], Desc: true}
		default:
			return nil, fmt.Errorf("invalid sort factor %q", s)
		}
	}
	return res, nil
}

// parseSteps parses a step range like "1..3". A single number n is the same
// as "n..n", and an empty string as "1..1".
func parseSteps(in string) (plandef.StepRange, error) {
	if in == "" {
		return plandef.StepRange{Min: 1, Max: 1}, nil
	}
	parts := strings.SplitN(in, "..", 2)
	min, err := strconv.Atoi(parts[0])
	if err != nil {
		return plandef.StepRange{}, fmt.Errorf("invalid step range %q", in)
	}
	max := min
	if len(parts) == 2 {
		if max, err = strconv.Atoi(parts[1]); err != nil {
			return plandef.StepRange{}, fmt.Errorf("invalid step range %q", in)
		}
	}
	if min < 0 || max < min {
		return plandef.StepRange{}, fmt.Errorf("invalid step range %q", in)
	}
	return plandef.StepRange{Min: min, Max: max}, nil
}

func parseDirection(in string) (plandef.Direction, error) {
	if in == "" {
		return plandef.OutEdges, nil
	}
	for _, d := range []plandef.Direction{plandef.OutEdges, plandef.InEdges, plandef.BothEdges} {
		if strings.EqualFold(in, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid direction %q", in)
}

// parseCollectKind accepts the names DataCollect describes itself with, like
// "ROW" or "M TO N". It defaults to ROW.
func parseCollectKind(in string) (plandef.CollectKind, error) {
	if in == "" {
		return plandef.CollectRowBasedMove, nil
	}
	for k := plandef.CollectSubgraph; k <= plandef.CollectPathProp; k++ {
		if strings.EqualFold(in, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid collect kind %q", in)
}
