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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ebay/graphopt/query/planner/expr"
)

// Identity properties. They're always fetched, as the executor needs them to
// build vertex and edge values, regardless of which other properties are
// requested.
const (
	// TagMarker is requested for a tag to learn whether a vertex has that tag
	// without fetching any of its properties.
	TagMarker = "_tag"
	EdgeSrc   = "_src"
	EdgeType  = "_type"
	EdgeRank  = "_rank"
	EdgeDst   = "_dst"
)

// EdgeIdentityProps are the properties kept for every fetched edge type.
var EdgeIdentityProps = []string{EdgeSrc, EdgeType, EdgeRank, EdgeDst}

// Direction is the direction in which edges are followed.
type Direction uint8

// Direction values.
const (
	OutEdges Direction = iota
	InEdges
	BothEdges
)

func (d Direction) String() string {
	switch d {
	case OutEdges:
		return "OUT_EDGE"
	case InEdges:
		return "IN_EDGE"
	case BothEdges:
		return "BOTH"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// StepRange is an inclusive range of hops.
type StepRange struct {
	Min int
	Max int
}

func (r StepRange) String() string {
	return strconv.Itoa(r.Min) + ".." + strconv.Itoa(r.Max)
}

// A VertexProp requests properties of one tag.
type VertexProp struct {
	Tag   string   `json:"tag"`
	Props []string `json:"props"`
	// If set, every property of the tag is requested and Props is ignored.
	AllProps bool `json:"allProps,omitempty"`
}

// An EdgeProp requests properties of one edge type.
type EdgeProp struct {
	Type  string   `json:"type"`
	Props []string `json:"props"`
	// If set, every property of the edge type is requested and Props is
	// ignored.
	AllProps bool `json:"allProps,omitempty"`
}

func cloneVertexProps(in []VertexProp) []VertexProp {
	if in == nil {
		return nil
	}
	res := make([]VertexProp, len(in))
	for i, p := range in {
		res[i] = VertexProp{Tag: p.Tag, Props: append([]string(nil), p.Props...), AllProps: p.AllProps}
	}
	return res
}

func cloneEdgeProps(in []EdgeProp) []EdgeProp {
	if in == nil {
		return nil
	}
	res := make([]EdgeProp, len(in))
	for i, p := range in {
		res[i] = EdgeProp{Type: p.Type, Props: append([]string(nil), p.Props...), AllProps: p.AllProps}
	}
	return res
}

// addProps describes a property list as JSON, the same way it is shown to
// users by the explain formatter. Nil lists are omitted.
func addProps(d *describer, key string, props interface{}) {
	switch p := props.(type) {
	case []VertexProp:
		if p == nil {
			return
		}
	case []EdgeProp:
		if p == nil {
			return
		}
	}
	b, err := json.Marshal(props)
	if err != nil {
		panic(fmt.Sprintf("describing %v: %v", key, err))
	}
	d.add(key, string(b))
}

// Traverse expands from the Src vertices along edges of EdgeTypes for each
// step in StepRange. Its last two output columns name the destination vertex
// and the edge (or edge list, for multiple steps).
type Traverse struct {
	Space       string
	Src         expr.Expr
	StepRange   StepRange
	EdgeTypes   []string
	Direction   Direction
	VertexProps []VertexProp
	EdgeProps   []EdgeProp
	// Applied to the source vertices of each step.
	VFilter expr.Expr
	// Applied to the edges of each step.
	EFilter expr.Expr
	// Applied to the resulting rows.
	Filter        expr.Expr
	Dedup         bool
	TrackPrevPath bool
}

func (t *Traverse) describe(d *describer) {
	d.add("space", t.Space)
	d.addExpr("src", t.Src)
	d.add("steps", t.StepRange.String())
	d.add("edgeTypes", strings.Join(t.EdgeTypes, ", "))
	d.add("direction", t.Direction.String())
	addProps(d, "vertexProps", t.VertexProps)
	addProps(d, "edgeProps", t.EdgeProps)
	d.addExpr("vertex filter", t.VFilter)
	d.addExpr("edge filter", t.EFilter)
	d.addExpr("filter", t.Filter)
	d.add("dedup", strconv.FormatBool(t.Dedup))
}

func (t *Traverse) clone() Args {
	c := *t
	c.Src = cloneExpr(t.Src)
	c.EdgeTypes = append([]string(nil), t.EdgeTypes...)
	c.VertexProps = cloneVertexProps(t.VertexProps)
	c.EdgeProps = cloneEdgeProps(t.EdgeProps)
	c.VFilter = cloneExpr(t.VFilter)
	c.EFilter = cloneExpr(t.EFilter)
	c.Filter = cloneExpr(t.Filter)
	return &c
}

func (t *Traverse) exprs() []expr.Expr { return nonNil(t.Src, t.VFilter, t.EFilter, t.Filter) }

// GetNeighbors fetches the edges of the Src vertices and, optionally, the
// properties of those vertices. Like Traverse, its last two output columns
// name the vertex and the edge.
type GetNeighbors struct {
	Space       string
	Src         expr.Expr
	EdgeTypes   []string
	Direction   Direction
	VertexProps []VertexProp
	EdgeProps   []EdgeProp
	Filter      expr.Expr
	Dedup       bool
	Random      bool
	// A negative Limit means no limit.
	Limit int64
}

func (g *GetNeighbors) describe(d *describer) {
	d.add("space", g.Space)
	d.addExpr("src", g.Src)
	d.add("edgeTypes", strings.Join(g.EdgeTypes, ", "))
	d.add("direction", g.Direction.String())
	addProps(d, "vertexProps", g.VertexProps)
	addProps(d, "edgeProps", g.EdgeProps)
	d.addExpr("filter", g.Filter)
	d.add("dedup", strconv.FormatBool(g.Dedup))
	d.add("random", strconv.FormatBool(g.Random))
	d.add("limit", strconv.FormatInt(g.Limit, 10))
}

func (g *GetNeighbors) clone() Args {
	c := *g
	c.Src = cloneExpr(g.Src)
	c.EdgeTypes = append([]string(nil), g.EdgeTypes...)
	c.VertexProps = cloneVertexProps(g.VertexProps)
	c.EdgeProps = cloneEdgeProps(g.EdgeProps)
	c.Filter = cloneExpr(g.Filter)
	return &c
}

func (g *GetNeighbors) exprs() []expr.Expr { return nonNil(g.Src, g.Filter) }

// AppendVertices fetches the vertices at the end of the paths produced by its
// input and appends them as the last output column.
type AppendVertices struct {
	Space       string
	Src         expr.Expr
	VertexProps []VertexProp
	// Applied to the vertices while they're fetched.
	VFilter expr.Expr
	// Applied to the resulting rows.
	Filter        expr.Expr
	Dedup         bool
	TrackPrevPath bool
}

func (a *AppendVertices) describe(d *describer) {
	d.add("space", a.Space)
	d.addExpr("src", a.Src)
	addProps(d, "props", a.VertexProps)
	d.addExpr("vertex filter", a.VFilter)
	d.addExpr("filter", a.Filter)
	d.add("dedup", strconv.FormatBool(a.Dedup))
}

func (a *AppendVertices) clone() Args {
	c := *a
	c.Src = cloneExpr(a.Src)
	c.VertexProps = cloneVertexProps(a.VertexProps)
	c.VFilter = cloneExpr(a.VFilter)
	c.Filter = cloneExpr(a.Filter)
	return &c
}

func (a *AppendVertices) exprs() []expr.Expr { return nonNil(a.Src, a.VFilter, a.Filter) }

// GetVertices fetches the vertices whose IDs are given by Src. Its last output
// column names the vertex.
type GetVertices struct {
	Space       string
	Src         expr.Expr
	VertexProps []VertexProp
	Filter      expr.Expr
	Dedup       bool
	Limit       int64
}

func (g *GetVertices) describe(d *describer) {
	d.add("space", g.Space)
	d.addExpr("src", g.Src)
	addProps(d, "props", g.VertexProps)
	d.addExpr("filter", g.Filter)
	d.add("dedup", strconv.FormatBool(g.Dedup))
	d.add("limit", strconv.FormatInt(g.Limit, 10))
}

func (g *GetVertices) clone() Args {
	c := *g
	c.Src = cloneExpr(g.Src)
	c.VertexProps = cloneVertexProps(g.VertexProps)
	c.Filter = cloneExpr(g.Filter)
	return &c
}

func (g *GetVertices) exprs() []expr.Expr { return nonNil(g.Src, g.Filter) }

// GetEdges fetches the edges identified by the Src, Type, Rank and Dst
// expressions. Its last output column names the edge.
type GetEdges struct {
	Space     string
	Src       expr.Expr
	Type      expr.Expr
	Rank      expr.Expr
	Dst       expr.Expr
	EdgeProps []EdgeProp
	Filter    expr.Expr
	Dedup     bool
	Limit     int64
}

func (g *GetEdges) describe(d *describer) {
	d.add("space", g.Space)
	d.addExpr("src", g.Src)
	d.addExpr("type", g.Type)
	d.addExpr("ranking", g.Rank)
	d.addExpr("dst", g.Dst)
	addProps(d, "props", g.EdgeProps)
	d.addExpr("filter", g.Filter)
	d.add("dedup", strconv.FormatBool(g.Dedup))
	d.add("limit", strconv.FormatInt(g.Limit, 10))
}

func (g *GetEdges) clone() Args {
	c := *g
	c.Src = cloneExpr(g.Src)
	c.Type = cloneExpr(g.Type)
	c.Rank = cloneExpr(g.Rank)
	c.Dst = cloneExpr(g.Dst)
	c.EdgeProps = cloneEdgeProps(g.EdgeProps)
	c.Filter = cloneExpr(g.Filter)
	return &c
}

func (g *GetEdges) exprs() []expr.Expr { return nonNil(g.Src, g.Type, g.Rank, g.Dst, g.Filter) }

// ScanVertices reads every vertex of the space. Its last output column names
// the vertex.
type ScanVertices struct {
	Space       string
	VertexProps []VertexProp
	Filter      expr.Expr
	Limit       int64
}

func (s *ScanVertices) describe(d *describer) {
	d.add("space", s.Space)
	addProps(d, "props", s.VertexProps)
	d.addExpr("filter", s.Filter)
	d.add("limit", strconv.FormatInt(s.Limit, 10))
}

func (s *ScanVertices) clone() Args {
	c := *s
	c.VertexProps = cloneVertexProps(s.VertexProps)
	c.Filter = cloneExpr(s.Filter)
	return &c
}

func (s *ScanVertices) exprs() []expr.Expr { return nonNil(s.Filter) }

// ScanEdges reads every edge of the requested types. Its last output column
// names the edge.
type ScanEdges struct {
	Space     string
	EdgeProps []EdgeProp
	Filter    expr.Expr
	Limit     int64
}

func (s *ScanEdges) describe(d *describer) {
	d.add("space", s.Space)
	addProps(d, "props", s.EdgeProps)
	d.addExpr("filter", s.Filter)
	d.add("limit", strconv.FormatInt(s.Limit, 10))
}

func (s *ScanEdges) clone() Args {
	c := *s
	c.EdgeProps = cloneEdgeProps(s.EdgeProps)
	c.Filter = cloneExpr(s.Filter)
	return &c
}

func (s *ScanEdges) exprs() []expr.Expr { return nonNil(s.Filter) }

// IndexScan is the payload of IndexScan, TagIndexFullScan and
// EdgeIndexFullScan. It reads ReturnColumns of the tag or edge type Schema
// through an index.
type IndexScan struct {
	Space         string
	Schema        string
	IsEdge        bool
	Index         string
	Filter        expr.Expr
	ReturnColumns []string
	Limit         int64
}

func (s *IndexScan) describe(d *describer) {
	d.add("space", s.Space)
	d.add("schema", s.Schema)
	d.add("isEdge", strconv.FormatBool(s.IsEdge))
	d.add("index", s.Index)
	d.addExpr("filter", s.Filter)
	d.add("returnColumns", strings.Join(s.ReturnColumns, ", "))
	d.add("limit", strconv.FormatInt(s.Limit, 10))
}

func (s *IndexScan) clone() Args {
	c := *s
	c.Filter = cloneExpr(s.Filter)
	c.ReturnColumns = append([]string(nil), s.ReturnColumns...)
	return &c
}

func (s *IndexScan) exprs() []expr.Expr { return nonNil(s.Filter) }

// Path is the payload of the ShortestPath, BFSShortest and ProduceAllPaths
// kinds.
type Path struct {
	Space       string
	Steps       StepRange
	EdgeTypes   []string
	Direction   Direction
	VertexProps []VertexProp
	EdgeProps   []EdgeProp
	// ShortestPath: return a single path per pair.
	Single bool
	// ProduceAllPaths: exclude paths that revisit a vertex.
	NoLoop bool
}

func (p *Path) describe(d *describer) {
	d.add("space", p.Space)
	d.add("steps", p.Steps.String())
	d.add("edgeTypes", strings.Join(p.EdgeTypes, ", "))
	d.add("direction", p.Direction.String())
	addProps(d, "vertexProps", p.VertexProps)
	addProps(d, "edgeProps", p.EdgeProps)
	d.add("single", strconv.FormatBool(p.Single))
	d.add("noLoop", strconv.FormatBool(p.NoLoop))
}

func (p *Path) clone() Args {
	c := *p
	c.EdgeTypes = append([]string(nil), p.EdgeTypes...)
	c.VertexProps = cloneVertexProps(p.VertexProps)
	c.EdgeProps = cloneEdgeProps(p.EdgeProps)
	return &c
}

func (p *Path) exprs() []expr.Expr { return nil }

// Subgraph collects the vertices and edges reachable within Steps of the
// input vertices.
type Subgraph struct {
	Space       string
	Steps       int
	EdgeTypes   []string
	Direction   Direction
	VertexProps []VertexProp
	EdgeProps   []EdgeProp
	Filter      expr.Expr
}

func (s *Subgraph) describe(d *describer) {
	d.add("space", s.Space)
	d.add("steps", strconv.Itoa(s.Steps))
	d.add("edgeTypes", strings.Join(s.EdgeTypes, ", "))
	d.add("direction", s.Direction.String())
	addProps(d, "vertexProps", s.VertexProps)
	addProps(d, "edgeProps", s.EdgeProps)
	d.addExpr("filter", s.Filter)
}

func (s *Subgraph) clone() Args {
	c := *s
	c.EdgeTypes = append([]string(nil), s.EdgeTypes...)
	c.VertexProps = cloneVertexProps(s.VertexProps)
	c.EdgeProps = cloneEdgeProps(s.EdgeProps)
	c.Filter = cloneExpr(s.Filter)
	return &c
}

func (s *Subgraph) exprs() []expr.Expr { return nonNil(s.Filter) }
