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

// Package plandef defines the input and output of the plan optimizer: the
// closed set of plan operator kinds, the per-query arena that holds plan nodes
// and the variables that flow between them, and the description records used
// to inspect a plan.
package plandef

import "fmt"

// Kind identifies the operator a PlanNode performs.
type Kind uint8

// Kind values. KindUnknown is the zero value and is never valid for a node.
const (
	KindUnknown Kind = iota

	// Control flow and plumbing.
	KindStart
	KindArgument
	KindPassThrough
	KindSelect
	KindLoop

	// Relational operators.
	KindFilter
	KindProject
	KindUnwind
	KindAggregate
	KindSort
	KindTopN
	KindLimit
	KindSample
	KindDedup
	KindDataCollect
	KindUnion
	KindIntersect
	KindMinus
	KindInnerJoin
	KindLeftJoin
	KindHashInnerJoin
	KindHashLeftJoin
	KindCrossJoin
	KindRollUpApply
	KindPatternApply
	KindAssign

	// Data fetchers.
	KindGetNeighbors
	KindGetVertices
	KindGetEdges
	KindTraverse
	KindAppendVertices
	KindScanVertices
	KindScanEdges
	KindIndexScan
	KindTagIndexFullScan
	KindEdgeIndexFullScan

	// Paths.
	KindShortestPath
	KindBFSShortest
	KindProduceAllPaths
	KindSubgraph

	// Mutations.
	KindInsertVertices
	KindInsertEdges
	KindUpdateVertex
	KindUpdateEdge
	KindDeleteVertices
	KindDeleteEdges
	KindDeleteTags

	// Administration.
	KindCreateSpace
	KindDropSpace
	KindDescSpace
	KindShowSpaces
	KindSwitchSpace
	KindCreateTag
	KindAlterTag
	KindDropTag
	KindDescTag
	KindShowTags
	KindCreateEdge
	KindAlterEdge
	KindDropEdge
	KindDescEdge
	KindShowEdges
	KindCreateTagIndex
	KindDropTagIndex
	KindCreateEdgeIndex
	KindDropEdgeIndex
	KindShowHosts
	KindCreateUser
	KindDropUser
	KindShowUsers
	KindSubmitJob
	KindShowConfigs
	KindSetConfig
	KindGetConfig

	numKinds
)

// Arity is the structural class of a kind, which constrains how many
// dependencies a node of that kind has.
type Arity uint8

// Arity values.
const (
	// ZeroOrOne nodes are leaves or admin nodes chained after at most one
	// other node.
	ZeroOrOne Arity = iota + 1
	// Single nodes read exactly one input.
	Single
	// Binary nodes read exactly two named inputs, left then right.
	Binary
	// Variadic nodes read an explicit, non-empty list of inputs.
	Variadic
)

func (a Arity) String() string {
	switch a {
	case ZeroOrOne:
		return "ZeroOrOne"
	case Single:
		return "Single"
	case Binary:
		return "Binary"
	case Variadic:
		return "Variadic"
	}
	return fmt.Sprintf("Arity(%d)", uint8(a))
}

// Accepts returns true if a node of this arity class may have n dependencies.
func (a Arity) Accepts(n int) bool {
	switch a {
	case ZeroOrOne:
		return n == 0 || n == 1
	case Single:
		return n == 1
	case Binary:
		return n == 2
	case Variadic:
		return n >= 1
	}
	return false
}

type kindInfo struct {
	name  string
	arity Arity
}

var kindTable = [numKinds]kindInfo{
	KindStart:       {"Start", ZeroOrOne},
	KindArgument:    {"Argument", ZeroOrOne},
	KindPassThrough: {"PassThrough", Single},
	KindSelect:      {"Select", Single},
	KindLoop:        {"Loop", Single},

	KindFilter:        {"Filter", Single},
	KindProject:       {"Project", Single},
	KindUnwind:        {"Unwind", Single},
	KindAggregate:     {"Aggregate", Single},
	KindSort:          {"Sort", Single},
	KindTopN:          {"TopN", Single},
	KindLimit:         {"Limit", Single},
	KindSample:        {"Sample", Single},
	KindDedup:         {"Dedup", Single},
	KindDataCollect:   {"DataCollect", Variadic},
	KindUnion:         {"Union", Binary},
	KindIntersect:     {"Intersect", Binary},
	KindMinus:         {"Minus", Binary},
	KindInnerJoin:     {"InnerJoin", Binary},
	KindLeftJoin:      {"LeftJoin", Binary},
	KindHashInnerJoin: {"HashInnerJoin", Binary},
	KindHashLeftJoin:  {"HashLeftJoin", Binary},
	KindCrossJoin:     {"CrossJoin", Binary},
	KindRollUpApply:   {"RollUpApply", Binary},
	KindPatternApply:  {"PatternApply", Binary},
	KindAssign:        {"Assign", Single},

	KindGetNeighbors:      {"GetNeighbors", Single},
	KindGetVertices:       {"GetVertices", Single},
	KindGetEdges:          {"GetEdges", Single},
	KindTraverse:          {"Traverse", Single},
	KindAppendVertices:    {"AppendVertices", Single},
	KindScanVertices:      {"ScanVertices", Single},
	KindScanEdges:         {"ScanEdges", Single},
	KindIndexScan:         {"IndexScan", Single},
	KindTagIndexFullScan:  {"TagIndexFullScan", Single},
	KindEdgeIndexFullScan: {"EdgeIndexFullScan", Single},

	KindShortestPath:    {"ShortestPath", Single},
	KindBFSShortest:     {"BFSShortest", Binary},
	KindProduceAllPaths: {"ProduceAllPaths", Binary},
	KindSubgraph:        {"Subgraph", Single},

	KindInsertVertices: {"InsertVertices", Single},
	KindInsertEdges:    {"InsertEdges", Single},
	KindUpdateVertex:   {"UpdateVertex", Single},
	KindUpdateEdge:     {"UpdateEdge", Single},
	KindDeleteVertices: {"DeleteVertices", Single},
	KindDeleteEdges:    {"DeleteEdges", Single},
	KindDeleteTags:     {"DeleteTags", Single},

	KindCreateSpace:     {"CreateSpace", ZeroOrOne},
	KindDropSpace:       {"DropSpace", ZeroOrOne},
	KindDescSpace:       {"DescSpace", ZeroOrOne},
	KindShowSpaces:      {"ShowSpaces", ZeroOrOne},
	KindSwitchSpace:     {"SwitchSpace", ZeroOrOne},
	KindCreateTag:       {"CreateTag", ZeroOrOne},
	KindAlterTag:        {"AlterTag", ZeroOrOne},
	KindDropTag:         {"DropTag", ZeroOrOne},
	KindDescTag:         {"DescTag", ZeroOrOne},
	KindShowTags:        {"ShowTags", ZeroOrOne},
	KindCreateEdge:      {"CreateEdge", ZeroOrOne},
	KindAlterEdge:       {"AlterEdge", ZeroOrOne},
	KindDropEdge:        {"DropEdge", ZeroOrOne},
	KindDescEdge:        {"DescEdge", ZeroOrOne},
	KindShowEdges:       {"ShowEdges", ZeroOrOne},
	KindCreateTagIndex:  {"CreateTagIndex", ZeroOrOne},
	KindDropTagIndex:    {"DropTagIndex", ZeroOrOne},
	KindCreateEdgeIndex: {"CreateEdgeIndex", ZeroOrOne},
	KindDropEdgeIndex:   {"DropEdgeIndex", ZeroOrOne},
	KindShowHosts:       {"ShowHosts", ZeroOrOne},
	KindCreateUser:      {"CreateUser", ZeroOrOne},
	KindDropUser:        {"DropUser", ZeroOrOne},
	KindShowUsers:       {"ShowUsers", ZeroOrOne},
	KindSubmitJob:       {"SubmitJob", ZeroOrOne},
	KindShowConfigs:     {"ShowConfigs", ZeroOrOne},
	KindSetConfig:       {"SetConfig", ZeroOrOne},
	KindGetConfig:       {"GetConfig", ZeroOrOne},
}

var kindsByName map[string]Kind

func init() {
	kindsByName = make(map[string]Kind, numKinds)
	for k := KindUnknown + 1; k < numKinds; k++ {
		info := kindTable[k]
		if info.name == "" || info.arity == 0 {
			panic(fmt.Sprintf("plandef: kind %d is missing from the kind table", k))
		}
		kindsByName[info.name] = k
	}
}

// Valid returns true if k is a defined kind.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < numKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindTable[k].name
}

// Arity returns the structural class of the kind. It returns 0 for invalid
// kinds.
func (k Kind) Arity() Arity {
	if !k.Valid() {
		return 0
	}
	return kindTable[k].arity
}

// IsAdmin returns true for the schema, user and configuration management
// kinds, which never take part in a data pipeline.
func (k Kind) IsAdmin() bool {
	return k >= KindCreateSpace && k < numKinds
}

// IsDataFetcher returns true for kinds that read vertices or edges from
// storage.
func (k Kind) IsDataFetcher() bool {
	return k >= KindGetNeighbors && k <= KindEdgeIndexFullScan
}

// KindByName returns the kind with the given name, such as "Filter".
func KindByName(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// AllKinds returns every valid kind, in declaration order.
func AllKinds() []Kind {
	res := make([]Kind, 0, numKinds-1)
	for k := KindUnknown + 1; k < numKinds; k++ {
		res = append(res, k)
	}
	return res
}
