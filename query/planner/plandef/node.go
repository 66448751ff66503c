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
	"sync/atomic"

	"github.com/ebay/graphopt/query/planner/expr"
)

// NodeID identifies a PlanNode. IDs are unique across every Graph that shares
// the same IDGenerator. The zero value is not a valid ID.
type NodeID int64

// An IDGenerator allocates node IDs. It's safe for concurrent use, so a single
// generator can serve the arenas of many queries. The zero value is ready to
// use.
type IDGenerator struct {
	last int64
}

// Next returns a new, never before returned, NodeID.
func (gen *IDGenerator) Next() NodeID {
	return NodeID(atomic.AddInt64(&gen.last, 1))
}

// A PlanNode is one operator in a plan. Its topology (dependencies and the
// variables it reads and writes) may only be changed through its Graph, which
// keeps the SymbolTable's read and write sets consistent with it. Args and
// Cost may be set directly.
type PlanNode struct {
	// Unique across the IDGenerator of the Graph.
	ID NodeID
	// Which operation to execute.
	Kind Kind
	// Kind-specific payload, may be nil.
	Args Args
	// Estimated cost of executing this node and its inputs. The optimizer
	// prefers cheaper alternatives; it's 0 when no cost model is in use.
	Cost float64

	deps      []NodeID
	inputVars []VarID
	outputVar VarID
	released  bool
}

// Deps returns a copy of the node's dependencies, in order.
func (n *PlanNode) Deps() []NodeID {
	return append([]NodeID(nil), n.deps...)
}

// Dep returns the i-th dependency.
func (n *PlanNode) Dep(i int) NodeID {
	return n.deps[i]
}

// NumDeps returns the number of dependencies.
func (n *PlanNode) NumDeps() int {
	return len(n.deps)
}

// InputVars returns a copy of the handles of the variables the node reads.
func (n *PlanNode) InputVars() []VarID {
	return append([]VarID(nil), n.inputVars...)
}

// OutputVar returns the handle of the variable the node writes.
func (n *PlanNode) OutputVar() VarID {
	return n.outputVar
}

// Released returns true once ReleaseSymbols has been called for the node,
// meaning it is no longer part of any plan.
func (n *PlanNode) Released() bool {
	return n.released
}

// Exprs returns every expression owned by the node's payload.
func (n *PlanNode) Exprs() []expr.Expr {
	if n.Args == nil {
		return nil
	}
	return n.Args.exprs()
}

// argsFit returns true if args is a valid payload for a node of the given
// kind.
func argsFit(kind Kind, args Args) bool {
	switch args.(type) {
	case nil:
		switch kind {
		case KindStart, KindArgument, KindPassThrough, KindDedup,
			KindUnion, KindIntersect, KindMinus, KindCrossJoin:
			return true
		}
		return kind.IsAdmin()
	case *Argument:
		return kind == KindArgument
	case *Filter:
		return kind == KindFilter
	case *Project:
		return kind == KindProject
	case *Unwind:
		return kind == KindUnwind
	case *Aggregate:
		return kind == KindAggregate
	case *Sort:
		return kind == KindSort
	case *TopN:
		return kind == KindTopN
	case *Limit:
		return kind == KindLimit
	case *Sample:
		return kind == KindSample
	case *DataCollect:
		return kind == KindDataCollect
	case *Join:
		switch kind {
		case KindInnerJoin, KindLeftJoin, KindHashInnerJoin, KindHashLeftJoin:
			return true
		}
	case *Apply:
		return kind == KindRollUpApply || kind == KindPatternApply
	case *Assign:
		return kind == KindAssign
	case *Select:
		return kind == KindSelect
	case *Loop:
		return kind == KindLoop
	case *Traverse:
		return kind == KindTraverse
	case *GetNeighbors:
		return kind == KindGetNeighbors
	case *AppendVertices:
		return kind == KindAppendVertices
	case *GetVertices:
		return kind == KindGetVertices
	case *GetEdges:
		return kind == KindGetEdges
	case *ScanVertices:
		return kind == KindScanVertices
	case *ScanEdges:
		return kind == KindScanEdges
	case *IndexScan:
		switch kind {
		case KindIndexScan, KindTagIndexFullScan, KindEdgeIndexFullScan:
			return true
		}
	case *Path:
		switch kind {
		case KindShortestPath, KindBFSShortest, KindProduceAllPaths:
			return true
		}
	case *Subgraph:
		return kind == KindSubgraph
	case *Schema:
		switch kind {
		case KindCreateTag, KindAlterTag, KindDropTag, KindDescTag,
			KindCreateEdge, KindAlterEdge, KindDropEdge, KindDescEdge,
			KindCreateTagIndex, KindDropTagIndex, KindCreateEdgeIndex, KindDropEdgeIndex:
			return true
		}
	case *Mutate:
		return kind >= KindInsertVertices && kind <= KindDeleteTags
	case *Admin:
		return kind.IsAdmin()
	}
	return false
}
