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

package planner

import (
	"fmt"
	"time"

	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/ebay/graphopt/query/planner/search"
	"github.com/ebay/graphopt/util/cmp"
)

// The number of rows a fetcher is assumed to read per input row.
const rowsPerInput = 100

type estCost struct {
	diskBytes int
	diskSeeks int
}

func (cost estCost) time() time.Duration {
	micros := 0
	// ~40K random reads per second => ~25us per seek
	micros += cost.diskSeeks * 25
	// ~300 MB/s disk read throughput => ~300 bytes per us
	micros += cost.diskBytes / 300
	return time.Duration(micros * 1000)
}

func (cost estCost) String() string {
	return fmt.Sprintf("[disk: %v seeks, %v KiB]",
		cost.diskSeeks, cost.diskBytes/1024)
}

// localCost estimates the disk work done by the node itself. Only data
// fetchers and path finders touch the disk; the rest are free.
func localCost(n *plandef.PlanNode, stats Stats) estCost {
	// Identity properties and tag markers are part of the key, so they
	// cost nothing extra.
	edgeBytes := func(props []plandef.EdgeProp) int {
		bytes := 0
		for _, p := range props {
			bytes += countExcept(p.Props, plandef.EdgeIdentityProps...) * stats.BytesPerProp()
		}
		return bytes
	}
	vertexBytes := func(props []plandef.VertexProp) int {
		bytes := 0
		for _, p := range props {
			bytes += countExcept(p.Props, plandef.TagMarker) * stats.BytesPerProp()
		}
		return bytes
	}
	fetch := func(space string, rows, rowBytes int) estCost {
		return estCost{
			diskSeeks: stats.NumPartitions(space),
			diskBytes: rows * rowBytes,
		}
	}
	switch a := n.Args.(type) {
	case *plandef.Traverse:
		rows := rowsPerInput
		for i := 0; i < a.StepRange.Max; i++ {
			rows *= stats.AvgDegree(a.Space, firstOrEmpty(a.EdgeTypes))
		}
		cost := fetch(a.Space, rows, edgeBytes(a.EdgeProps)+vertexBytes(a.VertexProps))
		cost.diskSeeks *= cmp.MaxInt(a.StepRange.Max, 1)
		return cost
	case *plandef.GetNeighbors:
		rows := rowsPerInput * stats.AvgDegree(a.Space, firstOrEmpty(a.EdgeTypes))
		return fetch(a.Space, rows, edgeBytes(a.EdgeProps)+vertexBytes(a.VertexProps))
	case *plandef.AppendVertices:
		return fetch(a.Space, rowsPerInput, vertexBytes(a.VertexProps))
	case *plandef.GetVertices:
		return fetch(a.Space, rowsPerInput, vertexBytes(a.VertexProps))
	case *plandef.GetEdges:
		return fetch(a.Space, rowsPerInput, edgeBytes(a.EdgeProps))
	case *plandef.ScanVertices:
		return fetch(a.Space, stats.NumVertices(a.Space), vertexBytes(a.VertexProps))
	case *plandef.ScanEdges:
		rows := stats.NumVertices(a.Space) * stats.AvgDegree(a.Space, "")
		return fetch(a.Space, rows, edgeBytes(a.EdgeProps))
	case *plandef.IndexScan:
		return fetch(a.Space, rowsPerInput, len(a.ReturnColumns)*stats.BytesPerProp())
	case *plandef.Path:
		rows := rowsPerInput
		for i := 0; i < a.Steps.Max; i++ {
			rows *= stats.AvgDegree(a.Space, firstOrEmpty(a.EdgeTypes))
		}
		return fetch(a.Space, rows, edgeBytes(a.EdgeProps)+vertexBytes(a.VertexProps))
	case *plandef.Subgraph:
		rows := rowsPerInput
		for i := 0; i < a.Steps; i++ {
			rows *= stats.AvgDegree(a.Space, firstOrEmpty(a.EdgeTypes))
		}
		return fetch(a.Space, rows, edgeBytes(a.EdgeProps)+vertexBytes(a.VertexProps))
	}
	return estCost{}
}

// costFunc returns a search.CostFunc that estimates the time each
// alternative spends on disk, in microseconds.
func costFunc(stats Stats) search.CostFunc {
	return func(node *search.OptGroupNode) float64 {
		return float64(localCost(node.Node(), stats).time().Microseconds())
	}
}

// annotateCosts records the estimated local cost of every node of the plan
// rooted at root, and returns their total.
func annotateCosts(g *plandef.Graph, root plandef.NodeID, stats Stats) time.Duration {
	total := time.Duration(0)
	for _, id := range g.Reachable(root) {
		n := g.Node(id)
		t := localCost(n, stats).time()
		n.Cost = float64(t.Microseconds())
		total += t
	}
	return total
}

// countExcept returns how many entries of props aren't in skip.
func countExcept(props []string, skip ...string) int {
	n := 0
outer:
	for _, p := range props {
		for _, s := range skip {
			if p == s {
				continue outer
			}
		}
		n++
	}
	return n
}

func firstOrEmpty(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
