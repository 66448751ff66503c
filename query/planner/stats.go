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

// Stats is used by the planner to estimate the cost of data fetchers.
type Stats interface {
	// How many storage partitions the space is spread across. Each fetch
	// visits every partition.
	NumPartitions(space string) int
	// The total number of vertices in the space.
	NumVertices(space string) int
	// The number of edges of the given type leaving a typical vertex. The
	// caller may pass "" to ask about any edge type.
	AvgDegree(space, edgeType string) int
	// The number of bytes of disk space used by a typical property value.
	BytesPerProp() int
}

// defaultStats is used when the caller doesn't supply Stats.
type defaultStats struct{}

func (defaultStats) NumPartitions(space string) int {
	return 8
}

func (defaultStats) NumVertices(space string) int {
	return 1e6
}

func (defaultStats) AvgDegree(space, edgeType string) int {
	return 10
}

func (defaultStats) BytesPerProp() int {
	return 16
}
