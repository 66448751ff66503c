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
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a hash of the shape of the plan rooted at root: the
// kinds, payloads, column names and structure of every reachable node. It
// doesn't depend on node IDs, variable names or costs, so two plans built
// separately with the same shape have the same fingerprint.
func (g *Graph) Fingerprint(root NodeID) uint64 {
	memo := make(map[NodeID]uint64)
	var fp func(id NodeID) uint64
	fp = func(id NodeID) uint64 {
		if h, ok := memo[id]; ok {
			return h
		}
		n := g.nodes[id]
		if n == nil {
			return 0
		}
		h := xxhash.New()
		write := func(s string) {
			h.WriteString(s)
			h.Write([]byte{0})
		}
		write(n.Kind.String())
		for _, col := range g.ColNames(id) {
			write(col)
		}
		write("|")
		if n.Args != nil {
			d := describer{withIDs: false}
			n.Args.describe(&d)
			for _, p := range d.pairs {
				write(p.Key)
				write(p.Value)
			}
		}
		for _, dep := range n.deps {
			write("dep")
			write(strconv.FormatUint(fp(dep), 16))
		}
		for _, body := range g.Bodies(id) {
			write("body")
			write(strconv.FormatUint(fp(body), 16))
		}
		memo[id] = h.Sum64()
		return memo[id]
	}
	return fp(root)
}
