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
	"sort"
	"strings"

	"github.com/ebay/graphopt/query/planner"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/ebay/graphopt/util/graphviz"
	"github.com/ebay/graphopt/util/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

// writeTable writes one row per node of desc. Cells wider than width are
// wrapped, unless width is 0.
func writeTable(w io.Writer, desc *plandef.PlanDescription, width int) error {
	t := [][]string{
		{"id", "name", "deps", "outputVar", "cols", "cost", "description"},
	}
	for _, n := range desc.PlanNodeDescs {
		t = append(t, []string{
			fmt.Sprint(n.ID),
			n.Name,
			idsString(n.Dependencies),
			n.OutputVar,
			strings.Join(n.ColNames, ", "),
			fmtr.Sprintf("%.0f", n.Cost),
			describeNode(n),
		})
	}
	return table.Print(w, t, table.Format{Options: table.HeaderRow, MaxCellWidth: width})
}

func idsString(ids []plandef.NodeID) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = fmt.Sprint(id)
	}
	return strings.Join(strs, ", ")
}

// describeNode returns the description pairs of n, one per line.
func describeNode(n *plandef.PlanNodeDescription) string {
	lines := make([]string, 0, len(n.Description)+1)
	if n.BranchInfo != nil {
		lines = append(lines, fmt.Sprintf("%v of: %v", branchName(n.BranchInfo), n.BranchInfo.ConditionNodeID))
	}
	for _, p := range n.Description {
		lines = append(lines, p.Key+": "+p.Value)
	}
	return strings.Join(lines, "\n")
}

func branchName(b *plandef.BranchInfo) string {
	if b.IsDoBranch {
		return "do"
	}
	return "else"
}

// writeSummary writes a few lines about how the plan was optimized.
func writeSummary(w io.Writer, stats *planner.OptimizeStats) error {
	var b strings.Builder
	fmtr.Fprintf(&b, "Estimated cost: %v\n", stats.EstimatedCost)
	fmtr.Fprintf(&b, "Exploration: %d rounds, %d groups, %d alternatives\n",
		stats.Search.Rounds, stats.Search.Groups, stats.Search.GroupNodes)
	rules := make([]string, 0, len(stats.Search.Applied))
	for name := range stats.Search.Applied {
		rules = append(rules, name)
	}
	sort.Strings(rules)
	for _, name := range rules {
		fmtr.Fprintf(&b, "  %v applied %d times\n", name, stats.Search.Applied[name])
	}
	fmtr.Fprintf(&b, "Pruning: %d fetchers pruned, %d AppendVertices removed\n",
		stats.Prune.Pruned, stats.Prune.Eliminated)
	fmt.Fprintf(&b, "Fingerprint: %016x\n", stats.Fingerprint)
	_, err := io.WriteString(w, b.String())
	return err
}

// writeDot writes desc as a Graphviz digraph. Edges point from a node to its
// dependencies; dashed edges lead to the branches of Select and Loop nodes.
func writeDot(w io.Writer, desc *plandef.PlanDescription) {
	fmt.Fprintln(w, "digraph plan {")
	fmt.Fprintln(w, "  node [shape=box fontname=monospace];")
	for _, n := range desc.PlanNodeDescs {
		var label strings.Builder
		fmt.Fprintf(&label, "%v: %v\n", n.ID, n.Name)
		fmt.Fprintf(&label, "%v [%v]\n", n.OutputVar, strings.Join(n.ColNames, ", "))
		for _, p := range n.Description {
			fmt.Fprintf(&label, "%v: %v\n", p.Key, p.Value)
		}
		fmt.Fprintf(w, "  n%v [label=%v];\n", n.ID, graphviz.Quote(label.String()))
	}
	for _, n := range desc.PlanNodeDescs {
		for _, dep := range n.Dependencies {
			fmt.Fprintf(w, "  n%v -> n%v;\n", n.ID, dep)
		}
		if n.BranchInfo != nil {
			fmt.Fprintf(w, "  n%v -> n%v [style=dashed label=%v];\n",
				n.BranchInfo.ConditionNodeID, n.ID, graphviz.Quote(branchName(n.BranchInfo)))
		}
	}
	fmt.Fprintln(w, "}")
}

// writeJSON writes desc as indented JSON, for external formatters.
func writeJSON(w io.Writer, desc *plandef.PlanDescription) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(desc)
}
