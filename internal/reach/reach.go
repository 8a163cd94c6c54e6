// Package reach implements the Reachability Pruner: forward reachability
// from a graph's entry node, dropping nodes the entry can never reach and
// reporting them as unreachable-code diagnostics rather than silently
// deleting the evidence.
package reach

import (
	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
)

// Result is a pruned graph plus the node IDs (from the input graph) that
// were dropped.
type Result struct {
	Graph       *graph.Graph
	Unreachable []graph.NodeID
}

// Prune walks forward from g.Entry over every edge kind, then rebuilds a
// graph containing only the reached nodes and the edges between them.
// Unreachable nodes are reported via bag (spec's UnreachableCode, info
// severity) rather than dropped from the record silently.
func Prune(g *graph.Graph, bag *diag.Bag) *Result {
	reached := map[graph.NodeID]bool{g.Entry: true}
	queue := []graph.NodeID{g.Entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, succ := range g.Successors(id) {
			if !reached[succ] {
				reached[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	// The section exit is always kept even if nothing reaches it directly
	// (e.g. a section that is one infinite loop with no natural end):
	// downstream stages still need a well-known exit node to target.
	reached[g.Exit] = true

	b := graph.NewBuilder()
	remap := make(map[graph.NodeID]graph.NodeID, len(reached))
	var unreachable []graph.NodeID

	for _, id := range g.NodeIDs() {
		n := g.Node(id)
		if !reached[id] {
			unreachable = append(unreachable, id)
			if n.Span.Line != 0 {
				bag.Info(diag.CodeUnreachableCode, n.Span, "statement is unreachable")
			}
			continue
		}
		remap[id] = b.AddNode(n)
	}

	for _, id := range g.NodeIDs() {
		if !reached[id] {
			continue
		}
		for _, e := range g.Out(id) {
			if reached[e.To] {
				b.AddEdge(remap[id], remap[e.To], e.Kind)
			}
		}
	}

	b.SetEntry(remap[g.Entry])
	b.SetExit(remap[g.Exit])

	return &Result{Graph: b.Build(), Unreachable: unreachable}
}
