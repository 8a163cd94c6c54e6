// Package structgraph builds the COBOL Structure Graph: it collapses
// straight-line runs of plain statement nodes into single composite
// "basic block" nodes, without crossing a branch, join, section, or
// PERFORM-call boundary. This shrinks the graph the loop finder and
// structurer have to reason about without changing its control-flow
// meaning.
package structgraph

import (
	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
)

// Collapse returns a new graph where maximal chains of plain statement
// nodes (single predecessor, single EdgeFall successor) are merged into
// one node carrying the whole chain in its Block field.
func Collapse(g *graph.Graph) *graph.Graph {
	predCount := make(map[graph.NodeID]int)
	for _, id := range g.NodeIDs() {
		predCount[id] = len(g.In(id))
	}

	canMergeForward := func(id graph.NodeID) (graph.NodeID, bool) {
		n := g.Node(id)
		out := g.Out(id)
		if n.Kind != graph.KindStatement || n.Block != nil || len(out) != 1 || out[0].Kind != graph.EdgeFall {
			return 0, false
		}
		return out[0].To, true
	}

	isChainable := func(id graph.NodeID) bool {
		n := g.Node(id)
		return n.Kind == graph.KindStatement && n.Block == nil && predCount[id] == 1
	}

	isBlockStart := func(id graph.NodeID) bool {
		n := g.Node(id)
		if n.Kind != graph.KindStatement {
			return false
		}
		in := g.In(id)
		if len(in) != 1 {
			return true
		}
		pred := in[0].From
		if in[0].Kind != graph.EdgeFall {
			return true
		}
		if next, ok := canMergeForward(pred); !ok || next != id {
			return true
		}
		return !isChainable(id)
	}

	b := graph.NewBuilder()
	remap := make(map[graph.NodeID]graph.NodeID)
	tailOf := make(map[graph.NodeID]graph.NodeID) // block-start id -> last id in its chain

	for _, id := range g.NodeIDs() {
		n := g.Node(id)
		if n.Kind != graph.KindStatement {
			nid := b.AddNode(n)
			remap[id] = nid
			continue
		}
		if !isBlockStart(id) {
			continue // handled when its chain's start is processed
		}

		chain := []graph.NodeID{id}
		cur := id
		for {
			next, ok := canMergeForward(cur)
			if !ok || !isChainable(next) {
				break
			}
			chain = append(chain, next)
			cur = next
		}

		if len(chain) == 1 {
			nid := b.AddNode(n)
			remap[id] = nid
			tailOf[id] = id
			continue
		}

		block := make([]cobol.Statement, 0, len(chain))
		for _, cid := range chain {
			block = append(block, g.Node(cid).Statement)
		}
		first := g.Node(chain[0])
		nid := b.AddNode(graph.Node{
			Kind:        graph.KindStatement,
			Block:       block,
			SectionName: first.SectionName,
			Span:        first.Span,
		})
		for _, cid := range chain {
			remap[cid] = nid
		}
		tailOf[id] = chain[len(chain)-1]
	}

	for _, id := range g.NodeIDs() {
		n := g.Node(id)
		var tail graph.NodeID
		if n.Kind != graph.KindStatement {
			tail = id
		} else if t, ok := tailOf[id]; ok {
			tail = t
		} else {
			continue // a non-start node already folded into another block
		}
		for _, e := range g.Out(tail) {
			b.AddEdge(remap[id], remap[e.To], e.Kind)
		}
	}

	b.SetEntry(remap[g.Entry])
	b.SetExit(remap[g.Exit])
	return b.Build()
}
