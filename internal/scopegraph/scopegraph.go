// Package scopegraph computes, for every loop the loop finder discovered,
// its scope (which nodes belong to it), its exit edges (the points where
// control leaves the loop), and whether it reads as a pre-tested "while"
// loop or needs explicit break statements ("forever"). Each loop's exits
// are computed independently from its full node set, so an edge from an
// inner loop to a node of the enclosing loop counts as an exit of the
// inner loop; Scopes.Ordered lists the results innermost first.
package scopegraph

import (
	"sort"

	"github.com/cobolsharp/cobolsharp-go/internal/graph"
	"github.com/cobolsharp/cobolsharp-go/internal/loopfinder"
)

// Kind distinguishes a pre-tested loop from one that only terminates via
// explicit break statements.
type Kind int

const (
	KindForever Kind = iota
	KindWhile
)

// ExitEdge records one point where control leaves a loop: the node inside
// the loop the edge originates from, and the node outside it jumps to.
type ExitEdge struct {
	From graph.NodeID
	To   graph.NodeID
	Kind graph.EdgeKind
}

// Scope is the computed scope information for one loop.
type Scope struct {
	Loop *loopfinder.Loop
	Kind Kind

	// WhileTestNode is the branch node whose condition gates the loop,
	// set only when Kind is KindWhile.
	WhileTestNode graph.NodeID
	// WhileExit is the edge that leaves the loop when the test fails.
	WhileExit ExitEdge

	// Exits lists every edge leaving the loop other than the natural
	// while-test edge: each becomes a Break in the structured tree.
	Exits []ExitEdge
}

// Scopes maps each loop ID to its computed Scope, innermost loops first.
type Scopes struct {
	ByLoopID map[int]*Scope
	Ordered  []*Scope // innermost-first
}

// Compute derives Scope information for every loop in lr.
func Compute(g *graph.Graph, lr *loopfinder.Result) *Scopes {
	scopes := &Scopes{ByLoopID: make(map[int]*Scope, len(lr.Loops))}

	for _, loop := range lr.Loops {
		s := &Scope{Loop: loop}

		var allExits []ExitEdge
		for id := range loop.Nodes {
			for _, e := range g.Out(id) {
				// EdgePerformCall is an auxiliary cross-reference edge (see
				// internal/stmtgraph's package doc comment): a perform always
				// falls through to its own next statement regardless of
				// what it calls, so the call target is never part of this
				// section's own control flow and must not be mistaken for
				// a way out of the loop.
				if e.Kind == graph.EdgePerformCall {
					continue
				}
				if !loop.Nodes[e.To] {
					allExits = append(allExits, ExitEdge{From: id, To: e.To, Kind: e.Kind})
				}
			}
		}
		sort.Slice(allExits, func(i, j int) bool {
			if allExits[i].From != allExits[j].From {
				return allExits[i].From < allExits[j].From
			}
			return allExits[i].To < allExits[j].To
		})

		header := g.Node(loop.Header)
		if !loop.Irreducible && header.Kind == graph.KindBranch {
			out := g.Out(loop.Header)
			if len(out) == 2 {
				var insideKind, outsideKind graph.EdgeKind
				var outsideTo graph.NodeID
				insideCount, outsideCount := 0, 0
				for _, e := range out {
					if loop.Nodes[e.To] {
						insideCount++
						insideKind = e.Kind
					} else {
						outsideCount++
						outsideKind = e.Kind
						outsideTo = e.To
					}
				}
				if insideCount == 1 && outsideCount == 1 {
					s.Kind = KindWhile
					s.WhileTestNode = loop.Header
					s.WhileExit = ExitEdge{From: loop.Header, To: outsideTo, Kind: outsideKind}
					_ = insideKind
				}
			}
		}

		for _, ex := range allExits {
			if s.Kind == KindWhile && ex.From == s.WhileTestNode && ex.To == s.WhileExit.To {
				continue
			}
			s.Exits = append(s.Exits, ex)
		}

		scopes.ByLoopID[loop.ID] = s
	}

	ordered := make([]*Scope, 0, len(lr.Loops))
	for _, s := range scopes.ByLoopID {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i].Loop.Nodes) < len(ordered[j].Loop.Nodes)
	})
	scopes.Ordered = ordered

	return scopes
}
