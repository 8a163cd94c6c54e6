// Package loopfinder computes dominators over a structgraph-collapsed
// graph and finds natural loops via Havlak's DFS-ancestor back-edge
// classification and union-find SCC closure, grounded on
// other_examples/rsc-benchgraffiti__havlak.go (itself Tarjan's method
// plus Havlak's irreducibility extension), with idom computation kept
// alongside from other_examples/prateek-heaplens__dominators.go
// (Cooper, Harvey & Kennedy) for diagnostics. Back edges are classified
// by DFS-tree ancestry rather than dominance: dominance-based back-edge
// detection only finds loops whose header dominates every entry to the
// loop, and silently misses genuinely irreducible cycles (two nodes
// each reachable directly from outside, each branching into the
// other) entirely, which would otherwise leave the structurer walking
// an undetected cycle forever.
package loopfinder

import (
	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
)

// Dominators maps each reachable node to its immediate dominator. The
// entry node dominates itself and has no idom entry.
type Dominators map[graph.NodeID]graph.NodeID

// Loop is one natural loop: a header plus every node that can reach the
// header without leaving the loop.
type Loop struct {
	ID          int
	Header      graph.NodeID
	Nodes       map[graph.NodeID]bool
	Irreducible bool
}

// Result is the loop finder's output: the dominator tree, the discovered
// loops in deterministic preorder, and a lookup from node to its
// innermost enclosing loop.
type Result struct {
	Dom       Dominators
	Loops     []*Loop
	LoopOf    map[graph.NodeID]*Loop
	Postorder []graph.NodeID
}

// Compute runs the dominator computation and natural-loop discovery over
// g, reporting any irreducible region to bag (warning severity, spec's
// IrreducibleControlFlow) rather than failing the build.
func Compute(g *graph.Graph, bag *diag.Bag) *Result {
	order := reversePostorder(g)
	dom := computeDominators(g, order)

	loops := findLoops(g, order)

	// findLoops closes headers in reverse DFS preorder; reverse that so
	// loop IDs follow the DFS preorder of their headers.
	for i, j := 0, len(loops)-1; i < j; i, j = i+1, j-1 {
		loops[i], loops[j] = loops[j], loops[i]
	}
	for i, l := range loops {
		l.ID = i
	}

	loopOf := make(map[graph.NodeID]*Loop)
	// Assign innermost loop: pick the smallest-by-membership loop that
	// contains a node as its innermost enclosing loop.
	for _, id := range g.NodeIDs() {
		var best *Loop
		for _, l := range loops {
			if !l.Nodes[id] {
				continue
			}
			if best == nil || len(l.Nodes) < len(best.Nodes) {
				best = l
			}
		}
		if best != nil {
			loopOf[id] = best
		}
	}

	for _, l := range loops {
		if l.Irreducible {
			bag.Warn(diag.CodeIrreducibleControlFlow, g.Node(l.Header).Span, "loop headed at node %d has entries that bypass its header", int(l.Header))
		}
	}

	return &Result{Dom: dom, Loops: loops, LoopOf: loopOf, Postorder: order}
}

// lbState is one node's bookkeeping during Havlak's loop-finding pass:
// DFS preorder numbering for the ancestor test, the back/non-back
// predecessor split, union-find collapsing within a closed loop, and
// (once closed) the Loop it headers.
type lbState struct {
	node          graph.NodeID
	first, last   int // DFS preorder numbering; last is the max preorder number in this node's subtree
	visited       bool
	isSelfLoop    bool
	isIrreducible bool
	backPred      []*lbState
	nonBackPred   []*lbState
	union         *lbState
	loop          *Loop
}

func (lb *lbState) find() *lbState {
	if lb.union != lb {
		lb.union = lb.union.find()
	}
	return lb.union
}

func (lb *lbState) isAncestor(p *lbState) bool {
	return lb.first <= p.first && p.first <= lb.last
}

// findLoops runs Havlak's algorithm (Steps A-E, adapted from
// rsc-benchgraffiti's FindLoops) over g and returns every natural loop
// it discovers, each carrying the full flat set of member node ids
// (including any nested loop's members, so a containing loop's scope
// is never missing nodes that belong to an inner loop).
func findLoops(g *graph.Graph, order []graph.NodeID) []*Loop {
	lbs := make(map[graph.NodeID]*lbState, len(order))
	for _, id := range g.NodeIDs() {
		lb := &lbState{node: id}
		lb.union = lb
		lbs[id] = lb
	}

	// Step A: DFS preorder numbering from entry.
	var depthFirst []*lbState
	counter := 0
	var search func(graph.NodeID)
	search = func(id graph.NodeID) {
		lb := lbs[id]
		lb.visited = true
		counter++
		lb.first = counter
		depthFirst = append(depthFirst, lb)
		for _, s := range g.Successors(id) {
			if !lbs[s].visited {
				search(s)
			}
		}
		lb.last = counter
	}
	search(g.Entry)

	// Step B: classify every predecessor edge as a back edge (target is
	// a DFS-tree ancestor of source) or not, in DFS preorder.
	for _, w := range depthFirst {
		for _, pred := range g.Predecessors(w.node) {
			lbb, ok := lbs[pred]
			if !ok || !lbb.visited {
				continue
			}
			if w.isAncestor(lbb) {
				w.backPred = append(w.backPred, lbb)
			} else {
				w.nonBackPred = append(w.nonBackPred, lbb)
			}
		}
	}

	// Step C/D/E: process headers in reverse DFS preorder so inner loop
	// headers close before the loops that enclose them, chasing
	// non-back predecessors through the union-find sets to pull in
	// every node of the strongly-connected region a header dominates
	// the name of, and flagging irreducibility when that chase reaches
	// a node outside the header's own DFS subtree.
	var loops []*Loop
	for i := len(depthFirst) - 1; i >= 0; i-- {
		w := depthFirst[i]

		var pool []*lbState
		for _, pred := range w.backPred {
			if pred == w {
				w.isSelfLoop = true
				continue
			}
			pool = appendUniqueLB(pool, pred.find())
		}

		for pi := 0; pi < len(pool); pi++ {
			x := pool[pi]
			for _, y := range x.nonBackPred {
				yDash := y.find()
				if !w.isAncestor(yDash) {
					w.isIrreducible = true
				} else if yDash != w {
					pool = appendUniqueLB(pool, yDash)
				}
			}
		}

		if len(pool) == 0 && !w.isSelfLoop {
			continue
		}

		l := &Loop{Header: w.node, Nodes: map[graph.NodeID]bool{w.node: true}, Irreducible: w.isIrreducible}
		for _, member := range pool {
			member.union = w
			l.Nodes[member.node] = true
			if member.loop != nil {
				for id := range member.loop.Nodes {
					l.Nodes[id] = true
				}
			}
		}
		w.loop = l
		loops = append(loops, l)
	}

	return loops
}

func appendUniqueLB(pool []*lbState, x *lbState) []*lbState {
	for _, p := range pool {
		if p == x {
			return pool
		}
	}
	return append(pool, x)
}

// reversePostorder returns node IDs in reverse-postorder from g.Entry,
// the order the dominator fixpoint converges fastest in.
func reversePostorder(g *graph.Graph) []graph.NodeID {
	visited := map[graph.NodeID]bool{}
	var post []graph.NodeID
	var visit func(graph.NodeID)
	visit = func(id graph.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, s := range g.Successors(id) {
			visit(s)
		}
		post = append(post, id)
	}
	visit(g.Entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// computeDominators runs the standard iterative dominator algorithm
// (Cooper, Harvey & Kennedy) over g, restricted to nodes reachable in
// order. Kept for diagnostic/debug consumers; natural-loop discovery
// itself no longer depends on dominance (see findLoops).
func computeDominators(g *graph.Graph, order []graph.NodeID) Dominators {
	index := make(map[graph.NodeID]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	dom := make(map[graph.NodeID]int, len(order)) // index into order, -1 = undefined
	for _, id := range order {
		dom[id] = -1
	}
	dom[g.Entry] = index[g.Entry]

	intersect := func(a, b int) int {
		for a != b {
			for a > b {
				a = dom[order[a]]
			}
			for b > a {
				b = dom[order[b]]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, id := range order {
			if id == g.Entry {
				continue
			}
			newIdom := -1
			for _, pred := range g.Predecessors(id) {
				pi, ok := index[pred]
				if !ok || dom[pred] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = pi
					continue
				}
				newIdom = intersect(newIdom, pi)
			}
			if newIdom != -1 && dom[id] != newIdom {
				dom[id] = newIdom
				changed = true
			}
		}
	}

	result := make(Dominators, len(order))
	for _, id := range order {
		if id != g.Entry && dom[id] != -1 {
			result[id] = order[dom[id]]
		}
	}
	return result
}
