package loopfinder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
	"github.com/cobolsharp/cobolsharp-go/internal/loopfinder"
)

func addStmt(b *graph.Builder) graph.NodeID {
	return b.AddNode(graph.Node{Kind: graph.KindStatement})
}

// TestSimpleReducibleLoop builds a single-header while-shaped loop (one
// branch node with a back edge from its own body) and checks it comes out
// as one non-irreducible loop covering exactly the header and the body.
func TestSimpleReducibleLoop(t *testing.T) {
	b := graph.NewBuilder()
	entry := addStmt(b)
	header := addStmt(b)
	body := addStmt(b)
	exit := addStmt(b)
	b.AddEdge(entry, header, graph.EdgeFall)
	b.AddEdge(header, exit, graph.EdgeTrue)
	b.AddEdge(header, body, graph.EdgeFalse)
	b.AddEdge(body, header, graph.EdgeFall)
	b.SetEntry(entry)
	b.SetExit(exit)
	g := b.Build()

	bag := &diag.Bag{}
	result := loopfinder.Compute(g, bag)

	require.Len(t, result.Loops, 1)
	loop := result.Loops[0]
	assert.Equal(t, header, loop.Header)
	assert.False(t, loop.Irreducible)
	assert.Equal(t, map[graph.NodeID]bool{header: true, body: true}, loop.Nodes)
	assert.Equal(t, 0, bag.Len())
	assert.Same(t, loop, result.LoopOf[body])
}

// TestIrreducibleCrossedBranches builds the classic irreducible shape: a
// branch reaching two nodes directly, each of which jumps into the other,
// so neither dominates the cycle. Dominance-based back-edge detection
// finds zero loops here; DFS-ancestor classification must find one,
// flagged Irreducible, covering both nodes.
func TestIrreducibleCrossedBranches(t *testing.T) {
	b := graph.NewBuilder()
	entry := addStmt(b)
	a := addStmt(b)
	bb := addStmt(b)
	b.AddEdge(entry, a, graph.EdgeTrue)
	b.AddEdge(entry, bb, graph.EdgeFalse)
	b.AddEdge(a, bb, graph.EdgeJump)
	b.AddEdge(bb, a, graph.EdgeJump)
	b.SetEntry(entry)
	b.SetExit(a)
	g := b.Build()

	bag := &diag.Bag{}
	result := loopfinder.Compute(g, bag)

	require.Len(t, result.Loops, 1)
	loop := result.Loops[0]
	assert.True(t, loop.Irreducible)
	assert.Equal(t, map[graph.NodeID]bool{a: true, bb: true}, loop.Nodes)
	assert.True(t, bag.HasCode(diag.CodeIrreducibleControlFlow))
}

// TestNestedLoopsMergeInnerNodes builds an outer loop wrapping an inner
// loop and checks the outer loop's Nodes set transitively absorbs every
// node the inner loop owns, while LoopOf still resolves each node to its
// innermost enclosing loop.
func TestNestedLoopsMergeInnerNodes(t *testing.T) {
	b := graph.NewBuilder()
	entry := addStmt(b)
	outer := addStmt(b) // outer header (branch)
	exit := addStmt(b)  // outer loop's natural exit
	inner := addStmt(b) // inner header (branch)
	outerBody := addStmt(b)
	innerBody := addStmt(b)

	b.AddEdge(entry, outer, graph.EdgeFall)
	b.AddEdge(outer, exit, graph.EdgeTrue)
	b.AddEdge(outer, inner, graph.EdgeFalse)
	b.AddEdge(inner, outerBody, graph.EdgeTrue)
	b.AddEdge(inner, innerBody, graph.EdgeFalse)
	b.AddEdge(innerBody, inner, graph.EdgeFall) // inner back edge
	b.AddEdge(outerBody, outer, graph.EdgeFall) // outer back edge
	b.SetEntry(entry)
	b.SetExit(exit)
	g := b.Build()

	bag := &diag.Bag{}
	result := loopfinder.Compute(g, bag)

	require.Len(t, result.Loops, 2)

	var outerLoop, innerLoop *loopfinder.Loop
	for _, l := range result.Loops {
		switch l.Header {
		case outer:
			outerLoop = l
		case inner:
			innerLoop = l
		}
	}
	require.NotNil(t, outerLoop, "expected a loop headed at the outer branch")
	require.NotNil(t, innerLoop, "expected a loop headed at the inner branch")

	assert.False(t, outerLoop.Irreducible)
	assert.False(t, innerLoop.Irreducible)
	assert.Equal(t, map[graph.NodeID]bool{inner: true, innerBody: true}, innerLoop.Nodes)
	assert.Equal(t, map[graph.NodeID]bool{
		outer: true, outerBody: true, inner: true, innerBody: true,
	}, outerLoop.Nodes)

	assert.Same(t, innerLoop, result.LoopOf[innerBody])
	assert.Same(t, outerLoop, result.LoopOf[outerBody])
}
