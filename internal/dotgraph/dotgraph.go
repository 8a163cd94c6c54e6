// Package dotgraph renders any pipeline-stage internal/graph.Graph as
// GraphViz ".dot" text, for the CLI's full_stmt_graph / stmt_graph /
// cobol_graph / acyclic_graph / scope_graph output formats (spec.md §6).
//
// Node/edge shape is grounded on the typed CFGBlock/CFGEdge model of
// l3aro-go-context-query's pkg/cfg/types.go (a block kind, an edge kind,
// and an optional condition string per edge) adapted here to walk
// internal/graph.Graph directly instead of building an intermediate JSON
// struct, since dotgraph only ever needs to print, not serialize.
package dotgraph

import (
	"fmt"
	"strings"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
)

// Write renders g as a GraphViz digraph named name.
func Write(name string, g *graph.Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n")

	for _, id := range g.NodeIDs() {
		n := g.Node(id)
		fmt.Fprintf(&b, "  n%d [label=\"%s\"%s];\n", id, escapeDotLabel(nodeLabel(n)), nodeStyle(n))
	}
	for _, id := range g.NodeIDs() {
		for _, e := range g.Out(id) {
			fmt.Fprintf(&b, "  n%d -> n%d [label=\"%s\"%s];\n", e.From, e.To, escapeDotLabel(e.Kind.String()), edgeStyle(e.Kind))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// escapeDotLabel escapes backslashes and quotes, then turns the real
// newlines nodeLabel inserts between fields into dot's own two-character
// "\n" line-break escape.
func escapeDotLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func nodeStyle(n graph.Node) string {
	switch n.Kind {
	case graph.KindBranch:
		return ", style=filled, fillcolor=lightyellow"
	case graph.KindLoopHeader:
		return ", style=filled, fillcolor=lightblue"
	case graph.KindSectionEntry, graph.KindSectionExit, graph.KindExitProgram:
		return ", style=filled, fillcolor=lightgray, shape=ellipse"
	case graph.KindGotoMarker:
		return ", style=filled, fillcolor=salmon"
	default:
		return ""
	}
}

func edgeStyle(k graph.EdgeKind) string {
	switch k {
	case graph.EdgeTrue:
		return ", color=darkgreen"
	case graph.EdgeFalse:
		return ", color=red"
	case graph.EdgePerformCall, graph.EdgePerformReturn:
		return ", style=dashed"
	case graph.EdgeJump:
		return ", style=dotted"
	default:
		return ""
	}
}

// nodeLabel builds the text shown inside a node's box: its kind, any
// loop id, and a short rendering of the statement(s) it carries.
func nodeLabel(n graph.Node) string {
	var b strings.Builder
	b.WriteString(n.Kind.String())
	if n.LoopID != 0 || n.Kind == graph.KindLoopHeader || n.Kind == graph.KindContinueMarker || n.Kind == graph.KindBreakMarker {
		fmt.Fprintf(&b, "(L%d)", n.LoopID)
	}
	if n.Label != "" {
		fmt.Fprintf(&b, "\n%s", n.Label)
	}
	if n.GotoTarget != graph.Invalid {
		fmt.Fprintf(&b, "\n-> n%d", n.GotoTarget)
	}
	switch {
	case len(n.Block) > 0:
		for _, st := range n.Block {
			b.WriteString("\n")
			b.WriteString(statementText(st))
		}
	case n.Statement != nil:
		b.WriteString("\n")
		b.WriteString(statementText(n.Statement))
	}
	return b.String()
}

// statementText renders one COBOL statement as a single display line.
// Any quotes or backslashes in its source text are escaped later by
// escapeDotLabel, not here.
func statementText(st cobol.Statement) string {
	switch v := st.(type) {
	case cobol.Other:
		return v.Text
	case cobol.If:
		return "IF " + v.Condition
	case cobol.GoTo:
		return "GO TO " + v.Target
	case cobol.Perform:
		return "PERFORM " + v.Target
	case cobol.PerformInline:
		return "PERFORM UNTIL " + v.Until
	case cobol.ExitSection:
		return "EXIT SECTION"
	case cobol.NextSentence:
		return "NEXT SENTENCE"
	case cobol.ExitProgram:
		return "EXIT PROGRAM"
	case cobol.StopRun:
		return "STOP RUN"
	default:
		return fmt.Sprintf("%T", st)
	}
}
