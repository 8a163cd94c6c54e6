// Package render turns a reconstructed internal/ir.Tree back into human
// text: a pythonish pseudo-code listing (grounded on the original
// implementation's format.py PythonishFormatter, line-oriented with an
// indent() context manager) and a minimal HTML page with the same nesting
// expressed as foldable <details> elements.
//
// Both are explicitly the out-of-scope "downstream renderer" shell
// described in spec.md §6: the core pipeline ends at internal/ir.Tree, and
// nothing here feeds back into structuring. They exist so the CLI's
// `code`/`html` formats have something real to write.
package render

import (
	"fmt"
	"strings"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/ir"
)

// Code renders a single section's Structured Tree as indented pseudo-code,
// one COBOL section per "def".
func Code(tree *ir.Tree) string {
	var w codeWriter
	w.line(fmt.Sprintf("def %s:", tree.SectionName))
	w.indent++
	w.block(tree.Root)
	w.indent--
	w.line("")
	return w.b.String()
}

// codeWriter mirrors output.py's TextOutputter: it tracks indent depth and
// collapses consecutive blank lines, since stmt writes a blank line before
// and after every If/Loop (and after Goto/Return) for readability the way
// the original formatter does.
type codeWriter struct {
	b            strings.Builder
	indent       int
	lastWasBlank bool
}

func (w *codeWriter) line(text string) {
	if text == "" {
		if w.lastWasBlank {
			return
		}
		w.lastWasBlank = true
	} else {
		w.lastWasBlank = false
	}
	w.b.WriteString(strings.Repeat("    ", w.indent))
	w.b.WriteString(text)
	w.b.WriteString("\n")
}

func (w *codeWriter) block(n ir.Node) {
	items := flatten(n)
	if len(items) == 0 {
		w.line("pass")
		return
	}
	for _, item := range items {
		w.stmt(item)
	}
}

// flatten turns a single Seq into its items, or wraps any other node kind
// (including a bare Leaf produced when a Seq collapsed to one child) into
// a one-element slice so block() always iterates a list.
func flatten(n ir.Node) []ir.Node {
	if n == nil {
		return nil
	}
	if seq, ok := n.(ir.Seq); ok {
		return seq.Items
	}
	return []ir.Node{n}
}

func (w *codeWriter) stmt(n ir.Node) {
	switch s := n.(type) {
	case ir.If:
		w.line("")
		not := ""
		if s.Inverted {
			not = "not "
		}
		w.line(fmt.Sprintf("if %s%s:", not, s.Condition))
		w.indent++
		w.block(s.Then)
		w.indent--
		if s.Else != nil {
			w.line("else:")
			w.indent++
			w.block(s.Else)
			w.indent--
		}
		w.line("")

	case ir.Loop:
		w.line("")
		switch s.Kind {
		case ir.LoopWhile:
			w.line(fmt.Sprintf("while %s:", s.Condition))
		default:
			w.line("while True:")
		}
		w.indent++
		w.block(s.Body)
		w.indent--
		w.line("")

	case ir.Break:
		w.line(fmt.Sprintf("break  # loop %d", s.LoopID))

	case ir.Continue:
		w.line(fmt.Sprintf("continue  # loop %d", s.LoopID))

	case ir.Label:
		w.line("")
		w.line(fmt.Sprintf("<<<%s>>>", s.Name))

	case ir.Goto:
		w.line(fmt.Sprintf("goto %s", s.Label))
		w.line("")

	case ir.Return:
		w.line("return")
		w.line("")

	case ir.Call:
		w.line(fmt.Sprintf("%s()", s.Target))

	case ir.Comment:
		w.line("# " + s.Text)

	case ir.Leaf:
		w.line(leafText(s.Statement))

	case ir.Seq:
		w.block(s)

	default:
		w.line(fmt.Sprintf("# unknown node %T", n))
	}
}

func leafText(st cobol.Statement) string {
	switch v := st.(type) {
	case cobol.Other:
		return v.Text
	case cobol.If:
		return "IF " + v.Condition
	case cobol.GoTo:
		return "GO TO " + v.Target
	case cobol.Perform:
		return "PERFORM " + v.Target
	default:
		return fmt.Sprintf("%T", st)
	}
}
