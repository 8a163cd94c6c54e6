package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/cobolsharp/cobolsharp-go/internal/ir"
)

// HTML renders every section's Structured Tree as one page of nested
// <details>/<summary> blocks, one per section, each foldable independently.
// This stands in for the original implementation's HtmlOutputter plus its
// browser-side folding script (spec.md §1's "small browser-side folding
// UI"), which is explicitly out of scope: <details> gives the same
// collapse/expand behavior natively, with no JS payload to maintain here.
func HTML(programName string, trees []*ir.Tree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(programName))
	b.WriteString("<style>body{font-family:monospace;white-space:pre}" +
		".kw{color:#8250df}.goto{color:#cf222e}</style>\n</head><body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(programName))

	for _, tree := range trees {
		fmt.Fprintf(&b, "<details open><summary><b>%s</b></summary>\n<div style=\"margin-left:1.5em\">\n",
			html.EscapeString(tree.SectionName))
		writeHTMLNode(&b, tree.Root)
		b.WriteString("</div></details>\n")
	}

	b.WriteString("</body></html>\n")
	return b.String()
}

func writeHTMLNode(b *strings.Builder, n ir.Node) {
	if n == nil {
		return
	}
	for _, item := range flatten(n) {
		writeHTMLItem(b, item)
	}
}

func writeHTMLItem(b *strings.Builder, n ir.Node) {
	switch s := n.(type) {
	case ir.If:
		not := ""
		if s.Inverted {
			not = "not "
		}
		fmt.Fprintf(b, "<details open><summary><span class=\"kw\">if</span> %s%s:</summary>\n<div style=\"margin-left:1.5em\">\n",
			not, html.EscapeString(s.Condition))
		writeHTMLNode(b, s.Then)
		b.WriteString("</div></details>\n")
		if s.Else != nil {
			b.WriteString("<details open><summary><span class=\"kw\">else</span>:</summary>\n<div style=\"margin-left:1.5em\">\n")
			writeHTMLNode(b, s.Else)
			b.WriteString("</div></details>\n")
		}

	case ir.Loop:
		label := "while True"
		if s.Kind == ir.LoopWhile {
			label = "while " + html.EscapeString(s.Condition)
		}
		fmt.Fprintf(b, "<details open><summary><span class=\"kw\">%s</span>:</summary>\n<div style=\"margin-left:1.5em\">\n", label)
		writeHTMLNode(b, s.Body)
		b.WriteString("</div></details>\n")

	case ir.Break:
		fmt.Fprintf(b, "<div><span class=\"kw\">break</span> (loop %d)</div>\n", s.LoopID)

	case ir.Continue:
		fmt.Fprintf(b, "<div><span class=\"kw\">continue</span> (loop %d)</div>\n", s.LoopID)

	case ir.Label:
		fmt.Fprintf(b, "<div id=\"%s\">&lt;&lt;&lt;%s&gt;&gt;&gt;</div>\n", html.EscapeString(s.Name), html.EscapeString(s.Name))

	case ir.Goto:
		fmt.Fprintf(b, "<div class=\"goto\"><a href=\"#%s\">goto %s</a></div>\n", html.EscapeString(s.Label), html.EscapeString(s.Label))

	case ir.Return:
		b.WriteString("<div><span class=\"kw\">return</span></div>\n")

	case ir.Call:
		fmt.Fprintf(b, "<div><a href=\"#%s\">%s()</a></div>\n", html.EscapeString(s.Target), html.EscapeString(s.Target))

	case ir.Comment:
		fmt.Fprintf(b, "<div style=\"color:#6e7781\">// %s</div>\n", html.EscapeString(s.Text))

	case ir.Leaf:
		fmt.Fprintf(b, "<div>%s</div>\n", html.EscapeString(leafText(s.Statement)))

	case ir.Seq:
		writeHTMLNode(b, s)
	}
}
