// Package stmtgraph builds one internal/graph.Graph per PROCEDURE DIVISION
// section from the internal/cobol tree: the Statement Graph Builder stage.
//
// Each section is structured independently (PERFORM never inlines the
// target's body into the caller's graph — it becomes a call site that
// always falls through to the following statement, exactly like any other
// non-branching statement, with an auxiliary PerformCall edge kept only
// for cross-reference and dotgraph rendering). This mirrors how
// internal/astcache keys its cache entries by section name: the unit of
// reconstruction is the section, not the whole program.
package stmtgraph

import (
	"fmt"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
)

// labelEntry records where a paragraph or section name resolves to.
type labelEntry struct {
	section string
	node    graph.NodeID
}

// Result holds the per-section graphs built from a program, keyed by
// section name, plus the section names in source order.
type Result struct {
	Sections map[string]*graph.Graph
	Order    []string
}

// Build runs the Statement Graph Builder stage over the whole program,
// returning one graph per section. Fatal errors (UnresolvedLabel,
// UnsupportedPerformRange) abort the whole build; everything else
// accumulates on bag.
func Build(prog *cobol.Program, bag *diag.Bag) (*Result, error) {
	if prog.Procedure == nil || len(prog.Procedure.Sections) == 0 {
		return &Result{Sections: map[string]*graph.Graph{}}, nil
	}

	labels, sectionEntryNames := resolveLabels(prog, bag)

	res := &Result{Sections: make(map[string]*graph.Graph, len(prog.Procedure.Sections))}
	for _, section := range prog.Procedure.Sections {
		g, err := buildSection(section, labels, bag)
		if err != nil {
			return nil, err
		}
		res.Sections[section.Name] = g
		res.Order = append(res.Order, section.Name)
	}
	_ = sectionEntryNames
	return res, nil
}

// resolveLabels walks every section and paragraph name in document order,
// keeping the first occurrence of a name and reporting every later one as
// a duplicate (spec's "first wins" rule, grounded on analyze.py's
// resolve_tail_nodes sorting labels by source.from_char).
func resolveLabels(prog *cobol.Program, bag *diag.Bag) (map[string]labelEntry, map[string]bool) {
	labels := make(map[string]labelEntry)
	isSectionName := make(map[string]bool)

	for _, section := range prog.Procedure.Sections {
		if _, dup := labels[section.Name]; dup {
			bag.Warn(diag.CodeDuplicateName, section.Span, "section %q duplicates an earlier name", section.Name)
		} else {
			labels[section.Name] = labelEntry{section: section.Name}
			isSectionName[section.Name] = true
		}
		for _, para := range section.Paragraphs {
			if _, dup := labels[para.Name]; dup {
				bag.Warn(diag.CodeDuplicateName, para.Span, "paragraph %q duplicates an earlier name", para.Name)
				continue
			}
			labels[para.Name] = labelEntry{section: section.Name}
		}
	}
	return labels, isSectionName
}

type buildCtx struct {
	b            *graph.Builder
	labels       map[string]labelEntry
	curSection   string
	sectionExit  graph.NodeID
	nextSentence graph.NodeID
	bag          *diag.Bag
	externals    map[string]graph.NodeID // lazily created sentinel nodes for cross-section targets
}

func buildSection(section *cobol.Section, labels map[string]labelEntry, bag *diag.Bag) (*graph.Graph, error) {
	b := graph.NewBuilder()

	entry := b.AddNode(graph.Node{Kind: graph.KindSectionEntry, Label: section.Name, SectionName: section.Name, Span: section.Span})
	exit := b.AddNode(graph.Node{Kind: graph.KindSectionExit, Label: section.Name + "$exit", SectionName: section.Name, Span: section.Span})
	b.SetEntry(entry)
	b.SetExit(exit)

	ctx := &buildCtx{
		b:           b,
		labels:      labels,
		curSection:  section.Name,
		sectionExit: exit,
		bag:         bag,
		externals:   make(map[string]graph.NodeID),
	}

	// Re-resolve the local marker nodes for every paragraph in this
	// section, overriding the global label map's section-only entries so
	// in-section GoTo/PerformCall references land on this graph's own
	// nodes rather than the placeholder recorded during resolveLabels.
	localLabels := make(map[string]labelEntry, len(labels))
	for k, v := range labels {
		localLabels[k] = v
	}
	ctx.labels = localLabels

	markers := make([]graph.NodeID, len(section.Paragraphs))
	for i, para := range section.Paragraphs {
		markers[i] = b.AddNode(graph.Node{Kind: graph.KindJoin, Label: para.Name, SectionName: section.Name, Span: para.Span})
		if prev := localLabels[para.Name]; prev.section == section.Name && prev.node != graph.Invalid {
			continue // first occurrence within the section wins
		}
		localLabels[para.Name] = labelEntry{section: section.Name, node: markers[i]}
	}
	localLabels[section.Name] = labelEntry{section: section.Name, node: entry}

	if len(section.Paragraphs) == 0 {
		b.AddEdge(entry, exit, graph.EdgeFall)
		return b.Build(), nil
	}
	b.AddEdge(entry, markers[0], graph.EdgeFall)

	for i, para := range section.Paragraphs {
		after := exit
		if i+1 < len(markers) {
			after = markers[i+1]
		}
		bodyEntry, err := ctx.buildSentences(para.Sentences, after)
		if err != nil {
			return nil, err
		}
		b.AddEdge(markers[i], bodyEntry, graph.EdgeFall)
	}

	return b.Build(), nil
}

// buildSentences wires a paragraph's sentences in order, returning the
// entry node for sentences[0]. `after` is where control goes once the
// last sentence completes (the next paragraph's marker, or the section
// exit).
func (ctx *buildCtx) buildSentences(sentences []*cobol.Sentence, after graph.NodeID) (graph.NodeID, error) {
	if len(sentences) == 0 {
		return after, nil
	}
	rest, err := ctx.buildSentences(sentences[1:], after)
	if err != nil {
		return 0, err
	}

	savedNextSentence := ctx.nextSentence
	ctx.nextSentence = rest
	entry, err := ctx.buildSeq(sentences[0].Statements, rest)
	ctx.nextSentence = savedNextSentence
	return entry, err
}

// buildSeq wires stmts in order, returning the entry node. `next` is
// where control falls once the last statement in stmts completes.
func (ctx *buildCtx) buildSeq(stmts []cobol.Statement, next graph.NodeID) (graph.NodeID, error) {
	if len(stmts) == 0 {
		return next, nil
	}
	rest, err := ctx.buildSeq(stmts[1:], next)
	if err != nil {
		return 0, err
	}
	return ctx.buildStmt(stmts[0], rest)
}

func (ctx *buildCtx) buildStmt(stmt cobol.Statement, next graph.NodeID) (graph.NodeID, error) {
	b := ctx.b
	switch s := stmt.(type) {

	case cobol.Other:
		n := b.AddNode(graph.Node{Kind: graph.KindStatement, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		b.AddEdge(n, next, graph.EdgeFall)
		return n, nil

	case cobol.If:
		thenEntry, err := ctx.buildSeq(s.Then, next)
		if err != nil {
			return 0, err
		}
		elseEntry := next
		if s.Else != nil {
			elseEntry, err = ctx.buildSeq(s.Else, next)
			if err != nil {
				return 0, err
			}
		}
		branch := b.AddNode(graph.Node{Kind: graph.KindBranch, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		b.AddEdge(branch, thenEntry, graph.EdgeTrue)
		b.AddEdge(branch, elseEntry, graph.EdgeFalse)
		return branch, nil

	case cobol.GoTo:
		n := b.AddNode(graph.Node{Kind: graph.KindStatement, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		target, err := ctx.resolveJump(s.Target, s.Span)
		if err != nil {
			return 0, err
		}
		if ctx.labels[s.Target].section != ctx.curSection {
			ctx.bag.Warn(diag.CodeCrossSectionGoto, s.Span, "GO TO %s crosses into section %q", s.Target, ctx.labels[s.Target].section)
		}
		b.AddEdge(n, target, graph.EdgeJump)
		return n, nil

	case cobol.Perform:
		n := b.AddNode(graph.Node{Kind: graph.KindPerformCall, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		if s.ToThru != "" {
			return 0, diag.NewFatal(diag.CodeUnsupportedPerformRange, s.Span, "PERFORM %s THRU %s is not supported", s.Target, s.ToThru)
		}
		target, err := ctx.resolveJump(s.Target, s.Span)
		if err != nil {
			return 0, err
		}
		b.AddEdge(n, target, graph.EdgePerformCall)
		b.AddEdge(n, next, graph.EdgeFall)
		return n, nil

	case cobol.PerformInline:
		if !s.HasUntil {
			return ctx.buildSeq(s.Body, next)
		}
		test := b.AddNode(graph.Node{Kind: graph.KindBranch, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		bodyEntry, err := ctx.buildSeq(s.Body, test)
		if err != nil {
			return 0, err
		}
		// PERFORM UNTIL tests before each iteration: true means the
		// until-condition holds and the loop exits.
		b.AddEdge(test, next, graph.EdgeTrue)
		b.AddEdge(test, bodyEntry, graph.EdgeFalse)
		return test, nil

	case cobol.ExitSection:
		n := b.AddNode(graph.Node{Kind: graph.KindStatement, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		b.AddEdge(n, ctx.sectionExit, graph.EdgeJump)
		return n, nil

	case cobol.NextSentence:
		n := b.AddNode(graph.Node{Kind: graph.KindStatement, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		b.AddEdge(n, ctx.nextSentence, graph.EdgeJump)
		return n, nil

	case cobol.ExitProgram:
		n := b.AddNode(graph.Node{Kind: graph.KindExitProgram, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		return n, nil

	case cobol.StopRun:
		n := b.AddNode(graph.Node{Kind: graph.KindExitProgram, Statement: s, SectionName: ctx.curSection, Span: s.Span})
		return n, nil

	default:
		return 0, fmt.Errorf("stmtgraph: unhandled statement type %T", stmt)
	}
}

// resolveJump returns the node a GO TO or PERFORM target name resolves
// to. Same-section targets resolve to the real marker node; cross-section
// targets resolve to a local sentinel node: a dead end within this
// section's own graph that dotgraph draws as the edge's target and
// internal/structurer renders as a Goto to the target's name.
func (ctx *buildCtx) resolveJump(name string, span cobol.Span) (graph.NodeID, error) {
	entry, ok := ctx.labels[name]
	if !ok {
		return 0, diag.NewFatal(diag.CodeUnresolvedLabel, span, "no section or paragraph named %q", name)
	}
	if entry.section == ctx.curSection {
		return entry.node, nil
	}
	if sentinel, ok := ctx.externals[name]; ok {
		return sentinel, nil
	}
	sentinel := ctx.b.AddNode(graph.Node{Kind: graph.KindGotoMarker, Label: name, SectionName: entry.section})
	ctx.externals[name] = sentinel
	return sentinel, nil
}
