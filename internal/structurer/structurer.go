// Package structurer is the Flattener: it walks a structgraph-collapsed,
// loop-annotated graph and emits the Structured Tree (internal/ir).
//
// Every merge point (a node with more than one predecessor) is visited at
// most once in full; later arrivals emit a labeled goto instead of
// re-emitting its content, unless the estimated cost of duplicating it
// at every arrival is cheaper than the configured goto overhead (spec's
// cost_dup vs cost_goto, internal/config's FixedGotoOverhead and
// DuplicationMultiplier). If-condition inversion (structure.py's
// invert_condition) collapses an if whose "then" arm is empty into a
// negated single-armed if, grounded on the original implementation.
package structurer

import (
	"fmt"
	"strconv"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/config"
	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/graph"
	"github.com/cobolsharp/cobolsharp-go/internal/ir"
	"github.com/cobolsharp/cobolsharp-go/internal/loopfinder"
	"github.com/cobolsharp/cobolsharp-go/internal/scopegraph"
)

type structurer struct {
	g      *graph.Graph
	scopes *scopegraph.Scopes
	cfg    *config.Config
	bag    *diag.Bag

	headerToLoop map[graph.NodeID]*loopfinder.Loop
	openLoops    []int // innermost last

	// irreducibleNodes holds every node belonging to a loop the loop finder
	// flagged Irreducible: such a region has no single header that every
	// entry passes through, so it is never wrapped in a structured Loop
	// (see headerToLoop below) and instead falls back to spec's "last
	// resort" -- every merge point inside it always resolves to Label+Goto,
	// skipping the cost_dup/cost_goto comparison entirely.
	irreducibleNodes map[graph.NodeID]bool

	gotoDecision map[graph.NodeID]bool
	emittedLabel map[graph.NodeID]bool
	indegree     map[graph.NodeID]int
	rationale    map[graph.NodeID]string
}

// Structure runs the flattener over g (already collapsed by structgraph
// and annotated by loopfinder/scopegraph), producing the Structured Tree
// for one section.
func Structure(g *graph.Graph, lr *loopfinder.Result, scopes *scopegraph.Scopes, cfg *config.Config, bag *diag.Bag, sectionName string) *ir.Tree {
	s := &structurer{
		g:                g,
		scopes:           scopes,
		cfg:              cfg,
		bag:              bag,
		headerToLoop:     make(map[graph.NodeID]*loopfinder.Loop, len(lr.Loops)),
		irreducibleNodes: make(map[graph.NodeID]bool),
		gotoDecision:     make(map[graph.NodeID]bool),
		emittedLabel:     make(map[graph.NodeID]bool),
		indegree:         make(map[graph.NodeID]int),
		rationale:        make(map[graph.NodeID]string),
	}
	for _, l := range lr.Loops {
		if l.Irreducible {
			for id := range l.Nodes {
				s.irreducibleNodes[id] = true
			}
			continue
		}
		s.headerToLoop[l.Header] = l
	}
	for _, id := range g.NodeIDs() {
		s.indegree[id] = len(g.In(id))
	}
	s.decideGotoVsDuplicate()

	items := s.structureSeq(g.Entry, g.Exit)
	return &ir.Tree{SectionName: sectionName, Root: seqOf(items)}
}

// decideGotoVsDuplicate chooses, for every merge point, whether repeated
// arrivals duplicate its content or jump to a single emitted copy via
// goto (spec §4.6's cost model). An exact tie favors goto, per §4.6's
// "pick the lower cost; on tie, prefer goto."
func (s *structurer) decideGotoVsDuplicate() {
	for _, id := range s.g.NodeIDs() {
		if s.indegree[id] <= 1 {
			continue
		}
		if _, isHeader := s.headerToLoop[id]; isHeader {
			continue // loop re-entry is Continue, never goto/duplicate
		}
		if s.irreducibleNodes[id] {
			s.gotoDecision[id] = true
			if s.cfg.EmitDiagnosticAnnotations {
				s.rationale[id] = fmt.Sprintf("join with %d predecessors inside an irreducible region: goto (no single-entry loop can represent it)", s.indegree[id])
			}
			continue
		}
		size := s.estimateSize(id)
		costDup := s.cfg.DuplicationMultiplier * (s.indegree[id] - 1) * size
		costGoto := s.cfg.FixedGotoOverhead + 1
		if costGoto <= costDup {
			s.gotoDecision[id] = true
		}
		if s.cfg.EmitDiagnosticAnnotations {
			s.rationale[id] = fmt.Sprintf("join with %d predecessors: cost_dup=%d cost_goto=%d, chose %s",
				s.indegree[id], costDup, costGoto, decisionName(s.gotoDecision[id]))
		}
	}
}

func decisionName(useGoto bool) string {
	if useGoto {
		return "goto"
	}
	return "duplicate"
}

// estimateSize counts statements from start until the next merge point,
// branch, or dead end: a local proxy for how much code a duplicate copy
// would cost.
func (s *structurer) estimateSize(start graph.NodeID) int {
	size := 0
	cur := start
	visited := map[graph.NodeID]bool{}
	for !visited[cur] {
		visited[cur] = true
		n := s.g.Node(cur)
		if n.Kind != graph.KindStatement {
			return size
		}
		if n.Block != nil {
			size += len(n.Block)
		} else {
			size++
		}
		out := s.g.Out(cur)
		if len(out) != 1 {
			return size
		}
		next := out[0].To
		if s.indegree[next] > 1 {
			return size
		}
		cur = next
	}
	return size
}

func (s *structurer) checkBreak(from, to graph.NodeID) (int, bool) {
	for _, loopID := range s.openLoops {
		scope := s.scopes.ByLoopID[loopID]
		for _, ex := range scope.Exits {
			if ex.From == from && ex.To == to {
				return loopID, true
			}
		}
	}
	return 0, false
}

func (s *structurer) isOpenLoopHeader(id graph.NodeID) (int, bool) {
	for _, loopID := range s.openLoops {
		if s.scopes.ByLoopID[loopID].Loop.Header == id {
			return loopID, true
		}
	}
	return 0, false
}

func labelNameFor(g *graph.Graph, id graph.NodeID) string {
	n := g.Node(id)
	switch n.Kind {
	case graph.KindJoin:
		return n.Label
	case graph.KindSectionExit:
		return "__exit"
	default:
		return "L" + strconv.Itoa(int(id))
	}
}

func conditionText(n graph.Node) string {
	switch st := n.Statement.(type) {
	case cobol.If:
		return st.Condition
	case cobol.PerformInline:
		return st.Until
	default:
		return ""
	}
}

// structureSeq walks forward from cur, emitting ir.Nodes, stopping when
// it reaches stop (a clean, unannotated continuation), an open loop's own
// header (emits Continue), a terminal node (Return/cross-section Goto),
// or a merge point already claimed by an earlier arrival (emits Goto).
func (s *structurer) structureSeq(cur, stop graph.NodeID) []ir.Node {
	return s.structureSeqFrom(cur, stop, false)
}

// structureSeqFrom is structureSeq's implementation. skipHeader, true for
// exactly the first iteration, suppresses the isOpenLoopHeader/goto/header
// checks for cur: a Forever loop's body starts at its own header, which
// is an ordinary node carrying real content rather than a marker, so
// without this the walk would immediately recognize its own freshly
// opened loop and either emit a premature Continue or re-enter
// structureLoop for itself instead of rendering the header's content.
func (s *structurer) structureSeqFrom(cur, stop graph.NodeID, skipHeader bool) []ir.Node {
	var items []ir.Node
	for {
		if cur == stop {
			return items
		}
		if !skipHeader {
			if loopID, ok := s.isOpenLoopHeader(cur); ok {
				items = append(items, ir.Continue{LoopID: loopID})
				return items
			}
			if s.gotoDecision[cur] {
				if s.emittedLabel[cur] {
					items = append(items, ir.Goto{Label: labelNameFor(s.g, cur)})
					return items
				}
				s.emittedLabel[cur] = true
				if s.cfg.EmitDiagnosticAnnotations {
					if rationale, ok := s.rationale[cur]; ok {
						items = append(items, ir.Comment{Text: rationale})
					}
				}
				items = append(items, ir.Label{Name: labelNameFor(s.g, cur)})
			}
			if loop, ok := s.headerToLoop[cur]; ok {
				loopNode, after := s.structureLoop(loop)
				items = append(items, loopNode)
				if after == graph.Invalid {
					return items
				}
				cur = after
				continue
			}
		}
		skipHeader = false

		n := s.g.Node(cur)
		switch n.Kind {
		case graph.KindStatement:
			appendLeaves(&items, n)
			out := s.g.Out(cur)
			if len(out) == 0 {
				return items
			}
			succ := out[0].To
			if loopID, ok := s.checkBreak(cur, succ); ok {
				items = append(items, ir.Break{LoopID: loopID})
				return items
			}
			cur = succ

		case graph.KindPerformCall:
			perform := n.Statement.(cobol.Perform)
			items = append(items, ir.Call{Target: perform.Target, Span: n.Span})
			var succ graph.NodeID
			found := false
			for _, e := range s.g.Out(cur) {
				if e.Kind == graph.EdgeFall {
					succ = e.To
					found = true
				}
			}
			if !found {
				return items
			}
			if loopID, ok := s.checkBreak(cur, succ); ok {
				items = append(items, ir.Break{LoopID: loopID})
				return items
			}
			cur = succ

		case graph.KindBranch:
			ifNode, after := s.structureIf(cur, stop)
			items = append(items, ifNode)
			if after == graph.Invalid {
				return items
			}
			cur = after

		case graph.KindExitProgram:
			items = append(items, ir.Return{Span: n.Span})
			return items

		case graph.KindGotoMarker:
			items = append(items, ir.Goto{Label: n.Label})
			return items

		case graph.KindJoin, graph.KindSectionEntry:
			out := s.g.Out(cur)
			if len(out) == 0 {
				return items
			}
			cur = out[0].To

		default:
			return items
		}
	}
}

// appendLeaves renders a statement node's payload, skipping the trailing
// control-flow statement (GO TO / EXIT SECTION / NEXT SENTENCE) if one
// terminates the block: its effect is already captured by the edge the
// caller follows next, not by rendering its own text.
func appendLeaves(items *[]ir.Node, n graph.Node) {
	stmts := n.Block
	if stmts == nil && n.Statement != nil {
		stmts = []cobol.Statement{n.Statement}
	}
	for i, st := range stmts {
		switch st.(type) {
		case cobol.GoTo, cobol.ExitSection, cobol.NextSentence:
			if i == len(stmts)-1 {
				continue
			}
		}
		*items = append(*items, ir.Leaf{Statement: st})
	}
}

func (s *structurer) structureLoop(loop *loopfinder.Loop) (ir.Node, graph.NodeID) {
	scope := s.scopes.ByLoopID[loop.ID]
	s.openLoops = append(s.openLoops, loop.ID)
	defer func() { s.openLoops = s.openLoops[:len(s.openLoops)-1] }()

	header := s.g.Node(loop.Header)

	if scope.Kind == scopegraph.KindWhile {
		var bodyStart graph.NodeID
		for _, e := range s.g.Out(loop.Header) {
			if !(e.To == scope.WhileExit.To && e.Kind == scope.WhileExit.Kind) {
				bodyStart = e.To
			}
		}
		bodyItems := s.structureSeq(bodyStart, loop.Header)
		return ir.Loop{
			Kind:      ir.LoopWhile,
			Condition: conditionText(header),
			Body:      seqOf(bodyItems),
			LoopID:    loop.ID,
			Span:      header.Span,
		}, scope.WhileExit.To
	}

	// stop is Invalid, not loop.Header: the header itself carries real
	// content (it's an ordinary statement/branch/join node, not a marker),
	// so stopping as soon as cur==loop.Header would end the body before
	// it ever rendered anything. skipHeader=true for the same reason on
	// the first step; the walk ends when it reaches the header again
	// through isOpenLoopHeader, emitting Continue.
	bodyItems := s.structureSeqFrom(loop.Header, graph.Invalid, true)
	after := graph.Invalid
	if len(scope.Exits) > 0 {
		after = scope.Exits[0].To
	}
	return ir.Loop{
		Kind:   ir.LoopForever,
		Body:   seqOf(bodyItems),
		LoopID: loop.ID,
		Span:   header.Span,
	}, after
}

// structureIf builds the structured If for the branch at branchID. Either
// arm short-circuits to a Break if that arm's edge was classified as a
// loop exit by scopegraph; otherwise it recurses bounded by outerStop,
// relying on the merge-point goto/duplicate machinery in structureSeq to
// keep a shared tail from being structured more than once.
func (s *structurer) structureIf(branchID, outerStop graph.NodeID) (ir.Node, graph.NodeID) {
	n := s.g.Node(branchID)
	var trueTo, falseTo graph.NodeID
	for _, e := range s.g.Out(branchID) {
		switch e.Kind {
		case graph.EdgeTrue:
			trueTo = e.To
		case graph.EdgeFalse:
			falseTo = e.To
		}
	}

	thenLoopID, thenIsBreak := s.checkBreak(branchID, trueTo)
	elseLoopID, elseIsBreak := s.checkBreak(branchID, falseTo)

	var thenItems, elseItems []ir.Node
	after := outerStop

	switch {
	case thenIsBreak && elseIsBreak:
		thenItems = []ir.Node{ir.Break{LoopID: thenLoopID}}
		elseItems = []ir.Node{ir.Break{LoopID: elseLoopID}}
		after = graph.Invalid
	case thenIsBreak:
		thenItems = []ir.Node{ir.Break{LoopID: thenLoopID}}
		elseItems = s.structureSeq(falseTo, outerStop)
	case elseIsBreak:
		elseItems = []ir.Node{ir.Break{LoopID: elseLoopID}}
		thenItems = s.structureSeq(trueTo, outerStop)
	default:
		thenItems = s.structureSeq(trueTo, outerStop)
		elseItems = s.structureSeq(falseTo, outerStop)
	}

	thenEmpty := len(thenItems) == 0 && trueTo == outerStop && !thenIsBreak
	elseEmpty := len(elseItems) == 0 && falseTo == outerStop && !elseIsBreak

	ifNode := ir.If{Condition: conditionText(n), Span: n.Span}
	switch {
	case elseEmpty:
		ifNode.Then = seqOf(thenItems)
	case thenEmpty:
		ifNode.Inverted = true
		ifNode.Then = seqOf(elseItems)
		if s.cfg.EmitDiagnosticAnnotations {
			ifNode.Then = seqOf(append([]ir.Node{ir.Comment{
				Text: "condition inverted: the then-arm was empty, so the else-arm was promoted and negated",
			}}, elseItems...))
		}
	default:
		ifNode.Then = seqOf(thenItems)
		if len(elseItems) > 0 {
			ifNode.Else = seqOf(elseItems)
		}
	}
	return ifNode, after
}

func seqOf(items []ir.Node) ir.Node {
	if len(items) == 1 {
		return items[0]
	}
	return ir.Seq{Items: items}
}
