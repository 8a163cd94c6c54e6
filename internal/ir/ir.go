// Package ir defines the Structured Tree: the final, emitter-facing output
// of the reconstruction pipeline. Shape is grounded on the original
// implementation's structure.py (Method/Block/If/Loop/Goto/GotoLabel), with
// Go sum-type modeling via a Node interface and type switches instead of a
// class hierarchy.
package ir

import "github.com/cobolsharp/cobolsharp-go/internal/cobol"

// Node is any element of the Structured Tree. Concrete kinds are Seq, If,
// Loop (while or forever, see LoopKind), Break, Continue, Label, Goto,
// Leaf, Call, Return, and Comment.
type Node interface {
	irNode()
}

// Seq is a straight-line sequence of nodes.
type Seq struct {
	Items []Node
}

func (Seq) irNode() {}

// Leaf wraps a single non-control-flow COBOL statement (MOVE, COMPUTE,
// DISPLAY, ...), carried through unchanged for the emitter to render.
type Leaf struct {
	Statement cobol.Statement
}

func (Leaf) irNode() {}

// If is a structured conditional. Inverted records that the emitted Then
// is the source's else-arm under the negated condition: internal/structurer
// swaps the arms when the then-arm is empty, so no empty then block is
// emitted (supplemented feature, grounded on structure.py's
// If.invert_condition). Whether either arm terminates is not considered.
type If struct {
	Condition string
	Then      Node
	Else      Node // nil when there is no else arm
	Inverted  bool
	Span      cobol.Span
}

func (If) irNode() {}

// LoopKind distinguishes a pre-tested while loop from an unconditional one.
type LoopKind int

const (
	LoopWhile LoopKind = iota
	LoopForever
)

// Loop is a structured loop. Condition is only meaningful when Kind is
// LoopWhile.
type Loop struct {
	Kind      LoopKind
	Condition string
	Body      Node
	LoopID    int
	Span      cobol.Span
}

func (Loop) irNode() {}

// Break exits the loop identified by LoopID (spec: BreakLoop).
type Break struct {
	LoopID int
}

func (Break) irNode() {}

// Continue jumps to the next iteration test of the loop identified by
// LoopID (spec: ContinueLoop).
type Continue struct {
	LoopID int
}

func (Continue) irNode() {}

// Label names a point a Goto can target, emitted only for edges the
// structurer could not express as break/continue/if nesting.
type Label struct {
	Name string
}

func (Label) irNode() {}

// Goto is an unstructured jump retained because duplicating the
// post-join code was judged more costly than a labeled goto (spec §4.6),
// or because the region was irreducible.
type Goto struct {
	Label string
}

func (Goto) irNode() {}

// Call is a PERFORM of another paragraph or section that returns control
// afterward.
type Call struct {
	Target string
	Span   cobol.Span
}

func (Call) irNode() {}

// Return is GOBACK / EXIT PROGRAM: leaves the whole program.
type Return struct {
	Span cobol.Span
}

func (Return) irNode() {}

// Comment is a non-executable annotation the structurer attaches to
// explain a cost-based decision, surfaced only when
// config.EmitDiagnosticAnnotations is set.
type Comment struct {
	Text string
}

func (Comment) irNode() {}

// Tree is the reconstructed output for one section: its name and the
// structured body. Diagnostics are not stored here; they accumulate on
// the diag.Bag passed to the pipeline.
type Tree struct {
	SectionName string
	Root        Node
}
