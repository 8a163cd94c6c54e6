package pipeline_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/cobolxml"
	"github.com/cobolsharp/cobolsharp-go/internal/config"
	"github.com/cobolsharp/cobolsharp-go/internal/diag"
	"github.com/cobolsharp/cobolsharp-go/internal/ir"
	"github.com/cobolsharp/cobolsharp-go/internal/pipeline"
)

func mustRun(t *testing.T, xmlSrc string) ([]*pipeline.SectionResult, *diag.Bag) {
	t.Helper()
	prog, err := cobolxml.Parse(strings.NewReader(xmlSrc))
	require.NoError(t, err)

	bag := diag.Bag{}
	results, err := pipeline.Run(prog, config.DefaultConfig(), &bag)
	require.NoError(t, err)
	return results, &bag
}

func findSection(t *testing.T, results []*pipeline.SectionResult, name string) *pipeline.SectionResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no section named %q in results", name)
	return nil
}

// countGotos walks a tree counting ir.Goto/ir.Label nodes.
func countGotos(n ir.Node) int {
	count := 0
	var walk func(ir.Node)
	walk = func(n ir.Node) {
		if n == nil {
			return
		}
		switch v := n.(type) {
		case ir.Goto, ir.Label:
			count++
		case ir.Seq:
			for _, item := range v.Items {
				walk(item)
			}
		case ir.If:
			walk(v.Then)
			walk(v.Else)
		case ir.Loop:
			walk(v.Body)
		}
	}
	walk(n)
	return count
}

// Scenario 1 (spec.md §8.1): a straight-line section with a perform and an
// exit program produces no gotos at all.
func TestStraightLineSection(t *testing.T) {
	src := `<program name="P">
  <procedure-division>
    <section name="main" line="1">
      <paragraph name="main-para" line="1">
        <sentence line="1">
          <other text="move 'x' to a" line="1"/>
          <perform target="sub" line="2"/>
          <exit-program line="3"/>
        </sentence>
      </paragraph>
    </section>
    <section name="sub" line="10">
      <paragraph name="sub-para" line="10">
        <sentence line="10">
          <other text="move 1 to c" line="10"/>
        </sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

	results, bag := mustRun(t, src)
	require.Equal(t, 0, bag.Len())

	main := findSection(t, results, "main")
	assert.Equal(t, 0, countGotos(main.Tree.Root))

	seq, ok := main.Tree.Root.(ir.Seq)
	require.True(t, ok, "expected Seq root, got %T", main.Tree.Root)
	require.Len(t, seq.Items, 3)
	_, ok = seq.Items[0].(ir.Leaf)
	require.True(t, ok, "expected Leaf first, got %T", seq.Items[0])
	call, ok := seq.Items[1].(ir.Call)
	require.True(t, ok, "expected Call, got %T", seq.Items[1])
	assert.Equal(t, "sub", call.Target)
	_, ok = seq.Items[2].(ir.Return)
	require.True(t, ok, "expected Return, got %T", seq.Items[2])
}

// Scenario 2 (spec.md §8.2): a GO TO that targets the section exit is
// absorbed into an early return, leaving no residual goto.
func TestSimpleIfWithGotoToExit(t *testing.T) {
	src := `<program name="P">
  <procedure-division>
    <section name="sub" line="1">
      <paragraph name="sub-para" line="1">
        <sentence line="1">
          <if condition="a = 'x'" line="1">
            <then>
              <other text="move 1 to b" line="2"/>
              <go-to target="sub-exit" line="3"/>
            </then>
          </if>
          <other text="move 2 to b" line="4"/>
        </sentence>
      </paragraph>
      <paragraph name="sub-exit" line="5">
        <sentence line="5">
          <exit-section line="5"/>
        </sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

	results, bag := mustRun(t, src)
	sub := findSection(t, results, "sub")
	assert.False(t, bag.HasCode("CROSS_SECTION_GOTO"))
	assert.Equal(t, 0, countGotos(sub.Tree.Root))

	var ifNode ir.If
	switch root := sub.Tree.Root.(type) {
	case ir.If:
		ifNode = root
	case ir.Seq:
		require.NotEmpty(t, root.Items)
		var ok bool
		ifNode, ok = root.Items[0].(ir.If)
		require.True(t, ok, "expected If first, got %T", root.Items[0])
	default:
		t.Fatalf("expected If or Seq root, got %T", sub.Tree.Root)
	}
	assert.Equal(t, "a = 'x'", ifNode.Condition)
	assert.True(t, containsLeafText(ifNode.Then, "move 1 to b"))

	// "go to sub-exit" diverts the then-arm entirely away from whatever
	// follows the if, so "move 2 to b" only ever runs when the condition
	// is false -- whether the flattener places it as the if's else arm or
	// as the following sibling statement, both renderings are equivalent
	// and either is acceptable here.
	assert.True(t, containsLeafText(ifNode.Else, "move 2 to b") || containsLeafText(sub.Tree.Root, "move 2 to b"))
}

// containsLeafText reports whether n contains an ir.Leaf wrapping a
// cobol.Other statement with the given text, anywhere in its subtree.
func containsLeafText(n ir.Node, text string) bool {
	if n == nil {
		return false
	}
	switch v := n.(type) {
	case ir.Leaf:
		other, ok := v.Statement.(cobol.Other)
		return ok && other.Text == text
	case ir.Seq:
		for _, item := range v.Items {
			if containsLeafText(item, text) {
				return true
			}
		}
		return false
	case ir.If:
		return containsLeafText(v.Then, text) || containsLeafText(v.Else, text)
	case ir.Loop:
		return containsLeafText(v.Body, text)
	default:
		return false
	}
}

// Scenario 4 (spec.md §8.4, simplified): a PERFORM UNTIL loop structures as
// a While, not a goto-laden Forever-with-break.
func TestPerformUntilStructuresAsWhile(t *testing.T) {
	src := `<program name="P">
  <procedure-division>
    <section name="count-up" line="1">
      <paragraph name="count-up-para" line="1">
        <sentence line="1">
          <perform-inline until="a &gt;= 10" line="1">
            <other text="add 1 to a" line="2"/>
          </perform-inline>
          <exit-program line="3"/>
        </sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

	results, bag := mustRun(t, src)
	require.Equal(t, 0, bag.Len())
	section := findSection(t, results, "count-up")

	seq, ok := section.Tree.Root.(ir.Seq)
	require.True(t, ok, "expected Seq root, got %T", section.Tree.Root)
	loop, ok := seq.Items[0].(ir.Loop)
	require.True(t, ok, "expected Loop first, got %T", seq.Items[0])
	assert.Equal(t, ir.LoopWhile, loop.Kind)
	assert.Equal(t, "a >= 10", loop.Condition)
}

// Scenario 3 (spec.md §8.3): a nested if where both the inner then-arm and
// the outer else-arm end in "next sentence", so both paths jump past the
// enclosing sentence into the tail statement. The inner if has no else-arm
// in the source, so its false edge leads straight to the tail; with a tail
// this short the flattener duplicates it into that arm too, rather than
// emitting a goto.
func TestNestedIfWithNextSentence(t *testing.T) {
	src := `<program name="P">
  <procedure-division>
    <section name="conv" line="1">
      <paragraph name="conv-para" line="1">
        <sentence line="1">
          <if condition="a not = 'x'" line="1">
            <then>
              <if condition="a = 'y'" line="2">
                <then>
                  <other text="move 0 to b" line="3"/>
                  <next-sentence line="4"/>
                </then>
              </if>
            </then>
            <else>
              <other text="move 1 to b" line="5"/>
              <next-sentence line="6"/>
            </else>
          </if>
        </sentence>
        <sentence line="7">
          <other text="move 2 to b" line="7"/>
          <exit-program line="8"/>
        </sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

	results, bag := mustRun(t, src)
	assert.Equal(t, 0, bag.Len())
	conv := findSection(t, results, "conv")

	var outer ir.If
	switch root := conv.Tree.Root.(type) {
	case ir.If:
		outer = root
	case ir.Seq:
		require.NotEmpty(t, root.Items)
		var ok bool
		outer, ok = root.Items[0].(ir.If)
		require.True(t, ok, "expected If first, got %T", root.Items[0])
	default:
		t.Fatalf("expected If or Seq root, got %T", conv.Tree.Root)
	}
	assert.Equal(t, "a not = 'x'", outer.Condition)

	// The inner if may surface as the then-arm directly or as its sole
	// statement, depending on whether the flattener wraps a single child
	// in a Seq; either is acceptable.
	var inner ir.If
	switch then := outer.Then.(type) {
	case ir.If:
		inner = then
	case ir.Seq:
		require.NotEmpty(t, then.Items)
		var ok bool
		inner, ok = then.Items[0].(ir.If)
		require.True(t, ok, "expected inner If, got %T", then.Items[0])
	default:
		t.Fatalf("expected If or Seq then-arm, got %T", outer.Then)
	}
	assert.Equal(t, "a = 'y'", inner.Condition)
	assert.True(t, containsLeafText(inner.Then, "move 0 to b"))

	// "next sentence" in both the innermost then-arm and the outer
	// else-arm diverts to the tail statement; whether the flattener
	// duplicates "move 2 to b" into every arm or emits a shared goto for
	// some of them, the text itself must appear somewhere in the tree.
	assert.True(t, containsLeafText(conv.Tree.Root, "move 1 to b"))
	assert.True(t, containsLeafText(conv.Tree.Root, "move 2 to b"))
}

// Scenario 5 (spec.md §8.5): a section falls into an infinite loop with no
// natural exit; a trailing paragraph nothing jumps to stays unreachable and
// is reported, not rendered.
func TestInfiniteLoopWithUnreachableTail(t *testing.T) {
	src := `<program name="P">
  <procedure-division>
    <section name="infinite" line="1">
      <paragraph name="main-para" line="1">
        <sentence line="1">
          <perform target="a" line="1"/>
        </sentence>
      </paragraph>
      <paragraph name="loop-para" line="2">
        <sentence line="2">
          <perform target="b" line="2"/>
          <go-to target="loop-para" line="3"/>
        </sentence>
      </paragraph>
      <paragraph name="tail-para" line="4">
        <sentence line="4">
          <perform target="unreached" line="4"/>
          <exit-program line="5"/>
        </sentence>
      </paragraph>
    </section>
    <section name="a" line="10">
      <paragraph name="a-para" line="10">
        <sentence line="10"><other text="move 1 to x" line="10"/></sentence>
      </paragraph>
    </section>
    <section name="b" line="20">
      <paragraph name="b-para" line="20">
        <sentence line="20"><other text="move 2 to y" line="20"/></sentence>
      </paragraph>
    </section>
    <section name="unreached" line="30">
      <paragraph name="unreached-para" line="30">
        <sentence line="30"><other text="move 3 to z" line="30"/></sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

	results, bag := mustRun(t, src)
	assert.True(t, bag.HasCode(diag.CodeUnreachableCode), "expected the unreferenced tail paragraph to be flagged unreachable")

	section := findSection(t, results, "infinite")
	seq, ok := section.Tree.Root.(ir.Seq)
	require.True(t, ok, "expected Seq root, got %T", section.Tree.Root)
	require.GreaterOrEqual(t, len(seq.Items), 2)

	call, ok := seq.Items[0].(ir.Call)
	require.True(t, ok, "expected Call first, got %T", seq.Items[0])
	assert.Equal(t, "a", call.Target)

	loop, ok := seq.Items[1].(ir.Loop)
	require.True(t, ok, "expected Loop second, got %T", seq.Items[1])
	assert.Equal(t, ir.LoopForever, loop.Kind)

	body, ok := loop.Body.(ir.Seq)
	require.True(t, ok, "expected Seq loop body, got %T", loop.Body)
	require.NotEmpty(t, body.Items)
	bodyCall, ok := body.Items[0].(ir.Call)
	require.True(t, ok, "expected Call first in loop body, got %T", body.Items[0])
	assert.Equal(t, "b", bodyCall.Target)

	last := body.Items[len(body.Items)-1]
	cont, ok := last.(ir.Continue)
	require.True(t, ok, "expected Continue last in loop body, got %T", last)
	assert.Equal(t, loop.LoopID, cont.LoopID)

	assert.Equal(t, 0, countGotos(section.Tree.Root))
}

// Scenario 6 (spec.md §8.6): two paragraphs form a 2-node cycle that is
// entered directly from both arms of an outer branch, so neither paragraph
// dominates the other -- an irreducible region. It must still come out as
// a terminating, labeled-goto rendering, with the condition reported.
func TestIrreducibleCrossedBranches(t *testing.T) {
	src := `<program name="P">
  <procedure-division>
    <section name="cross" line="1">
      <paragraph name="entry-para" line="1">
        <sentence line="1">
          <if condition="flag = 1" line="1">
            <then>
              <go-to target="a-para" line="2"/>
            </then>
            <else>
              <go-to target="b-para" line="3"/>
            </else>
          </if>
        </sentence>
      </paragraph>
      <paragraph name="a-para" line="4">
        <sentence line="4">
          <other text="move 1 to x" line="4"/>
          <go-to target="b-para" line="5"/>
        </sentence>
      </paragraph>
      <paragraph name="b-para" line="6">
        <sentence line="6">
          <other text="move 2 to y" line="6"/>
          <go-to target="a-para" line="7"/>
        </sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

	results, bag := mustRun(t, src)
	assert.True(t, bag.HasCode(diag.CodeIrreducibleControlFlow), "expected the crossed a-para/b-para cycle to be flagged irreducible")

	cross := findSection(t, results, "cross")
	ifNode, ok := cross.Tree.Root.(ir.If)
	require.True(t, ok, "expected If root, got %T", cross.Tree.Root)
	assert.Equal(t, "flag = 1", ifNode.Condition)

	assert.True(t, containsLeafText(cross.Tree.Root, "move 1 to x"))
	assert.True(t, containsLeafText(cross.Tree.Root, "move 2 to y"))
	// The region has no single dominating header, so the last-resort
	// rendering is labeled gotos rather than a structured loop: at least
	// one Label/Goto pair must remain, and the tree must still be finite
	// (this test itself terminates, proving no infinite recursion).
	assert.GreaterOrEqual(t, countGotos(cross.Tree.Root), 2)
}

// Determinism (spec.md §8 invariant): running the same parse tree through
// the pipeline twice yields byte-identical rendered pseudo-code.
func TestDeterministicOutput(t *testing.T) {
	src := `<program name="P">
  <procedure-division>
    <section name="main" line="1">
      <paragraph name="main-para" line="1">
        <sentence line="1">
          <if condition="a = 1" line="1">
            <then><other text="move 1 to b" line="2"/></then>
            <else><other text="move 2 to b" line="3"/></else>
          </if>
        </sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

	r1, _ := mustRun(t, src)
	r2, _ := mustRun(t, src)
	require.Len(t, r1, 1)
	require.Len(t, r2, 1)
	assert.Equal(t, r1[0].Tree, r2[0].Tree)
}
