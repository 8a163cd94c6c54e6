package cobolxml_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/cobolxml"
)

const sampleXML = `<program name="SAMPLE">
  <procedure-division>
    <section name="main" line="1">
      <paragraph name="main-para" line="2">
        <sentence line="3">
          <other text="move 'x' to a" line="3"/>
          <if condition="a = 'x'" line="4">
            <then><other text="move 1 to b" line="5"/></then>
            <else><go-to target="main-para" line="6"/></else>
          </if>
          <perform target="sub" line="7"/>
          <stop-run line="8"/>
        </sentence>
      </paragraph>
    </section>
  </procedure-division>
</program>`

func TestParse(t *testing.T) {
	prog, err := cobolxml.Parse(strings.NewReader(sampleXML))
	require.NoError(t, err)

	assert.Equal(t, "SAMPLE", prog.Name)
	require.Len(t, prog.Procedure.Sections, 1)

	section := prog.Procedure.Sections[0]
	assert.Equal(t, "main", section.Name)
	require.Len(t, section.Paragraphs, 1)

	para := section.Paragraphs[0]
	require.Len(t, para.Sentences, 1)
	stmts := para.Sentences[0].Statements
	require.Len(t, stmts, 4)

	other, ok := stmts[0].(cobol.Other)
	require.True(t, ok)
	assert.Equal(t, "move 'x' to a", other.Text)

	ifStmt, ok := stmts[1].(cobol.If)
	require.True(t, ok)
	assert.Equal(t, "a = 'x'", ifStmt.Condition)
	require.Len(t, ifStmt.Then, 1)
	require.Len(t, ifStmt.Else, 1)
	_, ok = ifStmt.Else[0].(cobol.GoTo)
	assert.True(t, ok)

	perform, ok := stmts[2].(cobol.Perform)
	require.True(t, ok)
	assert.Equal(t, "sub", perform.Target)

	_, ok = stmts[3].(cobol.StopRun)
	assert.True(t, ok)
}

func TestParseInvalidStatement(t *testing.T) {
	bad := `<program name="P"><procedure-division>
    <section name="s" line="1"><paragraph name="p" line="1">
      <sentence line="1"><unknown-thing line="1"/></sentence>
    </paragraph></section>
  </procedure-division></program>`
	_, err := cobolxml.Parse(strings.NewReader(bad))
	assert.Error(t, err)
}

// Dump must re-Parse to a value equal to the program it was built from, so
// the CLI's `xml` debug format is a faithful view of the parser's output.
func TestDumpRoundTrips(t *testing.T) {
	prog, err := cobolxml.Parse(strings.NewReader(sampleXML))
	require.NoError(t, err)

	data, err := cobolxml.Dump(prog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<program")

	reparsed, err := cobolxml.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)

	assert.Equal(t, prog, reparsed)
}
