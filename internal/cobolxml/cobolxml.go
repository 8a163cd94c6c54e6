// Package cobolxml adapts a small literal XML schema into an
// internal/cobol tree, standing in for the real COBOL parser spec.md
// explicitly puts out of scope (§6: this system consumes an
// already-parsed typed tree). It exists so the CLI's positional
// source-file argument has something to parse end to end without a real
// COBOL grammar.
//
// Uses stdlib encoding/xml directly, justified as a stdlib concern in
// DESIGN.md, since it stands in for an
// external, non-core collaborator rather than a pipeline concern the
// teacher or pack libraries address. Statement sequences are ordered and
// heterogeneous (an <if> can sit between two <move>s), which plain
// struct-tag decoding can't express, so sentences decode via a custom
// UnmarshalXML that walks the token stream directly.
package cobolxml

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
)

// Parse decodes r as the cobolxml schema and builds a *cobol.Program.
func Parse(r io.Reader) (*cobol.Program, error) {
	var doc programXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("cobolxml: decoding document: %w", err)
	}
	return doc.toCobol(), nil
}

type programXML struct {
	XMLName   xml.Name     `xml:"program"`
	Name      string       `xml:"name,attr"`
	Procedure procedureXML `xml:"procedure-division"`
}

type procedureXML struct {
	Sections []sectionXML `xml:"section"`
}

type sectionXML struct {
	Name       string         `xml:"name,attr"`
	Line       int            `xml:"line,attr"`
	Paragraphs []paragraphXML `xml:"paragraph"`
}

type paragraphXML struct {
	Name      string        `xml:"name,attr"`
	Line      int           `xml:"line,attr"`
	Sentences []sentenceXML `xml:"sentence"`
}

type sentenceXML struct {
	Line       int
	Statements []cobol.Statement
}

// UnmarshalXML walks the sentence's child elements in document order,
// dispatching each to decodeStatement. This is the idiomatic way to
// decode an ordered, mixed-content sequence with encoding/xml: struct
// tags alone can't preserve sibling order across different element
// names.
func (s *sentenceXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	s.Line = attrInt(start, "line")
	stmts, err := decodeStatements(d, start.Name)
	if err != nil {
		return err
	}
	s.Statements = stmts
	return nil
}

// decodeStatements reads statement elements until the matching end tag
// named end is found, preserving order.
func decodeStatements(d *xml.Decoder, end xml.Name) ([]cobol.Statement, error) {
	var out []cobol.Statement
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stmt, err := decodeStatement(d, t)
			if err != nil {
				return nil, err
			}
			out = append(out, stmt)
		case xml.EndElement:
			if t.Name == end {
				return out, nil
			}
		}
	}
}

func decodeStatement(d *xml.Decoder, start xml.StartElement) (cobol.Statement, error) {
	line := attrInt(start, "line")
	span := cobol.Span{Line: line}

	switch start.Name.Local {
	case "move", "compute", "display", "other":
		text := attrString(start, "text")
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return cobol.Other{Span: span, Text: text}, nil

	case "if":
		return decodeIf(d, start, span)

	case "go-to":
		target := attrString(start, "target")
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return cobol.GoTo{Span: span, Target: target}, nil

	case "perform":
		target := attrString(start, "target")
		thru := attrString(start, "thru")
		until := attrString(start, "until")
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return cobol.Perform{Span: span, Target: target, ToThru: thru, Until: until, HasUntil: until != ""}, nil

	case "perform-inline":
		until := attrString(start, "until")
		body, err := decodeStatements(d, start.Name)
		if err != nil {
			return nil, err
		}
		return cobol.PerformInline{Span: span, Until: until, HasUntil: until != "", Body: body}, nil

	case "exit-section":
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return cobol.ExitSection{Span: span}, nil

	case "next-sentence":
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return cobol.NextSentence{Span: span}, nil

	case "exit-program", "goback":
		goback := start.Name.Local == "goback"
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return cobol.ExitProgram{Span: span, Goback: goback}, nil

	case "stop-run":
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return cobol.StopRun{Span: span}, nil

	default:
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("cobolxml: unknown statement element <%s> at line %d", start.Name.Local, line)
	}
}

// decodeIf reads an <if condition="..."><then>...</then>[<else>...</else>]</if>
// element. then/else are handled by name rather than by struct tag for
// the same ordered-mixed-content reason as decodeStatements.
func decodeIf(d *xml.Decoder, start xml.StartElement, span cobol.Span) (cobol.Statement, error) {
	condition := attrString(start, "condition")
	var thenStmts, elseStmts []cobol.Statement
	haveElse := false

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "then":
				thenStmts, err = decodeStatements(d, t.Name)
			case "else":
				haveElse = true
				elseStmts, err = decodeStatements(d, t.Name)
			default:
				err = fmt.Errorf("cobolxml: unexpected <%s> inside <if>", t.Name.Local)
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			if t.Name == start.Name {
				stmt := cobol.If{Span: span, Condition: condition, Then: thenStmts}
				if haveElse {
					stmt.Else = elseStmts
				}
				return stmt, nil
			}
		}
	}
}

func attrString(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func attrInt(start xml.StartElement, name string) int {
	var n int
	_, _ = fmt.Sscanf(attrString(start, name), "%d", &n)
	return n
}

// Dump renders prog back out in the cobolxml schema, for the CLI's `xml`
// debug format (spec.md §6's per-stage ".dot" views cover every later
// pipeline stage; this is the earliest one, showing what the parser
// itself produced before reachability pruning or structuring runs).
// Statement spans round-trip as the line attribute; the structured
// if/then/else and perform-inline bodies are walked recursively the same
// way decodeStatement walked them on the way in.
func Dump(prog *cobol.Program) ([]byte, error) {
	doc := fromCobol(prog)
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("cobolxml: encoding document: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func fromCobol(prog *cobol.Program) programXML {
	doc := programXML{Name: prog.Name}
	for _, s := range prog.Procedure.Sections {
		section := sectionXML{Name: s.Name, Line: s.Span.Line}
		for _, pr := range s.Paragraphs {
			para := paragraphXML{Name: pr.Name, Line: pr.Span.Line}
			for _, sent := range pr.Sentences {
				para.Sentences = append(para.Sentences, sentenceXML{Line: sent.Span.Line, Statements: sent.Statements})
			}
			section.Paragraphs = append(section.Paragraphs, para)
		}
		doc.Procedure.Sections = append(doc.Procedure.Sections, section)
	}
	return doc
}

// MarshalXML writes a sentence element and its statements in order. The
// statement element names mirror decodeStatement's switch exactly, so
// Dump output re-Parses to an identical *cobol.Program.
func (s sentenceXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "sentence"}
	start.Attr = []xml.Attr{{Name: xml.Name{Local: "line"}, Value: fmt.Sprintf("%d", s.Line)}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, st := range s.Statements {
		if err := encodeStatement(e, st); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func encodeStatement(e *xml.Encoder, st cobol.Statement) error {
	attr := func(name, value string) xml.Attr {
		return xml.Attr{Name: xml.Name{Local: name}, Value: value}
	}
	line := attr("line", fmt.Sprintf("%d", cobol.Location(st).Line))

	switch v := st.(type) {
	case cobol.Other:
		return writeEmpty(e, "other", line, attr("text", v.Text))
	case cobol.GoTo:
		return writeEmpty(e, "go-to", line, attr("target", v.Target))
	case cobol.Perform:
		return writeEmpty(e, "perform", line, attr("target", v.Target), attr("thru", v.ToThru), attr("until", v.Until))
	case cobol.PerformInline:
		start := xml.StartElement{Name: xml.Name{Local: "perform-inline"}, Attr: []xml.Attr{line, attr("until", v.Until)}}
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		for _, body := range v.Body {
			if err := encodeStatement(e, body); err != nil {
				return err
			}
		}
		return e.EncodeToken(start.End())
	case cobol.ExitSection:
		return writeEmpty(e, "exit-section", line)
	case cobol.NextSentence:
		return writeEmpty(e, "next-sentence", line)
	case cobol.ExitProgram:
		name := "exit-program"
		if v.Goback {
			name = "goback"
		}
		return writeEmpty(e, name, line)
	case cobol.StopRun:
		return writeEmpty(e, "stop-run", line)
	case cobol.If:
		start := xml.StartElement{Name: xml.Name{Local: "if"}, Attr: []xml.Attr{line, attr("condition", v.Condition)}}
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		if err := writeBlock(e, "then", v.Then); err != nil {
			return err
		}
		if v.Else != nil {
			if err := writeBlock(e, "else", v.Else); err != nil {
				return err
			}
		}
		return e.EncodeToken(start.End())
	default:
		return fmt.Errorf("cobolxml: unknown statement type %T", st)
	}
}

func writeBlock(e *xml.Encoder, name string, stmts []cobol.Statement) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, st := range stmts {
		if err := encodeStatement(e, st); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func writeEmpty(e *xml.Encoder, name string, attrs ...xml.Attr) error {
	var filtered []xml.Attr
	for _, a := range attrs {
		if a.Name.Local == "thru" || a.Name.Local == "until" {
			if a.Value == "" {
				continue
			}
		}
		filtered = append(filtered, a)
	}
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: filtered}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

func (p programXML) toCobol() *cobol.Program {
	prog := &cobol.Program{Name: p.Name, Procedure: &cobol.ProcedureDivision{}}
	for _, s := range p.Procedure.Sections {
		section := &cobol.Section{Name: s.Name, Span: cobol.Span{Line: s.Line}}
		for _, pr := range s.Paragraphs {
			para := &cobol.Paragraph{Name: pr.Name, Span: cobol.Span{Line: pr.Line}}
			for _, sent := range pr.Sentences {
				para.Sentences = append(para.Sentences, &cobol.Sentence{
					Span:       cobol.Span{Line: sent.Line},
					Statements: sent.Statements,
				})
			}
			section.Paragraphs = append(section.Paragraphs, para)
		}
		prog.Procedure.Sections = append(prog.Procedure.Sections, section)
	}
	return prog
}
