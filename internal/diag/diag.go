// Package diag models diagnostics raised while reconstructing control flow:
// fatal builder errors returned as Go errors, and warnings/info accumulated
// on a Bag attached to the final tree.
//
// Adapted from the diagnostic/severity shape of
// malphas-lang-malphas-lang/internal/diag, trimmed to what this pipeline
// actually raises.
package diag

import (
	"fmt"

	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
)

// Severity classifies a diagnostic's impact.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code is a stable identifier for a diagnostic kind.
type Code string

const (
	// Fatal: the builder cannot produce a graph at all.
	CodeUnresolvedLabel         Code = "UNRESOLVED_LABEL"
	CodeUnsupportedPerformRange Code = "UNSUPPORTED_PERFORM_RANGE"

	// Warning: the graph is usable but something is noteworthy.
	CodeCrossSectionGoto       Code = "CROSS_SECTION_GOTO"
	CodeDuplicateName          Code = "DUPLICATE_NAME"
	CodeIrreducibleControlFlow Code = "IRREDUCIBLE_CONTROL_FLOW"

	// Info: the graph is fine, but part of the source is dead.
	CodeUnreachableCode Code = "UNREACHABLE_CODE"
)

// Diagnostic is one reconstruction-time finding.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Span     cobol.Span
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s (line %d)", d.Severity, d.Code, d.Message, d.Span.Line)
}

// Error implements the error interface so a fatal Diagnostic can be
// returned and wrapped with %w like any other error.
type Error struct {
	Diagnostic
}

func (e *Error) Error() string { return e.Diagnostic.String() }

// NewFatal builds a fatal Diagnostic wrapped as an error.
func NewFatal(code Code, span cobol.Span, format string, args ...any) error {
	return &Error{Diagnostic{
		Severity: SeverityFatal,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	}}
}

// Bag accumulates non-fatal diagnostics across a pipeline run. The zero
// value is ready to use.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic to the bag.
func (b *Bag) Add(severity Severity, code Code, span cobol.Span, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Severity: severity,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// Warn is shorthand for Add(SeverityWarning, ...).
func (b *Bag) Warn(code Code, span cobol.Span, format string, args ...any) {
	b.Add(SeverityWarning, code, span, format, args...)
}

// Info is shorthand for Add(SeverityInfo, ...).
func (b *Bag) Info(code Code, span cobol.Span, format string, args ...any) {
	b.Add(SeverityInfo, code, span, format, args...)
}

// All returns every diagnostic accumulated so far, in the order added.
func (b *Bag) All() []Diagnostic {
	return b.items
}

// HasCode reports whether any accumulated diagnostic carries the given
// code, used by tests asserting a specific warning fired.
func (b *Bag) HasCode(code Code) bool {
	for _, d := range b.items {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Len returns the number of accumulated diagnostics.
func (b *Bag) Len() int { return len(b.items) }

// Merge appends another bag's diagnostics onto this one.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}
