// Package diag implements the compiler's diagnostic contract: stable
// CE/CW codes, source spans, and best-effort multi-error collection per pass.
package diag

// Stage identifies which compiler phase produced the diagnostic.
type Stage string

const (
	StageLexer     Stage = "lexer"
	StageParser    Stage = "parser"
	StageCollect   Stage = "collect"
	StageScope     Stage = "scope"
	StageGenerics  Stage = "generics"
	StageTypeCheck Stage = "typecheck"
	StageBorrow    Stage = "borrow"
	StageCodegen   Stage = "codegen"
	StageDriver    Stage = "driver"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Code is a stable CEnnnn/CWnnnn identifier. The first two digits of the
// numeral encode the category: 0xxx collection, 1xxx scope (15xx-17xx
// generics), 2xxx type validation (25xx try/result propagation), 3xxx borrow
// check, 4xxx perks, 9xxx driver/codegen.
type Code string

// Span represents a location in source code.
type Span struct {
	Filename string
	Line     int
	Column   int
	Start    int
	End      int
}

// SpanStyle distinguishes the primary offending span from supporting context.
type SpanStyle int

const (
	StylePrimary SpanStyle = iota
	StyleSecondary
)

// LabeledSpan attaches a short inline label to a span.
type LabeledSpan struct {
	Span  Span
	Label string
	Style SpanStyle
}

// Diagnostic is a compiler diagnostic surfaced to end-users.
type Diagnostic struct {
	Stage        Stage
	Severity     Severity
	Code         Code
	Message      string
	Span         Span
	LabeledSpans []LabeledSpan
	Notes        []string
	Help         string
	Suggestion   string
	Related      []LabeledSpan
}

// WithPrimarySpan records the main offending span with an inline label.
func (d Diagnostic) WithPrimarySpan(span Span, label string) Diagnostic {
	d.LabeledSpans = append(d.LabeledSpans, LabeledSpan{Span: span, Label: label, Style: StylePrimary})
	return d
}

// WithSecondarySpan records a supporting span (e.g. the earlier declaration).
func (d Diagnostic) WithSecondarySpan(span Span, label string) Diagnostic {
	d.LabeledSpans = append(d.LabeledSpans, LabeledSpan{Span: span, Label: label, Style: StyleSecondary})
	return d
}

// WithNote appends an explanatory note.
func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

// WithHelp sets a suggested fix.
func (d Diagnostic) WithHelp(help string) Diagnostic {
	d.Help = help
	return d
}

// IsError reports whether this diagnostic blocks pipeline progression.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// Reporter collects diagnostics across a compilation, best-effort, per spec
// : a pass never stops at the first error, but the pipeline will not
// advance to the next pass if any were collected.
type Reporter struct {
	diags []Diagnostic
}

// NewReporter creates an empty diagnostic collector.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Report records a diagnostic.
func (r *Reporter) Report(d Diagnostic) {
	r.diags = append(r.diags, d)
}

// Error reports a Severity: error diagnostic with the given stage/code/span.
func (r *Reporter) Error(stage Stage, code Code, msg string, span Span) Diagnostic {
	d := Diagnostic{Stage: stage, Severity: SeverityError, Code: code, Message: msg, Span: span}
	r.Report(d)
	return d
}

// Warn reports a Severity: warning diagnostic.
func (r *Reporter) Warn(stage Stage, code Code, msg string, span Span) Diagnostic {
	d := Diagnostic{Stage: stage, Severity: SeverityWarning, Code: code, Message: msg, Span: span}
	r.Report(d)
	return d
}

// HasErrors reports whether any collected diagnostic is an error; the driver
// uses this to decide whether to stop after the current pass.
func (r *Reporter) HasErrors() bool {
	for _, d := range r.diags {
		if d.IsError() {
			return true
		}
	}
	return false
}

// All returns every diagnostic collected so far, in report order.
func (r *Reporter) All() []Diagnostic {
	return r.diags
}

// Reset clears all collected diagnostics.
func (r *Reporter) Reset() {
	r.diags = nil
}
