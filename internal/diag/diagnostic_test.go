package diag_test

import (
	"testing"

	"github.com/sushi-lang/sushic/internal/diag"
)

func TestReporterCollectsBestEffort(t *testing.T) {
	r := diag.NewReporter()
	r.Error(diag.StageTypeCheck, diag.CodeUnknownType, "unknown type Foo", diag.Span{Filename: "a.sushi", Line: 1, Column: 1})
	r.Warn(diag.StageScope, diag.CodeUnusedVariable, "unused variable x", diag.Span{Filename: "a.sushi", Line: 2, Column: 5})

	if !r.HasErrors() {
		t.Fatalf("expected HasErrors to be true after reporting an error")
	}
	if len(r.All()) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(r.All()))
	}
}

func TestReporterWithoutErrorsDoesNotBlock(t *testing.T) {
	r := diag.NewReporter()
	r.Warn(diag.StageScope, diag.CodeShadowedName, "shadowed variable x", diag.Span{})
	if r.HasErrors() {
		t.Fatalf("warnings alone must not block pipeline progression")
	}
}

func TestDiagnosticBuilders(t *testing.T) {
	d := diag.Diagnostic{
		Stage:    diag.StageBorrow,
		Severity: diag.SeverityError,
		Code:     diag.CodeUseAfterMove,
		Message:  "use of moved variable `a`",
	}
	d = d.WithPrimarySpan(diag.Span{Filename: "a.sushi", Line: 3, Column: 1, Start: 10, End: 11}, "used here").
		WithSecondarySpan(diag.Span{Filename: "a.sushi", Line: 2, Column: 1, Start: 0, End: 1}, "moved here").
		WithNote("dynamic arrays are move-only").
		WithHelp("clone the value before moving it if both bindings are needed")

	if len(d.LabeledSpans) != 2 {
		t.Fatalf("expected 2 labeled spans, got %d", len(d.LabeledSpans))
	}
	if d.Help == "" {
		t.Fatalf("expected help text to be set")
	}
}

func TestFormatterRendersHeaderWithoutSourceFile(t *testing.T) {
	fm := diag.NewFormatter()
	fm.Color = false
	out := fm.Format(diag.Diagnostic{
		Stage:    diag.StageTypeCheck,
		Severity: diag.SeverityError,
		Code:     diag.CodeReturnOkMismatch,
		Message:  "Ok(v) type does not match declared return type",
		Span:     diag.Span{Filename: "/nonexistent/a.sushi", Line: 4, Column: 2},
	})
	if out == "" {
		t.Fatalf("expected non-empty formatted output")
	}
}
