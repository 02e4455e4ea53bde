package diag

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders diagnostics Rust-style: a header line, source snippets
// with `^^^`/`~~~` underlines, and a trailing help/notes block. Source files
// are cached by filename so repeated diagnostics against the same file don't
// re-read it from disk.
type Formatter struct {
	sourceCache map[string][]string
	Color       bool
}

// NewFormatter creates a Formatter that colorizes output when stderr is a
// terminal.
func NewFormatter() *Formatter {
	return &Formatter{
		sourceCache: make(map[string][]string),
		Color:       isTerminal(os.Stderr),
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// LoadSource reads and caches the lines of filename, used to render context
// around a span. A missing file degrades gracefully to the simple formatter.
func (fm *Formatter) LoadSource(filename string) ([]string, bool) {
	if lines, ok := fm.sourceCache[filename]; ok {
		return lines, true
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, false
	}
	lines := strings.Split(string(data), "\n")
	fm.sourceCache[filename] = lines
	return lines, true
}

// Format renders a single diagnostic as a multi-line string ready to print.
func (fm *Formatter) Format(d Diagnostic) string {
	var b strings.Builder
	fm.printHeader(&b, d)

	spans := fm.collectSpans(d)
	if len(spans) == 0 {
		return b.String()
	}

	byFile := make(map[string][]LabeledSpan)
	var files []string
	for _, s := range spans {
		if _, ok := byFile[s.Span.Filename]; !ok {
			files = append(files, s.Span.Filename)
		}
		byFile[s.Span.Filename] = append(byFile[s.Span.Filename], s)
	}
	sort.Strings(files)

	for _, file := range files {
		group := byFile[file]
		sort.Slice(group, func(i, j int) bool { return group[i].Span.Line < group[j].Span.Line })
		fm.printFileSpans(&b, file, group)
	}

	fm.printHelp(&b, d)
	return b.String()
}

func (fm *Formatter) collectSpans(d Diagnostic) []LabeledSpan {
	spans := d.LabeledSpans
	if len(spans) == 0 && d.Span.Filename != "" {
		spans = []LabeledSpan{{Span: d.Span, Label: d.Message, Style: StylePrimary}}
	}
	return spans
}

func (fm *Formatter) printHeader(b *strings.Builder, d Diagnostic) {
	sev := string(d.Severity)
	sevColored := sev
	if fm.Color {
		switch d.Severity {
		case SeverityError:
			sevColored = color.New(color.FgRed, color.Bold).Sprint(sev)
		case SeverityWarning:
			sevColored = color.New(color.FgYellow, color.Bold).Sprint(sev)
		case SeverityNote:
			sevColored = color.New(color.FgBlue, color.Bold).Sprint(sev)
		}
	}
	fmt.Fprintf(b, "%s[%s]: %s\n", sevColored, d.Code, d.Message)
	if d.Span.Filename != "" {
		fmt.Fprintf(b, "  --> %s:%d:%d\n", d.Span.Filename, d.Span.Line, d.Span.Column)
	}
}

func (fm *Formatter) printFileSpans(b *strings.Builder, file string, spans []LabeledSpan) {
	lines, ok := fm.LoadSource(file)
	if !ok {
		fm.formatSimple(b, spans)
		return
	}
	for _, s := range spans {
		lineIdx := s.Span.Line - 1
		if lineIdx < 0 || lineIdx >= len(lines) {
			continue
		}
		start := max(0, lineIdx-2)
		end := min(len(lines)-1, lineIdx+2)
		for i := start; i <= end; i++ {
			fmt.Fprintf(b, "%5d | %s\n", i+1, lines[i])
			if i == lineIdx {
				fm.printUnderlines(b, s)
			}
		}
	}
}

func (fm *Formatter) printUnderlines(b *strings.Builder, s LabeledSpan) {
	width := s.Span.End - s.Span.Start
	if width <= 0 {
		width = 1
	}
	marker := "^"
	if s.Style == StyleSecondary {
		marker = "~"
	}
	pad := strings.Repeat(" ", s.Span.Column-1)
	underline := strings.Repeat(marker, width)
	if s.Style == StylePrimary {
		fmt.Fprintf(b, "      | %s%s %s\n", pad, underline, s.Label)
	} else {
		fmt.Fprintf(b, "      | %s%s\n", pad, underline)
		if s.Label != "" {
			fmt.Fprintf(b, "      | %s%s\n", pad, s.Label)
		}
	}
}

func (fm *Formatter) printHelp(b *strings.Builder, d Diagnostic) {
	for _, n := range d.Notes {
		fmt.Fprintf(b, "      = note: %s\n", n)
	}
	if d.Help != "" {
		fmt.Fprintf(b, "      = help: %s\n", d.Help)
	} else if d.Suggestion != "" {
		fmt.Fprintf(b, "      = suggestion: %s\n", d.Suggestion)
	}
	for _, r := range d.Related {
		fmt.Fprintf(b, "      = see: %s:%d:%d %s\n", r.Span.Filename, r.Span.Line, r.Span.Column, r.Label)
	}
}

func (fm *Formatter) formatSimple(b *strings.Builder, spans []LabeledSpan) {
	for _, s := range spans {
		fmt.Fprintf(b, "      at %s:%d:%d: %s\n", s.Span.Filename, s.Span.Line, s.Span.Column, s.Label)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
