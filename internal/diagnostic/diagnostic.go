// Package diagnostic implements the error record and span model shared by
// every later phase of the compiler: semantic analysis, validation, and
// codegen-as-ICE all append to a Bag rather than returning a Go error.
//
// The rendering style (line number gutter + caret) is grounded on the
// teacher's internal/errors.CompilerError.Format; the structured
// code/phase/message split that survives JSON encoding is grounded on
// sunholo-ailang's internal/errors.Report.
package diagnostic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/cairo-m/compiler/internal/source"
)

// NoColor disables ANSI rendering in Render, gated by the CLI's
// --no-color flag (cmd/cairom/cmd/root.go). fatih/color already honors
// NO_COLOR/non-tty detection on its own; this lets a caller force it off
// regardless.
var NoColor = false

var (
	errColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	infoColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	dimColor  = color.New(color.Faint).SprintFunc()
	caretColor = color.New(color.FgRed, color.Bold).SprintFunc()
)

func severityColor(s Severity, text string) string {
	if NoColor {
		return text
	}
	switch s {
	case Error:
		return errColor(text)
	case Warning:
		return warnColor(text)
	default:
		return infoColor(text)
	}
}

func dim(text string) string {
	if NoColor {
		return text
	}
	return dimColor(text)
}

func caret(text string) string {
	if NoColor {
		return text
	}
	return caretColor(text)
}

// Severity classifies a Diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "Error"
	case Warning:
		return "Warning"
	default:
		return "Info"
	}
}

// Code ranges are permanent per spec.md §6.3 and §9: codes are part of the
// external interface and must never be renumbered across releases.
const (
	// 1000-1999: scope / name resolution
	CodeUndeclaredVariable = 1001
	CodeDuplicateDefinition = 1002
	CodeUnusedVariable      = 1003
	CodeConstAssignment     = 1004

	// 2000-2999: types
	CodeTypeMismatch           = 2001
	CodeCannotInferType        = 2002
	CodeRecursiveType          = 2003
	CodeNegativeLiteralUnsigned = 2004
	CodeArityMismatch          = 2005
	CodeUnknownField          = 2006
	CodeUnknownType           = 2007
	CodeInvalidCast           = 2008
	CodeInvalidAssignTarget   = 2009

	// 3000-3999: control flow
	CodeMissingReturn        = 3001
	CodeUnreachableCode      = 3002
	CodeBreakOutsideLoop     = 3003
	CodeContinueOutsideLoop  = 3004

	// 4000+: codegen / internal compiler errors
	CodeInternalCompilerError = 4001
)

// Label attaches a note to a source span.
type Label struct {
	Span source.Span
	Note string
}

// Diagnostic is a single compiler error, warning, or info record.
type Diagnostic struct {
	Code      int
	Severity  Severity
	Message   string
	Primary   Label
	Secondary []Label
	Help      string
}

func New(code int, sev Severity, msg string, primary Label) Diagnostic {
	return Diagnostic{Code: code, Severity: sev, Message: msg, Primary: primary}
}

// WithSecondary returns a copy of d with an additional secondary label
// (e.g. pointing at a prior definition site for DuplicateDefinition).
func (d Diagnostic) WithSecondary(span source.Span, note string) Diagnostic {
	d.Secondary = append(append([]Label{}, d.Secondary...), Label{Span: span, Note: note})
	return d
}

func (d Diagnostic) WithHelp(help string) Diagnostic {
	d.Help = help
	return d
}

// Render formats a diagnostic as "[code] Severity: message" followed by one
// or more labeled spans, per spec.md §6.3. When src is non-empty the primary
// span's source line is rendered with a caret, matching the teacher's
// CompilerError.Format.
func (d Diagnostic) Render(src string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s: %s\n", d.Code, severityColor(d.Severity, d.Severity.String()), d.Message)
	sb.WriteString(renderLabel(d.Primary, src))
	for _, l := range d.Secondary {
		sb.WriteString(renderLabel(l, ""))
	}
	if d.Help != "" {
		fmt.Fprintf(&sb, "  %s %s\n", dim("help:"), d.Help)
	}
	return sb.String()
}

func renderLabel(l Label, src string) string {
	var sb strings.Builder
	if l.Span.File != "" {
		fmt.Fprintf(&sb, "  --> %s:%d:%d", l.Span.File, l.Span.Start.Line, l.Span.Start.Column)
	}
	if l.Note != "" {
		fmt.Fprintf(&sb, " (%s)", l.Note)
	}
	sb.WriteString("\n")
	if src == "" || l.Span.Start.Line <= 0 {
		return sb.String()
	}
	lines := strings.Split(src, "\n")
	if l.Span.Start.Line > len(lines) {
		return sb.String()
	}
	line := lines[l.Span.Start.Line-1]
	gutter := fmt.Sprintf("%4d | ", l.Span.Start.Line)
	sb.WriteString(dim(gutter))
	sb.WriteString(line)
	sb.WriteString("\n")
	col := l.Span.Start.Column
	if col < 1 {
		col = 1
	}
	sb.WriteString(strings.Repeat(" ", len(gutter)+col-1))
	sb.WriteString(caret("^") + "\n")
	return sb.String()
}

// Bag is an append-only collection of diagnostics accumulated by a single
// file-query (e.g. one call to validate(file)).
type Bag struct {
	items []Diagnostic
}

func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

func (b *Bag) Extend(ds []Diagnostic) {
	b.items = append(b.items, ds...)
}

func (b *Bag) Items() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// HasErrors reports whether the bag contains any Error-severity diagnostic.
// Per spec.md §4.5/§7, MIR construction never runs if this is true.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int { return len(b.items) }

// Sorted returns diagnostics ordered by primary span (line, then column,
// then code; ties keep insertion order), a deterministic order snapshot
// tests can rely on per spec.md §5.
func (b *Bag) Sorted() []Diagnostic {
	out := b.Items()
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i].Primary.Span, out[j].Primary.Span
		if a.Start.Line != c.Start.Line {
			return a.Start.Line < c.Start.Line
		}
		if a.Start.Column != c.Start.Column {
			return a.Start.Column < c.Start.Column
		}
		return out[i].Code < out[j].Code
	})
	return out
}
