// Package cairom is the embeddable facade over the compiler, grounded on
// the teacher's pkg/dwscript.Engine: a functional-options constructor plus
// a handful of high-level verbs (Check/Build/MIR/Disasm) that hide the
// query-engine plumbing from an embedder the way pkg/dwscript.Engine hides
// the lexer/parser/interp wiring behind Eval/RegisterFunction.
//
// cmd/cairom is the only first-party consumer, but the split exists for
// the same reason the teacher's does: anything that wants "compile this
// Cairo-M source" without a CLI process gets one import instead of five.
package cairom

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cairo-m/compiler/internal/casm"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/query"
)

// Engine is a compiler session: one query.Database plus the logger it was
// built with. It is not safe to Check/Build the same path concurrently
// from two goroutines while also editing its text; the underlying
// Database's per-query memoization is concurrency-safe, SetText is not
// meant to race with itself on one path.
type Engine struct {
	db  *query.Database
	log *slog.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger routes the engine's per-stage Debug lines (parse,
// semantic_index, check, validate, lower_to_mir, generate_casm) to log
// instead of discarding them.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine with no source loaded yet.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.db = query.New(e.log)
	return e
}

// ErrCompile is returned by MIR/Build/Disasm when validation found one or
// more Error-severity diagnostics: spec.md §4.5/§7 forbid lowering past
// that point, so the facade refuses rather than handing mirbuild a
// half-resolved program.
type ErrCompile struct {
	Diagnostics []diagnostic.Diagnostic
}

func (e *ErrCompile) Error() string {
	return fmt.Sprintf("cairom: %d error diagnostic(s)", len(e.Diagnostics))
}

// Check parses, indexes, type-checks, and validates path's source,
// returning every diagnostic (errors, warnings, and info) regardless of
// severity.
func (e *Engine) Check(ctx context.Context, path, src string) ([]diagnostic.Diagnostic, error) {
	e.db.SetText(path, src)
	return e.db.Validate(ctx, path)
}

// MIR compiles path down to optimized MIR and renders it as text
// (internal/mir.Print), failing with ErrCompile if validation found
// errors first.
func (e *Engine) MIR(ctx context.Context, path, src string) (string, error) {
	diags, err := e.ensureValid(ctx, path, src)
	if err != nil {
		return "", err
	}
	if hasErrors(diags) {
		return "", &ErrCompile{Diagnostics: diags}
	}
	mod, err := e.db.LowerToMIR(ctx, path)
	if err != nil {
		return "", err
	}
	return mir.Print(mod, e.db.Interner()), nil
}

// Build compiles path all the way to a resolved CASM Program.
func (e *Engine) Build(ctx context.Context, path, src string) (*casm.Program, error) {
	diags, err := e.ensureValid(ctx, path, src)
	if err != nil {
		return nil, err
	}
	if hasErrors(diags) {
		return nil, &ErrCompile{Diagnostics: diags}
	}
	return e.db.GenerateCASM(ctx, path)
}

// Disasm compiles path and renders the result with internal/casm.Disassemble.
func (e *Engine) Disasm(ctx context.Context, path, src string) (string, error) {
	prog, err := e.Build(ctx, path, src)
	if err != nil {
		return "", err
	}
	return casm.Disassemble(prog), nil
}

func (e *Engine) ensureValid(ctx context.Context, path, src string) ([]diagnostic.Diagnostic, error) {
	e.db.SetText(path, src)
	return e.db.Validate(ctx, path)
}

func hasErrors(diags []diagnostic.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diagnostic.Error {
			return true
		}
	}
	return false
}
