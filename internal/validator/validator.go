// Package validator implements spec.md §4.5's pluggable validation passes
// over a file's SemanticIndex: ScopeValidator, TypeValidator, and
// ControlFlowValidator. Each pass only reads the index (and, for
// TypeValidator, the type-inference Checker) and appends diagnostics; none
// mutates the AST.
//
// The Validator/PassManager split is grounded on the teacher's
// internal/semantic.Pass / PassManager (internal/semantic/pass.go):
// same ordered-list-of-independent-passes shape, generalized from
// AST-mutating passes over a single Analyzer to pure read-only passes over
// an immutable SemanticIndex, since Cairo-M's query engine — not the
// validator — owns caching and invalidation.
package validator

import (
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/semindex"
	"github.com/cairo-m/compiler/internal/types"
)

// Validator is one independent check over a file's semantic index.
type Validator interface {
	Name() string
	Run(si *semindex.SemanticIndex, checker *types.Checker) []diagnostic.Diagnostic
}

// PassManager runs an ordered list of validators and concatenates their
// diagnostics (spec.md §4.5: "validate(file) runs every validator and
// merges their diagnostics"; order doesn't affect the result set, only the
// order diagnostics are appended in before Bag.Sorted() normalizes it).
type PassManager struct {
	passes []Validator
}

// NewPassManager builds a pipeline that runs passes in the given order.
func NewPassManager(passes ...Validator) *PassManager {
	return &PassManager{passes: passes}
}

// DefaultPassManager builds the default pipeline: ScopeValidator, then
// TypeValidator, then ControlFlowValidator.
func DefaultPassManager() *PassManager {
	return NewPassManager(&ScopeValidator{}, &TypeValidator{}, &ControlFlowValidator{})
}

func (pm *PassManager) AddPass(v Validator) { pm.passes = append(pm.passes, v) }

func (pm *PassManager) Passes() []Validator { return pm.passes }

// RunAll executes every pass and returns their diagnostics, plus whatever
// the semantic index itself accumulated during building (duplicate
// definitions, undeclared variables — spec.md §4.3 errors that belong to
// name resolution, not a separate pass).
func (pm *PassManager) RunAll(si *semindex.SemanticIndex, checker *types.Checker) []diagnostic.Diagnostic {
	out := si.Diagnostics.Items()
	for _, p := range pm.passes {
		out = append(out, p.Run(si, checker)...)
	}
	return out
}
