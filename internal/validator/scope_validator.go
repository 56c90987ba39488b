package validator

import (
	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/semindex"
	"github.com/cairo-m/compiler/internal/types"
)

// ScopeValidator checks name-resolution concerns that need a full view of
// the index rather than a single-pass walk: unused bindings and assignments
// to `const` bindings (spec.md §4.5, §7). Undeclared-variable and
// duplicate-definition diagnostics are raised eagerly while the index is
// built (internal/semindex.Build) and are merged in by PassManager.RunAll.
type ScopeValidator struct{}

func (*ScopeValidator) Name() string { return "ScopeValidator" }

func (v *ScopeValidator) Run(si *semindex.SemanticIndex, _ *types.Checker) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	out = append(out, v.unusedVariables(si)...)
	out = append(out, v.constAssignments(si)...)
	return out
}

func (v *ScopeValidator) unusedVariables(si *semindex.SemanticIndex) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	for si_i := range si.Scopes {
		for name, place := range si.Scopes[si_i].Places {
			if name == "_" || place.Uses > 0 {
				continue
			}
			def := si.Definition(place.Def)
			if def.Kind != semindex.DefLet && def.Kind != semindex.DefLocal {
				continue
			}
			out = append(out, diagnostic.New(diagnostic.CodeUnusedVariable, diagnostic.Warning,
				"unused variable '"+name+"'", diagnostic.Label{Span: def.Node.Span()}))
		}
	}
	return out
}

func (v *ScopeValidator) constAssignments(si *semindex.SemanticIndex) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	for _, a := range si.Assignments {
		exprID := a.Target
		info := si.Expression(exprID)
		ident, ok := info.Expr.(*ast.Identifier)
		if !ok {
			// Non-identifier assignment targets (field/index writes) are
			// always legal places; mutability only constrains the root
			// binding, which TypeValidator resolves structurally.
			continue
		}
		def, ok := si.UseDef[exprID]
		if !ok {
			continue
		}
		d := si.Definition(def)
		switch d.Kind {
		case semindex.DefConst:
			out = append(out, diagnostic.New(diagnostic.CodeConstAssignment, diagnostic.Error,
				"cannot assign to const '"+ident.Name+"'", diagnostic.Label{Span: ident.SpanInfo}))
		}
	}
	return out
}
