package validator

import (
	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/semindex"
	"github.com/cairo-m/compiler/internal/types"
)

// ControlFlowValidator checks the structural control-flow rules spec.md
// §4.5 assigns to a standalone pass: every non-unit function must return
// on every path, statements after an unconditional exit are unreachable,
// and break/continue must nest inside a loop. It walks each function body
// directly rather than through the semantic index's scope tree, since loop
// nesting is a property of the statement tree, not of name resolution.
type ControlFlowValidator struct{}

func (*ControlFlowValidator) Name() string { return "ControlFlowValidator" }

func (v *ControlFlowValidator) Run(si *semindex.SemanticIndex, _ *types.Checker) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	for i := range si.Definitions {
		def := si.Definitions[i]
		if def.Kind != semindex.DefFunction {
			continue
		}
		decl, ok := def.Node.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		out = append(out, v.checkLoopNesting(decl.Body, 0)...)
		if len(decl.ReturnTypes) > 0 && !blockReturns(decl.Body) {
			out = append(out, diagnostic.New(diagnostic.CodeMissingReturn, diagnostic.Error,
				"function '"+decl.Name+"' does not return a value on all paths",
				diagnostic.Label{Span: decl.SpanInfo}))
		}
		out = append(out, v.checkUnreachable(decl.Body)...)
	}
	return out
}

// checkLoopNesting walks stmt looking for Break/Continue outside any
// While/Loop/For ancestor, tracking depth explicitly so it doesn't depend
// on any state the semantic index builder carries.
func (v *ControlFlowValidator) checkLoopNesting(blk *ast.BlockStmt, depth int) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	var walk func(ast.Stmt, int)
	walk = func(stmt ast.Stmt, depth int) {
		switch s := stmt.(type) {
		case *ast.BreakStmt:
			if depth == 0 {
				out = append(out, diagnostic.New(diagnostic.CodeBreakOutsideLoop, diagnostic.Error,
					"'break' outside of a loop", diagnostic.Label{Span: s.SpanInfo}))
			}
		case *ast.ContinueStmt:
			if depth == 0 {
				out = append(out, diagnostic.New(diagnostic.CodeContinueOutsideLoop, diagnostic.Error,
					"'continue' outside of a loop", diagnostic.Label{Span: s.SpanInfo}))
			}
		case *ast.BlockStmt:
			for _, st := range s.Stmts {
				walk(st, depth)
			}
		case *ast.IfStmt:
			for _, st := range s.Then.Stmts {
				walk(st, depth)
			}
			if s.Else != nil {
				walk(s.Else, depth)
			}
		case *ast.WhileStmt:
			for _, st := range s.Body.Stmts {
				walk(st, depth+1)
			}
		case *ast.LoopStmt:
			for _, st := range s.Body.Stmts {
				walk(st, depth+1)
			}
		case *ast.ForStmt:
			for _, st := range s.Body.Stmts {
				walk(st, depth+1)
			}
		}
	}
	for _, st := range blk.Stmts {
		walk(st, depth)
	}
	return out
}

// checkUnreachable flags statements that follow an unconditional
// return/break/continue within the same block (spec.md §4.5
// UnreachableCode).
func (v *ControlFlowValidator) checkUnreachable(blk *ast.BlockStmt) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	var walkStmt func(ast.Stmt)
	var walkBlock func(*ast.BlockStmt)
	walkBlock = func(b *ast.BlockStmt) {
		exited := false
		for _, st := range b.Stmts {
			if exited {
				out = append(out, diagnostic.New(diagnostic.CodeUnreachableCode, diagnostic.Warning,
					"unreachable code", diagnostic.Label{Span: st.Span()}))
				break
			}
			walkStmt(st)
			if stmtAlwaysExits(st) {
				exited = true
			}
		}
	}
	walkStmt = func(stmt ast.Stmt) {
		switch s := stmt.(type) {
		case *ast.BlockStmt:
			walkBlock(s)
		case *ast.IfStmt:
			walkBlock(s.Then)
			if s.Else != nil {
				walkStmt(s.Else)
			}
		case *ast.WhileStmt:
			walkBlock(s.Body)
		case *ast.LoopStmt:
			walkBlock(s.Body)
		case *ast.ForStmt:
			walkBlock(s.Body)
		}
	}
	walkBlock(blk)
	return out
}

// blockReturns reports whether blk unconditionally returns/diverges on
// every path reaching its end (spec.md §4.5 MissingReturn). A `loop {}`
// with no reachable `break` diverges unconditionally, so it counts as
// returning.
func blockReturns(blk *ast.BlockStmt) bool {
	for _, st := range blk.Stmts {
		if stmtAlwaysExits(st) {
			return true
		}
	}
	return false
}

func stmtAlwaysExits(stmt ast.Stmt) bool {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BlockStmt:
		return blockReturns(s)
	case *ast.IfStmt:
		if s.Else == nil {
			return false
		}
		return blockReturns(s.Then) && stmtAlwaysExits(s.Else)
	case *ast.LoopStmt:
		return !containsBreak(s.Body, 0)
	}
	return false
}

// containsBreak reports whether blk has a `break` that targets this loop
// (i.e. not nested inside a further loop).
func containsBreak(blk *ast.BlockStmt, depth int) bool {
	found := false
	var walk func(ast.Stmt, int)
	walk = func(stmt ast.Stmt, depth int) {
		if found {
			return
		}
		switch s := stmt.(type) {
		case *ast.BreakStmt:
			if depth == 0 {
				found = true
			}
		case *ast.BlockStmt:
			for _, st := range s.Stmts {
				walk(st, depth)
			}
		case *ast.IfStmt:
			for _, st := range s.Then.Stmts {
				walk(st, depth)
			}
			if s.Else != nil {
				walk(s.Else, depth)
			}
		case *ast.WhileStmt:
			for _, st := range s.Body.Stmts {
				walk(st, depth+1)
			}
		case *ast.LoopStmt:
			for _, st := range s.Body.Stmts {
				walk(st, depth+1)
			}
		case *ast.ForStmt:
			for _, st := range s.Body.Stmts {
				walk(st, depth+1)
			}
		}
	}
	for _, st := range blk.Stmts {
		walk(st, depth)
	}
	return found
}
