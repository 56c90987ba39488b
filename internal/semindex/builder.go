package semindex

import (
	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/ids"
)

// Build runs the two-pass builder over a parsed file (spec.md §4.3): pass 1
// creates every top-level Definition and its scope; pass 2 walks statement
// and expression bodies, assigning ExpressionIDs and resolving identifier
// uses.
func Build(file string, prog *ast.Program) *SemanticIndex {
	si := newIndex(file)
	si.ModuleScope = si.newScope(ids.InvalidScope, ScopeModule)

	b := &builder{si: si}
	b.declarePass(prog)
	b.bodyPass(prog)
	return si
}

type builder struct {
	si *SemanticIndex
}

// ---- Pass 1: declarations ----

func (b *builder) declarePass(prog *ast.Program) {
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.FunctionDecl:
			def := b.si.newDefinition(DefFunction, it.Name, it, b.si.ModuleScope)
			inner := b.si.newScope(b.si.ModuleScope, ScopeFunction)
			def.Inner = inner
			b.si.define(b.si.ModuleScope, it.Name, def.ID, it.SpanInfo)
			b.si.funcByName[it.Name] = def.ID
			for _, param := range it.Params {
				pdef := b.si.newDefinition(DefParameter, param.Name, param, inner)
				pdef.TypeNode = param.Type
				b.si.define(inner, param.Name, pdef.ID, param.SpanInfo)
			}
		case *ast.StructDecl:
			def := b.si.newDefinition(DefStruct, it.Name, it, b.si.ModuleScope)
			b.si.define(b.si.ModuleScope, it.Name, def.ID, it.SpanInfo)
			b.si.structByName[it.Name] = def.ID
		case *ast.ConstDecl:
			def := b.si.newDefinition(DefConst, it.Name, it, b.si.ModuleScope)
			def.TypeNode = it.Type
			b.si.define(b.si.ModuleScope, it.Name, def.ID, it.SpanInfo)
		case *ast.UseDecl:
			name := it.Path[len(it.Path)-1]
			def := b.si.newDefinition(DefImport, name, it, b.si.ModuleScope)
			b.si.define(b.si.ModuleScope, name, def.ID, it.SpanInfo)
		}
	}
}

// ---- Pass 2: bodies ----

func (b *builder) bodyPass(prog *ast.Program) {
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.FunctionDecl:
			def, _ := b.si.FunctionDef(it.Name)
			b.walkBlock(it.Body, b.si.Definition(def).Inner)
		case *ast.ConstDecl:
			// const's own definition was created in pass 1; link its
			// initializer now that expression walking is available.
			d := b.constDef(it.Name)
			exprID := b.walkExpr(it.Value, b.si.ModuleScope)
			d.Init = &exprID
		}
	}
}

func (b *builder) constDef(name string) *Definition {
	for i := range b.si.Definitions {
		d := &b.si.Definitions[i]
		if d.Kind == DefConst && d.Name == name && d.Scope == b.si.ModuleScope {
			return d
		}
	}
	return nil
}

func (b *builder) walkBlock(blk *ast.BlockStmt, parent ids.ScopeID) ids.ScopeID {
	scope := b.si.newScope(parent, ScopeBlock)
	for _, stmt := range blk.Stmts {
		b.walkStmt(stmt, scope)
	}
	return scope
}

func (b *builder) walkStmt(stmt ast.Stmt, scope ids.ScopeID) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		b.walkLet(s, scope)
	case *ast.ConstDecl:
		def := b.si.newDefinition(DefConst, s.Name, s, scope)
		def.TypeNode = s.Type
		b.si.define(scope, s.Name, def.ID, s.SpanInfo)
		exprID := b.walkExpr(s.Value, scope)
		def.Init = &exprID
	case *ast.AssignStmt:
		targetID := b.walkExpr(s.Target, scope)
		valueID := b.walkExpr(s.Value, scope)
		b.si.Assignments = append(b.si.Assignments, Assignment{Target: targetID, Value: valueID})
	case *ast.ExprStmt:
		b.walkExpr(s.Value, scope)
	case *ast.ReturnStmt:
		for _, v := range s.Values {
			b.walkExpr(v, scope)
		}
	case *ast.IfStmt:
		b.walkExpr(s.Cond, scope)
		b.walkBlock(s.Then, scope)
		if s.Else != nil {
			b.walkStmt(s.Else, scope)
		}
	case *ast.WhileStmt:
		b.walkExpr(s.Cond, scope)
		b.walkBlock(s.Body, scope)
	case *ast.LoopStmt:
		b.walkBlock(s.Body, scope)
	case *ast.ForStmt:
		forScope := b.si.newScope(scope, ScopeBlock)
		if s.Init != nil {
			b.walkStmt(s.Init, forScope)
		}
		if s.Cond != nil {
			b.walkExpr(s.Cond, forScope)
		}
		if s.Post != nil {
			b.walkStmt(s.Post, forScope)
		}
		b.walkBlock(s.Body, forScope)
	case *ast.BlockStmt:
		b.walkBlock(s, scope)
	case *ast.BreakStmt, *ast.ContinueStmt:
		// nothing to resolve; ControlFlowValidator checks loop nesting
	}
}

func (b *builder) walkLet(s *ast.LetStmt, scope ids.ScopeID) {
	var initID *ids.ExpressionID
	if s.Value != nil {
		id := b.walkExpr(s.Value, scope)
		initID = &id
	}
	kind := DefLet
	mutable := s.Kind == ast.BindLocal
	if mutable {
		kind = DefLocal
	}
	bindOne := func(name string, span ast.Node) {
		def := b.si.newDefinition(kind, name, s, scope)
		def.TypeNode = s.Type
		def.Init = initID
		def.Mutable = mutable
		b.si.define(scope, name, def.ID, span.Span())
		if s.Type == nil && s.Value == nil {
			b.si.Diagnostics.Add(diagnostic.New(diagnostic.CodeCannotInferType, diagnostic.Error,
				"cannot infer type of '"+name+"': no annotation and no initializer",
				diagnostic.Label{Span: span.Span()}))
		}
	}
	switch pat := s.Pattern.(type) {
	case *ast.IdentPattern:
		bindOne(pat.Name, pat)
	case *ast.TuplePattern:
		// Destructuring binds each element name directly; arity/type
		// checking against the initializer's tuple type happens in
		// TypeValidator (spec.md §8.4 Scenario E).
		for _, elem := range pat.Elems {
			if id, ok := elem.(*ast.IdentPattern); ok {
				def := b.si.newDefinition(kind, id.Name, s, scope)
				def.Init = initID
				def.Mutable = mutable
				b.si.define(scope, id.Name, def.ID, id.SpanInfo)
			}
		}
	}
}

// walkExpr assigns a fresh ExpressionID to expr and recurses into its
// children, resolving identifier uses against the scope chain.
func (b *builder) walkExpr(expr ast.Expr, scope ids.ScopeID) ids.ExpressionID {
	id := b.si.NewExpression(expr, scope)
	switch e := expr.(type) {
	case *ast.Identifier:
		if place, ok := b.si.Lookup(scope, e.Name); ok {
			place.Uses++
			b.si.UseDef[id] = place.Def
		} else {
			b.si.Diagnostics.Add(diagnostic.New(diagnostic.CodeUndeclaredVariable, diagnostic.Error,
				"undeclared variable '"+e.Name+"'",
				diagnostic.Label{Span: e.SpanInfo}))
		}
	case *ast.UnaryExpr:
		b.walkExpr(e.Operand, scope)
	case *ast.BinaryExpr:
		b.walkExpr(e.Left, scope)
		b.walkExpr(e.Right, scope)
	case *ast.CallExpr:
		b.walkExpr(e.Callee, scope)
		for _, a := range e.Args {
			b.walkExpr(a, scope)
		}
	case *ast.StructLiteral:
		for _, f := range e.Fields {
			b.walkExpr(f.Value, scope)
		}
	case *ast.MemberExpr:
		b.walkExpr(e.Receiver, scope)
	case *ast.IndexExpr:
		b.walkExpr(e.Base, scope)
		b.walkExpr(e.Index, scope)
	case *ast.TupleExpr:
		for _, el := range e.Elems {
			b.walkExpr(el, scope)
		}
	case *ast.CastExpr:
		b.walkExpr(e.Value, scope)
	case *ast.AddressOfExpr:
		b.walkExpr(e.Value, scope)
	case *ast.FixedArrayLiteral:
		for _, el := range e.Elems {
			b.walkExpr(el, scope)
		}
	case *ast.IntLiteral, *ast.BoolLiteral, *ast.UnitLiteral:
		// leaves
	}
	return id
}
