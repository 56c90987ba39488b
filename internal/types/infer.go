package types

import (
	"fmt"

	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/ids"
	"github.com/cairo-m/compiler/internal/semindex"
)

// Checker implements the four inference queries of spec.md §4.4:
// resolve_ast_type, definition_type, expression_type, and the
// struct_data/function_signature accessors. It is the logic the
// incremental query engine (internal/query) wraps as memoized tracked
// functions; the memoization/cycle-recovery policy lives there, while the
// actual recursive structural inference lives here, grounded on the
// teacher's type-checking passes (internal/semantic/passes/type_resolution_pass.go)
// generalized from a mutate-in-place symbol table into pure, cached
// queries over an immutable SemanticIndex.
type Checker struct {
	In     *Interner
	SI     *semindex.SemanticIndex
	Diags  *diagnostic.Bag

	defType  map[ids.DefinitionID]ID
	exprType map[ids.ExpressionID]ID
	defBusy  map[ids.DefinitionID]bool
}

// NewChecker creates a Checker over one file's semantic index.
func NewChecker(in *Interner, si *semindex.SemanticIndex, diags *diagnostic.Bag) *Checker {
	return &Checker{
		In: in, SI: si, Diags: diags,
		defType:  map[ids.DefinitionID]ID{},
		exprType: map[ids.ExpressionID]ID{},
		defBusy:  map[ids.DefinitionID]bool{},
	}
}

// ---- resolve_ast_type (spec.md §4.4.1) ----

// ResolveASTType maps surface type syntax to a TypeID.
func (c *Checker) ResolveASTType(te ast.TypeExpr, scope ids.ScopeID) ID {
	switch t := te.(type) {
	case nil:
		return UnknownID
	case *ast.NamedType:
		switch t.Name {
		case "felt":
			return FeltID
		case "u32":
			return U32ID
		case "bool":
			return BoolID
		default:
			def, ok := c.SI.StructDef(t.Name)
			if !ok {
				c.Diags.Add(diagnostic.New(diagnostic.CodeUnknownType, diagnostic.Error,
					fmt.Sprintf("unknown type '%s'", t.Name), diagnostic.Label{Span: t.SpanInfo}))
				return ErrorID
			}
			return c.DefinitionType(def)
		}
	case *ast.PointerType:
		return c.In.InternPointer(c.ResolveASTType(t.Elem, scope))
	case *ast.TupleType:
		elems := make([]ID, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = c.ResolveASTType(e, scope)
		}
		return c.In.InternTuple(elems)
	case *ast.ArrayType:
		// Fixed arrays are represented as pointer-to-element at the type
		// level (their memory layout is handled by MIR/codegen); array-ness
		// for rodata dedup is tracked on the MIR MakeFixedArray instruction.
		return c.In.InternPointer(c.ResolveASTType(t.Elem, scope))
	default:
		return ErrorID
	}
}

// ---- definition_type (spec.md §4.4.2) ----

// DefinitionType computes (and memoizes) the type of a Definition.
func (c *Checker) DefinitionType(def ids.DefinitionID) ID {
	if t, ok := c.defType[def]; ok {
		return t
	}
	if c.defBusy[def] {
		// Recursive type definitions surface as Error with a single
		// RecursiveType diagnostic (spec.md §4.4.3 cycle recovery, §8.3).
		d := c.SI.Definition(def)
		c.Diags.Add(diagnostic.New(diagnostic.CodeRecursiveType, diagnostic.Error,
			fmt.Sprintf("type '%s' is recursive", d.Name), diagnostic.Label{Span: d.Node.Span()}))
		return ErrorID
	}
	c.defBusy[def] = true
	defer delete(c.defBusy, def)

	d := c.SI.Definition(def)
	var t ID
	switch d.Kind {
	case semindex.DefStruct:
		decl := d.Node.(*ast.StructDecl)
		fields := make([]FieldEntry, len(decl.Fields))
		for i, f := range decl.Fields {
			fields[i] = FieldEntry{Name: f.Name, Type: c.ResolveASTType(f.Type, d.Scope)}
		}
		_, tid := c.In.InternStruct(&StructType{Def: def, Fields: fields, Scope: d.Scope})
		t = tid
	case semindex.DefFunction:
		decl := d.Node.(*ast.FunctionDecl)
		params := make([]ParamEntry, len(decl.Params))
		for i, p := range decl.Params {
			params[i] = ParamEntry{Name: p.Name, Type: c.ResolveASTType(p.Type, d.Inner)}
		}
		returns := make([]ID, len(decl.ReturnTypes))
		for i, r := range decl.ReturnTypes {
			returns[i] = c.ResolveASTType(r, d.Inner)
		}
		_, tid := c.In.InternFunctionSignature(&FunctionSignature{Params: params, Returns: returns})
		t = tid
	case semindex.DefParameter:
		t = c.ResolveASTType(d.TypeNode, d.Scope)
	case semindex.DefLet, semindex.DefLocal, semindex.DefConst:
		switch {
		case d.TypeNode != nil:
			t = c.ResolveASTType(d.TypeNode, d.Scope)
			if d.Init != nil {
				// Propagate the annotation as the literal-defaulting context
				// (spec.md §4.4.4) and check compatibility.
				got := c.exprTypeExpected(*d.Init, t)
				if !Compatible(got, t) {
					c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
						fmt.Sprintf("cannot assign '%s' to '%s'", c.In.String(got), c.In.String(t)),
						diagnostic.Label{Span: d.Node.Span()}))
				}
			}
		case d.Init != nil:
			t = c.ExpressionType(*d.Init)
		default:
			t = ErrorID
		}
	case semindex.DefImport, semindex.DefNamespace:
		t = UnitID // namespace sentinel: not a value type
	default:
		t = UnknownID
	}
	c.defType[def] = t
	return t
}

// StructData ensures def's struct shape is interned and returns it.
func (c *Checker) StructData(def ids.DefinitionID) *StructType {
	t := c.DefinitionType(def)
	d := c.In.Get(t)
	if d.Kind != Struct {
		return nil
	}
	return c.In.StructData(d.StructT)
}

// FunctionSignature ensures def's signature is interned and returns it.
func (c *Checker) FunctionSignature(def ids.DefinitionID) *FunctionSignature {
	t := c.DefinitionType(def)
	d := c.In.Get(t)
	if d.Kind != Function {
		return nil
	}
	return c.In.FunctionSignatureData(d.FuncT)
}

// ---- expression_type (spec.md §4.4.3) ----

// ChildID exposes childID for validators that need to type-check a
// specific AST child (e.g. a return value or assignment RHS) under an
// expected type.
func (c *Checker) ChildID(expr ast.Expr) ids.ExpressionID { return c.childID(expr) }

// ExprTypeExpected exposes exprTypeExpected for validators threading a
// caller-known expected type (spec.md §4.4.4 contextual literal inference).
func (c *Checker) ExprTypeExpected(id ids.ExpressionID, expected ID) ID {
	return c.exprTypeExpected(id, expected)
}

// ExpressionType computes (and memoizes) the context-free type of an
// expression. Where a contextual (expected-type) inference already ran for
// this id — e.g. via a `let` annotation — that pinned result is reused, so
// spec.md §8.1 invariant 3 (expression_type(initializer) ==
// definition_type(binding)) holds without re-deriving it.
func (c *Checker) ExpressionType(id ids.ExpressionID) ID {
	if t, ok := c.exprType[id]; ok {
		return t
	}
	return c.exprTypeExpected(id, UnknownID)
}

func (c *Checker) markExpr(id ids.ExpressionID, t ID) ID {
	c.exprType[id] = t
	return t
}

// exprTypeExpected infers expr's type, threading expected as the
// literal-defaulting / suffix-checking context (spec.md §3.3, §4.4.4).
// expected == UnknownID means "no context; default bare integers to felt".
func (c *Checker) exprTypeExpected(id ids.ExpressionID, expected ID) ID {
	if t, ok := c.exprType[id]; ok {
		return t
	}
	info := c.SI.Expression(id)
	switch e := info.Expr.(type) {
	case *ast.IntLiteral:
		return c.markExpr(id, c.inferIntLiteral(e, expected))
	case *ast.BoolLiteral:
		return c.markExpr(id, BoolID)
	case *ast.UnitLiteral:
		return c.markExpr(id, UnitID)
	case *ast.Identifier:
		def, ok := c.SI.UseDef[id]
		if !ok {
			return c.markExpr(id, ErrorID)
		}
		return c.markExpr(id, c.DefinitionType(def))
	case *ast.UnaryExpr:
		return c.markExpr(id, c.inferUnary(e, info.Scope))
	case *ast.BinaryExpr:
		return c.markExpr(id, c.inferBinary(e, info.Scope))
	case *ast.CallExpr:
		return c.markExpr(id, c.inferCall(e, info.Scope))
	case *ast.StructLiteral:
		return c.markExpr(id, c.inferStructLiteral(e, info.Scope))
	case *ast.MemberExpr:
		return c.markExpr(id, c.inferMember(e, info.Scope))
	case *ast.IndexExpr:
		return c.markExpr(id, c.inferIndex(e, info.Scope))
	case *ast.TupleExpr:
		elems := make([]ID, len(e.Elems))
		for i := range e.Elems {
			elems[i] = c.ExpressionType(c.childID(e.Elems[i]))
		}
		return c.markExpr(id, c.In.InternTuple(elems))
	case *ast.CastExpr:
		return c.markExpr(id, c.inferCast(e, info.Scope))
	case *ast.AddressOfExpr:
		inner := c.ExpressionType(c.childID(e.Value))
		return c.markExpr(id, c.In.InternPointer(inner))
	case *ast.FixedArrayLiteral:
		var elem ID = UnknownID
		if len(e.Elems) > 0 {
			elem = c.ExpressionType(c.childID(e.Elems[0]))
		}
		return c.markExpr(id, c.In.InternPointer(elem))
	default:
		return c.markExpr(id, ErrorID)
	}
}

// childID looks up the ExpressionID previously assigned to a child AST
// node. Since semindex.Build walks every expression depth-first before
// type inference ever runs, every child already has an ID; this performs a
// short linear scan from the end, which is fine because inference runs
// bottom-up alongside construction order in practice. Every infer* helper
// below, the BinaryExpr/UnaryExpr ones included, re-derives its children's
// IDs through it.
func (c *Checker) childID(expr ast.Expr) ids.ExpressionID {
	for i := len(c.SI.Expressions) - 1; i >= 0; i-- {
		if c.SI.Expressions[i].Expr == expr {
			return ids.ExpressionID(i)
		}
	}
	return 0
}

func (c *Checker) inferIntLiteral(lit *ast.IntLiteral, expected ID) ID {
	switch lit.Suffix {
	case ast.FeltSuffix:
		if expected != UnknownID && expected != FeltID && c.In.IsNumeric(expected) {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				"literal suffix 'felt' does not match expected type "+c.In.String(expected),
				diagnostic.Label{Span: lit.SpanInfo}))
		}
		return FeltID
	case ast.U32Suffix:
		if expected != UnknownID && expected != U32ID && c.In.IsNumeric(expected) {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				"literal suffix 'u32' does not match expected type "+c.In.String(expected),
				diagnostic.Label{Span: lit.SpanInfo}))
		}
		return U32ID
	}
	switch expected {
	case U32ID:
		return U32ID
	case BoolID:
		if lit.Value != 0 && lit.Value != 1 {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				"only 0 or 1 may be used where 'bool' is expected", diagnostic.Label{Span: lit.SpanInfo}))
		}
		return BoolID
	case FeltID:
		return FeltID
	default:
		return FeltID
	}
}

func (c *Checker) inferUnary(e *ast.UnaryExpr, scope ids.ScopeID) ID {
	opID := c.childID(e.Operand)
	switch e.Op {
	case ast.UnaryNeg:
		// Negative literal under an unsigned target is checked where the
		// expected type is known (let/param/field/return); here, with no
		// expected context, a bare `-x` on u32 is still an error since u32
		// is unsigned regardless of context (spec.md §4.4.3).
		if lit, ok := e.Operand.(*ast.IntLiteral); ok && lit.Suffix == ast.U32Suffix {
			c.Diags.Add(diagnostic.New(diagnostic.CodeNegativeLiteralUnsigned, diagnostic.Error,
				"negative literal not allowed for unsigned type 'u32'", diagnostic.Label{Span: e.SpanInfo}))
			return ErrorID
		}
		t := c.ExpressionType(opID)
		if t == BoolID {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				"unary '-' is not defined for 'bool'", diagnostic.Label{Span: e.SpanInfo}))
			return ErrorID
		}
		if t == U32ID {
			c.Diags.Add(diagnostic.New(diagnostic.CodeNegativeLiteralUnsigned, diagnostic.Error,
				"unary '-' is not defined for unsigned type 'u32'", diagnostic.Label{Span: e.SpanInfo}))
			return ErrorID
		}
		return t
	case ast.UnaryNot:
		c.ExpressionType(opID)
		return BoolID
	}
	return ErrorID
}

func (c *Checker) inferBinary(e *ast.BinaryExpr, scope ids.ScopeID) ID {
	lID, rID := c.childID(e.Left), c.childID(e.Right)
	switch e.Op {
	case ast.BinAdd, ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinMod:
		lt := c.exprTypeExpected(lID, UnknownID)
		rt := c.exprTypeExpected(rID, lt)
		if lt == UnknownID || lt == FeltID {
			lt = c.exprTypeExpected(lID, rt)
		}
		if !c.In.IsNumeric(lt) || !c.In.IsNumeric(rt) || !Compatible(lt, rt) {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				fmt.Sprintf("invalid right operand for arithmetic operator '%s'. Expected '%s', found '%s'",
					binOpSymbol(e.Op), c.In.String(lt), c.In.String(rt)),
				diagnostic.Label{Span: e.SpanInfo}))
			return ErrorID
		}
		return lt
	case ast.BinEq, ast.BinNeq:
		lt := c.ExpressionType(lID)
		rt := c.ExpressionType(rID)
		if !Compatible(lt, rt) {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				fmt.Sprintf("cannot compare '%s' with '%s'", c.In.String(lt), c.In.String(rt)),
				diagnostic.Label{Span: e.SpanInfo}))
		}
		return BoolID
	case ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		lt := c.ExpressionType(lID)
		rt := c.ExpressionType(rID)
		if lt != U32ID || rt != U32ID {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				"ordering operators are only defined for 'u32'", diagnostic.Label{Span: e.SpanInfo}))
		}
		return BoolID
	case ast.BinAnd, ast.BinOr:
		c.ExpressionType(lID)
		c.ExpressionType(rID)
		return BoolID
	}
	return ErrorID
}

func binOpSymbol(op ast.BinaryOp) string {
	switch op {
	case ast.BinAdd:
		return "+"
	case ast.BinSub:
		return "-"
	case ast.BinMul:
		return "*"
	case ast.BinDiv:
		return "/"
	case ast.BinMod:
		return "%"
	default:
		return "?"
	}
}

func (c *Checker) inferCall(e *ast.CallExpr, scope ids.ScopeID) ID {
	ident, ok := e.Callee.(*ast.Identifier)
	if !ok {
		c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
			"call target must be a function name", diagnostic.Label{Span: e.SpanInfo}))
		return ErrorID
	}
	def, ok := c.SI.FunctionDef(ident.Name)
	if !ok {
		c.Diags.Add(diagnostic.New(diagnostic.CodeUndeclaredVariable, diagnostic.Error,
			"undeclared function '"+ident.Name+"'", diagnostic.Label{Span: e.SpanInfo}))
		return ErrorID
	}
	sig := c.FunctionSignature(def)
	if sig == nil {
		return ErrorID
	}
	if len(e.Args) != len(sig.Params) {
		c.Diags.Add(diagnostic.New(diagnostic.CodeArityMismatch, diagnostic.Error,
			fmt.Sprintf("function '%s' expects %d argument(s), found %d", ident.Name, len(sig.Params), len(e.Args)),
			diagnostic.Label{Span: e.SpanInfo}))
		return c.returnType(sig)
	}
	for i, arg := range e.Args {
		argID := c.childID(arg)
		got := c.exprTypeExpected(argID, sig.Params[i].Type)
		if !Compatible(got, sig.Params[i].Type) {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				fmt.Sprintf("argument %d of '%s': expected '%s', found '%s'",
					i+1, ident.Name, c.In.String(sig.Params[i].Type), c.In.String(got)),
				diagnostic.Label{Span: arg.Span()}))
		}
	}
	return c.returnType(sig)
}

// returnType unwraps a unary return tuple to a scalar, per spec.md §4.4.3.
func (c *Checker) returnType(sig *FunctionSignature) ID {
	switch len(sig.Returns) {
	case 0:
		return UnitID
	case 1:
		return sig.Returns[0]
	default:
		return c.In.InternTuple(sig.Returns)
	}
}

func (c *Checker) inferStructLiteral(e *ast.StructLiteral, scope ids.ScopeID) ID {
	def, ok := c.SI.StructDef(e.Name)
	if !ok {
		c.Diags.Add(diagnostic.New(diagnostic.CodeUnknownType, diagnostic.Error,
			"unknown struct '"+e.Name+"'", diagnostic.Label{Span: e.SpanInfo}))
		return ErrorID
	}
	st := c.StructData(def)
	if st == nil {
		return ErrorID
	}
	seen := map[string]bool{}
	for _, f := range e.Fields {
		idx := st.FieldIndex(f.Name)
		if idx < 0 {
			c.Diags.Add(diagnostic.New(diagnostic.CodeUnknownField, diagnostic.Error,
				fmt.Sprintf("struct '%s' has no field '%s'", e.Name, f.Name),
				diagnostic.Label{Span: e.SpanInfo}))
			continue
		}
		seen[f.Name] = true
		fieldID := c.childID(f.Value)
		got := c.exprTypeExpected(fieldID, st.Fields[idx].Type)
		if !Compatible(got, st.Fields[idx].Type) {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				fmt.Sprintf("field '%s': expected '%s', found '%s'",
					f.Name, c.In.String(st.Fields[idx].Type), c.In.String(got)),
				diagnostic.Label{Span: f.Value.Span()}))
		}
	}
	for _, f := range st.Fields {
		if !seen[f.Name] {
			c.Diags.Add(diagnostic.New(diagnostic.CodeArityMismatch, diagnostic.Error,
				fmt.Sprintf("missing field '%s' in struct literal '%s'", f.Name, e.Name),
				diagnostic.Label{Span: e.SpanInfo}))
		}
	}
	_, tid := c.In.InternStruct(st)
	return tid
}

func (c *Checker) inferMember(e *ast.MemberExpr, scope ids.ScopeID) ID {
	recvID := c.childID(e.Receiver)
	recvT := c.ExpressionType(recvID)
	d := c.In.Get(recvT)
	if d.Kind != Struct {
		if recvT != ErrorID {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				"member access on non-struct type '"+c.In.String(recvT)+"'", diagnostic.Label{Span: e.SpanInfo}))
		}
		return ErrorID
	}
	st := c.In.StructData(d.StructT)
	idx := st.FieldIndex(e.Field)
	if idx < 0 {
		c.Diags.Add(diagnostic.New(diagnostic.CodeUnknownField, diagnostic.Error,
			"no field '"+e.Field+"' on this struct", diagnostic.Label{Span: e.SpanInfo}))
		return ErrorID
	}
	return st.Fields[idx].Type
}

func (c *Checker) inferIndex(e *ast.IndexExpr, scope ids.ScopeID) ID {
	baseID, idxID := c.childID(e.Base), c.childID(e.Index)
	baseT := c.ExpressionType(baseID)
	idxT := c.ExpressionType(idxID)
	d := c.In.Get(baseT)
	if d.Kind != Pointer {
		if baseT != ErrorID {
			c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
				"indexing requires a pointer/array type, found '"+c.In.String(baseT)+"'",
				diagnostic.Label{Span: e.SpanInfo}))
		}
		return ErrorID
	}
	if idxT != FeltID && idxT != U32ID {
		c.Diags.Add(diagnostic.New(diagnostic.CodeTypeMismatch, diagnostic.Error,
			"array index must be 'felt' or 'u32'", diagnostic.Label{Span: e.SpanInfo}))
	}
	return d.Elem
}

func (c *Checker) inferCast(e *ast.CastExpr, scope ids.ScopeID) ID {
	valID := c.childID(e.Value)
	from := c.ExpressionType(valID)
	to := c.ResolveASTType(e.Type, scope)
	okPair := (from == FeltID && to == U32ID) || (from == U32ID && to == FeltID) || Compatible(from, to)
	if !okPair {
		c.Diags.Add(diagnostic.New(diagnostic.CodeInvalidCast, diagnostic.Error,
			fmt.Sprintf("invalid cast from '%s' to '%s'", c.In.String(from), c.In.String(to)),
			diagnostic.Label{Span: e.SpanInfo}))
		return ErrorID
	}
	return to
}
