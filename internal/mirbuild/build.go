// Package mirbuild lowers a type-checked function AST into SSA MIR
// (spec.md §4.6). Every named binding (let/local/const/parameter) is
// materialized as a FrameAlloc slot from the moment it is declared and
// read/written through Load/Store; mirpass.Mem2Reg promotes these back to
// pure SSA values in a later pass. Struct/tuple VALUES that are never
// bound to a name (a call's multi-return tuple consumed immediately by a
// destructuring pattern, a struct literal passed straight into a call)
// stay value-based (`MakeStruct`/`MakeTuple`/`Extract*`) so const-fold and
// lower-aggregates have real work to do, matching spec.md §4.7 step 2-3's
// rationale.
//
// Grounded on the teacher's internal/bytecode/compiler_*.go family (a
// recursive statement/expression lowering walk writing into a single
// output buffer), generalized from a flat stack-machine tape into a
// basic-block graph with explicit terminators.
package mirbuild

import (
	"fmt"

	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/ids"
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/semindex"
	"github.com/cairo-m/compiler/internal/types"
)

// Lower builds a MirModule from every function declared at the top level
// of prog. Callers must not invoke this when si.Diagnostics (merged with
// validator output) contains any Error-severity diagnostic (spec.md §4.5,
// §7: "MIR construction never runs if any semantic Error was emitted").
func Lower(prog *ast.Program, si *semindex.SemanticIndex, ck *types.Checker) *mir.MirModule {
	mod := &mir.MirModule{}
	for _, item := range prog.Items {
		if decl, ok := item.(*ast.FunctionDecl); ok {
			mod.Functions = append(mod.Functions, lowerFunction(decl, si, ck))
		}
	}
	return mod
}

type builder struct {
	si  *semindex.SemanticIndex
	ck  *types.Checker
	in  *types.Interner
	fn  *mir.MirFunction
	cur mir.BlockId

	slots map[ids.DefinitionID]mir.Value // FrameAlloc pointer per named binding

	breakTargets    []mir.BlockId
	continueTargets []mir.BlockId
}

func lowerFunction(decl *ast.FunctionDecl, si *semindex.SemanticIndex, ck *types.Checker) *mir.MirFunction {
	def, _ := si.FunctionDef(decl.Name)
	sig := ck.FunctionSignature(def)
	fn := mir.NewFunction(decl.Name)
	if sig != nil {
		fn.Returns = sig.Returns
	}
	b := &builder{si: si, ck: ck, in: ck.In, fn: fn, cur: fn.EntryBlock, slots: map[ids.DefinitionID]mir.Value{}}

	for i, p := range decl.Params {
		var pt types.ID = types.UnknownID
		if sig != nil && i < len(sig.Params) {
			pt = sig.Params[i].Type
		}
		paramVal := fn.NewValue()
		fn.Params = append(fn.Params, mir.Param{Value: paramVal, Type: pt, Name: p.Name})
		pdef, ok := si.DefinitionForNode(p, p.Name)
		if !ok {
			continue
		}
		slot := b.allocSlot(pt, "param."+p.Name)
		b.store(slot, mir.Operand(paramVal, pt))
		b.slots[pdef] = slot
	}

	b.lowerBlock(decl.Body)
	if !b.fn.Block(b.cur).Terminated {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TReturn})
	}
	return fn
}

// ---- block/statement emission plumbing ----

func (b *builder) setTerm(blk mir.BlockId, t mir.Terminator) {
	bb := b.fn.Block(blk)
	bb.Terminator = t
	bb.Terminated = true
}

func (b *builder) allocSlot(t types.ID, comment string) mir.Value {
	dst := b.fn.NewValue()
	ptrT := b.in.InternPointer(t)
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KFrameAlloc, Dst: dst, Defines: true, Type: ptrT, AllocType: t, Comment: comment})
	return mir.Operand(dst, ptrT)
}

func (b *builder) load(addr mir.Value, resultType types.ID) mir.Value {
	dst := b.fn.NewValue()
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KLoad, Dst: dst, Defines: true, Type: resultType, Args: []mir.Value{addr}})
	return mir.Operand(dst, resultType)
}

func (b *builder) store(addr, val mir.Value) {
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KStore, Args: []mir.Value{addr, val}})
}

func (b *builder) gep(addr mir.Value, index int, resultType types.ID) mir.Value {
	dst := b.fn.NewValue()
	ptrT := b.in.InternPointer(resultType)
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KGetElementPtr, Dst: dst, Defines: true, Type: ptrT, Args: []mir.Value{addr}, Indices: []int{index}})
	return mir.Operand(dst, ptrT)
}

func (b *builder) lowerBlock(blk *ast.BlockStmt) {
	for _, stmt := range blk.Stmts {
		if b.fn.Block(b.cur).Terminated {
			return
		}
		b.lowerStmt(stmt)
	}
}

func (b *builder) lowerStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		b.lowerLet(s)
	case *ast.ConstDecl:
		b.lowerConstStmt(s)
	case *ast.AssignStmt:
		addr, elemType := b.lowerPlace(s.Target)
		val := b.lowerExprExpected(s.Value, elemType)
		b.store(addr, val)
	case *ast.ExprStmt:
		b.lowerExpr(s.Value)
	case *ast.ReturnStmt:
		vals := make([]mir.Value, len(s.Values))
		for i, v := range s.Values {
			expected := types.UnknownID
			if i < len(b.fn.Returns) {
				expected = b.fn.Returns[i]
			}
			vals[i] = b.lowerExprExpected(v, expected)
		}
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TReturn, Values: vals})
	case *ast.IfStmt:
		b.lowerIf(s)
	case *ast.WhileStmt:
		b.lowerWhile(s)
	case *ast.LoopStmt:
		b.lowerLoop(s)
	case *ast.ForStmt:
		b.lowerFor(s)
	case *ast.BlockStmt:
		b.lowerBlock(s)
	case *ast.BreakStmt:
		if len(b.breakTargets) > 0 {
			b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: b.breakTargets[len(b.breakTargets)-1]})
		}
	case *ast.ContinueStmt:
		if len(b.continueTargets) > 0 {
			b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: b.continueTargets[len(b.continueTargets)-1]})
		}
	}
}

func (b *builder) lowerLet(s *ast.LetStmt) {
	var initVal *mir.Value
	if s.Value != nil {
		v := b.lowerExpr(s.Value)
		initVal = &v
	}
	bind := func(name string) {
		def, ok := b.si.DefinitionForNode(s, name)
		if !ok {
			return
		}
		t := b.ck.DefinitionType(def)
		slot := b.allocSlot(t, "let."+name)
		if initVal != nil {
			b.store(slot, coerce(*initVal, t))
		}
		b.slots[def] = slot
	}
	switch pat := s.Pattern.(type) {
	case *ast.IdentPattern:
		bind(pat.Name)
	case *ast.TuplePattern:
		b.bindTuplePattern(s, pat, initVal)
	}
}

// bindTuplePattern destructures a tuple-typed initializer into per-element
// FrameAlloc slots via ExtractTupleElement (spec.md §8.4 Scenario E). The
// owning LetStmt, not the TuplePattern, is the Definition's Node (matching
// semindex.walkLet), so it is threaded through from lowerLet.
func (b *builder) bindTuplePattern(s *ast.LetStmt, pat *ast.TuplePattern, initVal *mir.Value) {
	if initVal == nil {
		return
	}
	for i, elem := range pat.Elems {
		id, ok := elem.(*ast.IdentPattern)
		if !ok {
			continue
		}
		def, ok := b.si.DefinitionForNode(s, id.Name)
		if !ok {
			continue
		}
		t := b.ck.DefinitionType(def)
		dst := b.fn.NewValue()
		b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KExtractTupleElement, Dst: dst, Defines: true, Type: t, Args: []mir.Value{*initVal}, Indices: []int{i}})
		slot := b.allocSlot(t, "let."+id.Name)
		b.store(slot, mir.Operand(dst, t))
		b.slots[def] = slot
	}
}

func (b *builder) lowerConstStmt(s *ast.ConstDecl) {
	def, ok := b.si.DefinitionForNode(s, s.Name)
	if !ok {
		return
	}
	t := b.ck.DefinitionType(def)
	val := b.lowerExprExpected(s.Value, t)
	slot := b.allocSlot(t, "const."+s.Name)
	b.store(slot, val)
	b.slots[def] = slot
}

func (b *builder) lowerIf(s *ast.IfStmt) {
	thenBlk := b.fn.NewBlock()
	elseBlk := b.fn.NewBlock()
	mergeBlk := b.fn.NewBlock()
	cond := b.lowerExpr(s.Cond)
	b.setTerm(b.cur, mir.Terminator{Kind: mir.TIf, Cond: cond, Then: thenBlk, Else: elseBlk})

	b.cur = thenBlk
	b.lowerBlock(s.Then)
	if !b.fn.Block(b.cur).Terminated {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: mergeBlk})
	}

	b.cur = elseBlk
	if s.Else != nil {
		b.lowerStmt(s.Else)
	}
	if !b.fn.Block(b.cur).Terminated {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: mergeBlk})
	}

	b.cur = mergeBlk
}

func (b *builder) lowerWhile(s *ast.WhileStmt) {
	headerBlk := b.fn.NewBlock()
	bodyBlk := b.fn.NewBlock()
	afterBlk := b.fn.NewBlock()
	b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: headerBlk})

	b.cur = headerBlk
	cond := b.lowerExpr(s.Cond)
	b.setTerm(b.cur, mir.Terminator{Kind: mir.TIf, Cond: cond, Then: bodyBlk, Else: afterBlk})

	b.cur = bodyBlk
	b.breakTargets = append(b.breakTargets, afterBlk)
	b.continueTargets = append(b.continueTargets, headerBlk)
	b.lowerBlock(s.Body)
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]
	if !b.fn.Block(b.cur).Terminated {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: headerBlk})
	}

	b.cur = afterBlk
}

func (b *builder) lowerLoop(s *ast.LoopStmt) {
	bodyBlk := b.fn.NewBlock()
	afterBlk := b.fn.NewBlock()
	b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: bodyBlk})

	b.cur = bodyBlk
	b.breakTargets = append(b.breakTargets, afterBlk)
	b.continueTargets = append(b.continueTargets, bodyBlk)
	b.lowerBlock(s.Body)
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]
	if !b.fn.Block(b.cur).Terminated {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: bodyBlk})
	}

	b.cur = afterBlk
}

func (b *builder) lowerFor(s *ast.ForStmt) {
	if s.Init != nil {
		b.lowerStmt(s.Init)
	}
	headerBlk := b.fn.NewBlock()
	bodyBlk := b.fn.NewBlock()
	postBlk := b.fn.NewBlock()
	afterBlk := b.fn.NewBlock()
	b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: headerBlk})

	b.cur = headerBlk
	if s.Cond != nil {
		cond := b.lowerExpr(s.Cond)
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TIf, Cond: cond, Then: bodyBlk, Else: afterBlk})
	} else {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: bodyBlk})
	}

	b.cur = bodyBlk
	b.breakTargets = append(b.breakTargets, afterBlk)
	b.continueTargets = append(b.continueTargets, postBlk)
	b.lowerBlock(s.Body)
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]
	if !b.fn.Block(b.cur).Terminated {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: postBlk})
	}

	b.cur = postBlk
	if s.Post != nil {
		b.lowerStmt(s.Post)
	}
	if !b.fn.Block(b.cur).Terminated {
		b.setTerm(b.cur, mir.Terminator{Kind: mir.TGoto, Target: headerBlk})
	}

	b.cur = afterBlk
}

// ---- places (assignable locations) ----

// lowerPlace computes the address of an assignable expression and returns
// it alongside the place's element type.
func (b *builder) lowerPlace(expr ast.Expr) (mir.Value, types.ID) {
	switch e := expr.(type) {
	case *ast.Identifier:
		id := b.ck.ChildID(e)
		def, ok := b.si.UseDef[id]
		if !ok {
			return mir.Value{}, types.ErrorID
		}
		slot, ok := b.slots[def]
		if !ok {
			return mir.Value{}, types.ErrorID
		}
		return slot, b.ck.DefinitionType(def)
	case *ast.MemberExpr:
		base, baseType := b.lowerPlace(e.Receiver)
		st := b.structOf(baseType)
		if st == nil {
			return base, types.ErrorID
		}
		idx := st.FieldIndex(e.Field)
		if idx < 0 {
			return base, types.ErrorID
		}
		fieldT := st.Fields[idx].Type
		return b.gep(base, idx, fieldT), fieldT
	case *ast.IndexExpr:
		base := b.lowerExpr(e.Base)
		idxVal := b.lowerExpr(e.Index)
		baseData := b.in.Get(baseTypeOf(base))
		elemT := types.ErrorID
		if baseData.Kind == types.Pointer {
			elemT = baseData.Elem
		}
		dst := b.fn.NewValue()
		ptrT := b.in.InternPointer(elemT)
		b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KGetElementPtr, Dst: dst, Defines: true, Type: ptrT, Args: []mir.Value{base, idxVal}})
		return mir.Operand(dst, ptrT), elemT
	default:
		return mir.Value{}, types.ErrorID
	}
}

func baseTypeOf(v mir.Value) types.ID { return v.Type }

func (b *builder) structOf(t types.ID) *types.StructType {
	d := b.in.Get(t)
	if d.Kind != types.Struct {
		return nil
	}
	return b.in.StructData(d.StructT)
}

// ---- expressions ----

func (b *builder) lowerExpr(expr ast.Expr) mir.Value {
	return b.lowerExprExpected(expr, types.UnknownID)
}

// lowerExprExpected lowers expr, using expected only to pin a bare integer
// literal's type (mirroring internal/types.Checker's contextual inference
// so construction and type-checking agree on every literal's width).
func (b *builder) lowerExprExpected(expr ast.Expr, expected types.ID) mir.Value {
	id := b.ck.ChildID(expr)
	t := b.ck.ExprTypeExpected(id, expected)
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return mir.LitInt(e.Value, t)
	case *ast.BoolLiteral:
		return mir.LitBool(e.Value)
	case *ast.UnitLiteral:
		return mir.LitUnit()
	case *ast.Identifier:
		def, ok := b.si.UseDef[id]
		if !ok {
			return mir.Value{Type: types.ErrorID}
		}
		slot, ok := b.slots[def]
		if !ok {
			return mir.Value{Type: types.ErrorID}
		}
		return b.load(slot, t)
	case *ast.UnaryExpr:
		return b.lowerUnary(e, t)
	case *ast.BinaryExpr:
		return b.lowerBinary(e, t)
	case *ast.CallExpr:
		return b.lowerCall(e, t)
	case *ast.StructLiteral:
		return b.lowerStructLiteral(e, t)
	case *ast.MemberExpr, *ast.IndexExpr:
		addr, elemT := b.lowerPlace(e)
		return b.load(addr, elemT)
	case *ast.TupleExpr:
		return b.lowerTupleLiteral(e, t)
	case *ast.CastExpr:
		val := b.lowerExpr(e.Value)
		dst := b.fn.NewValue()
		b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KCast, Dst: dst, Defines: true, Type: t, Args: []mir.Value{val}})
		return mir.Operand(dst, t)
	case *ast.AddressOfExpr:
		addr, _ := b.lowerPlace(e.Value)
		return addr
	case *ast.FixedArrayLiteral:
		return b.lowerFixedArray(e, t)
	default:
		return mir.Value{Type: types.ErrorID}
	}
}

func coerce(v mir.Value, t types.ID) mir.Value {
	if v.IsLiteral && !v.IsUnit && v.Type != types.BoolID {
		v.Type = t
	}
	return v
}

func (b *builder) lowerUnary(e *ast.UnaryExpr, t types.ID) mir.Value {
	operand := b.lowerExpr(e.Operand)
	dst := b.fn.NewValue()
	op := mir.OpNeg
	if e.Op == ast.UnaryNot {
		op = mir.OpNot
	}
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KUnaryOp, Dst: dst, Defines: true, Type: t, UnOp: op, Args: []mir.Value{operand}})
	return mir.Operand(dst, t)
}

var binOpTable = map[ast.BinaryOp]mir.BinOp{
	ast.BinAdd: mir.OpAdd, ast.BinSub: mir.OpSub, ast.BinMul: mir.OpMul, ast.BinDiv: mir.OpDiv, ast.BinMod: mir.OpMod,
	ast.BinEq: mir.OpEq, ast.BinNeq: mir.OpNeq, ast.BinLt: mir.OpLt, ast.BinLe: mir.OpLe, ast.BinGt: mir.OpGt, ast.BinGe: mir.OpGe,
	ast.BinAnd: mir.OpAnd, ast.BinOr: mir.OpOr,
}

func (b *builder) lowerBinary(e *ast.BinaryExpr, t types.ID) mir.Value {
	var lt types.ID
	switch e.Op {
	case ast.BinAdd, ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinMod:
		lt = t
	default:
		lt = types.UnknownID
	}
	left := b.lowerExprExpected(e.Left, lt)
	right := b.lowerExprExpected(e.Right, left.Type)
	dst := b.fn.NewValue()
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KBinaryOp, Dst: dst, Defines: true, Type: t, BinOp: binOpTable[e.Op], Args: []mir.Value{left, right}})
	return mir.Operand(dst, t)
}

func (b *builder) lowerCall(e *ast.CallExpr, resultType types.ID) mir.Value {
	ident, _ := e.Callee.(*ast.Identifier)
	name := ""
	if ident != nil {
		name = ident.Name
	}
	var sig *types.FunctionSignature
	if ident != nil {
		if d, ok := b.si.FunctionDef(ident.Name); ok {
			sig = b.ck.FunctionSignature(d)
		}
	}
	args := make([]mir.Value, len(e.Args))
	for i, a := range e.Args {
		expected := types.UnknownID
		if sig != nil && i < len(sig.Params) {
			expected = sig.Params[i].Type
		}
		args[i] = b.lowerExprExpected(a, expected)
	}
	if resultType == types.UnitID {
		b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KVoidCall, Callee: name, Args: args})
		return mir.LitUnit()
	}
	dst := b.fn.NewValue()
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KCall, Dst: dst, Defines: true, Type: resultType, Callee: name, Args: args})
	return mir.Operand(dst, resultType)
}

func (b *builder) lowerStructLiteral(e *ast.StructLiteral, t types.ID) mir.Value {
	st := b.structOf(t)
	if st == nil {
		return mir.Value{Type: types.ErrorID}
	}
	vals := make([]mir.Value, len(st.Fields))
	for _, f := range e.Fields {
		idx := st.FieldIndex(f.Name)
		if idx < 0 {
			continue
		}
		vals[idx] = b.lowerExprExpected(f.Value, st.Fields[idx].Type)
	}
	dst := b.fn.NewValue()
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KMakeStruct, Dst: dst, Defines: true, Type: t, Args: vals})
	return mir.Operand(dst, t)
}

func (b *builder) lowerTupleLiteral(e *ast.TupleExpr, t types.ID) mir.Value {
	vals := make([]mir.Value, len(e.Elems))
	for i, el := range e.Elems {
		vals[i] = b.lowerExpr(el)
	}
	dst := b.fn.NewValue()
	b.fn.Emit(b.cur, mir.Instruction{Kind: mir.KMakeTuple, Dst: dst, Defines: true, Type: t, Args: vals})
	return mir.Operand(dst, t)
}

func (b *builder) lowerFixedArray(e *ast.FixedArrayLiteral, t types.ID) mir.Value {
	vals := make([]mir.Value, len(e.Elems))
	isConst := true
	for i, el := range e.Elems {
		vals[i] = b.lowerExpr(el)
		if !vals[i].IsLiteral {
			isConst = false
		}
	}
	dst := b.fn.NewValue()
	b.fn.Emit(b.cur, mir.Instruction{
		Kind: mir.KMakeFixedArray, Dst: dst, Defines: true, Type: t, Args: vals,
		IsConstArray: isConst, ConstLabel: fmt.Sprintf(".rodata.%d", dst),
	})
	return mir.Operand(dst, t)
}
