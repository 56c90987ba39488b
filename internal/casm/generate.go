// Generator lowers a post-pass MirModule into CASM, grounded on the
// teacher's internal/bytecode compiler family (compiler_expr.go /
// compiler_stmt.go emitting opcodes into a Chunk against an operand
// stack), generalized from stack-push/pop code generation into
// frame-slot code generation since CASM instructions address memory
// directly rather than pushing onto a stack. Instruction selection
// follows spec.md §4.8.2; two-pass label/rodata resolution lives in
// labels.go.
package casm

import (
	"fmt"

	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

// Generator holds the state threaded across one module's codegen: the
// type interner, the function signature table (computed once, up front,
// so calls to not-yet-generated or mutually recursive callees can still
// be addressed), and the rodata dedup table.
type Generator struct {
	in       *types.Interner
	prog     *Program
	sigs     map[string]*sigInfo
	blobs    map[string]string
	labelSeq int
}

func NewGenerator(in *types.Interner) *Generator {
	return &Generator{in: in, prog: &Program{}, blobs: map[string]string{}}
}

// Generate lowers m into a resolved Program. m must already have passed
// through the full mirpass pipeline (spec.md §4.7): no aggregate
// instructions, no phis, and every value defined exactly once.
func Generate(m *mir.MirModule, in *types.Interner) (*Program, error) {
	g := NewGenerator(in)
	g.sigs = make(map[string]*sigInfo, len(m.Functions))
	for _, fn := range m.Functions {
		g.sigs[fn.Name] = buildSig(fn, in)
	}

	for _, fn := range m.Functions {
		if err := g.emitFunction(fn); err != nil {
			return nil, err
		}
	}
	resolveLabels(g.prog)
	return g.prog, nil
}

func funcLabel(name string) string { return "fn$" + name }

func (g *Generator) newLabel(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("%s$%d", prefix, g.labelSeq)
}

func (g *Generator) emit(in Instruction) {
	g.prog.Instructions = append(g.prog.Instructions, in)
}

func (g *Generator) emitFunction(fn *mir.MirFunction) error {
	fr, retW, paramW := layoutParamsAndReturns(fn, g.in)

	blockLabels := make([]string, len(fn.Blocks))
	for i := range fn.Blocks {
		blockLabels[i] = g.newLabel(fmt.Sprintf("%s.bb%d", fn.Name, i))
	}

	g.prog.Entrypoints = append(g.prog.Entrypoints, Entrypoint{
		Name: fn.Name, ParamSlots: paramW, ReturnSlots: retW,
	})

	for i := range fn.Blocks {
		blk := fn.Block(mir.BlockId(i))
		labels := []string{blockLabels[i]}
		if i == 0 {
			labels = append(labels, funcLabel(fn.Name))
		}
		g.emit(Instruction{Op: OpMark, DefinedLabels: labels})

		for _, inst := range blk.Instructions {
			if err := g.emitInstruction(fr, inst); err != nil {
				return &ErrCodegen{Function: fn.Name, Reason: err.Error()}
			}
		}
		if err := g.emitTerminator(fr, fn, blk.Terminator, blockLabels); err != nil {
			return &ErrCodegen{Function: fn.Name, Reason: err.Error()}
		}
	}

	return nil
}

// litImm extracts a literal mir.Value as a plain uint64 immediate,
// matching the bool/unit/int encodings mirinterp.value uses for the
// equivalent literal-read path.
func litImm(v mir.Value) (uint64, bool) {
	if !v.IsLiteral {
		return 0, false
	}
	if v.IsUnit {
		return 0, true
	}
	if v.Type == types.BoolID {
		if v.LitBool {
			return 1, true
		}
		return 0, true
	}
	return v.LitInt, true
}

func negMod(v uint64) uint64 {
	v %= FieldModulus
	if v == 0 {
		return 0
	}
	return FieldModulus - v
}

// materialize returns the frame slot holding v's value, loading a literal
// into a fresh scratch slot first if needed. A u32-typed literal is split
// into two 16-bit limbs across its two physical slots on load; every u32
// arithmetic/comparison opcode then treats its two-slot operands as one
// opaque 32-bit word (the limb bookkeeping beyond the literal encoding is
// a VM/prover-internal concern this generator does not need to unpack).
func (g *Generator) materialize(fr *frame, v mir.Value) int {
	if !v.IsLiteral {
		return fr.of(v.Ref)
	}
	w := g.in.SlotWidth(v.Type)
	t := fr.reserve(w)
	if w == 2 {
		lo := v.LitInt & 0xFFFF
		hi := (v.LitInt >> 16) & 0xFFFF
		g.emit(Instruction{Op: OpStoreImm, Dst: t, HasImm: true, Imm: lo})
		g.emit(Instruction{Op: OpStoreImm, Dst: t + 1, HasImm: true, Imm: hi})
		return t
	}
	imm, _ := litImm(v)
	g.emit(Instruction{Op: OpStoreImm, Dst: t, HasImm: true, Imm: imm})
	return t
}

func (g *Generator) copySlots(dstBase, srcBase, width int) {
	for i := 0; i < width; i++ {
		g.emit(Instruction{Op: OpStoreAddFpImm, Dst: dstBase + i, Src0: srcBase + i, HasImm: true, Imm: 0})
	}
}

func (g *Generator) fieldOffset(ptrType types.ID, idx int) int {
	aggType := g.in.Get(ptrType).Elem
	d := g.in.Get(aggType)
	switch d.Kind {
	case types.Struct:
		return g.in.FieldOffset(g.in.StructData(d.StructT), idx)
	case types.Tuple:
		return g.in.TupleOffset(d.Elems, idx)
	default:
		return idx
	}
}

func (g *Generator) emitInstruction(fr *frame, inst mir.Instruction) error {
	switch inst.Kind {
	case mir.KAssign, mir.KAddressOf:
		w := g.in.SlotWidth(inst.Type)
		dst := fr.assign(inst.Dst, w)
		src := g.materialize(fr, inst.Args[0])
		g.copySlots(dst, src, w)

	case mir.KBinaryOp:
		g.emitBinaryOp(fr, inst)

	case mir.KUnaryOp:
		dst := fr.assign(inst.Dst, g.in.SlotWidth(inst.Type))
		src := g.materialize(fr, inst.Args[0])
		if inst.UnOp == mir.OpNot {
			g.emit(Instruction{Op: OpStoreSubImmFp, Dst: dst, Src0: src, HasImm: true, Imm: 1})
		} else {
			g.emit(Instruction{Op: OpStoreSubImmFp, Dst: dst, Src0: src, HasImm: true, Imm: 0})
		}

	case mir.KCast:
		w := g.in.SlotWidth(inst.Type)
		dst := fr.assign(inst.Dst, w)
		src := g.materialize(fr, inst.Args[0])
		g.copySlots(dst, src, w)

	case mir.KFrameAlloc:
		width := g.in.SlotWidth(inst.AllocType)
		region := fr.reserve(width)
		dst := fr.assign(inst.Dst, 1)
		g.emit(Instruction{Op: OpStoreImm, Dst: dst, HasImm: true, Imm: uint64(region)})

	case mir.KLoad:
		w := g.in.SlotWidth(inst.Type)
		dst := fr.assign(inst.Dst, w)
		addr := g.materialize(fr, inst.Args[0])
		for i := 0; i < w; i++ {
			g.emit(Instruction{Op: OpLoadIndirect, Dst: dst + i, Src0: addr, HasImm: true, Imm: uint64(i)})
		}

	case mir.KStore:
		addr := g.materialize(fr, inst.Args[0])
		val := g.materialize(fr, inst.Args[1])
		w := g.in.SlotWidth(inst.Args[1].Type)
		for i := 0; i < w; i++ {
			g.emit(Instruction{Op: OpStoreIndirect, Src0: addr, Src1: val + i, HasImm: true, Imm: uint64(i)})
		}

	case mir.KGetElementPtr:
		dst := fr.assign(inst.Dst, 1)
		base := g.materialize(fr, inst.Args[0])
		if len(inst.Args) == 2 {
			elemT := g.in.Get(inst.Args[0].Type).Elem
			stride := g.in.SlotWidth(elemT)
			if imm, ok := litImm(inst.Args[1]); ok {
				g.emit(Instruction{Op: OpStoreAddFpImm, Dst: dst, Src0: base, HasImm: true, Imm: uint64(int(imm) * stride)})
			} else {
				idx := g.materialize(fr, inst.Args[1])
				tmp := fr.reserve(1)
				g.emit(Instruction{Op: OpStoreMulFpImm, Dst: tmp, Src0: idx, HasImm: true, Imm: uint64(stride)})
				g.emit(Instruction{Op: OpStoreAddFpFp, Dst: dst, Src0: base, Src1: tmp})
			}
		} else {
			off := g.fieldOffset(inst.Args[0].Type, inst.Indices[0])
			g.emit(Instruction{Op: OpStoreAddFpImm, Dst: dst, Src0: base, HasImm: true, Imm: uint64(off)})
		}

	case mir.KMakeFixedArray:
		g.emitMakeFixedArray(fr, inst)

	case mir.KCall:
		g.emitCall(fr, inst, true)
	case mir.KVoidCall:
		g.emitCall(fr, inst, false)

	case mir.KLoadConstAddr:
		dst := fr.assign(inst.Dst, 1)
		g.emit(Instruction{Op: OpLoadConstAddr, Dst: dst, Label: inst.ConstLabel})

	case mir.KDebug, mir.KNop:
		// no CASM emitted; KDebug is a diagnostics-build-only marker with
		// no effect on the executed program.

	case mir.KMakeTuple, mir.KExtractTupleElement, mir.KInsertTuple,
		mir.KMakeStruct, mir.KExtractStructField, mir.KInsertField:
		return fmt.Errorf("aggregate instruction %s reached codegen; LowerAggregates should have removed it", inst.Kind)

	case mir.KPhi:
		return fmt.Errorf("phi reached codegen; SSADestruct should have removed it")
	}
	return nil
}

func (g *Generator) emitMakeFixedArray(fr *frame, inst mir.Instruction) {
	dst := fr.assign(inst.Dst, 1)
	if inst.IsConstArray {
		label := g.internBlob(inst.Args)
		g.emit(Instruction{Op: OpLoadConstAddr, Dst: dst, Label: label})
		return
	}

	// A non-constant MakeFixedArray should already have been rewritten by
	// LowerAggregates into a FrameAlloc plus element-wise Stores; reaching
	// here with dynamic elements still anyway is handled the same way
	// directly, spilling each element into a fresh frame region.
	elemT := types.FeltID
	if len(inst.Args) > 0 {
		elemT = inst.Args[0].Type
	}
	stride := g.in.SlotWidth(elemT)
	region := fr.reserve(stride * len(inst.Args))
	for i, a := range inst.Args {
		val := g.materialize(fr, a)
		g.copySlots(region+i*stride, val, stride)
	}
	g.emit(Instruction{Op: OpStoreImm, Dst: dst, HasImm: true, Imm: uint64(region)})
}

func (g *Generator) internBlob(args []mir.Value) string {
	vals := make([]uint64, len(args))
	key := make([]byte, 0, len(args)*8)
	for i, a := range args {
		imm, _ := litImm(a)
		vals[i] = imm
		for s := 0; s < 8; s++ {
			key = append(key, byte(imm>>(8*s)))
		}
	}
	k := string(key)
	if label, ok := g.blobs[k]; ok {
		return label
	}
	label := fmt.Sprintf("rodata$%d", len(g.prog.Blobs))
	g.blobs[k] = label
	g.prog.Blobs = append(g.prog.Blobs, Blob{Label: label, Values: vals})
	return label
}

// emitCall implements spec.md §4.8.2's Call/Return ABI slot copying: the
// caller reserves a scratch region sized to the callee's return+parameter
// slots at the top of its own frame, copies each argument into its
// parameter sub-region, executes the call, then (for KCall) copies the
// return sub-region into the destination value. Because sigInfo depends
// only on a function's declared parameter/return types, this works for
// calls to a callee whose body has not been generated yet, including
// self-recursive and mutually recursive calls.
func (g *Generator) emitCall(fr *frame, inst mir.Instruction, hasResult bool) {
	sig := g.sigs[inst.Callee]
	total := sig.retW + sig.paramW
	base := fr.reserve(total)

	for i, a := range inst.Args {
		val := g.materialize(fr, a)
		w := g.in.SlotWidth(sig.paramTypes[i])
		g.copySlots(base+sig.retW+sig.paramOffs[i], val, w)
	}

	g.emit(Instruction{Op: OpCall, Label: funcLabel(inst.Callee), Dst: base, Comment: "call " + inst.Callee})

	if hasResult {
		w := g.in.SlotWidth(inst.Type)
		dst := fr.assign(inst.Dst, w)
		g.copySlots(dst, base, w)
	}
}

func (g *Generator) emitTerminator(fr *frame, fn *mir.MirFunction, t mir.Terminator, blockLabels []string) error {
	switch t.Kind {
	case mir.TGoto:
		g.emit(Instruction{Op: OpJmpAbs, Label: blockLabels[t.Target]})

	case mir.TIf:
		var cond int
		if t.FusedCompare {
			isU32 := g.in.Get(t.CompareLHS.Type).Kind == types.U32
			l := g.materialize(fr, t.CompareLHS)
			r := g.materialize(fr, t.CompareRHS)
			cond = fr.reserve(1)
			g.storeCompareOp(fr, cond, t.CompareOp, l, r, isU32)
		} else {
			cond = g.materialize(fr, t.Cond)
		}
		g.emit(Instruction{Op: OpJnzRel, Src0: cond, Label: blockLabels[t.Then]})
		g.emit(Instruction{Op: OpJmpAbs, Label: blockLabels[t.Else]})

	case mir.TReturn:
		sig := g.sigs[fn.Name]
		retBase := -(sig.retW + sig.paramW)
		for i, v := range t.Values {
			w := g.in.SlotWidth(sig.retTypes[i])
			src := g.materialize(fr, v)
			g.copySlots(retBase+sig.retOffs[i], src, w)
		}
		g.emit(Instruction{Op: OpRet})

	case mir.TUnreachable:
		return fmt.Errorf("unreachable terminator reached codegen")
	}
	return nil
}
