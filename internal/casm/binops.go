package casm

import (
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

// emitBinaryOp implements spec.md §4.8.2's BinaryOp selection rules.
// Felt arithmetic prefers the *_fp_imm opcode forms whenever one operand
// is a compile-time literal (with subtraction/division by an immediate
// normalized into addition/multiplication by its negated/inverted
// immediate); every other shape, and all of u32, falls back to
// materializing both operands into slots and using the *_fp_fp form. felt
// has no native ordering comparison in the M31 field, so only Eq/Neq are
// selected for it; type checking (internal/types, reported through
// validation) rejects ordering comparisons on non-u32 operands well before
// a function reaches codegen.
func (g *Generator) emitBinaryOp(fr *frame, inst mir.Instruction) {
	dst := fr.assign(inst.Dst, g.in.SlotWidth(inst.Type))
	lhs, rhs := inst.Args[0], inst.Args[1]
	isU32 := g.in.Get(lhs.Type).Kind == types.U32

	switch inst.BinOp {
	case mir.OpAdd:
		g.emitAddSub(fr, dst, lhs, rhs, isU32, true)
	case mir.OpSub:
		g.emitAddSub(fr, dst, lhs, rhs, isU32, false)
	case mir.OpMul:
		g.emitMul(fr, dst, lhs, rhs, isU32)
	case mir.OpDiv:
		g.emitDiv(fr, dst, lhs, rhs, isU32)
	case mir.OpMod:
		l, r := g.materialize(fr, lhs), g.materialize(fr, rhs)
		op := OpStoreModFpFp
		if isU32 {
			op = OpU32StoreModFpFp
		}
		g.emit(Instruction{Op: op, Dst: dst, Src0: l, Src1: r})
	case mir.OpEq, mir.OpNeq, mir.OpLt, mir.OpLe, mir.OpGt, mir.OpGe:
		g.emitCompare(fr, dst, inst.BinOp, lhs, rhs, isU32)
	case mir.OpAnd:
		l, r := g.materialize(fr, lhs), g.materialize(fr, rhs)
		g.emit(Instruction{Op: OpStoreMulFpFp, Dst: dst, Src0: l, Src1: r})
	case mir.OpOr:
		// a || b, both operands already materialized (booleans are
		// evaluated eagerly by the time they reach MIR; short-circuiting,
		// if the source language has it, is lowered into explicit control
		// flow during MIR construction rather than surviving as a single
		// BinaryOp), computed as a + b - a*b over 0/1 felts.
		l, r := g.materialize(fr, lhs), g.materialize(fr, rhs)
		prod := fr.reserve(1)
		g.emit(Instruction{Op: OpStoreMulFpFp, Dst: prod, Src0: l, Src1: r})
		sum := fr.reserve(1)
		g.emit(Instruction{Op: OpStoreAddFpFp, Dst: sum, Src0: l, Src1: r})
		g.emit(Instruction{Op: OpStoreSubFpFp, Dst: dst, Src0: sum, Src1: prod})
	}
}

func (g *Generator) emitAddSub(fr *frame, dst int, lhs, rhs mir.Value, isU32, isAdd bool) {
	addOp, subOp := OpStoreAddFpFp, OpStoreSubFpFp
	if isU32 {
		addOp, subOp = OpU32StoreAddFpFp, OpU32StoreSubFpFp
	}

	if isAdd {
		if imm, ok := litImm(rhs); ok && !isU32 {
			l := g.materialize(fr, lhs)
			g.emit(Instruction{Op: OpStoreAddFpImm, Dst: dst, Src0: l, HasImm: true, Imm: imm % FieldModulus})
			return
		}
		if imm, ok := litImm(lhs); ok && !isU32 {
			r := g.materialize(fr, rhs)
			g.emit(Instruction{Op: OpStoreAddFpImm, Dst: dst, Src0: r, HasImm: true, Imm: imm % FieldModulus})
			return
		}
		l, r := g.materialize(fr, lhs), g.materialize(fr, rhs)
		g.emit(Instruction{Op: addOp, Dst: dst, Src0: l, Src1: r})
		return
	}

	if imm, ok := litImm(rhs); ok && !isU32 {
		l := g.materialize(fr, lhs)
		g.emit(Instruction{Op: OpStoreAddFpImm, Dst: dst, Src0: l, HasImm: true, Imm: negMod(imm)})
		return
	}
	if imm, ok := litImm(lhs); ok && !isU32 {
		r := g.materialize(fr, rhs)
		g.emit(Instruction{Op: OpStoreSubImmFp, Dst: dst, Src0: r, HasImm: true, Imm: imm % FieldModulus})
		return
	}
	l, r := g.materialize(fr, lhs), g.materialize(fr, rhs)
	g.emit(Instruction{Op: subOp, Dst: dst, Src0: l, Src1: r})
}

func (g *Generator) emitMul(fr *frame, dst int, lhs, rhs mir.Value, isU32 bool) {
	mulOp := OpStoreMulFpFp
	if isU32 {
		mulOp = OpU32StoreMulFpFp
	}
	if imm, ok := litImm(rhs); ok && !isU32 {
		l := g.materialize(fr, lhs)
		g.emit(Instruction{Op: OpStoreMulFpImm, Dst: dst, Src0: l, HasImm: true, Imm: imm % FieldModulus})
		return
	}
	if imm, ok := litImm(lhs); ok && !isU32 {
		r := g.materialize(fr, rhs)
		g.emit(Instruction{Op: OpStoreMulFpImm, Dst: dst, Src0: r, HasImm: true, Imm: imm % FieldModulus})
		return
	}
	l, r := g.materialize(fr, lhs), g.materialize(fr, rhs)
	g.emit(Instruction{Op: mulOp, Dst: dst, Src0: l, Src1: r})
}

// emitDiv normalizes division by a felt immediate into multiplication by
// its modular inverse (spec.md §4.8.2's "immediate normalization"); u32
// division and felt division by a runtime value both use the native
// *_fp_fp form.
func (g *Generator) emitDiv(fr *frame, dst int, lhs, rhs mir.Value, isU32 bool) {
	if !isU32 {
		if imm, ok := litImm(rhs); ok && imm != 0 {
			l := g.materialize(fr, lhs)
			g.emit(Instruction{Op: OpStoreMulFpImm, Dst: dst, Src0: l, HasImm: true, Imm: modInverse(imm, FieldModulus)})
			return
		}
	}
	l, r := g.materialize(fr, lhs), g.materialize(fr, rhs)
	op := OpStoreDivFpFp
	if isU32 {
		op = OpU32StoreDivFpFp
	}
	g.emit(Instruction{Op: op, Dst: dst, Src0: l, Src1: r})
}

func modInverse(a, p uint64) uint64 {
	a %= p
	if a == 0 {
		return 0
	}
	return modPow(a, p-2, p)
}

func modPow(base, exp, mod uint64) uint64 {
	result := uint64(1)
	base %= mod
	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % mod
		}
		exp >>= 1
		base = (base * base) % mod
	}
	return result
}

func (g *Generator) emitCompare(fr *frame, dst int, op mir.BinOp, lhs, rhs mir.Value, isU32 bool) {
	l := g.materialize(fr, lhs)
	r := g.materialize(fr, rhs)
	g.storeCompareOp(fr, dst, op, l, r, isU32)
}

// storeCompareOp derives the full {<,<=,>,>=,!=} comparison set from the
// two opcodes the ISA natively provides (eq and lt), matching spec.md
// §4.8.2's derivation rules: != is 1-eq; > is lt with swapped operands;
// >= is 1-lt; <= is 1-lt with swapped operands, i.e. 1-lt(rhs,lhs).
func (g *Generator) storeCompareOp(fr *frame, dst int, op mir.BinOp, l, r int, isU32 bool) {
	if !isU32 {
		switch op {
		case mir.OpEq:
			g.emit(Instruction{Op: OpStoreEqFpFp, Dst: dst, Src0: l, Src1: r})
		case mir.OpNeq:
			g.emit(Instruction{Op: OpStoreNeqFpFp, Dst: dst, Src0: l, Src1: r})
		default:
			g.emit(Instruction{Op: OpStoreEqFpFp, Dst: dst, Src0: l, Src1: r, Comment: "unreachable: felt has no native ordering"})
		}
		return
	}

	switch op {
	case mir.OpEq:
		g.emit(Instruction{Op: OpU32StoreEqFpFp, Dst: dst, Src0: l, Src1: r})
	case mir.OpNeq:
		t := fr.reserve(1)
		g.emit(Instruction{Op: OpU32StoreEqFpFp, Dst: t, Src0: l, Src1: r})
		g.emit(Instruction{Op: OpStoreSubImmFp, Dst: dst, Src0: t, HasImm: true, Imm: 1})
	case mir.OpLt:
		g.emit(Instruction{Op: OpU32StoreLtFpFp, Dst: dst, Src0: l, Src1: r})
	case mir.OpGt:
		g.emit(Instruction{Op: OpU32StoreLtFpFp, Dst: dst, Src0: r, Src1: l})
	case mir.OpLe:
		t := fr.reserve(1)
		g.emit(Instruction{Op: OpU32StoreLtFpFp, Dst: t, Src0: r, Src1: l})
		g.emit(Instruction{Op: OpStoreSubImmFp, Dst: dst, Src0: t, HasImm: true, Imm: 1})
	case mir.OpGe:
		t := fr.reserve(1)
		g.emit(Instruction{Op: OpU32StoreLtFpFp, Dst: t, Src0: l, Src1: r})
		g.emit(Instruction{Op: OpStoreSubImmFp, Dst: dst, Src0: t, HasImm: true, Imm: 1})
	}
}
