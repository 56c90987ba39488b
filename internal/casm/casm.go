// Package casm implements Cairo-M Assembly: the instruction set, program
// container, code generator, two-pass label resolver, and textual
// disassembler of spec.md §3.5 and §4.8.
//
// Grounded on the teacher's internal/bytecode package: Opcode/Instruction/
// Chunk there play the same role bytecode.Chunk's opcode enum, Instruction
// encoding, and disasm.go play here, generalized from a stack-machine
// opcode set (push/pop locals) into a register(fp-offset)-addressed one,
// since CASM instructions read and write frame slots directly rather than
// an operand stack.
package casm

import "fmt"

// FieldModulus is Cairo-M's base field size, mirrored from
// internal/mirinterp so felt immediate arithmetic (e.g. negating a
// subtrahend for OpStoreAddFpImm) reduces against the same prime the
// target VM uses.
const FieldModulus uint64 = (1 << 31) - 1

// Opcode is CASM's fixed instruction enumeration (spec.md §4.8.2). Actual
// numeric opcode IDs are assigned once at build time per spec.md §6.4 and
// are not otherwise meaningful; what matters here is the category.
type Opcode int

const (
	OpStoreImm Opcode = iota
	OpStoreAddFpFp
	OpStoreAddFpImm
	OpStoreSubFpFp
	OpStoreMulFpFp
	OpStoreMulFpImm
	OpStoreDivFpFp

	OpU32StoreAddFpFp
	OpU32StoreSubFpFp
	OpU32StoreMulFpFp
	OpU32StoreDivFpFp
	OpU32StoreLtFpFp
	OpU32StoreEqFpFp

	OpStoreEqFpFp
	OpStoreNeqFpFp
	OpStoreModFpFp
	OpU32StoreModFpFp

	// OpStoreSubImmFp computes dst = imm - src0, the reversed form needed
	// for a literal-minus-register subtraction, boolean not (imm=1), and
	// unary negation (imm=0); a plain register-minus-immediate normalizes
	// to OpStoreAddFpImm with a negated immediate instead (see
	// Generator.emitAddSub), so no separate FpImm subtract opcode exists.
	OpStoreSubImmFp

	OpLoadIndirect  // dst = [[base] + imm]
	OpStoreIndirect // [[base] + imm] = src

	OpJmpAbs
	OpJnzRel // if [cond] != 0, jump; else falls through to the next instruction
	OpCall
	OpRet

	OpLoadConstAddr

	// OpMark carries no runtime effect and occupies zero slots; it exists
	// purely so every basic block (even an empty one) has an instruction
	// to hang its label off, for the two-pass resolver in labels.go.
	OpMark
)

func (o Opcode) String() string {
	names := [...]string{
		"store_imm", "store_add_fp_fp", "store_add_fp_imm", "store_sub_fp_fp",
		"store_mul_fp_fp", "store_mul_fp_imm", "store_div_fp_fp",
		"u32_store_add_fp_fp", "u32_store_sub_fp_fp", "u32_store_mul_fp_fp",
		"u32_store_div_fp_fp", "u32_store_lt_fp_fp", "u32_store_eq_fp_fp",
		"store_eq_fp_fp", "store_neq_fp_fp", "store_mod_fp_fp", "u32_store_mod_fp_fp",
		"store_sub_imm_fp",
		"load_indirect", "store_indirect",
		"jmp_abs", "jnz_rel", "call", "ret", "load_const_addr", "mark",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// Instruction is one CASM instruction: `[opcode_id, off0?, off1?, off2?,
// imm?]` per spec.md §3.5, modeled here as named fields rather than a raw
// slot array for readability; Width reports how many slots it occupies.
type Instruction struct {
	Op      Opcode
	Dst     int
	Src0    int
	Src1    int
	HasImm  bool
	Imm     uint64
	Label   string // symbolic jump/call/blob target, resolved to PC/Offset in pass 2
	PC      int    // resolved target PC (or rodata offset), valid after label resolution
	Comment string

	// DefinedLabels are the symbolic labels whose address resolves to this
	// instruction's own PC. Populated by Generator, consumed by
	// resolveLabels.
	DefinedLabels []string
}

// Width reports the instruction's slot count: 0 for the zero-effect
// OpMark bookkeeping instruction, 2 when it carries an immediate or a
// jump/call/const-addr target, 1 otherwise, matching spec.md §3.5's
// "variable-width (1 or 2 slots)".
func (in Instruction) Width() int {
	if in.Op == OpMark {
		return 0
	}
	if in.HasImm || in.Label != "" || in.Op == OpJmpAbs || in.Op == OpJnzRel || in.Op == OpCall {
		return 2
	}
	return 1
}

// Blob is one rodata entry: a flat sequence of M31 field elements backing
// a constant fixed array (spec.md §4.8.2's MakeFixedArray rule).
type Blob struct {
	Label  string
	Values []uint64
	Offset int // resolved absolute offset, valid after layout
}

// Entrypoint is one exported function's call contract (spec.md §6.4).
type Entrypoint struct {
	Name        string
	PC          int
	ParamSlots  int
	ReturnSlots int
}

// Program is the final CASM artifact: an instruction stream, a rodata
// blob table, and an entrypoint table (spec.md §3.5, §6.4).
type Program struct {
	Instructions []Instruction
	Blobs        []Blob
	Entrypoints  []Entrypoint
}

// ErrCodegen wraps an internal-compiler-error raised by instruction
// selection (spec.md §4.8.5): a Go error, not a diagnostic, since reaching
// it is always a bug in an earlier pass rather than a user mistake.
type ErrCodegen struct {
	Function string
	Reason   string
}

func (e *ErrCodegen) Error() string {
	return fmt.Sprintf("casm: internal compiler error in %s: %s", e.Function, e.Reason)
}
