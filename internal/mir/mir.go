// Package mir implements Cairo-M's typed, SSA-oriented Middle IR (spec.md
// §3.4): functions, basic blocks, instructions, terminators and values.
// Construction (internal/mirbuild) always emits this shape; optimization
// (internal/mirpass) rewrites it in place; codegen (internal/casm)
// consumes the post-pass result.
//
// The block/instruction/printer split is grounded on the teacher's
// internal/bytecode.Chunk + disasm.go (a flat instruction stream with a
// textual disassembler), generalized from a flat stack-VM tape into a
// basic-block graph since Cairo-M's pass pipeline (mem2reg, SSA
// destruction, DCE) needs real control-flow edges.
package mir

import (
	"fmt"
	"strings"

	"github.com/cairo-m/compiler/internal/types"
)

// ValueId is a typed SSA value, unique within one function.
type ValueId int

// BlockId is a dense index into a function's block list.
type BlockId int

// Kind is the closed set of instruction kinds from spec.md §3.4.
type Kind int

const (
	KAssign Kind = iota
	KBinaryOp
	KUnaryOp
	KCast
	KCall
	KVoidCall
	KPhi
	KFrameAlloc
	KLoad
	KStore
	KGetElementPtr
	KAddressOf
	KMakeTuple
	KExtractTupleElement
	KInsertTuple
	KMakeStruct
	KExtractStructField
	KInsertField
	KMakeFixedArray
	KLoadConstAddr
	KDebug
	KNop
)

func (k Kind) String() string {
	names := [...]string{
		"assign", "binop", "unop", "cast", "call", "void_call", "phi",
		"frame_alloc", "load", "store", "gep", "address_of",
		"make_tuple", "extract_tuple", "insert_tuple",
		"make_struct", "extract_field", "insert_field",
		"make_fixed_array", "load_const_addr", "debug", "nop",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// BinOp / UnOp mirror internal/ast's operator sets at the MIR level (MIR
// does not depend on ast; it keeps its own closed operator enumeration so
// passes never need to import the frontend).
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

// Value is an operand: either a reference to a prior SSA value or an
// inline literal (spec.md §3.4).
type Value struct {
	IsLiteral bool
	Ref       ValueId
	LitInt    uint64
	LitBool   bool
	IsUnit    bool
	Type      types.ID
}

func Operand(id ValueId, t types.ID) Value { return Value{Ref: id, Type: t} }
func LitInt(v uint64, t types.ID) Value    { return Value{IsLiteral: true, LitInt: v, Type: t} }
func LitBool(v bool) Value                 { return Value{IsLiteral: true, LitBool: v, Type: types.BoolID} }
func LitUnit() Value                       { return Value{IsLiteral: true, IsUnit: true, Type: types.UnitID} }

func (v Value) String() string {
	if v.IsLiteral {
		switch {
		case v.IsUnit:
			return "()"
		case v.Type == types.BoolID:
			return fmt.Sprintf("%v", v.LitBool)
		default:
			return fmt.Sprintf("%d", v.LitInt)
		}
	}
	return fmt.Sprintf("v%d", v.Ref)
}

// Instruction is one MIR operation, optionally defining a ValueId.
type Instruction struct {
	Kind    Kind
	Dst     ValueId // valid iff Defines is true
	Defines bool
	Type    types.ID // result type, when Defines

	BinOp BinOp
	UnOp  UnOp

	Args    []Value // generic operand list; meaning depends on Kind
	Indices []int   // field/tuple indices for Extract/Insert/GEP
	Callee  string  // Call/VoidCall target function name
	PhiArgs []PhiArg
	Comment string

	// FrameAlloc-specific
	AllocType types.ID

	// MakeFixedArray-specific
	IsConstArray bool

	// LoadConstAddr-specific
	ConstLabel string
}

// PhiArg is one incoming-edge operand of a Phi instruction.
type PhiArg struct {
	Block BlockId
	Value Value
}

// TermKind is the closed set of terminators from spec.md §3.4.
type TermKind int

const (
	TGoto TermKind = iota
	TIf
	TReturn
	TUnreachable
)

// Terminator ends a basic block.
type Terminator struct {
	Kind   TermKind
	Cond   Value
	Then   BlockId
	Else   BlockId
	Target BlockId // Goto
	Values []Value // Return

	// Set by mirpass.FuseCompareBranch when Cond was produced by a
	// single-use comparison immediately preceding this terminator. CASM
	// codegen emits one compare-and-branch instead of materializing a
	// bool result and branching on it separately.
	FusedCompare bool
	CompareOp    BinOp
	CompareLHS   Value
	CompareRHS   Value
}

// BasicBlock is a straight-line instruction sequence ending in a
// Terminator (spec.md §3.4).
type BasicBlock struct {
	Instructions []Instruction
	Terminator   Terminator
	Terminated   bool
}

// Param is one function parameter's SSA binding.
type Param struct {
	Value ValueId
	Type  types.ID
	Name  string
}

// MirFunction is spec.md §3.4's MirFunction.
type MirFunction struct {
	Name        string
	Params      []Param
	Returns     []types.ID
	Blocks      []BasicBlock
	EntryBlock  BlockId
	nextValue   ValueId
}

// NewFunction creates an empty function with just an entry block.
func NewFunction(name string) *MirFunction {
	f := &MirFunction{Name: name}
	f.Blocks = append(f.Blocks, BasicBlock{})
	f.EntryBlock = 0
	return f
}

// NewValue allocates a fresh SSA ValueId.
func (f *MirFunction) NewValue() ValueId {
	id := f.nextValue
	f.nextValue++
	return id
}

// NewBlock appends an empty block and returns its id.
func (f *MirFunction) NewBlock() BlockId {
	id := BlockId(len(f.Blocks))
	f.Blocks = append(f.Blocks, BasicBlock{})
	return id
}

func (f *MirFunction) Block(id BlockId) *BasicBlock { return &f.Blocks[id] }

// Emit appends an instruction to block id.
func (f *MirFunction) Emit(id BlockId, inst Instruction) {
	f.Blocks[id].Instructions = append(f.Blocks[id].Instructions, inst)
}

// MirModule is spec.md §3.4's MirModule: an ordered set of functions.
type MirModule struct {
	Functions []*MirFunction
}

// Print renders a MirModule as readable text, grounded on the teacher's
// internal/bytecode/disasm.go textual disassembly, for use in snapshot
// tests (spec.md §6.5).
func Print(m *MirModule, in *types.Interner) string {
	var sb strings.Builder
	for _, fn := range m.Functions {
		printFunction(&sb, fn, in)
	}
	return sb.String()
}

func printFunction(sb *strings.Builder, fn *MirFunction, in *types.Interner) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("v%d: %s", p.Value, in.String(p.Type))
	}
	rets := make([]string, len(fn.Returns))
	for i, r := range fn.Returns {
		rets[i] = in.String(r)
	}
	fmt.Fprintf(sb, "fn %s(%s) -> (%s) {\n", fn.Name, strings.Join(params, ", "), strings.Join(rets, ", "))
	for i := range fn.Blocks {
		printBlock(sb, fn, BlockId(i), in)
	}
	sb.WriteString("}\n")
}

func printBlock(sb *strings.Builder, fn *MirFunction, id BlockId, in *types.Interner) {
	fmt.Fprintf(sb, "  bb%d:\n", id)
	blk := fn.Block(id)
	for _, inst := range blk.Instructions {
		sb.WriteString("    ")
		sb.WriteString(printInstruction(inst, in))
		sb.WriteString("\n")
	}
	sb.WriteString("    ")
	sb.WriteString(printTerminator(blk.Terminator))
	sb.WriteString("\n")
}

func printInstruction(inst Instruction, in *types.Interner) string {
	prefix := ""
	if inst.Defines {
		prefix = fmt.Sprintf("v%d: %s = ", inst.Dst, in.String(inst.Type))
	}
	argStrs := make([]string, len(inst.Args))
	for i, a := range inst.Args {
		argStrs[i] = a.String()
	}
	args := strings.Join(argStrs, ", ")
	body := ""
	switch inst.Kind {
	case KBinaryOp:
		body = fmt.Sprintf("binop.%d(%s)", inst.BinOp, args)
	case KUnaryOp:
		body = fmt.Sprintf("unop.%d(%s)", inst.UnOp, args)
	case KCall:
		body = fmt.Sprintf("call %s(%s)", inst.Callee, args)
	case KVoidCall:
		return fmt.Sprintf("void_call %s(%s)", inst.Callee, args)
	case KPhi:
		parts := make([]string, len(inst.PhiArgs))
		for i, p := range inst.PhiArgs {
			parts[i] = fmt.Sprintf("[bb%d: %s]", p.Block, p.Value)
		}
		body = fmt.Sprintf("phi(%s)", strings.Join(parts, ", "))
	default:
		body = fmt.Sprintf("%s(%s)", inst.Kind, args)
	}
	if inst.Comment != "" {
		body += " ; " + inst.Comment
	}
	return prefix + body
}

func printTerminator(t Terminator) string {
	switch t.Kind {
	case TGoto:
		return fmt.Sprintf("goto bb%d", t.Target)
	case TIf:
		if t.FusedCompare {
			return fmt.Sprintf("if %s cmp.%d %s then bb%d else bb%d", t.CompareLHS, t.CompareOp, t.CompareRHS, t.Then, t.Else)
		}
		return fmt.Sprintf("if %s then bb%d else bb%d", t.Cond, t.Then, t.Else)
	case TReturn:
		parts := make([]string, len(t.Values))
		for i, v := range t.Values {
			parts[i] = v.String()
		}
		return fmt.Sprintf("return %s", strings.Join(parts, ", "))
	default:
		return "unreachable"
	}
}
