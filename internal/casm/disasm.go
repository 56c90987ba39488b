package casm

import (
	"fmt"
	"strings"
)

// Disassemble renders a resolved Program as readable text. Grounded on
// the teacher's internal/bytecode/disasm.go one-instruction-per-line
// textual disassembly, extended with an entrypoint table and a rodata
// dump since a CASM program carries both alongside its code.
func Disassemble(p *Program) string {
	var sb strings.Builder

	sb.WriteString("entrypoints:\n")
	for _, e := range p.Entrypoints {
		fmt.Fprintf(&sb, "  %s @ %d (params=%d, returns=%d)\n", e.Name, e.PC, e.ParamSlots, e.ReturnSlots)
	}

	sb.WriteString("code:\n")
	pc := 0
	for _, in := range p.Instructions {
		if in.Op == OpMark {
			for _, l := range in.DefinedLabels {
				fmt.Fprintf(&sb, "%s:\n", l)
			}
			continue
		}
		fmt.Fprintf(&sb, "  %4d: %s\n", pc, disasmOne(in))
		pc += in.Width()
	}

	if len(p.Blobs) > 0 {
		sb.WriteString("rodata:\n")
		for _, b := range p.Blobs {
			fmt.Fprintf(&sb, "  %s @ %d: %v\n", b.Label, b.Offset, b.Values)
		}
	}

	return sb.String()
}

func disasmOne(in Instruction) string {
	var body string
	switch in.Op {
	case OpStoreImm:
		body = fmt.Sprintf("[fp%+d] = %d", in.Dst, in.Imm)
	case OpJmpAbs:
		body = fmt.Sprintf("-> %d", in.PC)
	case OpJnzRel:
		body = fmt.Sprintf("if [fp%+d] != 0 -> %d", in.Src0, in.PC)
	case OpCall:
		body = fmt.Sprintf("%s -> %d (args at fp%+d)", in.Comment, in.PC, in.Dst)
	case OpRet:
		body = ""
	case OpLoadIndirect:
		body = fmt.Sprintf("[fp%+d] = [[fp%+d]+%d]", in.Dst, in.Src0, in.Imm)
	case OpStoreIndirect:
		body = fmt.Sprintf("[[fp%+d]+%d] = [fp%+d]", in.Src0, in.Imm, in.Src1)
	case OpLoadConstAddr:
		body = fmt.Sprintf("[fp%+d] = &%s (%d)", in.Dst, in.Label, in.PC)
	case OpStoreSubImmFp:
		body = fmt.Sprintf("[fp%+d] = %d - [fp%+d]", in.Dst, in.Imm, in.Src0)
	default:
		if in.HasImm {
			body = fmt.Sprintf("[fp%+d] = [fp%+d] %s %d", in.Dst, in.Src0, opSymbol(in.Op), in.Imm)
		} else {
			body = fmt.Sprintf("[fp%+d] = [fp%+d] %s [fp%+d]", in.Dst, in.Src0, opSymbol(in.Op), in.Src1)
		}
	}

	line := fmt.Sprintf("%-20s %s", in.Op, body)
	if in.Comment != "" && in.Op != OpCall {
		line += " ; " + in.Comment
	}
	return strings.TrimRight(line, " ")
}

func opSymbol(op Opcode) string {
	switch op {
	case OpStoreAddFpFp, OpStoreAddFpImm, OpU32StoreAddFpFp:
		return "+"
	case OpStoreSubFpFp, OpU32StoreSubFpFp:
		return "-"
	case OpStoreMulFpFp, OpStoreMulFpImm, OpU32StoreMulFpFp:
		return "*"
	case OpStoreDivFpFp, OpU32StoreDivFpFp:
		return "/"
	case OpStoreModFpFp, OpU32StoreModFpFp:
		return "%"
	case OpStoreEqFpFp, OpU32StoreEqFpFp:
		return "=="
	case OpStoreNeqFpFp:
		return "!="
	case OpU32StoreLtFpFp:
		return "<"
	default:
		return "?"
	}
}
