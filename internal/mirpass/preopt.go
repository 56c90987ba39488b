package mirpass

import "github.com/cairo-m/compiler/internal/mir"

// PreOpt cleans up no-op instructions before any other pass runs: it
// rewrites identity casts (`x as T` where x is already T) into plain
// Assigns and drops self-stores (storing a value back to the exact address
// it was just loaded from, with nothing in between). Grounded on the teacher's peepholeLiteralPop
// (internal/bytecode/optimizer.go): a single linear scan collapsing
// adjacent instruction pairs that cancel out.
func PreOpt(fn *mir.MirFunction) bool {
	changed := false
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		var out []mir.Instruction
		var lastLoad *mir.Instruction
		for i := range blk.Instructions {
			inst := blk.Instructions[i]
			if inst.Kind == mir.KCast && len(inst.Args) == 1 && inst.Args[0].Type == inst.Type {
				changed = true
				// identity cast: replace uses of Dst with the operand by
				// keeping the instruction as a cheap Load-free alias via Nop
				// is unsafe (Dst must still be defined); instead splice in
				// an Assign of the operand so Dst keeps a single definition.
				out = append(out, mir.Instruction{Kind: mir.KAssign, Dst: inst.Dst, Defines: true, Type: inst.Type, Args: inst.Args})
				lastLoad = nil
				continue
			}
			if inst.Kind == mir.KStore && lastLoad != nil && len(inst.Args) == 2 &&
				sameValue(inst.Args[0], lastLoad.Args[0]) && sameValue(inst.Args[1], mir.Operand(lastLoad.Dst, lastLoad.Type)) {
				changed = true
				continue
			}
			if inst.Kind == mir.KLoad {
				cp := inst
				lastLoad = &cp
			} else {
				lastLoad = nil
			}
			out = append(out, inst)
		}
		blk.Instructions = out
	}
	return changed
}

func sameValue(a, b mir.Value) bool {
	if a.IsLiteral != b.IsLiteral {
		return false
	}
	if a.IsLiteral {
		return a.IsUnit == b.IsUnit && a.LitInt == b.LitInt && a.LitBool == b.LitBool
	}
	return a.Ref == b.Ref
}
