package mirpass

import "github.com/cairo-m/compiler/internal/mir"

var compareOps = map[mir.BinOp]bool{
	mir.OpEq: true, mir.OpNeq: true, mir.OpLt: true, mir.OpLe: true, mir.OpGt: true, mir.OpGe: true,
}

// FuseCompareBranch implements spec.md §4.7 step 6: when an `if` branches
// on a comparison computed immediately beforehand and used nowhere else,
// the comparison instruction is folded into the terminator so CASM codegen
// emits a single compare-and-branch rather than materializing a bool and
// branching on it.
func FuseCompareBranch(fn *mir.MirFunction) bool {
	changed := false
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		if blk.Terminator.Kind != mir.TIf || blk.Terminator.Cond.IsLiteral {
			continue
		}
		n := len(blk.Instructions)
		if n == 0 {
			continue
		}
		last := blk.Instructions[n-1]
		if last.Kind != mir.KBinaryOp || !last.Defines || last.Dst != blk.Terminator.Cond.Ref {
			continue
		}
		if !compareOps[last.BinOp] {
			continue
		}
		if usedElsewhere(fn, last.Dst, bi) {
			continue
		}
		blk.Terminator.FusedCompare = true
		blk.Terminator.CompareOp = last.BinOp
		blk.Terminator.CompareLHS = last.Args[0]
		blk.Terminator.CompareRHS = last.Args[1]
		blk.Instructions = blk.Instructions[:n-1]
		changed = true
	}
	return changed
}

func usedElsewhere(fn *mir.MirFunction, v mir.ValueId, ownerBlock int) bool {
	uses := func(val mir.Value) bool { return !val.IsLiteral && val.Ref == v }
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		for ii, inst := range blk.Instructions {
			if bi == ownerBlock && ii == len(blk.Instructions)-1 {
				continue // the defining instruction itself, not a use
			}
			for _, a := range inst.Args {
				if uses(a) {
					return true
				}
			}
			for _, p := range inst.PhiArgs {
				if uses(p.Value) {
					return true
				}
			}
		}
		if bi != ownerBlock && uses(blk.Terminator.Cond) {
			return true
		}
		for _, val := range blk.Terminator.Values {
			if uses(val) {
				return true
			}
		}
	}
	return false
}
