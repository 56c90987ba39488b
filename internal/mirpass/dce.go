package mirpass

import "github.com/cairo-m/compiler/internal/mir"

var sideEffecting = map[mir.Kind]bool{
	mir.KStore: true, mir.KCall: true, mir.KVoidCall: true, mir.KDebug: true,
}

// DCE implements spec.md §4.7 step 7: remove instructions whose result is
// never used and that have no side effect, then remove blocks no
// terminator can reach from the entry block. Callers loop this to a fixed
// point, since removing one dead instruction or block can make another
// dead in turn.
func DCE(fn *mir.MirFunction) bool {
	changed := removeUnreachableBlocks(fn)
	if removeDeadInstructions(fn) {
		changed = true
	}
	return changed
}

func removeDeadInstructions(fn *mir.MirFunction) bool {
	used := map[mir.ValueId]bool{}
	mark := func(v mir.Value) {
		if !v.IsLiteral {
			used[v.Ref] = true
		}
	}
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		for _, inst := range blk.Instructions {
			for _, a := range inst.Args {
				mark(a)
			}
			for _, p := range inst.PhiArgs {
				mark(p.Value)
			}
		}
		mark(blk.Terminator.Cond)
		mark(blk.Terminator.CompareLHS)
		mark(blk.Terminator.CompareRHS)
		for _, v := range blk.Terminator.Values {
			mark(v)
		}
	}

	changed := false
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		var out []mir.Instruction
		for _, inst := range blk.Instructions {
			if inst.Defines && !used[inst.Dst] && !sideEffecting[inst.Kind] {
				changed = true
				continue
			}
			out = append(out, inst)
		}
		blk.Instructions = out
	}
	return changed
}

func removeUnreachableBlocks(fn *mir.MirFunction) bool {
	reachable := map[mir.BlockId]bool{}
	var walk func(mir.BlockId)
	walk = func(b mir.BlockId) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		for _, s := range successors(fn, b) {
			walk(s)
		}
	}
	walk(fn.EntryBlock)

	if len(reachable) == len(fn.Blocks) {
		return false
	}

	remap := map[mir.BlockId]mir.BlockId{}
	var kept []mir.BasicBlock
	for i := range fn.Blocks {
		b := mir.BlockId(i)
		if !reachable[b] {
			continue
		}
		remap[b] = mir.BlockId(len(kept))
		kept = append(kept, fn.Blocks[i])
	}
	for i := range kept {
		blk := &kept[i]
		for ii := range blk.Instructions {
			for k := range blk.Instructions[ii].PhiArgs {
				blk.Instructions[ii].PhiArgs[k].Block = remap[blk.Instructions[ii].PhiArgs[k].Block]
			}
		}
		switch blk.Terminator.Kind {
		case mir.TGoto:
			blk.Terminator.Target = remap[blk.Terminator.Target]
		case mir.TIf:
			blk.Terminator.Then = remap[blk.Terminator.Then]
			blk.Terminator.Else = remap[blk.Terminator.Else]
		}
	}
	fn.Blocks = kept
	fn.EntryBlock = remap[fn.EntryBlock]
	return true
}
