package mirpass

import (
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

type allocInfo struct {
	id    mir.ValueId
	elemT types.ID
}

// Mem2Reg implements spec.md §4.7 step 4. Only scalar FrameAllocs (felt,
// bool, u32, pointer) whose address is never taken are promoted to SSA;
// struct/tuple allocations stay memory-resident, so every struct- or
// tuple-typed binding keeps its FrameAlloc after optimization; there is no
// field-level promotion (see DESIGN.md). Algorithm: compute
// dominance frontiers, place phi nodes at the iterated dominance frontier
// of each promotable alloc's store sites, then rename in a single
// dominator-tree walk with a per-alloc value stack.
func Mem2Reg(fn *mir.MirFunction, in *types.Interner) bool {
	allocs := promotableAllocs(fn, in)
	if len(allocs) == 0 {
		return false
	}
	di := computeDominance(fn)
	promote(fn, di, allocs)
	return true
}

func promotableAllocs(fn *mir.MirFunction, in *types.Interner) []allocInfo {
	candidates := map[mir.ValueId]types.ID{}
	for bi := range fn.Blocks {
		for _, inst := range fn.Blocks[bi].Instructions {
			if inst.Kind != mir.KFrameAlloc {
				continue
			}
			d := in.Get(inst.AllocType)
			if d.Kind == types.Struct || d.Kind == types.Tuple {
				continue
			}
			candidates[inst.Dst] = inst.AllocType
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	escaped := map[mir.ValueId]bool{}
	mark := func(v mir.Value) {
		if v.IsLiteral {
			return
		}
		if _, ok := candidates[v.Ref]; ok {
			escaped[v.Ref] = true
		}
	}
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		for _, inst := range blk.Instructions {
			switch inst.Kind {
			case mir.KLoad:
				if len(inst.Args) == 1 {
					continue
				}
				for _, a := range inst.Args {
					mark(a)
				}
			case mir.KStore:
				if len(inst.Args) == 2 {
					mark(inst.Args[1])
					continue
				}
				for _, a := range inst.Args {
					mark(a)
				}
			case mir.KFrameAlloc:
			default:
				for _, a := range inst.Args {
					mark(a)
				}
			}
		}
		mark(blk.Terminator.Cond)
		for _, v := range blk.Terminator.Values {
			mark(v)
		}
	}

	var out []allocInfo
	for id, t := range candidates {
		if escaped[id] {
			continue
		}
		out = append(out, allocInfo{id: id, elemT: t})
	}
	return out
}

func zeroValue(t types.ID) mir.Value {
	switch t {
	case types.BoolID:
		return mir.LitBool(false)
	case types.UnitID:
		return mir.LitUnit()
	default:
		return mir.LitInt(0, t)
	}
}

func findPhi(fn *mir.MirFunction, b mir.BlockId, dst mir.ValueId) *mir.Instruction {
	blk := fn.Block(b)
	for i := range blk.Instructions {
		if blk.Instructions[i].Kind == mir.KPhi && blk.Instructions[i].Dst == dst {
			return &blk.Instructions[i]
		}
	}
	return nil
}

func promote(fn *mir.MirFunction, di *domInfo, allocs []allocInfo) {
	allocSet := map[mir.ValueId]allocInfo{}
	defBlocks := map[mir.ValueId]map[mir.BlockId]bool{}
	for _, a := range allocs {
		allocSet[a.id] = a
		defBlocks[a.id] = map[mir.BlockId]bool{}
	}
	for bi := range fn.Blocks {
		b := mir.BlockId(bi)
		for _, inst := range fn.Blocks[bi].Instructions {
			if inst.Kind == mir.KStore && len(inst.Args) == 2 && !inst.Args[0].IsLiteral {
				if _, ok := allocSet[inst.Args[0].Ref]; ok {
					defBlocks[inst.Args[0].Ref][b] = true
				}
			}
		}
	}

	phiBlocks := map[mir.ValueId]map[mir.BlockId]bool{}
	for id := range allocSet {
		phiBlocks[id] = map[mir.BlockId]bool{}
		var worklist []mir.BlockId
		for b := range defBlocks[id] {
			worklist = append(worklist, b)
		}
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, f := range di.df[b] {
				if !phiBlocks[id][f] {
					phiBlocks[id][f] = true
					if !defBlocks[id][f] {
						worklist = append(worklist, f)
					}
				}
			}
		}
	}

	phiDst := map[mir.BlockId]map[mir.ValueId]mir.ValueId{}
	for id, blocks := range phiBlocks {
		elemT := allocSet[id].elemT
		for b := range blocks {
			blk := fn.Block(b)
			dst := fn.NewValue()
			inst := mir.Instruction{Kind: mir.KPhi, Dst: dst, Defines: true, Type: elemT}
			blk.Instructions = append([]mir.Instruction{inst}, blk.Instructions...)
			if phiDst[b] == nil {
				phiDst[b] = map[mir.ValueId]mir.ValueId{}
			}
			phiDst[b][id] = dst
		}
	}

	stacks := map[mir.ValueId][]mir.Value{}
	exitValue := map[mir.BlockId]map[mir.ValueId]mir.Value{}
	loadSubst := map[mir.ValueId]mir.Value{}

	var walk func(b mir.BlockId)
	walk = func(b mir.BlockId) {
		pushed := map[mir.ValueId]int{}
		blk := fn.Block(b)
		if byAlloc, ok := phiDst[b]; ok {
			for id, dst := range byAlloc {
				stacks[id] = append(stacks[id], mir.Operand(dst, allocSet[id].elemT))
				pushed[id]++
			}
		}

		var out []mir.Instruction
		for _, inst := range blk.Instructions {
			if inst.Kind == mir.KPhi {
				out = append(out, inst)
				continue
			}
			if inst.Kind == mir.KFrameAlloc {
				if _, ok := allocSet[inst.Dst]; ok {
					continue
				}
				out = append(out, inst)
				continue
			}
			if inst.Kind == mir.KLoad && len(inst.Args) == 1 && !inst.Args[0].IsLiteral {
				if _, ok := allocSet[inst.Args[0].Ref]; ok {
					id := inst.Args[0].Ref
					var cur mir.Value
					if s := stacks[id]; len(s) > 0 {
						cur = s[len(s)-1]
					} else {
						cur = zeroValue(allocSet[id].elemT)
					}
					loadSubst[inst.Dst] = cur
					continue
				}
			}
			if inst.Kind == mir.KStore && len(inst.Args) == 2 && !inst.Args[0].IsLiteral {
				if _, ok := allocSet[inst.Args[0].Ref]; ok {
					id := inst.Args[0].Ref
					stacks[id] = append(stacks[id], inst.Args[1])
					pushed[id]++
					continue
				}
			}
			out = append(out, inst)
		}
		blk.Instructions = out

		ev := map[mir.ValueId]mir.Value{}
		for id := range allocSet {
			if s := stacks[id]; len(s) > 0 {
				ev[id] = s[len(s)-1]
			}
		}
		exitValue[b] = ev

		for _, c := range di.kids[b] {
			walk(c)
		}

		for id, n := range pushed {
			s := stacks[id]
			stacks[id] = s[:len(s)-n]
		}
	}
	walk(fn.EntryBlock)

	for b, byAlloc := range phiDst {
		for id, dst := range byAlloc {
			elemT := allocSet[id].elemT
			var args []mir.PhiArg
			for _, p := range di.preds[b] {
				v, ok := exitValue[p][id]
				if !ok {
					v = zeroValue(elemT)
				}
				args = append(args, mir.PhiArg{Block: p, Value: v})
			}
			if inst := findPhi(fn, b, dst); inst != nil {
				inst.PhiArgs = args
			}
		}
	}

	resolve := func(v mir.Value) mir.Value {
		for depth := 0; depth < 32 && !v.IsLiteral; depth++ {
			s, ok := loadSubst[v.Ref]
			if !ok {
				break
			}
			v = s
		}
		return v
	}
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		for ii := range blk.Instructions {
			inst := &blk.Instructions[ii]
			for ai := range inst.Args {
				inst.Args[ai] = resolve(inst.Args[ai])
			}
			for pi := range inst.PhiArgs {
				inst.PhiArgs[pi].Value = resolve(inst.PhiArgs[pi].Value)
			}
		}
		blk.Terminator.Cond = resolve(blk.Terminator.Cond)
		for vi := range blk.Terminator.Values {
			blk.Terminator.Values[vi] = resolve(blk.Terminator.Values[vi])
		}
	}
}
