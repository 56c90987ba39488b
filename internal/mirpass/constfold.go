package mirpass

import "github.com/cairo-m/compiler/internal/mir"

// ConstFold implements spec.md §4.7 step 2, the aggregate-aware folding
// laws also tested structurally in §8.2:
//
//	Extract_i(Make(v_0,...,v_n))      = v_i
//	Extract_i(Insert_i(s, v))         = v
//	Extract_j(Insert_i(s, v)), i != j = Extract_j(s)
//
// It runs as a single block-local pass (callers loop it to a fixed point,
// matching the idempotence law): each block tracks its own def map of
// still-live aggregate-constructing instructions, so an Extract/Insert
// chain folds across any number of intermediate instructions within one
// block without needing a whole-function dataflow pass.
func ConstFold(fn *mir.MirFunction) bool {
	changed := false
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		def := map[mir.ValueId]mir.Instruction{}
		subst := map[mir.ValueId]mir.Value{}
		resolve := func(v mir.Value) mir.Value {
			if v.IsLiteral {
				return v
			}
			if s, ok := subst[v.Ref]; ok {
				return s
			}
			return v
		}

		var out []mir.Instruction
		for _, inst := range blk.Instructions {
			for ai := range inst.Args {
				inst.Args[ai] = resolve(inst.Args[ai])
			}

			folded := false
			if inst.Kind == mir.KExtractTupleElement || inst.Kind == mir.KExtractStructField {
				src := inst.Args[0]
				idx := inst.Indices[0]
				if !src.IsLiteral {
					if srcInst, ok := def[src.Ref]; ok {
						switch srcInst.Kind {
						case mir.KMakeTuple, mir.KMakeStruct:
							subst[inst.Dst] = srcInst.Args[idx]
							changed, folded = true, true
						case mir.KInsertField, mir.KInsertTuple:
							changed = true
							if srcInst.Indices[0] == idx {
								subst[inst.Dst] = srcInst.Args[1]
								folded = true
							} else {
								// different key: rewrite to Extract_j(s) and
								// keep the (now-simplified) instruction so a
								// later pass iteration can fold it further.
								inst.Args[0] = srcInst.Args[0]
							}
						}
					}
				}
			}

			if folded {
				continue
			}
			if inst.Defines {
				def[inst.Dst] = inst
			}
			out = append(out, inst)
		}
		blk.Instructions = out
		blk.Terminator.Cond = resolve(blk.Terminator.Cond)
		for vi := range blk.Terminator.Values {
			blk.Terminator.Values[vi] = resolve(blk.Terminator.Values[vi])
		}
	}
	return changed
}
