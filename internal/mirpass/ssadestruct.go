package mirpass

import "github.com/cairo-m/compiler/internal/mir"

// SSADestruct implements spec.md §4.7 step 5: phi nodes are not valid CASM,
// so each is replaced with a parallel copy on every incoming edge. A
// critical edge (a multi-successor predecessor feeding a multi-predecessor
// phi block) is split with a fresh block first, so the copies don't leak
// onto the predecessor's other successor. Each edge's copies go through a
// fresh temporary per phi before landing in the real destinations, so a
// phi whose source is another phi's destination in the same block (the
// classic lost-copy/swap hazard) is still handled correctly.
func SSADestruct(fn *mir.MirFunction) bool {
	di := computeDominance(fn)
	n := len(fn.Blocks)
	changed := false

	for bi := 0; bi < n; bi++ {
		b := mir.BlockId(bi)
		blk := fn.Block(b)
		i := 0
		for i < len(blk.Instructions) && blk.Instructions[i].Kind == mir.KPhi {
			i++
		}
		if i == 0 {
			continue
		}
		phis := append([]mir.Instruction(nil), blk.Instructions[:i]...)
		blk.Instructions = blk.Instructions[i:]
		changed = true

		for _, p := range di.preds[b] {
			var srcVals []mir.Value
			for _, phi := range phis {
				v := mir.LitInt(0, phi.Type)
				for _, a := range phi.PhiArgs {
					if a.Block == p {
						v = a.Value
						break
					}
				}
				srcVals = append(srcVals, v)
			}

			copies := make([]mir.Instruction, 0, 2*len(phis))
			temps := make([]mir.ValueId, len(phis))
			for k, v := range srcVals {
				t := fn.NewValue()
				temps[k] = t
				copies = append(copies, mir.Instruction{Kind: mir.KAssign, Dst: t, Defines: true, Type: phis[k].Type, Args: []mir.Value{v}})
			}
			for k, phi := range phis {
				copies = append(copies, mir.Instruction{Kind: mir.KAssign, Dst: phi.Dst, Defines: true, Type: phi.Type,
					Args: []mir.Value{mir.Operand(temps[k], phi.Type)}})
			}

			pSuccs := successors(fn, p)
			critical := len(pSuccs) > 1 && len(di.preds[b]) > 1
			if !critical {
				pb := fn.Block(p)
				pb.Instructions = append(pb.Instructions, copies...)
				continue
			}

			nb := fn.NewBlock()
			nbb := fn.Block(nb)
			nbb.Instructions = copies
			nbb.Terminator = mir.Terminator{Kind: mir.TGoto, Target: b}
			nbb.Terminated = true

			pb := fn.Block(p)
			switch pb.Terminator.Kind {
			case mir.TGoto:
				if pb.Terminator.Target == b {
					pb.Terminator.Target = nb
				}
			case mir.TIf:
				if pb.Terminator.Then == b {
					pb.Terminator.Then = nb
				}
				if pb.Terminator.Else == b {
					pb.Terminator.Else = nb
				}
			}
		}
	}
	return changed
}
