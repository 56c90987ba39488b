package casm

import (
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

// frame tracks the fp-relative slot assigned to every SSA value within one
// function body, plus a bump allocator for FrameAlloc regions and
// instruction-selection scratch temporaries (spec.md §4.8.1).
type frame struct {
	slot  map[mir.ValueId]int
	width map[mir.ValueId]int
	next  int
}

func newFrame() *frame {
	return &frame{slot: map[mir.ValueId]int{}, width: map[mir.ValueId]int{}}
}

// reserve bumps the local allocator by w slots and returns the base
// offset of the reserved region, without binding it to any SSA value
// (used for FrameAlloc regions and instruction-selection scratch space).
func (fr *frame) reserve(w int) int {
	if w < 1 {
		w = 1
	}
	off := fr.next
	fr.next += w
	return off
}

// assign reserves a w-slot region and binds it as v's home location.
func (fr *frame) assign(v mir.ValueId, w int) int {
	off := fr.reserve(w)
	fr.slot[v] = off
	fr.width[v] = w
	return off
}

func (fr *frame) of(v mir.ValueId) int { return fr.slot[v] }

// sigInfo is a function's calling-convention shape, derived purely from
// its parameter/return types (spec.md §4.8.1) and therefore computable
// before any function body is generated — which is what lets emitCall
// address a callee (including a not-yet-generated, possibly recursive,
// callee) without waiting on its body.
//
// Layout, relative to the callee's own fp: return slots occupy
// [-(retW+paramW), -paramW), then parameter slots occupy [-paramW, 0).
// retOffs/paramOffs are 0-based cumulative offsets *within* each region
// (i.e. relative to the region's own start), not final fp offsets; see
// layoutParamsAndReturns and Generator.emitCall for how both ends use them.
type sigInfo struct {
	retW      int
	retOffs   []int
	retTypes  []types.ID
	paramW    int
	paramOffs []int
	paramTypes []types.ID
}

func buildSig(fn *mir.MirFunction, in *types.Interner) *sigInfo {
	s := &sigInfo{}
	off := 0
	for _, r := range fn.Returns {
		s.retOffs = append(s.retOffs, off)
		s.retTypes = append(s.retTypes, r)
		off += in.SlotWidth(r)
	}
	s.retW = off
	off = 0
	for _, p := range fn.Params {
		s.paramOffs = append(s.paramOffs, off)
		s.paramTypes = append(s.paramTypes, p.Type)
		off += in.SlotWidth(p.Type)
	}
	s.paramW = off
	return s
}

// layoutParamsAndReturns assigns each of fn's own parameters its
// fp-relative frame slot (spec.md §4.8.1) and returns the frame primed
// with those bindings plus the function's total return/parameter slot
// widths, needed by emitTerminator to place TReturn's values and by the
// entrypoint table.
func layoutParamsAndReturns(fn *mir.MirFunction, in *types.Interner) (*frame, int, int) {
	fr := newFrame()
	sig := buildSig(fn, in)

	base := -(sig.retW + sig.paramW)
	for i, p := range fn.Params {
		w := in.SlotWidth(p.Type)
		fr.slot[p.Value] = base + sig.retW + sig.paramOffs[i]
		fr.width[p.Value] = w
	}
	return fr, sig.retW, sig.paramW
}
