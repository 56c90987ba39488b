package mirpass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

// buildDiamond constructs:
//
//	bb0: x := FrameAlloc felt; Store(x, 1); if cond then bb1 else bb2
//	bb1: Store(x, 2); goto bb3
//	bb2: Store(x, 3); goto bb3
//	bb3: v := Load(x); return v
//
// the textbook diamond merge that forces exactly one phi at bb3.
func buildDiamond(cond bool) *mir.MirFunction {
	fn := mir.NewFunction("diamond")
	fn.Returns = []types.ID{types.FeltID}
	ptrT := types.ID(100) // distinct placeholder; Interner not consulted for Pointer here

	x := fn.NewValue()
	fn.Emit(fn.EntryBlock, mir.Instruction{Kind: mir.KFrameAlloc, Dst: x, Defines: true, Type: ptrT, AllocType: types.FeltID})
	fn.Emit(fn.EntryBlock, mir.Instruction{Kind: mir.KStore, Args: []mir.Value{mir.Operand(x, ptrT), mir.LitInt(1, types.FeltID)}})

	bb1 := fn.NewBlock()
	bb2 := fn.NewBlock()
	bb3 := fn.NewBlock()

	fn.Block(fn.EntryBlock).Terminator = mir.Terminator{Kind: mir.TIf, Cond: mir.LitBool(cond), Then: bb1, Else: bb2}
	fn.Block(fn.EntryBlock).Terminated = true

	fn.Emit(bb1, mir.Instruction{Kind: mir.KStore, Args: []mir.Value{mir.Operand(x, ptrT), mir.LitInt(2, types.FeltID)}})
	fn.Block(bb1).Terminator = mir.Terminator{Kind: mir.TGoto, Target: bb3}
	fn.Block(bb1).Terminated = true

	fn.Emit(bb2, mir.Instruction{Kind: mir.KStore, Args: []mir.Value{mir.Operand(x, ptrT), mir.LitInt(3, types.FeltID)}})
	fn.Block(bb2).Terminator = mir.Terminator{Kind: mir.TGoto, Target: bb3}
	fn.Block(bb2).Terminated = true

	v := fn.NewValue()
	fn.Emit(bb3, mir.Instruction{Kind: mir.KLoad, Dst: v, Defines: true, Type: types.FeltID, Args: []mir.Value{mir.Operand(x, ptrT)}})
	fn.Block(bb3).Terminator = mir.Terminator{Kind: mir.TReturn, Values: []mir.Value{mir.Operand(v, types.FeltID)}}
	fn.Block(bb3).Terminated = true

	return fn
}

func TestMem2RegPromotesDiamond(t *testing.T) {
	in := types.NewInterner()
	fn := buildDiamond(true)

	changed := Mem2Reg(fn, in)
	require.True(t, changed)

	for _, blk := range fn.Blocks {
		for _, inst := range blk.Instructions {
			assert.NotEqual(t, mir.KFrameAlloc, inst.Kind, "alloc should have been promoted")
			assert.NotEqual(t, mir.KStore, inst.Kind, "store to the promoted alloc should be gone")
			assert.NotEqual(t, mir.KLoad, inst.Kind, "load from the promoted alloc should be gone")
		}
	}

	var phiCount int
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Instructions {
			if inst.Kind == mir.KPhi {
				phiCount++
				require.Len(t, inst.PhiArgs, 2)
			}
		}
	}
	assert.Equal(t, 1, phiCount, "exactly one phi should be inserted at the merge block")
}

func TestMem2RegIgnoresAggregateAllocs(t *testing.T) {
	in := types.NewInterner()
	var st types.StructType
	structID, aggT := in.InternStruct(&st)
	_ = structID

	fn := mir.NewFunction("keepsAlloc")
	ptrT := in.InternPointer(aggT)
	x := fn.NewValue()
	fn.Emit(fn.EntryBlock, mir.Instruction{Kind: mir.KFrameAlloc, Dst: x, Defines: true, Type: ptrT, AllocType: aggT})
	fn.Block(fn.EntryBlock).Terminator = mir.Terminator{Kind: mir.TUnreachable}
	fn.Block(fn.EntryBlock).Terminated = true

	changed := Mem2Reg(fn, in)
	assert.False(t, changed)
	assert.Equal(t, mir.KFrameAlloc, fn.Block(fn.EntryBlock).Instructions[0].Kind)
}
