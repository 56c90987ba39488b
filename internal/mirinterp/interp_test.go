package mirinterp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/mirpass"
	"github.com/cairo-m/compiler/internal/types"
)

// buildBranchy mirrors mirpass's diamond fixture: a FrameAlloc-backed
// local assigned on both sides of an if, read back after the merge.
func buildBranchy(cond bool) *mir.MirFunction {
	fn := mir.NewFunction("diamond")
	fn.Returns = []types.ID{types.FeltID}
	ptrT := types.ID(100)

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

func runSingle(t *testing.T, fn *mir.MirFunction, in *types.Interner) uint64 {
	t.Helper()
	ip := NewInterp(&mir.MirModule{Functions: []*mir.MirFunction{fn}}, in)
	out, err := ip.Run(fn, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0].Scalar
}

func TestMem2RegPreservesSemantics(t *testing.T) {
	for _, cond := range []bool{true, false} {
		in := types.NewInterner()
		before := buildBranchy(cond)
		beforeResult := runSingle(t, before, in)

		after := buildBranchy(cond)
		mirpass.Mem2Reg(after, in)
		afterResult := runSingle(t, after, in)

		require.Equal(t, beforeResult, afterResult)
	}
}
