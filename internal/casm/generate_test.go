package casm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

// buildAdder builds `fn add(a: felt, b: felt) -> (felt) { return a + b }`
// directly against the MIR API, bypassing mirbuild/mirpass, since this
// test only exercises instruction selection and label resolution.
func buildAdder() *mir.MirFunction {
	fn := mir.NewFunction("add")
	fn.Returns = []types.ID{types.FeltID}
	a := fn.NewValue()
	b := fn.NewValue()
	fn.Params = []mir.Param{{Value: a, Type: types.FeltID, Name: "a"}, {Value: b, Type: types.FeltID, Name: "b"}}

	sum := fn.NewValue()
	fn.Emit(fn.EntryBlock, mir.Instruction{
		Kind: mir.KBinaryOp, Dst: sum, Defines: true, Type: types.FeltID, BinOp: mir.OpAdd,
		Args: []mir.Value{mir.Operand(a, types.FeltID), mir.Operand(b, types.FeltID)},
	})
	fn.Block(fn.EntryBlock).Terminator = mir.Terminator{Kind: mir.TReturn, Values: []mir.Value{mir.Operand(sum, types.FeltID)}}
	fn.Block(fn.EntryBlock).Terminated = true
	return fn
}

// buildBranchReturn builds a two-block function with a Goto, so label
// resolution has more than one jump target to fix up.
func buildBranchReturn() *mir.MirFunction {
	fn := mir.NewFunction("pick")
	fn.Returns = []types.ID{types.FeltID}

	next := fn.NewBlock()
	fn.Block(fn.EntryBlock).Terminator = mir.Terminator{Kind: mir.TGoto, Target: next}
	fn.Block(fn.EntryBlock).Terminated = true

	fn.Block(next).Terminator = mir.Terminator{Kind: mir.TReturn, Values: []mir.Value{mir.LitInt(7, types.FeltID)}}
	fn.Block(next).Terminated = true
	return fn
}

func TestGenerateAdderResolvesEntrypoint(t *testing.T) {
	in := types.NewInterner()
	mod := &mir.MirModule{Functions: []*mir.MirFunction{buildAdder()}}

	prog, err := Generate(mod, in)
	require.NoError(t, err)
	require.Len(t, prog.Entrypoints, 1)
	require.Equal(t, "add", prog.Entrypoints[0].Name)
	require.Equal(t, 2, prog.Entrypoints[0].ParamSlots)
	require.Equal(t, 1, prog.Entrypoints[0].ReturnSlots)

	var sawAdd, sawRet bool
	for _, in := range prog.Instructions {
		if in.Op == OpStoreAddFpFp {
			sawAdd = true
		}
		if in.Op == OpRet {
			sawRet = true
		}
	}
	require.True(t, sawAdd, "expected a register-register add for a+b")
	require.True(t, sawRet)
}

func TestGenerateResolvesGotoToConcretePC(t *testing.T) {
	in := types.NewInterner()
	mod := &mir.MirModule{Functions: []*mir.MirFunction{buildBranchReturn()}}

	prog, err := Generate(mod, in)
	require.NoError(t, err)

	var found bool
	for _, inst := range prog.Instructions {
		if inst.Op == OpJmpAbs {
			found = true
			require.GreaterOrEqual(t, inst.PC, 0)
			require.Less(t, inst.PC, len(prog.Instructions)*2)
		}
	}
	require.True(t, found, "expected a resolved goto")
}

func TestDisassembleIncludesEntrypointsAndLabels(t *testing.T) {
	in := types.NewInterner()
	mod := &mir.MirModule{Functions: []*mir.MirFunction{buildAdder()}}

	prog, err := Generate(mod, in)
	require.NoError(t, err)

	text := Disassemble(prog)
	require.True(t, strings.Contains(text, "entrypoints:"))
	require.True(t, strings.Contains(text, "add @"))
	require.True(t, strings.Contains(text, "code:"))
}

func TestGenerateRejectsSurvivingAggregateInstruction(t *testing.T) {
	in := types.NewInterner()
	fn := mir.NewFunction("bad")
	tupT := in.InternTuple([]types.ID{types.FeltID, types.FeltID})
	dst := fn.NewValue()
	fn.Emit(fn.EntryBlock, mir.Instruction{
		Kind: mir.KMakeTuple, Dst: dst, Defines: true, Type: tupT,
		Args: []mir.Value{mir.LitInt(1, types.FeltID), mir.LitInt(2, types.FeltID)},
	})
	fn.Block(fn.EntryBlock).Terminator = mir.Terminator{Kind: mir.TReturn}
	fn.Block(fn.EntryBlock).Terminated = true

	_, err := Generate(&mir.MirModule{Functions: []*mir.MirFunction{fn}}, in)
	require.Error(t, err)
}
