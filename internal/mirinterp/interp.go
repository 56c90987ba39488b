// Package mirinterp implements a small reference interpreter over
// internal/mir. Its purpose is narrow: spec.md §8.2 requires mem2reg's
// soundness to be checked by structural equivalence rather than by proof,
// so tests run the same function's pre-mem2reg (memory-backed) and
// post-mem2reg (SSA-with-phi) MIR through this interpreter on the same
// inputs and assert identical outputs.
//
// Grounded on the teacher's internal/bytecode VM (vm_exec.go's frame-based
// Run loop and runtimeError helper), adapted from a flat instruction tape
// with an operand stack into a basic-block graph with an SSA-value
// register file plus a word-addressed memory for FrameAlloc slots.
package mirinterp

import (
	"fmt"

	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

// FieldModulus is Cairo-M's base field size, a Mersenne prime, matching
// the M31 target spec.md names throughout.
const FieldModulus uint64 = (1 << 31) - 1

// Value is a dynamically typed runtime value: either a scalar word, a
// pointer (an address into an Interp's memory), or an aggregate packed as
// a flat list of fields (used only before LowerAggregates has run).
type Value struct {
	Scalar   uint64
	Bool     bool
	IsBool   bool
	IsUnit   bool
	IsPtr    bool
	Addr     int
	IsFields bool
	Fields   []Value
}

// RuntimeError reports a failure reaching a malformed or unreachable
// state, mirroring the teacher's bytecode.RuntimeError.
type RuntimeError struct{ Message string }

func (e *RuntimeError) Error() string { return e.Message }

func runtimeErrorf(format string, args ...any) error {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

// Interp executes functions from one MirModule against a shared memory
// arena, so a callee's FrameAllocs never alias a caller's.
type Interp struct {
	Module  *mir.MirModule
	In      *types.Interner
	mem     map[int]Value
	nextPtr int
}

func NewInterp(m *mir.MirModule, in *types.Interner) *Interp {
	return &Interp{Module: m, In: in, mem: map[int]Value{}}
}

func (ip *Interp) findFunction(name string) *mir.MirFunction {
	for _, fn := range ip.Module.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Run interprets fn with the given argument values, in parameter order,
// and returns its return values.
func (ip *Interp) Run(fn *mir.MirFunction, args []Value) ([]Value, error) {
	regs := make(map[mir.ValueId]Value, len(fn.Params))
	for i, p := range fn.Params {
		if i < len(args) {
			regs[p.Value] = args[i]
		}
	}

	block := fn.EntryBlock
	prev := block
	entered := false
	steps := 0
	for {
		steps++
		if steps > 10_000_000 {
			return nil, runtimeErrorf("%s: exceeded step limit (likely non-terminating)", fn.Name)
		}

		blk := fn.Block(block)
		for _, inst := range blk.Instructions {
			if inst.Kind == mir.KPhi {
				if entered {
					regs[inst.Dst] = ip.phiValue(regs, inst, prev)
				}
				continue
			}
			if err := ip.exec(fn, regs, inst); err != nil {
				return nil, err
			}
		}

		switch blk.Terminator.Kind {
		case mir.TGoto:
			prev, block, entered = block, blk.Terminator.Target, true
		case mir.TIf:
			taken := ip.branchTaken(regs, blk.Terminator)
			prev, entered = block, true
			if taken {
				block = blk.Terminator.Then
			} else {
				block = blk.Terminator.Else
			}
		case mir.TReturn:
			out := make([]Value, len(blk.Terminator.Values))
			for i, v := range blk.Terminator.Values {
				out[i] = ip.value(regs, v)
			}
			return out, nil
		default:
			return nil, runtimeErrorf("%s: reached an unreachable block (bb%d)", fn.Name, block)
		}
	}
}

func (ip *Interp) phiValue(regs map[mir.ValueId]Value, inst mir.Instruction, from mir.BlockId) Value {
	for _, a := range inst.PhiArgs {
		if a.Block == from {
			return ip.value(regs, a.Value)
		}
	}
	return Value{}
}

func (ip *Interp) branchTaken(regs map[mir.ValueId]Value, t mir.Terminator) bool {
	if t.FusedCompare {
		return ip.compare(t.CompareOp, ip.value(regs, t.CompareLHS), ip.value(regs, t.CompareRHS))
	}
	return ip.value(regs, t.Cond).Bool
}

func (ip *Interp) value(regs map[mir.ValueId]Value, v mir.Value) Value {
	if v.IsLiteral {
		switch {
		case v.IsUnit:
			return Value{IsUnit: true}
		case v.Type == types.BoolID:
			return Value{Bool: v.LitBool, IsBool: true}
		default:
			return Value{Scalar: v.LitInt}
		}
	}
	return regs[v.Ref]
}

func (ip *Interp) alloc(width int) int {
	if width < 1 {
		width = 1
	}
	addr := ip.nextPtr
	ip.nextPtr += width
	return addr
}
