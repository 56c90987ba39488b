package mirinterp

import (
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

func (ip *Interp) exec(fn *mir.MirFunction, regs map[mir.ValueId]Value, inst mir.Instruction) error {
	switch inst.Kind {
	case mir.KAssign, mir.KAddressOf:
		regs[inst.Dst] = ip.value(regs, inst.Args[0])

	case mir.KBinaryOp:
		lhs, rhs := ip.value(regs, inst.Args[0]), ip.value(regs, inst.Args[1])
		if isCompareOp(inst.BinOp) {
			regs[inst.Dst] = Value{Bool: ip.compare(inst.BinOp, lhs, rhs), IsBool: true}
		} else if inst.BinOp == mir.OpAnd || inst.BinOp == mir.OpOr {
			regs[inst.Dst] = Value{Bool: logical(inst.BinOp, lhs.Bool, rhs.Bool), IsBool: true}
		} else {
			regs[inst.Dst] = Value{Scalar: ip.arith(inst.BinOp, lhs.Scalar, rhs.Scalar, inst.Type)}
		}

	case mir.KUnaryOp:
		v := ip.value(regs, inst.Args[0])
		if inst.UnOp == mir.OpNot {
			regs[inst.Dst] = Value{Bool: !v.Bool, IsBool: true}
		} else {
			regs[inst.Dst] = Value{Scalar: ip.arith(mir.OpSub, 0, v.Scalar, inst.Type)}
		}

	case mir.KCast:
		v := ip.value(regs, inst.Args[0])
		regs[inst.Dst] = ip.cast(v, inst.Type)

	case mir.KFrameAlloc:
		width := 1
		if ip.In != nil {
			width = ip.In.SlotWidth(inst.AllocType)
		}
		regs[inst.Dst] = Value{IsPtr: true, Addr: ip.alloc(width)}

	case mir.KLoad:
		addr := ip.value(regs, inst.Args[0])
		regs[inst.Dst] = ip.mem[addr.Addr]

	case mir.KStore:
		addr := ip.value(regs, inst.Args[0])
		ip.mem[addr.Addr] = ip.value(regs, inst.Args[1])

	case mir.KGetElementPtr:
		base := ip.value(regs, inst.Args[0])
		var offset int
		if len(inst.Args) == 2 {
			idx := ip.value(regs, inst.Args[1])
			elemT := ip.In.Get(inst.Type).Elem
			stride := 1
			if ip.In != nil {
				stride = ip.In.SlotWidth(elemT)
			}
			offset = int(idx.Scalar) * stride
		} else {
			offset = ip.fieldOffset(inst.Args[0].Type, inst.Indices[0])
		}
		regs[inst.Dst] = Value{IsPtr: true, Addr: base.Addr + offset}

	case mir.KMakeTuple, mir.KMakeStruct:
		fields := make([]Value, len(inst.Args))
		for i, a := range inst.Args {
			fields[i] = ip.value(regs, a)
		}
		regs[inst.Dst] = Value{IsFields: true, Fields: fields}

	case mir.KExtractTupleElement, mir.KExtractStructField:
		src := ip.value(regs, inst.Args[0])
		idx := inst.Indices[0]
		if idx < len(src.Fields) {
			regs[inst.Dst] = src.Fields[idx]
		}

	case mir.KInsertTuple, mir.KInsertField:
		src := ip.value(regs, inst.Args[0])
		val := ip.value(regs, inst.Args[1])
		fields := append([]Value(nil), src.Fields...)
		idx := inst.Indices[0]
		if idx < len(fields) {
			fields[idx] = val
		}
		regs[inst.Dst] = Value{IsFields: true, Fields: fields}

	case mir.KMakeFixedArray:
		fields := make([]Value, len(inst.Args))
		for i, a := range inst.Args {
			fields[i] = ip.value(regs, a)
		}
		regs[inst.Dst] = Value{IsFields: true, Fields: fields}

	case mir.KCall:
		callee := ip.findFunction(inst.Callee)
		if callee == nil {
			return runtimeErrorf("%s: call to unknown function %q", fn.Name, inst.Callee)
		}
		args := make([]Value, len(inst.Args))
		for i, a := range inst.Args {
			args[i] = ip.value(regs, a)
		}
		out, err := ip.Run(callee, args)
		if err != nil {
			return err
		}
		if len(out) == 1 {
			regs[inst.Dst] = out[0]
		} else {
			regs[inst.Dst] = Value{IsFields: true, Fields: out}
		}

	case mir.KVoidCall:
		callee := ip.findFunction(inst.Callee)
		if callee == nil {
			return runtimeErrorf("%s: call to unknown function %q", fn.Name, inst.Callee)
		}
		args := make([]Value, len(inst.Args))
		for i, a := range inst.Args {
			args[i] = ip.value(regs, a)
		}
		if _, err := ip.Run(callee, args); err != nil {
			return err
		}

	case mir.KLoadConstAddr:
		regs[inst.Dst] = Value{IsPtr: true, Addr: -1}

	case mir.KDebug, mir.KNop:
		// no-op

	default:
		return runtimeErrorf("%s: unsupported MIR instruction %s", fn.Name, inst.Kind)
	}
	return nil
}

func (ip *Interp) fieldOffset(ptrType types.ID, idx int) int {
	if ip.In == nil {
		return idx
	}
	aggType := ip.In.Get(ptrType).Elem
	d := ip.In.Get(aggType)
	switch d.Kind {
	case types.Struct:
		return ip.In.FieldOffset(ip.In.StructData(d.StructT), idx)
	case types.Tuple:
		return ip.In.TupleOffset(d.Elems, idx)
	default:
		return idx
	}
}

func isCompareOp(op mir.BinOp) bool {
	switch op {
	case mir.OpEq, mir.OpNeq, mir.OpLt, mir.OpLe, mir.OpGt, mir.OpGe:
		return true
	default:
		return false
	}
}

func logical(op mir.BinOp, a, b bool) bool {
	if op == mir.OpAnd {
		return a && b
	}
	return a || b
}

func (ip *Interp) compare(op mir.BinOp, a, b Value) bool {
	switch op {
	case mir.OpEq:
		return a.Scalar == b.Scalar && a.Bool == b.Bool
	case mir.OpNeq:
		return a.Scalar != b.Scalar || a.Bool != b.Bool
	case mir.OpLt:
		return a.Scalar < b.Scalar
	case mir.OpLe:
		return a.Scalar <= b.Scalar
	case mir.OpGt:
		return a.Scalar > b.Scalar
	case mir.OpGe:
		return a.Scalar >= b.Scalar
	default:
		return false
	}
}

// arith evaluates a binary arithmetic op, reducing modulo the field size
// for felt-typed results and modulo 2^32 for u32, matching spec.md's two
// numeric domains.
func (ip *Interp) arith(op mir.BinOp, a, b uint64, resultType types.ID) uint64 {
	isU32 := ip.In != nil && ip.In.Get(resultType).Kind == types.U32
	var modulus uint64 = FieldModulus
	if isU32 {
		modulus = 1 << 32
	}

	var r uint64
	switch op {
	case mir.OpAdd:
		r = a + b
	case mir.OpSub:
		r = (a + modulus - b%modulus) % modulus
		return r
	case mir.OpMul:
		r = a * b
	case mir.OpDiv:
		if isU32 {
			if b == 0 {
				return 0
			}
			return a / b
		}
		return a * modInverse(b, FieldModulus) % FieldModulus
	case mir.OpMod:
		if b == 0 {
			return 0
		}
		return a % b
	default:
		r = 0
	}
	return r % modulus
}

func modInverse(a, p uint64) uint64 {
	if a == 0 {
		return 0
	}
	return modPow(a, p-2, p)
}

func modPow(base, exp, mod uint64) uint64 {
	result := uint64(1)
	base %= mod
	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % mod
		}
		exp >>= 1
		base = (base * base) % mod
	}
	return result
}

func (ip *Interp) cast(v Value, target types.ID) Value {
	if ip.In == nil {
		return v
	}
	switch ip.In.Get(target).Kind {
	case types.Bool:
		return Value{Bool: v.Scalar != 0, IsBool: true}
	case types.U32:
		s := v.Scalar
		if v.IsBool {
			if v.Bool {
				s = 1
			} else {
				s = 0
			}
		}
		return Value{Scalar: s % (1 << 32)}
	case types.Felt:
		s := v.Scalar
		if v.IsBool {
			if v.Bool {
				s = 1
			} else {
				s = 0
			}
		}
		return Value{Scalar: s % FieldModulus}
	default:
		return v
	}
}
