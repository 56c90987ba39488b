// Package types implements Cairo-M's type model (spec.md §3.3): interned
// TypeData, interned struct/function signatures, and structural
// compatibility. Types live for the lifetime of one Interner (one query
// database revision scope) and are never mutated once interned.
//
// The interning scheme is grounded on the teacher's internal/types.Type
// interface family (a closed set of kinds with a Compatible/Equals
// predicate) generalized into a proper hash-consing table, since the
// teacher itself never needed structural deduplication of pointer/tuple
// shapes the way Cairo-M's GEP-addressed aggregates do.
package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cairo-m/compiler/internal/ids"
)

// Kind is the closed set of TypeData variants from spec.md §3.3.
type Kind int

const (
	Felt Kind = iota
	Bool
	U32
	Pointer
	Tuple
	Struct
	Function
	Unit
	Unknown
	Error
)

func (k Kind) String() string {
	switch k {
	case Felt:
		return "felt"
	case Bool:
		return "bool"
	case U32:
		return "u32"
	case Pointer:
		return "pointer"
	case Tuple:
		return "tuple"
	case Struct:
		return "struct"
	case Function:
		return "function"
	case Unit:
		return "()"
	case Unknown:
		return "unknown"
	default:
		return "error"
	}
}

// ID is an interned reference to TypeData. Two IDs are compatible iff they
// are equal (spec.md §3.3: "Two types are compatible iff their TypeIds are
// equal after interning").
type ID int

// Fixed IDs for the primitive/sentinel kinds, always present at index 0..5
// of every Interner.
const (
	FeltID    ID = 0
	BoolID    ID = 1
	U32ID     ID = 2
	UnitID    ID = 3
	UnknownID ID = 4
	ErrorID   ID = 5
)

// Data is the interned payload for a TypeID.
type Data struct {
	Kind    Kind
	Elem    ID        // Pointer
	Elems   []ID      // Tuple
	StructT StructID  // Struct
	FuncT   FuncSigID // Function
}

// FieldEntry is one (name, type) pair in declaration order.
type FieldEntry struct {
	Name string
	Type ID
}

// StructID is an interned reference to a StructType.
type StructID int

// StructType is spec.md §3.3's StructTypeId payload.
type StructType struct {
	Def    ids.DefinitionID
	Fields []FieldEntry
	Scope  ids.ScopeID
}

// FieldIndex returns the declaration-order index of name, or -1.
func (s *StructType) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// ParamEntry is one (name, type) function parameter.
type ParamEntry struct {
	Name string
	Type ID
}

// FuncSigID is an interned reference to a FunctionSignature.
type FuncSigID int

// FunctionSignature is spec.md §3.3's FunctionSignatureId payload.
type FunctionSignature struct {
	Params  []ParamEntry
	Returns []ID
}

// Interner hash-conses TypeData, StructType, and FunctionSignature values.
// It is safe for concurrent use: the query engine may resolve types from
// several tracked-function calls in flight at once (spec.md §5).
type Interner struct {
	mu sync.Mutex

	data   []Data
	byKey  map[string]ID

	structs     []*StructType
	structByKey map[string]StructID

	funcs     []*FunctionSignature
	funcByKey map[string]FuncSigID
}

// NewInterner creates an Interner pre-seeded with the six primitive/sentinel
// types at their fixed IDs.
func NewInterner() *Interner {
	in := &Interner{
		byKey:       map[string]ID{},
		structByKey: map[string]StructID{},
		funcByKey:   map[string]FuncSigID{},
	}
	in.data = []Data{
		{Kind: Felt}, {Kind: Bool}, {Kind: U32}, {Kind: Unit}, {Kind: Unknown}, {Kind: Error},
	}
	in.byKey["felt"] = FeltID
	in.byKey["bool"] = BoolID
	in.byKey["u32"] = U32ID
	in.byKey["()"] = UnitID
	in.byKey["?"] = UnknownID
	in.byKey["!"] = ErrorID
	return in
}

// Get returns the interned Data for id.
func (in *Interner) Get(id ID) Data {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.data[id]
}

func (in *Interner) intern(key string, d Data) ID {
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byKey[key]; ok {
		return id
	}
	id := ID(len(in.data))
	in.data = append(in.data, d)
	in.byKey[key] = id
	return id
}

// InternPointer returns the interned Pointer(elem) type.
func (in *Interner) InternPointer(elem ID) ID {
	return in.intern(fmt.Sprintf("*%d", elem), Data{Kind: Pointer, Elem: elem})
}

// InternTuple returns the interned Tuple(elems) type.
func (in *Interner) InternTuple(elems []ID) ID {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = fmt.Sprintf("%d", e)
	}
	return in.intern("("+strings.Join(parts, ",")+")", Data{Kind: Tuple, Elems: append([]ID{}, elems...)})
}

// InternStruct interns the struct's field layout and returns both the
// StructID and the wrapping TypeID.
func (in *Interner) InternStruct(st *StructType) (StructID, ID) {
	key := "struct:" + st.Def.String()
	in.mu.Lock()
	sid, ok := in.structByKey[key]
	if !ok {
		sid = StructID(len(in.structs))
		in.structs = append(in.structs, st)
		in.structByKey[key] = sid
	}
	in.mu.Unlock()
	tid := in.intern("S"+key, Data{Kind: Struct, StructT: sid})
	return sid, tid
}

// StructData returns the StructType for a previously interned StructID.
func (in *Interner) StructData(id StructID) *StructType {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.structs[id]
}

// InternFunctionSignature interns a function signature and returns both the
// FuncSigID and the wrapping TypeID.
func (in *Interner) InternFunctionSignature(sig *FunctionSignature) (FuncSigID, ID) {
	parts := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		parts[i] = fmt.Sprintf("%d", p.Type)
	}
	retParts := make([]string, len(sig.Returns))
	for i, r := range sig.Returns {
		retParts[i] = fmt.Sprintf("%d", r)
	}
	key := "fn(" + strings.Join(parts, ",") + ")->(" + strings.Join(retParts, ",") + ")"
	in.mu.Lock()
	fid, ok := in.funcByKey[key]
	if !ok {
		fid = FuncSigID(len(in.funcs))
		in.funcs = append(in.funcs, sig)
		in.funcByKey[key] = fid
	}
	in.mu.Unlock()
	tid := in.intern("F"+key, Data{Kind: Function, FuncT: fid})
	return fid, tid
}

// FunctionSignatureData returns the FunctionSignature for a previously
// interned FuncSigID.
func (in *Interner) FunctionSignatureData(id FuncSigID) *FunctionSignature {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.funcs[id]
}

// Compatible reports whether two types are interchangeable. Per spec.md
// §3.3 this is just TypeID equality once interned (tuples/pointers are
// structural by construction of InternTuple/InternPointer).
func Compatible(a, b ID) bool {
	if a == ErrorID || b == ErrorID {
		// Error is a propagation sentinel: it suppresses cascading
		// mismatches rather than itself mismatching (spec.md §7).
		return true
	}
	return a == b
}

// String renders a type for diagnostics and MIR/CASM textual dumps.
func (in *Interner) String(id ID) string {
	d := in.Get(id)
	switch d.Kind {
	case Felt, Bool, U32, Unit, Unknown, Error:
		return d.Kind.String()
	case Pointer:
		return in.String(d.Elem) + "*"
	case Tuple:
		parts := make([]string, len(d.Elems))
		for i, e := range d.Elems {
			parts[i] = in.String(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case Struct:
		st := in.StructData(d.StructT)
		return st.Def.String()
	case Function:
		sig := in.FunctionSignatureData(d.FuncT)
		params := make([]string, len(sig.Params))
		for i, p := range sig.Params {
			params[i] = in.String(p.Type)
		}
		rets := make([]string, len(sig.Returns))
		for i, r := range sig.Returns {
			rets[i] = in.String(r)
		}
		return "fn(" + strings.Join(params, ", ") + ") -> (" + strings.Join(rets, ", ") + ")"
	default:
		return "?"
	}
}

// SlotWidth returns the CASM frame-slot width of a type: 1 for
// felt/bool/pointer, 2 for u32, and the sum of element widths for tuples
// and structs (spec.md §4.8.1).
func (in *Interner) SlotWidth(id ID) int {
	d := in.Get(id)
	switch d.Kind {
	case U32:
		return 2
	case Tuple:
		w := 0
		for _, e := range d.Elems {
			w += in.SlotWidth(e)
		}
		return w
	case Struct:
		st := in.StructData(d.StructT)
		w := 0
		for _, f := range st.Fields {
			w += in.SlotWidth(f.Type)
		}
		return w
	case Unit:
		return 0
	default:
		return 1
	}
}

// FieldOffset returns the slot offset of field index i within a struct's
// data layout (spec.md §4.8.1: "the offset of field i is the sum of slot
// widths of fields 0..i").
func (in *Interner) FieldOffset(st *StructType, i int) int {
	off := 0
	for j := 0; j < i; j++ {
		off += in.SlotWidth(st.Fields[j].Type)
	}
	return off
}

// TupleOffset is the analogous computation for tuple elements.
func (in *Interner) TupleOffset(elems []ID, i int) int {
	off := 0
	for j := 0; j < i; j++ {
		off += in.SlotWidth(elems[j])
	}
	return off
}

// IsNumeric reports whether id is felt or u32.
func (in *Interner) IsNumeric(id ID) bool {
	k := in.Get(id).Kind
	return k == Felt || k == U32
}
