// Package ast defines the typed syntax tree the parser hands to semantic
// analysis. Every node is a plain value (not a pointer-heavy graph tied to
// the lexer), so the semantic index can store expression subtrees by value
// in ExpressionInfo (spec.md §3.2, §6.2) without re-parsing or walking by
// span. Node shapes follow the teacher's internal/ast style (span-bearing
// struct per production, a small closed set of interfaces) cut down to
// Cairo-M's much smaller grammar.
package ast

import "github.com/cairo-m/compiler/internal/source"

// Node is implemented by every AST type.
type Node interface {
	Span() source.Span
}

// Program is the root of a parsed file: an ordered sequence of top-level
// items.
type Program struct {
	Items []Item
}

// Item is a top-level declaration.
type Item interface {
	Node
	itemNode()
}

// TypeExpr is surface type syntax, resolved to a types.ID by
// internal/types.ResolveASTType.
type TypeExpr interface {
	Node
	typeExprNode()
}

// NamedType is a primitive (felt/u32/bool) or a reference to a struct
// declared elsewhere in the file.
type NamedType struct {
	Name     string
	SpanInfo source.Span
}

func (t *NamedType) Span() source.Span { return t.SpanInfo }
func (*NamedType) typeExprNode()       {}

// PointerType is `T*`.
type PointerType struct {
	Elem     TypeExpr
	SpanInfo source.Span
}

func (t *PointerType) Span() source.Span { return t.SpanInfo }
func (*PointerType) typeExprNode()       {}

// TupleType is `(T1, ..., Tn)`.
type TupleType struct {
	Elems    []TypeExpr
	SpanInfo source.Span
}

func (t *TupleType) Span() source.Span { return t.SpanInfo }
func (*TupleType) typeExprNode()       {}

// ArrayType is a fixed-size array `[T; N]`.
type ArrayType struct {
	Elem     TypeExpr
	Size     int
	SpanInfo source.Span
}

func (t *ArrayType) Span() source.Span { return t.SpanInfo }
func (*ArrayType) typeExprNode()       {}

// Param is one function parameter.
type Param struct {
	Name     string
	Type     TypeExpr
	SpanInfo source.Span
}

func (p Param) Span() source.Span { return p.SpanInfo }

// FunctionDecl is `fn name(params) -> returns { body }`.
type FunctionDecl struct {
	Name        string
	Params      []Param
	ReturnTypes []TypeExpr
	Body        *BlockStmt
	SpanInfo    source.Span
}

func (d *FunctionDecl) Span() source.Span { return d.SpanInfo }
func (*FunctionDecl) itemNode()           {}

// FieldDecl is one struct field declaration.
type FieldDecl struct {
	Name     string
	Type     TypeExpr
	SpanInfo source.Span
}

func (f FieldDecl) Span() source.Span { return f.SpanInfo }

// StructDecl is `struct Name { fields }`.
type StructDecl struct {
	Name     string
	Fields   []FieldDecl
	SpanInfo source.Span
}

func (d *StructDecl) Span() source.Span { return d.SpanInfo }
func (*StructDecl) itemNode()           {}

// ConstDecl is a top-level `const name: T = expr;` (also usable as a
// statement inside a block).
type ConstDecl struct {
	Name     string
	Type     TypeExpr // nil if not annotated
	Value    Expr
	SpanInfo source.Span
}

func (d *ConstDecl) Span() source.Span { return d.SpanInfo }
func (*ConstDecl) itemNode()           {}
func (*ConstDecl) stmtNode()           {}

// UseDecl is `use X::Y;` — a name-based, single-file namespace import
// (spec.md §4.3: cross-file imports are a non-goal of the core).
type UseDecl struct {
	Path     []string
	SpanInfo source.Span
}

func (d *UseDecl) Span() source.Span { return d.SpanInfo }
func (*UseDecl) itemNode()           {}

// Stmt is a statement inside a function body.
type Stmt interface {
	Node
	stmtNode()
}

// Pattern is the left-hand side of a let/local binding: either a plain
// identifier or a tuple destructuring pattern (spec.md §8.4 Scenario E).
type Pattern interface {
	Node
	patternNode()
}

// IdentPattern binds a single name.
type IdentPattern struct {
	Name     string
	SpanInfo source.Span
}

func (p *IdentPattern) Span() source.Span { return p.SpanInfo }
func (*IdentPattern) patternNode()        {}

// TuplePattern destructures a tuple-typed value, e.g. `let (a, b) = g();`.
type TuplePattern struct {
	Elems    []Pattern
	SpanInfo source.Span
}

func (p *TuplePattern) Span() source.Span { return p.SpanInfo }
func (*TuplePattern) patternNode()        {}

// BindKind distinguishes `let` from `local` bindings (spec.md
// DefinitionKind); `const` bindings are ConstDecl nodes.
type BindKind int

const (
	BindLet BindKind = iota
	BindLocal
)

// LetStmt is a `let`/`local` binding, with or without a type annotation and
// with or without an initializer (spec.md §3.2: a binding must carry at
// least one of the two).
type LetStmt struct {
	Pattern  Pattern
	Kind     BindKind
	Type     TypeExpr // nil if not annotated
	Value    Expr     // nil if no initializer
	SpanInfo source.Span
}

func (s *LetStmt) Span() source.Span { return s.SpanInfo }
func (*LetStmt) stmtNode()           {}

// AssignStmt is `target = value;`.
type AssignStmt struct {
	Target   Expr
	Value    Expr
	SpanInfo source.Span
}

func (s *AssignStmt) Span() source.Span { return s.SpanInfo }
func (*AssignStmt) stmtNode()           {}

// ExprStmt is an expression used as a statement (typically a call).
type ExprStmt struct {
	Value    Expr
	SpanInfo source.Span
}

func (s *ExprStmt) Span() source.Span { return s.SpanInfo }
func (*ExprStmt) stmtNode()           {}

// ReturnStmt is `return expr, expr, ...;` (zero, one, or many values).
type ReturnStmt struct {
	Values   []Expr
	SpanInfo source.Span
}

func (s *ReturnStmt) Span() source.Span { return s.SpanInfo }
func (*ReturnStmt) stmtNode()           {}

// IfStmt is `if (cond) { then } else { else }`. Else is nil, a *BlockStmt,
// or a nested *IfStmt (else if).
type IfStmt struct {
	Cond     Expr
	Then     *BlockStmt
	Else     Stmt
	SpanInfo source.Span
}

func (s *IfStmt) Span() source.Span { return s.SpanInfo }
func (*IfStmt) stmtNode()           {}

// WhileStmt is `while (cond) { body }`.
type WhileStmt struct {
	Cond     Expr
	Body     *BlockStmt
	SpanInfo source.Span
}

func (s *WhileStmt) Span() source.Span { return s.SpanInfo }
func (*WhileStmt) stmtNode()           {}

// LoopStmt is an unconditional `loop { body }`, terminated only by break.
type LoopStmt struct {
	Body     *BlockStmt
	SpanInfo source.Span
}

func (s *LoopStmt) Span() source.Span { return s.SpanInfo }
func (*LoopStmt) stmtNode()           {}

// ForStmt is `for (init; cond; post) { body }`.
type ForStmt struct {
	Init     Stmt // nil if absent
	Cond     Expr // nil if absent
	Post     Stmt // nil if absent
	Body     *BlockStmt
	SpanInfo source.Span
}

func (s *ForStmt) Span() source.Span { return s.SpanInfo }
func (*ForStmt) stmtNode()           {}

// BreakStmt is `break;`.
type BreakStmt struct{ SpanInfo source.Span }

func (s *BreakStmt) Span() source.Span { return s.SpanInfo }
func (*BreakStmt) stmtNode()           {}

// ContinueStmt is `continue;`.
type ContinueStmt struct{ SpanInfo source.Span }

func (s *ContinueStmt) Span() source.Span { return s.SpanInfo }
func (*ContinueStmt) stmtNode()           {}

// BlockStmt is `{ stmts }`, introducing a child scope.
type BlockStmt struct {
	Stmts    []Stmt
	SpanInfo source.Span
}

func (s *BlockStmt) Span() source.Span { return s.SpanInfo }
func (*BlockStmt) stmtNode()           {}

// Expr is any expression.
type Expr interface {
	Node
	exprNode()
}

// Identifier is a name reference, resolved by the semantic index to a Place.
type Identifier struct {
	Name     string
	SpanInfo source.Span
}

func (e *Identifier) Span() source.Span { return e.SpanInfo }
func (*Identifier) exprNode()           {}

// IntLiteral is a (possibly suffixed) integer literal.
type IntLiteral struct {
	Value    uint64
	Suffix   LiteralSuffix
	SpanInfo source.Span
}

func (e *IntLiteral) Span() source.Span { return e.SpanInfo }
func (*IntLiteral) exprNode()           {}

// LiteralSuffix mirrors lexer.Suffix without importing the lexer package
// from ast (kept independent so ast has no dependency on lexer internals).
type LiteralSuffix int

const (
	NoSuffix LiteralSuffix = iota
	FeltSuffix
	U32Suffix
)

// BoolLiteral is `true`/`false`.
type BoolLiteral struct {
	Value    bool
	SpanInfo source.Span
}

func (e *BoolLiteral) Span() source.Span { return e.SpanInfo }
func (*BoolLiteral) exprNode()           {}

// UnitLiteral is `()`.
type UnitLiteral struct{ SpanInfo source.Span }

func (e *UnitLiteral) Span() source.Span { return e.SpanInfo }
func (*UnitLiteral) exprNode()           {}

// UnaryOp enumerates prefix operators.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

// UnaryExpr is `-x` or `!x`.
type UnaryExpr struct {
	Op       UnaryOp
	Operand  Expr
	SpanInfo source.Span
}

func (e *UnaryExpr) Span() source.Span { return e.SpanInfo }
func (*UnaryExpr) exprNode()           {}

// BinaryOp enumerates infix operators.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEq
	BinNeq
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

// BinaryExpr is `left op right`.
type BinaryExpr struct {
	Op       BinaryOp
	Left     Expr
	Right    Expr
	SpanInfo source.Span
}

func (e *BinaryExpr) Span() source.Span { return e.SpanInfo }
func (*BinaryExpr) exprNode()           {}

// CallExpr is `callee(args)`.
type CallExpr struct {
	Callee   Expr
	Args     []Expr
	SpanInfo source.Span
}

func (e *CallExpr) Span() source.Span { return e.SpanInfo }
func (*CallExpr) exprNode()           {}

// FieldInit is one `field: expr` entry in a struct literal.
type FieldInit struct {
	Name  string
	Value Expr
}

// StructLiteral is `Name { field: expr, ... }`.
type StructLiteral struct {
	Name     string
	Fields   []FieldInit
	SpanInfo source.Span
}

func (e *StructLiteral) Span() source.Span { return e.SpanInfo }
func (*StructLiteral) exprNode()           {}

// MemberExpr is `e.f`.
type MemberExpr struct {
	Receiver Expr
	Field    string
	SpanInfo source.Span
}

func (e *MemberExpr) Span() source.Span { return e.SpanInfo }
func (*MemberExpr) exprNode()           {}

// IndexExpr is `a[i]`.
type IndexExpr struct {
	Base     Expr
	Index    Expr
	SpanInfo source.Span
}

func (e *IndexExpr) Span() source.Span { return e.SpanInfo }
func (*IndexExpr) exprNode()           {}

// TupleExpr is `(e1, e2, ...)` with at least 2 elements (1-tuples are
// disallowed by the parser to keep `(e)` an unambiguous grouping).
type TupleExpr struct {
	Elems    []Expr
	SpanInfo source.Span
}

func (e *TupleExpr) Span() source.Span { return e.SpanInfo }
func (*TupleExpr) exprNode()           {}

// CastExpr is `e as T`.
type CastExpr struct {
	Value    Expr
	Type     TypeExpr
	SpanInfo source.Span
}

func (e *CastExpr) Span() source.Span { return e.SpanInfo }
func (*CastExpr) exprNode()           {}

// AddressOfExpr is `&e`, used to take a pointer to a place (escapes a
// mem2reg candidate per spec.md §4.7 step 4).
type AddressOfExpr struct {
	Value    Expr
	SpanInfo source.Span
}

func (e *AddressOfExpr) Span() source.Span { return e.SpanInfo }
func (*AddressOfExpr) exprNode()           {}

// FixedArrayLiteral is `[e1, e2, ...]`.
type FixedArrayLiteral struct {
	Elems    []Expr
	SpanInfo source.Span
}

func (e *FixedArrayLiteral) Span() source.Span { return e.SpanInfo }
func (*FixedArrayLiteral) exprNode()           {}
