// Package semindex builds the Semantic Index (spec.md §3.2, §4.3): a
// two-pass scoped symbol model over a parsed file. Every expression gets a
// dense ExpressionID and the index stores its AST subtree by value, so
// later type-inference queries never re-search the tree by span
// (spec.md §4.3, §9 "Ownership of AST subtrees").
//
// The two-pass (declarations, then bodies) shape and the scope-chain
// Place lookup are grounded on the teacher's internal/semantic two-pass
// analyzer plus its SymbolTable (internal/semantic/symbol_table.go),
// generalized from a single flat scope stack into a persisted scope tree
// so that later queries can be keyed on a stable ScopeID.
package semindex

import (
	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/ids"
	"github.com/cairo-m/compiler/internal/source"
)

// DefinitionKind is spec.md §3.2's DefinitionKind.
type DefinitionKind int

const (
	DefFunction DefinitionKind = iota
	DefStruct
	DefConst
	DefLet
	DefLocal
	DefParameter
	DefImport
	DefNamespace
)

func (k DefinitionKind) String() string {
	switch k {
	case DefFunction:
		return "function"
	case DefStruct:
		return "struct"
	case DefConst:
		return "const"
	case DefLet:
		return "let"
	case DefLocal:
		return "local"
	case DefParameter:
		return "parameter"
	case DefImport:
		return "import"
	default:
		return "namespace"
	}
}

// ScopeKind is spec.md §3.2's Scope.kind.
type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeBlock
	ScopeNamespace
)

// Place is a named binding within a scope (spec.md §3.2).
type Place struct {
	Name  string
	Def   ids.DefinitionID
	Uses  int
}

// Scope is a node in the per-file scope tree.
type Scope struct {
	Parent ids.ScopeID
	Kind   ScopeKind
	Places map[string]*Place
}

// Definition is an AST-linked semantic record (spec.md §3.2).
type Definition struct {
	ID       ids.DefinitionID
	Kind     DefinitionKind
	Name     string
	Node     ast.Node // the owning AST node (FunctionDecl, StructDecl, Param, LetStmt, ...)
	Scope    ids.ScopeID // scope this definition lives in
	Inner    ids.ScopeID // scope this definition introduces (Function/Namespace); InvalidScope otherwise
	TypeNode ast.TypeExpr // explicit annotation, nil if absent
	Init     *ids.ExpressionID // initializer expression, nil if absent
	Mutable  bool
}

// Assignment is one `target = value;` statement's expression pair.
type Assignment struct {
	Target ids.ExpressionID
	Value  ids.ExpressionID
}

// ExpressionInfo owns one expression subtree by value plus the scope it was
// found in, so type inference never needs to re-resolve position (spec.md
// §3.2, §9).
type ExpressionInfo struct {
	Expr  ast.Expr
	Scope ids.ScopeID
}

// SemanticIndex is the full per-file output of the two-pass builder.
type SemanticIndex struct {
	File        string
	Scopes      []Scope
	Definitions []Definition
	Expressions []ExpressionInfo
	UseDef      map[ids.ExpressionID]ids.DefinitionID
	ModuleScope ids.ScopeID
	Diagnostics diagnostic.Bag

	// Assignments records the (target, value) ExpressionID pair of every
	// AssignStmt, so ScopeValidator/TypeValidator can distinguish a write
	// from a read, and check value-compatibility, without re-walking the
	// AST (spec.md §4.5 ConstAssignment, InvalidAssignTarget).
	Assignments []Assignment

	funcByName   map[string]ids.DefinitionID
	structByName map[string]ids.DefinitionID
}

func newIndex(file string) *SemanticIndex {
	return &SemanticIndex{
		File:         file,
		UseDef:       map[ids.ExpressionID]ids.DefinitionID{},
		funcByName:   map[string]ids.DefinitionID{},
		structByName: map[string]ids.DefinitionID{},
	}
}

func (si *SemanticIndex) newScope(parent ids.ScopeID, kind ScopeKind) ids.ScopeID {
	id := ids.ScopeID(len(si.Scopes))
	si.Scopes = append(si.Scopes, Scope{Parent: parent, Kind: kind, Places: map[string]*Place{}})
	return id
}

func (si *SemanticIndex) newDefinition(kind DefinitionKind, name string, node ast.Node, scope ids.ScopeID) *Definition {
	id := ids.DefinitionID{File: si.File, Local: len(si.Definitions)}
	si.Definitions = append(si.Definitions, Definition{
		ID: id, Kind: kind, Name: name, Node: node, Scope: scope, Inner: ids.InvalidScope,
	})
	return &si.Definitions[id.Local]
}

// Definition returns the definition record for id (must belong to this
// file).
func (si *SemanticIndex) Definition(id ids.DefinitionID) *Definition {
	return &si.Definitions[id.Local]
}

// NewExpression records expr's AST value and returns its fresh ID
// (spec.md §3.2 invariant: every expression has exactly one ExpressionId).
func (si *SemanticIndex) NewExpression(expr ast.Expr, scope ids.ScopeID) ids.ExpressionID {
	id := ids.ExpressionID(len(si.Expressions))
	si.Expressions = append(si.Expressions, ExpressionInfo{Expr: expr, Scope: scope})
	return id
}

// Expression returns the stored AST value for id.
func (si *SemanticIndex) Expression(id ids.ExpressionID) ExpressionInfo {
	return si.Expressions[id]
}

// define inserts name -> def into scope, emitting DuplicateDefinition if the
// scope already has that name (spec.md §3.2 invariant).
func (si *SemanticIndex) define(scope ids.ScopeID, name string, def ids.DefinitionID, at source.Span) bool {
	sc := &si.Scopes[scope]
	if existing, ok := sc.Places[name]; ok {
		si.Diagnostics.Add(diagnostic.New(diagnostic.CodeDuplicateDefinition, diagnostic.Error,
			"duplicate definition of '"+name+"'",
			diagnostic.Label{Span: at}).
			WithSecondary(si.Definition(existing.Def).Node.Span(), "previous definition here"))
		return false
	}
	sc.Places[name] = &Place{Name: name, Def: def}
	return true
}

// Lookup resolves name starting at scope and walking the parent chain
// (spec.md §4.3: "A name in an outer scope is visible in inner scopes").
func (si *SemanticIndex) Lookup(scope ids.ScopeID, name string) (*Place, bool) {
	for s := scope; s != ids.InvalidScope; s = si.Scopes[s].Parent {
		if p, ok := si.Scopes[s].Places[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// DefinitionForNode finds the Definition created from a given AST node and
// name (there can be more than one name per node for tuple-destructuring
// LetStmts). Used by internal/mirbuild to recover a binding's identity
// without re-deriving the scope tree during lowering.
func (si *SemanticIndex) DefinitionForNode(node ast.Node, name string) (ids.DefinitionID, bool) {
	for i := range si.Definitions {
		d := &si.Definitions[i]
		if d.Name == name && d.Node == node {
			return d.ID, true
		}
	}
	return ids.DefinitionID{}, false
}

// FunctionDef returns the DefinitionID for a top-level function name.
func (si *SemanticIndex) FunctionDef(name string) (ids.DefinitionID, bool) {
	d, ok := si.funcByName[name]
	return d, ok
}

// StructDef returns the DefinitionID for a top-level struct name.
func (si *SemanticIndex) StructDef(name string) (ids.DefinitionID, bool) {
	d, ok := si.structByName[name]
	return d, ok
}
