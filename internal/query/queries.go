package query

import (
	"context"
	"fmt"

	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/casm"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/ids"
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/mirbuild"
	"github.com/cairo-m/compiler/internal/mirpass"
	"github.com/cairo-m/compiler/internal/parser"
	"github.com/cairo-m/compiler/internal/semindex"
	"github.com/cairo-m/compiler/internal/types"
	"github.com/cairo-m/compiler/internal/validator"
)

// ErrDiagnostics wraps a non-empty diagnostic set returned alongside a
// query result that otherwise computed successfully (e.g. mirpass.Run's
// ICE diagnostics after a successful lowering).
type ErrDiagnostics struct {
	Diags []diagnostic.Diagnostic
}

func (e *ErrDiagnostics) Error() string {
	return fmt.Sprintf("query: %d diagnostic(s)", len(e.Diags))
}

// ---- parse (spec.md §4.1, §4.2) ----

type parseResult struct {
	Program *ast.Program
	Diags   []diagnostic.Diagnostic
}

// Parse tokenizes and parses path's current text, memoized per revision.
func (db *Database) Parse(ctx context.Context, path string) (*ast.Program, []diagnostic.Diagnostic, error) {
	f, ok := db.file(path)
	if !ok {
		return nil, nil, fmt.Errorf("query: unknown file %q", path)
	}
	r, err := db.parse.get(ctx, db.key(path), func(_ context.Context) (parseResult, error) {
		db.log.Debug("parse", "file", path, "revision", f.Revision)
		prog, diags := parser.Parse(path, f.Text)
		return parseResult{Program: prog, Diags: diags}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return r.Program, r.Diags, nil
}

// ---- semantic_index (spec.md §4.1, §4.3) ----

type indexResult struct {
	SI *semindex.SemanticIndex
}

// SemanticIndex builds (or returns the memoized) scope/definition model
// for path, building on Parse.
func (db *Database) SemanticIndex(ctx context.Context, path string) (*semindex.SemanticIndex, error) {
	f, ok := db.file(path)
	if !ok {
		return nil, fmt.Errorf("query: unknown file %q", path)
	}
	r, err := db.index.get(ctx, db.key(path), func(ctx context.Context) (indexResult, error) {
		prog, _, err := db.Parse(ctx, path)
		if err != nil {
			return indexResult{}, err
		}
		db.log.Debug("semantic_index", "file", path, "revision", f.Revision)
		return indexResult{SI: semindex.Build(path, prog)}, nil
	})
	return r.SI, err
}

// ---- check (type inference over a whole file, spec.md §4.4) ----

type checkResult struct {
	Checker *types.Checker
	Diags   []diagnostic.Diagnostic
}

// check runs the type checker over every definition in path, driving
// inference eagerly (rather than waiting for a caller to ask about one
// expression) so that the diagnostics it raises are visible to the
// validate query below. The per-node accessors (ResolveASTType,
// DefinitionType, ExpressionType) still go through their own tracked
// functions and read the completed Checker's memo tables, which is what
// lets them answer from cache without re-running inference.
func (db *Database) check(ctx context.Context, path string) (checkResult, error) {
	f, ok := db.file(path)
	if !ok {
		return checkResult{}, fmt.Errorf("query: unknown file %q", path)
	}
	return db.chk.get(ctx, db.key(path), func(ctx context.Context) (checkResult, error) {
		si, err := db.SemanticIndex(ctx, path)
		if err != nil {
			return checkResult{}, err
		}
		db.log.Debug("check", "file", path, "revision", f.Revision)
		diags := &diagnostic.Bag{}
		ck := types.NewChecker(db.interner, si, diags)
		for _, def := range si.Definitions {
			switch def.Kind {
			case semindex.DefFunction:
				ck.FunctionSignature(def.ID)
			case semindex.DefStruct:
				ck.StructData(def.ID)
			case semindex.DefConst:
				ck.DefinitionType(def.ID)
			}
		}
		return checkResult{Checker: ck, Diags: diags.Items()}, nil
	})
}

// ---- validate (spec.md §4.5) ----

type validateResult struct {
	Diags []diagnostic.Diagnostic
}

// Validate runs every validator pass and returns the merged, sorted
// diagnostics for path: semantic-index errors, type errors, and the
// pluggable scope/type/control-flow passes.
func (db *Database) Validate(ctx context.Context, path string) ([]diagnostic.Diagnostic, error) {
	f, ok := db.file(path)
	if !ok {
		return nil, fmt.Errorf("query: unknown file %q", path)
	}
	r, err := db.validate.get(ctx, db.key(path), func(ctx context.Context) (validateResult, error) {
		si, err := db.SemanticIndex(ctx, path)
		if err != nil {
			return validateResult{}, err
		}
		cr, err := db.check(ctx, path)
		if err != nil {
			return validateResult{}, err
		}
		db.log.Debug("validate", "file", path, "revision", f.Revision)
		bag := &diagnostic.Bag{}
		bag.Extend(cr.Diags)
		bag.Extend(validator.DefaultPassManager().RunAll(si, cr.Checker))
		return validateResult{Diags: bag.Sorted()}, nil
	})
	return r.Diags, err
}

// ---- lower_to_mir (spec.md §4.6, §4.7) ----

type lowerResult struct {
	Module *mir.MirModule
}

// LowerToMIR lowers path to optimized MIR. Callers must check Validate
// for errors first (spec.md §4.5, §7): lowering a file with unresolved
// names or type errors panics deep in mirbuild rather than failing
// cleanly, by design, since it should be unreachable from a well-behaved
// caller that always checks diagnostics before lowering.
func (db *Database) LowerToMIR(ctx context.Context, path string) (*mir.MirModule, error) {
	f, ok := db.file(path)
	if !ok {
		return nil, fmt.Errorf("query: unknown file %q", path)
	}
	r, err := db.lower.get(ctx, db.key(path), func(ctx context.Context) (lowerResult, error) {
		prog, _, err := db.Parse(ctx, path)
		if err != nil {
			return lowerResult{}, err
		}
		si, err := db.SemanticIndex(ctx, path)
		if err != nil {
			return lowerResult{}, err
		}
		cr, err := db.check(ctx, path)
		if err != nil {
			return lowerResult{}, err
		}
		db.log.Debug("lower_to_mir", "file", path, "revision", f.Revision)
		mod := mirbuild.Lower(prog, si, cr.Checker)
		if diags := mirpass.Run(mod, db.interner); len(diags) > 0 {
			return lowerResult{Module: mod}, &ErrDiagnostics{Diags: diags}
		}
		return lowerResult{Module: mod}, nil
	})
	return r.Module, err
}

// ---- generate_casm (spec.md §4.8) ----

type codegenResult struct {
	Program *casm.Program
}

// GenerateCASM lowers path all the way to a resolved CASM program.
func (db *Database) GenerateCASM(ctx context.Context, path string) (*casm.Program, error) {
	f, ok := db.file(path)
	if !ok {
		return nil, fmt.Errorf("query: unknown file %q", path)
	}
	r, err := db.codegen.get(ctx, db.key(path), func(ctx context.Context) (codegenResult, error) {
		mod, err := db.LowerToMIR(ctx, path)
		if err != nil {
			return codegenResult{}, err
		}
		db.log.Debug("generate_casm", "file", path, "revision", f.Revision)
		prog, err := casm.Generate(mod, db.interner)
		if err != nil {
			return codegenResult{}, err
		}
		return codegenResult{Program: prog}, nil
	})
	return r.Program, err
}

// ---- fine-grained type queries (spec.md §4.4, §9) ----

type astTypeKey struct {
	revKey
	TE    ast.TypeExpr
	Scope ids.ScopeID
}

type resolveTypeResult struct{ ID types.ID }

// ResolveASTType maps surface type syntax to a TypeID, memoized per
// (file revision, syntax node, scope) so that re-resolving the same
// unedited type annotation across repeated queries is a cache hit.
func (db *Database) ResolveASTType(ctx context.Context, path string, te ast.TypeExpr, scope ids.ScopeID) (types.ID, error) {
	cr, err := db.check(ctx, path)
	if err != nil {
		return types.UnknownID, err
	}
	key := astTypeKey{revKey: db.key(path), TE: te, Scope: scope}
	r, err := db.resolveType.get(ctx, key, func(context.Context) (resolveTypeResult, error) {
		return resolveTypeResult{ID: cr.Checker.ResolveASTType(te, scope)}, nil
	})
	return r.ID, err
}

type defKey struct {
	revKey
	Def ids.DefinitionID
}

type defTypeResult struct{ ID types.ID }

// DefinitionType returns def's type, memoized per (file revision, def).
func (db *Database) DefinitionType(ctx context.Context, path string, def ids.DefinitionID) (types.ID, error) {
	cr, err := db.check(ctx, path)
	if err != nil {
		return types.UnknownID, err
	}
	key := defKey{revKey: db.key(path), Def: def}
	r, err := db.defType.get(ctx, key, func(context.Context) (defTypeResult, error) {
		return defTypeResult{ID: cr.Checker.DefinitionType(def)}, nil
	})
	return r.ID, err
}

type exprKey struct {
	revKey
	Expr ids.ExpressionID
}

type exprTypeResult struct{ ID types.ID }

// ExpressionType returns the inferred type of expression id, memoized per
// (file revision, expression).
func (db *Database) ExpressionType(ctx context.Context, path string, id ids.ExpressionID) (types.ID, error) {
	cr, err := db.check(ctx, path)
	if err != nil {
		return types.UnknownID, err
	}
	key := exprKey{revKey: db.key(path), Expr: id}
	r, err := db.exprType.get(ctx, key, func(context.Context) (exprTypeResult, error) {
		return exprTypeResult{ID: cr.Checker.ExpressionType(id)}, nil
	})
	return r.ID, err
}

// FunctionSignature and StructData are not independently tracked: they
// are cheap map reads into the Checker the check() query already
// memoized, so a dedicated cache table would only add lookup overhead.
func (db *Database) FunctionSignature(ctx context.Context, path string, def ids.DefinitionID) (*types.FunctionSignature, error) {
	cr, err := db.check(ctx, path)
	if err != nil {
		return nil, err
	}
	return cr.Checker.FunctionSignature(def), nil
}

func (db *Database) StructData(ctx context.Context, path string, def ids.DefinitionID) (*types.StructType, error) {
	cr, err := db.check(ctx, path)
	if err != nil {
		return nil, err
	}
	return cr.Checker.StructData(def), nil
}

// Interner exposes the Database's shared type interner, needed by callers
// that render MIR/CASM text (mir.Print, casm.Disassemble both take one).
func (db *Database) Interner() *types.Interner { return db.interner }
