// Package ids defines the small set of identity types shared by the type
// system and the semantic index without creating an import cycle between
// them (internal/types.StructType needs to name the struct's declaration;
// internal/semindex needs to name a definition's type).
package ids

import "fmt"

// DefinitionID identifies a Definition: (File, local_index), interned and
// stable across edits that do not renumber declarations (spec.md §3.1).
type DefinitionID struct {
	File  string
	Local int
}

func (d DefinitionID) String() string { return fmt.Sprintf("%s#%d", d.File, d.Local) }

// ScopeID is a per-file dense index into a SemanticIndex's scope tree.
type ScopeID int

// ExpressionID is a per-file dense index into a SemanticIndex's expression
// registry.
type ExpressionID int

// InvalidScope marks "no enclosing scope" (used for the synthetic root).
const InvalidScope ScopeID = -1
