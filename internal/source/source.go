// Package source defines the tracked input entity of the query database: a
// file identified by its path, with a text revision that downstream queries
// key their memoization on.
package source

import "fmt"

// File is an incremental input. Its identity is Path; Revision bumps
// whenever SetText changes the text (writing back identical text leaves it
// unchanged), so that dependent tracked queries are invalidated.
type File struct {
	Path     string
	Text     string
	Revision uint64
}

// Position is a single point in a file, 1-indexed for both Line and Column
// (columns count runes, matching the teacher lexer's convention).
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open source range used to anchor diagnostics and every
// stored ExpressionInfo/AST node.
type Span struct {
	File  string
	Start Position
	End   Position
}

// Zero reports whether the span carries no position information, which
// happens for synthesized nodes (e.g. implicit returns) that should not
// render a caret.
func (s Span) Zero() bool {
	return s.Start == Position{} && s.End == Position{}
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%s", s.File, s.Start)
}
