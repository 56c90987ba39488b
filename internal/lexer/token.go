// Package lexer turns Cairo-M source text into a token stream. The scanner
// structure (rune-by-rune scan with a one-character lookahead, line/column
// tracked as the cursor advances) is grounded on the teacher's
// internal/lexer.Lexer; Cairo-M's grammar is far smaller than DWScript's
// (no case-insensitivity, no compiler directives, no units), so the token
// set and keyword table below are written fresh rather than adapted line
// for line.
package lexer

import "github.com/cairo-m/compiler/internal/source"

// TokenType identifies the lexical class of a Token.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	IDENT
	INT

	// Keywords
	FN
	LET
	CONST
	LOCAL
	IF
	ELSE
	WHILE
	LOOP
	FOR
	BREAK
	CONTINUE
	RETURN
	STRUCT
	USE
	TRUE
	FALSE
	AS

	// Punctuation
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMI
	COLON
	COLONCOLON
	ARROW
	DOT

	// Operators
	ASSIGN
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	AMP
	BANG
	EQ
	NEQ
	LT
	LE
	GT
	GE
	ANDAND
	OROR
)

var tokenNames = map[TokenType]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", IDENT: "IDENT", INT: "INT",
	FN: "fn", LET: "let", CONST: "const", LOCAL: "local", IF: "if", ELSE: "else",
	WHILE: "while", LOOP: "loop", FOR: "for", BREAK: "break", CONTINUE: "continue",
	RETURN: "return", STRUCT: "struct", USE: "use", TRUE: "true", FALSE: "false", AS: "as",
	LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}", LBRACKET: "[", RBRACKET: "]",
	COMMA: ",", SEMI: ";", COLON: ":", COLONCOLON: "::", ARROW: "->", DOT: ".",
	ASSIGN: "=", PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	AMP: "&", BANG: "!", EQ: "==", NEQ: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=",
	ANDAND: "&&", OROR: "||",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenType{
	"fn": FN, "let": LET, "const": CONST, "local": LOCAL, "if": IF, "else": ELSE,
	"while": WHILE, "loop": LOOP, "for": FOR, "break": BREAK, "continue": CONTINUE,
	"return": RETURN, "struct": STRUCT, "use": USE, "true": TRUE, "false": FALSE, "as": AS,
}

// LookupIdent resolves an identifier to a keyword TokenType, or IDENT if it
// is not reserved.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Suffix marks a pinned numeric-literal type, per spec.md §3.3 ("42u32",
// "42felt").
type Suffix int

const (
	NoSuffix Suffix = iota
	FeltSuffix
	U32Suffix
)

// Token is a single lexical unit with its source span.
type Token struct {
	Type    TokenType
	Literal string
	Suffix  Suffix
	Span    source.Span
}
