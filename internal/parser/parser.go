// Package parser implements the recursive-descent, precedence-climbing
// parser the core's semantic analysis assumes as an external collaborator
// (spec.md §1, §6.2). It is written in the teacher's recursive-descent
// style (current-token/peek-token pair, a switch over the token type for
// prefix forms, precedence and operator tables keyed by token type for
// infix forms) scaled to Cairo-M's grammar (spec.md §6.1).
package parser

import (
	"fmt"

	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/lexer"
	"github.com/cairo-m/compiler/internal/source"
)

// Parser consumes a token stream and produces an *ast.Program plus any
// syntax diagnostics. Parsing never aborts on error: it resynchronizes at
// the next statement/item boundary so the semantic index can still run over
// the best-effort AST (spec.md §7).
type Parser struct {
	file   string
	toks   []lexer.Token
	pos    int
	errors *diagnostic.Bag
}

// New creates a Parser over the given file's already-tokenized source.
func New(file string, toks []lexer.Token) *Parser {
	return &Parser{file: file, toks: toks}
}

// Parse tokenizes and parses src as a complete program, returning the
// best-effort AST and any syntax diagnostics collected along the way.
func Parse(file, src string) (*ast.Program, []diagnostic.Diagnostic) {
	p := New(file, lexer.All(file, src))
	p.errors = &diagnostic.Bag{}
	prog := p.parseProgram()
	return prog, p.errors.Items()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(t lexer.TokenType) bool { return p.cur().Type == t }

func (p *Parser) expect(t lexer.TokenType) lexer.Token {
	if p.at(t) {
		return p.advance()
	}
	p.errorf(p.cur().Span, "expected %s, found %q", t, p.cur().Literal)
	return p.cur()
}

func (p *Parser) errorf(span source.Span, format string, args ...any) {
	p.errors.Add(diagnostic.New(diagnostic.CodeUnknownType, diagnostic.Error,
		fmt.Sprintf(format, args...),
		diagnostic.Label{Span: span}))
}

// synchronize skips tokens until a likely statement/item boundary, so a
// single syntax error does not cascade into a wall of follow-on errors.
func (p *Parser) synchronize() {
	for !p.at(lexer.EOF) {
		if p.cur().Type == lexer.SEMI {
			p.advance()
			return
		}
		switch p.cur().Type {
		case lexer.FN, lexer.STRUCT, lexer.CONST, lexer.USE, lexer.RBRACE:
			return
		}
		p.advance()
	}
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.at(lexer.EOF) {
		before := p.pos
		item := p.parseItem()
		if item != nil {
			prog.Items = append(prog.Items, item)
		}
		if p.pos == before {
			p.advance()
		}
	}
	return prog
}

func (p *Parser) parseItem() ast.Item {
	switch p.cur().Type {
	case lexer.FN:
		return p.parseFunctionDecl()
	case lexer.STRUCT:
		return p.parseStructDecl()
	case lexer.CONST:
		return p.parseConstDecl()
	case lexer.USE:
		return p.parseUseDecl()
	default:
		p.errorf(p.cur().Span, "expected item, found %q", p.cur().Literal)
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseFunctionDecl() *ast.FunctionDecl {
	start := p.cur().Span
	p.expect(lexer.FN)
	name := p.expect(lexer.IDENT).Literal
	p.expect(lexer.LPAREN)
	var params []ast.Param
	for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
		pstart := p.cur().Span
		pname := p.expect(lexer.IDENT).Literal
		p.expect(lexer.COLON)
		ptype := p.parseTypeExpr()
		params = append(params, ast.Param{Name: pname, Type: ptype, SpanInfo: pstart})
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	p.expect(lexer.RPAREN)
	var returns []ast.TypeExpr
	if p.at(lexer.ARROW) {
		p.advance()
		if p.at(lexer.LPAREN) {
			returns = p.parseTupleTypeList()
		} else {
			returns = []ast.TypeExpr{p.parseTypeExpr()}
		}
	}
	body := p.parseBlockStmt()
	return &ast.FunctionDecl{Name: name, Params: params, ReturnTypes: returns, Body: body,
		SpanInfo: spanFrom(start, body.SpanInfo)}
}

// parseTupleTypeList handles a parenthesized return-type list: either a
// genuine tuple type `(T1, T2)` used positionally as multi-return, or `()`
// for unit.
func (p *Parser) parseTupleTypeList() []ast.TypeExpr {
	p.expect(lexer.LPAREN)
	var elems []ast.TypeExpr
	for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
		elems = append(elems, p.parseTypeExpr())
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	p.expect(lexer.RPAREN)
	return elems
}

func (p *Parser) parseStructDecl() *ast.StructDecl {
	start := p.cur().Span
	p.expect(lexer.STRUCT)
	name := p.expect(lexer.IDENT).Literal
	p.expect(lexer.LBRACE)
	var fields []ast.FieldDecl
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		fstart := p.cur().Span
		fname := p.expect(lexer.IDENT).Literal
		p.expect(lexer.COLON)
		ftype := p.parseTypeExpr()
		fields = append(fields, ast.FieldDecl{Name: fname, Type: ftype, SpanInfo: fstart})
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	end := p.expect(lexer.RBRACE)
	return &ast.StructDecl{Name: name, Fields: fields, SpanInfo: spanFrom(start, end.Span)}
}

func (p *Parser) parseConstDecl() *ast.ConstDecl {
	start := p.cur().Span
	p.expect(lexer.CONST)
	name := p.expect(lexer.IDENT).Literal
	var typ ast.TypeExpr
	if p.at(lexer.COLON) {
		p.advance()
		typ = p.parseTypeExpr()
	}
	p.expect(lexer.ASSIGN)
	val := p.parseExpr(precLowest)
	end := p.expect(lexer.SEMI)
	return &ast.ConstDecl{Name: name, Type: typ, Value: val, SpanInfo: spanFrom(start, end.Span)}
}

func (p *Parser) parseUseDecl() *ast.UseDecl {
	start := p.cur().Span
	p.expect(lexer.USE)
	var path []string
	path = append(path, p.expect(lexer.IDENT).Literal)
	for p.at(lexer.COLONCOLON) {
		p.advance()
		path = append(path, p.expect(lexer.IDENT).Literal)
	}
	end := p.expect(lexer.SEMI)
	return &ast.UseDecl{Path: path, SpanInfo: spanFrom(start, end.Span)}
}

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	start := p.cur().Span
	var base ast.TypeExpr
	switch {
	case p.at(lexer.LPAREN):
		p.advance()
		var elems []ast.TypeExpr
		for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
			elems = append(elems, p.parseTypeExpr())
			if p.at(lexer.COMMA) {
				p.advance()
			}
		}
		end := p.expect(lexer.RPAREN)
		base = &ast.TupleType{Elems: elems, SpanInfo: spanFrom(start, end.Span)}
	case p.at(lexer.LBRACKET):
		p.advance()
		elem := p.parseTypeExpr()
		p.expect(lexer.SEMI)
		size := p.expect(lexer.INT)
		end := p.expect(lexer.RBRACKET)
		base = &ast.ArrayType{Elem: elem, Size: atoi(size.Literal), SpanInfo: spanFrom(start, end.Span)}
	default:
		name := p.expect(lexer.IDENT)
		base = &ast.NamedType{Name: name.Literal, SpanInfo: name.Span}
	}
	for p.at(lexer.STAR) {
		end := p.advance()
		base = &ast.PointerType{Elem: base, SpanInfo: spanFrom(start, end.Span)}
	}
	return base
}

func (p *Parser) parseBlockStmt() *ast.BlockStmt {
	start := p.expect(lexer.LBRACE).Span
	var stmts []ast.Stmt
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		before := p.pos
		s := p.parseStmt()
		if s != nil {
			stmts = append(stmts, s)
		}
		if p.pos == before {
			p.advance()
		}
	}
	end := p.expect(lexer.RBRACE)
	return &ast.BlockStmt{Stmts: stmts, SpanInfo: spanFrom(start, end.Span)}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur().Type {
	case lexer.LET, lexer.LOCAL:
		return p.parseLetStmt()
	case lexer.CONST:
		return p.parseConstDecl()
	case lexer.IF:
		return p.parseIfStmt()
	case lexer.WHILE:
		return p.parseWhileStmt()
	case lexer.LOOP:
		return p.parseLoopStmt()
	case lexer.FOR:
		return p.parseForStmt()
	case lexer.BREAK:
		s := p.advance().Span
		p.expect(lexer.SEMI)
		return &ast.BreakStmt{SpanInfo: s}
	case lexer.CONTINUE:
		s := p.advance().Span
		p.expect(lexer.SEMI)
		return &ast.ContinueStmt{SpanInfo: s}
	case lexer.RETURN:
		return p.parseReturnStmt()
	case lexer.LBRACE:
		return p.parseBlockStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parsePattern() ast.Pattern {
	if p.at(lexer.LPAREN) {
		start := p.advance().Span
		var elems []ast.Pattern
		for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
			elems = append(elems, p.parsePattern())
			if p.at(lexer.COMMA) {
				p.advance()
			}
		}
		end := p.expect(lexer.RPAREN)
		return &ast.TuplePattern{Elems: elems, SpanInfo: spanFrom(start, end.Span)}
	}
	name := p.expect(lexer.IDENT)
	return &ast.IdentPattern{Name: name.Literal, SpanInfo: name.Span}
}

func (p *Parser) parseLetStmt() *ast.LetStmt {
	start := p.cur().Span
	kind := ast.BindLet
	if p.cur().Type == lexer.LOCAL {
		kind = ast.BindLocal
	}
	p.advance()
	pat := p.parsePattern()
	var typ ast.TypeExpr
	if p.at(lexer.COLON) {
		p.advance()
		typ = p.parseTypeExpr()
	}
	var val ast.Expr
	if p.at(lexer.ASSIGN) {
		p.advance()
		val = p.parseExpr(precLowest)
	}
	end := p.expect(lexer.SEMI)
	return &ast.LetStmt{Pattern: pat, Kind: kind, Type: typ, Value: val, SpanInfo: spanFrom(start, end.Span)}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	start := p.cur().Span
	p.expect(lexer.IF)
	p.expect(lexer.LPAREN)
	cond := p.parseExpr(precLowest)
	p.expect(lexer.RPAREN)
	then := p.parseBlockStmt()
	var els ast.Stmt
	end := then.SpanInfo
	if p.at(lexer.ELSE) {
		p.advance()
		if p.at(lexer.IF) {
			els = p.parseIfStmt()
		} else {
			els = p.parseBlockStmt()
		}
		end = els.Span()
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, SpanInfo: spanFrom(start, end)}
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	start := p.cur().Span
	p.expect(lexer.WHILE)
	p.expect(lexer.LPAREN)
	cond := p.parseExpr(precLowest)
	p.expect(lexer.RPAREN)
	body := p.parseBlockStmt()
	return &ast.WhileStmt{Cond: cond, Body: body, SpanInfo: spanFrom(start, body.SpanInfo)}
}

func (p *Parser) parseLoopStmt() *ast.LoopStmt {
	start := p.cur().Span
	p.expect(lexer.LOOP)
	body := p.parseBlockStmt()
	return &ast.LoopStmt{Body: body, SpanInfo: spanFrom(start, body.SpanInfo)}
}

func (p *Parser) parseForStmt() *ast.ForStmt {
	start := p.cur().Span
	p.expect(lexer.FOR)
	p.expect(lexer.LPAREN)
	var init ast.Stmt
	if !p.at(lexer.SEMI) {
		init = p.parseForClauseStmt()
	} else {
		p.advance()
	}
	var cond ast.Expr
	if !p.at(lexer.SEMI) {
		cond = p.parseExpr(precLowest)
	}
	p.expect(lexer.SEMI)
	var post ast.Stmt
	if !p.at(lexer.RPAREN) {
		post = p.parseForClauseStmtNoSemi()
	}
	p.expect(lexer.RPAREN)
	body := p.parseBlockStmt()
	return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body, SpanInfo: spanFrom(start, body.SpanInfo)}
}

// parseForClauseStmt parses an init-clause (let/assign) ending in the `;`
// the for-header itself owns.
func (p *Parser) parseForClauseStmt() ast.Stmt {
	if p.cur().Type == lexer.LET || p.cur().Type == lexer.LOCAL {
		return p.parseLetStmt()
	}
	return p.parseExprOrAssignStmt()
}

func (p *Parser) parseForClauseStmtNoSemi() ast.Stmt {
	start := p.cur().Span
	target := p.parseExpr(precLowest)
	if p.at(lexer.ASSIGN) {
		p.advance()
		val := p.parseExpr(precLowest)
		return &ast.AssignStmt{Target: target, Value: val, SpanInfo: spanFrom(start, val.Span())}
	}
	return &ast.ExprStmt{Value: target, SpanInfo: target.Span()}
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	start := p.cur().Span
	p.expect(lexer.RETURN)
	var vals []ast.Expr
	if !p.at(lexer.SEMI) {
		vals = append(vals, p.parseExpr(precLowest))
		for p.at(lexer.COMMA) {
			p.advance()
			vals = append(vals, p.parseExpr(precLowest))
		}
	}
	end := p.expect(lexer.SEMI)
	return &ast.ReturnStmt{Values: vals, SpanInfo: spanFrom(start, end.Span)}
}

func (p *Parser) parseExprOrAssignStmt() ast.Stmt {
	start := p.cur().Span
	e := p.parseExpr(precLowest)
	if p.at(lexer.ASSIGN) {
		p.advance()
		val := p.parseExpr(precLowest)
		end := p.expect(lexer.SEMI)
		return &ast.AssignStmt{Target: e, Value: val, SpanInfo: spanFrom(start, end.Span)}
	}
	end := p.expect(lexer.SEMI)
	return &ast.ExprStmt{Value: e, SpanInfo: spanFrom(start, end.Span)}
}

func spanFrom(a, b source.Span) source.Span {
	return source.Span{File: a.File, Start: a.Start, End: b.End}
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
