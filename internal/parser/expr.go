package parser

import (
	"github.com/cairo-m/compiler/internal/ast"
	"github.com/cairo-m/compiler/internal/lexer"
)

// precedence levels, lowest to highest, following spec.md §4.4.3's operator
// groups (||, &&, equality, ordering, additive, multiplicative, cast, unary,
// postfix).
type precedence int

const (
	precLowest precedence = iota
	precOr
	precAnd
	precEquality
	precOrdering
	precAdditive
	precMultiplicative
	precCast
	precUnary
	precPostfix
)

var binPrec = map[lexer.TokenType]precedence{
	lexer.OROR:    precOr,
	lexer.ANDAND:  precAnd,
	lexer.EQ:      precEquality,
	lexer.NEQ:     precEquality,
	lexer.LT:      precOrdering,
	lexer.LE:      precOrdering,
	lexer.GT:      precOrdering,
	lexer.GE:      precOrdering,
	lexer.PLUS:    precAdditive,
	lexer.MINUS:   precAdditive,
	lexer.STAR:    precMultiplicative,
	lexer.SLASH:   precMultiplicative,
	lexer.PERCENT: precMultiplicative,
	lexer.AS:      precCast,
}

var binOps = map[lexer.TokenType]ast.BinaryOp{
	lexer.PLUS: ast.BinAdd, lexer.MINUS: ast.BinSub, lexer.STAR: ast.BinMul,
	lexer.SLASH: ast.BinDiv, lexer.PERCENT: ast.BinMod,
	lexer.EQ: ast.BinEq, lexer.NEQ: ast.BinNeq,
	lexer.LT: ast.BinLt, lexer.LE: ast.BinLe, lexer.GT: ast.BinGt, lexer.GE: ast.BinGe,
	lexer.ANDAND: ast.BinAnd, lexer.OROR: ast.BinOr,
}

func (p *Parser) peekPrec() precedence {
	if pr, ok := binPrec[p.cur().Type]; ok {
		return pr
	}
	return precLowest
}

// parseExpr is the Pratt-parsing entry point: parse a prefix expression,
// then fold in infix/postfix operators whose precedence exceeds minPrec.
func (p *Parser) parseExpr(minPrec precedence) ast.Expr {
	left := p.parsePostfixChain(p.parsePrefix())
	for {
		if p.cur().Type == lexer.AS && precCast > minPrec {
			left = p.parseCast(left)
			continue
		}
		pr, ok := binPrec[p.cur().Type]
		if !ok || pr <= minPrec {
			break
		}
		left = p.parseInfix(left, pr)
	}
	return p.parsePostfixChain(left)
}

func (p *Parser) parsePrefix() ast.Expr {
	switch p.cur().Type {
	case lexer.MINUS:
		start := p.advance().Span
		operand := p.parseExpr(precUnary)
		return &ast.UnaryExpr{Op: ast.UnaryNeg, Operand: operand, SpanInfo: spanFrom(start, operand.Span())}
	case lexer.BANG:
		start := p.advance().Span
		operand := p.parseExpr(precUnary)
		return &ast.UnaryExpr{Op: ast.UnaryNot, Operand: operand, SpanInfo: spanFrom(start, operand.Span())}
	case lexer.AMP:
		start := p.advance().Span
		operand := p.parseExpr(precUnary)
		return &ast.AddressOfExpr{Value: operand, SpanInfo: spanFrom(start, operand.Span())}
	case lexer.INT:
		t := p.advance()
		return &ast.IntLiteral{Value: atou64(t.Literal), Suffix: convertSuffix(t.Suffix), SpanInfo: t.Span}
	case lexer.TRUE:
		t := p.advance()
		return &ast.BoolLiteral{Value: true, SpanInfo: t.Span}
	case lexer.FALSE:
		t := p.advance()
		return &ast.BoolLiteral{Value: false, SpanInfo: t.Span}
	case lexer.IDENT:
		return p.parseIdentOrStructLiteral()
	case lexer.LBRACKET:
		return p.parseFixedArrayLiteral()
	case lexer.LPAREN:
		return p.parseParenOrTuple()
	default:
		tok := p.advance()
		p.errorf(tok.Span, "unexpected token %q in expression", tok.Literal)
		return &ast.UnitLiteral{SpanInfo: tok.Span}
	}
}

func (p *Parser) parseIdentOrStructLiteral() ast.Expr {
	t := p.advance()
	if p.at(lexer.LBRACE) && startsStructLiteralBody(p) {
		return p.parseStructLiteralRest(t)
	}
	return &ast.Identifier{Name: t.Literal, SpanInfo: t.Span}
}

// startsStructLiteralBody disambiguates `Name { ... }` expressions from a
// following block (e.g. an if-condition identifier immediately followed by
// the then-block). A struct literal body is `{` IDENT `:` ... or `{}`.
func startsStructLiteralBody(p *Parser) bool {
	if p.peek().Type == lexer.RBRACE {
		return true
	}
	return p.peek().Type == lexer.IDENT && p.pos+2 < len(p.toks) && p.toks[p.pos+2].Type == lexer.COLON
}

func (p *Parser) parseStructLiteralRest(name lexer.Token) ast.Expr {
	p.expect(lexer.LBRACE)
	var fields []ast.FieldInit
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		fname := p.expect(lexer.IDENT).Literal
		p.expect(lexer.COLON)
		val := p.parseExpr(precLowest)
		fields = append(fields, ast.FieldInit{Name: fname, Value: val})
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	end := p.expect(lexer.RBRACE)
	return &ast.StructLiteral{Name: name.Literal, Fields: fields, SpanInfo: spanFrom(name.Span, end.Span)}
}

func (p *Parser) parseFixedArrayLiteral() ast.Expr {
	start := p.expect(lexer.LBRACKET).Span
	var elems []ast.Expr
	for !p.at(lexer.RBRACKET) && !p.at(lexer.EOF) {
		elems = append(elems, p.parseExpr(precLowest))
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	end := p.expect(lexer.RBRACKET)
	return &ast.FixedArrayLiteral{Elems: elems, SpanInfo: spanFrom(start, end.Span)}
}

func (p *Parser) parseParenOrTuple() ast.Expr {
	start := p.expect(lexer.LPAREN).Span
	if p.at(lexer.RPAREN) {
		end := p.advance().Span
		return &ast.UnitLiteral{SpanInfo: spanFrom(start, end.Span)}
	}
	first := p.parseExpr(precLowest)
	if p.at(lexer.COMMA) {
		elems := []ast.Expr{first}
		for p.at(lexer.COMMA) {
			p.advance()
			if p.at(lexer.RPAREN) {
				break
			}
			elems = append(elems, p.parseExpr(precLowest))
		}
		end := p.expect(lexer.RPAREN)
		return &ast.TupleExpr{Elems: elems, SpanInfo: spanFrom(start, end.Span)}
	}
	p.expect(lexer.RPAREN)
	return first
}

func (p *Parser) parseInfix(left ast.Expr, pr precedence) ast.Expr {
	opTok := p.advance()
	// Left-associative: parse the right operand at the same precedence so
	// repeated same-precedence operators nest left.
	right := p.parseExpr(pr)
	op, ok := binOps[opTok.Type]
	if !ok {
		p.errorf(opTok.Span, "unknown binary operator %q", opTok.Literal)
	}
	return &ast.BinaryExpr{Op: op, Left: left, Right: right, SpanInfo: spanFrom(left.Span(), right.Span())}
}

func (p *Parser) parseCast(left ast.Expr) ast.Expr {
	p.expect(lexer.AS)
	typ := p.parseTypeExpr()
	return &ast.CastExpr{Value: left, Type: typ, SpanInfo: spanFrom(left.Span(), typ.Span())}
}

func (p *Parser) parsePostfixChain(left ast.Expr) ast.Expr {
	for {
		switch p.cur().Type {
		case lexer.DOT:
			p.advance()
			field := p.expect(lexer.IDENT)
			left = &ast.MemberExpr{Receiver: left, Field: field.Literal, SpanInfo: spanFrom(left.Span(), field.Span)}
		case lexer.LBRACKET:
			p.advance()
			idx := p.parseExpr(precLowest)
			end := p.expect(lexer.RBRACKET)
			left = &ast.IndexExpr{Base: left, Index: idx, SpanInfo: spanFrom(left.Span(), end.Span)}
		case lexer.LPAREN:
			p.advance()
			var args []ast.Expr
			for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
				args = append(args, p.parseExpr(precLowest))
				if p.at(lexer.COMMA) {
					p.advance()
				}
			}
			end := p.expect(lexer.RPAREN)
			left = &ast.CallExpr{Callee: left, Args: args, SpanInfo: spanFrom(left.Span(), end.Span)}
		default:
			return left
		}
	}
}

func convertSuffix(s lexer.Suffix) ast.LiteralSuffix {
	switch s {
	case lexer.FeltSuffix:
		return ast.FeltSuffix
	case lexer.U32Suffix:
		return ast.U32Suffix
	default:
		return ast.NoSuffix
	}
}

func atou64(s string) uint64 {
	var n uint64
	for _, c := range s {
		n = n*10 + uint64(c-'0')
	}
	return n
}
