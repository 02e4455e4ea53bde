package parser

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/lexer"
)

func (p *Parser) isTypeStart() bool {
	switch p.curTok.Type {
	case lexer.IDENT, lexer.AMP, lexer.TILDE:
		return true
	}
	return false
}

// parseType parses a type expression: a bare/generic name, a fixed or
// dynamic array suffix, or a peek/poke reference.
func (p *Parser) parseType() ast.TypeExpr {
	start := p.curTok.Span

	var base ast.TypeExpr
	switch p.curTok.Type {
	case lexer.TILDE:
		base = ast.NewBlankTypeExpr(p.curTok.Span)
		p.nextToken()
	case lexer.AMP:
		p.nextToken()
		mode := ast.RefPeek
		switch p.curTok.Type {
		case lexer.PEEK:
			mode = ast.RefPeek
			p.nextToken()
		case lexer.POKE:
			mode = ast.RefPoke
			p.nextToken()
		default:
			p.reportError("expected 'peek' or 'poke' after '&'", p.curTok.Span)
		}
		inner := p.parseType()
		base = ast.NewReferenceTypeExpr(mode, inner, mergeSpan(start, p.curTok.Span))
	case lexer.IDENT:
		name := p.curTok.Value
		nameSpan := p.curTok.Span
		p.nextToken()
		if p.curTok.Type == lexer.LT {
			base = p.parseGenericTypeTail(name, nameSpan)
		} else {
			base = ast.NewNamedTypeExpr(name, nameSpan)
		}
	default:
		p.reportError("expected a type, got '"+string(p.curTok.Type)+"'", p.curTok.Span)
		return ast.NewNamedTypeExpr("<error>", p.curTok.Span)
	}

	for p.curTok.Type == lexer.LBRACKET {
		lb := p.curTok.Span
		p.nextToken()
		if p.curTok.Type == lexer.RBRACKET {
			p.nextToken()
			base = ast.NewDynArrayTypeExpr(base, mergeSpan(lb, p.curTok.Span))
			continue
		}
		size := p.parseExpr(precedenceLowest)
		p.expect(lexer.RBRACKET)
		base = ast.NewFixedArrayTypeExpr(base, size, mergeSpan(lb, p.curTok.Span))
	}
	return base
}

// parseGenericTypeTail parses the `<Arg1, Arg2>` suffix of `Base<...>` type
// syntax; curTok is positioned at the `<` on entry.
func (p *Parser) parseGenericTypeTail(base string, nameSpan ast.Span) ast.TypeExpr {
	p.nextToken() // consume '<'
	result, ok := parseDelimited(p, delimitedConfig{
		Closing:           lexer.GT,
		MissingElementMsg: "expected a type argument",
	}, func(idx int) (ast.TypeExpr, bool) {
		return p.parseType(), true
	})
	if !ok {
		return ast.NewNamedTypeExpr(base, nameSpan)
	}
	return ast.NewGenericTypeExpr(base, result.Items, mergeSpan(nameSpan, p.curTok.Span))
}
