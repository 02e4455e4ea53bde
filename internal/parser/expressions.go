package parser

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/lexer"
)

// parseExpr is the Pratt-parser entry point: parse a prefix expression,
// then repeatedly fold in infix/postfix operators while the next operator
// binds tighter than minPrecedence.
func (p *Parser) parseExpr(minPrecedence int) ast.Expr {
	prefix, ok := p.prefixFns[p.curTok.Type]
	if !ok {
		p.reportError("unexpected token '"+string(p.curTok.Type)+"' in expression", p.curTok.Span)
		return nil
	}
	left := prefix()

	for minPrecedence < p.peekPrecedence() {
		infix, ok := p.infixFns[p.peekTok.Type]
		if !ok {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdent() ast.Expr {
	id := ast.NewIdent(p.curTok.Value, p.curTok.Span)
	return id
}

func (p *Parser) parseIntLiteral() ast.Expr {
	lit := ast.NewIntLiteral(parseIntRaw(p.curTok.Raw), p.curTok.Raw, p.curTok.Span)
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expr {
	lit := ast.NewFloatLiteral(parseFloatRaw(p.curTok.Raw), p.curTok.Raw, p.curTok.Span)
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expr {
	return ast.NewStringLiteral(p.curTok.Value, p.curTok.Span)
}

func (p *Parser) parseBoolLiteral() ast.Expr {
	return ast.NewBoolLiteral(p.curTok.Type == lexer.TRUE, p.curTok.Span)
}

func (p *Parser) parseNilLiteral() ast.Expr {
	return ast.NewNilLiteral(p.curTok.Span)
}

func (p *Parser) parseBlankLiteral() ast.Expr {
	return ast.NewBlankLiteral(p.curTok.Span)
}

func (p *Parser) parsePrefixExpr() ast.Expr {
	op := string(p.curTok.Type)
	start := p.curTok.Span
	p.nextToken()
	right := p.parseExpr(precedencePrefix)
	return ast.NewPrefixExpr(op, right, mergeSpan(start, p.curTok.Span))
}

// parseRefExpr parses `&peek expr` / `&poke expr`.
func (p *Parser) parseRefExpr() ast.Expr {
	start := p.curTok.Span
	p.nextToken() // consume '&'
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
	target := p.parseExpr(precedencePrefix)
	return ast.NewRefExpr(mode, target, mergeSpan(start, p.curTok.Span))
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.nextToken() // consume '('
	e := p.parseExpr(precedenceLowest)
	if !p.expectPeek(lexer.RPAREN) {
		return e
	}
	return e
}

func (p *Parser) parseArrayLiteral() ast.Expr {
	start := p.curTok.Span
	p.nextToken() // consume '['
	result, _ := parseDelimited(p, delimitedConfig{
		Closing:    lexer.RBRACKET,
		AllowEmpty: true,
	}, func(idx int) (ast.Expr, bool) {
		e := p.parseExpr(precedenceLowest)
		return e, e != nil
	})
	return ast.NewArrayLiteral(result.Items, mergeSpan(start, p.curTok.Span))
}

func (p *Parser) parseInfixExpr(left ast.Expr) ast.Expr {
	op := string(p.curTok.Type)
	prec := p.curPrecedence()
	start := left.Span()
	p.nextToken()
	right := p.parseExpr(prec)
	return ast.NewInfixExpr(op, left, right, mergeSpan(start, p.curTok.Span))
}

func (p *Parser) parseCastExpr(left ast.Expr) ast.Expr {
	p.nextToken() // consume 'as', now at the type
	t := p.parseType()
	return ast.NewCastExpr(left, t, mergeSpan(left.Span(), p.curTok.Span))
}

func (p *Parser) parseTryExpr(left ast.Expr) ast.Expr {
	return ast.NewTryExpr(left, mergeSpan(left.Span(), p.curTok.Span))
}

func (p *Parser) parseIndexExpr(left ast.Expr) ast.Expr {
	p.nextToken() // consume '['
	idx := p.parseExpr(precedenceLowest)
	p.expectPeek(lexer.RBRACKET)
	return ast.NewIndexExpr(left, idx, mergeSpan(left.Span(), p.curTok.Span))
}

func (p *Parser) parseFieldOrMethodExpr(left ast.Expr) ast.Expr {
	p.nextToken() // consume '.'
	name := p.curTok.Value
	span := p.curTok.Span
	p.nextToken()
	return ast.NewFieldExpr(left, name, mergeSpan(left.Span(), span))
}

// parseCallExpr parses the `(...)` of a call site, dispatching on whether
// the argument list uses named form (`field: value`, reordered to
// positional order during type validation) or positional form.
func (p *Parser) parseCallExpr(callee ast.Expr) ast.Expr {
	start := callee.Span()
	p.nextToken() // consume '('

	if p.curTok.Type == lexer.RPAREN {
		p.nextToken()
		return ast.NewCallExpr(callee, nil, nil, nil, mergeSpan(start, p.curTok.Span))
	}

	if p.looksLikeNamedArg() {
		result, _ := parseDelimited(p, delimitedConfig{Closing: lexer.RPAREN}, func(idx int) (ast.NamedArg, bool) {
			name := p.curTok.Value
			p.expect(lexer.IDENT)
			p.expect(lexer.COLON)
			v := p.parseExpr(precedenceLowest)
			return ast.NamedArg{Name: name, Value: v}, v != nil
		})
		return ast.NewCallExpr(callee, nil, nil, result.Items, mergeSpan(start, p.curTok.Span))
	}

	result, _ := parseDelimited(p, delimitedConfig{Closing: lexer.RPAREN}, func(idx int) (ast.Expr, bool) {
		e := p.parseExpr(precedenceLowest)
		return e, e != nil
	})
	return ast.NewCallExpr(callee, nil, result.Items, nil, mergeSpan(start, p.curTok.Span))
}

func (p *Parser) looksLikeNamedArg() bool {
	return p.curTok.Type == lexer.IDENT && p.peekTok.Type == lexer.COLON
}

func (p *Parser) parsePrintlnExpr() ast.Expr {
	start := p.curTok.Span
	p.nextToken()
	v := p.parseExpr(precedenceLowest)
	return ast.NewPrintlnExpr(v, mergeSpan(start, p.curTok.Span))
}

// parseIfExprPrefix parses `if cond { block } else elseBranch` where the
// else-branch may itself be another if (else-if chaining) or a block.
func (p *Parser) parseIfExprPrefix() ast.Expr {
	start := p.curTok.Span
	p.nextToken() // consume 'if'
	cond := p.parseExpr(precedenceLowest)
	then := p.parseBlockBody()

	var els ast.Expr
	if p.curTok.Type == lexer.ELSE {
		p.nextToken()
		if p.curTok.Type == lexer.IF {
			els = p.parseIfExprPrefix()
		} else {
			els = p.parseBlockBody()
		}
	}
	return ast.NewIfExpr(cond, then, els, mergeSpan(start, p.curTok.Span))
}

func (p *Parser) parseMatchExprPrefix() ast.Expr {
	start := p.curTok.Span
	p.nextToken() // consume 'match'
	scrutinee := p.parseExpr(precedenceLowest)
	p.expect(lexer.COLON)

	var arms []*ast.MatchArm
	for p.curTok.Type != lexer.RBRACE && p.curTok.Type != lexer.EOF && p.isPatternStart() {
		pat := p.parsePattern()
		p.expect(lexer.FATARROW)
		body := p.parseArmBody()
		arms = append(arms, &ast.MatchArm{Pattern: pat, Body: body})
		if p.curTok.Type == lexer.SEMICOLON {
			p.nextToken()
		}
	}
	return ast.NewMatchExpr(scrutinee, arms, mergeSpan(start, p.curTok.Span))
}

// parseArmBody allows either a bare expression or a full block as an arm
// body, normalizing to a *ast.BlockExpr either way.
func (p *Parser) parseArmBody() *ast.BlockExpr {
	if p.curTok.Type == lexer.LBRACE {
		return p.parseBlockBody()
	}
	start := p.curTok.Span
	e := p.parseExpr(precedenceLowest)
	return ast.NewBlockExpr(nil, e, mergeSpan(start, p.curTok.Span))
}

func (p *Parser) parseBlockExprPrefix() ast.Expr {
	return p.parseBlockBody()
}
