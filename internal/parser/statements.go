package parser

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/lexer"
)

// parseBlockBody parses `{ stmt; stmt; tailExpr }`. A statement missing its
// terminating `;` just before `}` is tolerated as the block's tail
// expression; anything else missing a separator is recovered by treating
// the parsed expression as a statement and continuing.
func (p *Parser) parseBlockBody() *ast.BlockExpr {
	start := p.curTok.Span
	p.expect(lexer.LBRACE)

	var stmts []ast.Stmt
	var tail ast.Expr

	for p.curTok.Type != lexer.RBRACE && p.curTok.Type != lexer.EOF {
		if isStmtKeywordStart(p.curTok.Type) {
			stmts = append(stmts, p.parseKeywordStmt())
			continue
		}

		e := p.parseExpr(precedenceLowest)
		if e == nil {
			p.recoverStmt()
			continue
		}

		if p.curTok.Type == lexer.WALRUS {
			p.nextToken()
			value := p.parseExpr(precedenceLowest)
			stmt := ast.NewRebindStmt(e, value, mergeSpan(e.Span(), p.curTok.Span))
			if p.curTok.Type == lexer.SEMICOLON {
				p.nextToken()
			}
			stmts = append(stmts, stmt)
			continue
		}

		if p.curTok.Type == lexer.SEMICOLON {
			p.nextToken()
			stmts = append(stmts, ast.NewExprStmt(e, e.Span()))
			continue
		}
		if p.curTok.Type == lexer.RBRACE {
			tail = e
			break
		}
		stmts = append(stmts, ast.NewExprStmt(e, e.Span()))
	}

	p.expect(lexer.RBRACE)
	return ast.NewBlockExpr(stmts, tail, mergeSpan(start, p.curTok.Span))
}

func isStmtKeywordStart(tt lexer.TokenType) bool {
	switch tt {
	case lexer.LET, lexer.RETURN, lexer.WHILE, lexer.FOR, lexer.BREAK, lexer.CONTINUE:
		return true
	}
	return false
}

func (p *Parser) parseKeywordStmt() ast.Stmt {
	switch p.curTok.Type {
	case lexer.LET:
		return p.parseLetStmt()
	case lexer.RETURN:
		return p.parseReturnStmt()
	case lexer.WHILE:
		return p.parseWhileStmt()
	case lexer.FOR:
		return p.parseForeachStmt()
	case lexer.BREAK:
		s := ast.NewBreakStmt(p.curTok.Span)
		p.nextToken()
		if p.curTok.Type == lexer.SEMICOLON {
			p.nextToken()
		}
		return s
	case lexer.CONTINUE:
		s := ast.NewContinueStmt(p.curTok.Span)
		p.nextToken()
		if p.curTok.Type == lexer.SEMICOLON {
			p.nextToken()
		}
		return s
	default:
		p.reportError("unexpected statement start '"+string(p.curTok.Type)+"'", p.curTok.Span)
		p.recoverStmt()
		return ast.NewExprStmt(ast.NewBlankLiteral(p.curTok.Span), p.curTok.Span)
	}
}

func (p *Parser) recoverStmt() {
	for p.curTok.Type != lexer.EOF && p.curTok.Type != lexer.SEMICOLON && p.curTok.Type != lexer.RBRACE {
		p.nextToken()
	}
	if p.curTok.Type == lexer.SEMICOLON {
		p.nextToken()
	}
}

// parseLetStmt parses `let <Type> <name> = <value>;`.
func (p *Parser) parseLetStmt() ast.Stmt {
	start := p.curTok.Span
	p.nextToken() // consume 'let'
	t := p.parseType()
	name := p.curTok.Value
	p.expect(lexer.IDENT)
	p.expect(lexer.ASSIGN)
	value := p.parseExpr(precedenceLowest)
	stmt := ast.NewLetStmt(name, t, value, mergeSpan(start, p.curTok.Span))
	if p.curTok.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return stmt
}

// parseReturnStmt parses `return <Result.Ok(v)|Result.Err(e)>;`.
func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.curTok.Span
	p.nextToken() // consume 'return'
	var value ast.Expr
	if p.curTok.Type != lexer.SEMICOLON && p.curTok.Type != lexer.RBRACE {
		value = p.parseExpr(precedenceLowest)
	}
	stmt := ast.NewReturnStmt(value, mergeSpan(start, p.curTok.Span))
	if p.curTok.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	start := p.curTok.Span
	p.nextToken() // consume 'while'
	cond := p.parseExpr(precedenceLowest)
	body := p.parseBlockBody()
	return ast.NewWhileStmt(cond, body, mergeSpan(start, p.curTok.Span))
}

// parseForeachStmt parses `for <name>[: Type] in <iterable> { ... }`.
func (p *Parser) parseForeachStmt() ast.Stmt {
	start := p.curTok.Span
	p.nextToken() // consume 'for'
	name := p.curTok.Value
	p.expect(lexer.IDENT)

	var itemType ast.TypeExpr
	if p.curTok.Type == lexer.COLON {
		p.nextToken()
		itemType = p.parseType()
	}
	p.expect(lexer.IN)
	iterable := p.parseExpr(precedenceLowest)
	body := p.parseBlockBody()
	return ast.NewForeachStmt(name, itemType, iterable, body, mergeSpan(start, p.curTok.Span))
}
