package parser

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/lexer"
)

// parseUseDecl parses `use "path/to/module" [as alias];`.
func (p *Parser) parseUseDecl() *ast.UseDecl {
	start := p.curTok.Span
	p.nextToken() // consume 'use'
	path := p.curTok.Value
	p.expect(lexer.STRING)
	alias := ""
	if p.curTok.Type == lexer.AS {
		p.nextToken()
		alias = p.curTok.Value
		p.expect(lexer.IDENT)
	}
	if p.curTok.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return ast.NewUseDecl(path, alias, mergeSpan(start, p.curTok.Span))
}

// parseConstDecl parses `const NAME: Type = value;`.
func (p *Parser) parseConstDecl(public bool) *ast.ConstDecl {
	start := p.curTok.Span
	p.nextToken() // consume 'const'
	name := p.curTok.Value
	p.expect(lexer.IDENT)
	p.expect(lexer.COLON)
	t := p.parseType()
	p.expect(lexer.ASSIGN)
	value := p.parseExpr(precedenceLowest)
	if p.curTok.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return ast.NewConstDecl(name, t, value, public, mergeSpan(start, p.curTok.Span))
}

// parseGenericParamList parses the `<T, U: Hashable + Eq>` suffix of a
// generic declaration; curTok is positioned at '<' on entry.
func (p *Parser) parseGenericParamList() []*ast.GenericParam {
	p.nextToken() // consume '<'
	result, _ := parseDelimited(p, delimitedConfig{
		Closing:           lexer.GT,
		MissingElementMsg: "expected a type parameter",
	}, func(idx int) (*ast.GenericParam, bool) {
		start := p.curTok.Span
		name := p.curTok.Value
		if !p.expect(lexer.IDENT) {
			return nil, false
		}
		var constraints []string
		if p.curTok.Type == lexer.COLON {
			p.nextToken()
			for {
				constraints = append(constraints, p.curTok.Value)
				if !p.expect(lexer.IDENT) {
					break
				}
				if p.curTok.Type == lexer.PLUS {
					p.nextToken()
					continue
				}
				break
			}
		}
		return ast.NewGenericParam(name, constraints, mergeSpan(start, p.curTok.Span)), true
	})
	return result.Items
}

// parseParamList parses the `(name: Type, ...)` parameter list shared by
// function declarations and perk method signatures.
func (p *Parser) parseParamList() []*ast.Param {
	p.expect(lexer.LPAREN)
	result, _ := parseDelimited(p, delimitedConfig{Closing: lexer.RPAREN, AllowEmpty: true}, func(idx int) (*ast.Param, bool) {
		start := p.curTok.Span
		name := p.curTok.Value
		if !p.expect(lexer.IDENT) {
			return nil, false
		}
		if !p.expect(lexer.COLON) {
			return nil, false
		}
		t := p.parseType()
		mode := ast.RefNone
		if ref, ok := t.(*ast.ReferenceTypeExpr); ok {
			mode = ref.Mode
		}
		return ast.NewParam(name, t, mode, mergeSpan(start, p.curTok.Span)), true
	})
	return result.Items
}

// parseStructDecl parses `struct Name[<T, ...>] { field: Type, ... }`.
func (p *Parser) parseStructDecl(public bool) *ast.StructDecl {
	start := p.curTok.Span
	p.nextToken() // consume 'struct'
	name := p.curTok.Value
	p.expect(lexer.IDENT)

	var tparams []*ast.GenericParam
	if p.curTok.Type == lexer.LT {
		tparams = p.parseGenericParamList()
	}

	p.expect(lexer.LBRACE)
	result, _ := parseDelimited(p, delimitedConfig{Closing: lexer.RBRACE, AllowEmpty: true}, func(idx int) (*ast.StructField, bool) {
		fstart := p.curTok.Span
		fname := p.curTok.Value
		if !p.expect(lexer.IDENT) {
			return nil, false
		}
		if !p.expect(lexer.COLON) {
			return nil, false
		}
		ft := p.parseType()
		return ast.NewStructField(fname, ft, mergeSpan(fstart, p.curTok.Span)), true
	})

	return ast.NewStructDecl(name, tparams, result.Items, public, mergeSpan(start, p.curTok.Span))
}

// parseEnumDecl parses `enum Name[<T, ...>] { Variant(Type, ...), Unit, ... }`.
func (p *Parser) parseEnumDecl(public bool) *ast.EnumDecl {
	start := p.curTok.Span
	p.nextToken() // consume 'enum'
	name := p.curTok.Value
	p.expect(lexer.IDENT)

	var tparams []*ast.GenericParam
	if p.curTok.Type == lexer.LT {
		tparams = p.parseGenericParamList()
	}

	p.expect(lexer.LBRACE)
	result, _ := parseDelimited(p, delimitedConfig{Closing: lexer.RBRACE, AllowEmpty: true}, func(idx int) (*ast.EnumVariant, bool) {
		vstart := p.curTok.Span
		vname := p.curTok.Value
		if !p.expect(lexer.IDENT) {
			return nil, false
		}
		var assoc []ast.TypeExpr
		if p.curTok.Type == lexer.LPAREN {
			p.nextToken()
			ar, _ := parseDelimited(p, delimitedConfig{Closing: lexer.RPAREN, AllowEmpty: true}, func(idx int) (ast.TypeExpr, bool) {
				return p.parseType(), true
			})
			assoc = ar.Items
		}
		return ast.NewEnumVariant(vname, assoc, mergeSpan(vstart, p.curTok.Span)), true
	})

	return ast.NewEnumDecl(name, tparams, result.Items, public, mergeSpan(start, p.curTok.Span))
}

// parsePerkDecl parses `perk Name { fn method(params) -> Ret;... }`.
func (p *Parser) parsePerkDecl() *ast.PerkDecl {
	start := p.curTok.Span
	p.nextToken() // consume 'perk'
	name := p.curTok.Value
	p.expect(lexer.IDENT)
	p.expect(lexer.LBRACE)

	var methods []*ast.PerkMethodSig
	for p.curTok.Type != lexer.RBRACE && p.curTok.Type != lexer.EOF {
		if p.curTok.Type != lexer.FN {
			p.reportError("expected 'fn' inside perk body, got '"+string(p.curTok.Type)+"'", p.curTok.Span)
			p.recoverStmt()
			continue
		}
		methods = append(methods, p.parsePerkMethodSig())
		if p.curTok.Type == lexer.SEMICOLON {
			p.nextToken()
		}
	}
	p.expect(lexer.RBRACE)
	return ast.NewPerkDecl(name, methods, mergeSpan(start, p.curTok.Span))
}

func (p *Parser) parsePerkMethodSig() *ast.PerkMethodSig {
	start := p.curTok.Span
	p.expect(lexer.FN)
	name := p.curTok.Value
	p.expect(lexer.IDENT)
	params := p.parseParamList()
	var ret ast.TypeExpr
	if p.curTok.Type == lexer.ARROW {
		p.nextToken()
		ret = p.parseType()
	}
	return ast.NewPerkMethodSig(name, params, ret, mergeSpan(start, p.curTok.Span))
}

// parseFnDecl parses `fn name[<T, ...>](params) [-> Ret] [! ErrType] { body }`.
func (p *Parser) parseFnDecl(public bool) *ast.FnDecl {
	start := p.curTok.Span
	p.expect(lexer.FN)
	name := p.curTok.Value
	p.expect(lexer.IDENT)

	var tparams []*ast.GenericParam
	if p.curTok.Type == lexer.LT {
		tparams = p.parseGenericParamList()
	}

	params := p.parseParamList()

	var ret ast.TypeExpr
	if p.curTok.Type == lexer.ARROW {
		p.nextToken()
		ret = p.parseType()
	}

	var errType ast.TypeExpr
	if p.curTok.Type == lexer.BANG {
		p.nextToken()
		errType = p.parseType()
	}

	body := p.parseBlockBody()
	return ast.NewFnDecl(name, tparams, params, ret, errType, body, public, mergeSpan(start, p.curTok.Span))
}

// parseExtendDecl parses `extend [<T, ...>] Target [with PerkName] { fn... }`.
func (p *Parser) parseExtendDecl() *ast.ExtendDecl {
	start := p.curTok.Span
	p.nextToken() // consume 'extend'

	var tparams []*ast.GenericParam
	if p.curTok.Type == lexer.LT {
		tparams = p.parseGenericParamList()
	}

	target := p.parseType()

	perkName := ""
	if p.curTok.Type == lexer.WITH {
		p.nextToken()
		perkName = p.curTok.Value
		p.expect(lexer.IDENT)
	}

	p.expect(lexer.LBRACE)
	var methods []*ast.FnDecl
	for p.curTok.Type != lexer.RBRACE && p.curTok.Type != lexer.EOF {
		if p.curTok.Type != lexer.FN {
			p.reportError("expected 'fn' inside extend block, got '"+string(p.curTok.Type)+"'", p.curTok.Span)
			p.recoverStmt()
			continue
		}
		methods = append(methods, p.parseFnDecl(true))
	}
	p.expect(lexer.RBRACE)

	return ast.NewExtendDecl(target, tparams, perkName, methods, mergeSpan(start, p.curTok.Span))
}
