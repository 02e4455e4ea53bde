package parser

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/lexer"
)

// isPatternStart reports whether curTok can begin a match-arm pattern
// : a wildcard `_`, a bare bind name, an `Enum.Variant(...)`
// pattern, or an `Own(...)` unwrap — all of which start with an identifier.
func (p *Parser) isPatternStart() bool {
	return p.curTok.Type == lexer.IDENT
}

// parsePattern parses one match-arm pattern.
func (p *Parser) parsePattern() ast.Pattern {
	start := p.curTok.Span
	name := p.curTok.Value

	if name == "_" {
		p.nextToken()
		return ast.NewWildcardPattern(start)
	}

	if name == "Own" && p.peekTok.Type == lexer.LPAREN {
		p.nextToken() // consume 'Own'
		p.nextToken() // consume '('
		inner := p.parsePattern()
		p.expect(lexer.RPAREN)
		return ast.NewOwnPattern(inner, mergeSpan(start, p.curTok.Span))
	}

	p.nextToken() // consume the leading name
	if p.curTok.Type == lexer.DOT {
		p.nextToken() // consume '.'
		variant := p.curTok.Value
		p.expect(lexer.IDENT)

		var subs []ast.Pattern
		if p.curTok.Type == lexer.LPAREN {
			p.nextToken()
			result, _ := parseDelimited(p, delimitedConfig{Closing: lexer.RPAREN, AllowEmpty: true}, func(idx int) (ast.Pattern, bool) {
				sub := p.parsePattern()
				return sub, sub != nil
			})
			subs = result.Items
		}
		return ast.NewEnumPattern(name, variant, subs, mergeSpan(start, p.curTok.Span))
	}

	return ast.NewBindPattern(name, mergeSpan(start, p.curTok.Span))
}
