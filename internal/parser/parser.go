// Package parser implements a Pratt (precedence-climbing) recursive-descent
// parser that turns sushi source text into an *ast.File.
package parser

import (
	"strconv"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/lexer"
)

type prefixParseFn func() ast.Expr
type infixParseFn func(left ast.Expr) ast.Expr

// Option configures a Parser at construction time.
type Option func(*options)

type options struct {
	filename string
}

// WithFilename attributes every span produced by the parser to filename.
func WithFilename(filename string) Option {
	return func(o *options) { o.filename = filename }
}

const (
	_ int = iota
	precedenceLowest
	precedenceAssign  // :=
	precedenceOr      // ||
	precedenceAnd     // &&
	precedenceEquals  // == !=
	precedenceCompare // < > <= >=
	precedenceBitwise // & | ^
	precedenceSum     // + -
	precedenceProduct // * / %
	precedenceTry     // ??
	precedenceAs      // as
	precedencePrefix  // -x !x &peek x
	precedencePostfix // call field[index]
)

var precedences = map[lexer.TokenType]int{
	lexer.OR:       precedenceOr,
	lexer.AND:      precedenceAnd,
	lexer.EQ:       precedenceEquals,
	lexer.NOT_EQ:   precedenceEquals,
	lexer.LT:       precedenceCompare,
	lexer.GT:       precedenceCompare,
	lexer.LE:       precedenceCompare,
	lexer.GE:       precedenceCompare,
	lexer.AMP:      precedenceBitwise,
	lexer.PIPE:     precedenceBitwise,
	lexer.CARET:    precedenceBitwise,
	lexer.PLUS:     precedenceSum,
	lexer.MINUS:    precedenceSum,
	lexer.ASTERISK: precedenceProduct,
	lexer.SLASH:    precedenceProduct,
	lexer.PERCENT:  precedenceProduct,
	lexer.TRY:      precedenceTry,
	lexer.AS:       precedenceAs,
	lexer.LPAREN:   precedencePostfix,
	lexer.LBRACKET: precedencePostfix,
	lexer.DOT:      precedencePostfix,
}

// Parser holds the two-token lookahead window (curTok/peekTok) required by
// the Pratt dispatch tables, and reports diagnostics best-effort into the
// shared Reporter rather than stopping at the first error.
type Parser struct {
	lx       *lexer.Lexer
	curTok   lexer.Token
	peekTok  lexer.Token
	filename string

	Reporter *diag.Reporter

	prefixFns map[lexer.TokenType]prefixParseFn
	infixFns  map[lexer.TokenType]infixParseFn
}

// New constructs a Parser over input and seeds curTok/peekTok.
func New(input string, reporter *diag.Reporter, opts ...Option) *Parser {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	p := &Parser{
		lx:        lexer.New(input, o.filename),
		filename:  o.filename,
		Reporter:  reporter,
		prefixFns: make(map[lexer.TokenType]prefixParseFn),
		infixFns:  make(map[lexer.TokenType]infixParseFn),
	}

	p.registerPrefix(lexer.IDENT, p.parseIdent)
	p.registerPrefix(lexer.INT, p.parseIntLiteral)
	p.registerPrefix(lexer.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBoolLiteral)
	p.registerPrefix(lexer.FALSE, p.parseBoolLiteral)
	p.registerPrefix(lexer.NIL, p.parseNilLiteral)
	p.registerPrefix(lexer.TILDE, p.parseBlankLiteral)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpr)
	p.registerPrefix(lexer.BANG, p.parsePrefixExpr)
	p.registerPrefix(lexer.AMP, p.parseRefExpr)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpr)
	p.registerPrefix(lexer.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(lexer.IF, p.parseIfExprPrefix)
	p.registerPrefix(lexer.MATCH, p.parseMatchExprPrefix)
	p.registerPrefix(lexer.LBRACE, p.parseBlockExprPrefix)
	p.registerPrefix(lexer.PRINTLN, p.parsePrintlnExpr)

	p.registerInfix(lexer.PLUS, p.parseInfixExpr)
	p.registerInfix(lexer.MINUS, p.parseInfixExpr)
	p.registerInfix(lexer.ASTERISK, p.parseInfixExpr)
	p.registerInfix(lexer.SLASH, p.parseInfixExpr)
	p.registerInfix(lexer.PERCENT, p.parseInfixExpr)
	p.registerInfix(lexer.AND, p.parseInfixExpr)
	p.registerInfix(lexer.OR, p.parseInfixExpr)
	p.registerInfix(lexer.AMP, p.parseInfixExpr)
	p.registerInfix(lexer.PIPE, p.parseInfixExpr)
	p.registerInfix(lexer.CARET, p.parseInfixExpr)
	p.registerInfix(lexer.EQ, p.parseInfixExpr)
	p.registerInfix(lexer.NOT_EQ, p.parseInfixExpr)
	p.registerInfix(lexer.LT, p.parseInfixExpr)
	p.registerInfix(lexer.LE, p.parseInfixExpr)
	p.registerInfix(lexer.GT, p.parseInfixExpr)
	p.registerInfix(lexer.GE, p.parseInfixExpr)
	p.registerInfix(lexer.LPAREN, p.parseCallExpr)
	p.registerInfix(lexer.LBRACKET, p.parseIndexExpr)
	p.registerInfix(lexer.DOT, p.parseFieldOrMethodExpr)
	p.registerInfix(lexer.TRY, p.parseTryExpr)
	p.registerInfix(lexer.AS, p.parseCastExpr)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(tt lexer.TokenType, fn prefixParseFn) { p.prefixFns[tt] = fn }
func (p *Parser) registerInfix(tt lexer.TokenType, fn infixParseFn)   { p.infixFns[tt] = fn }

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.lx.NextToken()
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekTok.Type]; ok {
		return pr
	}
	return precedenceLowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curTok.Type]; ok {
		return pr
	}
	return precedenceLowest
}

func (p *Parser) expect(tt lexer.TokenType) bool {
	if p.curTok.Type == tt {
		p.nextToken()
		return true
	}
	p.reportError("expected '"+string(tt)+"', got '"+string(p.curTok.Type)+"'", p.curTok.Span)
	return false
}

func (p *Parser) expectPeek(tt lexer.TokenType) bool {
	if p.peekTok.Type == tt {
		p.nextToken()
		return true
	}
	p.reportError("expected '"+string(tt)+"', got '"+string(p.peekTok.Type)+"'", p.peekTok.Span)
	return false
}

func (p *Parser) reportError(msg string, span lexer.Span) {
	if p.Reporter == nil {
		return
	}
	p.Reporter.Error(diag.StageParser, diag.Code("CE0200"), msg, toDiagSpan(span))
}

func (p *Parser) reportWarning(msg string, span lexer.Span) {
	if p.Reporter == nil {
		return
	}
	p.Reporter.Warn(diag.StageParser, diag.Code("CW0200"), msg, toDiagSpan(span))
}

func toDiagSpan(s lexer.Span) diag.Span {
	return diag.Span{Filename: s.Filename, Line: s.Line, Column: s.Column, Start: s.Start, End: s.End}
}

func mergeSpan(a, b ast.Span) ast.Span {
	return ast.Span{Filename: a.Filename, Line: a.Line, Column: a.Column, Start: a.Start, End: b.End}
}

// ParseFile parses one complete translation unit.
func (p *Parser) ParseFile() *ast.File {
	f := ast.NewFile(p.filename)
	startSpan := p.curTok.Span

	if p.curTok.Type == lexer.PACKAGE {
		pkgSpan := p.curTok.Span
		p.nextToken()
		name := p.curTok.Value
		p.expect(lexer.IDENT)
		f.Package = ast.NewPackageDecl(name, pkgSpan)
	}

	for p.curTok.Type != lexer.EOF {
		switch p.curTok.Type {
		case lexer.USE:
			f.Uses = append(f.Uses, p.parseUseDecl())
		case lexer.CONST:
			f.Consts = append(f.Consts, p.parseConstDecl(true))
		case lexer.STRUCT:
			f.Structs = append(f.Structs, p.parseStructDecl(true))
		case lexer.ENUM:
			f.Enums = append(f.Enums, p.parseEnumDecl(true))
		case lexer.PERK:
			f.Perks = append(f.Perks, p.parsePerkDecl())
		case lexer.FN:
			f.Functions = append(f.Functions, p.parseFnDecl(true))
		case lexer.EXTEND:
			f.Extends = append(f.Extends, p.parseExtendDecl())
		default:
			p.reportError("expected a top-level declaration, got '"+string(p.curTok.Type)+"'", p.curTok.Span)
			p.recoverDecl()
			continue
		}
	}

	f.SetSpan(mergeSpan(startSpan, p.curTok.Span))
	return f
}

// recoverDecl performs panic-mode recovery: skip tokens until a token that
// plausibly starts the next top-level declaration, so one malformed
// declaration doesn't cascade into spurious errors for the rest of the file.
func (p *Parser) recoverDecl() {
	for p.curTok.Type != lexer.EOF && !isTopLevelDeclStart(p.curTok.Type) {
		p.nextToken()
	}
}

func isTopLevelDeclStart(tt lexer.TokenType) bool {
	switch tt {
	case lexer.FN, lexer.STRUCT, lexer.ENUM, lexer.TYPE, lexer.CONST, lexer.PERK, lexer.EXTEND, lexer.USE:
		return true
	}
	return false
}

func parseIntRaw(raw string) int64 {
	v, _ := strconv.ParseInt(raw, 10, 64)
	return v
}

func parseFloatRaw(raw string) float64 {
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}
