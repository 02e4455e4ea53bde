package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sushi-lang/sushic/internal/lexer"
)

func TestTokenizeKeywordsAndOperators(t *testing.T) {
	src := `fn f(peek i32 x, poke string y) i32: let i32 a = x + 1; return Result.Ok(a)??`
	toks, errs := lexer.Tokenize(src, "t.sushi")
	require.Empty(t, errs)

	want := []lexer.TokenType{
		lexer.FN, lexer.IDENT, lexer.LPAREN,
		lexer.PEEK, lexer.IDENT, lexer.IDENT, lexer.COMMA,
		lexer.POKE, lexer.IDENT, lexer.IDENT, lexer.RPAREN,
		lexer.IDENT, lexer.COLON,
		lexer.LET, lexer.IDENT, lexer.IDENT, lexer.ASSIGN, lexer.IDENT, lexer.PLUS, lexer.INT, lexer.SEMICOLON,
		lexer.RETURN, lexer.IDENT, lexer.DOT, lexer.IDENT, lexer.LPAREN, lexer.IDENT, lexer.RPAREN, lexer.TRY,
		lexer.EOF,
	}
	require.Len(t, toks, len(want))
	for i, tt := range want {
		require.Equalf(t, tt, toks[i].Type, "token %d (%q)", i, toks[i].Raw)
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, errs := lexer.Tokenize(`"hello\nworld"`, "t.sushi")
	require.Empty(t, errs)
	require.Equal(t, lexer.STRING, toks[0].Type)
	require.Equal(t, "hello\nworld", toks[0].Value)
}

func TestUnterminatedStringReportsError(t *testing.T) {
	_, errs := lexer.Tokenize(`"hello`, "t.sushi")
	require.Len(t, errs, 1)
	require.Equal(t, lexer.ErrUnterminatedString, errs[0].Kind)
}

func TestRebindAndTildeTokens(t *testing.T) {
	toks, errs := lexer.Tokenize(`b := ~`, "t.sushi")
	require.Empty(t, errs)
	require.Equal(t, lexer.IDENT, toks[0].Type)
	require.Equal(t, lexer.WALRUS, toks[1].Type)
	require.Equal(t, lexer.TILDE, toks[2].Type)
}
