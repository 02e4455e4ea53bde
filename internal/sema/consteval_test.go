package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushi-lang/sushic/internal/ast"
)

func span() ast.Span { return ast.Span{} }

func TestEvalIntArithmetic(t *testing.T) {
	// 2 + 3 * 4
	expr := ast.NewInfixExpr("+",
		ast.NewIntLiteral(2, "2", span()),
		ast.NewInfixExpr("*", ast.NewIntLiteral(3, "3", span()), ast.NewIntLiteral(4, "4", span()), span()),
		span(),
	)
	v, err := EvalInt(expr)
	require.NoError(t, err)
	require.Equal(t, int64(14), v)
}

func TestEvalIntDivisionByZero(t *testing.T) {
	expr := ast.NewInfixExpr("/", ast.NewIntLiteral(1, "1", span()), ast.NewIntLiteral(0, "0", span()), span())
	_, err := EvalInt(expr)
	require.Error(t, err)
}

func TestEvalPrefixNegation(t *testing.T) {
	expr := ast.NewPrefixExpr("-", ast.NewIntLiteral(5, "5", span()), span())
	v, err := Eval(expr)
	require.NoError(t, err)
	require.Equal(t, int64(-5), v.Int)
}

func TestEvalNotConstant(t *testing.T) {
	_, err := Eval(ast.NewIdent("x", span()))
	require.Error(t, err)
}

func TestEvalFloatArithmetic(t *testing.T) {
	expr := ast.NewInfixExpr("+", ast.NewFloatLiteral(1.5, "1.5", span()), ast.NewIntLiteral(2, "2", span()), span())
	v, err := Eval(expr)
	require.NoError(t, err)
	require.Equal(t, KindFloat, v.Kind)
	require.InDelta(t, 3.5, v.Flt, 1e-9)
}
