// Package sema implements the constant-folding helper Pass 0 relies on:
// integer/float/bool arithmetic in `const` declarations and array-size
// expressions (`let i32[2+3] arr = ...`) must be fully folded before Pass
// 1.5 needs concrete array sizes.
package sema

import (
	"fmt"

	"github.com/sushi-lang/sushic/internal/ast"
)

// Value is the result of folding a constant expression: int64, float64,
// bool, or string.
type Value struct {
	Kind ValueKind
	Int  int64
	Flt  float64
	Bool bool
	Str  string
}

// ValueKind tags which field of Value is populated.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindBool
	KindString
)

// Eval folds a compile-time constant expression. It supports the closed set
// of const-eval-able node shapes: int/float/bool/string literals and unary/
// binary arithmetic and comparison over them. Anything else (identifiers,
// calls, non-constant references) returns an error — callers fall back to
// full type-checking in Pass 2 for those.
func Eval(e ast.Expr) (Value, error) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return Value{Kind: KindInt, Int: n.Value}, nil
	case *ast.FloatLiteral:
		return Value{Kind: KindFloat, Flt: n.Value}, nil
	case *ast.BoolLiteral:
		return Value{Kind: KindBool, Bool: n.Value}, nil
	case *ast.StringLiteral:
		return Value{Kind: KindString, Str: n.Value}, nil
	case *ast.PrefixExpr:
		return evalPrefix(n)
	case *ast.InfixExpr:
		return evalInfix(n)
	default:
		return Value{}, fmt.Errorf("expression is not a compile-time constant")
	}
}

// EvalInt folds e and requires the result to be an integer, used for
// fixed-array-size expressions (`T[n]`) and const-declared array sizes.
func EvalInt(e ast.Expr) (int64, error) {
	v, err := Eval(e)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindInt {
		return 0, fmt.Errorf("expected a constant integer expression")
	}
	return v.Int, nil
}

func evalPrefix(n *ast.PrefixExpr) (Value, error) {
	r, err := Eval(n.Right)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case "-":
		switch r.Kind {
		case KindInt:
			return Value{Kind: KindInt, Int: -r.Int}, nil
		case KindFloat:
			return Value{Kind: KindFloat, Flt: -r.Flt}, nil
		}
	case "!":
		if r.Kind == KindBool {
			return Value{Kind: KindBool, Bool: !r.Bool}, nil
		}
	}
	return Value{}, fmt.Errorf("invalid constant unary operator %q", n.Op)
}

func evalInfix(n *ast.InfixExpr) (Value, error) {
	l, err := Eval(n.Left)
	if err != nil {
		return Value{}, err
	}
	r, err := Eval(n.Right)
	if err != nil {
		return Value{}, err
	}

	if l.Kind == KindInt && r.Kind == KindInt {
		switch n.Op {
		case "+":
			return Value{Kind: KindInt, Int: l.Int + r.Int}, nil
		case "-":
			return Value{Kind: KindInt, Int: l.Int - r.Int}, nil
		case "*":
			return Value{Kind: KindInt, Int: l.Int * r.Int}, nil
		case "/":
			if r.Int == 0 {
				return Value{}, fmt.Errorf("division by zero in constant expression")
			}
			return Value{Kind: KindInt, Int: l.Int / r.Int}, nil
		case "%":
			if r.Int == 0 {
				return Value{}, fmt.Errorf("modulo by zero in constant expression")
			}
			return Value{Kind: KindInt, Int: l.Int % r.Int}, nil
		case "&":
			return Value{Kind: KindInt, Int: l.Int & r.Int}, nil
		case "|":
			return Value{Kind: KindInt, Int: l.Int | r.Int}, nil
		case "^":
			return Value{Kind: KindInt, Int: l.Int ^ r.Int}, nil
		case "==":
			return Value{Kind: KindBool, Bool: l.Int == r.Int}, nil
		case "!=":
			return Value{Kind: KindBool, Bool: l.Int != r.Int}, nil
		case "<":
			return Value{Kind: KindBool, Bool: l.Int < r.Int}, nil
		case ">":
			return Value{Kind: KindBool, Bool: l.Int > r.Int}, nil
		case "<=":
			return Value{Kind: KindBool, Bool: l.Int <= r.Int}, nil
		case ">=":
			return Value{Kind: KindBool, Bool: l.Int >= r.Int}, nil
		}
	}

	if (l.Kind == KindFloat || l.Kind == KindInt) && (r.Kind == KindFloat || r.Kind == KindInt) {
		lf, rf := asFloat(l), asFloat(r)
		switch n.Op {
		case "+":
			return Value{Kind: KindFloat, Flt: lf + rf}, nil
		case "-":
			return Value{Kind: KindFloat, Flt: lf - rf}, nil
		case "*":
			return Value{Kind: KindFloat, Flt: lf * rf}, nil
		case "/":
			if rf == 0 {
				return Value{}, fmt.Errorf("division by zero in constant expression")
			}
			return Value{Kind: KindFloat, Flt: lf / rf}, nil
		}
	}

	if l.Kind == KindBool && r.Kind == KindBool {
		switch n.Op {
		case "&&":
			return Value{Kind: KindBool, Bool: l.Bool && r.Bool}, nil
		case "||":
			return Value{Kind: KindBool, Bool: l.Bool || r.Bool}, nil
		case "==":
			return Value{Kind: KindBool, Bool: l.Bool == r.Bool}, nil
		case "!=":
			return Value{Kind: KindBool, Bool: l.Bool != r.Bool}, nil
		}
	}

	if l.Kind == KindString && r.Kind == KindString && n.Op == "+" {
		return Value{Kind: KindString, Str: l.Str + r.Str}, nil
	}

	return Value{}, fmt.Errorf("invalid constant operator %q for operand kinds", n.Op)
}

func asFloat(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Flt
}
