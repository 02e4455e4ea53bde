package generics

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/types"
)

// cloneBody deep-copies a function body so each monomorphized instance
// gets its own AST nodes: statements and expressions are mutated with
// resolved-type annotations in later passes, so instances cannot share
// them. Every LetStmt, CastExpr, and ForeachStmt type annotation found
// along the way is rewritten through subst so a cloned `let T x = ...`
// names the concrete argument instead of the template's placeholder.
func (m *Monomorphizer) cloneBody(b *ast.BlockExpr, subst map[string]types.Type) *ast.BlockExpr {
	if b == nil {
		return nil
	}
	stmts := make([]ast.Stmt, len(b.Stmts))
	for i, s := range b.Stmts {
		stmts[i] = m.cloneStmt(s, subst)
	}
	var tail ast.Expr
	if b.Tail != nil {
		tail = m.cloneExpr(b.Tail, subst)
	}
	return ast.NewBlockExpr(stmts, tail, b.Span())
}

func (m *Monomorphizer) cloneStmt(s ast.Stmt, subst map[string]types.Type) ast.Stmt {
	switch n := s.(type) {
	case *ast.LetStmt:
		return ast.NewLetStmt(n.Name, m.substTypeExpr(n.Type, subst), m.cloneExpr(n.Value, subst), n.Span())
	case *ast.ReturnStmt:
		return ast.NewReturnStmt(m.cloneExpr(n.Value, subst), n.Span())
	case *ast.RebindStmt:
		return ast.NewRebindStmt(m.cloneExpr(n.Target, subst), m.cloneExpr(n.Value, subst), n.Span())
	case *ast.ExprStmt:
		return ast.NewExprStmt(m.cloneExpr(n.Expr, subst), n.Span())
	case *ast.WhileStmt:
		return ast.NewWhileStmt(m.cloneExpr(n.Cond, subst), m.cloneBody(n.Body, subst), n.Span())
	case *ast.ForeachStmt:
		var itemType ast.TypeExpr
		if n.ItemType != nil {
			itemType = m.substTypeExpr(n.ItemType, subst)
		}
		return ast.NewForeachStmt(n.VarName, itemType, m.cloneExpr(n.Iterable, subst), m.cloneBody(n.Body, subst), n.Span())
	case *ast.BreakStmt:
		return ast.NewBreakStmt(n.Span())
	case *ast.ContinueStmt:
		return ast.NewContinueStmt(n.Span())
	default:
		return s
	}
}

func (m *Monomorphizer) cloneExpr(e ast.Expr, subst map[string]types.Type) ast.Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Ident:
		return ast.NewIdent(n.Name, n.Span())
	case *ast.IntLiteral:
		return ast.NewIntLiteral(n.Value, n.Raw, n.Span())
	case *ast.FloatLiteral:
		return ast.NewFloatLiteral(n.Value, n.Raw, n.Span())
	case *ast.StringLiteral:
		return ast.NewStringLiteral(n.Value, n.Span())
	case *ast.BoolLiteral:
		return ast.NewBoolLiteral(n.Value, n.Span())
	case *ast.NilLiteral:
		return ast.NewNilLiteral(n.Span())
	case *ast.BlankLiteral:
		return ast.NewBlankLiteral(n.Span())
	case *ast.ArrayLiteral:
		elems := make([]ast.Expr, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = m.cloneExpr(el, subst)
		}
		return ast.NewArrayLiteral(elems, n.Span())
	case *ast.PrefixExpr:
		return ast.NewPrefixExpr(n.Op, m.cloneExpr(n.Right, subst), n.Span())
	case *ast.InfixExpr:
		return ast.NewInfixExpr(n.Op, m.cloneExpr(n.Left, subst), m.cloneExpr(n.Right, subst), n.Span())
	case *ast.RefExpr:
		return ast.NewRefExpr(n.Mode, m.cloneExpr(n.Target, subst), n.Span())
	case *ast.CallExpr:
		args := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = m.cloneExpr(a, subst)
		}
		var named []ast.NamedArg
		if len(n.NamedArgs) > 0 {
			named = make([]ast.NamedArg, len(n.NamedArgs))
			for i, a := range n.NamedArgs {
				named[i] = ast.NamedArg{Name: a.Name, Value: m.cloneExpr(a.Value, subst)}
			}
		}
		var typeArgs []ast.TypeExpr
		if len(n.TypeArgs) > 0 {
			typeArgs = make([]ast.TypeExpr, len(n.TypeArgs))
			for i, t := range n.TypeArgs {
				typeArgs[i] = m.substTypeExpr(t, subst)
			}
		}
		call := ast.NewCallExpr(m.cloneExpr(n.Callee, subst), typeArgs, args, named, n.Span())
		return call
	case *ast.FieldExpr:
		return ast.NewFieldExpr(m.cloneExpr(n.Target, subst), n.Field, n.Span())
	case *ast.IndexExpr:
		return ast.NewIndexExpr(m.cloneExpr(n.Target, subst), m.cloneExpr(n.Index, subst), n.Span())
	case *ast.CastExpr:
		return ast.NewCastExpr(m.cloneExpr(n.Value, subst), m.substTypeExpr(n.Type, subst), n.Span())
	case *ast.TryExpr:
		return ast.NewTryExpr(m.cloneExpr(n.Value, subst), n.Span())
	case *ast.IfExpr:
		var els ast.Expr
		if n.Else != nil {
			els = m.cloneExpr(n.Else, subst)
		}
		return ast.NewIfExpr(m.cloneExpr(n.Cond, subst), m.cloneBody(n.Then, subst), els, n.Span())
	case *ast.MatchExpr:
		arms := make([]*ast.MatchArm, len(n.Arms))
		for i, a := range n.Arms {
			arms[i] = &ast.MatchArm{Pattern: m.clonePattern(a.Pattern), Body: m.cloneBody(a.Body, subst)}
		}
		return ast.NewMatchExpr(m.cloneExpr(n.Scrutinee, subst), arms, n.Span())
	case *ast.BlockExpr:
		return m.cloneBody(n, subst)
	case *ast.PrintlnExpr:
		return ast.NewPrintlnExpr(m.cloneExpr(n.Value, subst), n.Span())
	default:
		return e
	}
}

func (m *Monomorphizer) clonePattern(p ast.Pattern) ast.Pattern {
	switch n := p.(type) {
	case *ast.WildcardPattern:
		return ast.NewWildcardPattern(n.Span())
	case *ast.BindPattern:
		return ast.NewBindPattern(n.Name, n.Span())
	case *ast.EnumPattern:
		subs := make([]ast.Pattern, len(n.SubPatterns))
		for i, s := range n.SubPatterns {
			subs[i] = m.clonePattern(s)
		}
		return ast.NewEnumPattern(n.EnumName, n.Variant, subs, n.Span())
	case *ast.OwnPattern:
		return ast.NewOwnPattern(m.clonePattern(n.Inner), n.Span())
	default:
		return p
	}
}
