package types

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
)

// ScopeChecker implements Pass 1: lexical scope/shadowing, unused-
// variable warnings, undefined-name errors, implicit self.
type ScopeChecker struct {
	Tables   *Tables
	Reporter *diag.Reporter

	scopes []map[string]*varInfo
}

type varInfo struct {
	span ast.Span
	used bool
}

// NewScopeChecker constructs a Pass 1 walker sharing tables built by Pass 0.
func NewScopeChecker(tables *Tables, reporter *diag.Reporter) *ScopeChecker {
	return &ScopeChecker{Tables: tables, Reporter: reporter}
}

func (s *ScopeChecker) push() { s.scopes = append(s.scopes, map[string]*varInfo{}) }

func (s *ScopeChecker) pop() {
	top := s.scopes[len(s.scopes)-1]
	for name, info := range top {
		if !info.used {
			s.Reporter.Warn(diag.StageScope, diag.CodeUnusedVariable,
				"unused variable '"+name+"'", toDiagSpan(info.span))
		}
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *ScopeChecker) declare(name string, span ast.Span) {
	if name == "_" {
		return
	}
	top := s.scopes[len(s.scopes)-1]
	if prev, shadowedInSameScope := top[name]; shadowedInSameScope {
		s.Reporter.Warn(diag.StageScope, diag.CodeShadowedName,
			"'"+name+"' shadows an earlier declaration in this scope", toDiagSpan(span)).
			WithSecondarySpan(toDiagSpan(prev.span), "earlier declaration")
	} else if _, outer := s.lookup(name); outer {
		// Shadow of an enclosing scope's binding: record but don't error.
		if prevSpan, ok := s.lookupSpan(name); ok {
			s.Reporter.Warn(diag.StageScope, diag.CodeShadowedName,
				"'"+name+"' shadows an earlier declaration", toDiagSpan(span)).
				WithSecondarySpan(toDiagSpan(prevSpan), "earlier declaration")
		}
	}
	top[name] = &varInfo{span: span}
}

// declareSilent declares a name without shadow diagnostics and without being
// eligible for the unused-variable warning.
func (s *ScopeChecker) declareSilent(name string, span ast.Span) {
	top := s.scopes[len(s.scopes)-1]
	info := &varInfo{span: span, used: true}
	top[name] = info
}

func (s *ScopeChecker) lookup(name string) (*varInfo, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if info, ok := s.scopes[i][name]; ok {
			return info, true
		}
	}
	return nil, false
}

func (s *ScopeChecker) lookupSpan(name string) (ast.Span, bool) {
	if info, ok := s.lookup(name); ok {
		return info.span, true
	}
	return ast.Span{}, false
}

func (s *ScopeChecker) use(name string, span ast.Span) {
	if s.isShadowingName(name) {
		return
	}
	info, ok := s.lookup(name)
	if !ok {
		s.Reporter.Error(diag.StageScope, diag.CodeUndefinedName,
			"undefined name '"+name+"'", toDiagSpan(span))
		return
	}
	info.used = true
}

// isShadowingName reports whether name resolves to a constant, type name,
// function name, or stdlib stream name: these shadow variable lookup
// without being counted as references to a variable.
func (s *ScopeChecker) isShadowingName(name string) bool {
	if _, ok := s.Tables.ConstantTable[name]; ok {
		return true
	}
	if _, ok := builtinNames[name]; ok {
		return true
	}
	if _, ok := s.Tables.EnumTable[name]; ok {
		return true
	}
	if _, ok := s.Tables.GenericEnumTable[name]; ok {
		return true
	}
	if _, ok := s.Tables.StructTable[name]; ok {
		return true
	}
	if _, ok := s.Tables.GenericStructTable[name]; ok {
		return true
	}
	if _, ok := s.Tables.FunctionTable[name]; ok {
		return true
	}
	if _, ok := s.Tables.GenericFunctionTable[name]; ok {
		return true
	}
	switch name {
	case "stdin", "stdout", "stderr":
		return true
	}
	if s.Tables.StdlibModules[name] {
		return true
	}
	return false
}

// CheckFunc walks one function/extension/perk-impl body. selfName is "self"
// for extension/perk-impl methods, empty otherwise.
func (s *ScopeChecker) CheckFunc(params []*ast.Param, selfName string, body *ast.BlockExpr) {
	s.push()
	if selfName != "" {
		s.declareSilent(selfName, ast.Span{})
	}
	for _, p := range params {
		s.declareSilent(p.Name, p.Span())
	}
	if body != nil {
		s.checkBlock(body)
	}
	s.pop()
}

func (s *ScopeChecker) checkBlock(b *ast.BlockExpr) {
	s.push()
	for _, st := range b.Stmts {
		s.checkStmt(st)
	}
	if b.Tail != nil {
		s.checkExpr(b.Tail)
	}
	s.pop()
}

func (s *ScopeChecker) checkStmt(st ast.Stmt) {
	switch n := st.(type) {
	case *ast.LetStmt:
		s.checkExpr(n.Value)
		s.declare(n.Name, n.Span())
	case *ast.ReturnStmt:
		if n.Value != nil {
			s.checkExpr(n.Value)
		}
	case *ast.RebindStmt:
		s.checkExpr(n.Target)
		s.checkExpr(n.Value)
	case *ast.ExprStmt:
		s.checkExpr(n.Expr)
	case *ast.WhileStmt:
		s.checkExpr(n.Cond)
		s.checkBlock(n.Body)
	case *ast.ForeachStmt:
		s.checkExpr(n.Iterable)
		s.push()
		s.declareSilent(n.VarName, n.Span())
		for _, st2 := range n.Body.Stmts {
			s.checkStmt(st2)
		}
		if n.Body.Tail != nil {
			s.checkExpr(n.Body.Tail)
		}
		s.pop()
	case *ast.BreakStmt, *ast.ContinueStmt:
	}
}

func (s *ScopeChecker) checkExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Ident:
		s.use(n.Name, n.Span())
	case *ast.BlockExpr:
		s.checkBlock(n)
	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			s.checkExpr(el)
		}
	case *ast.PrefixExpr:
		s.checkExpr(n.Right)
	case *ast.InfixExpr:
		s.checkExpr(n.Left)
		s.checkExpr(n.Right)
	case *ast.RefExpr:
		s.checkExpr(n.Target)
	case *ast.CallExpr:
		s.checkExpr(n.Callee)
		for _, a := range n.Args {
			s.checkExpr(a)
		}
		for _, a := range n.NamedArgs {
			s.checkExpr(a.Value)
		}
	case *ast.FieldExpr:
		s.checkExpr(n.Target)
	case *ast.IndexExpr:
		s.checkExpr(n.Target)
		s.checkExpr(n.Index)
	case *ast.CastExpr:
		s.checkExpr(n.Value)
	case *ast.TryExpr:
		s.checkExpr(n.Value)
	case *ast.IfExpr:
		s.checkExpr(n.Cond)
		s.checkBlock(n.Then)
		if n.Else != nil {
			s.checkExpr(n.Else)
		}
	case *ast.MatchExpr:
		s.checkExpr(n.Scrutinee)
		for _, arm := range n.Arms {
			s.push()
			s.declarePattern(arm.Pattern)
			for _, st := range arm.Body.Stmts {
				s.checkStmt(st)
			}
			if arm.Body.Tail != nil {
				s.checkExpr(arm.Body.Tail)
			}
			s.pop()
		}
	case *ast.PrintlnExpr:
		s.checkExpr(n.Value)
	case *ast.IntLiteral, *ast.FloatLiteral, *ast.StringLiteral, *ast.BoolLiteral, *ast.NilLiteral, *ast.BlankLiteral:
	}
}

// declarePattern recursively declares match-arm pattern bindings, scoped
// to the arm; `_` never declares.
func (s *ScopeChecker) declarePattern(p ast.Pattern) {
	switch n := p.(type) {
	case *ast.BindPattern:
		s.declareSilent(n.Name, n.Span())
	case *ast.EnumPattern:
		for _, sub := range n.SubPatterns {
			s.declarePattern(sub)
		}
	case *ast.OwnPattern:
		s.declarePattern(n.Inner)
	case *ast.WildcardPattern:
	}
}
