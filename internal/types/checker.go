package types

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
)

// Checker implements Pass 2: type-checks every expression and
// statement, annotates selected AST nodes with resolved types, validates
// `??` propagation, returns, casts, perk implementations, and detects
// unhandled Results.
type Checker struct {
	Tables   *Tables
	Reporter *diag.Reporter

	vars     map[string]Type // per-function variable-type table, reset each function
	retType  Type            // current function's declared return type (T in Result<T,E>)
	errType  Type            // current function's declared error type (E)
	inMain   bool
	selfType Type // non-nil inside extension/perk-impl method bodies
}

// NewChecker constructs a Pass 2 type validator over tables built by Passes
// 0/1.5/1.6/1.7.
func NewChecker(tables *Tables, reporter *diag.Reporter) *Checker {
	return &Checker{Tables: tables, Reporter: reporter}
}

// CheckFile type-checks every function, extension method, and perk
// implementation in f.
func (c *Checker) CheckFile(f *ast.File) {
	for _, fn := range f.Functions {
		if fn.IsGeneric() {
			continue // generic templates are checked per-monomorphization by internal/generics
		}
		c.checkFnDecl(fn, "", nil)
	}
	for _, ext := range f.Extends {
		c.checkExtend(ext)
	}
}

// CheckFunction type-checks a single top-level function. Exported so the
// driver can validate monomorphized clones produced after CheckFile ran
// (checking a clone may itself trigger further monomorphization, so the
// driver loops DrainProduced/CheckFunction to a fixed point).
func (c *Checker) CheckFunction(fn *ast.FnDecl) {
	c.checkFnDecl(fn, "", nil)
}

func (c *Checker) checkExtend(ext *ast.ExtendDecl) {
	recv := c.Tables.Resolve(ext.Target)
	if ext.IsPerkImpl() {
		c.checkPerkImpl(ext, recv)
	}
	for _, m := range ext.Methods {
		c.checkFnDecl(m, "self", recv)
	}
}

func (c *Checker) checkFnDecl(d *ast.FnDecl, selfName string, selfType Type) {
	c.vars = map[string]Type{}
	if selfName != "" {
		c.vars[selfName] = selfType
	}
	c.selfType = selfType
	for _, p := range d.Params {
		c.vars[p.Name] = c.Tables.Resolve(p.Type)
	}
	c.retType = Blank
	if d.ReturnType != nil {
		c.retType = c.Tables.Resolve(d.ReturnType)
	}
	c.errType = Type(&StructType{Name: "StdError"})
	if d.ErrType != nil {
		c.errType = c.Tables.Resolve(d.ErrType)
	}
	c.inMain = d.Name == "main"

	if d.Body == nil {
		return
	}
	returned := c.checkBlockStmt(d.Body)
	if !isBlankType(c.retType) && !returned {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeMissingReturn,
			"function '"+d.Name+"' does not return on all code paths", toDiagSpan(d.Span()))
	}
}

func isBlankType(t Type) bool {
	_, ok := t.(*BlankType)
	return ok
}

// checkBlockStmt type-checks a block used as a statement sequence (not a
// tail-value-producing expression) and reports whether every path returns.
func (c *Checker) checkBlockStmt(b *ast.BlockExpr) bool {
	returned := false
	for _, st := range b.Stmts {
		if c.checkStmt(st) {
			returned = true
		}
	}
	if b.Tail != nil {
		c.inferExpr(b.Tail)
	}
	return returned
}

// checkStmt type-checks one statement and reports whether it unconditionally
// returns on every path.
func (c *Checker) checkStmt(st ast.Stmt) bool {
	switch n := st.(type) {
	case *ast.LetStmt:
		c.checkLet(n)
		return false
	case *ast.ReturnStmt:
		c.checkReturn(n)
		return true
	case *ast.RebindStmt:
		c.checkRebind(n)
		return false
	case *ast.ExprStmt:
		c.checkExprStmtResult(n.Expr)
		return exprAlwaysReturns(n.Expr)
	case *ast.WhileStmt:
		c.checkCondition(n.Cond)
		c.checkBlockStmt(n.Body)
		return false // loops never guarantee a return
	case *ast.ForeachStmt:
		c.checkForeach(n)
		return false
	case *ast.BreakStmt, *ast.ContinueStmt:
		return false
	}
	return false
}

// exprAlwaysReturns is the syntactic half of the total-return check:
// an if returns iff both arms return, a match iff every arm returns; loops
// never guarantee a return.
func exprAlwaysReturns(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.IfExpr:
		if n.Else == nil {
			return false
		}
		return blockAlwaysReturns(n.Then) && exprAlwaysReturns(n.Else)
	case *ast.MatchExpr:
		if len(n.Arms) == 0 {
			return false
		}
		for _, arm := range n.Arms {
			if !blockAlwaysReturns(arm.Body) {
				return false
			}
		}
		return true
	case *ast.BlockExpr:
		return blockAlwaysReturns(n)
	}
	return false
}

func blockAlwaysReturns(b *ast.BlockExpr) bool {
	for _, st := range b.Stmts {
		switch s := st.(type) {
		case *ast.ReturnStmt:
			return true
		case *ast.ExprStmt:
			if exprAlwaysReturns(s.Expr) {
				return true
			}
		}
	}
	if b.Tail != nil {
		return exprAlwaysReturns(b.Tail)
	}
	return false
}

// checkExprStmtResult validates a bare expression statement and warns when
// it discards an unhandled Result.
func (c *Checker) checkExprStmtResult(e ast.Expr) {
	t := c.inferExpr(e)
	if et, ok := t.(*EnumType); ok && et.GenericBase == "Result" {
		c.Reporter.Warn(diag.StageTypeCheck, diag.CodeUnhandledResult,
			"result value is discarded without handling", toDiagSpan(e.Span()))
	}
}

func (c *Checker) checkLet(n *ast.LetStmt) {
	declared := c.Tables.Resolve(n.Type)
	if _, ok := declared.(*BlankType); ok {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeBlankTypeNotAllowed,
			"the blank type '~' cannot be used as a storage type", toDiagSpan(n.Span()))
	}
	c.checkUnknownResolved(declared, n.Span())
	c.propagateExpected(declared, n.Value)
	actual := c.inferExpr(n.Value)
	if !AssignableTo(actual, declared) && !isBlankLiteral(n.Value) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeAssignmentMismatch,
			"cannot assign value of type '"+actual.String()+"' to '"+n.Name+"' of declared type '"+declared.String()+"'",
			toDiagSpan(n.Value.Span()))
	}
	if et, ok := actual.(*EnumType); ok && et.GenericBase == "Result" && !isResultDeclared(declared) {
		c.Reporter.Warn(diag.StageTypeCheck, diag.CodeUnhandledResult,
			"result assigned into non-Result binding '"+n.Name+"' without a handler", toDiagSpan(n.Span()))
	}
	c.vars[n.Name] = declared
}

func isBlankLiteral(e ast.Expr) bool {
	_, ok := e.(*ast.BlankLiteral)
	return ok
}

func isResultDeclared(t Type) bool {
	switch d := t.(type) {
	case *ResultType:
		return true
	case *EnumType:
		return d.GenericBase == "Result"
	}
	return false
}

func (c *Checker) checkUnknownResolved(t Type, span ast.Span) {
	if u, ok := t.(*UnknownType); ok {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownType,
			"unknown type '"+u.Name+"'", toDiagSpan(span))
	}
}

// checkReturn validates `return Result.Ok(v)` / `return Result.Err(e)`.
func (c *Checker) checkReturn(n *ast.ReturnStmt) {
	call, ok := n.Value.(*ast.CallExpr)
	if !ok {
		c.reportReturnNotResult(n)
		return
	}
	field, ok := call.Callee.(*ast.FieldExpr)
	if !ok {
		c.reportReturnNotResult(n)
		return
	}
	base, ok := field.Target.(*ast.Ident)
	if !ok || base.Name != "Result" {
		c.reportReturnNotResult(n)
		return
	}
	if len(call.Args) != 1 {
		c.reportReturnNotResult(n)
		return
	}
	switch field.Field {
	case "Ok":
		c.propagateExpected(c.retType, call.Args[0])
		vt := c.inferExpr(call.Args[0])
		if !AssignableTo(vt, c.retType) && !(isBlankType(c.retType) && isBlankLiteral(call.Args[0])) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeReturnOkMismatch,
				"Ok value of type '"+vt.String()+"' does not match declared return type '"+c.retType.String()+"'",
				toDiagSpan(call.Args[0].Span()))
		}
	case "Err":
		c.propagateExpected(c.errType, call.Args[0])
		et := c.inferExpr(call.Args[0])
		if !AssignableTo(et, c.errType) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeReturnErrMismatch,
				"Err value of type '"+et.String()+"' does not match declared error type '"+c.errType.String()+"'",
				toDiagSpan(call.Args[0].Span()))
		}
	default:
		c.reportReturnNotResult(n)
	}
	call.MangledCallee = "Result." + field.Field
}

func (c *Checker) reportReturnNotResult(n *ast.ReturnStmt) {
	c.Reporter.Error(diag.StageTypeCheck, diag.CodeReturnNotResult,
		"return must use Result.Ok(...) or Result.Err(...)", toDiagSpan(n.Span()))
}

// checkRebind validates `target := value`.
func (c *Checker) checkRebind(n *ast.RebindStmt) {
	switch tgt := n.Target.(type) {
	case *ast.Ident:
		declared, ok := c.vars[tgt.Name]
		if !ok {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeUndefinedName,
				"undefined name '"+tgt.Name+"'", toDiagSpan(tgt.Span()))
			return
		}
		if ref, ok := declared.(*ReferenceType); ok && ref.Mode == RefPeek {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeRebindPeekTarget,
				"cannot rebind through a read-only peek reference", toDiagSpan(n.Span()))
			return
		}
		actual := c.inferExpr(n.Value)
		if !Equal(actual, declared) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeRebindTypeMismatch,
				"cannot rebind '"+tgt.Name+"' of type '"+declared.String()+"' with value of type '"+actual.String()+"'",
				toDiagSpan(n.Value.Span()))
		}
	case *ast.FieldExpr:
		fieldType := c.inferExpr(tgt)
		actual := c.inferExpr(n.Value)
		if !Equal(actual, fieldType) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeRebindTypeMismatch,
				"cannot rebind field of type '"+fieldType.String()+"' with value of type '"+actual.String()+"'",
				toDiagSpan(n.Value.Span()))
		}
	default:
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeRebindTargetInvalid,
			"rebind target must be a name or a field access", toDiagSpan(n.Span()))
	}
}

// checkCondition validates an if/while condition: bool, or Result<T,E>
// (Ok is truthy).
func (c *Checker) checkCondition(cond ast.Expr) {
	t := c.inferExpr(cond)
	if _, ok := t.(*BoolType); ok {
		return
	}
	if et, ok := t.(*EnumType); ok && et.GenericBase == "Result" {
		return
	}
	c.Reporter.Error(diag.StageTypeCheck, diag.CodeConditionNotBool,
		"condition must be 'bool' or a Result<T,E>, found '"+t.String()+"'", toDiagSpan(cond.Span()))
}

// checkForeach validates `for x in iterable { ... }`.
func (c *Checker) checkForeach(n *ast.ForeachStmt) {
	iterT := c.inferExpr(n.Iterable)
	it, ok := iterT.(*IteratorType)
	if !ok {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeForeachNotIterator,
			"foreach requires an iterator, found '"+iterT.String()+"'", toDiagSpan(n.Iterable.Span()))
		return
	}
	if n.ItemType != nil {
		declared := c.Tables.Resolve(n.ItemType)
		if !Equal(declared, it.Elem) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeForeachItemMismatch,
				"declared item type '"+declared.String()+"' does not match iterator element type '"+it.Elem.String()+"'",
				toDiagSpan(n.ItemType.Span()))
		}
	}
	n.ElemType = it.Elem
	prev, hadPrev := c.vars[n.VarName]
	c.vars[n.VarName] = it.Elem
	c.checkBlockStmt(n.Body)
	if hadPrev {
		c.vars[n.VarName] = prev
	} else {
		delete(c.vars, n.VarName)
	}
}
