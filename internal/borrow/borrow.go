// Package borrow implements Pass 3: per-function borrow checking over
// peek/poke references and move semantics for dynamic arrays and Own<T>.
// Each function body is walked with a per-variable
// {peek_count, poke_count, moved, destroyed} state machine; borrows live
// for the statement they appear in and are cleared between statements.
package borrow

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/types"
)

// varState is the per-variable borrow/move state, scoped to the function
// currently being checked.
type varState struct {
	typ       types.Type
	peekCount int
	pokeCount int
	moved     bool
	destroyed bool
	declSpan  ast.Span
}

// Checker implements Pass 3 over one function body at a time.
type Checker struct {
	Tables   *types.Tables
	Reporter *diag.Reporter

	vars map[string]*varState
}

// NewChecker constructs a Pass 3 borrow checker over tables built by Passes
// 0-2 (it reads StructTable/EnumTable to recognize constructor calls but
// writes nothing back).
func NewChecker(tables *types.Tables, reporter *diag.Reporter) *Checker {
	return &Checker{Tables: tables, Reporter: reporter}
}

// CheckFile borrow-checks every non-generic function and extension/perk-impl
// method in f. Generic templates are checked per-monomorphization, same as
// Pass 2 - the driver calls CheckFunction directly on each clone
// internal/generics produces.
func (c *Checker) CheckFile(f *ast.File) {
	for _, fn := range f.Functions {
		if fn.IsGeneric() {
			continue
		}
		c.CheckFunction(fn, "", nil)
	}
	for _, ext := range f.Extends {
		recv := c.Tables.Resolve(ext.Target)
		for _, m := range ext.Methods {
			c.CheckFunction(m, "self", recv)
		}
	}
}

// CheckFunction borrow-checks one function/method body. Exported so the
// driver's fixed-point loop can also check monomorphized clones produced by
// internal/generics.
func (c *Checker) CheckFunction(fn *ast.FnDecl, selfName string, selfType types.Type) {
	c.vars = map[string]*varState{}
	if selfName != "" {
		c.vars[selfName] = &varState{typ: selfType, declSpan: fn.Span()}
	}
	for _, p := range fn.Params {
		c.vars[p.Name] = &varState{typ: c.Tables.Resolve(p.Type), declSpan: p.Span()}
	}
	if fn.Body == nil {
		return
	}
	c.checkBody(fn.Body)
}

// resetBorrows clears every variable's peek/poke counts: "Borrows' effective
// lifetime is the expression in which they appear - cleared at the end of
// each statement".
func (c *Checker) resetBorrows() {
	for _, v := range c.vars {
		v.peekCount = 0
		v.pokeCount = 0
	}
}

func isMovable(t types.Type) bool {
	switch v := t.(type) {
	case *types.DynamicArrayType:
		return true
	case *types.StructType:
		return v.GenericBase == "Own"
	case *types.EnumType:
		return v.GenericBase == "Own"
	}
	return false
}

func (c *Checker) checkBody(b *ast.BlockExpr) {
	for _, st := range b.Stmts {
		c.resetBorrows()
		c.checkStmt(st)
	}
	if b.Tail != nil {
		c.resetBorrows()
		c.checkExpr(b.Tail)
	}
}

func (c *Checker) checkStmt(st ast.Stmt) {
	switch n := st.(type) {
	case *ast.LetStmt:
		c.checkExpr(n.Value)
		c.maybeMove(n.Value)
		c.vars[n.Name] = &varState{typ: c.Tables.Resolve(n.Type), declSpan: n.Span()}
	case *ast.ReturnStmt:
		c.checkExpr(n.Value)
		c.maybeMove(n.Value)
	case *ast.RebindStmt:
		c.checkRebind(n)
	case *ast.ExprStmt:
		c.checkExpr(n.Expr)
	case *ast.WhileStmt:
		c.checkExpr(n.Cond)
		c.checkBody(n.Body)
	case *ast.ForeachStmt:
		c.checkExpr(n.Iterable)
		prev, had := c.vars[n.VarName]
		elemType, _ := n.ElemType.(types.Type)
		c.vars[n.VarName] = &varState{typ: elemType, declSpan: n.Span()}
		c.checkBody(n.Body)
		if had {
			c.vars[n.VarName] = prev
		} else {
			delete(c.vars, n.VarName)
		}
	case *ast.BreakStmt, *ast.ContinueStmt:
	}
}

// checkRebind rejects rebinding a variable while it is borrowed and
// applies the dynamic-array move-on-rebind rule.
func (c *Checker) checkRebind(n *ast.RebindStmt) {
	c.checkExpr(n.Value)
	ident, ok := n.Target.(*ast.Ident)
	if !ok {
		c.checkExpr(n.Target)
		c.maybeMove(n.Value)
		return
	}
	state, ok := c.vars[ident.Name]
	if ok && (state.peekCount > 0 || state.pokeCount > 0) {
		c.Reporter.Error(diag.StageBorrow, diag.CodeRebindWhileBorrowed,
			"cannot rebind '"+ident.Name+"' while it is borrowed", toDiagSpan(n.Span()))
	}
	c.maybeMove(n.Value)
	if ok {
		state.moved = false
		state.destroyed = false
	}
}

// maybeMove implements move-on-use for dynamic arrays and Own<T>: passing
// a local variable of a movable type by value (not through &peek/&poke)
// transfers ownership and marks the source moved. Struct-constructor
// arguments, call arguments, and rebind sources all go through here, since
// the underlying rule - a movable value has exactly one owner - is the same
// in every position.
func (c *Checker) maybeMove(e ast.Expr) {
	ident, ok := e.(*ast.Ident)
	if !ok {
		return
	}
	state, ok := c.vars[ident.Name]
	if !ok || !isMovable(state.typ) {
		return
	}
	state.moved = true
}

func rootIdent(e ast.Expr) (*ast.Ident, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		return n, true
	case *ast.FieldExpr:
		return rootIdent(n.Target)
	case *ast.IndexExpr:
		return rootIdent(n.Target)
	default:
		return nil, false
	}
}

func (c *Checker) useCheck(ident *ast.Ident) {
	state, ok := c.vars[ident.Name]
	if !ok {
		return
	}
	if state.destroyed {
		c.Reporter.Error(diag.StageBorrow, diag.CodeUseAfterDestroy,
			"use of '"+ident.Name+"' after it was destroyed", toDiagSpan(ident.Span()))
		return
	}
	if state.moved {
		c.Reporter.Error(diag.StageBorrow, diag.CodeUseAfterMove,
			"use of '"+ident.Name+"' after it was moved", toDiagSpan(ident.Span()))
	}
}

func (c *Checker) checkExpr(e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Ident:
		c.useCheck(n)
	case *ast.RefExpr:
		c.checkRef(n)
	case *ast.PrefixExpr:
		c.checkExpr(n.Right)
	case *ast.InfixExpr:
		c.checkExpr(n.Left)
		c.checkExpr(n.Right)
	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			c.checkExpr(el)
		}
	case *ast.FieldExpr:
		if id, ok := n.Target.(*ast.Ident); ok {
			if _, isVar := c.vars[id.Name]; isVar {
				c.useCheck(id)
				return
			}
		}
		c.checkExpr(n.Target)
	case *ast.IndexExpr:
		c.checkExpr(n.Target)
		c.checkExpr(n.Index)
	case *ast.CastExpr:
		c.checkExpr(n.Value)
	case *ast.TryExpr:
		c.checkExpr(n.Value)
	case *ast.IfExpr:
		c.checkExpr(n.Cond)
		c.checkBody(n.Then)
		if n.Else != nil {
			c.checkExpr(n.Else)
		}
	case *ast.MatchExpr:
		c.checkExpr(n.Scrutinee)
		for _, arm := range n.Arms {
			c.checkBody(arm.Body)
		}
	case *ast.BlockExpr:
		c.checkBody(n)
	case *ast.PrintlnExpr:
		c.checkExpr(n.Value)
	case *ast.CallExpr:
		c.checkCall(n)
	}
}

func (c *Checker) checkRef(n *ast.RefExpr) {
	c.checkExpr(n.Target)
	ident, ok := rootIdent(n.Target)
	if !ok {
		return
	}
	state, ok := c.vars[ident.Name]
	if !ok {
		return
	}
	if state.moved {
		c.Reporter.Error(diag.StageBorrow, diag.CodeUseAfterMove,
			"cannot borrow '"+ident.Name+"' after it was moved", toDiagSpan(n.Span()))
		return
	}
	if ref, isRef := state.typ.(*types.ReferenceType); isRef && ref.Mode == types.RefPoke && n.Mode == ast.RefPoke {
		c.Reporter.Warn(diag.StageBorrow, diag.CodeNestedPoke,
			"nested &poke of '"+ident.Name+"', itself a poke reference", toDiagSpan(n.Span()))
	}
	switch n.Mode {
	case ast.RefPeek:
		if state.pokeCount > 0 {
			c.Reporter.Error(diag.StageBorrow, diag.CodeBorrowConflictPeek,
				"cannot borrow '"+ident.Name+"' as peek: already borrowed as poke", toDiagSpan(n.Span()))
			return
		}
		state.peekCount++
	case ast.RefPoke:
		if state.peekCount > 0 || state.pokeCount > 0 {
			c.Reporter.Error(diag.StageBorrow, diag.CodeBorrowConflictPoke,
				"cannot borrow '"+ident.Name+"' as poke: already borrowed", toDiagSpan(n.Span()))
			return
		}
		state.pokeCount++
	}
}

func (c *Checker) checkCall(n *ast.CallExpr) {
	if c.checkDestroyCall(n) {
		return
	}
	c.checkExpr(n.Callee)
	for _, a := range n.Args {
		c.checkExpr(a)
	}
	for _, a := range n.NamedArgs {
		c.checkExpr(a.Value)
	}
	for _, a := range n.Args {
		c.maybeMove(a)
	}
	for _, a := range n.NamedArgs {
		c.maybeMove(a.Value)
	}
}

// checkDestroyCall handles `x.destroy()`: destroying while borrowed is an
// error, and any later use of x is use-after-destroy.
func (c *Checker) checkDestroyCall(n *ast.CallExpr) bool {
	field, ok := n.Callee.(*ast.FieldExpr)
	if !ok || field.Field != "destroy" {
		return false
	}
	ident, ok := field.Target.(*ast.Ident)
	if !ok {
		return false
	}
	state, ok := c.vars[ident.Name]
	if !ok {
		return false
	}
	c.useCheck(ident)
	if state.peekCount > 0 || state.pokeCount > 0 {
		c.Reporter.Error(diag.StageBorrow, diag.CodeDestroyWhileBorrowed,
			"cannot destroy '"+ident.Name+"' while it is borrowed", toDiagSpan(n.Span()))
	}
	state.destroyed = true
	return true
}

func toDiagSpan(s ast.Span) diag.Span {
	return diag.Span{Filename: s.Filename, Line: s.Line, Column: s.Column, Start: s.Start, End: s.End}
}
