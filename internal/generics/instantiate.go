package generics

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/types"
)

// Instantiator implements Pass 1.5: a best-effort walk of the AST
// that eagerly drives the Monomorphizer over every generic-type reference
// it can resolve syntactically (struct/enum fields, function signatures, let
// annotations, casts) plus every generic-function call site whose argument
// types it can infer from literals and already-seen `let` bindings. It also
// implicitly instantiates Result<ReturnType,ErrType> for every declared
// function, since every function implicitly returns Result<T,E>. Anything
// it cannot resolve is silently left for Pass 2's on-demand
// MonoTypeFn/MonoFuncFn calls (checker_call.go) to pick up.
type Instantiator struct {
	Tables   *types.Tables
	Reporter *diag.Reporter
	Mono     *Monomorphizer
}

func NewInstantiator(tables *types.Tables, reporter *diag.Reporter, mono *Monomorphizer) *Instantiator {
	return &Instantiator{Tables: tables, Reporter: reporter, Mono: mono}
}

// CollectFile scans one parsed file, instantiating every generic-type
// reference and generic-function call it can resolve.
func (ins *Instantiator) CollectFile(f *ast.File) {
	for _, s := range f.Structs {
		if s.IsGeneric() {
			continue
		}
		for _, field := range s.Fields {
			ins.walkTypeExpr(field.Type)
		}
	}
	for _, e := range f.Enums {
		if e.IsGeneric() {
			continue
		}
		for _, v := range e.Variants {
			for _, a := range v.Assoc {
				ins.walkTypeExpr(a)
			}
		}
	}
	for _, fn := range f.Functions {
		if fn.IsGeneric() {
			continue
		}
		ins.collectFn(fn, nil)
	}
	for _, ext := range f.Extends {
		recv := ins.Tables.Resolve(ext.Target)
		for _, m := range ext.Methods {
			ins.collectFn(m, map[string]types.Type{"self": recv})
		}
	}
}

func (ins *Instantiator) collectFn(fn *ast.FnDecl, seed map[string]types.Type) {
	for _, p := range fn.Params {
		ins.walkTypeExpr(p.Type)
	}
	if fn.ReturnType != nil {
		ins.walkTypeExpr(fn.ReturnType)
	}
	if fn.ErrType != nil {
		ins.walkTypeExpr(fn.ErrType)
	}
	ins.forceResult(fn)

	vars := map[string]types.Type{}
	for k, v := range seed {
		vars[k] = v
	}
	for _, p := range fn.Params {
		vars[p.Name] = ins.Tables.Resolve(p.Type)
	}
	if fn.Body != nil {
		ins.walkBody(fn.Body, vars)
	}
}

// forceResult implicitly instantiates Result<ReturnType,ErrType> for fn, per
// /5.
func (ins *Instantiator) forceResult(fn *ast.FnDecl) {
	var ret types.Type = types.Blank
	if fn.ReturnType != nil {
		ret = ins.Tables.Resolve(fn.ReturnType)
	}
	errType := types.Type(&types.StructType{Name: "StdError"})
	if fn.ErrType != nil {
		errType = ins.Tables.Resolve(fn.ErrType)
	}
	if ins.Mono != nil {
		ins.Mono.MonomorphizeType("Result", []types.Type{ret, errType})
	}
}

// walkTypeExpr eagerly instantiates every GenericTypeExpr reachable from
// texpr.
func (ins *Instantiator) walkTypeExpr(texpr ast.TypeExpr) {
	switch n := texpr.(type) {
	case *ast.GenericTypeExpr:
		for _, a := range n.Args {
			ins.walkTypeExpr(a)
		}
		if n.Base == "Result" {
			return // Result<Ok, Err> resolves to a types.ResultType marker; its enum is instantiated from the Result template when that marker is normalized
		}
		args := make([]types.Type, len(n.Args))
		for i, a := range n.Args {
			args[i] = ins.Tables.Resolve(a)
		}
		if ins.Mono != nil {
			ins.Mono.MonomorphizeType(n.Base, args)
		}
	case *ast.FixedArrayTypeExpr:
		ins.walkTypeExpr(n.Elem)
	case *ast.DynArrayTypeExpr:
		ins.walkTypeExpr(n.Elem)
	case *ast.ReferenceTypeExpr:
		ins.walkTypeExpr(n.Inner)
	}
}

// walkBody performs a simple linear scan of a block, tracking a best-effort
// var->Type map from `let` annotations and params so generic-function call
// sites with inferable arguments can be resolved ahead of Pass 2.
func (ins *Instantiator) walkBody(b *ast.BlockExpr, vars map[string]types.Type) {
	for _, st := range b.Stmts {
		ins.walkStmt(st, vars)
	}
	if b.Tail != nil {
		ins.walkExpr(b.Tail, vars)
	}
}

func (ins *Instantiator) walkStmt(st ast.Stmt, vars map[string]types.Type) {
	switch n := st.(type) {
	case *ast.LetStmt:
		ins.walkTypeExpr(n.Type)
		ins.walkExpr(n.Value, vars)
		vars[n.Name] = ins.Tables.Resolve(n.Type)
	case *ast.ReturnStmt:
		ins.walkExpr(n.Value, vars)
	case *ast.RebindStmt:
		ins.walkExpr(n.Target, vars)
		ins.walkExpr(n.Value, vars)
	case *ast.ExprStmt:
		ins.walkExpr(n.Expr, vars)
	case *ast.WhileStmt:
		ins.walkExpr(n.Cond, vars)
		ins.walkBody(n.Body, childVars(vars))
	case *ast.ForeachStmt:
		if n.ItemType != nil {
			ins.walkTypeExpr(n.ItemType)
		}
		ins.walkExpr(n.Iterable, vars)
		ins.walkBody(n.Body, childVars(vars))
	}
}

func childVars(vars map[string]types.Type) map[string]types.Type {
	cp := make(map[string]types.Type, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return cp
}

// walkExpr does simple, best-effort sub-expression type inference (literals,
// already-typed variables) sufficient to resolve common generic-function
// call sites; anything it can't infer is left at Blank and Pass 2's
// checkGenericCall will resolve it with full unification instead.
func (ins *Instantiator) walkExpr(e ast.Expr, vars map[string]types.Type) types.Type {
	if e == nil {
		return types.Blank
	}
	switch n := e.(type) {
	case *ast.IntLiteral:
		return types.I32
	case *ast.FloatLiteral:
		return types.F64
	case *ast.StringLiteral:
		return types.String
	case *ast.BoolLiteral:
		return types.Bool
	case *ast.Ident:
		if t, ok := vars[n.Name]; ok {
			return t
		}
		return types.Blank
	case *ast.PrefixExpr:
		return ins.walkExpr(n.Right, vars)
	case *ast.InfixExpr:
		ins.walkExpr(n.Left, vars)
		return ins.walkExpr(n.Right, vars)
	case *ast.RefExpr:
		return ins.walkExpr(n.Target, vars)
	case *ast.FieldExpr:
		ins.walkExpr(n.Target, vars)
		return types.Blank
	case *ast.IndexExpr:
		ins.walkExpr(n.Target, vars)
		ins.walkExpr(n.Index, vars)
		return types.Blank
	case *ast.CastExpr:
		ins.walkTypeExpr(n.Type)
		ins.walkExpr(n.Value, vars)
		return ins.Tables.Resolve(n.Type)
	case *ast.TryExpr:
		return ins.walkExpr(n.Value, vars)
	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			ins.walkExpr(el, vars)
		}
		return types.Blank
	case *ast.IfExpr:
		ins.walkExpr(n.Cond, vars)
		ins.walkBody(n.Then, childVars(vars))
		if n.Else != nil {
			ins.walkExpr(n.Else, vars)
		}
		return types.Blank
	case *ast.MatchExpr:
		ins.walkExpr(n.Scrutinee, vars)
		for _, arm := range n.Arms {
			ins.walkBody(arm.Body, childVars(vars))
		}
		return types.Blank
	case *ast.BlockExpr:
		ins.walkBody(n, childVars(vars))
		return types.Blank
	case *ast.PrintlnExpr:
		ins.walkExpr(n.Value, vars)
		return types.Blank
	case *ast.CallExpr:
		return ins.walkCall(n, vars)
	default:
		return types.Blank
	}
}

func (ins *Instantiator) walkCall(n *ast.CallExpr, vars map[string]types.Type) types.Type {
	argTypes := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = ins.walkExpr(a, vars)
	}
	for _, a := range n.NamedArgs {
		ins.walkExpr(a.Value, vars)
	}

	ident, ok := n.Callee.(*ast.Ident)
	if !ok {
		if fe, ok := n.Callee.(*ast.FieldExpr); ok {
			ins.walkExpr(fe.Target, vars)
		}
		return types.Blank
	}
	tmpl, ok := ins.Tables.GenericFunctionTable[ident.Name]
	if !ok {
		return types.Blank
	}
	if len(n.TypeArgs) > 0 {
		args := make([]types.Type, len(n.TypeArgs))
		for i, te := range n.TypeArgs {
			ins.walkTypeExpr(te)
			args[i] = ins.Tables.Resolve(te)
		}
		if ins.Mono != nil {
			ins.Mono.MonomorphizeFunc(ident.Name, args)
		}
		return types.Blank
	}
	subst := map[string]types.Type{}
	for i, p := range tmpl.Decl.Params {
		if i >= len(argTypes) {
			break
		}
		simpleUnify(ins.Tables.Resolve(p.Type), argTypes[i], subst)
	}
	args := make([]types.Type, len(tmpl.Decl.TypeParams))
	complete := true
	for i, tp := range tmpl.Decl.TypeParams {
		bound, ok := subst[tp.Name]
		if !ok {
			complete = false
			break
		}
		args[i] = bound
	}
	if complete && ins.Mono != nil {
		ins.Mono.MonomorphizeFunc(ident.Name, args)
	}
	return types.Blank
}

// simpleUnify mirrors checker_call.go's unify at the coarser granularity
// Pass 1.5 operates at (it cannot import types.unify, an unexported
// package-private helper): a template parameter name or unresolved name
// binds to the concrete argument type on first sight.
func simpleUnify(param, arg types.Type, subst map[string]types.Type) {
	switch p := param.(type) {
	case *types.UnknownType:
		if _, bound := subst[p.Name]; !bound {
			subst[p.Name] = arg
		}
	case *types.TypeParameter:
		if _, bound := subst[p.Name]; !bound {
			subst[p.Name] = arg
		}
	}
}
