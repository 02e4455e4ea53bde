// Package generics implements Passes 1.5-1.7 of the pipeline:
// instantiation collection, monomorphization, and hash-method registration.
// Monomorphization memoizes before descending and drains a worklist to a
// fixed point, so nested and recursive instantiations terminate.
package generics

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/sema"
	"github.com/sushi-lang/sushic/internal/types"
)

// Monomorphizer implements Pass 1.6: for each (template, type-args)
// tuple it produces exactly one concrete StructType/EnumType/FuncDef,
// memoized by canonical name before descending into substitution so nested
// or recursive generics (Own<Self>, a List<Pair<K,V>> field, ...) terminate.
// It registers itself onto Tables.MonoTypeFn/MonoFuncFn so Pass 1.5's eager
// pre-seeding and Pass 2's on-demand calls (checker_call.go's
// monomorphizeType/checkGenericCall) share one implementation.
type Monomorphizer struct {
	Tables   *types.Tables
	Reporter *diag.Reporter

	// produced holds function clones since the last DrainProduced call, so
	// the driver can scope-check and type-check them to a fixed point:
	// checking a clone's body may itself trigger further on-demand
	// monomorphization.
	produced []*ast.FnDecl
}

// NewMonomorphizer builds a Pass 1.6 monomorphizer and wires it into
// tables as the MonoTypeFn/MonoFuncFn injection points, so the driver never
// has to thread the instance through every pass.
func NewMonomorphizer(tables *types.Tables, reporter *diag.Reporter) *Monomorphizer {
	m := &Monomorphizer{Tables: tables, Reporter: reporter}
	tables.MonoTypeFn = m.MonomorphizeType
	tables.MonoFuncFn = m.MonomorphizeFunc
	return m
}

// DrainProduced returns and clears the function clones produced since the
// last call.
func (m *Monomorphizer) DrainProduced() []*ast.FnDecl {
	out := m.produced
	m.produced = nil
	return out
}

func buildSubst(params []*ast.GenericParam, args []types.Type) map[string]types.Type {
	subst := make(map[string]types.Type, len(params))
	for i, p := range params {
		if i < len(args) {
			subst[p.Name] = args[i]
		}
	}
	return subst
}

// MonomorphizeType resolves one (base, args) generic-type instantiation to a
// concrete StructType/EnumType. base names a struct or enum template
// (including the built-in Result/Maybe templates seeded by
// types.RegisterBuiltins); an unknown base is left as a GenericTypeRef for
// Pass 2's existing undefined-name diagnostics to surface.
func (m *Monomorphizer) MonomorphizeType(base string, args []types.Type) types.Type {
	key := types.CanonicalName(base, args)
	if t, ok := m.Tables.MonoCache[key]; ok {
		return t
	}
	if tmpl, ok := m.Tables.GenericStructTable[base]; ok {
		return m.monoStruct(tmpl, key, args)
	}
	if tmpl, ok := m.Tables.GenericEnumTable[base]; ok {
		return m.monoEnum(tmpl, key, args)
	}
	return &types.GenericTypeRef{BaseName: base, TypeArgs: args}
}

// checkConstraints validates a perk bound (`T: Hashable`) against the
// concrete argument supplied for T.
func (m *Monomorphizer) checkConstraints(params []*ast.GenericParam, args []types.Type, span ast.Span) {
	for i, p := range params {
		if i >= len(args) || len(p.Constraints) == 0 {
			continue
		}
		name := concreteName(args[i])
		for _, perk := range p.Constraints {
			if !m.Tables.Implements(name, perk) {
				m.Reporter.Error(diag.StageGenerics, diag.CodeConstraintViolation,
					"type argument '"+args[i].String()+"' does not satisfy constraint '"+perk+"'", toDiagSpan(span))
			}
		}
	}
}

func concreteName(t types.Type) string {
	switch v := t.(type) {
	case *types.StructType:
		return v.Name
	case *types.EnumType:
		return v.Name
	default:
		return t.String()
	}
}

func (m *Monomorphizer) monoStruct(tmpl *types.GenericStructTemplate, key string, args []types.Type) types.Type {
	name := types.CanonicalName(tmpl.Decl.Name, args)
	st := &types.StructType{Name: name, GenericBase: tmpl.Decl.Name, GenericArgs: args, Public: tmpl.Decl.Public}
	m.Tables.MonoCache[key] = st // memoize before descending: breaks recursive-generic cycles
	m.checkConstraints(tmpl.Decl.TypeParams, args, tmpl.Decl.Span())
	subst := buildSubst(tmpl.Decl.TypeParams, args)
	fields := make([]types.StructField, 0, len(tmpl.Decl.Fields))
	for _, f := range tmpl.Decl.Fields {
		fields = append(fields, types.StructField{Name: f.Name, Type: m.resolveSubst(f.Type, subst)})
	}
	st.Fields = fields
	m.Tables.StructTable[name] = st
	return st
}

func (m *Monomorphizer) monoEnum(tmpl *types.GenericEnumTemplate, key string, args []types.Type) types.Type {
	name := types.CanonicalName(tmpl.Decl.Name, args)
	et := &types.EnumType{Name: name, GenericBase: tmpl.Decl.Name, GenericArgs: args, Public: tmpl.Decl.Public}
	m.Tables.MonoCache[key] = et
	m.checkConstraints(tmpl.Decl.TypeParams, args, tmpl.Decl.Span())
	subst := buildSubst(tmpl.Decl.TypeParams, args)
	variants := make([]types.EnumVariant, 0, len(tmpl.Decl.Variants))
	for _, v := range tmpl.Decl.Variants {
		assoc := make([]types.Type, 0, len(v.Assoc))
		for _, a := range v.Assoc {
			assoc = append(assoc, m.resolveSubst(a, subst))
		}
		variants = append(variants, types.EnumVariant{Name: v.Name, Assoc: assoc})
	}
	et.Variants = variants
	m.Tables.EnumTable[name] = et
	return et
}

// resolveSubst resolves a syntax TypeExpr into a concrete types.Type,
// substituting any name bound by subst and recursively re-entering
// monomorphization for nested GenericTypeExprs: substitution recurses into
// array elements, reference pointees, struct fields, and enum variants'
// associated types.
func (m *Monomorphizer) resolveSubst(texpr ast.TypeExpr, subst map[string]types.Type) types.Type {
	switch n := texpr.(type) {
	case *ast.BlankTypeExpr:
		return types.Blank
	case *ast.ResolvedTypeExpr:
		return n.Resolved.(types.Type)
	case *ast.NamedTypeExpr:
		if t, ok := subst[n.Name]; ok {
			return t
		}
		return m.Tables.Resolve(texpr)
	case *ast.GenericTypeExpr:
		args := make([]types.Type, len(n.Args))
		for i, a := range n.Args {
			args[i] = m.resolveSubst(a, subst)
		}
		if n.Base == "Result" && len(args) == 2 {
			return &types.ResultType{Ok: args[0], Err: args[1]}
		}
		return m.MonomorphizeType(n.Base, args)
	case *ast.FixedArrayTypeExpr:
		elem := m.resolveSubst(n.Elem, subst)
		size, err := sema.EvalInt(n.Size)
		if err != nil {
			size = 0
		}
		return &types.ArrayType{Elem: elem, Size: int(size)}
	case *ast.DynArrayTypeExpr:
		return &types.DynamicArrayType{Elem: m.resolveSubst(n.Elem, subst)}
	case *ast.ReferenceTypeExpr:
		mode := types.RefPeek
		if n.Mode == ast.RefPoke {
			mode = types.RefPoke
		}
		return &types.ReferenceType{Referenced: m.resolveSubst(n.Inner, subst), Mode: mode}
	default:
		return m.Tables.Resolve(texpr)
	}
}

// substTypeExpr substitutes and fully resolves texpr, then wraps the result
// in a ResolvedTypeExpr so the clone's Params/ReturnType/ErrType/LetStmt.Type
// fields carry a concrete type without needing to re-parse a mangled name.
func (m *Monomorphizer) substTypeExpr(texpr ast.TypeExpr, subst map[string]types.Type) ast.TypeExpr {
	if texpr == nil {
		return nil
	}
	return ast.NewResolvedTypeExpr(m.resolveSubst(texpr, subst), texpr.Span())
}

// MonomorphizeFunc resolves one (base, args) generic-function call to its
// mangled concrete function: clones the template body, substitutes
// parameter/return/error/let/cast types, and registers the result into
// Tables.FunctionTable/Functions so IR emission and further checking see it.
func (m *Monomorphizer) MonomorphizeFunc(base string, args []types.Type) string {
	key := types.Mangle(base, args)
	if name, ok := m.Tables.MonoFuncCache[key]; ok {
		return name
	}
	tmpl, ok := m.Tables.GenericFunctionTable[base]
	if !ok {
		return base
	}
	m.Tables.MonoFuncCache[key] = key // memoize before descending
	m.checkConstraints(tmpl.Decl.TypeParams, args, tmpl.Decl.Span())
	subst := buildSubst(tmpl.Decl.TypeParams, args)

	params := make([]*ast.Param, len(tmpl.Decl.Params))
	paramTypes := make([]types.Type, len(tmpl.Decl.Params))
	for i, p := range tmpl.Decl.Params {
		paramTypes[i] = m.resolveSubst(p.Type, subst)
		params[i] = ast.NewParam(p.Name, m.substTypeExpr(p.Type, subst), p.RefMode, p.Span())
	}
	var ret types.Type = types.Blank
	var retExpr ast.TypeExpr
	if tmpl.Decl.ReturnType != nil {
		ret = m.resolveSubst(tmpl.Decl.ReturnType, subst)
		retExpr = m.substTypeExpr(tmpl.Decl.ReturnType, subst)
	}
	errType := types.Type(&types.StructType{Name: "StdError"})
	var errExpr ast.TypeExpr
	if tmpl.Decl.ErrType != nil {
		errType = m.resolveSubst(tmpl.Decl.ErrType, subst)
		errExpr = m.substTypeExpr(tmpl.Decl.ErrType, subst)
	}

	body := m.cloneBody(tmpl.Decl.Body, subst)
	clone := ast.NewFnDecl(key, nil, params, retExpr, errExpr, body, tmpl.Decl.Public, tmpl.Decl.Span())
	clone.MangledName = key

	m.Tables.FunctionTable[key] = &types.FunctionEntry{
		Decl: clone, Name: key, ParamTypes: paramTypes, ReturnType: ret, ErrType: errType, Public: tmpl.Decl.Public,
	}
	m.Tables.Functions = append(m.Tables.Functions, clone)
	m.produced = append(m.produced, clone)
	return key
}

func toDiagSpan(s ast.Span) diag.Span {
	return diag.Span{Filename: s.Filename, Line: s.Line, Column: s.Column, Start: s.Start, End: s.End}
}
