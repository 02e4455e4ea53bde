// Package driver wires Passes 0-4 into one pipeline shared by cmd/sushic
// and the package tests: lex/parse, collection, scope analysis,
// instantiation collection, monomorphization, hash registration, type
// validation, borrow checking, and IR emission. Each pass runs to
// completion; errors block progression to the next pass, warnings never do.
package driver

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/borrow"
	codegen "github.com/sushi-lang/sushic/internal/codegen/llvm"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/generics"
	"github.com/sushi-lang/sushic/internal/parser"
	"github.com/sushi-lang/sushic/internal/stdlib"
	"github.com/sushi-lang/sushic/internal/types"
)

// Pipeline holds the shared state of one compilation unit.
type Pipeline struct {
	Reporter *diag.Reporter
	Tables   *types.Tables
	File     *ast.File

	mono *generics.Monomorphizer
}

// New parses source and prepares the table set: builtin Result/Maybe
// templates, the prelude (StdError, FileError, Own/List/HashMap/Pair
// templates), and the injected stdlib registry.
func New(source, filename string) *Pipeline {
	rep := diag.NewReporter()
	p := parser.New(source, rep, parser.WithFilename(filename))
	file := p.ParseFile()

	tables := types.NewTables()
	types.RegisterBuiltins(tables)
	seedPrelude(tables)

	reg := stdlib.NewRegistry(tables.StructTable["StdError"], tables.StructTable["FileError"])
	tables.StdlibFn = reg.Resolve
	tables.StdlibModules = reg.Modules()
	stdlib.RegisterStdio(tables, tables.StructTable["StdError"])
	stdlib.RegisterStringBuiltins(tables)

	return &Pipeline{Reporter: rep, Tables: tables, File: file}
}

// seedPrelude registers the error structs and the built-in generic struct
// templates every program has in scope. Result and Maybe are enums seeded by
// types.RegisterBuiltins; the collection templates below exist so type
// annotations like `HashMap<string, i32>` resolve through the same Pass 1.6
// machinery as user generics (their layouts are fixed by the codegen
// providers, not by these field lists).
func seedPrelude(t *types.Tables) {
	sp := ast.Span{}
	t.StructTable["StdError"] = &types.StructType{
		Name:   "StdError",
		Fields: []types.StructField{{Name: "message", Type: types.String}},
		Public: true,
	}
	t.StructTable["FileError"] = &types.StructType{
		Name:   "FileError",
		Fields: []types.StructField{{Name: "message", Type: types.String}},
		Public: true,
	}

	tp := func(names ...string) []*ast.GenericParam {
		out := make([]*ast.GenericParam, len(names))
		for i, n := range names {
			out[i] = ast.NewGenericParam(n, nil, sp)
		}
		return out
	}
	named := func(n string) ast.TypeExpr { return ast.NewNamedTypeExpr(n, sp) }
	field := func(name string, te ast.TypeExpr) *ast.StructField { return ast.NewStructField(name, te, sp) }

	t.GenericStructTable["Own"] = &types.GenericStructTemplate{Decl: ast.NewStructDecl("Own", tp("T"),
		[]*ast.StructField{field("value", named("T"))}, true, sp)}
	t.GenericStructTable["List"] = &types.GenericStructTemplate{Decl: ast.NewStructDecl("List", tp("T"),
		[]*ast.StructField{field("items", ast.NewDynArrayTypeExpr(named("T"), sp))}, true, sp)}
	t.GenericStructTable["HashMap"] = &types.GenericStructTemplate{Decl: ast.NewStructDecl("HashMap", tp("K", "V"),
		[]*ast.StructField{
			field("keys", ast.NewDynArrayTypeExpr(named("K"), sp)),
			field("values", ast.NewDynArrayTypeExpr(named("V"), sp)),
		}, true, sp)}
	t.GenericStructTable["Pair"] = &types.GenericStructTemplate{Decl: ast.NewStructDecl("Pair", tp("K", "V"),
		[]*ast.StructField{field("key", named("K")), field("value", named("V"))}, true, sp)}
}

// Check runs Passes 0-3. It reports whether the program is error-free; the
// caller reads diagnostics off p.Reporter either way.
func (p *Pipeline) Check() bool {
	// Pass 0: collection (constants are folded during collection).
	collector := types.NewCollector(p.Tables, p.Reporter)
	collector.CollectFile(p.File)
	p.mono = generics.NewMonomorphizer(p.Tables, p.Reporter)
	if p.Reporter.HasErrors() {
		return false
	}

	// Pass 1: scope/shadow/unused analysis.
	scope := types.NewScopeChecker(p.Tables, p.Reporter)
	for _, fn := range p.File.Functions {
		if fn.IsGeneric() {
			continue
		}
		scope.CheckFunc(fn.Params, "", fn.Body)
	}
	for _, ext := range p.File.Extends {
		for _, m := range ext.Methods {
			scope.CheckFunc(m.Params, "self", m.Body)
		}
	}
	if p.Reporter.HasErrors() {
		return false
	}

	// Pass 1.5/1.6: instantiation collection drives monomorphization.
	inst := generics.NewInstantiator(p.Tables, p.Reporter, p.mono)
	inst.CollectFile(p.File)
	if p.Reporter.HasErrors() {
		return false
	}

	// Pass 0 preserved signature types verbatim; with Pass 1.6 wired
	// in, drive the tables' remaining UnknownType/GenericTypeRef entries to
	// concrete types before Pass 1.7/2 read them.
	p.normalizeTables()

	// Pass 1.7: hash registration in topological dependency order.
	generics.NewHashRegistrar(p.Tables, p.Reporter).Run()
	if p.Reporter.HasErrors() {
		return false
	}

	// Pass 2: type validation. Checking a monomorphized clone can itself
	// monomorphize further generics, so drain to a fixed point.
	checker := types.NewChecker(p.Tables, p.Reporter)
	checker.CheckFile(p.File)
	checkedClones := p.drainClones(scope, checker)
	if p.Reporter.HasErrors() {
		return false
	}

	// Pass 3: borrow check.
	bc := borrow.NewChecker(p.Tables, p.Reporter)
	bc.CheckFile(p.File)
	for _, clone := range checkedClones {
		bc.CheckFunction(clone, "", nil)
	}
	return !p.Reporter.HasErrors()
}

// normalizeTables resolves forward references and generic references left
// verbatim by Pass 0 in struct fields, enum variants, and function
// signatures, now that monomorphization is available. Names that still fail
// to resolve stay UnknownType for Pass 2's diagnostics.
func (p *Pipeline) normalizeTables() {
	for _, st := range p.Tables.StructTable {
		for i := range st.Fields {
			st.Fields[i].Type = p.resolveDeep(st.Fields[i].Type)
		}
	}
	for _, et := range p.Tables.EnumTable {
		for vi := range et.Variants {
			for ai := range et.Variants[vi].Assoc {
				et.Variants[vi].Assoc[ai] = p.resolveDeep(et.Variants[vi].Assoc[ai])
			}
		}
	}
	for _, fn := range p.Tables.FunctionTable {
		for i := range fn.ParamTypes {
			fn.ParamTypes[i] = p.resolveDeep(fn.ParamTypes[i])
		}
		fn.ReturnType = p.resolveDeep(fn.ReturnType)
		fn.ErrType = p.resolveDeep(fn.ErrType)
	}
	for _, bucket := range p.Tables.ExtensionTable {
		for _, m := range bucket {
			for i := range m.ParamTypes {
				m.ParamTypes[i] = p.resolveDeep(m.ParamTypes[i])
			}
			m.ReturnType = p.resolveDeep(m.ReturnType)
			m.ErrType = p.resolveDeep(m.ErrType)
		}
	}
}

func (p *Pipeline) resolveDeep(t types.Type) types.Type {
	switch v := t.(type) {
	case nil:
		return nil
	case *types.UnknownType:
		if st, ok := p.Tables.StructTable[v.Name]; ok {
			return st
		}
		if et, ok := p.Tables.EnumTable[v.Name]; ok {
			return et
		}
		return v
	case *types.GenericTypeRef:
		args := make([]types.Type, len(v.TypeArgs))
		for i, a := range v.TypeArgs {
			args[i] = p.resolveDeep(a)
		}
		if p.Tables.MonoTypeFn != nil {
			r := p.Tables.MonoTypeFn(v.BaseName, args)
			if _, still := r.(*types.GenericTypeRef); !still {
				return r
			}
		}
		return &types.GenericTypeRef{BaseName: v.BaseName, TypeArgs: args}
	case *types.ArrayType:
		return &types.ArrayType{Elem: p.resolveDeep(v.Elem), Size: v.Size}
	case *types.DynamicArrayType:
		return &types.DynamicArrayType{Elem: p.resolveDeep(v.Elem)}
	case *types.ReferenceType:
		return &types.ReferenceType{Referenced: p.resolveDeep(v.Referenced), Mode: v.Mode}
	case *types.ResultType:
		return &types.ResultType{Ok: p.resolveDeep(v.Ok), Err: p.resolveDeep(v.Err)}
	case *types.IteratorType:
		return &types.IteratorType{Elem: p.resolveDeep(v.Elem)}
	default:
		return t
	}
}

func (p *Pipeline) drainClones(scope *types.ScopeChecker, checker *types.Checker) []*ast.FnDecl {
	var all []*ast.FnDecl
	for clones := p.mono.DrainProduced(); len(clones) > 0; clones = p.mono.DrainProduced() {
		for _, clone := range clones {
			scope.CheckFunc(clone.Params, "", clone.Body)
			checker.CheckFunction(clone)
			all = append(all, clone)
		}
	}
	return all
}

// EmitLLVM runs the full pipeline and returns the module's textual IR.
// Returns ok=false (with diagnostics on p.Reporter) when any pass failed.
func (p *Pipeline) EmitLLVM() (string, bool) {
	if !p.Check() {
		return "", false
	}
	gen := codegen.NewGenerator(p.Tables, p.Reporter)
	mod := gen.Emit(p.File)
	if p.Reporter.HasErrors() {
		return "", false
	}
	return mod.String(), true
}
