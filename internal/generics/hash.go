package generics

import (
	"sort"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/types"
)

// HashRegistrar implements Pass 1.7: registers auto-derived
// `.hash() -> u64` extension methods for every hashable concrete struct
// and enum, in Kahn's-algorithm topological dependency order so a
// containing type's synthesized hash body may call its fields' hash methods
// knowing they are already registered. Only StructTable and EnumTable
// entries are visited; array types get no `.hash()` extension here.
//
// Recursive enums that reference themselves directly (not through Own<T>)
// are rejected here rather than at collection
// time, because a cycle may only become visible once Pass 1.6 has
// monomorphized every concrete instantiation.
type HashRegistrar struct {
	Tables   *types.Tables
	Reporter *diag.Reporter
}

func NewHashRegistrar(tables *types.Tables, reporter *diag.Reporter) *HashRegistrar {
	return &HashRegistrar{Tables: tables, Reporter: reporter}
}

// Run executes Pass 1.7 over every concrete struct/enum currently in the
// tables. Call this after Pass 1.6 monomorphization has reached a fixed
// point, since it can only see instantiations that already exist.
func (h *HashRegistrar) Run() {
	order, cyclic := h.topoSort()
	for _, name := range cyclic {
		h.Reporter.Error(diag.StageGenerics, diag.CodeRecursiveEnumCycle,
			"'"+name+"' has a structural recursion cycle not broken by Own<T>", toDiagSpan(ast.Span{}))
	}
	for _, name := range order {
		h.registerHash(name)
	}
}

func (h *HashRegistrar) allNames() []string {
	names := make([]string, 0, len(h.Tables.StructTable)+len(h.Tables.EnumTable))
	for n := range h.Tables.StructTable {
		names = append(names, n)
	}
	for n := range h.Tables.EnumTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// typeDeps returns the concrete struct/enum names t inlines directly into
// its own memory layout: plain struct fields, enum variant associated
// types, and fixed-array elements. A field typed as List, HashMap or Own is
// heap/pointer-backed at runtime, so it never contributes a layout
// dependency edge - Own<T> is the "legal recursion mechanism" precisely
// because this edge is never drawn for it. Maybe and Result lower to inline
// tagged unions, so they do contribute an edge.
func (h *HashRegistrar) typeDeps(t types.Type) []string {
	heapBacked := func(base string) bool {
		return base == "List" || base == "HashMap" || base == "Own"
	}
	switch v := t.(type) {
	case *types.StructType:
		if heapBacked(v.GenericBase) {
			return nil
		}
		return []string{v.Name}
	case *types.EnumType:
		if heapBacked(v.GenericBase) {
			return nil
		}
		return []string{v.Name}
	case *types.ArrayType:
		return h.typeDeps(v.Elem)
	default:
		return nil
	}
}

func (h *HashRegistrar) directDeps(name string) []string {
	seen := map[string]bool{}
	var deps []string
	// A self-edge is kept: a type that inlines itself without Own<>
	// indirection is exactly the structural cycle rejects.
	add := func(t types.Type) {
		for _, d := range h.typeDeps(t) {
			if !seen[d] {
				seen[d] = true
				deps = append(deps, d)
			}
		}
	}
	if st, ok := h.Tables.StructTable[name]; ok {
		for _, f := range st.Fields {
			add(f.Type)
		}
		return deps
	}
	if et, ok := h.Tables.EnumTable[name]; ok {
		for _, v := range et.Variants {
			for _, a := range v.Assoc {
				add(a)
			}
		}
	}
	return deps
}

// topoSort runs Kahn's algorithm over the direct-dependency graph; anything
// left unprocessed once the queue drains is part of a cycle.
func (h *HashRegistrar) topoSort() (order []string, cyclic []string) {
	nodes := h.allNames()
	indeg := map[string]int{}
	adj := map[string][]string{} // dep -> dependents
	for _, n := range nodes {
		indeg[n] = 0
	}
	for _, n := range nodes {
		for _, d := range h.directDeps(n) {
			if _, ok := indeg[d]; !ok {
				continue
			}
			adj[d] = append(adj[d], n)
			indeg[n]++
		}
	}

	var queue []string
	for _, n := range nodes {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		var next []string
		for _, m := range adj[cur] {
			indeg[m]--
			if indeg[m] == 0 {
				next = append(next, m)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if len(order) < len(nodes) {
		done := map[string]bool{}
		for _, n := range order {
			done[n] = true
		}
		for _, n := range nodes {
			if !done[n] {
				cyclic = append(cyclic, n)
			}
		}
		sort.Strings(cyclic)
	}
	return order, cyclic
}

func (h *HashRegistrar) registerHash(name string) {
	if _, ok := h.Tables.LookupExtension(name, "hash"); ok {
		return // a user-written extension already provides.hash
	}
	var recv types.Type
	if st, ok := h.Tables.StructTable[name]; ok {
		recv = st
	} else if et, ok := h.Tables.EnumTable[name]; ok {
		recv = et
	} else {
		return
	}
	if !types.IsHashable(recv, nil) {
		return
	}
	h.Tables.AddExtension(name, &types.ExtensionMethod{
		Decl:       synthHashDecl(name),
		Receiver:   recv,
		ParamTypes: nil,
		ReturnType: types.U64,
		ErrType:    nil,
		Synthetic:  true,
	})
}

// synthHashDecl gives the synthetic hash method a named, body-less FnDecl
// purely so AddExtension's bucket key (m.Decl.Name) and diagnostics have a
// name to report; internal/codegen/llvm never reads its Body (Synthetic is
// true) and instead walks ExtensionMethod.Receiver's shape directly.
func synthHashDecl(receiverName string) *ast.FnDecl {
	return ast.NewFnDecl("hash", nil, nil, ast.NewNamedTypeExpr("u64", ast.Span{}), nil, nil, true, ast.Span{})
}
