package types

import (
	"fmt"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/sema"
)

var builtinNames = map[string]Type{
	"i8": I8, "i16": I16, "i32": I32, "i64": I64,
	"u8": U8, "u16": U16, "u32": U32, "u64": U64,
	"f32": F32, "f64": F64,
	"bool": Bool, "string": String,
	"stdin": Stdin, "stdout": Stdout, "stderr": Stderr, "file": File,
}

// Resolve turns a parsed TypeExpr into a types.Type. Struct/enum names that
// are not yet known (forward references, or generic templates not yet
// monomorphized) resolve to UnknownType/GenericTypeRef respectively;
// UnknownType may remain only for names that failed to resolve, and Pass
// 1.6 is responsible for driving the rest to concrete types.
func (t *Tables) Resolve(texpr ast.TypeExpr) Type {
	switch n := texpr.(type) {
	case *ast.BlankTypeExpr:
		return Blank
	case *ast.ResolvedTypeExpr:
		return n.Resolved.(Type)
	case *ast.NamedTypeExpr:
		if b, ok := builtinNames[n.Name]; ok {
			return b
		}
		if st, ok := t.StructTable[n.Name]; ok {
			return st
		}
		if et, ok := t.EnumTable[n.Name]; ok {
			return et
		}
		if _, ok := t.GenericStructTable[n.Name]; ok {
			return &GenericTypeRef{BaseName: n.Name}
		}
		if _, ok := t.GenericEnumTable[n.Name]; ok {
			return &GenericTypeRef{BaseName: n.Name}
		}
		return &UnknownType{Name: n.Name}
	case *ast.GenericTypeExpr:
		args := make([]Type, len(n.Args))
		for i, a := range n.Args {
			args[i] = t.Resolve(a)
		}
		if n.Base == "Result" && len(args) == 2 {
			return &ResultType{Ok: args[0], Err: args[1]}
		}
		// Once Pass 1.6 has wired itself in, generic references resolve
		// straight to their concrete monomorphized entry (memoized).
		if t.MonoTypeFn != nil {
			return t.MonoTypeFn(n.Base, args)
		}
		return &GenericTypeRef{BaseName: n.Base, TypeArgs: args}
	case *ast.FixedArrayTypeExpr:
		elem := t.Resolve(n.Elem)
		size, err := sema.EvalInt(n.Size)
		if err != nil {
			size = 0
		}
		return &ArrayType{Elem: elem, Size: int(size)}
	case *ast.DynArrayTypeExpr:
		return &DynamicArrayType{Elem: t.Resolve(n.Elem)}
	case *ast.ReferenceTypeExpr:
		mode := RefPeek
		if n.Mode == ast.RefPoke {
			mode = RefPoke
		}
		return &ReferenceType{Referenced: t.Resolve(n.Inner), Mode: mode}
	default:
		return &UnknownType{Name: fmt.Sprintf("%T", texpr)}
	}
}

// Substitute recursively replaces TypeParameters (and UnknownTypes whose
// name matches a bound parameter) per the subst map, recursively. It
// leaves GenericTypeRef
// nodes whose base is not itself a parameter untouched for the caller to
// re-enter monomorphization on.
func Substitute(t Type, subst map[string]Type) Type {
	switch v := t.(type) {
	case *TypeParameter:
		if repl, ok := subst[v.Name]; ok {
			return repl
		}
		return v
	case *UnknownType:
		if repl, ok := subst[v.Name]; ok {
			return repl
		}
		return v
	case *ArrayType:
		return &ArrayType{Elem: Substitute(v.Elem, subst), Size: v.Size}
	case *DynamicArrayType:
		return &DynamicArrayType{Elem: Substitute(v.Elem, subst)}
	case *ReferenceType:
		return &ReferenceType{Referenced: Substitute(v.Referenced, subst), Mode: v.Mode}
	case *PointerType:
		return &PointerType{Pointee: Substitute(v.Pointee, subst)}
	case *IteratorType:
		return &IteratorType{Elem: Substitute(v.Elem, subst)}
	case *GenericTypeRef:
		args := make([]Type, len(v.TypeArgs))
		for i, a := range v.TypeArgs {
			args[i] = Substitute(a, subst)
		}
		return &GenericTypeRef{BaseName: v.BaseName, TypeArgs: args}
	case *ResultType:
		return &ResultType{Ok: Substitute(v.Ok, subst), Err: Substitute(v.Err, subst)}
	case *StructType:
		if v.GenericBase != "" {
			args := make([]Type, len(v.GenericArgs))
			for i, a := range v.GenericArgs {
				args[i] = Substitute(a, subst)
			}
			return &GenericTypeRef{BaseName: v.GenericBase, TypeArgs: args}
		}
		return v
	case *EnumType:
		if v.GenericBase != "" {
			args := make([]Type, len(v.GenericArgs))
			for i, a := range v.GenericArgs {
				args[i] = Substitute(a, subst)
			}
			return &GenericTypeRef{BaseName: v.GenericBase, TypeArgs: args}
		}
		return v
	default:
		return t
	}
}

// AssignableTo reports whether a value of type src may initialize/assign
// into a storage slot of type dst. Per this is exact-match except that
// a ResultType marker and its resolved concrete Result<T,E> EnumType compare
// equal structurally.
func AssignableTo(src, dst Type) bool {
	if Equal(src, dst) {
		return true
	}
	// ResultType <-> concrete Result<T,E> enum structural equivalence.
	if rs, ok := src.(*ResultType); ok {
		if et, ok := dst.(*EnumType); ok && et.GenericBase == "Result" {
			return len(et.GenericArgs) == 2 && Equal(rs.Ok, et.GenericArgs[0]) && Equal(rs.Err, et.GenericArgs[1])
		}
	}
	if rd, ok := dst.(*ResultType); ok {
		if et, ok := src.(*EnumType); ok && et.GenericBase == "Result" {
			return len(et.GenericArgs) == 2 && Equal(rd.Ok, et.GenericArgs[0]) && Equal(rd.Err, et.GenericArgs[1])
		}
	}
	return false
}
