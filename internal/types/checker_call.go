package types

import (
	"strings"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
)

// inferCall distinguishes struct constructors, enum constructors,
// generic/plain function calls, stdlib calls, and method calls (the last
// handled by inferMethodCall).
func (c *Checker) inferCall(n *ast.CallExpr) Type {
	switch callee := n.Callee.(type) {
	case *ast.Ident:
		if st, ok := c.Tables.StructTable[callee.Name]; ok {
			return c.checkStructCtor(n, st)
		}
		if _, ok := c.Tables.GenericStructTable[callee.Name]; ok {
			return c.checkGenericStructCtor(n, callee.Name)
		}
		if fn, ok := c.Tables.FunctionTable[callee.Name]; ok {
			return c.checkPlainCall(n, fn)
		}
		if _, ok := c.Tables.GenericFunctionTable[callee.Name]; ok {
			return c.checkGenericCall(n, callee.Name)
		}
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUndefinedName,
			"undefined function '"+callee.Name+"'", toDiagSpan(callee.Span()))
		return Blank
	case *ast.FieldExpr:
		if base, ok := callee.Target.(*ast.Ident); ok {
			if et, ok := c.Tables.EnumTable[base.Name]; ok {
				return c.checkEnumCtor(n, et, callee.Field)
			}
			if _, ok := c.Tables.GenericEnumTable[base.Name]; ok {
				return c.checkGenericEnumCtor(n, base.Name, callee.Field)
			}
			if c.Tables.StdlibModules[base.Name] {
				return c.checkStdlibCall(n, base.Name, callee.Field)
			}
			if _, isVar := c.vars[base.Name]; !isVar && IsProviderBase(base.Name) {
				return c.checkProviderStatic(n, base.Name, callee.Field)
			}
			if _, isVar := c.vars[base.Name]; !isVar {
				if elem, isBuiltin := builtinNames[base.Name]; isBuiltin && (callee.Field == "from" || callee.Field == "new") {
					return c.checkDynArrayCtor(n, elem, callee.Field)
				}
			}
		}
		return c.inferMethodCall(n, callee)
	default:
		c.inferExpr(n.Callee)
		return Blank
	}
}

// reorderNamedArgs rewrites a named-argument struct-literal call to
// positional order ( call-kind 1, "Named-argument struct constructor
// desugaring"): NamedArgs is consumed and cleared, Args is populated.
func reorderNamedArgs(n *ast.CallExpr, fieldNames []string) {
	if !n.IsNamed() {
		return
	}
	byName := map[string]ast.Expr{}
	for _, na := range n.NamedArgs {
		byName[na.Name] = na.Value
	}
	args := make([]ast.Expr, 0, len(fieldNames))
	for _, name := range fieldNames {
		if v, ok := byName[name]; ok {
			args = append(args, v)
		}
	}
	n.Args = args
	n.NamedArgs = nil
}

func (c *Checker) checkStructCtor(n *ast.CallExpr, st *StructType) Type {
	names := make([]string, len(st.Fields))
	for i, f := range st.Fields {
		names[i] = f.Name
	}
	reorderNamedArgs(n, names)
	if len(n.Args) != len(st.Fields) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgCountMismatch,
			"struct '"+st.Name+"' expects "+itoa(len(st.Fields))+" field(s), got "+itoa(len(n.Args)),
			toDiagSpan(n.Span()))
	}
	for i, arg := range n.Args {
		if i >= len(st.Fields) {
			break
		}
		c.propagateExpected(st.Fields[i].Type, arg)
		at := c.inferExpr(arg)
		if !AssignableTo(at, st.Fields[i].Type) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
				"field '"+st.Fields[i].Name+"' of '"+st.Name+"' expects '"+st.Fields[i].Type.String()+"', got '"+at.String()+"'",
				toDiagSpan(arg.Span()))
		}
	}
	n.MangledCallee = st.Name
	return st
}

func (c *Checker) checkGenericStructCtor(n *ast.CallExpr, base string) Type {
	// A concrete expectation propagated from the declared LHS wins over
	// argument-driven inference (it also covers ctors with no arguments).
	if st, ok := c.Tables.StructTable[n.MangledCallee]; ok && st.GenericBase == base {
		return c.checkStructCtor(n, st)
	}
	argTypes := make([]Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.inferExpr(a)
	}
	if len(n.TypeArgs) > 0 {
		args := make([]Type, len(n.TypeArgs))
		for i, te := range n.TypeArgs {
			args[i] = c.Tables.Resolve(te)
		}
		return c.monomorphizeType(base, args, n)
	}
	// Infer type args positionally from the template's field types against
	// actual argument types.
	tmpl := c.Tables.GenericStructTable[base]
	subst := map[string]Type{}
	for i, f := range tmpl.Decl.Fields {
		if i >= len(argTypes) {
			break
		}
		unify(c.Tables.Resolve(f.Type), argTypes[i], subst)
	}
	args := make([]Type, len(tmpl.Decl.TypeParams))
	for i, tp := range tmpl.Decl.TypeParams {
		if bound, ok := subst[tp.Name]; ok {
			args[i] = bound
		} else {
			args[i] = Blank
		}
	}
	return c.monomorphizeType(base, args, n)
}

func (c *Checker) monomorphizeType(base string, args []Type, n *ast.CallExpr) Type {
	if c.Tables.MonoTypeFn == nil {
		return &GenericTypeRef{BaseName: base, TypeArgs: args}
	}
	t := c.Tables.MonoTypeFn(base, args)
	if st, ok := t.(*StructType); ok {
		n.MangledCallee = st.Name
	}
	return t
}

func (c *Checker) checkEnumCtor(n *ast.CallExpr, et *EnumType, variantName string) Type {
	variant, _ := et.Variant(variantName)
	if variant == nil {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownMethod,
			"enum '"+et.Name+"' has no variant '"+variantName+"'", toDiagSpan(n.Span()))
		return Blank
	}
	if len(n.Args) != len(variant.Assoc) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgCountMismatch,
			"variant '"+variantName+"' expects "+itoa(len(variant.Assoc))+" value(s), got "+itoa(len(n.Args)),
			toDiagSpan(n.Span()))
	}
	for i, arg := range n.Args {
		if i >= len(variant.Assoc) {
			break
		}
		c.propagateExpected(variant.Assoc[i], arg)
		at := c.inferExpr(arg)
		if !AssignableTo(at, variant.Assoc[i]) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
				"variant '"+variantName+"' expects '"+variant.Assoc[i].String()+"', got '"+at.String()+"'",
				toDiagSpan(arg.Span()))
		}
	}
	n.MangledCallee = et.Name + "." + variantName
	return et
}

func (c *Checker) checkGenericEnumCtor(n *ast.CallExpr, base, variantName string) Type {
	// Same expectation-first rule as checkGenericStructCtor; without it a
	// unit variant (`Maybe.None`) has no argument to infer T from.
	if dot := strings.LastIndex(n.MangledCallee, "."); dot > 0 {
		if et, ok := c.Tables.EnumTable[n.MangledCallee[:dot]]; ok && et.GenericBase == base {
			return c.checkEnumCtor(n, et, variantName)
		}
	}
	argTypes := make([]Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.inferExpr(a)
	}
	if len(n.TypeArgs) > 0 {
		args := make([]Type, len(n.TypeArgs))
		for i, te := range n.TypeArgs {
			args[i] = c.Tables.Resolve(te)
		}
		t := c.monomorphizeType(base, args, n)
		if et, ok := t.(*EnumType); ok {
			n.MangledCallee = et.Name + "." + variantName
		}
		return t
	}
	tmpl := c.Tables.GenericEnumTable[base]
	subst := map[string]Type{}
	for _, v := range tmpl.Decl.Variants {
		if v.Name != variantName {
			continue
		}
		for i, assocExpr := range v.Assoc {
			if i >= len(argTypes) {
				break
			}
			unify(c.Tables.Resolve(assocExpr), argTypes[i], subst)
		}
	}
	args := make([]Type, len(tmpl.Decl.TypeParams))
	for i, tp := range tmpl.Decl.TypeParams {
		if bound, ok := subst[tp.Name]; ok {
			args[i] = bound
		} else {
			args[i] = Blank
		}
	}
	t := c.monomorphizeType(base, args, n)
	if et, ok := t.(*EnumType); ok {
		n.MangledCallee = et.Name + "." + variantName
	}
	return t
}

func (c *Checker) checkPlainCall(n *ast.CallExpr, fn *FunctionEntry) Type {
	if len(n.Args) != len(fn.ParamTypes) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgCountMismatch,
			"'"+fn.Name+"' expects "+itoa(len(fn.ParamTypes))+" argument(s), got "+itoa(len(n.Args)),
			toDiagSpan(n.Span()))
	}
	for i, arg := range n.Args {
		at := c.inferExpr(arg)
		if i < len(fn.ParamTypes) && !AssignableTo(at, fn.ParamTypes[i]) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
				"argument "+itoa(i+1)+" to '"+fn.Name+"' expects '"+fn.ParamTypes[i].String()+"', got '"+at.String()+"'",
				toDiagSpan(arg.Span()))
		}
	}
	n.MangledCallee = fn.Name
	return &ResultType{Ok: fn.ReturnType, Err: fn.ErrType}
}

// checkGenericCall re-runs inference exactly as Pass 1.5 but with
// full type information, then rewrites the callee to the mangled name.
func (c *Checker) checkGenericCall(n *ast.CallExpr, base string) Type {
	argTypes := make([]Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.inferExpr(a)
	}
	tmpl := c.Tables.GenericFunctionTable[base]
	subst := map[string]Type{}
	for i, p := range tmpl.Decl.Params {
		if i >= len(argTypes) {
			break
		}
		unify(c.Tables.Resolve(p.Type), argTypes[i], subst)
	}
	args := make([]Type, len(tmpl.Decl.TypeParams))
	for i, tp := range tmpl.Decl.TypeParams {
		bound, ok := subst[tp.Name]
		if !ok {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeInferenceFailed,
				"cannot infer type argument '"+tp.Name+"' for call to '"+base+"'", toDiagSpan(n.Span()))
			bound = Blank
		}
		args[i] = bound
	}
	if c.Tables.MonoFuncFn == nil {
		return Blank
	}
	mangled := c.Tables.MonoFuncFn(base, args)
	n.MangledCallee = mangled
	fn, ok := c.Tables.FunctionTable[mangled]
	if !ok {
		return Blank
	}
	return &ResultType{Ok: fn.ReturnType, Err: fn.ErrType}
}

func (c *Checker) checkStdlibCall(n *ast.CallExpr, module, name string) Type {
	argTypes := make([]Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.inferExpr(a)
	}
	if c.Tables.StdlibFn == nil {
		return Blank
	}
	ret, ok := c.Tables.StdlibFn(module, name, argTypes)
	if !ok {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUndefinedName,
			"unknown stdlib function '"+module+"."+name+"'", toDiagSpan(n.Span()))
		return Blank
	}
	n.MangledCallee = module + "_" + name
	return ret
}

// checkProviderStatic validates a static method call on a built-in generic
// collection base (`HashMap.new`, `Own.alloc(v)`, `List.from([...])`). Type
// arguments come from explicit TypeArgs, from the expected type seeded by
// propagateExpected, or from unifying the method's parameter types against
// the actual argument types, in that order.
func (c *Checker) checkProviderStatic(n *ast.CallExpr, base, method string) Type {
	p := ProviderRegistry[base]
	rawSpec, ok := p.Methods[method]
	if !ok || !rawSpec.IsStatic {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownMethod,
			"'"+base+"' has no static method '"+method+"'", toDiagSpan(n.Span()))
		return Blank
	}

	var args []Type
	switch {
	case len(n.TypeArgs) > 0:
		args = make([]Type, len(n.TypeArgs))
		for i, te := range n.TypeArgs {
			args[i] = c.Tables.Resolve(te)
		}
	case n.ResolvedType() != nil:
		if b, ga, ok := genericBaseOf(n.ResolvedType().(Type)); ok && b == base {
			args = ga
		}
	}
	if args == nil {
		subst := map[string]Type{}
		for i, a := range n.Args {
			if i < len(rawSpec.Params) {
				unify(rawSpec.Params[i], c.inferExpr(a), subst)
			}
		}
		args = make([]Type, len(p.TypeParams))
		for i, tp := range p.TypeParams {
			bound, ok := subst[tp]
			if !ok {
				c.Reporter.Error(diag.StageTypeCheck, diag.CodeInferenceFailed,
					"cannot infer type argument '"+tp+"' for '"+base+"."+method+"'", toDiagSpan(n.Span()))
				bound = Blank
			}
			args[i] = bound
		}
	}

	spec, _ := ResolveProviderMethod(base, method, args)
	if len(n.Args) != len(spec.Params) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgCountMismatch,
			"'"+base+"."+method+"' expects "+itoa(len(spec.Params))+" argument(s), got "+itoa(len(n.Args)),
			toDiagSpan(n.Span()))
	}
	for i, arg := range n.Args {
		if i >= len(spec.Params) {
			break
		}
		c.propagateExpected(spec.Params[i], arg)
		at := c.inferExpr(arg)
		if !AssignableTo(at, spec.Params[i]) && !isArrayIntoDyn(at, spec.Params[i]) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
				"argument "+itoa(i+1)+" to '"+base+"."+method+"' expects '"+spec.Params[i].String()+"', got '"+at.String()+"'",
				toDiagSpan(arg.Span()))
		}
	}

	if c.Tables.MonoTypeFn != nil {
		c.Tables.MonoTypeFn(base, args)
	}
	n.MangledCallee = base + "." + method
	return c.resolveGenericRet(spec.Return)
}

// checkDynArrayCtor validates the dynamic-array constructors `T.new()` and
// `T.from([...])`; emission gives both specialized fast-path initializers.
func (c *Checker) checkDynArrayCtor(n *ast.CallExpr, elem Type, method string) Type {
	out := &DynamicArrayType{Elem: elem}
	if method == "new" {
		if len(n.Args) != 0 {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgCountMismatch,
				"'"+elem.String()+".new' expects no arguments, got "+itoa(len(n.Args)), toDiagSpan(n.Span()))
		}
		n.MangledCallee = elem.String() + ".new"
		return out
	}
	if len(n.Args) != 1 {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgCountMismatch,
			"'"+elem.String()+".from' expects 1 argument, got "+itoa(len(n.Args)), toDiagSpan(n.Span()))
		return out
	}
	at := c.inferExpr(n.Args[0])
	switch src := at.(type) {
	case *ArrayType:
		if !AssignableTo(src.Elem, elem) && src.Size > 0 {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
				"cannot build '"+out.String()+"' from elements of type '"+src.Elem.String()+"'", toDiagSpan(n.Args[0].Span()))
		}
	case *DynamicArrayType:
		if !AssignableTo(src.Elem, elem) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
				"cannot build '"+out.String()+"' from '"+src.String()+"'", toDiagSpan(n.Args[0].Span()))
		}
	default:
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
			"'"+elem.String()+".from' expects an array, got '"+at.String()+"'", toDiagSpan(n.Args[0].Span()))
	}
	n.MangledCallee = elem.String() + ".from"
	return out
}

// isArrayIntoDyn accepts a fixed-array literal where a dynamic array is
// expected (`List.from([1, 2, 3])`): the fast-path initializer copies
// it into a fresh owned buffer.
func isArrayIntoDyn(src, dst Type) bool {
	a, aok := src.(*ArrayType)
	d, dok := dst.(*DynamicArrayType)
	if !aok || !dok {
		return false
	}
	return a.Size == 0 || AssignableTo(a.Elem, d.Elem)
}

// resolveGenericRet drives a provider method's declared return type (which
// may still be a GenericTypeRef after placeholder substitution) to its
// concrete monomorphized entry.
func (c *Checker) resolveGenericRet(t Type) Type {
	switch v := t.(type) {
	case *GenericTypeRef:
		if c.Tables.MonoTypeFn != nil {
			return c.Tables.MonoTypeFn(v.BaseName, v.TypeArgs)
		}
	case *IteratorType:
		return v
	}
	return t
}

// inferMethodCall resolves `receiver.method(args...)` against either the
// built-in generic provider registry or the extension table.
func (c *Checker) inferMethodCall(n *ast.CallExpr, callee *ast.FieldExpr) Type {
	recv := c.inferExpr(callee.Target)
	argTypes := make([]Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.inferExpr(a)
	}

	base, genArgs, ok := genericBaseOf(recv)
	if ok && IsProviderBase(base) {
		spec, ok := ResolveProviderMethod(base, callee.Field, genArgs)
		if !ok {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownMethod,
				"'"+base+"' has no method '"+callee.Field+"'", toDiagSpan(n.Span()))
			return Blank
		}
		if spec.IsMutating {
			c.requireMutable(callee.Target, n.Span())
		}
		for i, arg := range n.Args {
			if i >= len(spec.Params) {
				break
			}
			if i < len(argTypes) && !AssignableTo(argTypes[i], spec.Params[i]) {
				c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
					"argument "+itoa(i+1)+" to '"+base+"."+callee.Field+"' expects '"+spec.Params[i].String()+"', got '"+argTypes[i].String()+"'",
					toDiagSpan(arg.Span()))
			}
		}
		n.MangledCallee = base + "." + callee.Field
		return c.resolveGenericRet(spec.Return)
	}

	recvName := recvTypeName(recv)
	m, ok := c.Tables.LookupExtension(recvName, callee.Field)
	if !ok {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownMethod,
			"'"+recvName+"' has no method '"+callee.Field+"'", toDiagSpan(n.Span()))
		return Blank
	}
	if len(n.Args) != len(m.ParamTypes) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgCountMismatch,
			"'"+callee.Field+"' expects "+itoa(len(m.ParamTypes))+" argument(s), got "+itoa(len(n.Args)),
			toDiagSpan(n.Span()))
	}
	for i, at := range argTypes {
		if i < len(m.ParamTypes) && !AssignableTo(at, m.ParamTypes[i]) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeArgTypeMismatch,
				"argument "+itoa(i+1)+" to '"+callee.Field+"' expects '"+m.ParamTypes[i].String()+"', got '"+at.String()+"'",
				toDiagSpan(n.Args[i].Span()))
		}
	}
	n.MangledCallee = recvName + "." + callee.Field
	if m.Synthetic {
		// Built-in methods (stdio, .hash(), the string/number helpers) are
		// emitted as direct runtime calls, not Result-wrapped sushi functions.
		return m.ReturnType
	}
	return &ResultType{Ok: m.ReturnType, Err: m.ErrType}
}

// requireMutable requires a mutating method's receiver to be either a
// variable whose slot can be addressed or a reference parameter in poke
// mode.
func (c *Checker) requireMutable(target ast.Expr, span ast.Span) {
	switch tgt := target.(type) {
	case *ast.Ident:
		if ref, ok := c.vars[tgt.Name].(*ReferenceType); ok && ref.Mode == RefPeek {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeMutatingOnImmutable,
				"cannot call a mutating method through a read-only peek reference", toDiagSpan(span))
		}
	case *ast.FieldExpr:
		// field-of-struct receivers are addressable through their owner.
	}
}

func genericBaseOf(t Type) (string, []Type, bool) {
	switch v := t.(type) {
	case *DynamicArrayType:
		// T[] shares List<T>'s layout and method surface.
		return "List", []Type{v.Elem}, true
	case *StructType:
		if v.GenericBase != "" {
			return v.GenericBase, v.GenericArgs, true
		}
	case *EnumType:
		if v.GenericBase != "" {
			return v.GenericBase, v.GenericArgs, true
		}
	case *GenericTypeRef:
		return v.BaseName, v.TypeArgs, true
	}
	return "", nil, false
}

func recvTypeName(t Type) string {
	switch v := t.(type) {
	case *StructType:
		return v.Name
	case *EnumType:
		return v.Name
	case *ReferenceType:
		return recvTypeName(v.Referenced)
	default:
		return t.String()
	}
}

// unify implements the Hindley-Milner-restricted unification of :
// TypeParameter/UnknownType-as-placeholder bind to the concrete argument
// type; conflicts are silently kept as the first binding (Pass 2 surfaces
// the resulting mismatch through ordinary argument-type checks).
func unify(param, arg Type, subst map[string]Type) {
	switch p := param.(type) {
	case *TypeParameter:
		if _, bound := subst[p.Name]; !bound {
			subst[p.Name] = arg
		}
	case *UnknownType:
		if _, bound := subst[p.Name]; !bound {
			subst[p.Name] = arg
		}
	case *GenericTypeRef:
		switch a := arg.(type) {
		case *StructType:
			if a.GenericBase == p.BaseName {
				for i, pa := range p.TypeArgs {
					if i < len(a.GenericArgs) {
						unify(pa, a.GenericArgs[i], subst)
					}
				}
			}
		case *EnumType:
			if a.GenericBase == p.BaseName {
				for i, pa := range p.TypeArgs {
					if i < len(a.GenericArgs) {
						unify(pa, a.GenericArgs[i], subst)
					}
				}
			}
		}
	case *ArrayType:
		if a, ok := arg.(*ArrayType); ok {
			unify(p.Elem, a.Elem, subst)
		}
	case *DynamicArrayType:
		if a, ok := arg.(*DynamicArrayType); ok {
			unify(p.Elem, a.Elem, subst)
		}
	case *ReferenceType:
		if a, ok := arg.(*ReferenceType); ok {
			unify(p.Referenced, a.Referenced, subst)
		}
	}
}
