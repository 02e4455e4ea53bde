package types

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
)

// inferExpr type-checks e, annotates it with its resolved type
// (Expr.SetResolvedType), and returns that type. The semantic ResultType
// marker is normalized to its concrete Result<T,E> enum here so downstream
// checks (`??`, conditions, unhandled-result detection) and Pass 4 always
// see the monomorphized entry.
func (c *Checker) inferExpr(e ast.Expr) Type {
	t := c.inferExprUnannotated(e)
	if rt, ok := t.(*ResultType); ok && c.Tables.MonoTypeFn != nil {
		t = c.Tables.MonoTypeFn("Result", []Type{rt.Ok, rt.Err})
	}
	e.SetResolvedType(t)
	return t
}

func (c *Checker) inferExprUnannotated(e ast.Expr) Type {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return I32
	case *ast.FloatLiteral:
		return F64
	case *ast.StringLiteral:
		return String
	case *ast.BoolLiteral:
		return Bool
	case *ast.NilLiteral:
		return &PointerType{Pointee: Blank}
	case *ast.BlankLiteral:
		return Blank
	case *ast.Ident:
		return c.inferIdent(n)
	case *ast.ArrayLiteral:
		return c.inferArrayLiteral(n)
	case *ast.PrefixExpr:
		return c.inferPrefix(n)
	case *ast.InfixExpr:
		return c.inferInfix(n)
	case *ast.RefExpr:
		inner := c.inferExpr(n.Target)
		mode := RefPeek
		if n.Mode == ast.RefPoke {
			mode = RefPoke
		}
		return &ReferenceType{Referenced: inner, Mode: mode}
	case *ast.CallExpr:
		return c.inferCall(n)
	case *ast.FieldExpr:
		return c.inferField(n)
	case *ast.IndexExpr:
		return c.inferIndex(n)
	case *ast.CastExpr:
		return c.inferCast(n)
	case *ast.TryExpr:
		return c.inferTry(n)
	case *ast.IfExpr:
		return c.inferIf(n)
	case *ast.MatchExpr:
		return c.inferMatch(n)
	case *ast.BlockExpr:
		return c.inferBlockExpr(n)
	case *ast.PrintlnExpr:
		c.inferExpr(n.Value)
		return Blank
	default:
		return Blank
	}
}

func (c *Checker) inferIdent(n *ast.Ident) Type {
	if t, ok := c.vars[n.Name]; ok {
		return t
	}
	if entry, ok := c.Tables.ConstantTable[n.Name]; ok {
		return entry.Type
	}
	c.Reporter.Error(diag.StageTypeCheck, diag.CodeUndefinedName,
		"undefined name '"+n.Name+"'", toDiagSpan(n.Span()))
	return Blank
}

func (c *Checker) inferArrayLiteral(n *ast.ArrayLiteral) Type {
	var elem Type = Blank
	for i, el := range n.Elements {
		t := c.inferExpr(el)
		if i == 0 {
			elem = t
		}
	}
	return &ArrayType{Elem: elem, Size: len(n.Elements)}
}

func (c *Checker) inferPrefix(n *ast.PrefixExpr) Type {
	return c.inferExpr(n.Right)
}

func (c *Checker) inferInfix(n *ast.InfixExpr) Type {
	lt := c.inferExpr(n.Left)
	rt := c.inferExpr(n.Right)
	switch n.Op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return Bool
	default:
		_ = rt
		return lt
	}
}

func (c *Checker) inferBlockExpr(n *ast.BlockExpr) Type {
	for _, st := range n.Stmts {
		c.checkStmt(st)
	}
	if n.Tail != nil {
		return c.inferExpr(n.Tail)
	}
	return Blank
}

func (c *Checker) inferField(n *ast.FieldExpr) Type {
	// Namespaced stdlib reference (`math.sqrt`) or Enum.Variant constructor
	// callee handled by inferCall/checkReturn directly; plain field access:
	if base, ok := n.Target.(*ast.Ident); ok {
		if c.Tables.StdlibModules[base.Name] {
			return Blank // resolved fully once the enclosing CallExpr is checked
		}
		if _, ok := c.vars[base.Name]; !ok {
			if et, ok := c.Tables.EnumTable[base.Name]; ok {
				// bare `Enum.Variant` reference outside a call: type is the enum itself.
				_ = et
				return et
			}
		}
	}
	targetType := c.inferExpr(n.Target)
	switch tt := targetType.(type) {
	case *StructType:
		if ft, ok := tt.FieldType(n.Field); ok {
			return ft
		}
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownMethod,
			"struct '"+tt.Name+"' has no field '"+n.Field+"'", toDiagSpan(n.Span()))
		return Blank
	case *ReferenceType:
		if st, ok := tt.Referenced.(*StructType); ok {
			if ft, ok := st.FieldType(n.Field); ok {
				return ft
			}
		}
		return Blank
	default:
		return Blank
	}
}

func (c *Checker) inferIndex(n *ast.IndexExpr) Type {
	targetType := c.inferExpr(n.Target)
	c.inferExpr(n.Index)
	if idxLit, ok := n.Index.(*ast.IntLiteral); ok {
		if at, ok := targetType.(*ArrayType); ok {
			if idxLit.Value < 0 || int(idxLit.Value) >= at.Size {
				c.Reporter.Error(diag.StageTypeCheck, diag.CodeOutOfBounds,
					"index out of bounds for array of size "+itoa(at.Size), toDiagSpan(n.Index.Span()))
			}
		}
	}
	switch tt := targetType.(type) {
	case *ArrayType:
		return tt.Elem
	case *DynamicArrayType:
		return tt.Elem
	default:
		return Blank
	}
}

// inferCast validates `value as T`.
func (c *Checker) inferCast(n *ast.CastExpr) Type {
	from := c.inferExpr(n.Value)
	to := c.Tables.Resolve(n.Type)
	if !isCastable(from, to) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeInvalidCast,
			"cannot cast '"+from.String()+"' as '"+to.String()+"'", toDiagSpan(n.Span()))
	}
	return to
}

func isCastable(from, to Type) bool {
	isNum := func(t Type) bool {
		switch t.(type) {
		case *IntType, *FloatType:
			return true
		}
		return false
	}
	_, fromBool := from.(*BoolType)
	_, toBool := to.(*BoolType)
	_, fromInt := from.(*IntType)
	_, toInt := to.(*IntType)
	switch {
	case isNum(from) && isNum(to):
		return true
	case fromInt && toBool:
		return true
	case fromBool && toInt:
		return true
	default:
		return false
	}
}

// inferTry validates `expr??`.
func (c *Checker) inferTry(n *ast.TryExpr) Type {
	inner := c.inferExpr(n.Value)
	et, ok := inner.(*EnumType)
	if !ok || !(et.IsResultShaped() || et.IsMaybeShaped()) {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeTryRequiresResultLike,
			"'??' requires a Result-like or Maybe-like enum, found '"+inner.String()+"'", toDiagSpan(n.Span()))
		return Blank
	}

	n.InnerType = et
	if et.IsResultShaped() {
		n.SuccessTag, n.ErrTag = 0, 1
		n.SuccessType = et.Variants[0].Assoc[0]
		n.ErrType = et.Variants[1].Assoc[0]
		if !Equal(n.ErrType.(Type), c.errType) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeTryErrTypeMismatch,
				"'??' error type '"+n.ErrType.(Type).String()+"' does not match enclosing function's error type '"+c.errType.String()+"'; "+
					"sushi requires exact error-type propagation, no implicit conversion", toDiagSpan(n.Span()))
		}
	} else {
		n.SuccessTag, n.ErrTag = 0, 1
		n.SuccessType = et.Variants[0].Assoc[0]
		n.ErrType = Blank
	}
	n.EnclosingRet = &ResultType{Ok: c.retType, Err: c.errType}
	if c.inMain {
		c.Reporter.Warn(diag.StageTypeCheck, diag.CodeTryInMain,
			"'??' used inside main", toDiagSpan(n.Span()))
	}
	return n.SuccessType.(Type)
}

func (c *Checker) inferIf(n *ast.IfExpr) Type {
	c.checkCondition(n.Cond)
	thenT := c.inferBlockExpr(n.Then)
	if n.Else != nil {
		c.inferExpr(n.Else)
	}
	return thenT
}

// propagateExpected pushes an expected type down into enum/struct
// constructors on the RHS before validating the initializer, recursively,
// so generic constructors resolve their type arguments from context.
func (c *Checker) propagateExpected(expected Type, e ast.Expr) {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return
	}
	switch callee := call.Callee.(type) {
	case *ast.FieldExpr:
		base, ok := callee.Target.(*ast.Ident)
		if !ok {
			return
		}
		// Static provider calls (`HashMap.new`, `Own.alloc(v)`) take their
		// type arguments from the declared LHS: seed the expected type onto
		// the call node for checkProviderStatic to pick up.
		if b, ga, isGen := genericBaseOf(expected); isGen && b == base.Name && IsProviderBase(base.Name) {
			call.SetResolvedType(expected)
			if p, ok := ProviderRegistry[base.Name]; ok {
				if spec, ok := p.Methods[callee.Field]; ok && spec.IsStatic {
					subst := map[string]Type{}
					for i, tp := range p.TypeParams {
						if i < len(ga) {
							subst[tp] = ga[i]
						}
					}
					for i, arg := range call.Args {
						if i < len(spec.Params) {
							c.propagateExpected(Substitute(spec.Params[i], subst), arg)
						}
					}
				}
			}
			return
		}
		et, ok := expected.(*EnumType)
		if !ok {
			if rt, ok2 := expected.(*ResultType); ok2 && base.Name == "Result" {
				if len(call.Args) == 1 {
					if callee.Field == "Ok" {
						c.propagateExpected(rt.Ok, call.Args[0])
					} else if callee.Field == "Err" {
						c.propagateExpected(rt.Err, call.Args[0])
					}
				}
			}
			return
		}
		if et.Name != base.Name && et.GenericBase != base.Name {
			return
		}
		variant, _ := et.Variant(callee.Field)
		if variant == nil {
			return
		}
		call.MangledCallee = et.Name + "." + callee.Field
		for i, arg := range call.Args {
			if i < len(variant.Assoc) {
				c.propagateExpected(variant.Assoc[i], arg)
			}
		}
	case *ast.Ident:
		st, ok := expected.(*StructType)
		if !ok {
			return
		}
		if st.Name != callee.Name && st.GenericBase != callee.Name {
			return
		}
		call.MangledCallee = st.Name
		for i, arg := range call.Args {
			if i < len(st.Fields) {
				c.propagateExpected(st.Fields[i].Type, arg)
			}
		}
		for _, na := range call.NamedArgs {
			if ft, ok := st.FieldType(na.Name); ok {
				c.propagateExpected(ft, na.Value)
			}
		}
	}
}
