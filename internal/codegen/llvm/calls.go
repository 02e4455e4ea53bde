package llvm

import (
	"strings"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/types"
)

// emitCall dispatches on the callee shape Pass 2 annotated:
// struct constructors, enum constructors, plain/monomorphized functions,
// stdlib functions, built-in generic provider methods, extension methods.
func (g *Generator) emitCall(n *ast.CallExpr) value.Value {
	// Stdlib calls keep a module-qualified callee (`math.sqrt`).
	if field, ok := n.Callee.(*ast.FieldExpr); ok {
		if base, ok := field.Target.(*ast.Ident); ok {
			if _, isVar := g.frame.lookup(base.Name); !isVar && g.Tables.StdlibModules[base.Name] {
				return g.emitStdlibCall(n, base.Name, field.Field)
			}
		}
	}

	// Dynamic-array constructors `T.new()` / `T.from([...])` get the
	// specialized fast-path initializers.
	if dt, isDyn := semType(n).(*types.DynamicArrayType); isDyn {
		if field, ok := n.Callee.(*ast.FieldExpr); ok && (field.Field == "from" || field.Field == "new") {
			if base, ok := field.Target.(*ast.Ident); ok {
				if _, isVar := g.frame.lookup(base.Name); !isVar {
					return g.emitDynArrayCtor(n, dt, field.Field)
				}
			}
		}
	}

	mangled := n.MangledCallee
	if dot := strings.LastIndex(mangled, "."); dot >= 0 {
		base, member := mangled[:dot], mangled[dot+1:]
		if et, ok := g.Tables.EnumTable[base]; ok {
			return g.emitEnumCtor(n, et, member)
		}
		if types.IsProviderBase(base) {
			return g.emitProviderCall(n, base, member)
		}
		if m, ok := g.Tables.LookupExtension(base, member); ok {
			if m.Synthetic {
				return g.emitSyntheticMethod(n, base, member, m)
			}
			return g.emitExtensionCall(n, base, member, m)
		}
		return g.emitArgsDiscard(n)
	}

	if st, ok := g.Tables.StructTable[mangled]; ok {
		if _, isFn := g.Tables.FunctionTable[mangled]; !isFn {
			return g.emitStructCtor(n, st)
		}
	}
	if entry, ok := g.Tables.FunctionTable[mangled]; ok {
		return g.emitFnCall(n, entry)
	}
	return g.emitArgsDiscard(n)
}

func (g *Generator) emitArgsDiscard(n *ast.CallExpr) value.Value {
	for _, a := range n.Args {
		g.emitExpr(a)
	}
	return constant.NewInt(irtypes.I8, 0)
}

// emitDynArrayCtor lowers `T.new` to a zeroed `{0, 0, null}` and
// `T.from([...])` to a malloc'd buffer initialized element by element.
func (g *Generator) emitDynArrayCtor(n *ast.CallExpr, dt *types.DynamicArrayType, method string) value.Value {
	lt := g.dynArrayType(dt.Elem)
	if method == "new" || len(n.Args) == 0 {
		return g.zeroValue(lt)
	}

	src := n.Args[0]
	if _, alreadyDyn := semType(src).(*types.DynamicArrayType); alreadyDyn {
		v := g.emitExpr(src)
		g.nullifyMovedSource(src)
		return v
	}

	elemTy := g.lowerType(dt.Elem)
	var count int
	var elems []value.Value
	if lit, ok := src.(*ast.ArrayLiteral); ok {
		count = len(lit.Elements)
		for _, el := range lit.Elements {
			elems = append(elems, g.convert(g.emitExpr(el), semType(el), dt.Elem))
		}
	} else if at, ok := semType(src).(*types.ArrayType); ok {
		count = at.Size
		arr := g.rvalue(src)
		for i := 0; i < count; i++ {
			elems = append(elems, g.block.NewExtractValue(arr, uint64(i)))
		}
	}

	elemSize := g.sizeOfIR(g.block, elemTy)
	bytes := g.block.NewMul(constant.NewInt(irtypes.I64, int64(count)), elemSize)
	raw := g.block.NewCall(g.rt["malloc"], bytes)
	buf := g.block.NewBitCast(raw, irtypes.NewPointer(elemTy))
	for i, el := range elems {
		g.block.NewStore(el, g.block.NewGetElementPtr(elemTy, buf, constant.NewInt(irtypes.I32, int64(i))))
	}

	v := value.Value(g.zeroValue(lt))
	v = g.block.NewInsertValue(v, constant.NewInt(irtypes.I32, int64(count)), 0)
	v = g.block.NewInsertValue(v, constant.NewInt(irtypes.I32, int64(count)), 1)
	v = g.block.NewInsertValue(v, buf, 2)
	return v
}

// emitStructCtor builds a struct value field by field. Named-argument calls
// were rewritten to positional order by Pass 2, and
// dynamic-array arguments are moved into the new struct.
func (g *Generator) emitStructCtor(n *ast.CallExpr, st *types.StructType) value.Value {
	lt := g.lowerType(st)
	v := value.Value(g.zeroValue(lt))
	for i, arg := range n.Args {
		if i >= len(st.Fields) {
			break
		}
		fv := g.convert(g.emitExpr(arg), semType(arg), st.Fields[i].Type)
		v = g.block.NewInsertValue(v, fv, uint64(i))
		if ownsResource(st.Fields[i].Type) {
			g.nullifyMovedSource(arg)
		}
	}
	return v
}

func (g *Generator) emitEnumCtor(n *ast.CallExpr, et *types.EnumType, variantName string) value.Value {
	variant, idx := et.Variant(variantName)
	if variant == nil {
		return g.emitArgsDiscard(n)
	}
	vals := make([]value.Value, 0, len(n.Args))
	assoc := make([]types.Type, 0, len(n.Args))
	for i, arg := range n.Args {
		if i >= len(variant.Assoc) {
			break
		}
		vals = append(vals, g.convert(g.emitExpr(arg), semType(arg), variant.Assoc[i]))
		assoc = append(assoc, variant.Assoc[i])
		if ownsResource(variant.Assoc[i]) {
			g.nullifyMovedSource(arg)
		}
	}
	return g.buildEnum(et, idx, vals, assoc)
}

// emitFnCall looks the function up by mangled name and casts each argument
// to the parameter's type.
func (g *Generator) emitFnCall(n *ast.CallExpr, entry *types.FunctionEntry) value.Value {
	f, ok := g.funcs[g.fnSymbol(entry.Name)]
	if !ok {
		return g.emitArgsDiscard(n)
	}
	args := make([]value.Value, 0, len(n.Args))
	for i, arg := range n.Args {
		v := g.emitExpr(arg)
		if i < len(entry.ParamTypes) {
			v = g.convert(v, semType(arg), entry.ParamTypes[i])
			if ownsResource(entry.ParamTypes[i]) {
				g.nullifyMovedSource(arg)
			}
		}
		args = append(args, v)
	}
	return g.block.NewCall(f, args...)
}

// emitExtensionCall invokes a user-written extension/perk method: self is
// passed by value as the leading parameter.
func (g *Generator) emitExtensionCall(n *ast.CallExpr, recv, method string, m *types.ExtensionMethod) value.Value {
	f, ok := g.funcs[methodSymbol(recv, method)]
	if !ok {
		return g.emitArgsDiscard(n)
	}
	callee, ok := n.Callee.(*ast.FieldExpr)
	if !ok {
		return g.emitArgsDiscard(n)
	}
	self := g.rvalue(callee.Target)
	args := make([]value.Value, 0, len(n.Args)+1)
	args = append(args, self)
	for i, arg := range n.Args {
		v := g.emitExpr(arg)
		if i < len(m.ParamTypes) {
			v = g.convert(v, semType(arg), m.ParamTypes[i])
		}
		args = append(args, v)
	}
	return g.block.NewCall(f, args...)
}

// ---------------------------------------------------------------------
// Stdlib calls: per-function lowering onto LLVM math
// intrinsics and libc.
// ---------------------------------------------------------------------

var mathIntrinsics = map[string]string{
	"sqrt": "llvm.sqrt.f64", "sin": "llvm.sin.f64", "cos": "llvm.cos.f64",
	"floor": "llvm.floor.f64", "ceil": "llvm.ceil.f64", "round": "llvm.round.f64",
	"trunc": "llvm.trunc.f64", "log": "llvm.log.f64", "log2": "llvm.log2.f64",
	"log10": "llvm.log10.f64", "exp": "llvm.exp.f64", "exp2": "llvm.exp2.f64",
}

var mathLibc = map[string]bool{
	"tan": true, "asin": true, "acos": true, "atan": true,
	"sinh": true, "cosh": true, "tanh": true, "atan2": true, "hypot": true,
}

func (g *Generator) emitStdlibCall(n *ast.CallExpr, module, name string) value.Value {
	switch module {
	case "math":
		return g.emitMathCall(n, name)
	case "random":
		return g.emitRandomCall(n, name)
	case "time":
		return g.emitTimeCall(n, name)
	case "io":
		return g.emitIOCall(n, name)
	}
	return g.emitArgsDiscard(n)
}

func (g *Generator) emitMathCall(n *ast.CallExpr, name string) value.Value {
	switch name {
	case "PI":
		return constant.NewFloat(irtypes.Double, 3.141592653589793)
	case "E":
		return constant.NewFloat(irtypes.Double, 2.718281828459045)
	case "TAU":
		return constant.NewFloat(irtypes.Double, 6.283185307179586)
	case "abs", "min", "max":
		return g.emitMathPoly(n, name)
	}
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = g.convert(g.rvalue(a), derefType(semType(a)), types.F64)
	}
	if intr, ok := mathIntrinsics[name]; ok {
		f := g.intrinsic(intr, irtypes.Double, irtypes.Double)
		return g.block.NewCall(f, args...)
	}
	if name == "pow" {
		f := g.intrinsic("llvm.pow.f64", irtypes.Double, irtypes.Double, irtypes.Double)
		return g.block.NewCall(f, args...)
	}
	if mathLibc[name] {
		params := make([]irtypes.Type, len(args))
		for i := range params {
			params[i] = irtypes.Double
		}
		f := g.intrinsic(name, irtypes.Double, params...)
		return g.block.NewCall(f, args...)
	}
	return g.emitArgsDiscard(n)
}

// emitMathPoly lowers abs/min/max, which are polymorphic over the first
// argument's numeric type.
func (g *Generator) emitMathPoly(n *ast.CallExpr, name string) value.Value {
	if len(n.Args) == 0 {
		return constant.NewInt(irtypes.I32, 0)
	}
	t := derefType(semType(n.Args[0]))
	a := g.rvalue(n.Args[0])
	isFloat := false
	if _, ok := t.(*types.FloatType); ok {
		isFloat = true
	}
	signed := true
	if it, ok := t.(*types.IntType); ok {
		signed = it.Signed
	}

	if name == "abs" {
		if isFloat {
			f := g.intrinsic("llvm.fabs.f64", irtypes.Double, irtypes.Double)
			wide := g.convert(a, t, types.F64)
			return g.convert(g.block.NewCall(f, wide), types.F64, t)
		}
		if !signed {
			return a
		}
		zero := constant.NewInt(a.Type().(*irtypes.IntType), 0)
		neg := g.block.NewSub(zero, a)
		isNeg := g.block.NewICmp(enum.IPredSLT, a, zero)
		return g.block.NewSelect(isNeg, neg, a)
	}

	if len(n.Args) < 2 {
		return a
	}
	b := g.convert(g.rvalue(n.Args[1]), derefType(semType(n.Args[1])), t)
	var cond value.Value
	if isFloat {
		if name == "min" {
			cond = g.block.NewFCmp(enum.FPredOLT, a, b)
		} else {
			cond = g.block.NewFCmp(enum.FPredOGT, a, b)
		}
	} else if signed {
		if name == "min" {
			cond = g.block.NewICmp(enum.IPredSLT, a, b)
		} else {
			cond = g.block.NewICmp(enum.IPredSGT, a, b)
		}
	} else {
		if name == "min" {
			cond = g.block.NewICmp(enum.IPredULT, a, b)
		} else {
			cond = g.block.NewICmp(enum.IPredUGT, a, b)
		}
	}
	return g.block.NewSelect(cond, a, b)
}

func (g *Generator) emitRandomCall(n *ast.CallExpr, name string) value.Value {
	switch name {
	case "rand":
		return g.block.NewCall(g.rt["random"])
	case "rand_f64":
		r := g.block.NewCall(g.rt["random"])
		f := g.block.NewSIToFP(r, irtypes.Double)
		// random yields [0, 2^31); normalize to [0, 1).
		return g.block.NewFDiv(f, constant.NewFloat(irtypes.Double, 2147483648))
	case "rand_range":
		if len(n.Args) < 2 {
			return constant.NewInt(irtypes.I32, 0)
		}
		lo := g.coerceI32(g.rvalue(n.Args[0]), derefType(semType(n.Args[0])))
		hi := g.coerceI32(g.rvalue(n.Args[1]), derefType(semType(n.Args[1])))
		r := g.block.NewTrunc(g.block.NewCall(g.rt["random"]), irtypes.I32)
		span := g.block.NewSub(hi, lo)
		off := g.block.NewURem(r, span)
		return g.block.NewAdd(lo, off)
	case "srand":
		seed := g.block.NewTrunc(g.rvalue(n.Args[0]), irtypes.I32)
		g.block.NewCall(g.rt["srandom"], seed)
		return constant.NewInt(irtypes.I8, 0)
	}
	return g.emitArgsDiscard(n)
}

// emitTimeCall lowers the sleep family onto nanosleep with a stack timespec,
// returning Result<i32, StdError> (EINTR is a real failure mode).
func (g *Generator) emitTimeCall(n *ast.CallExpr, name string) value.Value {
	if len(n.Args) == 0 {
		return g.emitArgsDiscard(n)
	}
	amount := g.convert(g.rvalue(n.Args[0]), derefType(semType(n.Args[0])), types.I64)

	var secs, nanos value.Value
	switch name {
	case "sleep":
		secs = amount
		nanos = constant.NewInt(irtypes.I64, 0)
	case "msleep":
		secs = g.block.NewSDiv(amount, constant.NewInt(irtypes.I64, 1000))
		rem := g.block.NewSRem(amount, constant.NewInt(irtypes.I64, 1000))
		nanos = g.block.NewMul(rem, constant.NewInt(irtypes.I64, 1000000))
	case "usleep":
		secs = g.block.NewSDiv(amount, constant.NewInt(irtypes.I64, 1000000))
		rem := g.block.NewSRem(amount, constant.NewInt(irtypes.I64, 1000000))
		nanos = g.block.NewMul(rem, constant.NewInt(irtypes.I64, 1000))
	case "nanosleep":
		secs = amount
		nanos = constant.NewInt(irtypes.I64, 0)
		if len(n.Args) > 1 {
			nanos = g.convert(g.rvalue(n.Args[1]), derefType(semType(n.Args[1])), types.I64)
		}
	default:
		return g.emitArgsDiscard(n)
	}

	tsTy := irtypes.NewStruct(irtypes.I64, irtypes.I64)
	ts := g.alloca(tsTy)
	g.block.NewStore(secs, g.block.NewGetElementPtr(tsTy, ts,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 0)))
	g.block.NewStore(nanos, g.block.NewGetElementPtr(tsTy, ts,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 1)))
	raw := g.block.NewBitCast(ts, irtypes.I8Ptr)
	rc := g.block.NewCall(g.rt["nanosleep"], raw, constant.NewNull(irtypes.I8Ptr))
	return g.wrapResultI32(rc, g.stdErrorType(), "sleep interrupted")
}

func (g *Generator) emitIOCall(n *ast.CallExpr, name string) value.Value {
	arg := func(i int) value.Value { return g.rvalue(n.Args[i]) }
	strPtr := func(v value.Value) value.Value { return g.block.NewExtractValue(v, 0) }

	switch name {
	case "exists":
		rc := g.block.NewCall(g.rt["access"], strPtr(arg(0)), constant.NewInt(irtypes.I32, 0))
		return g.block.NewICmp(enum.IPredEQ, rc, constant.NewInt(irtypes.I32, 0))
	case "is_file":
		rc := g.block.NewCall(g.rt["sushi_io_is_file"], arg(0))
		return g.block.NewICmp(enum.IPredNE, rc, constant.NewInt(irtypes.I32, 0))
	case "is_dir":
		rc := g.block.NewCall(g.rt["sushi_io_is_dir"], arg(0))
		return g.block.NewICmp(enum.IPredNE, rc, constant.NewInt(irtypes.I32, 0))
	case "file_size":
		size := g.block.NewCall(g.rt["sushi_io_file_size"], arg(0))
		rc := g.block.NewTrunc(size, irtypes.I32)
		return g.wrapResultOk(rc, types.I64, size, g.fileErrorType(), "cannot stat file")
	case "remove":
		rc := g.block.NewCall(g.rt["remove"], strPtr(arg(0)))
		return g.wrapResultI32(rc, g.fileErrorType(), "cannot remove path")
	case "rmdir":
		rc := g.block.NewCall(g.rt["rmdir"], strPtr(arg(0)))
		return g.wrapResultI32(rc, g.fileErrorType(), "cannot remove directory")
	case "rename":
		rc := g.block.NewCall(g.rt["rename"], strPtr(arg(0)), strPtr(arg(1)))
		return g.wrapResultI32(rc, g.fileErrorType(), "cannot rename path")
	case "copy":
		rc := g.block.NewCall(g.rt["sushi_io_copy"], arg(0), arg(1))
		return g.wrapResultI32(rc, g.fileErrorType(), "cannot copy file")
	case "mkdir":
		mode := g.coerceI32(g.rvalue(n.Args[1]), derefType(semType(n.Args[1])))
		rc := g.block.NewCall(g.rt["mkdir"], strPtr(arg(0)), mode)
		return g.wrapResultI32(rc, g.fileErrorType(), "cannot create directory")
	}
	return g.emitArgsDiscard(n)
}

func (g *Generator) stdErrorType() types.Type {
	if st, ok := g.Tables.StructTable["StdError"]; ok {
		return st
	}
	return &types.StructType{Name: "StdError"}
}

func (g *Generator) fileErrorType() types.Type {
	if st, ok := g.Tables.StructTable["FileError"]; ok {
		return st
	}
	return g.stdErrorType()
}

// wrapResultI32 converts a libc-style i32 return code into a
// Result<i32, errType> enum value: rc >= 0 is Ok(rc), otherwise Err.
func (g *Generator) wrapResultI32(rc value.Value, errType types.Type, msg string) value.Value {
	return g.wrapResultOk(rc, types.I32, rc, errType, msg)
}

func (g *Generator) wrapResultOk(rc value.Value, okType types.Type, okVal value.Value, errType types.Type, msg string) value.Value {
	et := g.resultEnum(okType, errType)
	lt := g.lowerType(et)
	tmp := g.alloca(lt)

	okBB := g.fn.NewBlock("")
	errBB := g.fn.NewBlock("")
	doneBB := g.fn.NewBlock("")
	isOk := g.block.NewICmp(enum.IPredSGE, rc, constant.NewInt(irtypes.I32, 0))
	g.block.NewCondBr(isOk, okBB, errBB)

	g.block = okBB
	g.block.NewStore(g.buildEnum(et, 0, []value.Value{okVal}, []types.Type{okType}), tmp)
	g.block.NewBr(doneBB)

	g.block = errBB
	errVal := g.buildErrorValue(errType, msg)
	g.block.NewStore(g.buildEnum(et, 1, []value.Value{errVal}, []types.Type{errType}), tmp)
	g.block.NewBr(doneBB)

	g.block = doneBB
	return g.block.NewLoad(lt, tmp)
}

// buildErrorValue constructs a StdError/FileError struct value whose first
// string field carries msg.
func (g *Generator) buildErrorValue(errType types.Type, msg string) value.Value {
	st, ok := errType.(*types.StructType)
	if !ok {
		return constant.NewInt(irtypes.I8, 0)
	}
	v := value.Value(g.zeroValue(g.lowerType(st)))
	for i, f := range st.Fields {
		if _, isStr := f.Type.(*types.StringType); isStr {
			v = g.block.NewInsertValue(v, g.stringValue(msg), uint64(i))
			break
		}
	}
	return v
}
